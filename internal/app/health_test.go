package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestClassifyQuality(t *testing.T) {
	tests := []struct {
		name   string
		sample Sample
		want   domain.ConnectionQuality
	}{
		{"disconnected", Sample{}, domain.QualityLost},
		{"clean", Sample{Connected: true, PacketLoss: 0.01, RTT: 40 * time.Millisecond}, domain.QualityExcellent},
		{"some loss", Sample{Connected: true, PacketLoss: 0.06}, domain.QualityGood},
		{"slow", Sample{Connected: true, RTT: 250 * time.Millisecond}, domain.QualityGood},
		{"heavy loss", Sample{Connected: true, PacketLoss: 0.2}, domain.QualityPoor},
		{"very slow", Sample{Connected: true, RTT: 600 * time.Millisecond}, domain.QualityPoor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyQuality(tt.sample))
		})
	}
}

func TestHealth_Observe(t *testing.T) {
	req := require.New(t)
	h := NewHealth(clockwork.NewFakeClock())

	req.True(h.Observe("bob", domain.QualityGood))
	req.False(h.Observe("bob", domain.QualityGood))
	req.True(h.Observe("bob", domain.QualityPoor))

	ind := h.Indicators()
	req.Equal(Indicator{Quality: domain.QualityPoor, Pulsing: true}, ind["bob"])

	h.Forget("bob")
	req.Equal(domain.QualityUnknown, h.Quality("bob"))
}

func TestHealth_Join_Cooldown_Grows_Until_Success(t *testing.T) {
	req := require.New(t)
	h := NewHealth(clockwork.NewFakeClock())
	boom := errors.New("boom")

	req.Equal(RetryHint{Attempt: 1, After: time.Second}, h.JoinFailed(boom))
	req.Equal(RetryHint{Attempt: 2, After: 2 * time.Second}, h.JoinFailed(boom))
	req.Equal(RetryHint{Attempt: 3, After: 4 * time.Second}, h.JoinFailed(boom))

	h.JoinSucceeded()
	req.Equal(RetryHint{Attempt: 1, After: time.Second}, h.JoinFailed(boom))
}

type levels struct {
	mu sync.Mutex
	m  map[domain.ParticipantID]float64
}

func (l *levels) AudioLevels() map[domain.ParticipantID]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m
}

func TestSpeakingPoller_Updates_Registry_On_Tick(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	reg := NewRegistry(clock, nil)
	reg.OnParticipantJoined(remote("bob"))
	reg.OnParticipantJoined(remote("carol"))
	src := &levels{m: map[domain.ParticipantID]float64{"bob": 0.8, "carol": 0.01}}
	poller := &SpeakingPoller{Clock: clock, Source: src, Registry: reg, Interval: 250 * time.Millisecond, Threshold: 0.1}

	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()
	req.NoError(clock.BlockUntilContext(ctx, 1))

	// When the poll interval elapses
	clock.Advance(250 * time.Millisecond)

	// Then only bob is speaking
	req.Eventually(func() bool {
		p, _ := reg.Participant("bob")
		return p.Speaking
	}, time.Second, 5*time.Millisecond)
	carol, _ := reg.Participant("carol")
	req.False(carol.Speaking)

	cancel()
	req.ErrorIs(<-done, context.Canceled)
}

func TestPolicy_Classify(t *testing.T) {
	req := require.New(t)
	p := SimplePolicy{}

	req.Equal(RecoverableFlow, p.Classify(errors.Join(domain.ErrFetchCredential, errors.New("503"))))
	req.Equal(RecoverableFlow, p.Classify(domain.ErrConnect))
	req.Equal(Terminal, p.Classify(domain.ErrSessionEnded))
	req.Equal(RecoverableLocal, p.Classify(domain.ErrNoDevice))

	b := NewBanner(p, domain.ErrConnect, &RetryHint{Attempt: 2, After: 2 * time.Second})
	req.True(b.Retryable)
	req.Equal(2*time.Second, b.RetryAfter)

	local := NewBanner(nil, domain.ErrNoDevice, nil)
	req.False(local.Retryable)
}
