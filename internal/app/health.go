package app

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	lossGood = 0.05
	lossPoor = 0.15
	rttGood  = 200 * time.Millisecond
	rttPoor  = 500 * time.Millisecond
)

// Sample is one network measurement for a participant.
type Sample struct {
	Connected  bool
	PacketLoss float64
	RTT        time.Duration
}

func ClassifyQuality(s Sample) domain.ConnectionQuality {
	switch {
	case !s.Connected:
		return domain.QualityLost
	case s.PacketLoss >= lossPoor || s.RTT >= rttPoor:
		return domain.QualityPoor
	case s.PacketLoss >= lossGood || s.RTT >= rttGood:
		return domain.QualityGood
	default:
		return domain.QualityExcellent
	}
}

type Indicator struct {
	Quality domain.ConnectionQuality `json:"quality"`
	Pulsing bool                     `json:"pulsing"`
}

// RetryHint tells the user how long to wait before pressing retry again.
type RetryHint struct {
	Attempt int           `json:"attempt"`
	After   time.Duration `json:"after"`
}

// Health tracks per-participant connection quality and join failures.
// It never retries on its own.
type Health struct {
	mu       sync.RWMutex
	quality  map[domain.ParticipantID]domain.ConnectionQuality
	cooldown *backoff.ExponentialBackOff
	attempts int
}

func NewHealth(clock clockwork.Clock) *Health {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	b.Clock = clock
	b.Reset()
	return &Health{
		quality:  make(map[domain.ParticipantID]domain.ConnectionQuality),
		cooldown: b,
	}
}

// Observe stores q and reports whether it changed.
func (h *Health) Observe(id domain.ParticipantID, q domain.ConnectionQuality) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, ok := h.quality[id]
	h.quality[id] = q
	if ok && prev == q {
		return false
	}
	if q.Pulsing() {
		log.Info().Str("module", "app.health").Str("pid", string(id)).Stringer("quality", q).Msg("connection degraded")
	}
	return true
}

func (h *Health) Quality(id domain.ParticipantID) domain.ConnectionQuality {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.quality[id]
}

func (h *Health) Indicators() map[domain.ParticipantID]Indicator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[domain.ParticipantID]Indicator, len(h.quality))
	for id, q := range h.quality {
		out[id] = Indicator{Quality: q, Pulsing: q.Pulsing()}
	}
	return out
}

func (h *Health) Forget(id domain.ParticipantID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.quality, id)
}

func (h *Health) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.quality)
}

// JoinFailed records a failed join attempt and returns the cooldown to show.
func (h *Health) JoinFailed(err error) RetryHint {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts++
	d := h.cooldown.NextBackOff()
	if d == backoff.Stop {
		d = h.cooldown.MaxInterval
	}
	log.Warn().Err(err).Str("module", "app.health").Int("attempt", h.attempts).Dur("cooldown", d).Msg("join failed")
	return RetryHint{Attempt: h.attempts, After: d}
}

func (h *Health) JoinSucceeded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = 0
	h.cooldown.Reset()
}

// LevelSource reports recent audio activity per participant in [0, 1].
type LevelSource interface {
	AudioLevels() map[domain.ParticipantID]float64
}

// SpeakingPoller samples a LevelSource at a fixed rate and updates the
// registry's speaking flags.
type SpeakingPoller struct {
	Clock     clockwork.Clock
	Source    LevelSource
	Registry  *Registry
	Interval  time.Duration
	Threshold float64
}

func (p *SpeakingPoller) Run(ctx context.Context) error {
	t := p.Clock.NewTicker(p.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Chan():
			p.Poll()
		}
	}
}

func (p *SpeakingPoller) Poll() {
	levels := p.Source.AudioLevels()
	ids := make([]domain.ParticipantID, 0, len(levels))
	for _, id := range slices.Sorted(maps.Keys(levels)) {
		if levels[id] >= p.Threshold {
			ids = append(ids, id)
		}
	}
	p.Registry.SetSpeaking(ids)
}
