package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc/pool"
)

// clockTimer runs backoff waits on the injected clock.
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time { return t.timer.Chan() }

// enableLocalMedia publishes camera and microphone side by side. Each device
// gets a few deferred retries; one device failing never affects the other.
func (o *Orchestrator) enableLocalMedia(ctx context.Context) {
	devices := []struct {
		kind   domain.TrackKind
		enable func(context.Context, bool) error
	}{
		{domain.TrackCamera, o.Transport.SetCameraEnabled},
		{domain.TrackMicrophone, o.Transport.SetMicrophoneEnabled},
	}

	p := pool.New().WithErrors()
	for _, d := range devices {
		p.Go(func() error {
			if err := o.enableWithRetry(ctx, d.kind, d.enable); err != nil {
				return fmt.Errorf("%s: %w", d.kind, err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		if ctx.Err() != nil {
			return
		}
		o.log.Warn().Err(err).Msg("local media partially unavailable")
		o.setBanner(fmt.Errorf("%w: %w", domain.ErrNoDevice, err), nil)
	}
}

func (o *Orchestrator) enableWithRetry(ctx context.Context, kind domain.TrackKind, enable func(context.Context, bool) error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.Opts.MediaRetryDelay), uint64(o.Opts.MediaRetries)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		o.log.Debug().Err(err).Stringer("kind", kind).Dur("next", next).Msg("enable failed, retrying")
	}
	return backoff.RetryNotifyWithTimer(func() error { return enable(ctx, true) }, b, notify, &clockTimer{clock: o.Clock})
}

// ToggleScreenShare starts or stops publishing the screen.
func (o *Orchestrator) ToggleScreenShare(ctx context.Context, on bool) error {
	o.mu.Lock()
	phase, connected := o.phase, o.connected
	o.mu.Unlock()
	switch {
	case phase == domain.PhaseEnded:
		return domain.ErrSessionEnded
	case phase != domain.PhaseActive:
		return domain.ErrInvalidPhase
	case !connected:
		return domain.ErrNotConnected
	}
	if err := o.Transport.SetScreenShareEnabled(ctx, on); err != nil {
		o.log.Warn().Err(err).Bool("on", on).Msg("screen share toggle failed")
		o.setBanner(err, nil)
		return fmt.Errorf("screen share: %w", err)
	}
	return nil
}

// SendChat refuses early while disconnected so the draft is never echoed
// into the log without a chance of delivery.
func (o *Orchestrator) SendChat(ctx context.Context, text string) (domain.ChatMessage, error) {
	o.mu.Lock()
	phase, connected := o.phase, o.connected
	o.mu.Unlock()
	if phase == domain.PhaseEnded {
		return domain.ChatMessage{}, domain.ErrSessionEnded
	}
	if !connected {
		return domain.ChatMessage{}, &app.SendError{Draft: text, Err: domain.ErrNotConnected}
	}
	msg, err := o.Chat.Send(ctx, text)
	if err != nil {
		o.log.Debug().Err(err).Msg("chat send failed")
	}
	return msg, err
}

// stopLocalMedia unbinds and stops every local track the registry knows of.
func (o *Orchestrator) stopLocalMedia() {
	for _, b := range o.Registry.LocalTracks() {
		o.Registry.UnbindSurface(b.ParticipantID, b.Kind)
		if err := b.Track.Stop(); err != nil {
			o.log.Warn().Err(err).Stringer("kind", b.Kind).Msg("local track stop failed")
		}
	}
}
