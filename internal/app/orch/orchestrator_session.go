package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type DeviceStatus struct {
	Camera     bool   `json:"camera"`
	Microphone bool   `json:"microphone"`
	Error      string `json:"error,omitempty"`
}

// EnumerateDevices lists the cameras and microphones the user can pick from.
func (o *Orchestrator) EnumerateDevices(ctx context.Context) ([]core.Device, error) {
	list, err := o.Devices.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNoDevice, err)
	}
	return list, nil
}

// PrepareDevices acquires preview media. A missing device is reported in the
// status and never blocks the join.
func (o *Orchestrator) PrepareDevices(ctx context.Context, req core.DeviceRequest) (DeviceStatus, error) {
	o.mu.Lock()
	if o.phase != domain.PhasePreCheck {
		o.mu.Unlock()
		return DeviceStatus{}, domain.ErrInvalidPhase
	}
	old := o.preview
	o.preview = nil
	o.mu.Unlock()
	o.release(old)

	media, err := o.Devices.Acquire(ctx, req)
	var st DeviceStatus
	if err != nil {
		o.log.Warn().Err(err).Msg("device acquisition incomplete")
		st.Error = err.Error()
		o.setBanner(fmt.Errorf("%w: %w", domain.ErrNoDevice, err), nil)
	}
	if media == nil {
		return st, nil
	}
	for _, t := range media.Tracks() {
		switch t.Kind() {
		case domain.TrackCamera:
			st.Camera = true
		case domain.TrackMicrophone:
			st.Microphone = true
		}
	}

	o.mu.Lock()
	if o.phase != domain.PhasePreCheck {
		o.mu.Unlock()
		o.release(media)
		return st, domain.ErrInvalidPhase
	}
	o.preview = media
	o.mu.Unlock()
	return st, nil
}

// Preview returns the tracks captured for the device check.
func (o *Orchestrator) Preview() []core.TrackHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.preview == nil {
		return nil
	}
	return o.preview.Tracks()
}

func (o *Orchestrator) SetConsent(ok bool) error {
	o.mu.Lock()
	if o.phase != domain.PhasePreCheck {
		o.mu.Unlock()
		return domain.ErrInvalidPhase
	}
	o.consent = ok
	o.mu.Unlock()
	o.publish()
	return nil
}

// Join leaves the pre-check and tries to connect. The phase is Active on
// return whether or not the connection succeeded; a failure leaves a
// retryable banner instead of stranding the user on the connecting screen.
func (o *Orchestrator) Join(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.phase == domain.PhaseEnded:
		o.mu.Unlock()
		return domain.ErrSessionEnded
	case o.phase != domain.PhasePreCheck:
		o.mu.Unlock()
		return domain.ErrInvalidPhase
	case !o.consent:
		o.mu.Unlock()
		return domain.ErrConsentRequired
	}
	preview := o.preview
	o.preview = nil
	o.phase = domain.PhaseConnecting
	o.mu.Unlock()
	o.log.Info().Msg("joining")
	o.publish()

	// the transport re-acquires devices, so the preview must let go first
	o.release(preview)

	err := o.attempt(ctx)
	if errors.Is(err, domain.ErrSessionEnded) {
		return err
	}

	o.mu.Lock()
	if o.phase != domain.PhaseConnecting {
		o.mu.Unlock()
		return domain.ErrSessionEnded
	}
	o.phase = domain.PhaseActive
	o.startedAt = o.Clock.Now()
	o.startTickerLocked()
	o.mu.Unlock()
	o.log.Info().Bool("connected", err == nil).Msg("session active")
	o.publish()
	return err
}

// Retry makes one more connection attempt from a degraded Active session.
// Concurrent calls share the same attempt.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	phase, connected := o.phase, o.connected
	o.mu.Unlock()
	switch {
	case phase == domain.PhaseEnded:
		return domain.ErrSessionEnded
	case phase != domain.PhaseActive:
		return domain.ErrInvalidPhase
	case connected:
		return nil
	}
	err := o.attempt(ctx)
	o.publish()
	return err
}

func (o *Orchestrator) attempt(ctx context.Context) error {
	_, err, shared := o.join.Do("join", func() (any, error) {
		return nil, o.connect(ctx)
	})
	if shared {
		o.log.Debug().Msg("join attempt shared")
	}
	return err
}

func (o *Orchestrator) connect(ctx context.Context) error {
	cred, err := o.API.FetchJoinCredential(ctx, o.Opts.SessionID)
	if err != nil {
		return o.joinFailed(fmt.Errorf("%w: %w", domain.ErrFetchCredential, err))
	}
	if err := o.Transport.Connect(ctx, cred.TransportURL, cred.Token); err != nil {
		return o.joinFailed(fmt.Errorf("%w: %w", domain.ErrConnect, err))
	}

	o.mu.Lock()
	if o.phase == domain.PhaseEnded {
		o.mu.Unlock()
		o.log.Info().Msg("connected after end, disconnecting")
		if err := o.Transport.Disconnect(context.WithoutCancel(ctx)); err != nil {
			o.log.Warn().Err(err).Msg("disconnect failed")
		}
		return domain.ErrSessionEnded
	}
	o.connected = true
	if o.banner != nil && o.banner.Severity == app.RecoverableFlow {
		o.banner = nil
	}
	pumpCtx := o.sessionCtx
	done := make(chan struct{})
	o.pumpDone = done
	o.mu.Unlock()

	o.Health.JoinSucceeded()
	self := o.localParticipant()
	o.Chat.SetLocal(self)
	o.Registry.OnParticipantJoined(self)
	o.Health.Observe(self.ID, domain.QualityExcellent)
	go o.pump(pumpCtx, o.Transport.Events(), done)

	o.log.Info().Str("room", cred.RoomName).Str("identity", string(self.ID)).Msg("transport connected")

	if _, err := o.API.StartSession(ctx, o.Opts.SessionID); err != nil {
		o.log.Warn().Err(err).Msg("start session not recorded")
	}
	return nil
}

func (o *Orchestrator) joinFailed(err error) error {
	hint := o.Health.JoinFailed(err)
	o.log.Error().Err(err).Int("attempt", hint.Attempt).Msg("join failed")
	o.setBanner(err, &hint)
	return err
}

func (o *Orchestrator) localParticipant() domain.Participant {
	id := o.Transport.LocalIdentity()
	p, err := domain.NewParticipant(id, o.Opts.DisplayName, true)
	if err != nil {
		return domain.Participant{ID: "local", Name: o.Opts.DisplayName, Local: true}
	}
	return *p
}

func (o *Orchestrator) onConnectionLost(cause error) {
	o.mu.Lock()
	if !o.connected || o.phase != domain.PhaseActive {
		o.mu.Unlock()
		return
	}
	o.connected = false
	o.mu.Unlock()

	if cause == nil {
		cause = errors.New("connection lost")
	}
	o.log.Warn().Err(cause).Msg("transport disconnected")
	if err := o.Registry.Clear(); err != nil {
		o.log.Error().Err(err).Msg("registry clear after disconnect")
	}
	o.Health.Reset()
	hint := o.Health.JoinFailed(cause)
	o.setBanner(fmt.Errorf("%w: %w", domain.ErrNotConnected, cause), &hint)
}

// startTickerLocked runs the duration counter on the injected clock. The stop
// func is idempotent.
func (o *Orchestrator) startTickerLocked() {
	t := o.Clock.NewTicker(o.Opts.TickInterval)
	done := make(chan struct{})
	var once sync.Once
	o.stopTick = func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
	go func() {
		for {
			select {
			case <-done:
				return
			case <-t.Chan():
				o.tick()
			}
		}
	}()
}

func (o *Orchestrator) tick() {
	o.mu.Lock()
	if o.phase != domain.PhaseActive {
		o.mu.Unlock()
		return
	}
	o.elapsed = o.Clock.Since(o.startedAt)
	elapsed, fn := o.elapsed, o.onTick
	o.mu.Unlock()
	if fn != nil {
		fn(elapsed)
	}
	o.publish()
}

// End closes the session with a user-chosen reason. Local teardown runs
// before the backend call and completes even when that call fails.
func (o *Orchestrator) End(ctx context.Context, reason domain.EndReason, notes string) (core.Receipt, error) {
	if !reason.Selectable() {
		return core.Receipt{}, domain.ErrReasonRequired
	}
	if err := o.teardown(ctx); err != nil {
		return core.Receipt{}, err
	}
	apiCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.Opts.APITimeout)
	defer cancel()
	receipt, err := o.API.EndSession(apiCtx, core.EndRequest{
		SessionID: o.Opts.SessionID,
		EndedBy:   o.Opts.EndedBy,
		Reason:    reason,
		Notes:     notes,
	})
	if err != nil {
		o.log.Error().Err(err).Str("reason", string(reason)).Msg("end session not recorded")
		return receipt, fmt.Errorf("end session: %w: %w", domain.ErrNotRecorded, err)
	}
	o.log.Info().Str("reason", string(reason)).Str("status", receipt.Status).Msg("session ended")
	return receipt, nil
}

// EmergencyTerminate ends the session immediately with the emergency reason.
func (o *Orchestrator) EmergencyTerminate(ctx context.Context, notes string) (core.Receipt, error) {
	if err := o.teardown(ctx); err != nil {
		return core.Receipt{}, err
	}
	apiCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.Opts.APITimeout)
	defer cancel()
	receipt, err := o.API.EmergencyTerminate(apiCtx, o.Opts.SessionID, core.TerminateRequest{
		TerminatedBy: o.Opts.EndedBy,
		Reason:       domain.ReasonEmergency,
		Notes:        notes,
	})
	if err != nil {
		o.log.Error().Err(err).Msg("emergency termination not recorded")
		return receipt, fmt.Errorf("emergency terminate: %w: %w", domain.ErrNotRecorded, err)
	}
	o.log.Warn().Str("status", receipt.Status).Msg("session terminated")
	return receipt, nil
}

// teardown moves to Ended exactly once: stop the ticker, stop local media,
// disconnect, clear the registry. Each step runs even if an earlier one
// failed. Step failures are logged, not returned.
func (o *Orchestrator) teardown(ctx context.Context) error {
	o.mu.Lock()
	if o.phase == domain.PhaseEnded {
		o.mu.Unlock()
		return domain.ErrSessionEnded
	}
	from := o.phase
	o.phase = domain.PhaseEnded
	stop := o.stopTick
	o.stopTick = nil
	preview := o.preview
	o.preview = nil
	o.connected = false
	done := o.pumpDone
	o.mu.Unlock()

	if stop != nil {
		stop()
	}
	o.release(preview)
	o.stopLocalMedia()

	if from != domain.PhasePreCheck {
		if err := o.Transport.Disconnect(context.WithoutCancel(ctx)); err != nil {
			o.log.Warn().Err(err).Msg("disconnect failed")
		}
	}
	o.cancelSession()
	if done != nil {
		<-done
	}
	if err := o.Registry.Clear(); err != nil {
		o.log.Error().Err(err).Msg("registry clear failed")
	}
	o.log.Info().Stringer("from", from).Msg("teardown complete")
	o.publish()
	return nil
}

func (o *Orchestrator) release(media core.LocalMedia) {
	if media == nil {
		return
	}
	if err := media.Release(); err != nil {
		o.log.Warn().Err(err).Msg("preview release failed")
	}
}
