package orch

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type Options struct {
	SessionID   string
	DisplayName string
	EndedBy     string
	// TickInterval drives the call duration counter.
	TickInterval    time.Duration
	MediaRetryDelay time.Duration
	MediaRetries    int
	APITimeout      time.Duration
	Viewport        app.Viewport
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.MediaRetryDelay <= 0 {
		o.MediaRetryDelay = 500 * time.Millisecond
	}
	if o.MediaRetries < 0 {
		o.MediaRetries = 0
	}
	if o.APITimeout <= 0 {
		o.APITimeout = 10 * time.Second
	}
	return o
}

type Deps struct {
	API       core.SessionAPI
	Transport core.Transport
	Devices   core.DeviceProvider
	Registry  *app.Registry
	Chat      *app.Chat
	Health    *app.Health
	Policy    app.Policy
	Clock     clockwork.Clock
}

// Orchestrator owns the session lifecycle: PreCheck, Connecting, Active and
// the terminal Ended phase. It is the only owner of the transport connection.
type Orchestrator struct {
	API       core.SessionAPI
	Transport core.Transport
	Devices   core.DeviceProvider
	Registry  *app.Registry
	Chat      *app.Chat
	Health    *app.Health
	Policy    app.Policy
	Clock     clockwork.Clock
	Opts      Options

	mu        sync.Mutex
	phase     domain.SessionPhase
	consent   bool
	preview   core.LocalMedia
	connected bool
	banner    *app.Banner
	startedAt time.Time
	elapsed   time.Duration
	stopTick  func()
	onTick    func(time.Duration)

	// sessionCtx lives until teardown; pump and media retries derive from it.
	sessionCtx    context.Context
	cancelSession context.CancelFunc
	pumpDone      chan struct{}

	join singleflight.Group

	listenersMu  sync.Mutex
	listeners    map[int]func(View)
	nextListener int

	log zerolog.Logger
}

func New(d Deps, opts Options) *Orchestrator {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Policy == nil {
		d.Policy = app.SimplePolicy{}
	}
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		API:           d.API,
		Transport:     d.Transport,
		Devices:       d.Devices,
		Registry:      d.Registry,
		Chat:          d.Chat,
		Health:        d.Health,
		Policy:        d.Policy,
		Clock:         d.Clock,
		Opts:          opts,
		phase:         domain.PhasePreCheck,
		sessionCtx:    ctx,
		cancelSession: cancel,
		listeners:     make(map[int]func(View)),
		log:           log.With().Str("module", "orch").Str("session", opts.SessionID).Logger(),
	}
	o.Registry.OnChange(o.publish)
	o.Chat.OnMessage(func(domain.ChatMessage) { o.publish() })
	return o
}

// View is everything the UI renders, derived fresh on every call.
type View struct {
	Phase        domain.SessionPhase                     `json:"phase"`
	Connected    bool                                    `json:"connected"`
	Consent      bool                                    `json:"consent"`
	Elapsed      time.Duration                           `json:"elapsed"`
	Presentation app.Presentation                        `json:"presentation"`
	Layout       app.Arrangement                         `json:"layout"`
	Quality      map[domain.ParticipantID]app.Indicator `json:"quality"`
	Banner       *app.Banner                             `json:"banner,omitempty"`
	ChatCount    int                                     `json:"chat_count"`
}

func (o *Orchestrator) View() View {
	snap := o.Registry.Snapshot()
	pres := app.ComputePresentation(snap.Bindings)

	o.mu.Lock()
	v := View{
		Phase:     o.phase,
		Connected: o.connected,
		Consent:   o.consent,
		Elapsed:   o.elapsed,
	}
	if o.banner != nil {
		b := *o.banner
		v.Banner = &b
	}
	o.mu.Unlock()

	v.Presentation = pres
	v.Layout = app.Arrange(snap, pres, o.Opts.Viewport)
	v.Quality = o.Health.Indicators()
	v.ChatCount = o.Chat.Len()
	return v
}

// ChatLog returns the chat in receipt order.
func (o *Orchestrator) ChatLog() []domain.ChatMessage { return o.Chat.Messages() }

func (o *Orchestrator) Phase() domain.SessionPhase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Subscribe registers fn for every view change. The returned func removes it.
func (o *Orchestrator) Subscribe(fn func(View)) func() {
	o.listenersMu.Lock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = fn
	o.listenersMu.Unlock()
	return func() {
		o.listenersMu.Lock()
		delete(o.listeners, id)
		o.listenersMu.Unlock()
	}
}

// OnTick registers the duration callback. It never fires outside Active.
func (o *Orchestrator) OnTick(fn func(time.Duration)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onTick = fn
}

func (o *Orchestrator) publish() {
	o.listenersMu.Lock()
	if len(o.listeners) == 0 {
		o.listenersMu.Unlock()
		return
	}
	ids := make([]int, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(View), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.listeners[id])
	}
	o.listenersMu.Unlock()

	v := o.View()
	for _, fn := range fns {
		fn(v)
	}
}

func (o *Orchestrator) setBanner(err error, hint *app.RetryHint) {
	b := app.NewBanner(o.Policy, err, hint)
	o.mu.Lock()
	// a local hiccup never hides a pending retry banner
	if o.banner != nil && o.banner.Severity > b.Severity {
		o.mu.Unlock()
		return
	}
	o.banner = &b
	o.mu.Unlock()
	o.publish()
}

func (o *Orchestrator) DismissBanner() {
	o.mu.Lock()
	o.banner = nil
	o.mu.Unlock()
	o.publish()
}

// pump serializes transport events into the registry, chat and health
// monitor until the channel closes or the session ends.
func (o *Orchestrator) pump(ctx context.Context, events <-chan core.TransportEvent, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.dispatch(ctx, ev)
		}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, ev core.TransportEvent) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Stringer("event", ev.Type).Msg("event handler panicked")
		}
	}()

	pid := ev.Participant.ID
	switch ev.Type {
	case core.EventParticipantJoined:
		o.Registry.OnParticipantJoined(ev.Participant)
	case core.EventParticipantLeft:
		o.Registry.OnParticipantLeft(pid)
		o.Health.Forget(pid)
		o.publish()
	case core.EventTrackPublished:
		o.Registry.OnTrackPublished(pid, ev.Kind, ev.Track)
	case core.EventTrackUnpublished:
		o.Registry.OnTrackUnpublished(pid, ev.Kind)
	case core.EventTrackSubscribed:
		o.Registry.OnTrackSubscribed(pid, ev.Kind, ev.Track)
	case core.EventTrackUnsubscribed:
		o.Registry.OnTrackUnsubscribed(pid, ev.Kind)
	case core.EventDataReceived:
		sender := ev.Participant
		if known, ok := o.Registry.Participant(pid); ok {
			sender = known
		}
		o.Chat.Receive(ev.Payload, sender, ev.Topic)
	case core.EventConnectionQuality:
		if o.Health.Observe(pid, ev.Quality) {
			o.publish()
		}
	case core.EventActiveSpeakers:
		o.Registry.SetSpeaking(ev.Speakers)
	case core.EventPeerReady:
		go o.enableLocalMedia(ctx)
	case core.EventDisconnected:
		o.onConnectionLost(ev.Err)
	default:
		o.log.Debug().Stringer("event", ev.Type).Msg("ignored transport event")
	}
}
