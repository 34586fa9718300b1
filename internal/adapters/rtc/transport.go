package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyConnected = errors.New("transport already connected")
	ErrJoinRejected     = errors.New("join rejected")
	ErrNotPublishable   = errors.New("track cannot be published")
	errPeerFailed       = errors.New("peer connection failed")
)

// publishable is a captured track the peer connection can send.
type publishable interface {
	TrackLocal() webrtc.TrackLocal
}

type Options struct {
	// Identity defaults to a random id.
	Identity        domain.ParticipantID
	DisplayName     string
	ICEServers      []string
	Devices         core.DeviceProvider
	Codecs          CodecPopulator
	Clock           clockwork.Clock
	QualityInterval time.Duration
	PingPeriod      time.Duration
	JoinTimeout     time.Duration
	// LevelMaxAge bounds how long an audio level stays valid without packets.
	LevelMaxAge time.Duration
	EventBuffer int
}

func (o Options) withDefaults() Options {
	if o.Identity == "" {
		o.Identity = domain.ParticipantID(uuid.NewString())
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.QualityInterval <= 0 {
		o.QualityInterval = 2 * time.Second
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 10 * time.Second
	}
	if o.LevelMaxAge <= 0 {
		o.LevelMaxAge = time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	return o
}

// Transport implements core.Transport over one pion peer connection and a
// websocket signaling client. Each Connect starts a fresh session.
type Transport struct {
	opts Options

	mu  sync.Mutex
	cur *session
}

func NewTransport(opts Options) *Transport {
	return &Transport{opts: opts.withDefaults()}
}

func (t *Transport) LocalIdentity() domain.ParticipantID { return t.opts.Identity }

func (t *Transport) self() domain.Participant {
	return domain.Participant{ID: t.opts.Identity, Name: t.opts.DisplayName, Local: true}
}

func (t *Transport) session() (*session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return nil, domain.ErrNotConnected
	}
	return t.cur, nil
}

// Events returns the current session's stream, or a closed channel.
func (t *Transport) Events() <-chan core.TransportEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		ch := make(chan core.TransportEvent)
		close(ch)
		return ch
	}
	return t.cur.events
}

// Connect dials the signaling server, joins the room named by the url's
// "room" parameter and returns once the room state arrived. Media
// negotiation continues in the background; EventPeerReady reports its end.
func (t *Transport) Connect(ctx context.Context, rawURL, token string) error {
	t.mu.Lock()
	busy := t.cur != nil
	t.mu.Unlock()
	if busy {
		return ErrAlreadyConnected
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("transport url: %w", err)
	}
	room := u.Query().Get("room")

	api, err := NewAPI(t.opts.Codecs)
	if err != nil {
		return err
	}

	s := newSession(t)
	sig, err := dialSignal(ctx, rawURL, token, string(t.opts.Identity), s.log.With().Str("module", "rtc.signal").Logger())
	if err != nil {
		s.shutdown()
		return fmt.Errorf("dial signal: %w", err)
	}
	s.sig = sig

	pc, err := NewConnection(api, DefaultConfig(t.opts.ICEServers), string(t.opts.Identity))
	if err != nil {
		s.shutdown()
		return fmt.Errorf("peer connection: %w", err)
	}
	s.pc = pc
	pc.OnICECandidate(func(ci webrtc.ICECandidateInit) { s.signal(candidateMessage(ci)) })
	pc.OnTrack(func(ctx context.Context, tr *webrtc.TrackRemote, rcv *webrtc.RTPReceiver) {
		go s.onTrack(ctx, tr, rcv)
	})
	pc.OnStateChange(s.onPeerState)
	pc.OnData(s.onData)
	if err := pc.Start(s.ctx); err != nil {
		s.shutdown()
		return fmt.Errorf("peer start: %w", err)
	}

	go sig.writePump(s.ctx, t.opts.PingPeriod)
	go func() {
		if err := sig.readPump(s.ctx, s.handle); err != nil {
			s.lost(err)
			return
		}
		s.lost(ErrSignalClosed)
	}()

	s.signal(Message{Type: "join", ID: string(t.opts.Identity), Room: room, Name: t.opts.DisplayName})

	timer := t.opts.Clock.NewTimer(t.opts.JoinTimeout)
	defer timer.Stop()
	select {
	case err := <-s.joined:
		if err != nil {
			s.shutdown()
			return err
		}
	case <-timer.Chan():
		s.shutdown()
		return fmt.Errorf("%w: no room state", context.DeadlineExceeded)
	case <-ctx.Done():
		s.shutdown()
		return ctx.Err()
	}

	t.mu.Lock()
	if s.gone.Load() || s.ctx.Err() != nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: lost while joining", domain.ErrNotConnected)
	}
	t.cur = s
	t.mu.Unlock()
	s.log.Info().Str("room", room).Msg("joined")
	go s.qualityLoop()
	return nil
}

// Disconnect ends the current session. Events is closed on return.
func (t *Transport) Disconnect(context.Context) error {
	t.mu.Lock()
	s := t.cur
	t.cur = nil
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	s.shutdown()
	return nil
}

func (t *Transport) drop(s *session) {
	t.mu.Lock()
	if t.cur == s {
		t.cur = nil
	}
	t.mu.Unlock()
}

type envelope struct {
	Topic   string `json:"topic"`
	From    string `json:"from"`
	Payload []byte `json:"payload"`
}

func (t *Transport) PublishData(ctx context.Context, topic string, payload []byte, reliable bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := t.session()
	if err != nil {
		return err
	}
	b, err := json.Marshal(envelope{Topic: topic, From: string(t.opts.Identity), Payload: payload})
	if err != nil {
		return err
	}
	label := LabelReliable
	if !reliable {
		label = LabelLossy
	}
	return s.pc.Send(label, b)
}

func (t *Transport) SetCameraEnabled(ctx context.Context, on bool) error {
	return t.setPublished(ctx, domain.TrackCamera, on)
}

func (t *Transport) SetMicrophoneEnabled(ctx context.Context, on bool) error {
	return t.setPublished(ctx, domain.TrackMicrophone, on)
}

func (t *Transport) SetScreenShareEnabled(ctx context.Context, on bool) error {
	return t.setPublished(ctx, domain.TrackScreen, on)
}

func (t *Transport) setPublished(ctx context.Context, kind domain.TrackKind, on bool) error {
	s, err := t.session()
	if err != nil {
		return err
	}
	if !on {
		return s.unpublish(kind)
	}
	return s.publish(ctx, kind)
}

// AudioLevels reports the speaking level of every remote microphone.
func (t *Transport) AudioLevels() map[domain.ParticipantID]float64 {
	s, err := t.session()
	if err != nil {
		return nil
	}
	now := t.opts.Clock.Now()
	out := make(map[domain.ParticipantID]float64)
	s.relaysMu.Lock()
	defer s.relaysMu.Unlock()
	for _, rt := range s.relays {
		if rt.kind != domain.TrackMicrophone {
			continue
		}
		if lvl := rt.relay.Level(now, t.opts.LevelMaxAge); lvl > out[rt.owner] {
			out[rt.owner] = lvl
		}
	}
	return out
}

type publication struct {
	handle core.TrackHandle
	media  core.LocalMedia
	sender *webrtc.RTPSender
}

// session is one Connect..Disconnect span.
type session struct {
	t   *Transport
	ctx context.Context
	// cancel stops every goroutine of the session.
	cancel context.CancelFunc
	log    zerolog.Logger

	sig *signalConn
	pc  *Connection

	joined    chan error
	joinOnce  sync.Once
	readyOnce sync.Once
	lostOnce  sync.Once
	downOnce  sync.Once

	// negMu serializes offers; answers carries the reply to the pending one.
	negMu   sync.Mutex
	answers chan string

	evMu   sync.RWMutex
	closed bool
	events chan core.TransportEvent

	relaysMu sync.Mutex
	relays   map[string]*RemoteTrack

	pubMu sync.Mutex
	pubs  map[domain.TrackKind]*publication

	// uplinkLoss is the last RTCP fraction lost, in 1/256 units.
	uplinkLoss atomic.Uint32
	gone       atomic.Bool
}

func newSession(t *Transport) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		t:       t,
		ctx:     ctx,
		cancel:  cancel,
		log:     log.With().Str("module", "rtc.transport").Str("identity", string(t.opts.Identity)).Logger(),
		joined:  make(chan error, 1),
		answers: make(chan string, 1),
		events:  make(chan core.TransportEvent, t.opts.EventBuffer),
		relays:  make(map[string]*RemoteTrack),
		pubs:    make(map[domain.TrackKind]*publication),
	}
}

func (s *session) emit(ev core.TransportEvent) {
	s.evMu.RLock()
	defer s.evMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *session) signal(m Message) {
	if s.sig == nil {
		return
	}
	if err := s.sig.SendJSON(m); err != nil {
		s.log.Warn().Err(err).Str("type", m.Type).Msg("signal send failed")
	}
}

func (s *session) handle(m Message) {
	switch m.Type {
	case "room_state":
		s.joinOnce.Do(func() { s.joined <- nil })
		for _, mem := range m.Members {
			s.memberJoined(mem)
		}
		go s.negotiate()
	case "error":
		err := fmt.Errorf("%w: %s", ErrJoinRejected, m.Error)
		rejected := false
		s.joinOnce.Do(func() {
			rejected = true
			s.joined <- err
		})
		if !rejected {
			s.log.Warn().Str("error", m.Error).Msg("signal error")
		}
	case "member_joined", "member_updated":
		if m.User != nil {
			s.memberJoined(*m.User)
		}
	case "member_left":
		if m.User != nil && m.User.ID != string(s.t.opts.Identity) {
			s.emit(core.TransportEvent{Type: core.EventParticipantLeft, Participant: domain.Participant{ID: domain.ParticipantID(m.User.ID)}})
		}
	case "answer":
		select {
		case s.answers <- m.SDP:
		default:
			s.log.Warn().Msg("unexpected answer")
		}
	case "offer":
		go s.answer(m.SDP)
	case "candidate":
		if err := s.pc.AddICECandidate(m.iceCandidate()); err != nil {
			s.log.Error().Err(err).Msg("add ice candidate")
		}
	case "pong", "left", "whoami":
	default:
		s.log.Warn().Str("type", m.Type).Msg("unknown signal")
	}
}

func (s *session) memberJoined(m Member) {
	if m.ID == string(s.t.opts.Identity) {
		return
	}
	p, err := domain.NewParticipant(domain.ParticipantID(m.ID), m.Username, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("member without id")
		return
	}
	s.emit(core.TransportEvent{Type: core.EventParticipantJoined, Participant: *p})
}

// negotiate sends a fresh offer and applies the answer.
func (s *session) negotiate() {
	s.negMu.Lock()
	defer s.negMu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	offer, err := s.pc.CreateOffer()
	if err != nil {
		s.log.Error().Err(err).Msg("create offer")
		return
	}
	s.signal(Message{Type: "offer", SDP: offer.SDP})

	timer := s.t.opts.Clock.NewTimer(s.t.opts.JoinTimeout)
	defer timer.Stop()
	select {
	case sdp := <-s.answers:
		if err := s.pc.ApplyAnswer(sdp); err != nil {
			s.log.Error().Err(err).Msg("apply answer")
		}
	case <-timer.Chan():
		s.log.Warn().Msg("no answer to offer")
	case <-s.ctx.Done():
	}
}

// answer handles a server side renegotiation.
func (s *session) answer(sdp string) {
	s.negMu.Lock()
	defer s.negMu.Unlock()
	ans, err := s.pc.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
	if err != nil {
		s.log.Error().Err(err).Msg("apply offer")
		return
	}
	s.signal(Message{Type: "answer", SDP: ans.SDP})
}

func (s *session) onPeerState(st webrtc.PeerConnectionState) {
	switch st {
	case webrtc.PeerConnectionStateConnected:
		s.readyOnce.Do(func() { s.emit(core.TransportEvent{Type: core.EventPeerReady}) })
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		s.lost(errPeerFailed)
	}
}

// onTrack relays one remote track for its lifetime.
func (s *session) onTrack(ctx context.Context, tr *webrtc.TrackRemote, rcv *webrtc.RTPReceiver) {
	owner, kind, err := ParseStreamID(tr.StreamID(), tr.Kind())
	if err != nil {
		s.log.Warn().Err(err).Str("stream_id", tr.StreamID()).Msg("unattributed track")
		return
	}
	if owner == s.t.opts.Identity {
		return
	}
	relay := NewRelay(func() (*rtp.Packet, error) {
		pkt, _, err := tr.ReadRTP()
		return pkt, err
	}, levelExtension(rcv))
	rt := NewRemoteTrack(tr.ID(), owner, kind, relay)

	s.relaysMu.Lock()
	s.relays[rt.id] = rt
	s.relaysMu.Unlock()

	who := domain.Participant{ID: owner}
	s.emit(core.TransportEvent{Type: core.EventTrackPublished, Participant: who, Kind: kind})
	s.emit(core.TransportEvent{Type: core.EventTrackSubscribed, Participant: who, Kind: kind, Track: rt})

	logger := s.log.With().Str("module", "rtc.relay").Str("participant", string(owner)).Stringer("kind", kind).Logger()
	_ = relay.Run(ctx, s.t.opts.Clock.Now, &logger)

	s.relaysMu.Lock()
	delete(s.relays, rt.id)
	s.relaysMu.Unlock()
	s.emit(core.TransportEvent{Type: core.EventTrackUnsubscribed, Participant: who, Kind: kind})
	s.emit(core.TransportEvent{Type: core.EventTrackUnpublished, Participant: who, Kind: kind})
}

func levelExtension(rcv *webrtc.RTPReceiver) uint8 {
	if rcv == nil {
		return 0
	}
	for _, h := range rcv.GetParameters().HeaderExtensions {
		if h.URI == audioLevelURI {
			return uint8(h.ID)
		}
	}
	return 0
}

func (s *session) onData(label string, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Debug().Err(err).Str("channel", label).Msg("bad data envelope")
		return
	}
	if env.From == "" || env.From == string(s.t.opts.Identity) {
		return
	}
	s.emit(core.TransportEvent{
		Type:        core.EventDataReceived,
		Participant: domain.Participant{ID: domain.ParticipantID(env.From)},
		Topic:       env.Topic,
		Payload:     env.Payload,
	})
}

func (s *session) publish(ctx context.Context, kind domain.TrackKind) error {
	devices := s.t.opts.Devices
	if devices == nil {
		return fmt.Errorf("%w: no device provider", domain.ErrNoDevice)
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if _, ok := s.pubs[kind]; ok {
		return nil
	}

	pub := &publication{}
	if kind == domain.TrackScreen {
		h, err := devices.CaptureScreen(ctx)
		if err != nil {
			return err
		}
		pub.handle = h
	} else {
		media, err := devices.Acquire(ctx, core.DeviceRequest{
			Camera:     kind == domain.TrackCamera,
			Microphone: kind == domain.TrackMicrophone,
		})
		if media != nil {
			pub.media = media
			for _, h := range media.Tracks() {
				if h.Kind() == kind {
					pub.handle = h
				}
			}
		}
		if pub.handle == nil {
			s.releasePub(pub)
			if err == nil {
				err = domain.ErrNoDevice
			}
			return fmt.Errorf("%s: %w", kind, err)
		}
	}

	p, ok := pub.handle.(publishable)
	if !ok {
		s.releasePub(pub)
		return fmt.Errorf("%w: %s", ErrNotPublishable, kind)
	}
	sender, err := s.pc.AddTrack(labeledTrack{TrackLocal: p.TrackLocal(), stream: StreamID(s.t.opts.Identity, kind)})
	if err != nil {
		s.releasePub(pub)
		return fmt.Errorf("add %s track: %w", kind, err)
	}
	pub.sender = sender
	s.pubs[kind] = pub
	go s.readRTCP(sender)

	s.log.Info().Stringer("kind", kind).Msg("track published")
	s.emit(core.TransportEvent{Type: core.EventTrackPublished, Participant: s.t.self(), Kind: kind, Track: pub.handle})
	go s.negotiate()
	return nil
}

func (s *session) unpublish(kind domain.TrackKind) error {
	s.pubMu.Lock()
	pub, ok := s.pubs[kind]
	delete(s.pubs, kind)
	s.pubMu.Unlock()
	if !ok {
		return nil
	}
	var err error
	if pub.sender != nil {
		err = s.pc.RemoveTrack(pub.sender)
	}
	s.releasePub(pub)
	s.emit(core.TransportEvent{Type: core.EventTrackUnpublished, Participant: s.t.self(), Kind: kind})
	go s.negotiate()
	return err
}

func (s *session) releasePub(pub *publication) {
	if pub.handle != nil {
		if err := pub.handle.Stop(); err != nil {
			s.log.Warn().Err(err).Stringer("kind", pub.handle.Kind()).Msg("track stop")
		}
	}
	if pub.media != nil {
		if err := pub.media.Release(); err != nil {
			s.log.Warn().Err(err).Msg("media release")
		}
	}
}

// readRTCP keeps the latest uplink loss from receiver reports.
func (s *session) readRTCP(sender *webrtc.RTPSender) {
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range pkts {
			switch p := pkt.(type) {
			case *rtcp.ReceiverReport:
				for _, r := range p.Reports {
					s.uplinkLoss.Store(uint32(r.FractionLost))
				}
			case *rtcp.PictureLossIndication:
				s.log.Debug().Uint32("ssrc", p.MediaSSRC).Msg("picture loss")
			}
		}
	}
}

// qualityLoop rates the local uplink and every remote downlink on the clock.
func (s *session) qualityLoop() {
	tk := s.t.opts.Clock.NewTicker(s.t.opts.QualityInterval)
	defer tk.Stop()
	prev := make(map[domain.ParticipantID]RelayStats)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-tk.Chan():
			s.sampleQuality(prev)
		}
	}
}

func (s *session) sampleQuality(prev map[domain.ParticipantID]RelayStats) {
	rtt, _ := s.pc.RoundTrip()
	local := app.Sample{
		Connected:  s.pc.State() == webrtc.PeerConnectionStateConnected,
		PacketLoss: float64(s.uplinkLoss.Load()) / 256,
		RTT:        rtt,
	}
	s.emit(core.TransportEvent{Type: core.EventConnectionQuality, Participant: s.t.self(), Quality: app.ClassifyQuality(local)})

	cur := make(map[domain.ParticipantID]RelayStats)
	s.relaysMu.Lock()
	for _, rt := range s.relays {
		st := rt.relay.Stats()
		acc := cur[rt.owner]
		acc.Received += st.Received
		acc.Lost += st.Lost
		cur[rt.owner] = acc
	}
	s.relaysMu.Unlock()

	for owner, st := range cur {
		last := prev[owner]
		delta := RelayStats{}
		if st.Received >= last.Received && st.Lost >= last.Lost {
			delta = RelayStats{Received: st.Received - last.Received, Lost: st.Lost - last.Lost}
		}
		q := app.ClassifyQuality(app.Sample{Connected: local.Connected, PacketLoss: delta.LossRate(), RTT: rtt})
		s.emit(core.TransportEvent{Type: core.EventConnectionQuality, Participant: domain.Participant{ID: owner}, Quality: q})
	}
	clear(prev)
	for owner, st := range cur {
		prev[owner] = st
	}
}

// lost reports an unsolicited end of the session once, then shuts it down.
func (s *session) lost(cause error) {
	if s.ctx.Err() != nil {
		return
	}
	s.lostOnce.Do(func() {
		s.log.Warn().Err(cause).Msg("session lost")
		s.gone.Store(true)
		s.t.drop(s)
		s.joinOnce.Do(func() { s.joined <- cause })
		s.emit(core.TransportEvent{Type: core.EventDisconnected, Err: cause})
		s.shutdown()
	})
}

func (s *session) shutdown() {
	s.downOnce.Do(func() {
		s.cancel()
		if s.sig != nil {
			s.sig.Close()
		}
		if s.pc != nil {
			s.pc.Close()
		}
		s.pubMu.Lock()
		pubs := s.pubs
		s.pubs = make(map[domain.TrackKind]*publication)
		s.pubMu.Unlock()
		for _, pub := range pubs {
			s.releasePub(pub)
		}

		s.evMu.Lock()
		s.closed = true
		close(s.events)
		s.evMu.Unlock()
		s.log.Info().Msg("session closed")
	})
}
