package rtc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	LabelReliable = "reliable"
	LabelLossy    = "lossy"

	audioLevelURI = "urn:ietf:params:rtp-hdrext:ssrc-audio-level"
)

var ErrNoChannel = errors.New("data channel not open")

// CodecPopulator registers capture codecs on the media engine.
type CodecPopulator interface {
	Populate(*webrtc.MediaEngine)
}

// DefaultConfig gathers host candidates only when no servers are given.
func DefaultConfig(iceServers []string) webrtc.Configuration {
	if len(iceServers) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
}

// NewAPI builds a webrtc API with default codecs and interceptors plus the
// audio level header extension used for speaker detection.
func NewAPI(codecs CodecPopulator) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	if codecs != nil {
		codecs.Populate(m)
	}
	if err := m.RegisterHeaderExtension(webrtc.RTPHeaderExtensionCapability{URI: audioLevelURI}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register audio level: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir)), nil
}

// Connection is the single client peer connection with its two data channels.
type Connection struct {
	pc     *webrtc.PeerConnection
	id     string
	cancel context.CancelFunc
	log    zerolog.Logger

	reliable *webrtc.DataChannel
	lossy    *webrtc.DataChannel

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onState func(webrtc.PeerConnectionState)
	onData  func(label string, data []byte)
}

func NewConnection(api *webrtc.API, cfg webrtc.Configuration, id string) (*Connection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Connection{
		pc:  pc,
		id:  id,
		log: log.With().Str("module", "rtc.conn").Str("identity", id).Logger(),
	}, nil
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onICE = fn }

func (c *Connection) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.onTrack = fn
}

func (c *Connection) OnStateChange(fn func(webrtc.PeerConnectionState)) { c.onState = fn }

func (c *Connection) OnData(fn func(label string, data []byte)) { c.onData = fn }

// Start installs the handlers and opens the data channels. Callbacks must be
// set before Start.
func (c *Connection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.log.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.log.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			cancel()
		}
		if c.onState != nil {
			c.onState(s)
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && c.onICE != nil {
			c.onICE(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.log.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if c.onTrack != nil {
			c.onTrack(ctx, track, receiver)
		}
	})

	var err error
	if c.reliable, err = c.openChannel(LabelReliable, nil); err != nil {
		return err
	}
	ordered, retransmits := false, uint16(0)
	c.lossy, err = c.openChannel(LabelLossy, &webrtc.DataChannelInit{Ordered: &ordered, MaxRetransmits: &retransmits})
	return err
}

func (c *Connection) openChannel(label string, init *webrtc.DataChannelInit) (*webrtc.DataChannel, error) {
	dc, err := c.pc.CreateDataChannel(label, init)
	if err != nil {
		return nil, fmt.Errorf("data channel %s: %w", label, err)
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if c.onData != nil {
			c.onData(label, msg.Data)
		}
	})
	return dc, nil
}

// CreateOffer returns the local offer once ICE gathering completes.
func (c *Connection) CreateOffer() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	<-gatherComplete
	return c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyAnswer(sdp string) error {
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (c *Connection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return c.pc.LocalDescription(), nil
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *Connection) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return c.pc.AddTrack(track)
}

func (c *Connection) RemoveTrack(sender *webrtc.RTPSender) error {
	return c.pc.RemoveTrack(sender)
}

// Send writes on the named data channel.
func (c *Connection) Send(label string, data []byte) error {
	dc := c.reliable
	if label == LabelLossy {
		dc = c.lossy
	}
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("%w: %s", ErrNoChannel, label)
	}
	return dc.Send(data)
}

func (c *Connection) State() webrtc.PeerConnectionState { return c.pc.ConnectionState() }

// RoundTrip reports the current RTT of the nominated candidate pair.
func (c *Connection) RoundTrip() (time.Duration, bool) {
	for _, s := range c.pc.GetStats() {
		pair, ok := s.(webrtc.ICECandidatePairStats)
		if !ok || !pair.Nominated || pair.State != webrtc.StatsICECandidatePairStateSucceeded {
			continue
		}
		return time.Duration(pair.CurrentRoundTripTime * float64(time.Second)), true
	}
	return 0, false
}

func (c *Connection) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			c.log.Error().Err(err).Msg("close error")
		} else {
			c.log.Info().Msg("closed")
		}
	}
}
