package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrSignalClosed = errors.New("signal connection closed")
)

// Member is a room member as announced by the signaling server.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Message is the flat signaling envelope; only the fields relevant to Type
// are set.
type Message struct {
	Type          string   `json:"type"`
	ID            string   `json:"id,omitempty"`
	Room          string   `json:"room,omitempty"`
	RoomName      string   `json:"room_name,omitempty"`
	Name          string   `json:"name,omitempty"`
	SDP           string   `json:"sdp,omitempty"`
	Candidate     string   `json:"candidate,omitempty"`
	SDPMid        string   `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16  `json:"sdpMLineIndex,omitempty"`
	Members       []Member `json:"members,omitempty"`
	User          *Member  `json:"user,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func candidateMessage(ci webrtc.ICECandidateInit) Message {
	m := Message{Type: "candidate", Candidate: ci.Candidate, SDPMLineIndex: ci.SDPMLineIndex}
	if ci.SDPMid != nil {
		m.SDPMid = *ci.SDPMid
	}
	return m
}

func (m Message) iceCandidate() webrtc.ICECandidateInit {
	ci := webrtc.ICECandidateInit{Candidate: m.Candidate, SDPMLineIndex: m.SDPMLineIndex}
	if m.SDPMid != "" {
		mid := m.SDPMid
		ci.SDPMid = &mid
	}
	return ci
}

// signalConn is the client side of the signaling socket.
type signalConn struct {
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// dialSignal connects with the join token in the query and the identity in
// the client token cookie.
func dialSignal(ctx context.Context, rawURL, token, identity string, logger zerolog.Logger) (*signalConn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Cookie", (&http.Cookie{Name: "ct", Value: identity}).String())

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &signalConn{conn: ws, send: make(chan []byte, 32), log: logger}, nil
}

func (c *signalConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrSignalClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *signalConn) SendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

func (c *signalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *signalConn) writePump(ctx context.Context, pingPeriod time.Duration) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		var data []byte
		select {
		case <-ctx.Done():
			c.log.Info().Msg("writePump ctx done")
			return
		case <-ping.C:
			data = []byte(`{"type":"ping"}`)
		case b, ok := <-c.send:
			if !ok {
				c.log.Debug().Msg("writePump channel closed")
				return
			}
			data = b
		}
		if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			c.log.Error().Err(err).Msg("writePump set deadline")
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.log.Error().Err(err).Msg("writePump write error")
			return
		}
	}
}

// readPump decodes messages until the socket fails. The returned error is
// nil only when ctx ended first.
func (c *signalConn) readPump(ctx context.Context, handle func(Message)) error {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn().Err(err).Msg("readPump read error")
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Error().Err(err).Msg("bad json")
			continue
		}
		handle(msg)
	}
}
