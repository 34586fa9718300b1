package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// viewStream pushes every view change to connected UIs.
type viewStream struct {
	ctl        Controller
	readLimit  int64
	pingPeriod time.Duration
}

func (s *viewStream) handle(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("websocket upgrade")
		return
	}
	conn := newViewConn(ws)

	// current state first so the UI never renders an empty frame
	if err := conn.TrySend(s.ctl.View()); err != nil {
		conn.Close()
		return
	}
	unsubscribe := s.ctl.Subscribe(func(v orch.View) {
		if err := conn.TrySend(v); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("view dropped, closing slow client")
			conn.Close()
		}
	})

	connCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		defer unsubscribe()
		conn.readPump(s.readLimit, s.pingPeriod)
	}()
	go conn.writePump(connCtx, s.pingPeriod)
}

type viewConn struct {
	conn *websocket.Conn
	send chan []byte
	mu   sync.Mutex
	done bool
}

func newViewConn(ws *websocket.Conn) *viewConn {
	return &viewConn{conn: ws, send: make(chan []byte, 16)}
}

func (c *viewConn) TrySend(v orch.View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *viewConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	close(c.send)
	_ = c.conn.Close()
}

func (c *viewConn) writePump(ctx context.Context, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; the view socket is push-only.
func (c *viewConn) readPump(limit int64, pingPeriod time.Duration) {
	defer c.Close()
	pongWait := pingPeriod * 10 / 9
	c.conn.SetReadLimit(limit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
