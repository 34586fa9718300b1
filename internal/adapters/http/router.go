package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const draftKey = "chat_draft"

// Controller is the part of the orchestrator the control API drives.
type Controller interface {
	View() orch.View
	Subscribe(fn func(orch.View)) func()
	ChatLog() []domain.ChatMessage
	SendChat(ctx context.Context, text string) (domain.ChatMessage, error)
	EnumerateDevices(ctx context.Context) ([]core.Device, error)
	PrepareDevices(ctx context.Context, req core.DeviceRequest) (orch.DeviceStatus, error)
	SetConsent(ok bool) error
	Join(ctx context.Context) error
	Retry(ctx context.Context) error
	ToggleScreenShare(ctx context.Context, on bool) error
	End(ctx context.Context, reason domain.EndReason, notes string) (core.Receipt, error)
	EmergencyTerminate(ctx context.Context, notes string) (core.Receipt, error)
	DismissBanner()
}

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("MeetSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Int("port", cfg.Port).Msg("router setup")

	h := &handlers{ctl: ctl}
	views := &viewStream{ctl: ctl, readLimit: cfg.ReadLimit, pingPeriod: cfg.PingPeriod}

	api := r.Group("/api")
	api.GET("/view", h.view)
	api.GET("/chat", h.chatLog)
	api.POST("/chat", h.sendChat)
	api.GET("/devices", h.listDevices)
	api.POST("/devices", h.prepareDevices)
	api.POST("/consent", h.consent)
	api.POST("/join", h.join)
	api.POST("/retry", h.retry)
	api.POST("/screen", h.screen)
	api.POST("/end", h.end)
	api.POST("/emergency", h.emergency)
	api.DELETE("/banner", h.dismissBanner)
	api.GET("/ws/view", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws view endpoint hit")
		views.handle(ctx, c)
	})

	return r
}

type handlers struct {
	ctl Controller
}

type errorBody struct {
	Error string     `json:"error"`
	View  *orch.View `json:"view,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrReasonRequired),
		errors.Is(err, domain.ErrDisplayNameEmpty):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConsentRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, domain.ErrInvalidPhase):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionEnded):
		return http.StatusGone
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotConnected),
		errors.Is(err, domain.ErrNoDevice):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrFetchCredential),
		errors.Is(err, domain.ErrConnect):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *handlers) fail(c *gin.Context, err error, withView bool) {
	body := errorBody{Error: err.Error()}
	if withView {
		v := h.ctl.View()
		body.View = &v
	}
	log.Warn().Str("module", "adapters.http").Str("path", c.FullPath()).Err(err).Msg("request failed")
	c.JSON(statusFor(err), body)
}

func (h *handlers) view(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctl.View())
}

func (h *handlers) chatLog(c *gin.Context) {
	draft, _ := sessions.Default(c).Get(draftKey).(string)
	c.JSON(http.StatusOK, gin.H{
		"messages": h.ctl.ChatLog(),
		"draft":    draft,
	})
}

func (h *handlers) sendChat(c *gin.Context) {
	var p struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "bad_payload"})
		return
	}
	sess := sessions.Default(c)
	msg, err := h.ctl.SendChat(c.Request.Context(), p.Text)
	if err != nil {
		var se *app.SendError
		if errors.As(err, &se) {
			// keep the draft for the input box
			sess.Set(draftKey, se.Draft)
			if serr := sess.Save(); serr != nil {
				log.Error().Err(serr).Str("module", "adapters.http").Msg("draft save")
			}
		}
		h.fail(c, err, false)
		return
	}
	sess.Delete(draftKey)
	if serr := sess.Save(); serr != nil {
		log.Error().Err(serr).Str("module", "adapters.http").Msg("draft clear")
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *handlers) listDevices(c *gin.Context) {
	list, err := h.ctl.EnumerateDevices(c.Request.Context())
	if err != nil {
		h.fail(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": list})
}

func (h *handlers) prepareDevices(c *gin.Context) {
	req := core.DeviceRequest{Camera: true, Microphone: true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody{Error: "bad_payload"})
			return
		}
	}
	st, err := h.ctl.PrepareDevices(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, false)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) consent(c *gin.Context) {
	var p struct {
		Accepted bool `json:"accepted"`
	}
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "bad_payload"})
		return
	}
	if err := h.ctl.SetConsent(p.Accepted); err != nil {
		h.fail(c, err, false)
		return
	}
	c.JSON(http.StatusOK, h.ctl.View())
}

// join answers with the view even when the connection failed: the session is
// active and the banner carries the retry.
func (h *handlers) join(c *gin.Context) {
	if err := h.ctl.Join(c.Request.Context()); err != nil {
		h.fail(c, err, true)
		return
	}
	c.JSON(http.StatusOK, h.ctl.View())
}

func (h *handlers) retry(c *gin.Context) {
	if err := h.ctl.Retry(c.Request.Context()); err != nil {
		h.fail(c, err, true)
		return
	}
	c.JSON(http.StatusOK, h.ctl.View())
}

func (h *handlers) screen(c *gin.Context) {
	var p struct {
		On bool `json:"on"`
	}
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "bad_payload"})
		return
	}
	if err := h.ctl.ToggleScreenShare(c.Request.Context(), p.On); err != nil {
		h.fail(c, err, false)
		return
	}
	c.JSON(http.StatusOK, h.ctl.View())
}

type endBody struct {
	Recorded bool         `json:"recorded"`
	Receipt  core.Receipt `json:"receipt"`
	Warning  string       `json:"warning,omitempty"`
	View     orch.View    `json:"view"`
}

// ended answers a terminal action. Once local teardown ran the call counts
// as done for the user; a backend failure only downgrades it to a warning.
func (h *handlers) ended(c *gin.Context, receipt core.Receipt, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, endBody{Recorded: true, Receipt: receipt, View: h.ctl.View()})
	case errors.Is(err, domain.ErrNotRecorded):
		log.Warn().Str("module", "adapters.http").Str("path", c.FullPath()).Err(err).Msg("ended locally, backend not updated")
		c.JSON(http.StatusAccepted, endBody{Receipt: receipt, Warning: err.Error(), View: h.ctl.View()})
	default:
		h.fail(c, err, true)
	}
}

func (h *handlers) end(c *gin.Context) {
	var p struct {
		Reason domain.EndReason `json:"reason"`
		Notes  string           `json:"notes"`
	}
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "bad_payload"})
		return
	}
	receipt, err := h.ctl.End(c.Request.Context(), p.Reason, p.Notes)
	h.ended(c, receipt, err)
}

func (h *handlers) emergency(c *gin.Context) {
	var p struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&p)
	receipt, err := h.ctl.EmergencyTerminate(c.Request.Context(), p.Notes)
	h.ended(c, receipt, err)
}

func (h *handlers) dismissBanner(c *gin.Context) {
	h.ctl.DismissBanner()
	c.Status(http.StatusNoContent)
}
