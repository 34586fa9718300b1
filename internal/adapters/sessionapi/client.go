// Package sessionapi is the HTTP client of the session backend.
package sessionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var ErrInvalidResponse = errors.New("invalid session api response")

// StatusError is a non-2xx reply.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type Client struct {
	base     *url.URL
	http     *http.Client
	validate *validator.Validate
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("session api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("session api url %q: scheme and host required", baseURL)
	}
	return &Client{
		base:     u,
		http:     &http.Client{Timeout: timeout},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

type credentialResponse struct {
	Token        string `json:"token" validate:"required"`
	TransportURL string `json:"transport_url" validate:"required,url"`
	RoomName     string `json:"room_name"`
}

func (c *Client) FetchJoinCredential(ctx context.Context, sessionID string) (core.JoinCredential, error) {
	var resp credentialResponse
	if err := c.do(ctx, http.MethodGet, c.sessionPath(sessionID, "join"), nil, &resp); err != nil {
		return core.JoinCredential{}, err
	}
	if err := c.validate.Struct(resp); err != nil {
		return core.JoinCredential{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return core.JoinCredential{Token: resp.Token, TransportURL: resp.TransportURL, RoomName: resp.RoomName}, nil
}

func (c *Client) StartSession(ctx context.Context, sessionID string) (core.Receipt, error) {
	var r core.Receipt
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "start"), struct{}{}, &r)
	return r, err
}

func (c *Client) EndSession(ctx context.Context, req core.EndRequest) (core.Receipt, error) {
	var r core.Receipt
	err := c.do(ctx, http.MethodPost, c.sessionPath(req.SessionID, "end"), req, &r)
	return r, err
}

func (c *Client) EmergencyTerminate(ctx context.Context, sessionID string, req core.TerminateRequest) (core.Receipt, error) {
	var r core.Receipt
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "emergency-terminate"), req, &r)
	return r, err
}

func (c *Client) sessionPath(id, action string) string {
	return "/sessions/" + url.PathEscape(id) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	log.Debug().
		Str("module", "sessionapi").
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return nil
}
