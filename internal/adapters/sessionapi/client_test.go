package sessionapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", time.Second)
	require.NoError(t, err)
	return c
}

func TestClient_FetchJoinCredential(t *testing.T) {
	req := require.New(t)
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodGet, r.Method)
		req.Equal("/sessions/s%201/join", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"token":"tok","transport_url":"wss://media.example/ws?room=r1","room_name":"r1"}`))
	})

	cred, err := c.FetchJoinCredential(context.Background(), "s 1")

	req.NoError(err)
	req.Equal(core.JoinCredential{Token: "tok", TransportURL: "wss://media.example/ws?room=r1", RoomName: "r1"}, cred)
}

func TestClient_FetchJoinCredential_Rejects_Incomplete(t *testing.T) {
	req := require.New(t)
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"","transport_url":"not a url"}`))
	})

	_, err := c.FetchJoinCredential(context.Background(), "s1")

	req.ErrorIs(err, ErrInvalidResponse)
}

func TestClient_Status_Error(t *testing.T) {
	req := require.New(t)
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	})

	_, err := c.StartSession(context.Background(), "s1")

	var se *StatusError
	req.ErrorAs(err, &se)
	req.Equal(http.StatusNotFound, se.Code)
	req.Equal("/sessions/s1/start", se.Path)
	req.Equal("session not found", se.Body)
}

func TestClient_EndSession_Sends_Reason(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/sessions/s1/end", r.URL.Path)
		req.Equal("application/json", r.Header.Get("Content-Type"))
		var body core.EndRequest
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal(core.EndRequest{SessionID: "s1", EndedBy: "dr-who", Reason: domain.ReasonCompleted, Notes: "ok"}, body)
		_ = json.NewEncoder(w).Encode(core.Receipt{SessionID: "s1", Status: "ended", Reason: body.Reason, At: at})
	})

	receipt, err := c.EndSession(context.Background(), core.EndRequest{SessionID: "s1", EndedBy: "dr-who", Reason: domain.ReasonCompleted, Notes: "ok"})

	req.NoError(err)
	req.Equal("ended", receipt.Status)
	req.True(at.Equal(receipt.At))
}

func TestClient_EmergencyTerminate(t *testing.T) {
	req := require.New(t)
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/sessions/s1/emergency-terminate", r.URL.Path)
		var body core.TerminateRequest
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal(domain.ReasonEmergency, body.Reason)
		w.WriteHeader(http.StatusAccepted)
	})

	_, err := c.EmergencyTerminate(context.Background(), "s1", core.TerminateRequest{TerminatedBy: "dr-who", Reason: domain.ReasonEmergency})

	req.NoError(err)
}

func TestNew_Requires_Absolute_URL(t *testing.T) {
	_, err := New("/relative", time.Second)
	require.Error(t, err)
}
