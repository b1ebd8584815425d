package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/solvia-digital/whatsflow/internal/domain"
	"github.com/solvia-digital/whatsflow/internal/middleware"
	"github.com/solvia-digital/whatsflow/internal/session"
	"github.com/solvia-digital/whatsflow/internal/transport"
)

type sentText struct {
	userID string
	text   string
	opts   *transport.SendOptions
}

type fakeTransport struct {
	texts []sentText
	err   error
}

func (t *fakeTransport) SendText(_ context.Context, userID, text string, opts *transport.SendOptions) error {
	if t.err != nil {
		return t.err
	}
	t.texts = append(t.texts, sentText{userID, text, opts})
	return nil
}

func (t *fakeTransport) SendFile(_ context.Context, _, _, _, _ string, _ *transport.SendOptions) error {
	return t.err
}

type fakeFlows struct {
	entries []domain.Flow
	err     error
}

func (f *fakeFlows) List(_ context.Context) ([]domain.Flow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *fakeFlows) SystemPrompt(_ context.Context) (string, error) { return "", nil }

func (f *fakeFlows) Scheduled(_ context.Context) ([]domain.ScheduledMessage, error) {
	return nil, nil
}

type fakeBroadcasts struct {
	stats     domain.BroadcastStats
	statsErr  error
	delivered int
	checkErr  error
	restarted bool
}

func (b *fakeBroadcasts) Stats(_ context.Context) (domain.BroadcastStats, error) {
	return b.stats, b.statsErr
}

func (b *fakeBroadcasts) CheckNow(_ context.Context) (int, error) {
	return b.delivered, b.checkErr
}

func (b *fakeBroadcasts) Restart() { b.restarted = true }

type env struct {
	router     chi.Router
	transport  *fakeTransport
	flows      *fakeFlows
	blacklist  *session.Blacklist
	broadcasts *fakeBroadcasts
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		transport:  &fakeTransport{},
		flows:      &fakeFlows{},
		blacklist:  session.NewBlacklist(),
		broadcasts: &fakeBroadcasts{},
	}
	h := NewAdminHandler(e.transport, e.flows, e.blacklist, e.broadcasts)

	e.router = chi.NewRouter()
	e.router.Use(middleware.AdminAuth("secret-token"))
	h.RegisterRoutes(e.router)
	return e
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Admin-Token", "secret-token")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsMissingToken(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/scheduled-stats", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSendMessageDeliversDirectly(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	rec := e.do(http.MethodPost, "/v1/messages",
		`{"number":"5215550001","message":"hola","urlMedia":"https://cdn.example.com/p.png"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "sended" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if len(e.transport.texts) != 1 {
		t.Fatalf("expected one send, got %d", len(e.transport.texts))
	}
	sent := e.transport.texts[0]
	if sent.userID != "5215550001" || sent.text != "hola" {
		t.Fatalf("unexpected send %+v", sent)
	}
	if sent.opts == nil || sent.opts.MediaURL != "https://cdn.example.com/p.png" {
		t.Fatalf("media not attached: %+v", sent.opts)
	}
}

func TestSendMessageValidation(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"number":`},
		{"missing number", `{"message":"hola"}`},
		{"missing message", `{"number":"521"}`},
	}
	for _, tc := range cases {
		if rec := e.do(http.MethodPost, "/v1/messages", tc.body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestSendMessageTransportFailure(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.transport.err = errors.New("gateway down")
	rec := e.do(http.MethodPost, "/v1/messages", `{"number":"521","message":"hola"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestTriggerRegisterSubstitutesName(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.flows.entries = []domain.Flow{
		{Keyword: "register", Answer: "¡Bienvenido {{name}}! Gracias por registrarte."},
	}
	rec := e.do(http.MethodPost, "/v1/register", `{"number":"521","name":"Ana"}`)

	if rec.Code != http.StatusOK || rec.Body.String() != "trigger" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if len(e.transport.texts) != 1 {
		t.Fatalf("expected one send, got %d", len(e.transport.texts))
	}
	if got := e.transport.texts[0].text; got != "¡Bienvenido Ana! Gracias por registrarte." {
		t.Fatalf("placeholder not substituted: %q", got)
	}
}

func TestTriggerSamplesRequiresConfiguredFlow(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	rec := e.do(http.MethodPost, "/v1/samples", `{"number":"521","name":"Ana"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("missing flow must be a 500, got %d", rec.Code)
	}
}

func TestBlacklistAddAndRemove(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	rec := e.do(http.MethodPost, "/v1/blacklist", `{"number":"521","intent":"add"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !e.blacklist.Contains("521") {
		t.Fatal("number must be blacklisted after add")
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["status"] != "ok" || resp["intent"] != "add" {
		t.Fatalf("unexpected response %v", resp)
	}

	rec = e.do(http.MethodPost, "/v1/blacklist", `{"number":"521","intent":"remove"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if e.blacklist.Contains("521") {
		t.Fatal("number must be cleared after remove")
	}
}

func TestBlacklistRejectsUnknownIntent(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	rec := e.do(http.MethodPost, "/v1/blacklist", `{"number":"521","intent":"purge"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestScheduledStats(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.broadcasts.stats = domain.BroadcastStats{
		Scheduled:   3,
		Due:         1,
		Deliveries:  7,
		LastCheckAt: &now,
		Running:     true,
	}

	rec := e.do(http.MethodGet, "/v1/scheduled-stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats domain.BroadcastStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if stats.Scheduled != 3 || stats.Deliveries != 7 || !stats.Running {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestScheduledCheckAndRestart(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.broadcasts.delivered = 4

	rec := e.do(http.MethodPost, "/v1/scheduled-check", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["delivered"].(float64) != 4 {
		t.Fatalf("unexpected response %v", resp)
	}

	rec = e.do(http.MethodPost, "/v1/scheduled-restart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !e.broadcasts.restarted {
		t.Fatal("restart must reach the broadcast service")
	}
}

func TestScheduledCheckFailure(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.broadcasts.checkErr = errors.New("sheet unreachable")
	rec := e.do(http.MethodPost, "/v1/scheduled-check", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
