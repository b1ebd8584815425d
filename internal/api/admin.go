package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/solvia-digital/whatsflow/internal/domain"
	"github.com/solvia-digital/whatsflow/internal/flows"
	"github.com/solvia-digital/whatsflow/internal/session"
	"github.com/solvia-digital/whatsflow/internal/transport"
)

// Named flow keywords the trigger endpoints dispatch.
const (
	registerFlowName = "register"
	samplesFlowName  = "samples"
)

// BroadcastService is the scheduled-broadcast surface the admin API
// exposes.
type BroadcastService interface {
	Stats(ctx context.Context) (domain.BroadcastStats, error)
	CheckNow(ctx context.Context) (int, error)
	Restart()
}

// AdminHandler handles the /v1 administrative endpoints. Direct sends
// bypass the dispatch pipeline and the active flag: they are
// human-initiated, not automated.
type AdminHandler struct {
	transport  transport.Transport
	flows      flows.Source
	blacklist  *session.Blacklist
	broadcasts BroadcastService
}

// NewAdminHandler creates the admin handler with its collaborators.
func NewAdminHandler(tr transport.Transport, src flows.Source, bl *session.Blacklist, bc BroadcastService) *AdminHandler {
	return &AdminHandler{
		transport:  tr,
		flows:      src,
		blacklist:  bl,
		broadcasts: bc,
	}
}

// RegisterRoutes registers the admin routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", h.SendMessage)
		r.Post("/register", h.TriggerRegister)
		r.Post("/samples", h.TriggerSamples)
		r.Post("/blacklist", h.UpdateBlacklist)
		r.Get("/scheduled-stats", h.ScheduledStats)
		r.Post("/scheduled-check", h.ScheduledCheck)
		r.Post("/scheduled-restart", h.ScheduledRestart)
	})
}

type sendMessageRequest struct {
	Number   string `json:"number"`
	Message  string `json:"message"`
	URLMedia string `json:"urlMedia,omitempty"`
}

// SendMessage delivers a text (optionally with media) straight to a user.
func (h *AdminHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Number == "" || req.Message == "" {
		Error(w, http.StatusBadRequest, "number and message are required")
		return
	}

	var opts *transport.SendOptions
	if req.URLMedia != "" {
		opts = &transport.SendOptions{MediaURL: req.URLMedia}
	}
	if err := h.transport.SendText(r.Context(), req.Number, req.Message, opts); err != nil {
		slog.Error("admin direct send failed", "number", req.Number, "error", err)
		Error(w, http.StatusInternalServerError, "send failed")
		return
	}

	slog.Info("admin direct send delivered", "number", req.Number)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("sended"))
}

type triggerRequest struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

// TriggerRegister dispatches the registration flow to a user.
func (h *AdminHandler) TriggerRegister(w http.ResponseWriter, r *http.Request) {
	h.triggerNamedFlow(w, r, registerFlowName)
}

// TriggerSamples dispatches the samples flow to a user.
func (h *AdminHandler) TriggerSamples(w http.ResponseWriter, r *http.Request) {
	h.triggerNamedFlow(w, r, samplesFlowName)
}

// triggerNamedFlow sends the named flow's answer to the user, with the
// {{name}} placeholder filled from the request.
func (h *AdminHandler) triggerNamedFlow(w http.ResponseWriter, r *http.Request, flowName string) {
	var req triggerRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Number == "" {
		Error(w, http.StatusBadRequest, "number is required")
		return
	}

	entries, err := h.flows.List(r.Context())
	if err != nil {
		slog.Error("flow source unavailable for trigger", "flow", flowName, "error", err)
		Error(w, http.StatusInternalServerError, "flow source unavailable")
		return
	}
	flow, ok := flows.FindNamed(entries, flowName)
	if !ok {
		slog.Error("trigger flow not found in sheet", "flow", flowName)
		Error(w, http.StatusInternalServerError, "flow not configured")
		return
	}

	text := strings.ReplaceAll(flow.Answer, "{{name}}", req.Name)
	var opts *transport.SendOptions
	if flow.HasMedia() {
		opts = &transport.SendOptions{MediaURL: strings.TrimSpace(flow.Media)}
	}
	if err := h.transport.SendText(r.Context(), req.Number, text, opts); err != nil {
		slog.Error("trigger send failed", "flow", flowName, "number", req.Number, "error", err)
		Error(w, http.StatusInternalServerError, "send failed")
		return
	}

	slog.Info("flow trigger delivered", "flow", flowName, "number", req.Number)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("trigger"))
}

type blacklistRequest struct {
	Number string `json:"number"`
	Intent string `json:"intent"`
}

// UpdateBlacklist adds or removes a user from the blacklist.
func (h *AdminHandler) UpdateBlacklist(w http.ResponseWriter, r *http.Request) {
	var req blacklistRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Number == "" {
		Error(w, http.StatusBadRequest, "number is required")
		return
	}

	switch req.Intent {
	case "add":
		h.blacklist.Add(req.Number)
	case "remove":
		h.blacklist.Remove(req.Number)
	default:
		Error(w, http.StatusBadRequest, "intent must be add or remove")
		return
	}

	slog.Info("blacklist updated", "number", req.Number, "intent", req.Intent)
	JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"number": req.Number,
		"intent": req.Intent,
	})
}

// ScheduledStats reports the broadcast schedule and worker state.
func (h *AdminHandler) ScheduledStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.broadcasts.Stats(r.Context())
	if err != nil {
		slog.Error("scheduled stats failed", "error", err)
		Error(w, http.StatusInternalServerError, "schedule unavailable")
		return
	}
	JSON(w, http.StatusOK, stats)
}

// ScheduledCheck forces an immediate broadcast delivery pass.
func (h *AdminHandler) ScheduledCheck(w http.ResponseWriter, r *http.Request) {
	delivered, err := h.broadcasts.CheckNow(r.Context())
	if err != nil {
		slog.Error("forced broadcast check failed", "error", err)
		Error(w, http.StatusInternalServerError, "check failed")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"delivered": delivered,
	})
}

// ScheduledRestart restarts the broadcast worker.
func (h *AdminHandler) ScheduledRestart(w http.ResponseWriter, _ *http.Request) {
	h.broadcasts.Restart()
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
