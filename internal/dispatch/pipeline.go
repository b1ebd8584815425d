// Package dispatch implements the ordered decision pipeline that resolves
// one inbound message to exactly one outbound action: session reset, asset
// request capture, asset delivery, scripted flow answer, or AI fallback.
package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/solvia-digital/whatsflow/internal/ai"
	"github.com/solvia-digital/whatsflow/internal/catalog"
	"github.com/solvia-digital/whatsflow/internal/domain"
	"github.com/solvia-digital/whatsflow/internal/flows"
	"github.com/solvia-digital/whatsflow/internal/session"
	"github.com/solvia-digital/whatsflow/internal/store"
	"github.com/solvia-digital/whatsflow/internal/transport"
)

// User-facing notices. The audience is Spanish-speaking WhatsApp users.
const (
	resetNotice          = "💤 Tu sesión anterior fue cerrada por inactividad. Empecemos de nuevo."
	resetPrompt          = "👋 ¿En qué área deseas recibir información? (Legal, Contable, Branding o Página Web)"
	configErrorNotice    = "⚠️ Error: El brochure no está configurado correctamente. Contacta con el administrador."
	deliveryFailedNotice = "🚫 No se pudo enviar el brochure en este momento. Inténtalo de nuevo más tarde."
	aiUnavailableNotice  = "🤖 En este momento no puedo responderte. Inténtalo de nuevo en unos minutos."

	pdfMimeType = "application/pdf"
)

// Deps are the pipeline's collaborators.
type Deps struct {
	Tracker   *session.Tracker
	Sessions  session.Store
	Blacklist *session.Blacklist
	Catalog   *catalog.Catalog
	Flows     flows.Source
	Responder ai.Responder // nil when AI is disabled
	Repo      store.Repository
	Transport transport.Transport
}

// Pipeline evaluates the fixed step order for each inbound message.
// Steps return true ("handled") to stop the cycle; state mutation for a
// given user is sequential because the transport serializes per-user
// delivery.
type Pipeline struct {
	deps  Deps
	steps []step
}

type step struct {
	name string
	run  func(ctx context.Context, c *cycle) bool
}

// cycle is the per-message evaluation state.
type cycle struct {
	msg   domain.Message
	input string // normalized body
}

// NewPipeline assembles the pipeline with its fixed step order.
func NewPipeline(deps Deps) *Pipeline {
	p := &Pipeline{deps: deps}
	p.steps = []step{
		{name: "reset", run: p.resetExpiredSession},
		{name: "intent", run: p.captureAssetIntent},
		{name: "confirm", run: p.deliverPendingAsset},
		{name: "flow", run: p.answerMatchedFlow},
		{name: "ai", run: p.answerWithAI},
	}
	return p
}

// Handle processes one inbound message end to end. It never returns an
// error: every collaborator failure is caught, logged and degraded so one
// user's message cannot affect another's session.
func (p *Pipeline) Handle(ctx context.Context, msg domain.Message) {
	if p.deps.Blacklist != nil && p.deps.Blacklist.Contains(msg.UserID) {
		slog.Debug("dropping message from blacklisted user", "user_id", msg.UserID)
		return
	}

	c := &cycle{msg: msg, input: msg.NormalizedBody()}
	for _, s := range p.steps {
		if s.run(ctx, c) {
			slog.Debug("message handled", "user_id", msg.UserID, "step", s.name)
			return
		}
	}
	slog.Debug("message fell through all steps", "user_id", msg.UserID)
}

// resetExpiredSession records activity and, when the previous session
// expired, clears all conversational state and re-greets the user. The
// message content is not processed further in that case.
func (p *Pipeline) resetExpiredSession(ctx context.Context, c *cycle) bool {
	userID := c.msg.UserID

	res := p.deps.Tracker.Touch(userID)
	p.deps.Tracker.ScheduleLivenessCheck(userID)

	if !res.Expired {
		return false
	}

	p.deps.Sessions.ClearPendingAsset(userID)
	if err := p.deps.Repo.ClearHistory(ctx, userID); err != nil {
		slog.Error("failed to clear history on session reset", "user_id", userID, "error", err)
	}

	slog.Info("session expired, resetting", "user_id", userID)
	p.sendText(ctx, userID, resetNotice, nil)
	p.sendText(ctx, userID, resetPrompt, nil)
	return true
}

// captureAssetIntent records which asset category the user asked for when
// the message carries the request marker plus a catalog key. The message is
// consumed silently: delivery waits for an affirmative, and the offer
// question belongs to the flow sheet.
func (p *Pipeline) captureAssetIntent(_ context.Context, c *cycle) bool {
	if !strings.Contains(c.input, catalog.RequestMarker) {
		return false
	}
	for _, key := range p.deps.Catalog.Keys() {
		if strings.Contains(c.input, key) {
			p.deps.Sessions.SetPendingAsset(c.msg.UserID, key)
			slog.Info("asset request captured", "user_id", c.msg.UserID, "key", key)
			return true
		}
	}
	return false
}

// deliverPendingAsset sends the pending asset once the user confirms.
// A delivery is attempted at most once per confirmation: success and
// transport failure both consume the pending request, only a
// misconfigured descriptor leaves it in place.
func (p *Pipeline) deliverPendingAsset(ctx context.Context, c *cycle) bool {
	if !isAffirmative(c.input) {
		return false
	}

	userID := c.msg.UserID
	sctx := p.deps.Sessions.Get(userID)
	if !sctx.HasPendingAsset() {
		return false
	}

	if !p.deps.Tracker.IsActive(userID) {
		slog.Info("user inactive, suppressing asset delivery", "user_id", userID)
		return true
	}

	desc, err := p.deps.Catalog.Resolve(sctx.PendingAssetKey)
	if err == nil {
		err = catalog.Validate(desc)
	}
	if err != nil {
		slog.Error("asset descriptor unusable", "user_id", userID, "key", sctx.PendingAssetKey, "error", err)
		p.sendText(ctx, userID, configErrorNotice, nil)
		return true
	}

	url := catalog.DownloadURL(desc)
	slog.Info("delivering asset", "user_id", userID, "key", desc.Key, "filename", desc.Filename)

	err = p.deps.Transport.SendText(ctx, userID, desc.Caption, nil)
	if err == nil {
		err = p.deps.Transport.SendFile(ctx, userID, url, desc.Filename, desc.Caption,
			&transport.SendOptions{MimeType: pdfMimeType})
	}
	if err != nil {
		slog.Error("asset delivery failed", "user_id", userID, "key", desc.Key, "error", err)
		p.sendText(ctx, userID, deliveryFailedNotice, nil)
	} else {
		slog.Info("asset delivered", "user_id", userID, "filename", desc.Filename)
	}

	// The attempt consumed the confirmation either way.
	p.deps.Sessions.ClearPendingAsset(userID)
	return true
}

// answerMatchedFlow answers with the first scripted flow whose keyword
// appears in the message.
func (p *Pipeline) answerMatchedFlow(ctx context.Context, c *cycle) bool {
	entries, err := p.deps.Flows.List(ctx)
	if err != nil {
		slog.Error("flow source unavailable", "error", err)
		return false
	}

	flow, ok := flows.Match(entries, c.input)
	if !ok {
		return false
	}

	userID := c.msg.UserID
	if !p.deps.Tracker.IsActive(userID) {
		slog.Info("user inactive, suppressing flow answer", "user_id", userID, "keyword", flow.Keyword)
		return true
	}

	p.record(ctx, userID, domain.RoleUser, c.input)
	p.record(ctx, userID, domain.RoleAssistant, flow.Answer)

	var opts *transport.SendOptions
	if flow.HasMedia() {
		opts = &transport.SendOptions{MediaURL: strings.TrimSpace(flow.Media)}
	}
	if err := p.deps.Transport.SendText(ctx, userID, flow.Answer, opts); err != nil {
		slog.Error("flow answer send failed", "user_id", userID, "keyword", flow.Keyword, "error", err)
	}
	return true
}

// answerWithAI delegates to the completion service when nothing else
// matched. A service failure still yields a user-visible notice rather
// than silence.
func (p *Pipeline) answerWithAI(ctx context.Context, c *cycle) bool {
	userID := c.msg.UserID
	if !p.deps.Tracker.IsActive(userID) {
		slog.Info("user inactive, suppressing AI answer", "user_id", userID)
		return true
	}
	if p.deps.Responder == nil {
		slog.Debug("AI disabled, no fallback answer", "user_id", userID)
		return true
	}

	reply, err := p.deps.Responder.Reply(ctx, userID, c.input)
	if err != nil {
		slog.Error("AI completion failed", "user_id", userID, "error", err)
		p.sendText(ctx, userID, aiUnavailableNotice, nil)
		return true
	}

	p.record(ctx, userID, domain.RoleUser, c.input)
	p.record(ctx, userID, domain.RoleAssistant, reply)

	if err := p.deps.Transport.SendText(ctx, userID, reply, nil); err != nil {
		slog.Error("AI answer send failed", "user_id", userID, "error", err)
	}
	return true
}

// sendText sends a notice, logging delivery failures without propagating.
func (p *Pipeline) sendText(ctx context.Context, userID, text string, opts *transport.SendOptions) {
	if err := p.deps.Transport.SendText(ctx, userID, text, opts); err != nil {
		slog.Error("send failed", "user_id", userID, "error", err)
	}
}

// record appends a history turn, logging failures without propagating.
func (p *Pipeline) record(ctx context.Context, userID, role, content string) {
	if err := p.deps.Repo.AppendMessage(ctx, userID, role, content); err != nil {
		slog.Error("history append failed", "user_id", userID, "role", role, "error", err)
	}
}

// isAffirmative reports whether the normalized input confirms a pending
// asset offer: an exact yes-equivalent or a "claro" marker.
func isAffirmative(input string) bool {
	return input == "sí" || input == "si" || strings.Contains(input, "claro")
}
