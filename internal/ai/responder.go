// Package ai implements the AI fallback adapter: a thin typed interface to
// an OpenAI-compatible completion service.
package ai

import (
	"context"
	"errors"
)

// ErrService wraps timeout/quota/network failures of the completion
// service. Callers log it and degrade; it never crashes a handler.
var ErrService = errors.New("ai service error")

// Responder produces a free-form reply for messages no flow matched.
type Responder interface {
	Reply(ctx context.Context, userID, text string) (string, error)
}
