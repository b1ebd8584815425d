// Package flows adapts the externally-maintained flow sheet: keyword
// triggered scripted answers, the AI system prompt, and the broadcast
// schedule.
package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/solvia-digital/whatsflow/internal/domain"
)

// Source supplies flow data. Implementations may re-fetch lazily; callers
// treat every result as a fresh snapshot.
type Source interface {
	// List returns the current keyword -> answer flow entries.
	List(ctx context.Context) ([]domain.Flow, error)

	// SystemPrompt returns the prompt steering the AI fallback.
	SystemPrompt(ctx context.Context) (string, error)

	// Scheduled returns the broadcast schedule.
	Scheduled(ctx context.Context) ([]domain.ScheduledMessage, error)
}

// sheetDocument is the JSON export shape of the published sheet.
type sheetDocument struct {
	Flows     []domain.Flow             `json:"flows"`
	Prompt    string                    `json:"prompt"`
	Scheduled []domain.ScheduledMessage `json:"scheduled"`
}

// SheetClient fetches the published-sheet JSON export over HTTP and caches
// the document for a short freshness window so every message does not cost
// a network round trip.
type SheetClient struct {
	url      string
	client   *http.Client
	cacheTTL time.Duration

	mu        sync.Mutex
	doc       sheetDocument
	fetchedAt time.Time
}

// NewSheetClient creates a client for the sheet export at url.
func NewSheetClient(url string, cacheTTL time.Duration) *SheetClient {
	return &SheetClient{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL: cacheTTL,
	}
}

func (c *SheetClient) document(ctx context.Context) (sheetDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.cacheTTL {
		return c.doc, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return sheetDocument{}, fmt.Errorf("build sheet request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Serve the stale snapshot if one exists; the sheet source is
		// best-effort and a transient outage must not mute scripted answers.
		if !c.fetchedAt.IsZero() {
			return c.doc, nil
		}
		return sheetDocument{}, fmt.Errorf("fetch flow sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if !c.fetchedAt.IsZero() {
			return c.doc, nil
		}
		return sheetDocument{}, fmt.Errorf("fetch flow sheet: unexpected status %d", resp.StatusCode)
	}

	var doc sheetDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return sheetDocument{}, fmt.Errorf("decode flow sheet: %w", err)
	}

	c.doc = doc
	c.fetchedAt = time.Now()
	return doc, nil
}

// List returns the current flow entries.
func (c *SheetClient) List(ctx context.Context) ([]domain.Flow, error) {
	doc, err := c.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Flows, nil
}

// SystemPrompt returns the sheet-configured AI prompt.
func (c *SheetClient) SystemPrompt(ctx context.Context) (string, error) {
	doc, err := c.document(ctx)
	if err != nil {
		return "", err
	}
	return doc.Prompt, nil
}

// Scheduled returns the broadcast schedule.
func (c *SheetClient) Scheduled(ctx context.Context) ([]domain.ScheduledMessage, error) {
	doc, err := c.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Scheduled, nil
}
