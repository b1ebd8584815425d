package flows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solvia-digital/whatsflow/internal/domain"
)

func TestMatchFirstEntryWins(t *testing.T) {
	t.Parallel()

	entries := []domain.Flow{
		{Keyword: "horario", Answer: "Atendemos de 9 a 6."},
		{Keyword: "precio", Answer: "Te comparto la lista de precios."},
		{Keyword: "precios", Answer: "segunda entrada"},
	}

	f, ok := Match(entries, "hola, ¿me pasas los precios?")
	if !ok {
		t.Fatal("expected a match")
	}
	if f.Answer != "Te comparto la lista de precios." {
		t.Fatalf("expected first matching entry, got %q", f.Answer)
	}
}

func TestMatchSkipsEmptyKeywords(t *testing.T) {
	t.Parallel()

	entries := []domain.Flow{
		{Keyword: "   ", Answer: "never"},
		{Keyword: "hola", Answer: "¡Hola! ¿En qué te ayudo?"},
	}

	f, ok := Match(entries, "hola")
	if !ok || f.Answer != "¡Hola! ¿En qué te ayudo?" {
		t.Fatalf("expected the hola entry, got ok=%v flow=%+v", ok, f)
	}
}

func TestMatchNoEntry(t *testing.T) {
	t.Parallel()

	if _, ok := Match([]domain.Flow{{Keyword: "precio"}}, "buenas tardes"); ok {
		t.Fatal("expected no match")
	}
}

func TestFindNamed(t *testing.T) {
	t.Parallel()

	entries := []domain.Flow{
		{Keyword: "registro", Answer: "Bienvenido {{name}}, quedaste registrado."},
	}
	f, ok := FindNamed(entries, "Registro")
	if !ok {
		t.Fatal("expected named lookup to be case-insensitive")
	}
	if f.Answer == "" {
		t.Fatal("expected the registro entry")
	}
	if _, ok := FindNamed(entries, "muestras"); ok {
		t.Fatal("unknown name must not match")
	}
}

func TestSheetClientFetchesAndCaches(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"flows": [{"keyword": "hola", "answer": "¡Hola!"}],
			"prompt": "Eres el asistente de la firma.",
			"scheduled": [{"id": "b1", "body": "Promo", "send_at": "2025-06-01T12:00:00Z"}]
		}`))
	}))
	defer srv.Close()

	c := NewSheetClient(srv.URL, time.Minute)

	list, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].Keyword != "hola" {
		t.Fatalf("unexpected flows: %+v", list)
	}

	prompt, err := c.SystemPrompt(context.Background())
	if err != nil {
		t.Fatalf("SystemPrompt failed: %v", err)
	}
	if prompt != "Eres el asistente de la firma." {
		t.Fatalf("unexpected prompt %q", prompt)
	}

	sched, err := c.Scheduled(context.Background())
	if err != nil {
		t.Fatalf("Scheduled failed: %v", err)
	}
	if len(sched) != 1 || sched[0].ID != "b1" {
		t.Fatalf("unexpected schedule: %+v", sched)
	}

	if got := hits.Load(); got != 1 {
		t.Fatalf("expected a single upstream fetch within the cache window, got %d", got)
	}
}

func TestSheetClientServesStaleOnUpstreamFailure(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"flows": [{"keyword": "hola", "answer": "¡Hola!"}]}`))
	}))
	defer srv.Close()

	c := NewSheetClient(srv.URL, time.Nanosecond)
	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("initial fetch failed: %v", err)
	}

	fail.Store(true)
	time.Sleep(time.Millisecond) // let the cache window lapse
	list, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("expected stale snapshot, got error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected stale flows, got %+v", list)
	}
}
