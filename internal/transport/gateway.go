package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/solvia-digital/whatsflow/internal/domain"
)

const (
	sendTimeout      = 10 * time.Second
	reconnectMin     = time.Second
	reconnectMax     = 30 * time.Second
	userQueueBacklog = 16
)

// Handler consumes one inbound message. The gateway guarantees that
// messages from the same user are handled one at a time, in arrival order;
// different users' messages may interleave.
type Handler func(ctx context.Context, msg domain.Message)

// inboundFrame is the gateway's inbound event shape.
type inboundFrame struct {
	Type string `json:"type"`
	From string `json:"from"`
	Name string `json:"name,omitempty"`
	Body string `json:"body"`
}

// outboundFrame is the gateway's outbound delivery shape.
type outboundFrame struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	To       string `json:"to"`
	Body     string `json:"body,omitempty"`
	Media    string `json:"media,omitempty"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
}

// GatewayClient is the websocket client to the provider gateway. It owns
// the connection lifecycle (dial, read loop, reconnect with backoff) and
// fans inbound events out to per-user serial queues.
type GatewayClient struct {
	url string

	mu   sync.RWMutex
	conn *websocket.Conn

	queueMu sync.Mutex
	queues  map[string]chan domain.Message
}

// NewGatewayClient creates a client for the gateway at url. No network I/O
// happens until Run.
func NewGatewayClient(url string) *GatewayClient {
	return &GatewayClient{
		url:    url,
		queues: make(map[string]chan domain.Message),
	}
}

// Run dials the gateway and pumps inbound events to handler until ctx is
// cancelled, reconnecting with capped backoff on connection loss.
func (g *GatewayClient) Run(ctx context.Context, handler Handler) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.Dial(ctx, g.url, nil)
		if err != nil {
			slog.Warn("gateway dial failed, retrying", "url", g.url, "backoff", backoff, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, reconnectMax)
			continue
		}

		slog.Info("connected to provider gateway", "url", g.url)
		backoff = reconnectMin
		g.setConn(conn)

		g.readLoop(ctx, conn, handler)

		g.setConn(nil)
		_ = conn.Close(websocket.StatusNormalClosure, "reconnecting")
	}
}

func (g *GatewayClient) readLoop(ctx context.Context, conn *websocket.Conn, handler Handler) {
	for {
		var frame inboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if ctx.Err() == nil {
				slog.Warn("gateway read failed", "error", err)
			}
			return
		}
		if frame.Type != "message" || frame.From == "" {
			continue
		}

		g.enqueue(ctx, domain.Message{
			UserID:     frame.From,
			PushName:   frame.Name,
			Body:       frame.Body,
			ReceivedAt: time.Now(),
		}, handler)
	}
}

// enqueue routes the message onto its user's serial queue, starting the
// queue worker on first contact. Per-user ordering is the concurrency
// contract the dispatch engine relies on.
func (g *GatewayClient) enqueue(ctx context.Context, msg domain.Message, handler Handler) {
	g.queueMu.Lock()
	q, ok := g.queues[msg.UserID]
	if !ok {
		q = make(chan domain.Message, userQueueBacklog)
		g.queues[msg.UserID] = q
		go func() {
			for {
				select {
				case m := <-q:
					handler(ctx, m)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	g.queueMu.Unlock()

	select {
	case q <- msg:
	case <-ctx.Done():
	}
}

func (g *GatewayClient) setConn(conn *websocket.Conn) {
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
}

func (g *GatewayClient) current() *websocket.Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conn
}

func (g *GatewayClient) write(ctx context.Context, frame outboundFrame) error {
	conn := g.current()
	if conn == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, frame)
}

// SendText delivers a text message, optionally with attached media.
func (g *GatewayClient) SendText(ctx context.Context, userID, text string, opts *SendOptions) error {
	frame := outboundFrame{
		ID:   uuid.NewString(),
		Type: "text",
		To:   userID,
		Body: text,
	}
	if opts != nil {
		frame.Media = opts.MediaURL
	}
	return g.write(ctx, frame)
}

// SendFile delivers a document by URL.
func (g *GatewayClient) SendFile(ctx context.Context, userID, url, filename, caption string, opts *SendOptions) error {
	frame := outboundFrame{
		ID:       uuid.NewString(),
		Type:     "file",
		To:       userID,
		URL:      url,
		Filename: filename,
		Caption:  caption,
	}
	if opts != nil {
		frame.MimeType = opts.MimeType
	}
	return g.write(ctx, frame)
}

var _ Transport = (*GatewayClient)(nil)
