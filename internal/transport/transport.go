// Package transport connects the service to the chat provider gateway:
// inbound message events and outbound text/file delivery.
package transport

import (
	"context"
	"errors"
)

// ErrNotConnected is returned when a send is attempted while the gateway
// connection is down. Callers treat it like any transient delivery failure.
var ErrNotConnected = errors.New("gateway not connected")

// SendOptions carries optional delivery parameters.
type SendOptions struct {
	// MediaURL attaches media to a text send.
	MediaURL string
	// MimeType overrides the detected type on file sends.
	MimeType string
}

// Transport delivers outbound messages. Both operations are fallible and
// the dispatch pipeline catches failures locally.
type Transport interface {
	SendText(ctx context.Context, userID, text string, opts *SendOptions) error
	SendFile(ctx context.Context, userID, url, filename, caption string, opts *SendOptions) error
}
