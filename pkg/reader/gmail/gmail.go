// Package gmail implements a Reader that pulls bank alert e-mails from Gmail.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/reader"
)

// Source is the api.Message source for Gmail messages.
const Source = "gmail"

// DefaultQuery selects unread alert e-mails that mention a debit or credit.
const DefaultQuery = "is:unread (debited OR credited OR spent)"

// Reader reads bank alert e-mails from Gmail.
type Reader struct {
	client   *gmail.Service
	query    string
	interval time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Config holds configuration for the Gmail reader.
type Config struct {
	// Query is a Gmail search query. Defaults to DefaultQuery.
	Query string `json:"query"`
	// Interval between polls. Defaults to 10 seconds.
	Interval time.Duration `json:"interval"`
	// FetchRate caps message fetches per second. Defaults to 5.
	FetchRate float64 `json:"fetch_rate"`
}

// New creates a new Gmail reader.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	client, err := gmail.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	if cfg.Query == "" {
		cfg.Query = DefaultQuery
	}
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.FetchRate <= 0 {
		cfg.FetchRate = 5
	}

	return &Reader{
		client:   client,
		query:    cfg.Query,
		interval: cfg.Interval,
		limiter:  rate.NewLimiter(rate.Limit(cfg.FetchRate), 1),
		logger:   logger.With("component", "gmail_reader"),
		inflight: make(map[string]struct{}),
	}, nil
}

// Read polls Gmail and sends each alert to out until ctx is canceled.
// Messages are marked as read only once their ID arrives on ackChan.
func (r *Reader) Read(ctx context.Context, out chan<- *api.Message, ackChan <-chan string) error {
	defer close(out)

	go r.handleAcknowledgments(ctx, ackChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.poll(ctx, out)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("gmail reader stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			r.poll(ctx, out)
		}
	}
}

func (r *Reader) handleAcknowledgments(ctx context.Context, ackChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msgID, ok := <-ackChan:
			if !ok {
				r.logger.Info("acknowledgment channel closed")
				return
			}
			r.markAsRead(ctx, msgID)
		}
	}
}

func (r *Reader) markAsRead(ctx context.Context, msgID string) {
	defer r.release(msgID)

	_, err := r.client.Users.Messages.Modify("me", msgID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		r.logger.Warn("failed to mark message as read", "message_id", msgID, "error", err)
		return
	}
	r.logger.Debug("marked message as read", "message_id", msgID)
}

// claim reports whether msgID is not already awaiting acknowledgment.
func (r *Reader) claim(msgID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inflight[msgID]; ok {
		return false
	}
	r.inflight[msgID] = struct{}{}
	return true
}

func (r *Reader) release(msgID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, msgID)
}

func (r *Reader) poll(ctx context.Context, out chan<- *api.Message) {
	resp, err := r.client.Users.Messages.List("me").Q(r.query).Context(ctx).Do()
	if err != nil {
		r.logger.Error("failed to list messages", "error", err)
		return
	}
	r.logger.Info("found messages", "count", len(resp.Messages))

	for _, m := range resp.Messages {
		if !r.claim(m.Id) {
			continue
		}
		if err := r.processMessage(ctx, m.Id, out); err != nil {
			r.release(m.Id)
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("failed to process message", "message_id", m.Id, "error", err)
		}
	}
}

func (r *Reader) processMessage(ctx context.Context, msgID string, out chan<- *api.Message) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	msg, err := r.client.Users.Messages.Get("me", msgID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting message: %w", err)
	}

	m := toMessage(msg)
	if m.Body == "" {
		r.logger.Warn("empty message body", "message_id", msgID, "sender", m.Sender)
		r.release(msgID)
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- m:
	}
	return nil
}

func toMessage(msg *gmail.Message) *api.Message {
	return &api.Message{
		Sender:     header(msg.Payload, "From"),
		Body:       extractBody(msg.Payload),
		ObservedAt: time.UnixMilli(msg.InternalDate),
		Source:     Source,
		MessageID:  msg.Id,
	}
}

func header(part *gmail.MessagePart, name string) string {
	if part == nil {
		return ""
	}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody returns the first text/plain part, or the first text/html part
// reduced to text.
func extractBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if body := findPart(part, "text/plain"); body != "" {
		return reader.CollapseSpace(body)
	}
	if body := findPart(part, "text/html"); body != "" {
		return reader.HTMLToText(body)
	}
	if part.Body != nil && part.Body.Data != "" {
		return reader.CollapseSpace(decode(part.Body.Data))
	}
	return ""
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		return decode(part.Body.Data)
	}
	for _, p := range part.Parts {
		if body := findPart(p, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func decode(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
