// Package mbox implements a Reader over a local mbox export of bank alert
// e-mails, such as a Google Takeout archive.
package mbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-mbox"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/ArionMiles/txnwatch/pkg/api"
	"github.com/ArionMiles/txnwatch/pkg/reader"
)

// Source is the api.Message source for mbox messages.
const Source = "mbox"

// Config holds configuration for the mbox reader.
type Config struct {
	// Path to the mbox file.
	Path string `json:"path"`
}

// Reader replays every message of an mbox file once.
type Reader struct {
	open   func() (io.ReadCloser, error)
	logger *slog.Logger
}

// New creates a reader for the mbox file at cfg.Path.
func New(cfg Config, logger *slog.Logger) (*Reader, error) {
	if cfg.Path == "" {
		return nil, errors.New("mbox path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reader{
		open:   func() (io.ReadCloser, error) { return os.Open(cfg.Path) },
		logger: logger.With("component", "mbox_reader", "path", cfg.Path),
	}, nil
}

// NewFromReader creates a reader over an already open mbox stream.
func NewFromReader(r io.Reader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		open:   func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		logger: logger.With("component", "mbox_reader"),
	}
}

// Read sends every message in the file to out and returns at end of file.
// An mbox export has no read state, so acknowledgments are discarded.
func (r *Reader) Read(ctx context.Context, out chan<- *api.Message, ackChan <-chan string) error {
	defer close(out)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ackChan:
				if !ok {
					return
				}
			}
		}
	}()

	f, err := r.open()
	if err != nil {
		return fmt.Errorf("opening mbox: %w", err)
	}
	defer f.Close()

	mr := mbox.NewReader(f)
	count := 0
	for {
		raw, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading mbox: %w", err)
		}

		msg, err := parse(raw)
		if err != nil {
			r.logger.Warn("skipping unparseable message", "index", count, "error", err)
			count++
			continue
		}
		count++
		if msg.Body == "" {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- msg:
		}
	}

	r.logger.Info("mbox replay complete", "messages", count)
	return nil
}

func parse(raw io.Reader) (*api.Message, error) {
	m, err := mail.ReadMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	observedAt, err := m.Header.Date()
	if err != nil {
		observedAt = time.Now()
	}

	body, err := textBody(m.Header.Get("Content-Type"), m.Header.Get("Content-Transfer-Encoding"), m.Body)
	if err != nil {
		return nil, err
	}

	return &api.Message{
		Sender:     m.Header.Get("From"),
		Body:       body,
		ObservedAt: observedAt,
		Source:     Source,
		MessageID:  strings.Trim(m.Header.Get("Message-Id"), "<>"),
	}, nil
}

// textBody returns the plain text of a message body, preferring text/plain
// over text/html inside multipart messages.
func textBody(contentType, transferEncoding string, body io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain; charset=us-ascii"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parsing content type: %w", err)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartBody(multipart.NewReader(body, params["boundary"]))
	}

	text, err := decodePart(body, transferEncoding, params["charset"])
	if err != nil {
		return "", err
	}
	switch mediaType {
	case "text/html":
		return reader.HTMLToText(text), nil
	case "text/plain":
		return reader.CollapseSpace(text), nil
	}
	return "", nil
}

func multipartBody(mr *multipart.Reader) (string, error) {
	var htmlText string
	for {
		p, err := mr.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading part: %w", err)
		}

		ct := p.Header.Get("Content-Type")
		mediaType, _, _ := mime.ParseMediaType(ct)
		switch {
		case strings.HasPrefix(mediaType, "multipart/"), mediaType == "text/plain":
			text, err := textBody(ct, p.Header.Get("Content-Transfer-Encoding"), p)
			if err != nil {
				return "", err
			}
			if text != "" {
				return text, nil
			}
		case mediaType == "text/html" && htmlText == "":
			text, err := textBody(ct, p.Header.Get("Content-Transfer-Encoding"), p)
			if err != nil {
				return "", err
			}
			htmlText = text
		}
	}
	return htmlText, nil
}

func decodePart(r io.Reader, transferEncoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "us-ascii") {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", fmt.Errorf("unsupported charset %q: %w", charset, err)
		}
		r = enc.NewDecoder().Reader(r)
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decoding body: %w", err)
	}
	return string(b), nil
}
