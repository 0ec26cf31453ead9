// Package message defines the normalized Part model and the Message
// Normalizer that produces it from raw parsed messages.
//
// Raw MIME/mailbox parsing is an external collaborator: inbound messages
// arrive already split into header strings plus body text. Parts are
// immutable after creation; cluster editing never alters message content.
package message

import (
	"context"
	"time"
)

// RawMessage is the inbound collaborator shape: one parsed message, free of
// attachment payloads, as supplied by the external MIME-parsing collaborator.
type RawMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	Date    string   `json:"date"`
	Subject string   `json:"subject"`

	// Body is plain body text when the source already extracted it.
	Body string `json:"body,omitempty"`

	// Raw is the original payload for the text-extraction collaborator.
	// When set, extraction takes precedence over Body.
	Raw []byte `json:"raw,omitempty"`
}

// Part is one normalized message. Immutable after creation.
type Part struct {
	// ID is stable and content-derived (sha256 of the canonical content).
	ID string

	From    string
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string

	// Date is the parsed timestamp. HasDate is false when the raw date was
	// missing or unparseable; such parts order last, stably by ID.
	Date    time.Time
	HasDate bool
}

// Recipients returns the merged To/Cc/Bcc header values in order.
func (p *Part) Recipients() []string {
	out := make([]string, 0, len(p.To)+len(p.Cc)+len(p.Bcc))
	out = append(out, p.To...)
	out = append(out, p.Cc...)
	out = append(out, p.Bcc...)
	return out
}

// Less orders parts oldest to newest; parts without a parseable date sort
// last, and ties break by ID ascending.
func Less(a, b *Part) bool {
	switch {
	case a.HasDate && !b.HasDate:
		return true
	case !a.HasDate && b.HasDate:
		return false
	case a.HasDate && b.HasDate && !a.Date.Equal(b.Date):
		return a.Date.Before(b.Date)
	default:
		return a.ID < b.ID
	}
}

// Source supplies raw parsed messages to the pipeline.
// Next returns io.EOF after the last message.
type Source interface {
	Next(ctx context.Context) (*RawMessage, error)
}

// TextExtractor is the external document-text-extraction collaborator.
type TextExtractor interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}
