package message

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	sifterr "github.com/sarsift/sarsift/internal/errors"
)

// dateLayouts are tried after RFC 5322 parsing fails. The corpus contains
// exports that rewrite Date headers into ISO form.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer turns raw parsed messages into immutable Parts.
type Normalizer struct {
	extractor TextExtractor
	logger    *slog.Logger
}

// NewNormalizer creates a Normalizer. extractor may be nil, in which case
// RawMessage.Body is used as-is.
func NewNormalizer(extractor TextExtractor, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{extractor: extractor, logger: logger}
}

// Normalize produces a Part from a raw message. A message with no headers
// and no body fails with a parse error; the caller counts it as skipped and
// continues. Body extraction failure is recoverable: the part is kept with
// an empty body.
func (n *Normalizer) Normalize(ctx context.Context, raw *RawMessage) (*Part, error) {
	if raw == nil {
		return nil, sifterr.New(sifterr.ErrCodeMessageEmpty, "nil message", nil)
	}

	part := &Part{
		From:    strings.TrimSpace(raw.From),
		To:      trimAll(raw.To),
		Cc:      trimAll(raw.Cc),
		Bcc:     trimAll(raw.Bcc),
		Subject: strings.TrimSpace(raw.Subject),
		Body:    raw.Body,
	}

	if part.From == "" && len(part.To) == 0 && part.Body == "" && len(raw.Raw) == 0 {
		return nil, sifterr.New(sifterr.ErrCodeMessageEmpty, "message has no headers and no body", nil)
	}

	if d, ok := parseDate(raw.Date); ok {
		part.Date = d.UTC()
		part.HasDate = true
	}

	if len(raw.Raw) > 0 && n.extractor != nil {
		text, err := n.extractor.Extract(ctx, raw.Raw)
		if err != nil {
			// Extraction failure is not fatal: the part keeps going with
			// whatever body text the source provided.
			n.logger.Warn("body_extraction_failed",
				slog.String("subject", part.Subject),
				slog.String("error", err.Error()))
		} else if text != "" {
			part.Body = text
		}
	}

	part.ID = partID(part)
	return part, nil
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseDate tries RFC 5322 first, then a small set of ISO layouts.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if d, err := mail.ParseDate(raw); err == nil {
		return d, true
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// partID derives a stable content hash for the part. Empty parts fall back
// to a random id so two distinct empty messages do not collide.
func partID(p *Part) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(p.From)
	write(strings.Join(p.To, ","))
	write(strings.Join(p.Cc, ","))
	write(strings.Join(p.Bcc, ","))
	if p.HasDate {
		write(p.Date.Format(time.RFC3339))
	} else {
		write("")
	}
	write(p.Subject)
	write(p.Body)

	sum := fmt.Sprintf("%x", h.Sum(nil))
	if p.From == "" && len(p.To) == 0 && p.Subject == "" && p.Body == "" {
		return "uuid:" + uuid.NewString()
	}
	return "sha256:" + sum
}
