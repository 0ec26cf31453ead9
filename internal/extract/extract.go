// Package extract derives role-tagged raw identifier occurrences from
// normalized Parts. Sender and recipient identifiers come from the headers;
// body mentions come from the external named-entity-recognition collaborator
// plus a liberal address scan over the body text.
package extract

import (
	"context"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"github.com/sarsift/sarsift/internal/message"
)

// Role partitions occurrences by where the identifier appeared.
type Role string

const (
	// RoleFrom marks sender occurrences.
	RoleFrom Role = "from"
	// RoleToLike marks recipient occurrences (To/Cc/Bcc merged).
	RoleToLike Role = "to_like"
	// RoleBodyMention marks identifiers recognized in the body text.
	RoleBodyMention Role = "body_mention"
)

// Occurrence is one (raw identifier, role, part) triple.
type Occurrence struct {
	Identifier string
	Role       Role
	PartID     string
}

// bodyEmailRx matches addresses appearing anywhere in body text.
// Deliberately liberal; trailing punctuation is stripped afterwards.
var bodyEmailRx = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)

// Extractor derives occurrences from Parts.
type Extractor struct {
	recognizer EntityRecognizer
	logger     *slog.Logger
}

// NewExtractor creates an Extractor. recognizer may be nil, in which case
// only address mentions are found in bodies.
func NewExtractor(recognizer EntityRecognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{recognizer: recognizer, logger: logger}
}

// Extract returns all occurrences for one part, de-duplicated per
// (identifier, role). Recognizer failure is recoverable: the part simply
// has no name mentions.
func (e *Extractor) Extract(ctx context.Context, part *message.Part) []Occurrence {
	var out []Occurrence
	seen := make(map[string]struct{})

	add := func(ident string, role Role) {
		ident = strings.TrimSpace(ident)
		if ident == "" {
			return
		}
		key := ident + "\x00" + string(role)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, Occurrence{Identifier: ident, Role: role, PartID: part.ID})
	}

	for _, ident := range headerIdentifiers(part.From) {
		add(ident, RoleFrom)
	}
	for _, header := range part.Recipients() {
		for _, ident := range headerIdentifiers(header) {
			add(ident, RoleToLike)
		}
	}

	if part.Body != "" {
		if e.recognizer != nil {
			mentions, err := e.recognizer.People(ctx, part.Body)
			if err != nil {
				e.logger.Warn("entity_recognition_failed",
					slog.String("part_id", part.ID),
					slog.String("error", err.Error()))
			} else {
				for _, m := range mentions {
					// Multi-line spans keep only the first line, matching
					// how header-style names are written.
					name := strings.TrimSpace(strings.SplitN(m.Text, "\n", 2)[0])
					add(name, RoleBodyMention)
				}
			}
		}

		for _, raw := range bodyEmailRx.FindAllString(part.Body, -1) {
			add(strings.TrimRight(raw, ".,;:)"), RoleBodyMention)
		}
	}

	return out
}

// headerIdentifiers splits one address header value into identifier strings:
// the display name and the address each become separate identifiers, as in
// "Alice A." and "alice@co.com" from `"Alice A." <alice@co.com>`.
func headerIdentifiers(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		// Not RFC 5322; keep the raw string as a single identifier so the
		// clustering engine can still work with it.
		return []string{header}
	}

	var out []string
	for _, a := range addrs {
		if name := strings.TrimSpace(a.Name); name != "" {
			out = append(out, name)
		}
		if addr := strings.ToLower(strings.TrimSpace(a.Address)); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Group indexes occurrences by identifier, preserving encounter order
// within each identifier. This is the occurrence table the postings index
// unions over.
func Group(occs []Occurrence) map[string][]Occurrence {
	table := make(map[string][]Occurrence)
	for _, o := range occs {
		table[o.Identifier] = append(table[o.Identifier], o)
	}
	return table
}
