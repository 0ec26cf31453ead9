// Package cluster implements the identity clustering engine: it collapses
// raw name/address spellings into stable identity clusters, assigns each
// cluster a gold label, and applies curated edits (create/move/relabel)
// against the resulting state.
package cluster

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// addressRx matches a bare email address.
var addressRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// compositeRx captures `Display Name <addr>` single-address forms.
var compositeRx = regexp.MustCompile(`^\s*(.*?)\s*<\s*([^<>]+)\s*>\s*$`)

// honorifics are stripped from the front of display names before comparison.
var honorifics = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "miss": {}, "dr": {}, "prof": {},
	"professor": {}, "sir": {}, "madam": {}, "rev": {}, "hon": {},
}

var accentStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripAccents folds accented characters to their ASCII base form.
func stripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// IsAddress reports whether the identifier is a bare email address.
func IsAddress(s string) bool {
	return addressRx.MatchString(strings.TrimSpace(s))
}

// SplitComposite splits a single-address `Name <email>` identifier into its
// display name and address. Returns ok=false for anything else, including
// comma or semicolon separated lists.
func SplitComposite(s string) (name, addr string, ok bool) {
	if strings.ContainsAny(s, ",;") {
		return "", "", false
	}
	m := compositeRx.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	addr = strings.ToLower(strings.TrimSpace(m[2]))
	if !IsAddress(addr) {
		return "", "", false
	}
	name = strings.TrimSpace(m[1])
	// Header labels sometimes leak into the captured display name.
	name = regexp.MustCompile(`(?i)^(?:to|from|cc|bcc)\s*:\s*`).ReplaceAllString(name, "")
	return name, addr, true
}

// Normalize canonicalizes a raw identifier for comparison: accents stripped,
// case folded, surrounding punctuation removed, honorifics dropped from
// names, whitespace collapsed. Returns "" for identifiers with no usable
// name or address content; such identifiers are dropped from clustering.
func Normalize(s string) string {
	s = strings.TrimSpace(stripAccents(s))
	s = strings.Trim(s, `<>"'()[]{}`)
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	if IsAddress(s) {
		return s
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for i, f := range fields {
		f = strings.Trim(f, ".,;:")
		if f == "" {
			continue
		}
		if i == 0 {
			if _, isHon := honorifics[f]; isHon {
				continue
			}
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// parsedName is the structural decomposition of a normalized display name.
type parsedName struct {
	first    string
	last     string
	initials string
	isEmail  bool
	local    string // address local part
	domain   string // address domain
}

// parseIdentifier decomposes a raw identifier for feature computation and
// blocking. Works on the normalized form.
func parseIdentifier(s string) parsedName {
	n := Normalize(s)
	var p parsedName
	if n == "" {
		return p
	}

	if IsAddress(n) {
		p.isEmail = true
		at := strings.LastIndex(n, "@")
		p.local = n[:at]
		p.domain = n[at+1:]
		return p
	}

	tokens := nameTokens(n)
	if len(tokens) == 0 {
		return p
	}

	// "Last, First" comma form (comma survives only in the raw string).
	if i := strings.Index(s, ","); i > 0 && len(tokens) >= 2 {
		p.last = tokens[0]
		p.first = tokens[1]
	} else {
		p.first = tokens[0]
		if len(tokens) > 1 {
			p.last = tokens[len(tokens)-1]
		}
	}

	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte(t[0])
	}
	p.initials = b.String()
	return p
}

// nameTokens splits a normalized name into alphanumeric tokens.
func nameTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
