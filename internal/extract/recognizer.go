package extract

import (
	"context"
	"regexp"
	"strings"
)

// Mention is one candidate person reference found in body text.
type Mention struct {
	Start int
	End   int
	Text  string
}

// EntityRecognizer is the external named-entity-recognition collaborator:
// given body text, it returns candidate person mentions.
type EntityRecognizer interface {
	People(ctx context.Context, text string) ([]Mention, error)
}

// RegexRecognizer is a lightweight built-in recognizer used when no external
// NER collaborator is configured. It finds runs of capitalized words that
// look like given-name/surname pairs.
type RegexRecognizer struct{}

// nameRx matches two to three capitalized words, allowing middle initials
// as in "Alice B. Johnson".
var nameRx = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z]\.?)? [A-Z][a-z]+\b`)

// stopLeads are sentence-leading words that produce false capitalized pairs.
var stopLeads = map[string]struct{}{
	"the": {}, "this": {}, "that": {}, "dear": {}, "hi": {}, "hello": {},
	"best": {}, "kind": {}, "many": {}, "with": {}, "from": {}, "our": {},
}

// People scans text for capitalized name runs.
func (RegexRecognizer) People(_ context.Context, text string) ([]Mention, error) {
	var out []Mention
	for _, loc := range nameRx.FindAllStringIndex(text, -1) {
		candidate := text[loc[0]:loc[1]]
		first := strings.ToLower(strings.Fields(candidate)[0])
		if _, skip := stopLeads[first]; skip {
			continue
		}
		out = append(out, Mention{Start: loc[0], End: loc[1], Text: candidate})
	}
	return out, nil
}
