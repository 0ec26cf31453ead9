package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarsift/sarsift/internal/message"
)

// stubRecognizer returns fixed mentions or an error.
type stubRecognizer struct {
	mentions []Mention
	err      error
}

func (s stubRecognizer) People(context.Context, string) ([]Mention, error) {
	return s.mentions, s.err
}

func TestExtract_SplitsNameAndAddress(t *testing.T) {
	e := NewExtractor(nil, nil)
	part := &message.Part{
		ID:   "p1",
		From: `"Alice A." <Alice@Co.com>`,
		To:   []string{"Bob Singh <bob@co.com>"},
	}

	occs := e.Extract(context.Background(), part)

	assert.Contains(t, occs, Occurrence{Identifier: "Alice A.", Role: RoleFrom, PartID: "p1"})
	assert.Contains(t, occs, Occurrence{Identifier: "alice@co.com", Role: RoleFrom, PartID: "p1"})
	assert.Contains(t, occs, Occurrence{Identifier: "Bob Singh", Role: RoleToLike, PartID: "p1"})
	assert.Contains(t, occs, Occurrence{Identifier: "bob@co.com", Role: RoleToLike, PartID: "p1"})
}

func TestExtract_MergesToCcBccIntoToLike(t *testing.T) {
	e := NewExtractor(nil, nil)
	part := &message.Part{
		ID:  "p1",
		To:  []string{"a@co.com"},
		Cc:  []string{"b@co.com"},
		Bcc: []string{"c@co.com"},
	}

	occs := e.Extract(context.Background(), part)

	for _, o := range occs {
		assert.Equal(t, RoleToLike, o.Role)
	}
	assert.Len(t, occs, 3)
}

func TestExtract_BodyMentionsFromRecognizerAndAddresses(t *testing.T) {
	rec := stubRecognizer{mentions: []Mention{{Text: "Eve Martin"}}}
	e := NewExtractor(rec, nil)
	part := &message.Part{
		ID:   "p1",
		From: "alice@co.com",
		Body: "Please loop in Eve Martin (eve.martin@co.com).",
	}

	occs := e.Extract(context.Background(), part)

	assert.Contains(t, occs, Occurrence{Identifier: "Eve Martin", Role: RoleBodyMention, PartID: "p1"})
	// Trailing punctuation stripped from the scanned address.
	assert.Contains(t, occs, Occurrence{Identifier: "eve.martin@co.com", Role: RoleBodyMention, PartID: "p1"})
}

func TestExtract_RecognizerFailureIsRecoverable(t *testing.T) {
	rec := stubRecognizer{err: errors.New("ner service down")}
	e := NewExtractor(rec, nil)
	part := &message.Part{
		ID:   "p1",
		From: "alice@co.com",
		Body: "hello bob@co.com",
	}

	occs := e.Extract(context.Background(), part)

	// Header and scanned-address occurrences survive; no name mentions.
	assert.Contains(t, occs, Occurrence{Identifier: "alice@co.com", Role: RoleFrom, PartID: "p1"})
	assert.Contains(t, occs, Occurrence{Identifier: "bob@co.com", Role: RoleBodyMention, PartID: "p1"})
}

func TestExtract_DeduplicatesPerRole(t *testing.T) {
	e := NewExtractor(nil, nil)
	part := &message.Part{
		ID: "p1",
		To: []string{"bob@co.com", "bob@co.com"},
		Cc: []string{"bob@co.com"},
	}

	occs := e.Extract(context.Background(), part)
	assert.Len(t, occs, 1)
}

func TestExtract_NonRFCHeaderKeptRaw(t *testing.T) {
	e := NewExtractor(nil, nil)
	part := &message.Part{ID: "p1", From: "Accounts Payable Team"}

	occs := e.Extract(context.Background(), part)
	require.Len(t, occs, 1)
	assert.Equal(t, "Accounts Payable Team", occs[0].Identifier)
	assert.Equal(t, RoleFrom, occs[0].Role)
}

func TestRegexRecognizer_FindsCapitalizedNames(t *testing.T) {
	rec := RegexRecognizer{}
	mentions, err := rec.People(context.Background(), "Spoke with Bob Singh and Alice B. Johnson today. The Meeting went well.")
	require.NoError(t, err)

	var texts []string
	for _, m := range mentions {
		texts = append(texts, m.Text)
	}
	assert.Contains(t, texts, "Bob Singh")
	assert.Contains(t, texts, "Alice B. Johnson")
	assert.NotContains(t, texts, "The Meeting")
}

func TestGroup_IndexesByIdentifier(t *testing.T) {
	occs := []Occurrence{
		{Identifier: "a@co.com", Role: RoleFrom, PartID: "p1"},
		{Identifier: "a@co.com", Role: RoleToLike, PartID: "p2"},
		{Identifier: "b@co.com", Role: RoleFrom, PartID: "p2"},
	}

	table := Group(occs)
	assert.Len(t, table["a@co.com"], 2)
	assert.Len(t, table["b@co.com"], 1)
}
