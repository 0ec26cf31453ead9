package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"casefolds address", "Alice@Co.COM", "alice@co.com"},
		{"strips angle brackets", "<alice@co.com>", "alice@co.com"},
		{"collapses whitespace", "  Alice    Johnson ", "alice johnson"},
		{"strips honorific", "Dr. Alice Johnson", "alice johnson"},
		{"strips accents", "Renée Åberg", "renee aberg"},
		{"strips quotes", `"Alice A."`, "alice a"},
		{"empty", "   ", ""},
		{"punctuation only", `"<>"`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestIsAddress(t *testing.T) {
	assert.True(t, IsAddress("alice@co.com"))
	assert.True(t, IsAddress(" alice.j@sub.co.com "))
	assert.False(t, IsAddress("Alice Johnson"))
	assert.False(t, IsAddress("alice@"))
	assert.False(t, IsAddress("a b@co.com"))
}

func TestSplitComposite(t *testing.T) {
	name, addr, ok := SplitComposite(`"Alice A." <Alice@Co.com>`)
	assert.True(t, ok)
	assert.Equal(t, `"Alice A."`, name)
	assert.Equal(t, "alice@co.com", addr)

	// Bare bracketed address: ok with empty name.
	name, addr, ok = SplitComposite("<bob@co.com>")
	assert.True(t, ok)
	assert.Equal(t, "", name)
	assert.Equal(t, "bob@co.com", addr)

	// Header label leaked into the display name is stripped.
	name, _, ok = SplitComposite("To: Guido van Rossum <guido@py.org>")
	assert.True(t, ok)
	assert.Equal(t, "Guido van Rossum", name)

	// Lists are not composites.
	_, _, ok = SplitComposite("a <a@co.com>, b <b@co.com>")
	assert.False(t, ok)

	_, _, ok = SplitComposite("just a name")
	assert.False(t, ok)
}

func TestParseIdentifier(t *testing.T) {
	p := parseIdentifier("Alice B. Johnson")
	assert.Equal(t, "alice", p.first)
	assert.Equal(t, "johnson", p.last)
	assert.Equal(t, "abj", p.initials)
	assert.False(t, p.isEmail)

	p = parseIdentifier("Johnson, Alice")
	assert.Equal(t, "alice", p.first)
	assert.Equal(t, "johnson", p.last)

	p = parseIdentifier("alice.johnson@co.com")
	assert.True(t, p.isEmail)
	assert.Equal(t, "alice.johnson", p.local)
	assert.Equal(t, "co.com", p.domain)
}
