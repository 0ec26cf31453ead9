package search

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarsift/sarsift/internal/message"
	"github.com/sarsift/sarsift/internal/postings"
)

func fixtureParts() []message.Part {
	day := func(d int) time.Time {
		return time.Date(2017, time.March, d, 9, 0, 0, 0, time.UTC)
	}
	return []message.Part{
		{ID: "p4", Subject: "minutes", Date: day(4), HasDate: true},
		{ID: "p2", Subject: "re: budget", Date: day(2), HasDate: true},
		{ID: "p1", Subject: "budget", Date: day(1), HasDate: true},
		{ID: "p3", Subject: "fwd: budget", Date: day(3), HasDate: true},
		{ID: "p5", Subject: "undated memo"},
	}
}

func fixtureIndex() *postings.Index {
	idx := postings.NewIndex()
	idx.Set("c", &postings.Postings{
		FromIDs: []string{"p1", "p3"},
		ToIDs:   []string{"p2", "p3"},
		BodyIDs: []string{"p3", "p4"},
	})
	idx.Set("d", &postings.Postings{
		FromIDs: []string{"p2"},
		ToIDs:   []string{"p1", "p3", "p5"},
	})
	return idx
}

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	return NewEvaluator(fixtureIndex(), fixtureParts(), slog.Default())
}

func partIDs(parts []message.Part) []string {
	ids := make([]string, len(parts))
	for i, p := range parts {
		ids[i] = p.ID
	}
	return ids
}

func TestEvaluate_FromYesToNo(t *testing.T) {
	// Sender-but-not-recipient for one cluster: {p1,p3} minus {p2,p3}.
	e := newEvaluator(t)

	got := e.Evaluate([]Rule{{ClusterID: "c", From: MatchYes, To: MatchNo, Body: MatchAny}})

	assert.Equal(t, []string{"p1"}, partIDs(got))
}

func TestEvaluate_AllAnyRulesYieldEmptyResult(t *testing.T) {
	e := newEvaluator(t)

	got := e.Evaluate([]Rule{
		{ClusterID: "c", From: MatchAny, To: MatchAny, Body: MatchAny},
		{ClusterID: "d"},
	})

	assert.Empty(t, got)
}

func TestEvaluate_NoRulesYieldEmptyResult(t *testing.T) {
	e := newEvaluator(t)
	assert.Empty(t, e.Evaluate(nil))
}

func TestEvaluate_EmptyPostingsClusterExcludesNothing(t *testing.T) {
	// A cluster indexed with empty sets appears in no part. A no-only
	// rule against it keeps the whole universe, unlike an unknown
	// cluster which clears it.
	idx := fixtureIndex()
	idx.Set("e", &postings.Postings{})
	e := NewEvaluator(idx, fixtureParts(), slog.Default())

	got := e.Evaluate([]Rule{{ClusterID: "e", From: MatchNo}})

	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, partIDs(got))
}

func TestEvaluate_UnknownClusterClearsResult(t *testing.T) {
	e := newEvaluator(t)

	got := e.Evaluate([]Rule{
		{ClusterID: "c", From: MatchYes},
		{ClusterID: "missing", To: MatchYes},
	})

	assert.Empty(t, got)
}

func TestEvaluate_ConjunctionAcrossRules(t *testing.T) {
	e := newEvaluator(t)

	// c as sender AND d as recipient: {p1,p3} ∩ {p1,p3,p5} = {p1,p3}.
	got := e.Evaluate([]Rule{
		{ClusterID: "c", From: MatchYes},
		{ClusterID: "d", To: MatchYes},
	})

	assert.Equal(t, []string{"p1", "p3"}, partIDs(got))
}

func TestEvaluate_ResultsOrderedByDateThenID(t *testing.T) {
	e := newEvaluator(t)

	// d as recipient touches p1, p3 and the undated p5.
	got := e.Evaluate([]Rule{{ClusterID: "d", To: MatchYes}})

	assert.Equal(t, []string{"p1", "p3", "p5"}, partIDs(got))
}

func TestEvaluate_UndatedPartsOrderLast(t *testing.T) {
	idx := postings.NewIndex()
	idx.Set("c", &postings.Postings{FromIDs: []string{"p5", "p4"}})
	e := NewEvaluator(idx, fixtureParts(), slog.Default())

	got := e.Evaluate([]Rule{{ClusterID: "c", From: MatchYes}})

	assert.Equal(t, []string{"p4", "p5"}, partIDs(got))
}

func TestEvaluate_AddingConstraintsNeverGrowsResult(t *testing.T) {
	e := newEvaluator(t)

	base := e.Evaluate([]Rule{{ClusterID: "c", From: MatchYes}})

	narrowed := [][]Rule{
		{{ClusterID: "c", From: MatchYes, To: MatchYes}},
		{{ClusterID: "c", From: MatchYes, To: MatchNo}},
		{{ClusterID: "c", From: MatchYes, Body: MatchNo}},
		{{ClusterID: "c", From: MatchYes}, {ClusterID: "d", From: MatchNo}},
	}
	for _, rules := range narrowed {
		got := e.Evaluate(rules)
		assert.LessOrEqual(t, len(got), len(base), "rules %+v", rules)
		for _, p := range got {
			assert.Contains(t, partIDs(base), p.ID)
		}
	}
}

func TestEvaluate_NoOnlyRule(t *testing.T) {
	e := newEvaluator(t)

	// Everything where cluster c is not the sender.
	got := e.Evaluate([]Rule{{ClusterID: "c", From: MatchNo}})

	assert.Equal(t, []string{"p2", "p4", "p5"}, partIDs(got))
}

func TestEvaluate_DoesNotMutateInputParts(t *testing.T) {
	parts := fixtureParts()
	require.Equal(t, "p4", parts[0].ID)

	NewEvaluator(fixtureIndex(), parts, slog.Default())

	assert.Equal(t, "p4", parts[0].ID)
}

func TestRule_Effective(t *testing.T) {
	assert.False(t, Rule{ClusterID: "c"}.Effective())
	assert.False(t, Rule{ClusterID: "c", From: MatchAny, To: MatchAny, Body: MatchAny}.Effective())
	assert.True(t, Rule{ClusterID: "c", Body: MatchYes}.Effective())
	// Unrecognized cell values act as unconstrained.
	assert.False(t, Rule{ClusterID: "c", From: Match("maybe")}.Effective())
}
