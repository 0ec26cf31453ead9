package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarsift/sarsift/internal/cluster"
	sifterr "github.com/sarsift/sarsift/internal/errors"
	"github.com/sarsift/sarsift/internal/extract"
	"github.com/sarsift/sarsift/internal/job"
	"github.com/sarsift/sarsift/internal/message"
	"github.com/sarsift/sarsift/internal/search"
	"github.com/sarsift/sarsift/internal/store"
)

func archiveFixture() []*message.RawMessage {
	return []*message.RawMessage{
		{
			From:    "alice@co.com",
			To:      []string{"bob@co.com"},
			Date:    "Wed, 01 Mar 2017 09:00:00 +0000",
			Subject: "budget",
			Body:    "numbers attached",
		},
		{
			From:    "bob@co.com",
			To:      []string{"alice@co.com"},
			Cc:      []string{"carol@co.com"},
			Date:    "Thu, 02 Mar 2017 09:00:00 +0000",
			Subject: "re: budget",
			Body:    "looks fine",
		},
		{
			From:    "carol@co.com",
			To:      []string{"alice@co.com"},
			Date:    "Fri, 03 Mar 2017 09:00:00 +0000",
			Subject: "minutes",
			Body:    "ask alice@co.com directly",
		},
	}
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	normalizer := message.NewNormalizer(message.PassthroughExtractor{}, nil)
	extractor := extract.NewExtractor(extract.RegexRecognizer{}, nil)
	engine := cluster.NewEngine(cluster.NewLexicalScorer(0), 0.95, nil)
	runner := job.NewRunner(job.RunnerConfig{}, normalizer, extractor, engine, nil, nil)
	return New(job.NewManager(runner, nil), nil, opts...)
}

func indexFixture(t *testing.T, svc *Service) string {
	t.Helper()
	id := svc.StartIndex(context.Background(), message.NewSliceSource(archiveFixture()))
	require.Eventually(t, func() bool {
		snap, err := svc.JobStatus(id)
		return err == nil && snap.Status == job.StatusDone
	}, 5*time.Second, 10*time.Millisecond)
	return id
}

func clusterOf(t *testing.T, svc *Service, id, identifier string) string {
	t.Helper()
	listing, err := svc.Identifiers(id)
	require.NoError(t, err)
	for _, row := range listing.Identifiers {
		if row.Identifier == identifier {
			return row.ClusterID
		}
	}
	t.Fatalf("identifier %q not clustered", identifier)
	return ""
}

func TestService_StartAndStatus(t *testing.T) {
	svc := newTestService(t)

	id := indexFixture(t, svc)

	snap, err := svc.JobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Processed)
	assert.Zero(t, snap.Skipped)
}

func TestService_UnknownJob(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.JobStatus("nope")
	require.Error(t, err)
	assert.Equal(t, sifterr.ErrCodeUnknownJob, sifterr.CodeOf(err))

	_, err = svc.Clusters("nope", false)
	require.Error(t, err)
	_, err = svc.Search("nope", nil)
	require.Error(t, err)
}

func TestService_ClustersOrderedBySizeThenLabel(t *testing.T) {
	svc := newTestService(t)
	id := indexFixture(t, svc)

	clusters, err := svc.Clusters(id, true)
	require.NoError(t, err)
	require.NotEmpty(t, clusters)

	for i := 1; i < len(clusters); i++ {
		prev, curr := clusters[i-1], clusters[i]
		assert.True(t, prev.Size > curr.Size ||
			(prev.Size == curr.Size && prev.Label <= curr.Label),
			"clusters out of order at %d", i)
	}
	for _, c := range clusters {
		assert.Len(t, c.Members, c.Size)
	}
}

func TestService_ClustersWithoutMembers(t *testing.T) {
	svc := newTestService(t)
	id := indexFixture(t, svc)

	clusters, err := svc.Clusters(id, false)
	require.NoError(t, err)
	for _, c := range clusters {
		assert.Nil(t, c.Members)
		assert.Positive(t, c.Size)
	}
}

func TestService_IdentifiersCarryGoldFlag(t *testing.T) {
	svc := newTestService(t)
	id := indexFixture(t, svc)

	listing, err := svc.Identifiers(id)
	require.NoError(t, err)
	require.NotEmpty(t, listing.Identifiers)
	require.NotEmpty(t, listing.Clusters)

	gold := 0
	for _, row := range listing.Identifiers {
		if row.IsGold {
			gold++
		}
	}
	assert.Positive(t, gold)
}

func TestService_SearchSenderNotRecipient(t *testing.T) {
	svc := newTestService(t)
	id := indexFixture(t, svc)
	alice := clusterOf(t, svc, id, "alice@co.com")

	got, err := svc.Search(id, []search.Rule{
		{ClusterID: alice, From: search.MatchYes, To: search.MatchNo},
	})
	require.NoError(t, err)

	// Alice sends only the first message and receives the other two.
	require.Len(t, got, 1)
	assert.Equal(t, "budget", got[0].Subject)
	assert.Equal(t, "alice@co.com", got[0].From)
	assert.NotEmpty(t, got[0].Date)
}

func TestService_SearchBeforeDoneIsNotReady(t *testing.T) {
	svc := newTestService(t)

	// A source that never finishes keeps the job running.
	blocked := make(chan struct{})
	t.Cleanup(func() { close(blocked) })
	id := svc.StartIndex(context.Background(), blockingSource{ch: blocked})

	require.Eventually(t, func() bool {
		snap, err := svc.JobStatus(id)
		return err == nil && snap.Status == job.StatusRunning
	}, 5*time.Second, 5*time.Millisecond)

	_, err := svc.Search(id, []search.Rule{{ClusterID: "c", From: search.MatchYes}})
	require.Error(t, err)
	assert.Equal(t, sifterr.ErrCodeJobNotReady, sifterr.CodeOf(err))
}

type blockingSource struct{ ch chan struct{} }

func (b blockingSource) Next(ctx context.Context) (*message.RawMessage, error) {
	select {
	case <-b.ch:
		return nil, errors.New("source closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestService_ApplyEditMergesClusters(t *testing.T) {
	svc := newTestService(t)
	id := indexFixture(t, svc)
	alice := clusterOf(t, svc, id, "alice@co.com")
	bob := clusterOf(t, svc, id, "bob@co.com")
	require.NotEqual(t, alice, bob)

	outcome, err := svc.ApplyEdit(context.Background(), id, cluster.EditBatch{
		Moves: []cluster.Move{{Identifier: "bob@co.com", TargetClusterID: alice}},
	})
	require.NoError(t, err)
	assert.Contains(t, outcome.Touched, alice)

	// The merged cluster now appears as sender of both messages.
	got, err := svc.Search(id, []search.Rule{{ClusterID: alice, From: search.MatchYes}})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestService_ApplyEditRejectionKeepsServingPriorState(t *testing.T) {
	svc := newTestService(t)
	id := indexFixture(t, svc)
	alice := clusterOf(t, svc, id, "alice@co.com")

	before, err := svc.Clusters(id, true)
	require.NoError(t, err)

	_, err = svc.ApplyEdit(context.Background(), id, cluster.EditBatch{
		Moves: []cluster.Move{{Identifier: "ghost@co.com", TargetClusterID: alice}},
	})
	require.Error(t, err)
	assert.Equal(t, sifterr.ErrCodeUnknownIdentifier, sifterr.CodeOf(err))

	after, err := svc.Clusters(id, true)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestService_ApplyEmptyBatchIsNoOp(t *testing.T) {
	svc := newTestService(t)
	id := indexFixture(t, svc)

	before, err := svc.Clusters(id, true)
	require.NoError(t, err)

	outcome, err := svc.ApplyEdit(context.Background(), id, cluster.EditBatch{})
	require.NoError(t, err)
	assert.Empty(t, outcome.Touched)
	assert.Equal(t, len(before), outcome.Clusters)

	after, err := svc.Clusters(id, true)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestService_ApplyEditPersistsWhenStoreConfigured(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "artifacts.db"), nil)
	require.NoError(t, err)
	defer st.Close()

	svc := newTestService(t, WithStore(st))
	id := indexFixture(t, svc)
	alice := clusterOf(t, svc, id, "alice@co.com")
	bob := clusterOf(t, svc, id, "bob@co.com")

	_, err = svc.ApplyEdit(context.Background(), id, cluster.EditBatch{
		Moves: []cluster.Move{{Identifier: "bob@co.com", TargetClusterID: alice}},
	})
	require.NoError(t, err)

	loaded, err := st.LoadArtifacts(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, alice, loaded.State.ByIdentifier["bob@co.com"])
	assert.NotContains(t, loaded.State.Clusters, bob)
}

func TestService_ClusterParts(t *testing.T) {
	svc := newTestService(t)
	id := indexFixture(t, svc)
	carol := clusterOf(t, svc, id, "carol@co.com")

	got, err := svc.ClusterParts(id, carol)
	require.NoError(t, err)

	// Carol is cc'd on message two and sends message three.
	require.Len(t, got, 2)
	assert.Equal(t, "re: budget", got[0].Subject)
	assert.Equal(t, "minutes", got[1].Subject)

	none, err := svc.ClusterParts(id, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestService_CheckHealth(t *testing.T) {
	healthy := newTestService(t, WithExtractorPing(stubPinger{}))
	h := healthy.CheckHealth(context.Background())
	assert.True(t, h.OK)
	assert.Equal(t, "reachable", h.Extractor)

	down := newTestService(t, WithExtractorPing(stubPinger{err: errors.New("connection refused")}))
	h = down.CheckHealth(context.Background())
	assert.False(t, h.OK)
	assert.Contains(t, h.Extractor, "connection refused")

	bare := newTestService(t)
	assert.True(t, bare.CheckHealth(context.Background()).OK)
}
