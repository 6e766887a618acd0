package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestSegmentService_UpdateSegment(t *testing.T) {
	ctx := context.Background()

	t.Run("re-embeds with new title and content", func(t *testing.T) {
		f := newTestFixture()
		seedSegments(f, domain.SegmentKindChunk, "old")
		f.providers.embedder.usage = 9

		svc := NewSegmentService(f.agents, f.documents, f.providers, f.store)
		updated, err := svc.UpdateSegment(ctx, UpdateSegmentInput{
			Caller:    f.caller,
			SegmentID: "chunk-old",
			Title:     strPtr("Shipping"),
			Content:   strPtr("Ships in 2 days."),
		})
		require.NoError(t, err)
		assert.Equal(t, "Shipping", updated.Title)
		assert.Equal(t, []string{"Shipping\n\nShips in 2 days."}, f.providers.embedder.calls())

		stored, err := f.store.GetByID(ctx, "chunk-old")
		require.NoError(t, err)
		assert.Equal(t, "Ships in 2 days.", stored.Content)
		assert.Equal(t, 9, stored.TokenCount)
		assert.Equal(t, 0, stored.Index)
		assert.NotEqual(t, []float32{0, 0, 1}, stored.Embedding)
	})

	t.Run("embedding failure leaves segment untouched", func(t *testing.T) {
		f := newTestFixture()
		seedSegments(f, domain.SegmentKindChunk, "old")
		f.providers.embedder.failOn["new"] = errors.New("provider down")

		svc := NewSegmentService(f.agents, f.documents, f.providers, f.store)
		_, err := svc.UpdateSegment(ctx, UpdateSegmentInput{Caller: f.caller, SegmentID: "chunk-old", Content: strPtr("new body")})
		assert.ErrorIs(t, err, domain.ErrProviderFailure)

		stored, err := f.store.GetByID(ctx, "chunk-old")
		require.NoError(t, err)
		assert.Equal(t, "old", stored.Content)
		assert.Equal(t, []float32{0, 0, 1}, stored.Embedding)
	})

	t.Run("unchanged edit does not call the provider", func(t *testing.T) {
		f := newTestFixture()
		seedSegments(f, domain.SegmentKindChunk, "same")

		svc := NewSegmentService(f.agents, f.documents, f.providers, f.store)
		_, err := svc.UpdateSegment(ctx, UpdateSegmentInput{Caller: f.caller, SegmentID: "chunk-same", Content: strPtr("same")})
		require.NoError(t, err)
		assert.Empty(t, f.providers.embedder.calls())
	})

	t.Run("empty content is rejected", func(t *testing.T) {
		f := newTestFixture()
		seedSegments(f, domain.SegmentKindChunk, "old")

		svc := NewSegmentService(f.agents, f.documents, f.providers, f.store)
		_, err := svc.UpdateSegment(ctx, UpdateSegmentInput{Caller: f.caller, SegmentID: "chunk-old", Content: strPtr("")})
		assert.ErrorIs(t, err, domain.ErrEmptyContent)
	})

	t.Run("missing credential writes nothing", func(t *testing.T) {
		f := newTestFixture()
		f.agent.EmbeddingAPIKey = ""
		seedSegments(f, domain.SegmentKindChunk, "old")

		svc := NewSegmentService(f.agents, f.documents, f.providers, f.store)
		_, err := svc.UpdateSegment(ctx, UpdateSegmentInput{Caller: f.caller, SegmentID: "chunk-old", Content: strPtr("new")})
		assert.ErrorIs(t, err, domain.ErrMissingEmbeddingKey)

		stored, _ := f.store.GetByID(ctx, "chunk-old")
		assert.Equal(t, "old", stored.Content)
	})

	t.Run("unknown segment is not found", func(t *testing.T) {
		f := newTestFixture()

		svc := NewSegmentService(f.agents, f.documents, f.providers, f.store)
		_, err := svc.UpdateSegment(ctx, UpdateSegmentInput{Caller: f.caller, SegmentID: "nope", Content: strPtr("x")})
		assert.ErrorIs(t, err, domain.ErrSegmentNotFound)
	})
}

func TestSegmentService_DeleteSegment(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	seedSegments(f, domain.SegmentKindChunk, "a", "b", "c")

	svc := NewSegmentService(f.agents, f.documents, f.providers, f.store)
	require.NoError(t, svc.DeleteSegment(ctx, f.caller, "chunk-b"))

	segs, err := svc.ListSegments(ctx, f.caller, f.document.ID, domain.SegmentKindChunk)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, 0, segs[0].Index)
	assert.Equal(t, 2, segs[1].Index)

	// Deleted indices are never reused.
	chunking := f.chunking()
	result, err := chunking.CreateChunk(ctx, CreateChunkInput{Caller: f.caller, DocumentID: f.document.ID, Content: "d"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Segments[0].Index)
}

func TestSegmentService_AccessControl(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture()
	seedSegments(f, domain.SegmentKindChunk, "a")

	svc := NewSegmentService(f.agents, f.documents, f.providers, f.store)

	_, err := svc.GetSegment(ctx, OrgCaller("org-2"), "chunk-a")
	assert.ErrorIs(t, err, domain.ErrAgentAccessDenied)

	err = svc.DeleteSegment(ctx, OrgCaller("org-2"), "chunk-a")
	assert.ErrorIs(t, err, domain.ErrAgentAccessDenied)
	assert.Equal(t, 1, f.store.count())

	_, err = svc.ListSegments(ctx, f.caller, f.document.ID, "page")
	assert.ErrorIs(t, err, domain.ErrInvalidSegmentKind)
}
