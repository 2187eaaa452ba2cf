package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/modelhost"
	"github.com/visioncap/visioncap/store"
	"github.com/visioncap/visioncap/tenancy"
)

func seedStore(t *testing.T) store.EmbedStore {
	t.Helper()
	s := store.NewMemoryEmbedStore()
	vec := []float32{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	assert.NoError(t, s.Upsert(context.Background(), visioncap.ImageRecord{
		ImageID: "public-1", Caption: "a red shoe on pavement", Visibility: visioncap.VisibilityPublic, Vector: vec,
	}))
	assert.NoError(t, s.Upsert(context.Background(), visioncap.ImageRecord{
		ImageID: "private-1", Caption: "a private photo", Visibility: visioncap.VisibilityPrivate, OwnerID: "owner-1", Vector: vec,
	}))
	return s
}

func TestSearchPublicScopeAnonymous(t *testing.T) {
	p := New(modelhost.NewMock(), seedStore(t), DefaultKeywordWeight)
	results, err := p.Search(context.Background(), "red shoe", 10, visioncap.ScopePublic, "", false)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "public-1", results[0].ImageID)
}

func TestSearchAnonymousMineFailsUnauthenticated(t *testing.T) {
	p := New(modelhost.NewMock(), seedStore(t), DefaultKeywordWeight)
	_, err := p.Search(context.Background(), "red shoe", 10, visioncap.ScopeMine, "", false)
	assert.ErrorIs(t, err, tenancy.ErrUnauthenticated)
}

func TestSearchMineScopeAuthenticated(t *testing.T) {
	p := New(modelhost.NewMock(), seedStore(t), DefaultKeywordWeight)
	results, err := p.Search(context.Background(), "private", 10, visioncap.ScopeMine, "owner-1", true)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "private-1", results[0].ImageID)
}

func TestSearchEmbedFailurePropagates(t *testing.T) {
	p := New(&failingEmbed{Mock: modelhost.NewMock()}, seedStore(t), DefaultKeywordWeight)
	_, err := p.Search(context.Background(), "anything", 10, visioncap.ScopePublic, "", false)
	assert.Error(t, err)
}

// failingEmbed overrides EmbedText to always fail, exercising Search's
// query-embedding error path while leaving every other Host method on
// the embedded mock untouched.
type failingEmbed struct{ *modelhost.Mock }

func (failingEmbed) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, assert.AnError
}
