package semcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/state"
)

func TestCache(t *testing.T) {
	t.Run("miss on empty cache", func(t *testing.T) {
		backing, cleanup := state.NewMemoryManager(1024 * 1024)
		defer cleanup()
		c := New(backing, DefaultTTL, nil)

		record, err := c.Lookup(context.Background(), []byte("image-bytes"))
		assert.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("store then lookup round trips", func(t *testing.T) {
		backing, cleanup := state.NewMemoryManager(1024 * 1024)
		defer cleanup()
		c := New(backing, DefaultTTL, nil)

		image := []byte("a photo of a cat")
		want := visioncap.CaptionRecord{
			Caption:    "a cat sitting on a windowsill",
			Confidence: 0.94,
			Origin:     visioncap.TierCloud,
			CostUsd:    0.002,
		}
		c.Store(context.Background(), image, want)

		got, err := c.Lookup(context.Background(), image)
		assert.NoError(t, err)
		if assert.NotNil(t, got) {
			assert.Equal(t, want.Caption, got.Caption)
			assert.Equal(t, want.Origin, got.Origin)
		}
	})

	t.Run("distinct images hash to distinct entries", func(t *testing.T) {
		backing, cleanup := state.NewMemoryManager(1024 * 1024)
		defer cleanup()
		c := New(backing, DefaultTTL, nil)

		c.Store(context.Background(), []byte("image-a"), visioncap.CaptionRecord{Caption: "a"})
		c.Store(context.Background(), []byte("image-b"), visioncap.CaptionRecord{Caption: "b"})

		gotA, _ := c.Lookup(context.Background(), []byte("image-a"))
		gotB, _ := c.Lookup(context.Background(), []byte("image-b"))
		if assert.NotNil(t, gotA) && assert.NotNil(t, gotB) {
			assert.Equal(t, "a", gotA.Caption)
			assert.Equal(t, "b", gotB.Caption)
		}
	})

	t.Run("fingerprint is stable and 16 hex characters", func(t *testing.T) {
		fp1 := Fingerprint([]byte("same bytes"))
		fp2 := Fingerprint([]byte("same bytes"))
		assert.Equal(t, fp1, fp2)
		assert.Len(t, fp1, 16)
	})

	t.Run("short TTL still readable immediately after store", func(t *testing.T) {
		backing, cleanup := state.NewMemoryManager(1024 * 1024)
		defer cleanup()
		c := New(backing, time.Millisecond, nil)

		image := []byte("short-lived")
		c.Store(context.Background(), image, visioncap.CaptionRecord{Caption: "short"})

		got, err := c.Lookup(context.Background(), image)
		assert.NoError(t, err)
		assert.NotNil(t, got)
	})
}
