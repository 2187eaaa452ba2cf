package tenancy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/visioncap/visioncap"
)

func TestCheckScope(t *testing.T) {
	assert.NoError(t, CheckScope(visioncap.ScopePublic, false))
	assert.NoError(t, CheckScope(visioncap.ScopeMine, true))
	assert.NoError(t, CheckScope(visioncap.ScopeAll, true))
	assert.ErrorIs(t, CheckScope(visioncap.ScopeMine, false), ErrUnauthenticated)
	assert.ErrorIs(t, CheckScope(visioncap.ScopeAll, false), ErrUnauthenticated)
}

func TestCanView(t *testing.T) {
	t.Run("public image visible to anyone", func(t *testing.T) {
		record := visioncap.ImageRecord{Visibility: visioncap.VisibilityPublic}
		assert.True(t, CanView(record, "", false))
	})

	t.Run("private image visible only to owner", func(t *testing.T) {
		record := visioncap.ImageRecord{Visibility: visioncap.VisibilityPrivate, OwnerID: "owner-1"}
		assert.True(t, CanView(record, "owner-1", true))
		assert.False(t, CanView(record, "owner-2", true))
		assert.False(t, CanView(record, "", false))
	})

	t.Run("soft deleted image is never visible, even to owner", func(t *testing.T) {
		deletedAt := time.Now()
		record := visioncap.ImageRecord{Visibility: visioncap.VisibilityPublic, OwnerID: "owner-1", DeletedAt: &deletedAt}
		assert.False(t, CanView(record, "owner-1", true))
	})
}

func TestCanMutate(t *testing.T) {
	t.Run("owner may always mutate", func(t *testing.T) {
		record := visioncap.ImageRecord{OwnerID: "owner-1", Visibility: visioncap.VisibilityPrivate}
		assert.NoError(t, CanMutate(record, "owner-1", true, false))
	})

	t.Run("non-owner non-admin forbidden on public_admin image", func(t *testing.T) {
		record := visioncap.ImageRecord{OwnerID: "owner-1", Visibility: visioncap.VisibilityPublicAdmin}
		err := CanMutate(record, "someone-else", true, false)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin may mutate public_admin image", func(t *testing.T) {
		record := visioncap.ImageRecord{OwnerID: "owner-1", Visibility: visioncap.VisibilityPublicAdmin}
		assert.NoError(t, CanMutate(record, "admin-1", true, true))
	})

	t.Run("anonymous caller unauthenticated", func(t *testing.T) {
		record := visioncap.ImageRecord{OwnerID: "owner-1"}
		err := CanMutate(record, "", false, false)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("non-owner forbidden on plain private image", func(t *testing.T) {
		record := visioncap.ImageRecord{OwnerID: "owner-1", Visibility: visioncap.VisibilityPrivate}
		err := CanMutate(record, "someone-else", true, false)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
