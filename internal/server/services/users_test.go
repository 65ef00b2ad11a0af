package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/dmitrijs2005/davkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice", Normalize("  Alice "))
	assert.Equal(t, "", Normalize("   "))
}

func TestUserDirectory_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.users.Create(ctx, "bob", "first"))
	require.NoError(t, f.users.Create(ctx, "BOB ", "second"))

	list, err := f.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.resolver.Login(ctx, f.session(), "bob", "first")
	require.NoError(t, err)
	_, err = f.resolver.Login(ctx, f.session(), "bob", "second")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestUserDirectory_CreateRejectsEmptyLogin(t *testing.T) {
	f := newFixture(t)
	err := f.users.Create(context.Background(), "  ", "pw")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestUserDirectory_CreateStoresHashOnly(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Create(context.Background(), "Alice ", "pw"))

	stored := f.store.users["alice"]
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotContains(t, stored.PasswordHash, "pw")
}

func TestUserDirectory_GetDecoratesAndProvisions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.users.Create(ctx, "alice", "pw"))

	u, err := f.users.Get(ctx, " ALICE")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Login)
	assert.Equal(t, "/srv/dav/alice/", u.StoragePath)
	assert.Equal(t, "https://dav.example.com/files/alice/", u.ExternalURL)
	assert.Equal(t, []string{"/srv/dav/alice/"}, f.backend.ensured)
}

func TestUserDirectory_GetUnknown(t *testing.T) {
	f := newFixture(t)
	u, err := f.users.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Empty(t, f.backend.ensured)
}

func TestUserDirectory_GetErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("store", func(t *testing.T) {
		f := newFixture(t)
		f.store.err = errors.New("db down")
		_, err := f.users.Get(ctx, "alice")
		assert.ErrorIs(t, err, f.store.err)
	})

	t.Run("storage", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.users.Create(ctx, "alice", "pw"))
		f.backend.err = errors.New("disk full")
		_, err := f.users.Get(ctx, "alice")
		assert.ErrorIs(t, err, f.backend.err)
	})
}

func TestUserDirectory_StoragePathHasOneTrailingSlash(t *testing.T) {
	f := newFixture(t)

	f.users.storagePattern = "/data/%s"
	assert.Equal(t, "/data/bob/", f.users.StoragePath("bob"))

	f.users.storagePattern = "/data/%s//"
	assert.Equal(t, "/data/bob/", f.users.StoragePath("bob"))
}

func TestUserDirectory_ListSorted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, l := range []string{"carol", "alice", "bob"} {
		require.NoError(t, f.users.Create(ctx, l, "pw"))
	}

	list, err := f.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alice", list[0].Login)
	assert.Equal(t, "bob", list[1].Login)
	assert.Equal(t, "carol", list[2].Login)
	assert.Equal(t, "/srv/dav/carol/", list[2].StoragePath)
}

func TestUserDirectory_Edit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.users.Create(ctx, "alice", "old"))

	pw, quota, admin := "new", int64(5), true
	require.NoError(t, f.users.Edit(ctx, "Alice", models.UserEdit{Password: &pw, QuotaMB: &quota, IsAdmin: &admin}))

	stored := f.store.users["alice"]
	assert.Equal(t, int64(5*1024*1024), stored.QuotaBytes)
	assert.True(t, stored.IsAdmin)

	_, err := f.resolver.Login(ctx, f.session(), "alice", "new")
	require.NoError(t, err)
	_, err = f.resolver.Login(ctx, f.session(), "alice", "old")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestUserDirectory_EditPartialAndUnknown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.users.Create(ctx, "alice", "pw"))
	before := f.store.users["alice"]

	quota := int64(1)
	require.NoError(t, f.users.Edit(ctx, "alice", models.UserEdit{QuotaMB: &quota}))
	after := f.store.users["alice"]
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.False(t, after.IsAdmin)

	require.NoError(t, f.users.Edit(ctx, "ghost", models.UserEdit{QuotaMB: &quota}))
	_, ok := f.store.users["ghost"]
	assert.False(t, ok)

	f.store.err = errors.New("untouched")
	require.NoError(t, f.users.Edit(ctx, "alice", models.UserEdit{}))
}
