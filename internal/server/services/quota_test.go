package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/davkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuota(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		used int64
		want models.Quota
	}{
		{"under", 300, models.Quota{Used: 300, Total: 1000, Free: 700}},
		{"over", 1200, models.Quota{Used: 1200, Total: 1000, Free: -200}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.backend.size = tc.used

			got, err := f.quota.Quota(ctx, nil, &models.User{Login: "bob", QuotaBytes: 1000})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQuota_CurrentUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.users.Create(ctx, "alice", "pw"))
	var quota int64 = 1
	require.NoError(t, f.users.Edit(ctx, "alice", models.UserEdit{QuotaMB: &quota}))
	sess := f.loggedIn(t, "alice", "pw")
	f.backend.size = 24

	got, err := f.quota.Quota(ctx, sess, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Quota{Used: 24, Total: 1 << 20, Free: 1<<20 - 24}, got)
}

func TestQuota_NoUser(t *testing.T) {
	f := newFixture(t)
	f.backend.size = 99

	got, err := f.quota.Quota(context.Background(), f.session(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.Quota{}, got)
}

func TestQuota_BackendError(t *testing.T) {
	f := newFixture(t)
	f.backend.err = errors.New("unreachable")

	_, err := f.quota.Quota(context.Background(), nil, &models.User{Login: "bob"})
	assert.ErrorIs(t, err, f.backend.err)
}
