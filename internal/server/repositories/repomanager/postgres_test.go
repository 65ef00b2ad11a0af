package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/appsessions"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db := newDB(t)
	m := NewPostgresRepositoryManager()

	assert.IsType(t, &users.PostgresRepository{}, m.Users(db))
	assert.IsType(t, &appsessions.PostgresRepository{}, m.AppSessions(db))
}

func TestRunMigrations(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	t.Run("success", func(t *testing.T) {
		gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
			if dir != "." {
				return errors.New("unexpected dir")
			}
			return nil
		}
		require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), newDB(t)))
	})

	t.Run("error", func(t *testing.T) {
		gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
			return errors.New("boom")
		}
		err := NewPostgresRepositoryManager().RunMigrations(context.Background(), newDB(t))
		require.EqualError(t, err, "boom")
	})
}

func TestOpenPostgres_BadDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "postgres://127.0.0.1:1/none?connect_timeout=1")
	require.Error(t, err)
}
