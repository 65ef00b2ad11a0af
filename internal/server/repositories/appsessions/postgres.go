package appsessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/dmitrijs2005/davkeeper/internal/dbx"
	"github.com/dmitrijs2005/davkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, s *models.AppSession) (bool, error) {
	query := `
		INSERT INTO app_sessions (token, owner_login, credential_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO NOTHING
	`
	hash := sql.NullString{String: s.CredentialHash, Valid: s.CredentialHash != ""}

	res, err := r.db.ExecContext(ctx, query, s.Token, s.OwnerLogin, hash, s.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := dbx.RowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.AppSession, error) {
	query := `
		SELECT token, owner_login, COALESCE(credential_hash, ''), expires_at, created_at
		FROM app_sessions
		WHERE token = $1
		FOR UPDATE
	`
	s := &models.AppSession{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&s.Token, &s.OwnerLogin, &s.CredentialHash, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) FindValid(ctx context.Context, token string, now time.Time) (*models.AppSession, *models.User, error) {
	query := `
		SELECT s.token, s.owner_login, COALESCE(s.credential_hash, ''), s.expires_at, s.created_at,
		       u.login, u.password_hash, u.quota_bytes, u.is_admin, u.created_at
		FROM app_sessions s
		INNER JOIN users u ON u.login = s.owner_login
		WHERE s.token = $1 AND s.expires_at > $2
	`
	s := &models.AppSession{}
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, token, now).Scan(
		&s.Token, &s.OwnerLogin, &s.CredentialHash, &s.ExpiresAt, &s.CreatedAt,
		&u.Login, &u.PasswordHash, &u.QuotaBytes, &u.IsAdmin, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("db error: %w", err)
	}
	return s, u, nil
}

func (r *PostgresRepository) Rotate(ctx context.Context, oldToken, newToken, credentialHash string, expires time.Time) error {
	query := `
		UPDATE app_sessions
		SET token = $1, credential_hash = $2, expires_at = $3
		WHERE token = $4
	`
	res, err := r.db.ExecContext(ctx, query, newToken, credentialHash, expires, oldToken)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM app_sessions
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, login string) ([]models.AppSession, error) {
	query := `
		SELECT token, owner_login, COALESCE(credential_hash, ''), expires_at, created_at
		FROM app_sessions
		WHERE owner_login = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, login)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.AppSession
	for rows.Next() {
		var s models.AppSession
		if err := rows.Scan(&s.Token, &s.OwnerLogin, &s.CredentialHash, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, login, token string) error {
	query := `
		DELETE FROM app_sessions
		WHERE owner_login = $1 AND token = $2
	`
	if _, err := r.db.ExecContext(ctx, query, login, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
