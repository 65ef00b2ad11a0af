package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/dmitrijs2005/davkeeper/internal/dbx"
	"github.com/dmitrijs2005/davkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.User, error) {
	query :=
		`SELECT login, password_hash, quota_bytes, is_admin, created_at FROM users
		 ORDER BY login
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.Login, &u.PasswordHash, &u.QuotaBytes, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	query :=
		`SELECT login, password_hash, quota_bytes, is_admin, created_at FROM users
		 WHERE login = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, login).
		Scan(&user.Login, &user.PasswordHash, &user.QuotaBytes, &user.IsAdmin, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	query :=
		`INSERT INTO users (login, password_hash, quota_bytes, is_admin)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (login) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, user.Login, user.PasswordHash, user.QuotaBytes, user.IsAdmin)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := dbx.RowsAffected(res)
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (r *PostgresRepository) Update(ctx context.Context, login string, changes models.UserChanges) error {
	if changes.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if changes.PasswordHash != nil {
		set("password_hash", *changes.PasswordHash)
	}
	if changes.QuotaBytes != nil {
		set("quota_bytes", *changes.QuotaBytes)
	}
	if changes.IsAdmin != nil {
		set("is_admin", *changes.IsAdmin)
	}

	args = append(args, login)
	query := fmt.Sprintf("UPDATE users SET %s WHERE login = $%d", strings.Join(sets, ", "), len(args))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
