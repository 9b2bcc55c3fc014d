package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

const columns = `id, email, username, first_name, last_name, avatar, password_digest, role, is_active, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.Avatar,
		&u.PasswordDigest, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return u, nil
}

func dbError(err error) error {
	if dbx.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", common.ErrorConflict, err)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, email, username, first_name, last_name, avatar, password_digest, role, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Username, user.FirstName, user.LastName, user.Avatar,
		user.PasswordDigest, string(user.Role), user.IsActive).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, dbError(err)
	}

	return user, nil
}

func (r *PostgresRepository) get(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + columns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, `id = $1`, id)
}

// GetByEmail expects email already lowercased.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.get(ctx, `email = $1`, email)
}

func (r *PostgresRepository) Taken(ctx context.Context, email, username, excludeID string) (bool, bool, error) {
	query :=
		`SELECT
		   COALESCE(bool_or(email = $1), false),
		   COALESCE(bool_or(username = $2), false)
		 FROM users
		 WHERE (email = $1 OR username = $2) AND id <> $3`

	var emailTaken, usernameTaken bool
	if err := r.db.QueryRowContext(ctx, query, email, username, excludeID).Scan(&emailTaken, &usernameTaken); err != nil {
		return false, false, fmt.Errorf("db error: %w", err)
	}
	return emailTaken, usernameTaken, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + columns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// Update writes every mutable column of user and refreshes UpdatedAt.
func (r *PostgresRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`UPDATE users
		 SET email = $2, username = $3, first_name = $4, last_name = $5, avatar = $6,
		     password_digest = $7, role = $8, is_active = $9, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Username, user.FirstName, user.LastName, user.Avatar,
		user.PasswordDigest, string(user.Role), user.IsActive).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbError(err)
	}
	return user, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context, id string) (*models.UserStats, error) {
	query :=
		`SELECT
		   (SELECT COUNT(*) FROM files WHERE user_id = $1),
		   (SELECT COUNT(*) FROM folders WHERE user_id = $1),
		   (SELECT COALESCE(SUM(size), 0) FROM files WHERE user_id = $1)`

	s := &models.UserStats{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&s.FileCount, &s.FolderCount, &s.TotalSize); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}
