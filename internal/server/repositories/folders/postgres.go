package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

const columns = `id, name, path, description, parent_id, user_id, created_at, updated_at`

// PostgresRepository implements folder storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFolder(row scanner) (*models.Folder, error) {
	f := &models.Folder{}
	err := row.Scan(&f.ID, &f.Name, &f.Path, &f.Description, &f.ParentID, &f.UserID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *PostgresRepository) list(ctx context.Context, where string, arg any) ([]models.Folder, error) {
	query := `SELECT ` + columns + ` FROM folders WHERE ` + where + ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	result := make([]models.Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		result = append(result, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	query :=
		`INSERT INTO folders (id, name, path, description, parent_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		folder.ID, folder.Name, folder.Path, folder.Description, folder.ParentID, folder.UserID).
		Scan(&folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folder, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := `SELECT ` + columns + ` FROM folders WHERE id = $1`

	f, err := scanFolder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Folder, error) {
	return r.list(ctx, `user_id = $1`, userID)
}

func (r *PostgresRepository) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	return r.list(ctx, `parent_id = $1`, parentID)
}

func (r *PostgresRepository) Update(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	query :=
		`UPDATE folders SET name = $2, path = $3, description = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, folder.ID, folder.Name, folder.Path, folder.Description).
		Scan(&folder.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folder, nil
}

func (r *PostgresRepository) RewriteDescendantPaths(ctx context.Context, folderID, oldPrefix, newPrefix string) (int64, error) {
	query :=
		`WITH RECURSIVE tree AS (
		   SELECT id FROM folders WHERE parent_id = $1
		   UNION ALL
		   SELECT f.id FROM folders f JOIN tree t ON f.parent_id = t.id
		 )
		 UPDATE folders
		 SET path = $3 || substr(path, length($2) + 1), updated_at = now()
		 WHERE id IN (SELECT id FROM tree)`

	res, err := r.db.ExecContext(ctx, query, folderID, oldPrefix, newPrefix)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountContents(ctx context.Context, id string) (int64, int64, error) {
	query :=
		`SELECT
		   (SELECT COUNT(*) FROM folders WHERE parent_id = $1),
		   (SELECT COUNT(*) FROM files WHERE folder_id = $1)`

	var children, files int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&children, &files); err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return children, files, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
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

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
