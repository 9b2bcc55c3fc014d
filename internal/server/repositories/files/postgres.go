package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

const columns = `id, name, original_name, storage_key, size, mime_type, extension, content_hash,
	description, tags, is_public, folder_id, user_id, uploaded_at, updated_at`

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*models.File, error) {
	f := &models.File{}
	var tags []byte
	err := row.Scan(&f.ID, &f.Name, &f.OriginalName, &f.StorageKey, &f.Size, &f.MimeType, &f.Extension,
		&f.ContentHash, &f.Description, &tags, &f.IsPublic, &f.FolderID, &f.UserID, &f.UploadedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &f.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return f, nil
}

func encodeTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(tags)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := make([]models.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		result = append(result, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	tags, err := encodeTags(file.Tags)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO files (id, name, original_name, storage_key, size, mime_type, extension, content_hash,
		                    description, tags, is_public, folder_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING uploaded_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		file.ID, file.Name, file.OriginalName, file.StorageKey, file.Size, file.MimeType, file.Extension,
		file.ContentHash, file.Description, tags, file.IsPublic, file.FolderID, file.UserID).
		Scan(&file.UploadedAt, &file.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if file.Tags == nil {
		file.Tags = []string{}
	}
	return file, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + columns + ` FROM files WHERE id = $1`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// escapeLike escapes ILIKE wildcards so search input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns one page of matching files and the total number of matches.
// Ordering is always by upload time.
func (r *PostgresRepository) List(ctx context.Context, q ListQuery) ([]models.File, int64, error) {
	where := []string{"user_id = $1"}
	args := []any{q.UserID}

	if q.FolderID != nil {
		args = append(args, *q.FolderID)
		where = append(where, fmt.Sprintf("folder_id = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR original_name ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	order := "ASC"
	if q.Desc {
		order = "DESC"
	}
	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset)
	query := fmt.Sprintf(`SELECT %s FROM files WHERE %s ORDER BY uploaded_at %s, id %s LIMIT $%d OFFSET $%d`,
		columns, cond, order, order, len(args)+1, len(args)+2)

	result, err := r.query(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PostgresRepository) ListByFolder(ctx context.Context, folderID string) ([]models.File, error) {
	return r.query(ctx, `SELECT `+columns+` FROM files WHERE folder_id = $1 ORDER BY uploaded_at DESC`, folderID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.File, error) {
	return r.query(ctx, `SELECT `+columns+` FROM files WHERE user_id = $1 ORDER BY uploaded_at DESC`, userID)
}

// Update writes the descriptive fields and folder of file. Storage key,
// size and hash are immutable.
func (r *PostgresRepository) Update(ctx context.Context, file *models.File) (*models.File, error) {
	tags, err := encodeTags(file.Tags)
	if err != nil {
		return nil, err
	}

	query :=
		`UPDATE files
		 SET name = $2, description = $3, tags = $4, is_public = $5, folder_id = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`

	err = r.db.QueryRowContext(ctx, query, file.ID, file.Name, file.Description, tags, file.IsPublic, file.FolderID).
		Scan(&file.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
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
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountByStorageKey(ctx context.Context, key, excludeID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE storage_key = $1 AND id <> $2`, key, excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
