// Package intents stores write-ahead records for object uploads so objects
// whose metadata never committed can be found and removed later.
package intents

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, intent *models.UploadIntent) error {
	query :=
		`INSERT INTO upload_intents (id, storage_key, user_id)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`

	if err := r.db.QueryRowContext(ctx, query, intent.ID, intent.StorageKey, intent.UserID).Scan(&intent.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM upload_intents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.UploadIntent, error) {
	query :=
		`SELECT id, storage_key, user_id, created_at FROM upload_intents
		 WHERE created_at < $1
		 ORDER BY created_at
		 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select intents: %w", err)
	}
	defer rows.Close()

	var result []models.UploadIntent
	for rows.Next() {
		var i models.UploadIntent
		if err := rows.Scan(&i.ID, &i.StorageKey, &i.UserID, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		result = append(result, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM upload_intents WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
