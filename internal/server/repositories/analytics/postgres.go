// Package analytics persists append-only usage events.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, event *models.AnalyticsEvent) error {
	meta := event.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query :=
		`INSERT INTO analytics (id, user_id, file_id, action, metadata)
		 VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query, event.ID, event.UserID, event.FileID, event.Action, b); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM analytics WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
