package intents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, intent *models.UploadIntent) error
	Delete(ctx context.Context, id string) error
	// ListOlderThan returns at most limit intents created before cutoff,
	// oldest first.
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.UploadIntent, error)
	DeleteByUser(ctx context.Context, userID string) error
}
