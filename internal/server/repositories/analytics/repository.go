package analytics

import (
	"context"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, event *models.AnalyticsEvent) error
	DeleteByUser(ctx context.Context, userID string) error
}
