// Package services contains the server-side business logic: authentication,
// folders, files and user administration. Services receive the acting
// principal from the transport layer and decide access through auth.Authorize.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// recordEvent appends an analytics event. Failures are logged and swallowed.
func recordEvent(ctx context.Context, db dbx.DBTX, m repomanager.RepositoryManager, log logging.Logger,
	userID string, fileID *string, action string, meta map[string]any) {
	event := &models.AnalyticsEvent{
		ID:       uuid.NewString(),
		UserID:   userID,
		FileID:   fileID,
		Action:   action,
		Metadata: meta,
	}
	if err := m.Analytics(db).Create(ctx, event); err != nil {
		log.Warn(ctx, "analytics event not recorded", "action", action, "user_id", userID, "error", err)
	}
}

// notFound rewrites a bare repository ErrorNotFound into a caller-facing
// message and wraps anything else.
func notFound(err error, message, op string) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.NewError(common.ErrorNotFound, message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
