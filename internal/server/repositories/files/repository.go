package files

import (
	"context"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

// ListQuery filters a user's files. A nil FolderID lists files in every
// folder. Search matches name, original name and description
// case-insensitively.
type ListQuery struct {
	UserID   string
	FolderID *string
	Search   string
	Offset   int
	Limit    int
	Desc     bool
}

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id string) (*models.File, error)
	List(ctx context.Context, q ListQuery) ([]models.File, int64, error)
	ListByFolder(ctx context.Context, folderID string) ([]models.File, error)
	ListByUser(ctx context.Context, userID string) ([]models.File, error)
	Update(ctx context.Context, file *models.File) (*models.File, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	// CountByStorageKey counts rows pointing at key, ignoring excludeID.
	CountByStorageKey(ctx context.Context, key, excludeID string) (int64, error)
}
