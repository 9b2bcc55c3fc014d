package folders

import (
	"context"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	ListByUser(ctx context.Context, userID string) ([]models.Folder, error)
	ListChildren(ctx context.Context, parentID string) ([]models.Folder, error)
	Update(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	// RewriteDescendantPaths replaces oldPrefix with newPrefix in the path of
	// every folder below folderID, following parent_id links.
	RewriteDescendantPaths(ctx context.Context, folderID, oldPrefix, newPrefix string) (int64, error)
	// CountContents returns the number of direct child folders and files.
	CountContents(ctx context.Context, id string) (children int64, files int64, err error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}
