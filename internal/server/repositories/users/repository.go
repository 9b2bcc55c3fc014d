package users

import (
	"context"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Taken reports whether email or username belong to a user other than
	// excludeID. Pass an empty excludeID to check against everyone.
	Taken(ctx context.Context, email, username, excludeID string) (emailTaken, usernameTaken bool, err error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, id string) (*models.UserStats, error)
}
