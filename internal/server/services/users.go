package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/config"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/storage"
	"github.com/google/uuid"
)

type CreateUserInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
	// Role defaults to USER when empty.
	Role models.Role
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	Email     *string
	Username  *string
	FirstName *string
	LastName  *string
	Role      *models.Role
	IsActive  *bool
}

// UserAdminService is account management for administrators.
type UserAdminService struct {
	db           dbx.Transactor
	repomanager  repomanager.RepositoryManager
	store        storage.ObjectStore
	cache        *PrincipalCache
	passwordCost int
	log          logging.Logger
}

func NewUserAdminService(db dbx.Transactor, m repomanager.RepositoryManager, store storage.ObjectStore,
	cache *PrincipalCache, cfg *config.Config, log logging.Logger) *UserAdminService {
	return &UserAdminService{
		db:           db,
		repomanager:  m,
		store:        store,
		cache:        cache,
		passwordCost: cfg.BcryptCostAdmin,
		log:          log.With("module", "users"),
	}
}

func uniquenessError(emailTaken, usernameTaken bool) error {
	switch {
	case emailTaken:
		return common.NewError(common.ErrorConflict, "Email already exists")
	case usernameTaken:
		return common.NewError(common.ErrorConflict, "Username already exists")
	}
	return nil
}

func invalidRole() error {
	return common.NewValidationError("role", "Role must be one of USER, EDITOR, ADMIN")
}

// List returns every account, newest first.
func (s *UserAdminService) List(ctx context.Context, p *auth.Principal) ([]models.User, error) {
	if err := auth.Authorize(p, auth.ActionManageUsers, auth.Resource{Kind: "User"}); err != nil {
		return nil, err
	}
	users, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// Create adds an active account with the given role.
func (s *UserAdminService) Create(ctx context.Context, p *auth.Principal, in CreateUserInput) (*models.User, error) {
	if err := auth.Authorize(p, auth.ActionManageUsers, auth.Resource{Kind: "User"}); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, invalidRole()
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	repo := s.repomanager.Users(s.db)

	emailTaken, usernameTaken, err := repo.Taken(ctx, email, username, "")
	if err != nil {
		return nil, fmt.Errorf("error checking user uniqueness: %w", err)
	}
	if err := uniquenessError(emailTaken, usernameTaken); err != nil {
		return nil, err
	}

	digest, err := auth.HashPassword(in.Password, s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := repo.Create(ctx, &models.User{
		ID:             uuid.NewString(),
		Email:          email,
		Username:       username,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		PasswordDigest: digest,
		Role:           role,
		IsActive:       true,
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.NewError(common.ErrorConflict, "Email or username already exists")
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user created", "user_id", user.ID, "by", p.UserID)
	return user, nil
}

// Update changes any account's fields. Email and username must stay unique.
func (s *UserAdminService) Update(ctx context.Context, p *auth.Principal, id string, in UpdateUserInput) (*models.User, error) {
	if err := auth.Authorize(p, auth.ActionManageUsers, auth.Resource{Kind: "User"}); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "User not found", "error loading user")
	}

	email, username := user.Email, user.Username
	if in.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
	}
	if email != user.Email || username != user.Username {
		emailTaken, usernameTaken, err := repo.Taken(ctx, email, username, user.ID)
		if err != nil {
			return nil, fmt.Errorf("error checking user uniqueness: %w", err)
		}
		if err := uniquenessError(emailTaken, usernameTaken); err != nil {
			return nil, err
		}
	}
	user.Email, user.Username = email, username

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, invalidRole()
		}
		user.Role = *in.Role
	}
	if in.IsActive != nil {
		if !*in.IsActive {
			if err := auth.Authorize(p, auth.ActionToggleUser, auth.Resource{Kind: "User", OwnerID: id}); err != nil {
				return nil, err
			}
		}
		user.IsActive = *in.IsActive
	}

	updated, err := repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.NewError(common.ErrorConflict, "Email or username already exists")
		}
		return nil, notFound(err, "User not found", "error updating user")
	}
	s.cache.Remove(id)
	return updated, nil
}

// Delete removes an account and everything it owns. Objects go first; if
// any object delete fails nothing else is removed. The rows then go in a
// single transaction.
func (s *UserAdminService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if err := auth.Authorize(p, auth.ActionDeleteUser, auth.Resource{Kind: "User", OwnerID: id}); err != nil {
		return err
	}

	if _, err := s.repomanager.Users(s.db).GetByID(ctx, id); err != nil {
		return notFound(err, "User not found", "error loading user")
	}

	if err := s.deleteObjects(ctx, id); err != nil {
		return err
	}

	err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Analytics(tx).DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("error deleting analytics: %w", err)
		}
		if err := s.repomanager.Files(tx).DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("error deleting files: %w", err)
		}
		if err := s.repomanager.Folders(tx).DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("error deleting folders: %w", err)
		}
		if err := s.repomanager.Intents(tx).DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("error deleting upload intents: %w", err)
		}
		return s.repomanager.Users(tx).Delete(ctx, id)
	})
	s.cache.Remove(id)
	if err != nil {
		return notFound(err, "User not found", "error deleting user")
	}

	s.log.Info(ctx, "user deleted", "user_id", id, "by", p.UserID)
	return nil
}

// deleteObjects removes the objects of userID's files that no other
// account's file still references.
func (s *UserAdminService) deleteObjects(ctx context.Context, userID string) error {
	repo := s.repomanager.Files(s.db)

	owned, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("error listing user files: %w", err)
	}

	perKey := make(map[string]int64)
	for _, f := range owned {
		perKey[f.StorageKey]++
	}

	for key, n := range perKey {
		total, err := repo.CountByStorageKey(ctx, key, "")
		if err != nil {
			return fmt.Errorf("error checking storage key: %w", err)
		}
		if total > n {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Error(ctx, "object store delete failed", "key", key, "user_id", userID, "error", err)
			return common.NewError(common.ErrorStorage, "Failed to delete user files from storage")
		}
	}
	return nil
}

// ToggleStatus flips an account between active and inactive.
func (s *UserAdminService) ToggleStatus(ctx context.Context, p *auth.Principal, id string) (*models.User, error) {
	if err := auth.Authorize(p, auth.ActionToggleUser, auth.Resource{Kind: "User", OwnerID: id}); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "User not found", "error loading user")
	}
	user.IsActive = !user.IsActive

	updated, err := repo.Update(ctx, user)
	if err != nil {
		return nil, notFound(err, "User not found", "error updating user")
	}
	s.cache.Remove(id)

	s.log.Info(ctx, "user status changed", "user_id", id, "active", updated.IsActive, "by", p.UserID)
	return updated, nil
}
