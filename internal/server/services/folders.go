package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type CreateFolderInput struct {
	Name        string
	Description string
	ParentID    *string
}

// UpdateFolderInput is a partial update; nil fields are left unchanged.
type UpdateFolderInput struct {
	Name        *string
	Description *string
}

// FolderService manages a user's folder tree. Folders are never re-parented,
// so the tree cannot acquire cycles.
type FolderService struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewFolderService(db dbx.Transactor, m repomanager.RepositoryManager, log logging.Logger) *FolderService {
	return &FolderService{db: db, repomanager: m, log: log.With("module", "folders")}
}

func validateFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", common.NewValidationError("name", "Folder name is required")
	}
	if strings.Contains(name, "/") {
		return "", common.NewValidationError("name", "Folder name cannot contain '/'")
	}
	return name, nil
}

// List returns the caller's folders, newest first.
func (s *FolderService) List(ctx context.Context, p *auth.Principal) ([]models.Folder, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}
	folders, err := s.repomanager.Folders(s.db).ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("error listing folders: %w", err)
	}
	return folders, nil
}

func (s *FolderService) owned(ctx context.Context, db dbx.DBTX, p *auth.Principal, id, message string) (*models.Folder, error) {
	return ownedFolder(ctx, s.repomanager, db, p, id, message)
}

// ownedFolder loads a folder and checks p owns it. Both failures report
// message as NotFound.
func ownedFolder(ctx context.Context, m repomanager.RepositoryManager, db dbx.DBTX, p *auth.Principal, id, message string) (*models.Folder, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}
	folder, err := m.Folders(db).GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, message, "error loading folder")
	}
	if err := auth.Authorize(p, auth.ActionWrite, auth.Resource{Kind: "Folder", OwnerID: folder.UserID}); err != nil {
		return nil, common.NewError(common.ErrorNotFound, message)
	}
	return folder, nil
}

// Create adds a folder at the root or under an owned parent.
func (s *FolderService) Create(ctx context.Context, p *auth.Principal, in CreateFolderInput) (*models.Folder, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}

	name, err := validateFolderName(in.Name)
	if err != nil {
		return nil, err
	}

	folderPath := "/" + name
	var parentID *string
	if in.ParentID != nil && *in.ParentID != "" {
		parent, err := s.owned(ctx, s.db, p, *in.ParentID, "Parent folder not found")
		if err != nil {
			return nil, err
		}
		folderPath = parent.Path + "/" + name
		parentID = &parent.ID
	}

	folder, err := s.repomanager.Folders(s.db).Create(ctx, &models.Folder{
		ID:          uuid.NewString(),
		Name:        name,
		Path:        folderPath,
		Description: strings.TrimSpace(in.Description),
		ParentID:    parentID,
		UserID:      p.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating folder: %w", err)
	}

	recordEvent(ctx, s.db, s.repomanager, s.log, p.UserID, nil, models.ActionFolderCreate,
		map[string]any{"folderId": folder.ID, "folderName": folder.Name})
	return folder, nil
}

// Get returns an owned folder with its direct children and files.
func (s *FolderService) Get(ctx context.Context, p *auth.Principal, id string) (*models.FolderDetail, error) {
	folder, err := s.owned(ctx, s.db, p, id, "Folder not found")
	if err != nil {
		return nil, err
	}

	children, err := s.repomanager.Folders(s.db).ListChildren(ctx, folder.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing child folders: %w", err)
	}
	files, err := s.repomanager.Files(s.db).ListByFolder(ctx, folder.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing folder files: %w", err)
	}

	if children == nil {
		children = []models.Folder{}
	}
	if files == nil {
		files = []models.File{}
	}
	return &models.FolderDetail{Folder: *folder, Children: children, Files: files}, nil
}

// Update renames or re-describes an owned folder. A rename rewrites the
// materialized path of the folder and every descendant in one transaction.
func (s *FolderService) Update(ctx context.Context, p *auth.Principal, id string, in UpdateFolderInput) (*models.Folder, error) {
	var result *models.Folder

	err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		folder, err := s.owned(ctx, tx, p, id, "Folder not found")
		if err != nil {
			return err
		}

		oldPath := folder.Path
		if in.Name != nil {
			name, err := validateFolderName(*in.Name)
			if err != nil {
				return err
			}
			folder.Name = name
			folder.Path = path.Join(path.Dir(oldPath), name)
		}
		if in.Description != nil {
			folder.Description = strings.TrimSpace(*in.Description)
		}

		repo := s.repomanager.Folders(tx)
		updated, err := repo.Update(ctx, folder)
		if err != nil {
			return notFound(err, "Folder not found", "error updating folder")
		}
		if updated.Path != oldPath {
			if _, err := repo.RewriteDescendantPaths(ctx, updated.ID, oldPath, updated.Path); err != nil {
				return fmt.Errorf("error rewriting folder paths: %w", err)
			}
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes an owned folder that holds no subfolders and no files.
func (s *FolderService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	folder, err := s.owned(ctx, s.db, p, id, "Folder not found")
	if err != nil {
		return err
	}

	repo := s.repomanager.Folders(s.db)

	children, files, err := repo.CountContents(ctx, folder.ID)
	if err != nil {
		return fmt.Errorf("error counting folder contents: %w", err)
	}
	if children > 0 || files > 0 {
		return common.NewError(common.ErrorConflict,
			"Cannot delete folder with contents. Please remove all files and subfolders first.")
	}

	if err := repo.Delete(ctx, folder.ID); err != nil {
		return notFound(err, "Folder not found", "error deleting folder")
	}

	recordEvent(ctx, s.db, s.repomanager, s.log, p.UserID, nil, models.ActionFolderDelete,
		map[string]any{"folderId": folder.ID, "folderName": folder.Name})
	return nil
}
