package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/config"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/storage"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UploadInput is one file to store. Body must be seekable: it is read once
// for hashing and again by the object store.
type UploadInput struct {
	Body         io.ReadSeeker
	OriginalName string
	MimeType     string
	FolderID     *string
	Description  string
	Tags         []string
	IsPublic     bool
}

// UploadFailure names a batch member that could not be stored.
type UploadFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// BatchResult lists what a batch upload stored and what it skipped.
type BatchResult struct {
	Files  []models.File   `json:"files"`
	Failed []UploadFailure `json:"failed,omitempty"`
}

// ListInput filters and pages a file listing. SortBy is accepted for
// compatibility; ordering is always by upload time.
type ListInput struct {
	FolderID  *string
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type ListResult struct {
	Files      []models.File
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// UpdateFileInput is a partial update; nil fields are left unchanged.
type UpdateFileInput struct {
	Name        *string
	Description *string
	Tags        *[]string
	IsPublic    *bool
}

// Download is an open object stream. The caller must close Body.
type Download struct {
	File *models.File
	Info *storage.ObjectInfo
	Body io.ReadCloser
}

type PresignedURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// FileService runs the upload, store and serve lifecycle of files. Bytes
// go to the object store before the metadata row is written; an upload
// intent row covers the gap until the Reconciler can clean up.
type FileService struct {
	db              dbx.Transactor
	repomanager     repomanager.RepositoryManager
	store           storage.ObjectStore
	prefix          string
	presignValidity time.Duration
	log             logging.Logger
}

func NewFileService(db dbx.Transactor, m repomanager.RepositoryManager, store storage.ObjectStore,
	cfg *config.Config, log logging.Logger) *FileService {
	prefix := cfg.StoragePrefix
	if prefix == "" {
		prefix = common.DefaultStoragePrefix
	}
	return &FileService{
		db:              db,
		repomanager:     m,
		store:           store,
		prefix:          prefix,
		presignValidity: cfg.PresignValidity,
		log:             log.With("module", "files"),
	}
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// Upload stores one file for the caller.
func (s *FileService) Upload(ctx context.Context, p *auth.Principal, in UploadInput) (*models.File, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}
	if in.Body == nil {
		return nil, common.NewError(common.ErrorBadRequest, "No file provided")
	}

	var folderID *string
	if in.FolderID != nil && *in.FolderID != "" {
		folder, err := ownedFolder(ctx, s.repomanager, s.db, p, *in.FolderID, "Folder not found")
		if err != nil {
			return nil, err
		}
		folderID = &folder.ID
	}

	hash, size, err := storage.HashReader(in.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}
	if _, err := in.Body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error rewinding upload: %w", err)
	}

	key := storage.Key(s.prefix, hash, in.OriginalName)
	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	intent := &models.UploadIntent{ID: uuid.NewString(), StorageKey: key, UserID: p.UserID}
	if err := s.repomanager.Intents(s.db).Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("error recording upload intent: %w", err)
	}

	err = s.store.Put(ctx, key, in.Body, size, storage.PutOptions{
		ContentType:  mimeType,
		ContentHash:  hash,
		OriginalName: in.OriginalName,
	})
	if err != nil {
		s.log.Error(ctx, "object store put failed", "key", key, "user_id", p.UserID, "error", err)
		return nil, common.NewError(common.ErrorStorage, "Failed to store file")
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	file, err := s.repomanager.Files(s.db).Create(ctx, &models.File{
		ID:           uuid.NewString(),
		Name:         in.OriginalName,
		OriginalName: in.OriginalName,
		StorageKey:   key,
		Size:         size,
		MimeType:     mimeType,
		Extension:    extension(in.OriginalName),
		ContentHash:  hash,
		Description:  strings.TrimSpace(in.Description),
		Tags:         tags,
		IsPublic:     in.IsPublic,
		FolderID:     folderID,
		UserID:       p.UserID,
	})
	if err != nil {
		// the intent stays behind so the reconciler can remove the object
		return nil, fmt.Errorf("error creating file record: %w", err)
	}

	if err := s.repomanager.Intents(s.db).Delete(ctx, intent.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Warn(ctx, "upload intent not cleared", "intent_id", intent.ID, "error", err)
	}

	recordEvent(ctx, s.db, s.repomanager, s.log, p.UserID, &file.ID, models.ActionFileUpload,
		map[string]any{"fileName": file.Name, "fileSize": file.Size})
	return file, nil
}

// UploadBatch stores each file independently. A failed member is logged
// and skipped; the rest are still stored.
func (s *FileService) UploadBatch(ctx context.Context, p *auth.Principal, inputs []UploadInput) (*BatchResult, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}
	if len(inputs) == 0 {
		return nil, common.NewError(common.ErrorBadRequest, "No files provided")
	}

	result := &BatchResult{Files: make([]models.File, 0, len(inputs))}
	for _, in := range inputs {
		file, err := s.Upload(ctx, p, in)
		if err != nil {
			s.log.Warn(ctx, "batch member skipped", "name", in.OriginalName, "user_id", p.UserID, "error", err)
			result.Failed = append(result.Failed, UploadFailure{
				Name:  in.OriginalName,
				Error: common.Message(err, "Failed to upload file"),
			})
			continue
		}
		result.Files = append(result.Files, *file)
	}
	return result, nil
}

// List pages through the caller's files.
func (s *FileService) List(ctx context.Context, p *auth.Principal, in ListInput) (*ListResult, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}

	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	q := files.ListQuery{
		UserID: p.UserID,
		Search: strings.TrimSpace(in.Search),
		Offset: (page - 1) * limit,
		Limit:  limit,
		Desc:   !strings.EqualFold(in.SortOrder, "asc"),
	}
	if in.FolderID != nil && *in.FolderID != "" {
		q.FolderID = in.FolderID
	}

	list, total, err := s.repomanager.Files(s.db).List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("error listing files: %w", err)
	}
	if list == nil {
		list = []models.File{}
	}

	return &ListResult{
		Files:      list,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

func (s *FileService) load(ctx context.Context, p *auth.Principal, id string, action auth.Action) (*models.File, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}
	file, err := s.repomanager.Files(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "File not found", "error loading file")
	}
	if err := auth.Authorize(p, action, auth.Resource{Kind: "File", OwnerID: file.UserID, Public: file.IsPublic}); err != nil {
		return nil, err
	}
	return file, nil
}

// Get returns a file the caller owns or that is public.
func (s *FileService) Get(ctx context.Context, p *auth.Principal, id string) (*models.File, error) {
	return s.load(ctx, p, id, auth.ActionRead)
}

// Download opens the object behind a visible file. A row without its
// object is reported as "File not found on disk".
func (s *FileService) Download(ctx context.Context, p *auth.Principal, id string) (*Download, error) {
	file, err := s.load(ctx, p, id, auth.ActionRead)
	if err != nil {
		return nil, err
	}

	body, info, err := s.store.Get(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "file object missing", "file_id", file.ID, "key", file.StorageKey)
			return nil, common.NewError(common.ErrorNotFound, "File not found on disk")
		}
		s.log.Error(ctx, "object store get failed", "key", file.StorageKey, "error", err)
		return nil, common.NewError(common.ErrorStorage, "Failed to download file")
	}

	recordEvent(ctx, s.db, s.repomanager, s.log, p.UserID, &file.ID, models.ActionFileDownload,
		map[string]any{"fileName": file.OriginalName, "fileSize": file.Size})
	return &Download{File: file, Info: info, Body: body}, nil
}

// PresignedURL returns a time-limited direct download link for a visible file.
func (s *FileService) PresignedURL(ctx context.Context, p *auth.Principal, id string) (*PresignedURL, error) {
	file, err := s.load(ctx, p, id, auth.ActionRead)
	if err != nil {
		return nil, err
	}

	url, err := s.store.Presign(ctx, file.StorageKey, file.OriginalName, s.presignValidity)
	if err != nil {
		if errors.Is(err, common.ErrorUnsupported) {
			return nil, common.NewError(common.ErrorUnsupported, "Download links are not supported by this storage backend")
		}
		s.log.Error(ctx, "presign failed", "key", file.StorageKey, "error", err)
		return nil, common.NewError(common.ErrorStorage, "Failed to generate download link")
	}
	return &PresignedURL{URL: url, ExpiresIn: int(s.presignValidity / time.Second)}, nil
}

// Update changes the descriptive fields of an owned file.
func (s *FileService) Update(ctx context.Context, p *auth.Principal, id string, in UpdateFileInput) (*models.File, error) {
	file, err := s.load(ctx, p, id, auth.ActionWrite)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, common.NewValidationError("name", "File name is required")
		}
		file.Name = name
	}
	if in.Description != nil {
		file.Description = strings.TrimSpace(*in.Description)
	}
	if in.Tags != nil {
		file.Tags = *in.Tags
		if file.Tags == nil {
			file.Tags = []string{}
		}
	}
	if in.IsPublic != nil {
		file.IsPublic = *in.IsPublic
	}

	updated, err := s.repomanager.Files(s.db).Update(ctx, file)
	if err != nil {
		return nil, notFound(err, "File not found", "error updating file")
	}
	return updated, nil
}

// Move puts an owned file into an owned folder, or at the root when
// folderID is nil or empty.
func (s *FileService) Move(ctx context.Context, p *auth.Principal, id string, folderID *string) (*models.File, error) {
	file, err := s.load(ctx, p, id, auth.ActionWrite)
	if err != nil {
		return nil, err
	}

	file.FolderID = nil
	if folderID != nil && *folderID != "" {
		folder, err := ownedFolder(ctx, s.repomanager, s.db, p, *folderID, "Target folder not found")
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorBadRequest, "Target folder not found")
		}
		if err != nil {
			return nil, err
		}
		file.FolderID = &folder.ID
	}

	updated, err := s.repomanager.Files(s.db).Update(ctx, file)
	if err != nil {
		return nil, notFound(err, "File not found", "error moving file")
	}
	return updated, nil
}

// Delete removes the object, then the row. The object is kept while another
// row shares its key. When the object delete fails the row stays in place.
func (s *FileService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	file, err := s.load(ctx, p, id, auth.ActionWrite)
	if err != nil {
		return err
	}

	repo := s.repomanager.Files(s.db)

	shared, err := repo.CountByStorageKey(ctx, file.StorageKey, file.ID)
	if err != nil {
		return fmt.Errorf("error checking storage key: %w", err)
	}
	if shared == 0 {
		if err := s.store.Delete(ctx, file.StorageKey); err != nil {
			s.log.Error(ctx, "object store delete failed", "key", file.StorageKey, "file_id", file.ID, "error", err)
			return common.NewError(common.ErrorStorage, "Failed to delete file from storage")
		}
	}

	if err := repo.Delete(ctx, file.ID); err != nil {
		return notFound(err, "File not found", "error deleting file")
	}

	recordEvent(ctx, s.db, s.repomanager, s.log, p.UserID, &file.ID, models.ActionFileDelete,
		map[string]any{"fileName": file.OriginalName})
	return nil
}
