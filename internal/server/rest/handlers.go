package rest

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/config"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/health"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/services"
)

type AuthAPI interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Profile(ctx context.Context, p *auth.Principal) (*services.Profile, error)
	UpdateProfile(ctx context.Context, p *auth.Principal, in services.ProfileUpdate) (*models.User, error)
}

type FolderAPI interface {
	List(ctx context.Context, p *auth.Principal) ([]models.Folder, error)
	Create(ctx context.Context, p *auth.Principal, in services.CreateFolderInput) (*models.Folder, error)
	Get(ctx context.Context, p *auth.Principal, id string) (*models.FolderDetail, error)
	Update(ctx context.Context, p *auth.Principal, id string, in services.UpdateFolderInput) (*models.Folder, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
}

type FileAPI interface {
	Upload(ctx context.Context, p *auth.Principal, in services.UploadInput) (*models.File, error)
	UploadBatch(ctx context.Context, p *auth.Principal, in []services.UploadInput) (*services.BatchResult, error)
	List(ctx context.Context, p *auth.Principal, in services.ListInput) (*services.ListResult, error)
	Get(ctx context.Context, p *auth.Principal, id string) (*models.File, error)
	Download(ctx context.Context, p *auth.Principal, id string) (*services.Download, error)
	PresignedURL(ctx context.Context, p *auth.Principal, id string) (*services.PresignedURL, error)
	Update(ctx context.Context, p *auth.Principal, id string, in services.UpdateFileInput) (*models.File, error)
	Move(ctx context.Context, p *auth.Principal, id string, folderID *string) (*models.File, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
}

type UserAPI interface {
	List(ctx context.Context, p *auth.Principal) ([]models.User, error)
	Create(ctx context.Context, p *auth.Principal, in services.CreateUserInput) (*models.User, error)
	Update(ctx context.Context, p *auth.Principal, id string, in services.UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
	ToggleStatus(ctx context.Context, p *auth.Principal, id string) (*models.User, error)
}

type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Auth    AuthAPI
	Folders FolderAPI
	Files   FileAPI
	Users   UserAPI
	Health  HealthChecker
	Config  *config.Config
	Logger  logging.Logger
}

// Handlers holds the route handlers.
type Handlers struct {
	auth        AuthAPI
	folders     FolderAPI
	files       FileAPI
	users       UserAPI
	health      HealthChecker
	upload      uploadRules
	development bool
	log         logging.Logger
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		auth:    d.Auth,
		folders: d.Folders,
		files:   d.Files,
		users:   d.Users,
		health:  d.Health,
		upload: uploadRules{
			MaxFileSize:       d.Config.MaxFileSize,
			AllowedExtensions: d.Config.AllowedExtensions,
			MaxFiles:          d.Config.MaxFilesPerUpload,
		},
		development: d.Config.Development,
		log:         d.Logger.With("module", "rest"),
	}
}

func principal(r *http.Request) *auth.Principal {
	return auth.PrincipalFrom(r.Context())
}

func (h *Handlers) notFound(w http.ResponseWriter, r *http.Request) {
	writeFail(w, http.StatusNotFound, "Route not found")
}
