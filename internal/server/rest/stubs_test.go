package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/config"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/health"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/services"
	"github.com/stretchr/testify/require"
)

var errNotStubbed = errors.New("not stubbed")

var (
	alice = &models.User{ID: "u-alice", Email: "alice@example.com", Username: "alice", Role: models.RoleUser, IsActive: true}
	admin = &models.User{ID: "u-admin", Email: "admin@example.com", Username: "admin", Role: models.RoleAdmin, IsActive: true}
)

type stubAuth struct {
	register func(services.RegisterInput) (*services.Session, error)
	login    func(email, password string) (*services.Session, error)
}

func (s *stubAuth) Register(_ context.Context, in services.RegisterInput) (*services.Session, error) {
	if s.register == nil {
		return nil, errNotStubbed
	}
	return s.register(in)
}

func (s *stubAuth) Login(_ context.Context, email, password string) (*services.Session, error) {
	if s.login == nil {
		return nil, errNotStubbed
	}
	return s.login(email, password)
}

// Authenticate accepts the tokens "alice" and "admin".
func (s *stubAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	switch token {
	case "alice":
		return alice, nil
	case "admin":
		return admin, nil
	}
	return nil, common.NewError(common.ErrorForbidden, "Invalid or expired token")
}

func (s *stubAuth) Profile(_ context.Context, p *auth.Principal) (*services.Profile, error) {
	if p == nil {
		return nil, common.NewError(common.ErrorUnauthorized, "User not authenticated")
	}
	u := *alice
	u.ID = p.UserID
	return &services.Profile{User: &u, Stats: &models.UserStats{FileCount: 2, TotalSize: 42}}, nil
}

func (s *stubAuth) UpdateProfile(_ context.Context, p *auth.Principal, in services.ProfileUpdate) (*models.User, error) {
	u := *alice
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	return &u, nil
}

type stubFolders struct {
	created []services.CreateFolderInput
	err     error
}

func (s *stubFolders) List(context.Context, *auth.Principal) ([]models.Folder, error) {
	return []models.Folder{{ID: "f1", Name: "Docs", Path: "/Docs"}}, s.err
}

func (s *stubFolders) Create(_ context.Context, p *auth.Principal, in services.CreateFolderInput) (*models.Folder, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, in)
	return &models.Folder{ID: "f2", Name: in.Name, Path: "/" + in.Name, UserID: p.UserID}, nil
}

func (s *stubFolders) Get(_ context.Context, _ *auth.Principal, id string) (*models.FolderDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.FolderDetail{Folder: models.Folder{ID: id}}, nil
}

func (s *stubFolders) Update(_ context.Context, _ *auth.Principal, id string, in services.UpdateFolderInput) (*models.Folder, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Folder{ID: id, Name: *in.Name}, nil
}

func (s *stubFolders) Delete(context.Context, *auth.Principal, string) error {
	return s.err
}

type stubFiles struct {
	uploads  []services.UploadInput
	bodies   []string
	list     *services.ListInput
	moved    *string
	download *services.Download
	presign  *services.PresignedURL
	err      error
}

func (s *stubFiles) record(in services.UploadInput) {
	b, _ := io.ReadAll(in.Body)
	s.uploads = append(s.uploads, in)
	s.bodies = append(s.bodies, string(b))
}

func (s *stubFiles) Upload(_ context.Context, p *auth.Principal, in services.UploadInput) (*models.File, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.record(in)
	return &models.File{ID: "file-1", Name: in.OriginalName, OriginalName: in.OriginalName, UserID: p.UserID}, nil
}

func (s *stubFiles) UploadBatch(_ context.Context, p *auth.Principal, in []services.UploadInput) (*services.BatchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	res := &services.BatchResult{Files: []models.File{}}
	for _, u := range in {
		s.record(u)
		res.Files = append(res.Files, models.File{Name: u.OriginalName, UserID: p.UserID})
	}
	return res, nil
}

func (s *stubFiles) List(_ context.Context, _ *auth.Principal, in services.ListInput) (*services.ListResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.list = &in
	return &services.ListResult{
		Files:      []models.File{{ID: "a"}, {ID: "b"}},
		Total:      25,
		Page:       in.Page,
		Limit:      in.Limit,
		TotalPages: 3,
	}, nil
}

func (s *stubFiles) Get(_ context.Context, _ *auth.Principal, id string) (*models.File, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.File{ID: id}, nil
}

func (s *stubFiles) Download(context.Context, *auth.Principal, string) (*services.Download, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.download, nil
}

func (s *stubFiles) PresignedURL(context.Context, *auth.Principal, string) (*services.PresignedURL, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.presign, nil
}

func (s *stubFiles) Update(_ context.Context, _ *auth.Principal, id string, in services.UpdateFileInput) (*models.File, error) {
	if s.err != nil {
		return nil, s.err
	}
	f := &models.File{ID: id}
	if in.Tags != nil {
		f.Tags = *in.Tags
	}
	return f, nil
}

func (s *stubFiles) Move(_ context.Context, _ *auth.Principal, id string, folderID *string) (*models.File, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.moved = folderID
	return &models.File{ID: id, FolderID: folderID}, nil
}

func (s *stubFiles) Delete(context.Context, *auth.Principal, string) error {
	return s.err
}

type stubUsers struct {
	created []services.CreateUserInput
	active  bool
	err     error
}

func (s *stubUsers) List(context.Context, *auth.Principal) ([]models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.User{*alice, *admin}, nil
}

func (s *stubUsers) Create(_ context.Context, _ *auth.Principal, in services.CreateUserInput) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, in)
	return &models.User{ID: "u-new", Email: in.Email, Username: in.Username, Role: in.Role}, nil
}

func (s *stubUsers) Update(_ context.Context, _ *auth.Principal, id string, _ services.UpdateUserInput) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: id}, nil
}

func (s *stubUsers) Delete(context.Context, *auth.Principal, string) error {
	return s.err
}

func (s *stubUsers) ToggleStatus(_ context.Context, _ *auth.Principal, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: id, IsActive: s.active}, nil
}

type stubHealth struct {
	report health.Report
}

func (s *stubHealth) Check(context.Context) health.Report {
	return s.report
}

type testAPI struct {
	auth    *stubAuth
	folders *stubFolders
	files   *stubFiles
	users   *stubUsers
	health  *stubHealth
	cfg     *config.Config
	handler http.Handler
}

// newTestAPI builds a router over stubs. mutate may adjust config before
// the router is built.
func newTestAPI(t *testing.T, limiter *RateLimiter, mutate func(*config.Config)) *testAPI {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	if mutate != nil {
		mutate(cfg)
	}

	a := &testAPI{
		auth:    &stubAuth{},
		folders: &stubFolders{},
		files:   &stubFiles{},
		users:   &stubUsers{},
		health:  &stubHealth{report: health.Report{Status: health.StatusOK}},
		cfg:     cfg,
	}
	a.handler = NewRouter(Deps{
		Auth:    a.auth,
		Folders: a.folders,
		Files:   a.files,
		Users:   a.users,
		Health:  a.health,
		Config:  cfg,
		Logger:  logging.Nop(),
	}, limiter)
	return a
}

// do sends a request with an optional JSON body and bearer token.
func (a *testAPI) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(req)
}

func (a *testAPI) send(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination"`
	Error      string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func fieldErrors(t *testing.T, env envelope) map[string]string {
	t.Helper()
	var fields []common.FieldError
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Field] = f.Message
	}
	return out
}
