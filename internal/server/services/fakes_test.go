package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/config"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/analytics"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/folders"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/intents"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// memDB is an in-memory stand-in for the metadata tables.
type memDB struct {
	mu      sync.Mutex
	seq     int
	users   map[string]models.User
	folders map[string]models.Folder
	files   map[string]models.File
	events  []models.AnalyticsEvent
	intents map[string]models.UploadIntent

	analyticsErr error
}

func newMemDB() *memDB {
	return &memDB{
		users:   map[string]models.User{},
		folders: map[string]models.Folder{},
		files:   map[string]models.File{},
		intents: map[string]models.UploadIntent{},
	}
}

// tick returns strictly increasing timestamps. Caller holds mu.
func (d *memDB) tick() time.Time {
	d.seq++
	return baseTime.Add(time.Duration(d.seq) * time.Second)
}

func (d *memDB) eventsFor(action string) []models.AnalyticsEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.AnalyticsEvent
	for _, e := range d.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func (d *memDB) fileCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.files)
}

func (d *memDB) intentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.intents)
}

type fakeManager struct{ db *memDB }

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Users(dbx.DBTX) users.Repository              { return &memUsers{m.db} }
func (m *fakeManager) Folders(dbx.DBTX) folders.Repository          { return &memFolders{m.db} }
func (m *fakeManager) Files(dbx.DBTX) files.Repository              { return &memFiles{m.db} }
func (m *fakeManager) Analytics(dbx.DBTX) analytics.Repository      { return &memAnalytics{m.db} }
func (m *fakeManager) Intents(dbx.DBTX) intents.Repository          { return &memIntents{m.db} }

// fakeTx runs transactional closures directly against the fakes.
type fakeTx struct {
	dbx.DBTX
	calls int
}

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	f.calls++
	return fn(ctx, f)
}

// --- users

type memUsers struct{ d *memDB }

func (r *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, x := range r.d.users {
		if x.Email == u.Email || x.Username == u.Username {
			return nil, fmt.Errorf("%w: duplicate", common.ErrorConflict)
		}
	}
	u.CreatedAt = r.d.tick()
	u.UpdatedAt = u.CreatedAt
	r.d.users[u.ID] = *u
	out := *u
	return &out, nil
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	u, ok := r.d.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, u := range r.d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) Taken(ctx context.Context, email, username, excludeID string) (bool, bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var e, n bool
	for id, u := range r.d.users {
		if id == excludeID {
			continue
		}
		e = e || u.Email == email
		n = n || u.Username == username
	}
	return e, n, nil
}

func (r *memUsers) List(ctx context.Context) ([]models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := make([]models.User, 0, len(r.d.users))
	for _, u := range r.d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memUsers) Update(ctx context.Context, u *models.User) (*models.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.users[u.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	for id, x := range r.d.users {
		if id != u.ID && (x.Email == u.Email || x.Username == u.Username) {
			return nil, fmt.Errorf("%w: duplicate", common.ErrorConflict)
		}
	}
	u.UpdatedAt = r.d.tick()
	r.d.users[u.ID] = *u
	out := *u
	return &out, nil
}

func (r *memUsers) Delete(ctx context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.d.users, id)
	return nil
}

func (r *memUsers) Stats(ctx context.Context, id string) (*models.UserStats, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	st := &models.UserStats{}
	for _, f := range r.d.files {
		if f.UserID == id {
			st.FileCount++
			st.TotalSize += f.Size
		}
	}
	for _, f := range r.d.folders {
		if f.UserID == id {
			st.FolderCount++
		}
	}
	return st, nil
}

// --- folders

type memFolders struct{ d *memDB }

func (r *memFolders) Create(ctx context.Context, f *models.Folder) (*models.Folder, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	f.CreatedAt = r.d.tick()
	f.UpdatedAt = f.CreatedAt
	r.d.folders[f.ID] = *f
	out := *f
	return &out, nil
}

func (r *memFolders) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	f, ok := r.d.folders[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &f, nil
}

func (r *memFolders) filter(keep func(models.Folder) bool) []models.Folder {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []models.Folder
	for _, f := range r.d.folders {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memFolders) ListByUser(ctx context.Context, userID string) ([]models.Folder, error) {
	return r.filter(func(f models.Folder) bool { return f.UserID == userID }), nil
}

func (r *memFolders) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	return r.filter(func(f models.Folder) bool { return f.ParentID != nil && *f.ParentID == parentID }), nil
}

func (r *memFolders) Update(ctx context.Context, f *models.Folder) (*models.Folder, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cur, ok := r.d.folders[f.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cur.Name, cur.Path, cur.Description = f.Name, f.Path, f.Description
	cur.UpdatedAt = r.d.tick()
	r.d.folders[f.ID] = cur
	return &cur, nil
}

func (r *memFolders) RewriteDescendantPaths(ctx context.Context, folderID, oldPrefix, newPrefix string) (int64, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var n int64
	queue := []string{folderID}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for id, f := range r.d.folders {
			if f.ParentID == nil || *f.ParentID != parent {
				continue
			}
			f.Path = newPrefix + strings.TrimPrefix(f.Path, oldPrefix)
			r.d.folders[id] = f
			queue = append(queue, id)
			n++
		}
	}
	return n, nil
}

func (r *memFolders) CountContents(ctx context.Context, id string) (int64, int64, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var children, fs int64
	for _, f := range r.d.folders {
		if f.ParentID != nil && *f.ParentID == id {
			children++
		}
	}
	for _, f := range r.d.files {
		if f.FolderID != nil && *f.FolderID == id {
			fs++
		}
	}
	return children, fs, nil
}

func (r *memFolders) Delete(ctx context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.folders[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.d.folders, id)
	return nil
}

func (r *memFolders) DeleteByUser(ctx context.Context, userID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, f := range r.d.folders {
		if f.UserID == userID {
			delete(r.d.folders, id)
		}
	}
	return nil
}

// --- files

type memFiles struct{ d *memDB }

func cloneFile(f models.File) *models.File {
	f.Tags = append([]string{}, f.Tags...)
	return &f
}

func (r *memFiles) Create(ctx context.Context, f *models.File) (*models.File, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	f.UploadedAt = r.d.tick()
	f.UpdatedAt = f.UploadedAt
	r.d.files[f.ID] = *cloneFile(*f)
	return cloneFile(*f), nil
}

func (r *memFiles) GetByID(ctx context.Context, id string) (*models.File, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	f, ok := r.d.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneFile(f), nil
}

func (r *memFiles) filter(keep func(models.File) bool, desc bool) []models.File {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []models.File
	for _, f := range r.d.files {
		if keep(f) {
			out = append(out, *cloneFile(f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out
}

func (r *memFiles) List(ctx context.Context, q files.ListQuery) ([]models.File, int64, error) {
	search := strings.ToLower(q.Search)
	all := r.filter(func(f models.File) bool {
		if f.UserID != q.UserID {
			return false
		}
		if q.FolderID != nil && (f.FolderID == nil || *f.FolderID != *q.FolderID) {
			return false
		}
		if search != "" {
			return strings.Contains(strings.ToLower(f.Name), search) ||
				strings.Contains(strings.ToLower(f.OriginalName), search) ||
				strings.Contains(strings.ToLower(f.Description), search)
		}
		return true
	}, q.Desc)

	total := int64(len(all))
	if q.Offset >= len(all) {
		return []models.File{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[q.Offset:end], total, nil
}

func (r *memFiles) ListByFolder(ctx context.Context, folderID string) ([]models.File, error) {
	return r.filter(func(f models.File) bool { return f.FolderID != nil && *f.FolderID == folderID }, true), nil
}

func (r *memFiles) ListByUser(ctx context.Context, userID string) ([]models.File, error) {
	return r.filter(func(f models.File) bool { return f.UserID == userID }, true), nil
}

func (r *memFiles) Update(ctx context.Context, f *models.File) (*models.File, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cur, ok := r.d.files[f.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cur.Name, cur.Description, cur.Tags, cur.IsPublic, cur.FolderID = f.Name, f.Description, f.Tags, f.IsPublic, f.FolderID
	cur.UpdatedAt = r.d.tick()
	r.d.files[f.ID] = *cloneFile(cur)
	return cloneFile(cur), nil
}

func (r *memFiles) Delete(ctx context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.files[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.d.files, id)
	return nil
}

func (r *memFiles) DeleteByUser(ctx context.Context, userID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, f := range r.d.files {
		if f.UserID == userID {
			delete(r.d.files, id)
		}
	}
	return nil
}

func (r *memFiles) CountByStorageKey(ctx context.Context, key, excludeID string) (int64, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var n int64
	for id, f := range r.d.files {
		if f.StorageKey == key && id != excludeID {
			n++
		}
	}
	return n, nil
}

// --- analytics

type memAnalytics struct{ d *memDB }

func (r *memAnalytics) Create(ctx context.Context, e *models.AnalyticsEvent) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.d.analyticsErr != nil {
		return r.d.analyticsErr
	}
	e.CreatedAt = r.d.tick()
	r.d.events = append(r.d.events, *e)
	return nil
}

func (r *memAnalytics) DeleteByUser(ctx context.Context, userID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	kept := r.d.events[:0]
	for _, e := range r.d.events {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	r.d.events = kept
	return nil
}

// --- intents

type memIntents struct{ d *memDB }

func (r *memIntents) Create(ctx context.Context, in *models.UploadIntent) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = r.d.tick()
	}
	r.d.intents[in.ID] = *in
	return nil
}

func (r *memIntents) Delete(ctx context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.intents[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.d.intents, id)
	return nil
}

func (r *memIntents) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.UploadIntent, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []models.UploadIntent
	for _, in := range r.d.intents {
		if in.CreatedAt.Before(cutoff) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memIntents) DeleteByUser(ctx context.Context, userID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, in := range r.d.intents {
		if in.UserID == userID {
			delete(r.d.intents, id)
		}
	}
	return nil
}

// --- object store

type memObject struct {
	data []byte
	opts storage.PutOptions
}

type memStore struct {
	mu      sync.Mutex
	objects map[string]memObject

	putErr     func(key string) error
	deleteErr  error
	presignURL string
	deletes    int
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]memObject{}}
}

func (s *memStore) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, opts storage.PutOptions) error {
	if s.putErr != nil {
		if err := s.putErr(key); err != nil {
			return err
		}
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return fmt.Errorf("%w: size mismatch %d != %d", common.ErrorStorage, len(b), size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: b, opts: opts}
	return nil
}

func (s *memStore) Get(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", common.ErrorNotFound, key)
	}
	info := &storage.ObjectInfo{Key: key, Size: int64(len(o.data)), ContentType: o.opts.ContentType,
		ContentHash: o.opts.ContentHash, OriginalName: o.opts.OriginalName}
	return io.NopCloser(bytes.NewReader(o.data)), info, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletes++
	delete(s.objects, key)
	return nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStore) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	rc, info, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = rc.Close()
	return info, nil
}

func (s *memStore) Presign(ctx context.Context, key, downloadName string, ttl time.Duration) (string, error) {
	if s.presignURL == "" {
		return "", fmt.Errorf("%w: no presign", common.ErrorUnsupported)
	}
	return s.presignURL + "/" + key, nil
}

func (s *memStore) EnsureBucket(ctx context.Context) error { return nil }
func (s *memStore) Ping(ctx context.Context) error         { return nil }

func (s *memStore) has(key string) bool {
	ok, _ := s.Exists(context.Background(), key)
	return ok
}

// --- wiring

const testPassword = "Secret123"

type testEnv struct {
	db      *memDB
	tx      *fakeTx
	m       *fakeManager
	store   *memStore
	cfg     *config.Config
	cache   *PrincipalCache
	tokens  *auth.JWTManager
	auth    *AuthService
	folders *FolderService
	files   *FileService
	users   *UserAdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		BcryptCostRegister: bcrypt.MinCost,
		BcryptCostAdmin:    bcrypt.MinCost,
		StoragePrefix:      "uploads",
		PresignValidity:    time.Hour,
	}

	e := &testEnv{
		db:     newMemDB(),
		tx:     &fakeTx{},
		store:  newMemStore(),
		cfg:    cfg,
		cache:  NewPrincipalCache(16, time.Minute),
		tokens: auth.NewJWTManager([]byte("test-secret"), time.Hour),
	}
	e.m = &fakeManager{db: e.db}

	log := logging.Nop()
	e.auth = NewAuthService(e.tx, e.m, e.tokens, e.cache, cfg, log)
	e.folders = NewFolderService(e.tx, e.m, log)
	e.files = NewFileService(e.tx, e.m, e.store, cfg, log)
	e.users = NewUserAdminService(e.tx, e.m, e.store, e.cache, cfg, log)
	return e
}

// seedUser stores an active account directly and returns its principal.
func (e *testEnv) seedUser(t *testing.T, username string, role models.Role) *auth.Principal {
	t.Helper()
	digest, err := auth.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	u, err := e.m.Users(nil).Create(context.Background(), &models.User{
		ID:             uuid.NewString(),
		Email:          username + "@example.com",
		Username:       username,
		PasswordDigest: digest,
		Role:           role,
		IsActive:       true,
	})
	require.NoError(t, err)
	return auth.PrincipalFromUser(u)
}

func (e *testEnv) upload(t *testing.T, p *auth.Principal, name string, data []byte, public bool) *models.File {
	t.Helper()
	f, err := e.files.Upload(context.Background(), p, UploadInput{
		Body:         bytes.NewReader(data),
		OriginalName: name,
		MimeType:     "text/plain",
		IsPublic:     public,
	})
	require.NoError(t, err)
	return f
}

func requireKind(t *testing.T, err error, kind error, message string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "want %v, got %v", kind, err)
	if message != "" {
		require.Equal(t, message, common.Message(err, ""))
	}
}
