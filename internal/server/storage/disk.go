package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
)

const metaSuffix = ".meta.json"

// DiskStore keeps objects as files under root. Each object has a JSON
// sidecar holding its PutOptions.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

// path maps key to a file under root, rejecting keys that escape it.
func (d *DiskStore) path(key string) (string, error) {
	if key == "" || strings.HasSuffix(key, metaSuffix) || hasDotDotSegment(key) {
		return "", fmt.Errorf("%w: invalid key %q", common.ErrorStorage, key)
	}
	p := filepath.Join(d.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: invalid key %q", common.ErrorStorage, key)
	}
	return p, nil
}

func hasDotDotSegment(key string) bool {
	for _, seg := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func diskError(op, key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s %s", common.ErrorNotFound, op, key)
	}
	return fmt.Errorf("%w: %s %s: %v", common.ErrorStorage, op, key, err)
}

// Put writes into a temp file in the destination directory and renames it
// into place, so readers never see partial objects.
func (d *DiskStore) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, opts PutOptions) error {
	dst, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return diskError("put", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "pending-")
	if err != nil {
		return diskError("put", key, err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, body)
	if err != nil {
		return diskError("put", key, err)
	}
	if n != size {
		return fmt.Errorf("%w: put %s: wrote %d bytes, expected %d", common.ErrorStorage, key, n, size)
	}
	if err := tmp.Sync(); err != nil {
		return diskError("put", key, err)
	}
	if err := tmp.Close(); err != nil {
		return diskError("put", key, err)
	}

	meta, err := json.Marshal(opts)
	if err != nil {
		return diskError("put", key, err)
	}
	if err := os.WriteFile(dst+metaSuffix, meta, 0o644); err != nil {
		return diskError("put", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return diskError("put", key, err)
	}
	return nil
}

func (d *DiskStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return nil, diskError("stat", key, err)
	}

	info := &ObjectInfo{Key: key, Size: fi.Size(), LastModified: fi.ModTime()}

	if b, err := os.ReadFile(p + metaSuffix); err == nil {
		var opts PutOptions
		if json.Unmarshal(b, &opts) == nil {
			info.ContentType = opts.ContentType
			info.ContentHash = opts.ContentHash
			info.OriginalName = opts.OriginalName
		}
	}
	return info, nil
}

func (d *DiskStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	info, err := d.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	p, _ := d.path(key)
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, diskError("get", key, err)
	}
	return f, info, nil
}

func (d *DiskStore) Delete(ctx context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return diskError("delete", key, err)
	}
	if err := os.Remove(p + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return diskError("delete", key, err)
	}
	return nil
}

func (d *DiskStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := d.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return false, err
}

func (d *DiskStore) Presign(ctx context.Context, key, downloadName string, ttl time.Duration) (string, error) {
	return "", fmt.Errorf("%w: presigned URLs need an S3 backend", common.ErrorUnsupported)
}

func (d *DiskStore) EnsureBucket(ctx context.Context) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return diskError("mkdir", d.root, err)
	}
	return nil
}

func (d *DiskStore) Ping(ctx context.Context) error {
	fi, err := os.Stat(d.root)
	if err != nil {
		return diskError("stat", d.root, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", common.ErrorStorage, d.root)
	}
	return nil
}
