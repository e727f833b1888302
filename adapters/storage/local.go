// Package storage provides the destination backends, the directory caches
// and the per-request storage session.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// Filesystem stores artifacts under a root directory. It serves both the
// local and the mounted-volume destinations; only the root and kind differ.
type Filesystem struct {
	kind        core.BackendKind
	rootDir     string
	dirs        core.DirectoryCache
	permissions os.FileMode
}

// NewLocal creates the local-disk backend rooted at dir.
func NewLocal(dir string, dirs core.DirectoryCache) (*Filesystem, error) {
	return newFilesystem(core.BackendLocal, dir, dirs)
}

// NewMount creates the mounted-volume backend rooted at dir.
func NewMount(dir string, dirs core.DirectoryCache) (*Filesystem, error) {
	return newFilesystem(core.BackendMount, dir, dirs)
}

func newFilesystem(kind core.BackendKind, dir string, dirs core.DirectoryCache) (*Filesystem, error) {
	if dir == "" {
		return nil, fmt.Errorf("%s storage: root dir is required", kind)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%s storage: resolve %s: %w", kind, dir, err)
	}
	if dirs == nil {
		dirs = NewMemoryDirCache()
	}
	return &Filesystem{kind: kind, rootDir: root, dirs: dirs, permissions: 0o644}, nil
}

func (l *Filesystem) Kind() core.BackendKind { return l.kind }

// Root is the absolute root directory.
func (l *Filesystem) Root() string { return l.rootDir }

// absPath resolves dir/file under the root and rejects escapes.
func (l *Filesystem) absPath(d core.StorageDescriptor) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(d.Dir+"/"+d.File, "/")))
	joined := filepath.Join(l.rootDir, rel)
	r, err := filepath.Rel(l.rootDir, joined)
	if err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", fmt.Errorf("path %q escapes storage root", d.Dir+"/"+d.File)
	}
	return joined, nil
}

func (l *Filesystem) fail(op string, d core.StorageDescriptor, err error) error {
	return &apperrors.BackendError{Backend: string(l.kind), Dir: d.Dir, File: d.File, Op: op, Err: err}
}

// Save writes data to root/dir/file through a temp file and rename.
func (l *Filesystem) Save(ctx context.Context, d core.StorageDescriptor, data []byte) (core.SaveOutcome, error) {
	if err := ctx.Err(); err != nil {
		return core.SaveOutcome{}, l.fail("save", d, err)
	}
	path, err := l.absPath(d)
	if err != nil {
		return core.SaveOutcome{}, l.fail("save", d, err)
	}

	if err := l.dirs.Ensure(ctx, filepath.Dir(path), func(dir string) error {
		return os.MkdirAll(dir, 0o755)
	}); err != nil {
		return core.SaveOutcome{}, l.fail("mkdir", d, err)
	}

	if err := l.writeAtomic(path, data); err != nil {
		return core.SaveOutcome{}, l.fail("write", d, err)
	}

	return core.SaveOutcome{
		Status: core.StatusOK,
		Kind:   l.kind,
		Dir:    d.Dir,
		File:   d.File,
		Bytes:  len(data),
		Result: path,
	}, nil
}

// writeAtomic writes through a uniquely named temp file in the target
// directory, so concurrent writers of the same path never share one.
func (l *Filesystem) writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()      //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	if err := os.Chmod(tmp, l.permissions); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	return nil
}

// Delete removes exactly root/dir/file. A missing file is not an error.
func (l *Filesystem) Delete(ctx context.Context, d core.StorageDescriptor) error {
	if err := ctx.Err(); err != nil {
		return l.fail("delete", d, err)
	}
	path, err := l.absPath(d)
	if err != nil {
		return l.fail("delete", d, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return l.fail("delete", d, err)
	}
	return nil
}

var _ core.Backend = (*Filesystem)(nil)
