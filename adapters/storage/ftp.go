package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// RemoteEntry is one item of an FTP directory listing.
type RemoteEntry struct {
	Name    string
	Dir     bool
	Size    int64
	ModTime time.Time
}

// FTPConn is one logged-in FTP session.
type FTPConn interface {
	MakeDir(path string) error
	ChangeDir(path string) error
	Stor(path string, r io.Reader) error
	FileSize(path string) (int64, error)
	GetTime(path string) (time.Time, error)
	Delete(path string) error
	RemoveDir(path string) error
	List(path string) ([]RemoteEntry, error)
	Quit() error
}

// FTPDialer opens a new session. Every backend operation dials its own.
type FTPDialer interface {
	Dial(ctx context.Context) (FTPConn, error)
}

// FTP is the FTP destination backend. It keeps no connection between
// operations.
type FTP struct {
	dialer  FTPDialer
	baseDir string
	logger  core.Logger
}

// NewFTP creates the backend. baseDir is the remote root artifacts are
// written under; it is never removed.
func NewFTP(dialer FTPDialer, baseDir string, logger core.Logger) (*FTP, error) {
	if dialer == nil {
		return nil, fmt.Errorf("ftp storage: dialer must not be nil")
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &FTP{dialer: dialer, baseDir: NormalizeDir(baseDir), logger: logger}, nil
}

// NormalizeDir returns p with a leading slash and no trailing slash.
func NormalizeDir(p string) string {
	return path.Clean("/" + strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/"))
}

func (f *FTP) Kind() core.BackendKind { return core.BackendFTP }

func (f *FTP) remoteDir(dir string) string { return NormalizeDir(path.Join(f.baseDir, dir)) }

func (f *FTP) fail(op string, d core.StorageDescriptor, err error) error {
	return &apperrors.BackendError{
		Backend: string(core.BackendFTP), Dir: d.Dir, File: d.File, Op: op, Err: err, Retryable: true,
	}
}

// session dials, runs fn and always quits.
func (f *FTP) session(ctx context.Context, fn func(FTPConn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := f.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() {
		if qerr := conn.Quit(); qerr != nil {
			f.logger.Debug("ftp.quit", "error", qerr.Error())
		}
	}()
	return fn(conn)
}

// Save uploads data to baseDir/dir/file and verifies the remote size.
// On a size mismatch the uploaded file is removed again.
func (f *FTP) Save(ctx context.Context, d core.StorageDescriptor, data []byte) (core.SaveOutcome, error) {
	dir := f.remoteDir(d.Dir)
	remote := path.Join(dir, d.File)

	err := f.session(ctx, func(c FTPConn) error {
		if err := ensureDir(c, dir); err != nil {
			return err
		}
		if err := c.Stor(remote, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("stor %s: %w", remote, err)
		}
		entry, err := stat(c, remote)
		if err == nil && entry.Size == int64(len(data)) {
			return nil
		}
		if derr := c.Delete(remote); derr != nil {
			f.logger.Warn("ftp.verify.cleanup_failed", "path", remote, "error", derr.Error())
		}
		if err != nil {
			return fmt.Errorf("%w: size of %s: %v", apperrors.ErrTransferVerification, remote, err)
		}
		return fmt.Errorf("%w: %s sent %d bytes, remote has %d",
			apperrors.ErrTransferVerification, remote, len(data), entry.Size)
	})
	if err != nil {
		return core.SaveOutcome{}, f.fail("save", d, err)
	}
	return core.SaveOutcome{
		Status: core.StatusOK,
		Kind:   core.BackendFTP,
		Dir:    d.Dir,
		File:   d.File,
		Bytes:  len(data),
		Result: remote,
	}, nil
}

// Delete removes the file, then removes each parent that became empty,
// stopping at the first non-empty directory or at the base directory.
func (f *FTP) Delete(ctx context.Context, d core.StorageDescriptor) error {
	dir := f.remoteDir(d.Dir)
	remote := path.Join(dir, d.File)

	err := f.session(ctx, func(c FTPConn) error {
		if err := c.Delete(remote); err != nil {
			return fmt.Errorf("delete %s: %w", remote, err)
		}
		for dir != f.baseDir && dir != "/" && strings.HasPrefix(dir, f.baseDir) {
			entries, err := listClean(c, dir)
			if err != nil {
				return fmt.Errorf("list %s: %w", dir, err)
			}
			if len(entries) > 0 {
				return nil
			}
			if err := c.RemoveDir(dir); err != nil {
				return fmt.Errorf("rmdir %s: %w", dir, err)
			}
			f.logger.Debug("ftp.rmdir", "dir", dir)
			dir = path.Dir(dir)
		}
		return nil
	})
	if err != nil {
		return f.fail("delete", d, err)
	}
	return nil
}

// List returns the entries of baseDir/dir without "." and "..".
func (f *FTP) List(ctx context.Context, dir string) ([]RemoteEntry, error) {
	var out []RemoteEntry
	err := f.session(ctx, func(c FTPConn) error {
		var err error
		out, err = listClean(c, f.remoteDir(dir))
		return err
	})
	if err != nil {
		return nil, f.fail("list", core.StorageDescriptor{Dir: dir}, err)
	}
	return out, nil
}

// Stat returns size and modification time of baseDir/p.
func (f *FTP) Stat(ctx context.Context, p string) (RemoteEntry, error) {
	var out RemoteEntry
	remote := path.Join(f.baseDir, strings.TrimPrefix(p, "/"))
	err := f.session(ctx, func(c FTPConn) error {
		var err error
		out, err = stat(c, remote)
		return err
	})
	if err != nil {
		return RemoteEntry{}, f.fail("stat", core.StorageDescriptor{Dir: path.Dir(p), File: path.Base(p)}, err)
	}
	return out, nil
}

// MkdirAll creates baseDir/dir and any missing parents.
func (f *FTP) MkdirAll(ctx context.Context, dir string) error {
	err := f.session(ctx, func(c FTPConn) error { return ensureDir(c, f.remoteDir(dir)) })
	if err != nil {
		return f.fail("mkdir", core.StorageDescriptor{Dir: dir}, err)
	}
	return nil
}

// ensureDir creates every prefix of dir, ignoring "already exists" replies,
// then confirms the result by changing into it.
func ensureDir(c FTPConn, dir string) error {
	cur := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		cur += "/" + part
		_ = c.MakeDir(cur)
	}
	if err := c.ChangeDir(NormalizeDir(dir)); err != nil {
		return fmt.Errorf("ensure dir %s: %w", dir, err)
	}
	return nil
}

// stat prefers SIZE and MDTM and falls back to listing the parent.
func stat(c FTPConn, remote string) (RemoteEntry, error) {
	name := path.Base(remote)
	if size, err := c.FileSize(remote); err == nil {
		e := RemoteEntry{Name: name, Size: size}
		if t, terr := c.GetTime(remote); terr == nil {
			e.ModTime = t
		}
		return e, nil
	}
	entries, err := listClean(c, path.Dir(remote))
	if err != nil {
		return RemoteEntry{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return RemoteEntry{}, fmt.Errorf("%s: not found", remote)
}

func listClean(c FTPConn, dir string) ([]RemoteEntry, error) {
	entries, err := c.List(dir)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

var _ core.Backend = (*FTP)(nil)
