// Package loader reads source images from the local directory, the mounted
// volume or a remote URL.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/frankii91/sharp-web-resizing-images/config"
	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
	"github.com/frankii91/sharp-web-resizing-images/utils"
)

// Loader fetches source bytes. Safe for concurrent use.
type Loader struct {
	cfg    config.SourceConfig
	client *resty.Client
	logger core.Logger
}

// New returns a Loader for cfg.
func New(cfg config.SourceConfig, logger core.Logger) *Loader {
	if logger == nil {
		logger = core.NopLogger{}
	}
	client := resty.New().
		SetTimeout(cfg.URLTimeout).
		SetHeader("Accept", "image/*").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &Loader{cfg: cfg, client: client, logger: logger}
}

// Load returns the bytes of src.
func (l *Loader) Load(ctx context.Context, src core.Source) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch src.Kind {
	case core.SourceLocal:
		data, err = l.file(ctx, l.cfg.LocalDir, src.Path)
	case core.SourceMount:
		data, err = l.file(ctx, l.cfg.MountDir, src.Path)
	case core.SourceURL:
		data, err = l.url(ctx, src.Path)
	default:
		err = apperrors.Invalid("loaderTyp", "must be one of local, mount, url, got %q", src.Kind)
	}
	if err != nil {
		return nil, err
	}
	if !utils.IsImage(data) {
		return nil, apperrors.New(apperrors.CategorySource, "loader.detect",
			fmt.Errorf("%w: %s is not a recognised image", apperrors.ErrCodec, src.Path))
	}
	l.logger.Debug("loader.loaded", "kind", src.Kind, "path", src.Path,
		"bytes", len(data), "format", utils.DetectFormat(data))
	return data, nil
}

// Resolve maps a relative locator onto root. Absolute paths and paths that
// escape root are rejected.
func Resolve(root, locator string) (string, error) {
	p := filepath.FromSlash(strings.ReplaceAll(locator, "\\", "/"))
	if filepath.IsAbs(p) || strings.HasPrefix(locator, "/") {
		return "", apperrors.Invalid("imagePath", "must be relative to the source directory: %q", locator)
	}
	full := filepath.Join(root, p)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.Invalid("imagePath", "escapes the source directory: %q", locator)
	}
	return full, nil
}

func (l *Loader) file(ctx context.Context, root, locator string) ([]byte, error) {
	full, err := Resolve(root, locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategorySource, "loader.file",
				fmt.Errorf("%w: %s", apperrors.ErrSourceNotFound, locator))
		}
		return nil, apperrors.Wrap(apperrors.CategorySource, "loader.file", err)
	}
	defer f.Close()
	if st, err := f.Stat(); err == nil && st.IsDir() {
		return nil, apperrors.New(apperrors.CategorySource, "loader.file",
			fmt.Errorf("%w: %s is a directory", apperrors.ErrSourceNotFound, locator))
	}
	return l.read(ctx, &utils.LimitedReader{R: f, Max: l.cfg.MaxBytes})
}

func (l *Loader) url(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := l.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, apperrors.Transient("loader.url",
			fmt.Errorf("%w: %s: %v", apperrors.ErrSourceNotFound, rawURL, err))
	}
	body := resp.RawBody()
	defer body.Close()

	if code := resp.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		return nil, apperrors.New(apperrors.CategorySource, "loader.url",
			fmt.Errorf("%w: %s returned %d", apperrors.ErrSourceNotFound, rawURL, code))
	}
	return l.read(ctx, &utils.LimitedReader{R: body, Max: l.cfg.MaxBytes})
}

func (l *Loader) read(ctx context.Context, r *utils.LimitedReader) ([]byte, error) {
	data, err := utils.ReadAll(ctx, r, 0)
	if errors.Is(err, utils.ErrTooLarge) {
		return nil, apperrors.Invalid("imagePath", "source exceeds %d bytes", l.cfg.MaxBytes)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategorySource, "loader.read", err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategorySource, "loader.read", apperrors.ErrEmptyInput)
	}
	return data, nil
}
