package loader_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/frankii91/sharp-web-resizing-images/config"
	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
	"github.com/frankii91/sharp-web-resizing-images/loader"
)

func makeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Local(t *testing.T) {
	root := t.TempDir()
	img := makeJPEG(t)
	writeFile(t, root, "catalog/red.jpg", img)
	writeFile(t, root, "notes.txt", []byte("plain text, not an image"))

	l := loader.New(config.SourceConfig{LocalDir: root}, nil)
	ctx := context.Background()

	got, err := l.Load(ctx, core.Source{Kind: core.SourceLocal, Path: "catalog/red.jpg"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, img) {
		t.Error("loaded bytes differ")
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", "catalog/blue.jpg", apperrors.ErrSourceNotFound},
		{"directory", "catalog", apperrors.ErrSourceNotFound},
		{"absolute path", "/etc/passwd", apperrors.ErrInvalidParameter},
		{"escape", "../outside.jpg", apperrors.ErrInvalidParameter},
		{"nested escape", "catalog/../../outside.jpg", apperrors.ErrInvalidParameter},
		{"not an image", "notes.txt", apperrors.ErrCodec},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Load(ctx, core.Source{Kind: core.SourceLocal, Path: tc.path})
			if !errors.Is(err, tc.want) {
				t.Errorf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_MountUsesItsOwnRoot(t *testing.T) {
	local, mount := t.TempDir(), t.TempDir()
	writeFile(t, mount, "shared/a.jpg", makeJPEG(t))
	l := loader.New(config.SourceConfig{LocalDir: local, MountDir: mount}, nil)

	if _, err := l.Load(context.Background(), core.Source{Kind: core.SourceMount, Path: "shared/a.jpg"}); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if _, err := l.Load(context.Background(), core.Source{Kind: core.SourceLocal, Path: "shared/a.jpg"}); !errors.Is(err, apperrors.ErrSourceNotFound) {
		t.Fatalf("local should not see mounted files: %v", err)
	}
}

func TestLoad_SizeCap(t *testing.T) {
	root := t.TempDir()
	img := makeJPEG(t)
	writeFile(t, root, "a.jpg", img)
	l := loader.New(config.SourceConfig{LocalDir: root, MaxBytes: int64(len(img) - 1)}, nil)
	_, err := l.Load(context.Background(), core.Source{Kind: core.SourceLocal, Path: "a.jpg"})
	if !errors.Is(err, apperrors.ErrInvalidParameter) {
		t.Fatalf("want ErrInvalidParameter, got %v", err)
	}
}

func TestLoad_URL(t *testing.T) {
	img := makeJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img/red.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(img)
		case "/big.jpg":
			w.Write(append(img, make([]byte, 1024)...))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	l := loader.New(config.SourceConfig{MaxBytes: int64(len(img) + 10)}, nil)
	ctx := context.Background()

	got, err := l.Load(ctx, core.Source{Kind: core.SourceURL, Path: srv.URL + "/img/red.jpg"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, img) {
		t.Error("downloaded bytes differ")
	}

	if _, err := l.Load(ctx, core.Source{Kind: core.SourceURL, Path: srv.URL + "/missing.jpg"}); !errors.Is(err, apperrors.ErrSourceNotFound) {
		t.Errorf("404: want ErrSourceNotFound, got %v", err)
	}
	if _, err := l.Load(ctx, core.Source{Kind: core.SourceURL, Path: srv.URL + "/big.jpg"}); !errors.Is(err, apperrors.ErrInvalidParameter) {
		t.Errorf("oversize: want ErrInvalidParameter, got %v", err)
	}
}

func TestLoad_URLUnreachableIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	l := loader.New(config.SourceConfig{}, nil)
	_, err := l.Load(context.Background(), core.Source{Kind: core.SourceURL, Path: addr + "/a.jpg"})
	if !errors.Is(err, apperrors.ErrSourceNotFound) || !apperrors.IsRetryable(err) {
		t.Fatalf("want retryable ErrSourceNotFound, got %v", err)
	}
}
