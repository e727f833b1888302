package imageprocessor_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"

	imageprocessor "github.com/frankii91/sharp-web-resizing-images"
	"github.com/frankii91/sharp-web-resizing-images/adapters/storage"
	"github.com/frankii91/sharp-web-resizing-images/config"
	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
	"github.com/frankii91/sharp-web-resizing-images/hooks"
	"github.com/frankii91/sharp-web-resizing-images/params"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func newRedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

// echoCodec renders "<size> <format>" so tests can check routing without libvips.
type echoCodec struct {
	failFormat core.Format
}

func (c echoCodec) Render(_ context.Context, _ []byte, r *core.ResizeSpec, f core.FormatSpec) ([]byte, error) {
	if f.Format() == c.failFormat {
		return nil, apperrors.New(apperrors.CategoryCodec, "echo", apperrors.ErrCodec)
	}
	return []byte(r.Size() + " " + string(f.Format())), nil
}

type response struct {
	mu          sync.Mutex
	contentType string
	body        []byte
	writes      int
}

func (r *response) Committed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes > 0
}

func (r *response) Write(ct string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contentType, r.body = ct, data
	r.writes++
	return nil
}

type env struct {
	svc     *imageprocessor.Service
	results string
	metrics *hooks.InMemoryMetrics
}

func newEnv(t *testing.T, codec core.Codec) env {
	t.Helper()
	sources, results := t.TempDir(), t.TempDir()
	if err := os.MkdirAll(filepath.Join(sources, "catalog", "shoes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sources, "catalog", "shoes", "red.jpg"), newRedJPEG(t, 64, 48), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Source.LocalDir = sources
	cfg.Result.LocalDir = results

	local, err := storage.NewLocal(results, nil)
	if err != nil {
		t.Fatal(err)
	}
	metrics := hooks.NewInMemoryMetrics()
	svc, err := imageprocessor.New(cfg, codec, storage.NewManager(local),
		imageprocessor.WithHooks(hooks.NewMetricsHook(metrics)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return env{svc: svc, results: results, metrics: metrics}
}

func multiBody(storage string) params.Raw {
	return params.Raw{
		"loaderTyp":     "local",
		"imagePath":     "catalog/shoes/red.jpg",
		"outputStorage": storage,
		"outputResize": []any{
			map[string]any{"outputResize": "1000x200", "addName": "1000x200"},
			map[string]any{"outputResize": "1500x400", "addName": "1500x400"},
		},
		"outputFormat": map[string]any{"jpg": map[string]any{}, "webp": map[string]any{"quality": 70}, "avif": nil},
	}
}

// ── Scenarios ─────────────────────────────────────────────────────────────────

func TestProcessMulti_LocalSixFiles(t *testing.T) {
	e := newEnv(t, echoCodec{})
	res, err := e.svc.ProcessMulti(context.Background(), multiBody("local"), nil)
	if err != nil {
		t.Fatalf("ProcessMulti: %v", err)
	}
	if len(res.Outcomes) != 6 {
		t.Fatalf("outcomes = %d, want 6", len(res.Outcomes))
	}
	for _, name := range []string{
		"red-1000x200.avif", "red-1000x200.webp", "red-1000x200.jpg",
		"red-1500x400.avif", "red-1500x400.webp", "red-1500x400.jpg",
	} {
		data, err := os.ReadFile(filepath.Join(e.results, "catalog", "shoes", name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
	if got := e.metrics.Snapshot().TaskCalls["webp"]; got != 2 {
		t.Errorf("webp tasks = %d, want 2", got)
	}
	if processed, failed := e.svc.Stats(); processed != 1 || failed != 0 {
		t.Errorf("stats = %d/%d", processed, failed)
	}
}

func TestProcessMulti_FailureLeavesNothing(t *testing.T) {
	e := newEnv(t, echoCodec{failFormat: core.FormatWebP})
	_, err := e.svc.ProcessMulti(context.Background(), multiBody("local"), nil)
	if !errors.Is(err, apperrors.ErrCodec) {
		t.Fatalf("want ErrCodec, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(e.results, "catalog", "shoes"))
	if len(entries) != 0 {
		t.Errorf("%d artifacts left behind", len(entries))
	}
	if _, failed := e.svc.Stats(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestProcessMulti_StreamWritesFirstFormatOnly(t *testing.T) {
	e := newEnv(t, echoCodec{})
	out := &response{}
	res, err := e.svc.ProcessMulti(context.Background(), multiBody("stream"), out)
	if err != nil {
		t.Fatalf("ProcessMulti: %v", err)
	}
	if len(res.Outcomes) != 1 || out.writes != 1 {
		t.Fatalf("outcomes = %d, writes = %d", len(res.Outcomes), out.writes)
	}
	if out.contentType != "image/avif" || string(out.body) != "1000x200 avif" {
		t.Errorf("streamed %s %q", out.contentType, out.body)
	}
}

func TestProcessSingle(t *testing.T) {
	e := newEnv(t, echoCodec{})
	out := &response{}
	_, err := e.svc.ProcessSingle(context.Background(), params.Raw{
		"imagePath":     "catalog/shoes/red.jpg",
		"outputStorage": "stream",
		"outputResize":  "300x300",
		"outputFormat":  "webp",
		"quality":       "60",
	}, out)
	if err != nil {
		t.Fatalf("ProcessSingle: %v", err)
	}
	if out.contentType != "image/webp" || string(out.body) != "300x300 webp" {
		t.Errorf("streamed %s %q", out.contentType, out.body)
	}
}

func TestProcess_ValidationAndSourceErrors(t *testing.T) {
	e := newEnv(t, echoCodec{})
	ctx := context.Background()

	bad := multiBody("local")
	bad["outputFormat"] = map[string]any{"jpg": map[string]any{"quality": 101}}
	if _, err := e.svc.ProcessMulti(ctx, bad, nil); !errors.Is(err, apperrors.ErrInvalidParameter) {
		t.Errorf("quality 101: want ErrInvalidParameter, got %v", err)
	}

	missing := multiBody("local")
	missing["imagePath"] = "catalog/shoes/blue.jpg"
	if _, err := e.svc.ProcessMulti(ctx, missing, nil); !errors.Is(err, apperrors.ErrSourceNotFound) {
		t.Errorf("missing source: want ErrSourceNotFound, got %v", err)
	}

	unknown := multiBody("ftp")
	if _, err := e.svc.ProcessMulti(ctx, unknown, nil); !errors.Is(err, apperrors.ErrUnsupportedBackend) {
		t.Errorf("unconfigured backend: want ErrUnsupportedBackend, got %v", err)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.MaxInFlight = 0
	if _, err := imageprocessor.New(cfg, echoCodec{}, storage.NewManager()); err == nil {
		t.Fatal("expected config error")
	}
}
