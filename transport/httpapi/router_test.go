package httpapi_test

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	imageprocessor "github.com/frankii91/sharp-web-resizing-images"
	"github.com/frankii91/sharp-web-resizing-images/adapters/storage"
	"github.com/frankii91/sharp-web-resizing-images/config"
	"github.com/frankii91/sharp-web-resizing-images/core"
	"github.com/frankii91/sharp-web-resizing-images/hooks"
	"github.com/frankii91/sharp-web-resizing-images/ledger"
	"github.com/frankii91/sharp-web-resizing-images/transport/httpapi"
)

type echoCodec struct{}

func (echoCodec) Render(_ context.Context, _ []byte, r *core.ResizeSpec, f core.FormatSpec) ([]byte, error) {
	return []byte(r.Size() + " " + string(f.Format())), nil
}

type server struct {
	engine  http.Handler
	results string
}

func newServer(t *testing.T) server {
	t.Helper()
	sources, results := t.TempDir(), t.TempDir()
	var img bytes.Buffer
	if err := jpeg.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sources, "red.jpg"), img.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Source.LocalDir = sources

	local, err := storage.NewLocal(results, nil)
	if err != nil {
		t.Fatal(err)
	}
	mgr := storage.NewManager(local)
	metrics := hooks.NewInMemoryMetrics()
	l, err := ledger.Open("file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	svc, err := imageprocessor.New(cfg, echoCodec{}, mgr,
		imageprocessor.WithHooks(hooks.NewMetricsHook(metrics)),
		imageprocessor.WithRecorder(l))
	if err != nil {
		t.Fatal(err)
	}
	return server{
		engine:  httpapi.NewRouter(httpapi.Options{Service: svc, Storage: mgr, Metrics: metrics, Ledger: l}),
		results: results,
	}
}

func (s server) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := sonic.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %q", w.Body.String())
	}
	return out
}

func TestStatus(t *testing.T) {
	w := newServer(t).do(t, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK || w.Body.String() != "STATUS OK" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestOne_Stream(t *testing.T) {
	w := newServer(t).do(t, http.MethodGet, "/one?imagePath=red.jpg&outputStorage=stream&outputResize=40x30&outputFormat=webp", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/webp" {
		t.Errorf("content type = %s", ct)
	}
	if w.Body.String() != "40x30 webp" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestOne_LocalDefaultsToJpg(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/one?imagePath=red.jpg", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["error"] != nil || out["message"] != "OK" {
		t.Errorf("body = %v", out)
	}
	if _, err := os.Stat(filepath.Join(s.results, "red.jpg")); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestOne_Errors(t *testing.T) {
	s := newServer(t)
	tests := []struct {
		target string
		code   int
	}{
		{"/one?imagePath=red.jpg&outputResize=40by30", http.StatusBadRequest},
		{"/one?imagePath=red.jpg&progressive=maybe", http.StatusBadRequest},
		{"/one?imagePath=blue.jpg", http.StatusNotFound},
		{"/one?imagePath=red.jpg&outputStorage=stream&outputFormat=gif", http.StatusBadRequest},
	}
	for _, tc := range tests {
		w := s.do(t, http.MethodGet, tc.target, "")
		if w.Code != tc.code {
			t.Errorf("%s: status = %d, want %d (%s)", tc.target, w.Code, tc.code, w.Body.String())
			continue
		}
		if out := decode(t, w); out["error"] == nil || out["message"] == "" {
			t.Errorf("%s: body = %v", tc.target, out)
		}
	}
}

func TestMulti(t *testing.T) {
	s := newServer(t)
	body := `{
		"imagePath": "red.jpg",
		"outputStorage": "local",
		"outputResize": [{"outputResize": "1000x200", "addName": "1000x200"}],
		"outputFormat": {"jpg": {"quality": 70}, "avif": {}}
	}`
	w := s.do(t, http.MethodPost, "/multi", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	for _, name := range []string{"red-1000x200.avif", "red-1000x200.jpg"} {
		if _, err := os.Stat(filepath.Join(s.results, name)); err != nil {
			t.Errorf("missing %s", name)
		}
	}

	m := decode(t, s.do(t, http.MethodGet, "/metrics", ""))
	calls, _ := m["taskCalls"].(map[string]any)
	if calls["jpg"] != float64(1) || calls["avif"] != float64(1) {
		t.Errorf("metrics = %v", m)
	}

	o := decode(t, s.do(t, http.MethodGet, "/ledger/orphans", ""))
	if list, _ := o["orphans"].([]any); len(list) != 0 {
		t.Errorf("orphans = %v", o)
	}
}

func TestMulti_MalformedJSON(t *testing.T) {
	w := newServer(t).do(t, http.MethodPost, "/multi", `{"imagePath":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStorageDiagnostics(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/test/local/put?dir=/probe/&name=hello.txt&text=abc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("put: %d %s", w.Code, w.Body.String())
	}
	data, err := os.ReadFile(filepath.Join(s.results, "probe", "hello.txt"))
	if err != nil || string(data) != "abc" {
		t.Fatalf("probe file = %q, %v", data, err)
	}
	if w := s.do(t, http.MethodGet, "/test/local/delete?dir=probe&name=hello.txt", ""); w.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(s.results, "probe", "hello.txt")); !os.IsNotExist(err) {
		t.Errorf("probe file still present: %v", err)
	}

	if w := s.do(t, http.MethodGet, "/test/local/list", ""); w.Code != http.StatusBadRequest {
		t.Errorf("list on local: %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/test/ftp/put", ""); w.Code != http.StatusNotFound {
		t.Errorf("unconfigured ftp: %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/test/local/put?name=../x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("path in name: %d", w.Code)
	}
}
