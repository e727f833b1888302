package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/frankii91/sharp-web-resizing-images/adapters/storage"
	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
	"github.com/frankii91/sharp-web-resizing-images/params"
)

// outcome is the JSON body returned by /one and /multi.
type outcome struct {
	Error   any    `json:"error"`
	Message string `json:"message"`
}

type handler struct {
	opts Options
}

// ginResponse lets stream destinations write straight into the HTTP response.
type ginResponse struct {
	c *gin.Context
}

func (r ginResponse) Committed() bool { return r.c.Writer.Written() }

func (r ginResponse) Write(contentType string, data []byte) error {
	r.c.Data(http.StatusOK, contentType, data)
	return nil
}

var _ core.ResponseChannel = ginResponse{}

func (h *handler) status(c *gin.Context) {
	c.String(http.StatusOK, "STATUS OK")
}

func (h *handler) one(c *gin.Context) {
	q := make(params.Raw)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			q[k] = v[0]
		}
	}
	_, err := h.opts.Service.ProcessSingle(c.Request.Context(), q, ginResponse{c})
	h.finish(c, err)
}

func (h *handler) multi(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.finish(c, apperrors.Wrap(apperrors.CategoryValidation, "http.body", err))
		return
	}
	var body params.Raw
	if err := sonic.Unmarshal(raw, &body); err != nil {
		h.finish(c, apperrors.Invalid("body", "malformed JSON: %v", err))
		return
	}
	_, err = h.opts.Service.ProcessMulti(c.Request.Context(), body, ginResponse{c})
	h.finish(c, err)
}

// finish writes the JSON outcome unless a stream destination already wrote
// the image.
func (h *handler) finish(c *gin.Context, err error) {
	if c.Writer.Written() {
		if err != nil {
			h.opts.Logger.Warn("http.stream.failed_after_write", "path", c.Request.URL.Path, "error", err.Error())
		}
		return
	}
	if err != nil {
		code := statusFor(err)
		c.JSON(code, outcome{Error: http.StatusText(code), Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, outcome{Message: "OK"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidParameter),
		errors.Is(err, apperrors.ErrBooleanParse),
		errors.Is(err, apperrors.ErrInvalidResizeFormat),
		errors.Is(err, apperrors.ErrInvalidSourceURL):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrSourceNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *handler) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.opts.Metrics.Snapshot())
}

// ── Storage diagnostics ───────────────────────────────────────────────────────

func (h *handler) backend(c *gin.Context) (core.Backend, bool) {
	kind, ok := core.ParseBackendKind(c.Param("kind"))
	if !ok || !kind.Durable() {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown storage " + c.Param("kind")})
		return nil, false
	}
	b, err := h.opts.Storage.Backend(kind)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "storage": kind, "error": err.Error()})
		return nil, false
	}
	return b, true
}

func descriptorFrom(c *gin.Context, kind core.BackendKind) (core.StorageDescriptor, bool) {
	name := c.DefaultQuery("name", "hello.txt")
	if name == "" || strings.ContainsAny(name, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "name must be a plain filename"})
		return core.StorageDescriptor{}, false
	}
	dir := strings.Trim(strings.ReplaceAll(c.DefaultQuery("dir", "test"), `\`, "/"), "/")
	return core.StorageDescriptor{Kind: kind, Dir: dir, File: name}, true
}

func (h *handler) testPut(c *gin.Context) {
	b, ok := h.backend(c)
	if !ok {
		return
	}
	d, ok := descriptorFrom(c, b.Kind())
	if !ok {
		return
	}
	text := c.DefaultQuery("text", "hello "+time.Now().UTC().Format(time.RFC3339))
	d.ContentType = c.DefaultQuery("contentType", "text/plain; charset=utf-8")
	d.Meta = map[string]string{"x-test": "true", "x-created": time.Now().UTC().Format(time.RFC3339)}

	out, err := b.Save(c.Request.Context(), d, []byte(text))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "storage": d.Kind, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "storage": d.Kind, "dir": d.Dir, "name": d.File,
		"bytes": out.Bytes, "result": out.Result})
}

func (h *handler) testDelete(c *gin.Context) {
	b, ok := h.backend(c)
	if !ok {
		return
	}
	d, ok := descriptorFrom(c, b.Kind())
	if !ok {
		return
	}
	if err := b.Delete(c.Request.Context(), d); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "storage": d.Kind, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "storage": d.Kind, "dir": d.Dir, "name": d.File})
}

func (h *handler) testList(c *gin.Context) {
	b, ok := h.backend(c)
	if !ok {
		return
	}
	dir := c.DefaultQuery("dir", "")
	var (
		entries any
		err     error
	)
	switch s := b.(type) {
	case *storage.FTP:
		entries, err = s.List(c.Request.Context(), dir)
	case *storage.ObjectStorage:
		entries, err = s.List(c.Request.Context(), dir)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "storage": b.Kind(), "error": "listing is not supported"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "storage": b.Kind(), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "storage": b.Kind(), "dir": dir, "entries": entries})
}

// ── Ledger maintenance ────────────────────────────────────────────────────────

func (h *handler) orphans(c *gin.Context) {
	list, err := h.opts.Ledger.Orphans(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, outcome{Error: "Internal Server Error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orphans": list})
}

func (h *handler) reconcile(c *gin.Context) {
	if h.opts.Storage == nil {
		c.JSON(http.StatusServiceUnavailable, outcome{Error: "Service Unavailable", Message: "no storage configured"})
		return
	}
	n, err := h.opts.Ledger.Reconcile(c.Request.Context(), h.opts.Storage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, outcome{Error: "Internal Server Error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}
