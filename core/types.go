package core

import (
	"fmt"
	"strings"
)

// Format identifies an output codec.
type Format string

const (
	FormatAVIF Format = "avif"
	FormatWebP Format = "webp"
	FormatJPG  Format = "jpg"
)

// FormatOrder is the canonical declaration order used when expanding a
// request into tasks.
var FormatOrder = []Format{FormatAVIF, FormatWebP, FormatJPG}

// Extension returns the filename extension without the dot.
func (f Format) Extension() string { return string(f) }

// ContentType returns the MIME type written alongside the artifact.
func (f Format) ContentType() string {
	switch f {
	case FormatAVIF:
		return "image/avif"
	case FormatWebP:
		return "image/webp"
	case FormatJPG:
		return "image/jpeg"
	}
	return "application/octet-stream"
}

// Valid reports whether f is one of the supported output formats.
func (f Format) Valid() bool {
	switch f {
	case FormatAVIF, FormatWebP, FormatJPG:
		return true
	}
	return false
}

// SourceKind says where the source image is read from.
type SourceKind string

const (
	SourceLocal SourceKind = "local"
	SourceMount SourceKind = "mount"
	SourceURL   SourceKind = "url"
)

// BackendKind is the explicit tag carried by every StorageDescriptor.
type BackendKind string

const (
	BackendLocal  BackendKind = "local"
	BackendMount  BackendKind = "mount"
	BackendS3     BackendKind = "s3"
	BackendFTP    BackendKind = "ftp"
	BackendStream BackendKind = "stream"
)

// BackendKinds lists every known destination kind.
var BackendKinds = []BackendKind{BackendLocal, BackendMount, BackendS3, BackendFTP, BackendStream}

// ParseBackendKind maps a destination name to its kind. "cr2" is accepted
// as the legacy name of the object-storage destination.
func ParseBackendKind(s string) (BackendKind, bool) {
	switch k := BackendKind(strings.ToLower(strings.TrimSpace(s))); k {
	case BackendLocal, BackendMount, BackendS3, BackendFTP, BackendStream:
		return k, true
	case "cr2", "r2":
		return BackendS3, true
	}
	return "", false
}

// Durable reports whether artifacts written to k can later be deleted.
func (k BackendKind) Durable() bool { return k != BackendStream }

// ── Resize model ──────────────────────────────────────────────────────────────

// Fit is the strategy used when the aspect ratios differ.
type Fit string

const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
	FitFill    Fit = "fill"
	FitInside  Fit = "inside"
	FitOutside Fit = "outside"
)

// Position anchors the crop or embed for cover and contain.
type Position string

const (
	PositionTop         Position = "top"
	PositionRightTop    Position = "right top"
	PositionRight       Position = "right"
	PositionRightBottom Position = "right bottom"
	PositionBottom      Position = "bottom"
	PositionLeftBottom  Position = "left bottom"
	PositionLeft        Position = "left"
	PositionLeftTop     Position = "left top"
	PositionCenter      Position = "center"
)

// Kernel is the resampling kernel.
type Kernel string

const (
	KernelNearest  Kernel = "nearest"
	KernelCubic    Kernel = "cubic"
	KernelMitchell Kernel = "mitchell"
	KernelLanczos2 Kernel = "lanczos2"
	KernelLanczos3 Kernel = "lanczos3"
)

// RGB is an opaque background colour.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string { return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B) }

// ResizeSpec describes one output size. Width and Height are always > 0 once
// built by the params package.
type ResizeSpec struct {
	Width              int      `json:"width"`
	Height             int      `json:"height"`
	Fit                Fit      `json:"fit"`
	Position           Position `json:"position"`
	Background         RGB      `json:"-"`
	Kernel             Kernel   `json:"kernel"`
	WithoutEnlargement bool     `json:"withoutEnlargement"`
	WithoutReduction   bool     `json:"withoutReduction"`
	FastShrinkOnLoad   bool     `json:"fastShrinkOnLoad"`
	Name               string   `json:"addName,omitempty"`
}

// Suffix is appended to the base filename; empty when no name was given.
func (r *ResizeSpec) Suffix() string {
	if r == nil || r.Name == "" {
		return ""
	}
	return "-" + r.Name
}

// Size renders the spec as "<w>x<h>".
func (r *ResizeSpec) Size() string {
	if r == nil {
		return "original"
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ── Format options ────────────────────────────────────────────────────────────

// FormatSpec is implemented by AvifSpec, WebpSpec and JpgSpec.
type FormatSpec interface {
	Format() Format
}

// AvifSpec holds AVIF encode options.
type AvifSpec struct {
	Quality           int    `json:"quality" validate:"min=1,max=100"`
	Lossless          bool   `json:"lossless"`
	Effort            int    `json:"effort" validate:"min=0,max=9"`
	ChromaSubsampling string `json:"chromaSubsampling" validate:"chroma"`
}

func (AvifSpec) Format() Format { return FormatAVIF }

// WebpSpec holds WebP encode options.
type WebpSpec struct {
	Quality        int    `json:"quality" validate:"min=1,max=100"`
	AlphaQuality   int    `json:"alphaQuality" validate:"min=0,max=100"`
	Lossless       bool   `json:"lossless"`
	NearLossless   bool   `json:"nearLossless"`
	SmartSubsample bool   `json:"smartSubsample"`
	Preset         string `json:"preset" validate:"oneof=default photo picture drawing icon text"`
	Effort         int    `json:"effort" validate:"min=0,max=6"`
	Loop           int    `json:"loop" validate:"min=0,max=65535"`
	Delay          int    `json:"delay" validate:"min=0"`
	MinSize        bool   `json:"minSize"`
	Mixed          bool   `json:"mixed"`
	Force          bool   `json:"force"`
}

func (WebpSpec) Format() Format { return FormatWebP }

// JpgSpec holds JPEG encode options.
type JpgSpec struct {
	Quality             int    `json:"quality" validate:"min=1,max=100"`
	Progressive         bool   `json:"progressive"`
	ChromaSubsampling   string `json:"chromaSubsampling" validate:"chroma"`
	OptimiseCoding      bool   `json:"optimiseCoding"`
	Mozjpeg             bool   `json:"mozjpeg"`
	TrellisQuantisation bool   `json:"trellisQuantisation"`
	OvershootDeringing  bool   `json:"overshootDeringing"`
	OptimiseScans       bool   `json:"optimiseScans"`
	QuantisationTable   int    `json:"quantisationTable" validate:"min=0,max=8"`
	Force               bool   `json:"force"`
}

func (JpgSpec) Format() Format { return FormatJPG }

// FormatEntry pairs a format name with its options, preserving order.
type FormatEntry struct {
	Name Format
	Spec FormatSpec
}

// ── Request ───────────────────────────────────────────────────────────────────

// Source locates the input image.
type Source struct {
	Kind SourceKind `json:"loaderTyp"`
	Path string     `json:"imagePath"`
}

// Request is built once per call by the params package and is read-only
// afterwards.
type Request struct {
	Source      Source
	Destination BackendKind
	Resizes     []ResizeSpec
	Formats     []FormatEntry // at least one, keys unique, canonical order
	Dir         string        // destination directory, no leading slash
	BaseName    string        // source filename without extension
	Single      bool          // built from the single-variant form
}

// Spec returns the options for format f, if requested.
func (r *Request) Spec(f Format) (FormatSpec, bool) {
	for _, e := range r.Formats {
		if e.Name == f {
			return e.Spec, true
		}
	}
	return nil, false
}

// ── Tasks and outcomes ────────────────────────────────────────────────────────

// DerivativeTask is one (resize, format) pair to render and persist.
// Resize is nil for a pass-through at the original dimensions.
type DerivativeTask struct {
	Index       int
	Resize      *ResizeSpec
	Format      Format
	Spec        FormatSpec
	Filename    string
	ContentType string
}

// Label identifies the task in logs and errors.
func (t DerivativeTask) Label() string { return t.Filename }

// StorageDescriptor addresses one artifact for both write and delete.
type StorageDescriptor struct {
	Kind        BackendKind
	Dir         string
	File        string
	ContentType string
	Meta        map[string]string
}

// SaveStatus is the state an artifact is left in by a save.
type SaveStatus string

const (
	StatusOK      SaveStatus = "ok"
	StatusQueued  SaveStatus = "queued"
	StatusSkipped SaveStatus = "skipped"
	StatusError   SaveStatus = "error"
)

// SaveOutcome is returned by every save and carried into compensation.
type SaveOutcome struct {
	Status SaveStatus
	Kind   BackendKind
	Dir    string
	File   string
	Bytes  int
	Result any // backend-specific detail, e.g. the object key
}

// Descriptor rebuilds the descriptor that addresses the saved artifact.
func (o SaveOutcome) Descriptor() StorageDescriptor {
	return StorageDescriptor{Kind: o.Kind, Dir: o.Dir, File: o.File}
}

// TaskOutcome is the settled result of one task.
type TaskOutcome struct {
	Task DerivativeTask
	Save SaveOutcome
	Err  error
}

// Failed reports whether the task ended in error.
func (o TaskOutcome) Failed() bool { return o.Err != nil }
