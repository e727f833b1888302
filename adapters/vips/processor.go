package vips

import (
	"context"
	"fmt"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
	"github.com/frankii91/sharp-web-resizing-images/utils"
)

// CodecConfig configures the libvips runtime.
type CodecConfig struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
}

// Codec renders derivatives with libvips.
// Safe for concurrent use across goroutines.
type Codec struct {
	cfg CodecConfig
}

// NewCodec initialises libvips and returns a ready Codec.
// Call Shutdown() when the process exits.
func NewCodec(cfg CodecConfig) *Codec {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Codec{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (c *Codec) Shutdown() {
	govips.Shutdown()
}

// Render decodes src, applies resize and encodes to format.
func (c *Codec) Render(ctx context.Context, src []byte, resize *core.ResizeSpec, format core.FormatSpec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryCodec, "vips.render", err)
	}
	if len(src) == 0 {
		return nil, apperrors.New(apperrors.CategoryCodec, "vips.render", apperrors.ErrEmptyInput)
	}

	ref, err := govips.NewImageFromBuffer(src)
	if err != nil {
		return nil, codecErr("vips.decode", err)
	}
	defer func() { ref.Close() }()

	if resize != nil {
		if ref, err = c.resize(src, ref, resize); err != nil {
			return nil, codecErr("vips.resize", err)
		}
	}

	out, err := export(ref, format)
	if err != nil {
		return nil, codecErr("vips.encode."+string(format.Format()), err)
	}
	return out, nil
}

// ─── Resize ───────────────────────────────────────────────────────────────────

// resize returns the image to export; it may replace ref, in which case the
// old ref is closed.
func (c *Codec) resize(src []byte, ref *govips.ImageRef, r *core.ResizeSpec) (*govips.ImageRef, error) {
	srcW, srcH := ref.Width(), ref.Height()
	l := utils.FitLayout(srcW, srcH, r.Width, r.Height, string(r.Fit), string(r.Position),
		r.WithoutEnlargement, r.WithoutReduction)

	if l.Scaled(srcW, srcH) {
		// vips_thumbnail shrinks on load for JPEG/WebP, so the full bitmap is
		// never allocated. It is only used for downscales.
		if r.FastShrinkOnLoad && l.ResizeW <= srcW && l.ResizeH <= srcH {
			thumb, err := govips.NewThumbnailWithSizeFromBuffer(src, l.ResizeW, l.ResizeH,
				govips.InterestingNone, govips.SizeForce)
			if err != nil {
				return ref, err
			}
			ref.Close()
			ref = thumb
		} else {
			hs := float64(l.ResizeW) / float64(srcW)
			vs := float64(l.ResizeH) / float64(srcH)
			if err := ref.ResizeWithVScale(hs, vs, kernel(r.Kernel)); err != nil {
				return ref, err
			}
		}
	}

	switch {
	case l.Crop:
		w, h := min(l.Width, ref.Width()), min(l.Height, ref.Height())
		x := min(l.OffsetX, ref.Width()-w)
		y := min(l.OffsetY, ref.Height()-h)
		if err := ref.ExtractArea(x, y, w, h); err != nil {
			return ref, err
		}
	case l.Embed:
		bg := &govips.Color{R: r.Background.R, G: r.Background.G, B: r.Background.B}
		if err := ref.EmbedBackground(l.OffsetX, l.OffsetY, l.Width, l.Height, bg); err != nil {
			return ref, err
		}
	}
	return ref, nil
}

func kernel(k core.Kernel) govips.Kernel {
	switch k {
	case core.KernelNearest:
		return govips.KernelNearest
	case core.KernelCubic:
		return govips.KernelCubic
	case core.KernelMitchell:
		return govips.KernelMitchell
	case core.KernelLanczos2:
		return govips.KernelLanczos2
	default:
		return govips.KernelLanczos3
	}
}

// ─── Export ───────────────────────────────────────────────────────────────────

func export(ref *govips.ImageRef, f core.FormatSpec) ([]byte, error) {
	switch s := f.(type) {
	case core.AvifSpec:
		return exportAvif(ref, s)
	case *core.AvifSpec:
		return exportAvif(ref, *s)
	case core.WebpSpec:
		return exportWebp(ref, s)
	case *core.WebpSpec:
		return exportWebp(ref, *s)
	case core.JpgSpec:
		return exportJpg(ref, s)
	case *core.JpgSpec:
		return exportJpg(ref, *s)
	}
	return nil, fmt.Errorf("unsupported format options %T", f)
}

func exportAvif(ref *govips.ImageRef, s core.AvifSpec) ([]byte, error) {
	ep := govips.NewAvifExportParams()
	ep.Quality = s.Quality
	ep.Lossless = s.Lossless
	ep.Effort = s.Effort
	ep.StripMetadata = true
	buf, _, err := ref.ExportAvif(ep)
	return buf, err
}

func exportWebp(ref *govips.ImageRef, s core.WebpSpec) ([]byte, error) {
	ep := govips.NewWebpExportParams()
	ep.Quality = s.Quality
	ep.Lossless = s.Lossless
	ep.NearLossless = s.NearLossless
	ep.ReductionEffort = s.Effort
	ep.MinSize = s.MinSize
	ep.StripMetadata = true
	buf, _, err := ref.ExportWebp(ep)
	return buf, err
}

func exportJpg(ref *govips.ImageRef, s core.JpgSpec) ([]byte, error) {
	if ref.HasAlpha() {
		if err := ref.Flatten(&govips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, err
		}
	}
	ep := govips.NewJpegExportParams()
	ep.Quality = s.Quality
	ep.Interlace = s.Progressive
	ep.OptimizeCoding = s.OptimiseCoding || s.Mozjpeg
	ep.TrellisQuant = s.TrellisQuantisation || s.Mozjpeg
	ep.OvershootDeringing = s.OvershootDeringing || s.Mozjpeg
	ep.OptimizeScans = s.OptimiseScans || s.Mozjpeg
	ep.QuantTable = s.QuantisationTable
	if s.Mozjpeg && s.QuantisationTable == 0 {
		ep.QuantTable = 3
	}
	ep.SubsampleMode = subsample(s.ChromaSubsampling)
	ep.StripMetadata = true
	buf, _, err := ref.ExportJpeg(ep)
	return buf, err
}

func subsample(chroma string) govips.SubsampleMode {
	switch chroma {
	case "4:4:4":
		return govips.VipsForeignSubsampleOff
	case "4:2:0":
		return govips.VipsForeignSubsampleOn
	}
	return govips.VipsForeignSubsampleAuto
}

func codecErr(op string, err error) error {
	return apperrors.New(apperrors.CategoryCodec, op, fmt.Errorf("%w: %v", apperrors.ErrCodec, err))
}

var _ core.Codec = (*Codec)(nil)
