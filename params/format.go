package params

import (
	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// DefaultAvif returns the AVIF options used when none are given.
func DefaultAvif() core.AvifSpec {
	return core.AvifSpec{Quality: 50, Effort: 4, ChromaSubsampling: "4:4:4"}
}

// DefaultWebp returns the WebP options used when none are given.
func DefaultWebp() core.WebpSpec {
	return core.WebpSpec{Quality: 80, AlphaQuality: 100, Effort: 4, Preset: "default", Force: true}
}

// DefaultJpg returns the JPEG options used when none are given.
func DefaultJpg() core.JpgSpec {
	return core.JpgSpec{Quality: 80, ChromaSubsampling: "4:2:0", OptimiseCoding: true, Force: true}
}

// NewAvif builds AVIF options from raw input. Nil input yields the defaults.
func NewAvif(raw Raw) (*core.AvifSpec, error) {
	spec := DefaultAvif()
	r := &fieldReader{prefix: "avif", raw: raw}
	r.integer("quality", &spec.Quality)
	r.boolean("lossless", &spec.Lossless)
	r.integer("effort", &spec.Effort)
	r.str("chromaSubsampling", &spec.ChromaSubsampling)
	if r.err != nil {
		return nil, r.err
	}
	if err := check("avif", spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// NewWebp builds WebP options from raw input. Nil input yields the defaults.
func NewWebp(raw Raw) (*core.WebpSpec, error) {
	spec := DefaultWebp()
	r := &fieldReader{prefix: "webp", raw: raw}
	r.integer("quality", &spec.Quality)
	r.integer("alphaQuality", &spec.AlphaQuality)
	r.boolean("lossless", &spec.Lossless)
	r.boolean("nearLossless", &spec.NearLossless)
	r.boolean("smartSubsample", &spec.SmartSubsample)
	r.str("preset", &spec.Preset)
	r.integer("effort", &spec.Effort)
	r.integer("loop", &spec.Loop)
	r.integer("delay", &spec.Delay)
	r.boolean("minSize", &spec.MinSize)
	r.boolean("mixed", &spec.Mixed)
	r.boolean("force", &spec.Force)
	if r.err != nil {
		return nil, r.err
	}
	if err := check("webp", spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// NewJpg builds JPEG options from raw input. Nil input yields the defaults.
func NewJpg(raw Raw) (*core.JpgSpec, error) {
	spec := DefaultJpg()
	r := &fieldReader{prefix: "jpg", raw: raw}
	r.integer("quality", &spec.Quality)
	r.boolean("progressive", &spec.Progressive)
	r.str("chromaSubsampling", &spec.ChromaSubsampling)
	r.boolean("optimiseCoding", &spec.OptimiseCoding)
	r.boolean("optimizeCoding", &spec.OptimiseCoding)
	r.boolean("mozjpeg", &spec.Mozjpeg)
	r.boolean("trellisQuantisation", &spec.TrellisQuantisation)
	r.boolean("overshootDeringing", &spec.OvershootDeringing)
	r.boolean("optimiseScans", &spec.OptimiseScans)
	r.boolean("optimizeScans", &spec.OptimiseScans)
	r.integer("quantisationTable", &spec.QuantisationTable)
	r.integer("quantizationTable", &spec.QuantisationTable)
	r.boolean("force", &spec.Force)
	if r.err != nil {
		return nil, r.err
	}
	if err := check("jpg", spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// NewFormat dispatches on the format name.
func NewFormat(name core.Format, raw Raw) (core.FormatSpec, error) {
	switch name {
	case core.FormatAVIF:
		s, err := NewAvif(raw)
		if err != nil {
			return nil, err
		}
		return *s, nil
	case core.FormatWebP:
		s, err := NewWebp(raw)
		if err != nil {
			return nil, err
		}
		return *s, nil
	case core.FormatJPG:
		s, err := NewJpg(raw)
		if err != nil {
			return nil, err
		}
		return *s, nil
	}
	return nil, apperrors.Invalid("outputFormat", "unknown format %q, expected avif, webp or jpg", name)
}
