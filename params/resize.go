package params

import (
	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// resizeFields is the validated intermediate form of a resize entry.
type resizeFields struct {
	Width              int    `json:"width" validate:"min=1"`
	Height             int    `json:"height" validate:"min=1"`
	Fit                string `json:"fit" validate:"oneof=cover contain fill inside outside"`
	Position           string `json:"position"`
	Background         string `json:"background" validate:"rgbcolor"`
	Kernel             string `json:"kernel" validate:"oneof=nearest cubic mitchell lanczos2 lanczos3"`
	WithoutEnlargement bool   `json:"withoutEnlargement"`
	WithoutReduction   bool   `json:"withoutReduction"`
	FastShrinkOnLoad   bool   `json:"fastShrinkOnLoad"`
	Name               string `json:"addName" validate:"excludesall=/\\"`
}

var positions = map[string]core.Position{
	"top":          core.PositionTop,
	"right top":    core.PositionRightTop,
	"right":        core.PositionRight,
	"right bottom": core.PositionRightBottom,
	"bottom":       core.PositionBottom,
	"left bottom":  core.PositionLeftBottom,
	"left":         core.PositionLeft,
	"left top":     core.PositionLeftTop,
	"center":       core.PositionCenter,
	"centre":       core.PositionCenter,
}

// NewResize builds a ResizeSpec. The size comes from "outputResize"
// ("<w>x<h>") or, when absent, from numeric "width" and "height".
func NewResize(prefix string, raw Raw) (*core.ResizeSpec, error) {
	f := resizeFields{
		Fit:              string(core.FitCover),
		Position:         string(core.PositionCenter),
		Background:       "rgb(0,0,0)",
		Kernel:           string(core.KernelLanczos3),
		FastShrinkOnLoad: true,
	}

	r := &fieldReader{prefix: prefix, raw: raw}
	if v, ok := raw["outputResize"]; ok && v != nil {
		s, err := ParseString(r.name("outputResize"), v)
		if err != nil {
			return nil, err
		}
		if f.Width, f.Height, err = ParseSize(r.name("outputResize"), s); err != nil {
			return nil, err
		}
	} else {
		r.integer("width", &f.Width)
		r.integer("height", &f.Height)
	}
	r.str("fit", &f.Fit)
	r.str("position", &f.Position)
	r.str("background", &f.Background)
	r.str("kernel", &f.Kernel)
	r.boolean("withoutEnlargement", &f.WithoutEnlargement)
	r.boolean("withoutReduction", &f.WithoutReduction)
	r.boolean("fastShrinkOnLoad", &f.FastShrinkOnLoad)
	r.str("addName", &f.Name)
	if r.err != nil {
		return nil, r.err
	}

	if err := check(prefix, f); err != nil {
		return nil, err
	}
	pos, ok := positions[f.Position]
	if !ok {
		return nil, apperrors.Invalid(r.name("position"), "unknown position %q", f.Position)
	}
	rgb, _ := parseRGB(f.Background)

	return &core.ResizeSpec{
		Width:              f.Width,
		Height:             f.Height,
		Fit:                core.Fit(f.Fit),
		Position:           pos,
		Background:         core.RGB{R: rgb[0], G: rgb[1], B: rgb[2]},
		Kernel:             core.Kernel(f.Kernel),
		WithoutEnlargement: f.WithoutEnlargement,
		WithoutReduction:   f.WithoutReduction,
		FastShrinkOnLoad:   f.FastShrinkOnLoad,
		Name:               f.Name,
	}, nil
}
