// Package imaging is a pure-Go Codec for hosts without libvips. It reads
// JPEG, PNG, GIF, TIFF, BMP and WebP sources and writes JPEG only.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the WebP decoder

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
	"github.com/frankii91/sharp-web-resizing-images/utils"
)

// Codec renders JPEG derivatives with github.com/disintegration/imaging.
type Codec struct{}

// NewCodec returns a ready Codec.
func NewCodec() *Codec { return &Codec{} }

// Render decodes src, applies resize and encodes to format. AVIF and WebP
// output fail with ErrCodec.
func (c *Codec) Render(ctx context.Context, src []byte, resize *core.ResizeSpec, format core.FormatSpec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryCodec, "imaging.render", err)
	}
	if len(src) == 0 {
		return nil, apperrors.New(apperrors.CategoryCodec, "imaging.render", apperrors.ErrEmptyInput)
	}

	var quality int
	switch s := format.(type) {
	case core.JpgSpec:
		quality = s.Quality
	case *core.JpgSpec:
		quality = s.Quality
	default:
		return nil, codecErr("imaging.encode", fmt.Errorf("%s output requires the vips codec", format.Format()))
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, codecErr("imaging.decode", err)
	}
	if resize != nil {
		img = apply(img, resize)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, codecErr("imaging.encode", err)
	}
	return buf.Bytes(), nil
}

func apply(img image.Image, r *core.ResizeSpec) image.Image {
	b := img.Bounds()
	l := utils.FitLayout(b.Dx(), b.Dy(), r.Width, r.Height, string(r.Fit), string(r.Position),
		r.WithoutEnlargement, r.WithoutReduction)

	if l.Scaled(b.Dx(), b.Dy()) {
		img = imaging.Resize(img, l.ResizeW, l.ResizeH, filter(r.Kernel))
	}
	switch {
	case l.Crop:
		rect := image.Rect(l.OffsetX, l.OffsetY, l.OffsetX+l.Width, l.OffsetY+l.Height)
		img = imaging.Crop(img, rect)
	case l.Embed:
		bg := imaging.New(l.Width, l.Height, color.NRGBA{R: r.Background.R, G: r.Background.G, B: r.Background.B, A: 255})
		img = imaging.Paste(bg, img, image.Pt(l.OffsetX, l.OffsetY))
	}
	return img
}

func filter(k core.Kernel) imaging.ResampleFilter {
	switch k {
	case core.KernelNearest:
		return imaging.NearestNeighbor
	case core.KernelCubic:
		return imaging.CatmullRom
	case core.KernelMitchell:
		return imaging.MitchellNetravali
	default:
		return imaging.Lanczos
	}
}

func codecErr(op string, err error) error {
	return apperrors.New(apperrors.CategoryCodec, op, fmt.Errorf("%w: %v", apperrors.ErrCodec, err))
}

var _ core.Codec = (*Codec)(nil)
