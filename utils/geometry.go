package utils

import (
	"math"
	"strings"
)

// Layout is the resize plan for one derivative: scale the source to
// ResizeW×ResizeH, then either crop (Crop) or embed on a background (Embed)
// into a Width×Height canvas, at OffsetX/OffsetY.
type Layout struct {
	ResizeW, ResizeH int
	Width, Height    int
	OffsetX, OffsetY int
	Crop             bool
	Embed            bool
}

// Scaled reports whether the source dimensions change.
func (l Layout) Scaled(srcW, srcH int) bool { return l.ResizeW != srcW || l.ResizeH != srcH }

// FitLayout computes the Layout for a srcW×srcH image and a dstW×dstH box.
// fit is one of cover, contain, fill, inside, outside. When a scale is
// clamped by withoutEnlargement or withoutReduction the image is kept at
// the clamped scale and neither cropped nor embedded.
func FitLayout(srcW, srcH, dstW, dstH int, fit, position string, withoutEnlargement, withoutReduction bool) Layout {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Layout{ResizeW: srcW, ResizeH: srcH, Width: srcW, Height: srcH}
	}
	sx := float64(dstW) / float64(srcW)
	sy := float64(dstH) / float64(srcH)

	if fit == "fill" {
		if withoutEnlargement {
			sx, sy = math.Min(sx, 1), math.Min(sy, 1)
		}
		if withoutReduction {
			sx, sy = math.Max(sx, 1), math.Max(sy, 1)
		}
		w, h := scaleDim(srcW, sx), scaleDim(srcH, sy)
		return Layout{ResizeW: w, ResizeH: h, Width: w, Height: h}
	}

	var scale float64
	switch fit {
	case "contain", "inside":
		scale = math.Min(sx, sy)
	default: // cover, outside
		scale = math.Max(sx, sy)
	}

	clamped := false
	if withoutEnlargement && scale > 1 {
		scale, clamped = 1, true
	}
	if withoutReduction && scale < 1 {
		scale, clamped = 1, true
	}

	w, h := scaleDim(srcW, scale), scaleDim(srcH, scale)
	l := Layout{ResizeW: w, ResizeH: h, Width: w, Height: h}
	if clamped {
		return l
	}

	switch fit {
	case "cover":
		if w > dstW || h > dstH {
			l.Width, l.Height = dstW, dstH
			l.OffsetX, l.OffsetY = Gravity(position, w-dstW, h-dstH)
			l.Crop = true
		}
	case "contain":
		if w < dstW || h < dstH {
			l.Width, l.Height = dstW, dstH
			l.OffsetX, l.OffsetY = Gravity(position, dstW-w, dstH-h)
			l.Embed = true
		}
	}
	return l
}

// Gravity places a box inside free space according to a position such as
// "right top" or "center".
func Gravity(position string, freeW, freeH int) (x, y int) {
	x, y = freeW/2, freeH/2
	for _, word := range strings.Fields(position) {
		switch word {
		case "left":
			x = 0
		case "right":
			x = freeW
		case "top":
			y = 0
		case "bottom":
			y = freeH
		}
	}
	return x, y
}

func scaleDim(n int, s float64) int {
	v := int(math.Round(float64(n) * s))
	if v < 1 {
		return 1
	}
	return v
}
