package vips_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/frankii91/sharp-web-resizing-images/adapters/vips"
	"github.com/frankii91/sharp-web-resizing-images/core"
	"github.com/frankii91/sharp-web-resizing-images/params"
)

func makeJPEG(b *testing.B, w, h int) []byte {
	b.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92})
	return buf.Bytes()
}

func newCodec(b *testing.B) *vips.Codec {
	b.Helper()
	c := vips.NewCodec(vips.CodecConfig{})
	b.Cleanup(c.Shutdown)
	return c
}

func benchRender(b *testing.B, resize *core.ResizeSpec, format core.FormatSpec) {
	raw := makeJPEG(b, 1920, 1080)
	c := newCodec(b)

	b.ReportAllocs()
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Render(context.Background(), raw, resize, format); err != nil {
			b.Fatal(err)
		}
	}
}

func cover(w, h int, fastShrink bool) *core.ResizeSpec {
	return &core.ResizeSpec{
		Width: w, Height: h,
		Fit: core.FitCover, Position: core.PositionCenter, Kernel: core.KernelLanczos3,
		FastShrinkOnLoad: fastShrink,
	}
}

// ─── Render ───────────────────────────────────────────────────────────────────

func BenchmarkRender_Jpg_Passthrough_1920x1080(b *testing.B) {
	benchRender(b, nil, params.DefaultJpg())
}

func BenchmarkRender_Jpg_Cover_1000x200(b *testing.B) {
	benchRender(b, cover(1000, 200, false), params.DefaultJpg())
}

func BenchmarkRender_Jpg_Cover_1000x200_ShrinkOnLoad(b *testing.B) {
	benchRender(b, cover(1000, 200, true), params.DefaultJpg())
}

func BenchmarkRender_Webp_Cover_1000x200(b *testing.B) {
	benchRender(b, cover(1000, 200, true), params.DefaultWebp())
}

func BenchmarkRender_Avif_Cover_1000x200(b *testing.B) {
	benchRender(b, cover(1000, 200, true), params.DefaultAvif())
}

func BenchmarkRender_Jpg_Contain_1500x400(b *testing.B) {
	r := cover(1500, 400, false)
	r.Fit = core.FitContain
	r.Background = core.RGB{R: 255, G: 255, B: 255}
	benchRender(b, r, params.DefaultJpg())
}
