package utils_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/frankii91/sharp-web-resizing-images/utils"
)

func TestFitLayout(t *testing.T) {
	tests := []struct {
		name     string
		fit      string
		position string
		dstW     int
		dstH     int
		noEnl    bool
		want     utils.Layout
	}{
		{
			name: "cover center", fit: "cover", position: "center", dstW: 100, dstH: 100,
			want: utils.Layout{ResizeW: 133, ResizeH: 100, Width: 100, Height: 100, OffsetX: 16, Crop: true},
		},
		{
			name: "cover right", fit: "cover", position: "right", dstW: 100, dstH: 100,
			want: utils.Layout{ResizeW: 133, ResizeH: 100, Width: 100, Height: 100, OffsetX: 33, Crop: true},
		},
		{
			name: "contain left bottom", fit: "contain", position: "left bottom", dstW: 100, dstH: 100,
			want: utils.Layout{ResizeW: 100, ResizeH: 75, Width: 100, Height: 100, OffsetY: 25, Embed: true},
		},
		{
			name: "fill", fit: "fill", dstW: 50, dstH: 50,
			want: utils.Layout{ResizeW: 50, ResizeH: 50, Width: 50, Height: 50},
		},
		{
			name: "inside", fit: "inside", dstW: 200, dstH: 200,
			want: utils.Layout{ResizeW: 200, ResizeH: 150, Width: 200, Height: 150},
		},
		{
			name: "cover without enlargement", fit: "cover", dstW: 800, dstH: 800, noEnl: true,
			want: utils.Layout{ResizeW: 400, ResizeH: 300, Width: 400, Height: 300},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := utils.FitLayout(400, 300, tc.dstW, tc.dstH, tc.fit, tc.position, tc.noEnl, false)
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestGravity(t *testing.T) {
	tests := map[string][2]int{
		"center":       {5, 10},
		"top":          {5, 0},
		"right top":    {10, 0},
		"left bottom":  {0, 20},
		"right bottom": {10, 20},
	}
	for pos, want := range tests {
		x, y := utils.Gravity(pos, 10, 20)
		if x != want[0] || y != want[1] {
			t.Errorf("Gravity(%q) = %d,%d, want %d,%d", pos, x, y, want[0], want[1])
		}
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A}, "png"},
		{[]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{[]byte("\x00\x00\x00\x1cftypavif"), "avif"},
		{[]byte("GIF89a"), "gif"},
		{[]byte("hello world"), "unknown"},
		{[]byte{0x01}, "unknown"},
	}
	for _, tc := range tests {
		if got := utils.DetectFormat(tc.data); got != tc.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tc.data, got, tc.want)
		}
	}
}

func TestLimitedReader(t *testing.T) {
	ctx := context.Background()
	exact := &utils.LimitedReader{R: strings.NewReader("12345"), Max: 5}
	if b, err := utils.ReadAll(ctx, exact, 2); err != nil || string(b) != "12345" {
		t.Fatalf("exact size: %q, %v", b, err)
	}
	over := &utils.LimitedReader{R: strings.NewReader("123456"), Max: 5}
	if _, err := utils.ReadAll(ctx, over, 2); !errors.Is(err, utils.ErrTooLarge) {
		t.Fatalf("over limit: want ErrTooLarge, got %v", err)
	}
	unlimited := &utils.LimitedReader{R: bytes.NewReader(make([]byte, 1<<16))}
	if b, err := utils.ReadAll(ctx, unlimited, 0); err != nil || len(b) != 1<<16 {
		t.Fatalf("unlimited: %d, %v", len(b), err)
	}
}

func TestReadAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := utils.ReadAll(ctx, strings.NewReader("x"), 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
