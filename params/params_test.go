package params

import (
	"errors"
	"testing"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

func TestParseBool(t *testing.T) {
	cases := []struct {
		in      any
		want    bool
		wantErr bool
	}{
		{true, true, false},
		{false, false, false},
		{"true", true, false},
		{"false", false, false},
		{"1", true, false},
		{"0", false, false},
		{float64(1), true, false},
		{0, false, false},
		{"yes", false, true},
		{"", false, true},
		{float64(2), false, true},
		{nil, false, true},
		{[]any{true}, false, true},
	}
	for _, tc := range cases {
		got, err := ParseBool("flag", tc.in)
		if tc.wantErr {
			if !errors.Is(err, apperrors.ErrBooleanParse) {
				t.Errorf("ParseBool(%#v) err = %v, want BooleanParseError", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseBool(%#v) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	w, h, err := ParseSize("outputResize", "1000x200")
	if err != nil || w != 1000 || h != 200 {
		t.Fatalf("ParseSize = %d, %d, %v", w, h, err)
	}
	for _, bad := range []string{"1000", "1000X200", "x200", "10.5x20", "-1x20", " 10x20", "10x20px"} {
		if _, _, err := ParseSize("outputResize", bad); !errors.Is(err, apperrors.ErrInvalidResizeFormat) {
			t.Errorf("ParseSize(%q) err = %v, want InvalidResizeFormat", bad, err)
		}
	}
	if _, _, err := ParseSize("outputResize", "0x20"); !errors.Is(err, apperrors.ErrInvalidParameter) {
		t.Errorf("zero width err = %v, want InvalidParameter", err)
	}
}

func TestFormatRanges(t *testing.T) {
	cases := []struct {
		format core.Format
		raw    Raw
		field  string
	}{
		{core.FormatAVIF, Raw{"quality": 0}, "avif.quality"},
		{core.FormatAVIF, Raw{"quality": 101}, "avif.quality"},
		{core.FormatAVIF, Raw{"effort": 10}, "avif.effort"},
		{core.FormatAVIF, Raw{"chromaSubsampling": "444"}, "avif.chromaSubsampling"},
		{core.FormatWebP, Raw{"effort": float64(7)}, "webp.effort"},
		{core.FormatWebP, Raw{"alphaQuality": -1}, "webp.alphaQuality"},
		{core.FormatWebP, Raw{"preset": "poster"}, "webp.preset"},
		{core.FormatWebP, Raw{"loop": 70000}, "webp.loop"},
		{core.FormatJPG, Raw{"quantisationTable": 9}, "jpg.quantisationTable"},
		{core.FormatJPG, Raw{"quality": "high"}, "jpg.quality"},
		{core.FormatJPG, Raw{"quality": 80.5}, "jpg.quality"},
	}
	for _, tc := range cases {
		spec, err := NewFormat(tc.format, tc.raw)
		if spec != nil {
			t.Errorf("%v: got a spec alongside an error", tc.raw)
		}
		var pe *apperrors.ParameterError
		if !errors.As(err, &pe) || !errors.Is(err, apperrors.ErrInvalidParameter) {
			t.Errorf("%v: err = %v, want InvalidParameter", tc.raw, err)
			continue
		}
		if pe.Field != tc.field {
			t.Errorf("%v: field = %q, want %q", tc.raw, pe.Field, tc.field)
		}
	}
}

func TestFormatBooleanRejected(t *testing.T) {
	_, err := NewWebp(Raw{"lossless": "maybe"})
	if !errors.Is(err, apperrors.ErrBooleanParse) {
		t.Fatalf("err = %v, want BooleanParseError", err)
	}
}

func TestFormatDefaultsAndOverrides(t *testing.T) {
	avif, err := NewAvif(nil)
	if err != nil {
		t.Fatal(err)
	}
	if *avif != DefaultAvif() {
		t.Errorf("nil input should give defaults, got %+v", avif)
	}

	jpg, err := NewJpg(Raw{"quality": "90", "progressive": "1", "chromaSubsampling": "4:4:4"})
	if err != nil {
		t.Fatal(err)
	}
	if jpg.Quality != 90 || !jpg.Progressive || jpg.ChromaSubsampling != "4:4:4" {
		t.Errorf("unexpected jpg spec %+v", jpg)
	}
}

func TestNewResize(t *testing.T) {
	rs, err := NewResize("r", Raw{
		"outputResize": "1000x200",
		"fit":          "contain",
		"position":     "right top",
		"background":   "rgb(255, 10, 0)",
		"kernel":       "mitchell",
		"addName":      "wide",
	})
	if err != nil {
		t.Fatalf("NewResize: %v", err)
	}
	want := core.ResizeSpec{
		Width: 1000, Height: 200, Fit: core.FitContain, Position: core.PositionRightTop,
		Background: core.RGB{R: 255, G: 10}, Kernel: core.KernelMitchell,
		FastShrinkOnLoad: true, Name: "wide",
	}
	if *rs != want {
		t.Errorf("got %+v\nwant %+v", *rs, want)
	}
	if rs.Suffix() != "-wide" {
		t.Errorf("suffix = %q", rs.Suffix())
	}

	bad := []Raw{
		{"outputResize": "1000x200", "background": "rgb(256,0,0)"},
		{"outputResize": "1000x200", "background": "#fff"},
		{"outputResize": "1000x200", "fit": "stretch"},
		{"outputResize": "1000x200", "position": "middle"},
		{"outputResize": "1000x200", "kernel": "bilinear"},
		{"outputResize": "1000x200", "addName": "../x"},
		{"width": 0, "height": 10},
	}
	for _, raw := range bad {
		if _, err := NewResize("r", raw); !errors.Is(err, apperrors.ErrInvalidParameter) {
			t.Errorf("%v: err = %v, want InvalidParameter", raw, err)
		}
	}
}

func multiBody() Raw {
	return Raw{
		"loaderTyp":     "local",
		"imagePath":     "catalog/shoes/red.png",
		"outputStorage": "local",
		"outputResize": []any{
			map[string]any{"outputResize": "1000x200", "addName": "1000x200"},
			map[string]any{"outputResize": "1500x400", "addName": "1500x400"},
		},
		"outputFormat": map[string]any{
			"jpg":  map[string]any{"quality": float64(70)},
			"avif": map[string]any{},
			"webp": nil,
		},
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(multiBody())
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.Dir != "catalog/shoes" || req.BaseName != "red" {
		t.Errorf("dir/base = %q/%q", req.Dir, req.BaseName)
	}
	if len(req.Resizes) != 2 {
		t.Fatalf("resizes = %d", len(req.Resizes))
	}
	var order []core.Format
	for _, f := range req.Formats {
		order = append(order, f.Name)
	}
	if len(order) != 3 || order[0] != core.FormatAVIF || order[1] != core.FormatWebP || order[2] != core.FormatJPG {
		t.Errorf("format order = %v", order)
	}
	if spec, _ := req.Spec(core.FormatJPG); spec.(core.JpgSpec).Quality != 70 {
		t.Errorf("jpg quality not applied: %+v", spec)
	}
}

func TestNewRequestRejects(t *testing.T) {
	cases := map[string]func(Raw){
		"no formats":      func(b Raw) { b["outputFormat"] = map[string]any{} },
		"unknown format":  func(b Raw) { b["outputFormat"] = map[string]any{"png": nil} },
		"unknown storage": func(b Raw) { b["outputStorage"] = "dropbox" },
		"unknown loader":  func(b Raw) { b["loaderTyp"] = "s3" },
		"missing path":    func(b Raw) { delete(b, "imagePath") },
		"duplicate suffix": func(b Raw) {
			b["outputResize"] = []any{
				map[string]any{"outputResize": "10x10"},
				map[string]any{"outputResize": "20x20"},
			}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			b := multiBody()
			mutate(b)
			req, err := NewRequest(b)
			if req != nil || !errors.Is(err, apperrors.ErrInvalidParameter) {
				t.Fatalf("req = %v, err = %v; want InvalidParameter", req, err)
			}
		})
	}
}

func TestNewRequestLegacyStorageName(t *testing.T) {
	b := multiBody()
	b["outputStorage"] = "cr2"
	req, err := NewRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if req.Destination != core.BackendS3 {
		t.Errorf("destination = %q", req.Destination)
	}
}

func TestNewSingleRequest(t *testing.T) {
	req, err := NewSingleRequest(Raw{
		"loaderTyp":     "url",
		"imagePath":     "https://cdn.example.com/img/2024/photo.large.jpeg?x=1",
		"outputStorage": "stream",
		"outputResize":  "300x300",
		"outputFormat":  "webp",
		"quality":       "65",
		"fit":           "inside",
	})
	if err != nil {
		t.Fatalf("NewSingleRequest: %v", err)
	}
	if !req.Single || req.Destination != core.BackendStream {
		t.Errorf("unexpected request %+v", req)
	}
	if req.Dir != "img/2024" || req.BaseName != "photo.large" {
		t.Errorf("dir/base = %q/%q", req.Dir, req.BaseName)
	}
	if len(req.Resizes) != 1 || req.Resizes[0].Fit != core.FitInside {
		t.Errorf("resizes = %+v", req.Resizes)
	}
	if len(req.Formats) != 1 || req.Formats[0].Spec.(core.WebpSpec).Quality != 65 {
		t.Errorf("formats = %+v", req.Formats)
	}

	def, err := NewSingleRequest(Raw{"imagePath": "a.png"})
	if err != nil {
		t.Fatal(err)
	}
	if len(def.Resizes) != 0 || def.Formats[0].Name != core.FormatJPG || def.Destination != core.BackendLocal {
		t.Errorf("defaults not applied: %+v", def)
	}
}

func TestSplitLocatorInvalidURL(t *testing.T) {
	for _, loc := range []string{"ftp://host/a.jpg", "not a url", "https:///a.jpg"} {
		if _, _, err := SplitLocator(core.SourceURL, loc); !errors.Is(err, apperrors.ErrInvalidSourceURL) {
			t.Errorf("%q: err = %v, want InvalidSourceURL", loc, err)
		}
	}
}
