package core_test

import (
	"testing"

	"github.com/frankii91/sharp-web-resizing-images/core"
)

func TestFlattenMetadata_RequestDocument(t *testing.T) {
	req := &core.Request{
		Source:      core.Source{Kind: core.SourceLocal, Path: "catalog/red.jpg"},
		Destination: core.BackendS3,
		Formats: []core.FormatEntry{
			{Name: core.FormatWebP, Spec: &core.WebpSpec{Quality: 70, Preset: "photo", Effort: 4}},
			{Name: core.FormatJPG, Spec: core.JpgSpec{Quality: 80, ChromaSubsampling: "4:2:0"}},
		},
	}
	meta := core.FlattenMetadata(core.RequestDocument(req))

	tests := []struct {
		key, want string
	}{
		{"loaderTyp", "local"},
		{"imagePath", "catalog/red.jpg"},
		{"outputStorage", "s3"},
		{"outputFormat--webp--quality", "70"},
		{"outputFormat--webp--preset", "photo"},
		{"outputFormat--webp--lossless", "false"},
		{"outputFormat--jpg--quality", "80"},
		{"outputFormat--jpg--chromaSubsampling", "4:2:0"},
		{"outputResize", "[]"},
	}
	for _, tc := range tests {
		if got := meta[tc.key]; got != tc.want {
			t.Errorf("%s = %q, want %q", tc.key, got, tc.want)
		}
	}
	for _, blob := range []string{"outputFormat", "outputFormat--webp", "outputFormat--jpg"} {
		if v, ok := meta[blob]; ok {
			t.Errorf("%s kept as one value: %q", blob, v)
		}
	}
}

func TestFlattenMetadata_Nested(t *testing.T) {
	meta := core.FlattenMetadata(map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1.5}, "d": nil},
		"e": true,
	})
	want := map[string]string{"a--b--c": "1.5", "a--d": "null", "e": "true"}
	if len(meta) != len(want) {
		t.Fatalf("meta = %v", meta)
	}
	for k, v := range want {
		if meta[k] != v {
			t.Errorf("%s = %q, want %q", k, meta[k], v)
		}
	}
}
