package core

import (
	"strconv"

	"github.com/bytedance/sonic"
)

// MetaSeparator joins nested keys in flattened metadata.
const MetaSeparator = "--"

// FlattenMetadata turns a nested document into string pairs suitable for
// object metadata headers. Nested maps are joined with "--"; any value that
// is not a string is JSON-encoded.
func FlattenMetadata(doc map[string]any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", doc)
	return out
}

func flattenInto(out map[string]string, prefix string, doc map[string]any) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + MetaSeparator + k
		}
		switch val := v.(type) {
		case map[string]any:
			flattenInto(out, key, val)
		case string:
			out[key] = val
		case nil:
			out[key] = "null"
		case bool:
			out[key] = strconv.FormatBool(val)
		default:
			b, err := sonic.Marshal(val)
			if err != nil {
				continue
			}
			out[key] = string(b)
		}
	}
}

// specDocument decodes a format spec into a plain map so its fields flatten
// as individual keys.
func specDocument(spec FormatSpec) any {
	b, err := sonic.Marshal(spec)
	if err != nil {
		return spec
	}
	var doc map[string]any
	if err := sonic.Unmarshal(b, &doc); err != nil || doc == nil {
		return spec
	}
	return doc
}

// RequestDocument is the JSON-shaped view of a request used for the
// metatags artifact and for object metadata.
func RequestDocument(req *Request) map[string]any {
	resizes := make([]any, 0, len(req.Resizes))
	for _, r := range req.Resizes {
		resizes = append(resizes, map[string]any{
			"outputResize":       r.Size(),
			"fit":                string(r.Fit),
			"position":           string(r.Position),
			"background":         r.Background.String(),
			"kernel":             string(r.Kernel),
			"withoutEnlargement": r.WithoutEnlargement,
			"withoutReduction":   r.WithoutReduction,
			"fastShrinkOnLoad":   r.FastShrinkOnLoad,
			"addName":            r.Name,
		})
	}
	formats := make(map[string]any, len(req.Formats))
	for _, f := range req.Formats {
		formats[string(f.Name)] = specDocument(f.Spec)
	}
	return map[string]any{
		"loaderTyp":     string(req.Source.Kind),
		"imagePath":     req.Source.Path,
		"outputStorage": string(req.Destination),
		"outputResize":  resizes,
		"outputFormat":  formats,
	}
}
