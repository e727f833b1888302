package params

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// NewRequest builds a multi-variant request from a decoded JSON body:
//
//	{"loaderTyp": "local", "imagePath": "a/b.jpg", "outputStorage": "local",
//	 "outputResize": [{"outputResize": "1000x200", "addName": "1000x200"}],
//	 "outputFormat": {"avif": {...}, "jpg": {}}}
//
// Validation stops at the first invalid field; nothing is returned with it.
func NewRequest(body Raw) (*core.Request, error) {
	req, err := baseRequest(body)
	if err != nil {
		return nil, err
	}

	if v, ok := body["outputResize"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, apperrors.Invalid("outputResize", "expected a list of resize objects")
		}
		seen := make(map[string]int, len(list))
		for i, item := range list {
			prefix := fmt.Sprintf("outputResize[%d]", i)
			obj, ok := asRaw(item)
			if !ok {
				return nil, apperrors.Invalid(prefix, "expected an object")
			}
			rs, err := NewResize(prefix, obj)
			if err != nil {
				return nil, err
			}
			if j, dup := seen[rs.Suffix()]; dup {
				return nil, apperrors.Invalid(prefix+".addName",
					"suffix %q already used by outputResize[%d]", rs.Name, j)
			}
			seen[rs.Suffix()] = i
			req.Resizes = append(req.Resizes, *rs)
		}
	}

	formats, ok := asRaw(body["outputFormat"])
	if !ok || len(formats) == 0 {
		return nil, apperrors.Invalid("outputFormat", "at least one of avif, webp, jpg is required")
	}
	for key := range formats {
		if !core.Format(key).Valid() {
			return nil, apperrors.Invalid("outputFormat", "unknown format %q, expected avif, webp or jpg", key)
		}
	}
	for _, name := range core.FormatOrder {
		v, present := formats[string(name)]
		if !present {
			continue
		}
		opts, ok := asRaw(v)
		if v != nil && !ok {
			return nil, apperrors.Invalid("outputFormat."+string(name), "expected an object")
		}
		spec, err := NewFormat(name, opts)
		if err != nil {
			return nil, err
		}
		req.Formats = append(req.Formats, core.FormatEntry{Name: name, Spec: spec})
	}
	return req, nil
}

// NewSingleRequest builds a single-variant request from a flat map such as
// a query string: at most one resize (outputResize=<w>x<h> plus its
// options) and one format (outputFormat, default jpg). Format options are
// read from the same map.
func NewSingleRequest(q Raw) (*core.Request, error) {
	req, err := baseRequest(q)
	if err != nil {
		return nil, err
	}
	req.Single = true

	if v, ok := q["outputResize"]; ok && v != nil && v != "" {
		rs, err := NewResize("", q)
		if err != nil {
			return nil, err
		}
		req.Resizes = []core.ResizeSpec{*rs}
	}

	name := core.FormatJPG
	if v, ok := q["outputFormat"]; ok && v != nil && v != "" {
		s, err := ParseString("outputFormat", v)
		if err != nil {
			return nil, err
		}
		if s == "jpeg" {
			s = "jpg"
		}
		name = core.Format(strings.ToLower(s))
		if !name.Valid() {
			return nil, apperrors.Invalid("outputFormat", "unknown format %q, expected avif, webp or jpg", s)
		}
	}
	opts := make(Raw)
	for k, v := range q {
		if k != "outputResize" && k != "outputFormat" {
			opts[k] = v
		}
	}
	spec, err := NewFormat(name, opts)
	if err != nil {
		return nil, err
	}
	req.Formats = []core.FormatEntry{{Name: name, Spec: spec}}
	return req, nil
}

func baseRequest(raw Raw) (*core.Request, error) {
	if raw == nil {
		return nil, apperrors.Invalid("body", "is required")
	}
	kind := core.SourceLocal
	if v, ok := raw["loaderTyp"]; ok && v != nil {
		s, err := ParseString("loaderTyp", v)
		if err != nil {
			return nil, err
		}
		switch core.SourceKind(s) {
		case core.SourceLocal, core.SourceMount, core.SourceURL:
			kind = core.SourceKind(s)
		default:
			return nil, apperrors.Invalid("loaderTyp", "must be one of local, mount, url, got %q", s)
		}
	}

	imagePath, err := ParseString("imagePath", raw["imagePath"])
	if err != nil || imagePath == "" {
		return nil, apperrors.Invalid("imagePath", "is required")
	}

	dest := core.BackendLocal
	if v, ok := raw["outputStorage"]; ok && v != nil && v != "" {
		s, err := ParseString("outputStorage", v)
		if err != nil {
			return nil, err
		}
		k, ok := core.ParseBackendKind(s)
		if !ok {
			return nil, apperrors.Invalid("outputStorage", "must be one of local, mount, cr2, ftp, stream, got %q", s)
		}
		dest = k
	}

	dir, base, err := SplitLocator(kind, imagePath)
	if err != nil {
		return nil, err
	}
	return &core.Request{
		Source:      core.Source{Kind: kind, Path: imagePath},
		Destination: dest,
		Dir:         dir,
		BaseName:    base,
	}, nil
}

// SplitLocator derives the destination directory and the filename without
// extension from a source locator. The directory never has a leading or
// trailing slash.
func SplitLocator(kind core.SourceKind, locator string) (dir, base string, err error) {
	p := locator
	if kind == core.SourceURL {
		u, perr := url.Parse(locator)
		if perr != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return "", "", apperrors.New(apperrors.CategorySource, "params.locator",
				fmt.Errorf("%w: %q", apperrors.ErrInvalidSourceURL, locator))
		}
		p = u.Path
	}
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	file := path.Base(p)
	if file == "/" || file == "." {
		return "", "", apperrors.Invalid("imagePath", "does not name a file: %q", locator)
	}
	base = strings.TrimSuffix(file, path.Ext(file))
	if base == "" {
		return "", "", apperrors.Invalid("imagePath", "does not name a file: %q", locator)
	}
	dir = strings.Trim(path.Dir(p), "/")
	return dir, base, nil
}

func asRaw(v any) (Raw, bool) {
	switch m := v.(type) {
	case Raw:
		return m, true
	case map[string]any:
		return Raw(m), true
	}
	return nil, false
}
