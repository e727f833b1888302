package params

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// Raw is untyped key/value input as produced by a query string or a decoded
// JSON object.
type Raw map[string]any

// ParseBool accepts a bool, the strings "true", "false", "1", "0", or the
// numbers 1 and 0. Anything else is a BooleanParseError.
func ParseBool(field string, v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, apperrors.BadBool(field, v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, err := cast.ToFloat64E(val)
		if err != nil {
			return false, apperrors.BadBool(field, v)
		}
		switch f {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
	}
	return false, apperrors.BadBool(field, v)
}

// ParseInt accepts integers, integral floats and decimal strings.
func ParseInt(field string, v any) (int, error) {
	switch val := v.(type) {
	case bool, nil:
		return 0, apperrors.Invalid(field, "expected an integer, got %v", v)
	case float64:
		if val != math.Trunc(val) {
			return 0, apperrors.Invalid(field, "expected an integer, got %v", v)
		}
	case float32:
		if float64(val) != math.Trunc(float64(val)) {
			return 0, apperrors.Invalid(field, "expected an integer, got %v", v)
		}
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, apperrors.Invalid(field, "expected an integer, got %q", val)
		}
		return n, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, apperrors.Invalid(field, "expected an integer, got %v", v)
	}
	return n, nil
}

// ParseString accepts strings only.
func ParseString(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", apperrors.Invalid(field, "expected a string, got %v", v)
	}
	return strings.TrimSpace(s), nil
}

// ParseSize parses "<width>x<height>" with decimal integers.
func ParseSize(field, s string) (int, int, error) {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, apperrors.BadSize(field, s)
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil {
		return 0, 0, apperrors.BadSize(field, s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, apperrors.Invalid(field, "width and height must be > 0, got %q", s)
	}
	return w, h, nil
}

// fieldReader pulls typed values out of a Raw, stopping at the first error.
type fieldReader struct {
	prefix string
	raw    Raw
	err    error
}

func (r *fieldReader) name(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + "." + key
}

func (r *fieldReader) boolean(key string, dst *bool) {
	if r.err != nil {
		return
	}
	if v, ok := r.raw[key]; ok && v != nil {
		*dst, r.err = ParseBool(r.name(key), v)
	}
}

func (r *fieldReader) integer(key string, dst *int) {
	if r.err != nil {
		return
	}
	if v, ok := r.raw[key]; ok && v != nil {
		*dst, r.err = ParseInt(r.name(key), v)
	}
}

func (r *fieldReader) str(key string, dst *string) {
	if r.err != nil {
		return
	}
	if v, ok := r.raw[key]; ok && v != nil {
		*dst, r.err = ParseString(r.name(key), v)
	}
}
