// Package params turns untyped key/value input into immutable, fully
// validated resize and format specs.
package params

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

var (
	chromaRe = regexp.MustCompile(`^\d:\d:\d$`)
	rgbRe    = regexp.MustCompile(`^rgb\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*\)$`)
	sizeRe   = regexp.MustCompile(`^(\d+)x(\d+)$`)
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns the shared validator with the custom rules
// registered and field names reported by their json tag.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("chroma", func(fl validator.FieldLevel) bool {
			return chromaRe.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("rgbcolor", func(fl validator.FieldLevel) bool {
			_, ok := parseRGB(fl.Field().String())
			return ok
		})
		validate = v
	})
	return validate
}

// check runs struct validation and converts the first failure into a
// ParameterError naming the field.
func check(prefix string, s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Invalid(prefix, "%v", err)
	}
	fe := verrs[0]
	field := fe.Field()
	if prefix != "" {
		field = prefix + "." + field
	}
	return apperrors.Invalid(field, "%s", describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be >= %s, got %v", fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("must be <= %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "chroma":
		return fmt.Sprintf("must match N:N:N, got %q", fe.Value())
	case "rgbcolor":
		return fmt.Sprintf("must match rgb(r,g,b) with channels 0-255, got %q", fe.Value())
	case "required":
		return "is required"
	}
	return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
}

func parseRGB(s string) ([3]uint8, bool) {
	var out [3]uint8
	m := rgbRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return out, false
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(m[i+1])
		if err != nil || n > 255 {
			return out, false
		}
		out[i] = uint8(n)
	}
	return out, true
}
