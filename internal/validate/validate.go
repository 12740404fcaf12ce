package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/hpungsan/showcase/internal/errors"
)

// Field limits.
const (
	MaxAuthor      = 100
	MaxTitle       = 200
	MaxDescription = 500
	MaxFolderName  = 100
	MaxFolderID    = 50
	MinDimension   = 1
	MaxDimension   = 10000
)

var (
	folderIDPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	scriptBlock     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
)

// FolderID reports whether id matches ^[a-z0-9-]+$ and is 1-50 characters.
func FolderID(id string) bool {
	return len(id) >= 1 && len(id) <= MaxFolderID && folderIDPattern.MatchString(id)
}

// FolderName reports whether name is non-blank, at most 100 characters and free of control characters.
func FolderName(name string) bool {
	return TextField(name, MaxFolderName, false)
}

// TextField reports whether s fits max characters and has no control characters.
// Blank values are accepted only when allowEmpty is set.
func TextField(s string, max int, allowEmpty bool) bool {
	if strings.TrimSpace(s) == "" {
		return allowEmpty && !HasControl(s)
	}
	return utf8.RuneCountInString(s) <= max && !HasControl(s)
}

// HasControl reports whether s contains 0x00-0x1F or 0x7F.
func HasControl(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

// HTTPURL reports whether s is an absolute http or https URL.
func HTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// Dimension reports whether v is a valid width or height.
func Dimension(v int) bool {
	return v >= MinDimension && v <= MaxDimension
}

// DimensionNumber parses a JSON number as a dimension. It must be integral and in range.
func DimensionNumber(n json.Number) (int, bool) {
	if n == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return int(i), i >= MinDimension && i <= MaxDimension
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), f >= MinDimension && f <= MaxDimension
}

// Sanitize strips <script>...</script> blocks and NUL bytes.
func Sanitize(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}

// Validator wraps go-playground/validator with the showcase field rules registered.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator that reports fields by their JSON names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerRules(v)

	return &Validator{validate: v}
}

func registerRules(v *validator.Validate) {
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return !HasControl(fl.Field().String())
	})
	_ = v.RegisterValidation("folderid", func(fl validator.FieldLevel) bool {
		return FolderID(fl.Field().String())
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return HTTPURL(fl.Field().String())
	})
}

// Struct validates s and returns a VALIDATION_FAILED error for the first failing field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return errors.NewInvalidRequest(err.Error())
	}
	fe := validationErrors[0]
	return errors.NewValidationFailed(fe.Field(), message(fe.Field(), fe.Tag(), fe.Param()))
}

// message builds the human-readable text for a failed rule.
func message(field, tag, param string) string {
	switch tag {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "gte", "lte":
		return fmt.Sprintf("%s must be between %d and %d", field, MinDimension, MaxDimension)
	case "nocontrol":
		return fmt.Sprintf("%s must not contain control characters", field)
	case "folderid":
		return fmt.Sprintf("%s must match [a-z0-9-] and be 1-%d characters", field, MaxFolderID)
	case "httpurl":
		return fmt.Sprintf("%s must be an absolute http or https URL", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, tag)
	}
}

// DimensionError is the validation failure for a bad width or height.
func DimensionError(field string) error {
	return errors.NewValidationFailed(field, fmt.Sprintf("%s must be an integer between %d and %d", field, MinDimension, MaxDimension))
}
