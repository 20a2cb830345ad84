package dto

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const maxAccountIDLen = 100

// Payment addresses look like "alice@upi" or "acc_01.main".
var accountIDRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.@]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("account_id", validateAccountID)
	}
}

// validateAccountID accepts empty values; use "required" to enforce presence.
func validateAccountID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || ValidAccountID(s)
}

// ValidAccountID reports whether s is a well-formed account identifier.
func ValidAccountID(s string) bool {
	return len(s) <= maxAccountIDLen && accountIDRe.MatchString(s)
}

// SanitizeStruct trims surrounding whitespace from every exported string
// field (including *string) of a struct pointer. Content is stored as sent;
// escaping belongs to whatever renders it.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return strings.TrimSpace(s)
}
