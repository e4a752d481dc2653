package binder

import (
	"github.com/go-playground/validator/v10"
	"github.com/tessellahq/tessella/pkg/urlutil"
)

// urlValidator ensures the value is an absolute HTTP(S) URL or the empty
// string. The empty string is allowed so this validator can be used on
// optional fields; combine with `required` when the value must be present.
func urlValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return urlutil.IsHTTPURL(value)
}
