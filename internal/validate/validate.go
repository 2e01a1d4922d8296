package validate

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the shortest password accepted as strong.
const MinPasswordLength = 7

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	namePattern   = regexp.MustCompile(`^[а-яА-Яa-zA-Z-]+$`)
	letterPattern = regexp.MustCompile(`[a-zA-Z]`)
	digitPattern  = regexp.MustCompile(`[0-9]`)
)

// IsEmailValid reports whether s has the localpart@domain.tld shape.
func IsEmailValid(s string) bool {
	return emailPattern.MatchString(s)
}

// IsNameValid reports whether s consists only of Cyrillic or Latin letters and hyphens.
func IsNameValid(s string) bool {
	return namePattern.MatchString(s)
}

// IsPasswordStrong reports whether s has at least one ASCII letter, one ASCII digit
// and MinPasswordLength characters on a single line. Length is measured in UTF-16
// code units, so a character outside the BMP counts twice, as in the browser.
func IsPasswordStrong(s string) bool {
	if strings.ContainsAny(s, "\n\r\u2028\u2029") {
		return false
	}
	if utf16Len(s) < MinPasswordLength {
		return false
	}
	return letterPattern.MatchString(s) && digitPattern.MatchString(s)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Tag names registered on the struct validator.
const (
	TagEmail    = "email_shape"
	TagName     = "person_name"
	TagPassword = "strong_password"
)

// New returns a validator with the form tags registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, TagEmail, IsEmailValid)
	mustRegister(v, TagName, IsNameValid)
	mustRegister(v, TagPassword, IsPasswordStrong)
	return v
}

func mustRegister(v *validator.Validate, tag string, fn func(string) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

// FailedFields returns the struct field names that failed validation, in declaration order.
func FailedFields(err error) []string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, fe.StructField())
	}
	return out
}
