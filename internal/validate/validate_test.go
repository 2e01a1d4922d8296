package validate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"finitefield.org/issuetracker-web/internal/validate"
)

func TestIsEmailValid(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"a@b.com":                  true,
		"first.last+tag@mail.co":   true,
		"user_1%x@sub.domain.info": true,
		"a@b.c":                    false,
		"no-at-sign.com":           false,
		"a@b":                      false,
		"a b@c.com":                false,
		"a@b.c0m":                  false,
		"иван@mail.com":            false,
		"":                         false,
		"a@b.com ":                 false,
	}
	for input, want := range cases {
		require.Equalf(t, want, validate.IsEmailValid(input), "input %q", input)
	}
}

func TestIsNameValid(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"Anna":          true,
		"Jean-Luc":      true,
		"Иван":          true,
		"Петров-Иванов": true,
		"Ann4":          false,
		"Anna Maria":    false,
		"":              false,
		"Ёлка":          false,
		"Zoë":           false,
		"李":             false,
	}
	for input, want := range cases {
		require.Equalf(t, want, validate.IsNameValid(input), "input %q", input)
	}
}

func TestIsPasswordStrong(t *testing.T) {
	t.Parallel()

	require.True(t, validate.IsPasswordStrong("abc1234"))
	require.False(t, validate.IsPasswordStrong("abcdefg"))
	require.False(t, validate.IsPasswordStrong("ab1"))
	require.False(t, validate.IsPasswordStrong("1234567"))
	require.False(t, validate.IsPasswordStrong("abc\n1234"))
	require.True(t, validate.IsPasswordStrong("пароль1a"))
	// Each emoji is two UTF-16 code units: 2 + 3*2 = 8.
	require.True(t, validate.IsPasswordStrong("a1😀😀😀"))
	require.False(t, validate.IsPasswordStrong("a1😀😀"))
	require.False(t, validate.IsPasswordStrong("a1ééé"))
}

type signup struct {
	Email     string `validate:"email_shape"`
	FirstName string `validate:"person_name"`
	Password  string `validate:"strong_password"`
}

func TestNewRegistersTags(t *testing.T) {
	t.Parallel()

	v := validate.New()

	require.NoError(t, v.Struct(signup{Email: "a@b.com", FirstName: "Anna", Password: "abc1234"}))

	err := v.Struct(signup{Email: "bad", FirstName: "Anna", Password: "short"})
	require.Error(t, err)
	require.Equal(t, []string{"Email", "Password"}, validate.FailedFields(err))
}
