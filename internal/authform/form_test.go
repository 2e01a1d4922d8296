package authform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStartsEditingWithHintsHidden(t *testing.T) {
	t.Parallel()

	f := New(ModeRegister, FlavorUnified)
	require.Equal(t, StateEditing, f.State)
	require.True(t, f.PasswordsMatch)
	require.True(t, f.PasswordStrong)
	require.False(t, f.ShowMismatch())
	require.False(t, f.ShowWeak())
}

func TestNewNormalisesModeAndFlavor(t *testing.T) {
	t.Parallel()

	require.Equal(t, FlavorUnified, New(ModeRegister, FlavorLegacy).Flavor)
	require.Equal(t, FlavorLegacy, New(ModeLogin, FlavorLegacy).Flavor)
	require.Equal(t, ModeLogin, New(Mode("bogus"), FlavorUnified).Mode)
}

func TestSetPasswordRecomputesStrengthAndMatch(t *testing.T) {
	t.Parallel()

	f := New(ModeRegister, FlavorUnified)

	f.SetPassword("abc")
	require.False(t, f.PasswordStrong)
	require.False(t, f.PasswordsMatch)

	f.SetConfirmPassword("abc1234")
	require.False(t, f.PasswordsMatch)
	require.False(t, f.PasswordStrong, "confirmation must not touch strength")

	f.SetPassword("abc1234")
	require.True(t, f.PasswordStrong)
	require.True(t, f.PasswordsMatch)

	f.SetConfirmPassword("")
	require.False(t, f.PasswordsMatch)

	f.SetPassword("")
	require.True(t, f.PasswordsMatch, "both empty counts as matching")
	require.True(t, f.PasswordStrong, "both empty counts as strong")
}

func TestHintsOnlyShowInRegisterMode(t *testing.T) {
	t.Parallel()

	login := New(ModeLogin, FlavorUnified)
	login.SetPassword("x")
	require.False(t, login.ShowMismatch())
	require.False(t, login.ShowWeak())

	register := New(ModeRegister, FlavorUnified)
	register.SetPassword("x")
	require.True(t, register.ShowMismatch())
	require.True(t, register.ShowWeak())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		mode  Mode
		first string
		last  string
		email string
		want  string
	}{
		{name: "login valid", mode: ModeLogin, email: "a@b.com"},
		{name: "login ignores names", mode: ModeLogin, first: "1", email: "a@b.com"},
		{name: "login bad email", mode: ModeLogin, email: "a@b", want: MsgInvalidEmail},
		{name: "register valid", mode: ModeRegister, first: "Иван", last: "Smith-Jones", email: "a@b.com"},
		{name: "register bad first name", mode: ModeRegister, first: "J0hn", last: "Doe", email: "a@b.com", want: MsgInvalidNames},
		{name: "register empty last name", mode: ModeRegister, first: "John", email: "a@b.com", want: MsgInvalidNames},
		{name: "register email checked first", mode: ModeRegister, first: "J0hn", last: "Doe", email: "nope", want: MsgInvalidEmail},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := New(tc.mode, FlavorUnified)
			f.FirstName = tc.first
			f.LastName = tc.last
			f.Email = tc.email
			require.Equal(t, tc.want, f.Validate())
		})
	}
}

func TestValidateIgnoresPasswordState(t *testing.T) {
	t.Parallel()

	f := New(ModeRegister, FlavorUnified)
	f.FirstName, f.LastName, f.Email = "Ana", "Ivanova", "ana@example.bg"
	f.SetPassword("weak")
	f.SetConfirmPassword("different")
	require.Empty(t, f.Validate())
	require.True(t, f.ShowMismatch())
}

func TestEndpoint(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/auth/login", New(ModeLogin, FlavorUnified).Endpoint())
	require.Equal(t, "/auth/register", New(ModeRegister, FlavorUnified).Endpoint())
	require.Equal(t, "/login", New(ModeLogin, FlavorLegacy).Endpoint())
}

func TestCredentialsOmitNamesOnLogin(t *testing.T) {
	t.Parallel()

	f := New(ModeLogin, FlavorUnified)
	f.FirstName = "Ignored"
	f.Email = "a@b.com"
	f.SetPassword("abc1234")

	creds := f.credentials()
	require.Empty(t, creds.FirstName)
	require.Equal(t, "abc1234", creds.Password)

	f.clearSecrets()
	require.Empty(t, f.credentials().Password)
}

func TestParseModeAndFlavor(t *testing.T) {
	t.Parallel()

	mode, ok := ParseMode(" Register ")
	require.True(t, ok)
	require.Equal(t, ModeRegister, mode)
	_, ok = ParseMode("logout")
	require.False(t, ok)

	flavor, ok := ParseFlavor("")
	require.True(t, ok)
	require.Equal(t, FlavorUnified, flavor)
	flavor, ok = ParseFlavor("LEGACY")
	require.True(t, ok)
	require.Equal(t, FlavorLegacy, flavor)
	_, ok = ParseFlavor("graphql")
	require.False(t, ok)
}
