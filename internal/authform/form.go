// Package authform implements the login and register forms: field state,
// client-side validation and the submission lifecycle up to the hand-off of
// the local user record.
package authform

import (
	"slices"
	"strings"

	"finitefield.org/issuetracker-web/internal/authclient"
	"finitefield.org/issuetracker-web/internal/validate"
)

// Mode selects which fields the form shows and which endpoint it posts to.
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// ParseMode converts a route or form value into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLogin:
		return ModeLogin, true
	case ModeRegister:
		return ModeRegister, true
	}
	return "", false
}

// Flavor selects the backend contract used for login.
type Flavor string

const (
	// FlavorUnified posts to /auth/{mode} and distinguishes 400 from other failures.
	FlavorUnified Flavor = "unified"
	// FlavorLegacy posts logins to /login and reports every failure as wrong credentials.
	FlavorLegacy Flavor = "legacy"
)

// ParseFlavor converts a configuration value into a Flavor.
func ParseFlavor(s string) (Flavor, bool) {
	switch Flavor(strings.ToLower(strings.TrimSpace(s))) {
	case FlavorUnified, "":
		return FlavorUnified, true
	case FlavorLegacy:
		return FlavorLegacy, true
	}
	return "", false
}

// State tracks where a form is in its submission lifecycle.
type State string

const (
	StateEditing    State = "editing"
	StateValidating State = "validating"
	StateRejected   State = "rejected"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateRedirected State = "redirected"
	StateFailed     State = "failed"
)

// Catalog keys for user-visible messages.
const (
	MsgInvalidEmail      = "auth.message.invalid_email"
	MsgInvalidNames      = "auth.message.invalid_names"
	MsgWrongCredentials  = "auth.message.wrong_credentials"
	MsgEmailTaken        = "auth.message.email_taken"
	MsgUnexpected        = "auth.message.unexpected"
	MsgInFlight          = "auth.message.in_flight"
	MsgLoginSuccess      = "auth.message.login_success"
	MsgRegisterSuccess   = "auth.message.register_success"
	HintPasswordMismatch = "auth.hint.passwords_mismatch"
	HintPasswordWeak     = "auth.hint.password_weak"
)

// DashboardPath is where a successful submission navigates.
const DashboardPath = "/dashboard"

// LoginInput is the struct validated before a login submission.
type LoginInput struct {
	Email string `validate:"email_shape"`
}

// RegisterInput is the struct validated before a register submission.
// Email precedes the names so its failure is reported first.
type RegisterInput struct {
	Email     string `validate:"email_shape"`
	FirstName string `validate:"person_name"`
	LastName  string `validate:"person_name"`
}

var inputValidator = validate.New()

// Form holds the transient field state of one login or register form.
type Form struct {
	Mode       Mode
	Flavor     Flavor
	FirstName  string
	LastName   string
	Email      string
	RememberMe bool

	PasswordsMatch bool
	PasswordStrong bool

	Message string
	State   State

	password        string
	confirmPassword string
}

// New returns an empty form in the editing state. Registration always uses
// the unified contract.
func New(mode Mode, flavor Flavor) *Form {
	if mode != ModeRegister {
		mode = ModeLogin
	}
	if flavor != FlavorLegacy || mode == ModeRegister {
		flavor = FlavorUnified
	}
	return &Form{
		Mode:           mode,
		Flavor:         flavor,
		PasswordsMatch: true,
		PasswordStrong: true,
		State:          StateEditing,
	}
}

// SetPassword stores the password and recomputes strength and match. An
// empty password with an empty confirmation counts as valid on both.
func (f *Form) SetPassword(p string) {
	f.password = p
	f.PasswordStrong = validate.IsPasswordStrong(p)
	f.PasswordsMatch = p == f.confirmPassword
	if p == "" && f.confirmPassword == "" {
		f.PasswordsMatch = true
		f.PasswordStrong = true
	}
}

// SetConfirmPassword stores the confirmation and recomputes match only.
func (f *Form) SetConfirmPassword(p string) {
	f.confirmPassword = p
	f.PasswordsMatch = p == f.password
}

// Validate returns the message key of the first failing check, or "" when the
// form may be submitted. Password strength and match never block submission.
func (f *Form) Validate() string {
	var input any = LoginInput{Email: f.Email}
	if f.Mode == ModeRegister {
		input = RegisterInput{Email: f.Email, FirstName: f.FirstName, LastName: f.LastName}
	}
	failed := validate.FailedFields(inputValidator.Struct(input))
	switch {
	case len(failed) == 0:
		return ""
	case slices.Contains(failed, "Email"):
		return MsgInvalidEmail
	default:
		return MsgInvalidNames
	}
}

// Endpoint returns the API path this form posts to.
func (f *Form) Endpoint() string {
	if f.Flavor == FlavorLegacy {
		return authclient.LegacyLoginEndpoint
	}
	return authclient.EndpointFor(string(f.Mode))
}

// ShowMismatch reports whether the "passwords do not match" hint is visible.
func (f *Form) ShowMismatch() bool {
	return f.Mode == ModeRegister && !f.PasswordsMatch
}

// ShowWeak reports whether the password strength hint is visible.
func (f *Form) ShowWeak() bool {
	return f.Mode == ModeRegister && !f.PasswordStrong
}

// IsRegister is a template helper.
func (f *Form) IsRegister() bool {
	return f.Mode == ModeRegister
}

func (f *Form) credentials() authclient.Credentials {
	creds := authclient.Credentials{
		Email:    f.Email,
		Password: f.password,
	}
	if f.Mode == ModeRegister {
		creds.FirstName = f.FirstName
		creds.LastName = f.LastName
	}
	return creds
}

func (f *Form) clearSecrets() {
	f.password = ""
	f.confirmPassword = ""
}
