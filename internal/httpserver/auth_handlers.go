package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finitefield.org/issuetracker-web/internal/authform"
	custommw "finitefield.org/issuetracker-web/internal/httpserver/middleware"
	appsession "finitefield.org/issuetracker-web/internal/session"
	"finitefield.org/issuetracker-web/internal/templates/auth"
	"finitefield.org/issuetracker-web/internal/validate"
)

const (
	fieldFirstName       = "first-name"
	fieldLastName        = "last-name"
	fieldEmail           = "email"
	fieldPassword        = "password"
	fieldConfirmPassword = "confirm-password"
	fieldRemember        = "remember"
)

var errNoSession = errors.New("httpserver: request has no session")

type authHandlers struct {
	controller *authform.Controller
	flavor     authform.Flavor
	pages      pageBuilder
	now        func() time.Time
}

func newAuthHandlers(controller *authform.Controller, flavor authform.Flavor, pages pageBuilder) *authHandlers {
	if controller == nil {
		panic("auth: controller is required")
	}
	return &authHandlers{
		controller: controller,
		flavor:     flavor,
		pages:      pages,
		now:        time.Now,
	}
}

func (h *authHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.showForm(w, r, authform.ModeLogin)
}

func (h *authHandlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.showForm(w, r, authform.ModeRegister)
}

func (h *authHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, authform.New(authform.ModeLogin, h.flavor))
}

func (h *authHandlers) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, authform.New(authform.ModeRegister, authform.FlavorUnified))
}

// PasswordHints re-evaluates the password hints for the field that changed.
func (h *authHandlers) PasswordHints(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := authform.New(authform.ModeRegister, authform.FlavorUnified)
	password := r.PostFormValue(fieldPassword)
	confirm := r.PostFormValue(fieldConfirmPassword)

	// Editing the confirmation only re-checks the match, mirroring the full form.
	if custommw.HTMXInfoFromContext(r.Context()).TriggerName == fieldConfirmPassword {
		form.SetPassword(password)
		form.SetConfirmPassword(confirm)
	} else {
		form.SetConfirmPassword(confirm)
		form.SetPassword(password)
	}

	data := h.pageData(r, form, "")
	render(w, r, auth.PasswordHints(data), http.StatusOK)
}

func (h *authHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.Destroy()
	}
	custommw.Redirect(w, r, loginURLWithParams(map[string]string{"status": "logged_out"}))
}

func (h *authHandlers) showForm(w http.ResponseWriter, r *http.Request, mode authform.Mode) {
	if _, ok := custommw.CurrentUser(r); ok && !forceLogin(r) {
		custommw.Redirect(w, r, authform.DashboardPath)
		return
	}

	form := authform.New(mode, h.flavor)
	if mode == authform.ModeLogin {
		if sess, ok := custommw.SessionFromContext(r.Context()); ok {
			form.RememberMe = sess.RememberMe()
		}
		form.Email = strings.TrimSpace(r.URL.Query().Get(fieldEmail))
	}
	data := h.pageData(r, form, messageForQuery(r.URL.Query()))
	render(w, r, auth.Page(data), http.StatusOK)
}

func (h *authHandlers) submit(w http.ResponseWriter, r *http.Request, form *authform.Form) {
	if err := r.ParseForm(); err != nil {
		form.Message = authform.MsgUnexpected
		render(w, r, auth.Page(h.pageData(r, form, "")), http.StatusBadRequest)
		return
	}
	readForm(form, r.PostForm)

	sess, _ := custommw.SessionFromContext(r.Context())
	key := ""
	if sess != nil {
		key = sess.ID()
	}

	onSuccess := func(_ context.Context, rec authform.Record, remember bool) error {
		if sess == nil {
			return errNoSession
		}
		sess.SetRememberMe(remember)
		sess.Renew(h.now())
		sess.SetUser(&appsession.User{
			FirstName: rec.FirstName,
			LastName:  rec.LastName,
			Email:     rec.Email,
		})
		if form.IsRegister() {
			sess.SetFlash(authform.MsgRegisterSuccess)
		} else {
			sess.SetFlash(authform.MsgLoginSuccess)
		}
		return nil
	}
	nav := authform.NavigatorFunc(func(_ context.Context, target string) {
		custommw.Redirect(w, r, target)
	})

	out := h.controller.Submit(r.Context(), key, form, onSuccess, nav)
	if out.OK() {
		return
	}
	render(w, r, auth.Page(h.pageData(r, form, "")), statusFor(out))
}

func (h *authHandlers) pageData(r *http.Request, form *authform.Form, notice string) auth.PageData {
	base := h.pages.base(r)
	switchPath := registerPath
	if form.IsRegister() {
		switchPath = loginPath
	}
	base.Title = pageTitle(base, "auth."+string(form.Mode)+".title")
	if notice != "" {
		notice = base.T(notice)
	}
	return auth.PageData{
		Base:              base,
		Form:              form,
		Notice:            notice,
		Action:            "/" + string(form.Mode),
		HintsPath:         passwordHintsPath,
		SwitchPath:        switchPath,
		MinPasswordLength: validate.MinPasswordLength,
	}
}

// readForm copies the posted fields. The confirmation is set first so the
// password setter computes both hints from the final values.
func readForm(form *authform.Form, values url.Values) {
	form.Email = strings.TrimSpace(values.Get(fieldEmail))
	if form.IsRegister() {
		form.FirstName = strings.TrimSpace(values.Get(fieldFirstName))
		form.LastName = strings.TrimSpace(values.Get(fieldLastName))
		form.SetConfirmPassword(values.Get(fieldConfirmPassword))
	} else {
		form.RememberMe = parseCheckbox(values.Get(fieldRemember))
	}
	form.SetPassword(values.Get(fieldPassword))
}

func statusFor(out authform.Outcome) int {
	switch out.Result {
	case authform.ResultInvalid:
		return http.StatusBadRequest
	case authform.ResultBusy:
		return http.StatusTooManyRequests
	case authform.ResultRejected:
		if out.Message == authform.MsgEmailTaken {
			return http.StatusConflict
		}
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func messageForQuery(q url.Values) string {
	if q == nil {
		return ""
	}
	if q.Get("status") == "logged_out" {
		return "auth.status.logged_out"
	}
	if q.Get("reason") == custommw.ReasonExpired {
		return "auth.status.expired"
	}
	return ""
}

func loginURLWithParams(params map[string]string) string {
	parsed, err := url.Parse(loginPath)
	if err != nil {
		return loginPath
	}
	q := parsed.Query()
	for key, val := range params {
		if strings.TrimSpace(val) == "" {
			continue
		}
		q.Set(key, val)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func parseCheckbox(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on", "yes":
		return true
	default:
		return false
	}
}

func forceLogin(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("force"))) {
	case "1", "true", "yes", "force":
		return true
	default:
		return false
	}
}
