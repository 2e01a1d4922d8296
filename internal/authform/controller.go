package authform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"finitefield.org/issuetracker-web/internal/authclient"
	"finitefield.org/issuetracker-web/internal/inflight"
	"finitefield.org/issuetracker-web/internal/platform/observability"
)

var (
	errSubmitterRequired = errors.New("authform: submitter is required")
	errGuardRequired     = errors.New("authform: in-flight guard is required")
)

// ErrCompleted is returned for a submission on a form that already navigated away.
var ErrCompleted = errors.New("authform: form already completed")

// Record is the local user record handed to the parent application.
type Record struct {
	FirstName string
	LastName  string
	Email     string
}

// Submitter posts credentials to the authentication API.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, creds authclient.Credentials) (*authclient.Profile, error)
}

// SuccessFunc receives the record and remember-me preference after a
// successful submission. The parent application owns persistence.
type SuccessFunc func(ctx context.Context, rec Record, rememberMe bool) error

// Navigator performs the post-success navigation.
type Navigator interface {
	Navigate(ctx context.Context, target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string)

// Navigate implements Navigator.
func (fn NavigatorFunc) Navigate(ctx context.Context, target string) {
	fn(ctx, target)
}

// Recorder counts submissions by mode and result.
type Recorder interface {
	ObserveSubmission(mode, outcome string)
}

// Result classifies a submission outcome.
type Result string

const (
	ResultInvalid   Result = "invalid"
	ResultBusy      Result = "in_flight"
	ResultRejected  Result = "rejected"
	ResultFailed    Result = "failed"
	ResultSucceeded Result = "succeeded"
)

// Outcome describes how one Submit call ended.
type Outcome struct {
	SubmissionID string
	Result       Result
	Message      string
	Record       *Record
	Err          error
}

// OK reports whether the submission reached the dashboard hand-off.
func (o Outcome) OK() bool {
	return o.Result == ResultSucceeded
}

// ControllerDeps wires the collaborators of a Controller.
type ControllerDeps struct {
	Submitter   Submitter
	Guard       inflight.Guard
	Metrics     Recorder
	IDGenerator func() string
}

// Controller runs form submissions.
type Controller struct {
	submitter Submitter
	guard     inflight.Guard
	metrics   Recorder
	newID     func() string
}

// NewController constructs a Controller enforcing dependency validation.
func NewController(deps ControllerDeps) (*Controller, error) {
	if deps.Submitter == nil {
		return nil, errSubmitterRequired
	}
	if deps.Guard == nil {
		return nil, errGuardRequired
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &Controller{
		submitter: deps.Submitter,
		guard:     deps.Guard,
		metrics:   deps.Metrics,
		newID:     idGen,
	}, nil
}

// Submit validates form, posts it and, on success, calls onSuccess and then
// nav exactly once. key identifies the visitor for the in-flight guard.
func (c *Controller) Submit(ctx context.Context, key string, form *Form, onSuccess SuccessFunc, nav Navigator) Outcome {
	out := Outcome{SubmissionID: c.newID()}
	logger := observability.FromContext(ctx).With(
		zap.String("submission_id", out.SubmissionID),
		zap.String("mode", string(form.Mode)),
		zap.String("flavor", string(form.Flavor)),
	)

	if form.State == StateRedirected {
		out.Result = ResultFailed
		out.Err = ErrCompleted
		return out
	}
	defer form.clearSecrets()

	form.State = StateValidating
	form.Message = ""
	if msg := form.Validate(); msg != "" {
		logger.Debug("auth form rejected by validation", zap.String("message", msg))
		return c.finish(form, out, ResultInvalid, msg, StateRejected)
	}

	release, err := c.guard.Acquire(ctx, key)
	switch {
	case errors.Is(err, inflight.ErrInFlight):
		logger.Info("auth submission already in flight")
		return c.finish(form, out, ResultBusy, MsgInFlight, StateEditing)
	case err != nil:
		// Fail open.
		logger.Warn("in-flight guard unavailable", zap.Error(err))
		release = func() {}
	}
	defer release()

	form.State = StateSubmitting
	profile, err := c.submitter.Submit(ctx, form.Endpoint(), form.credentials())
	if err == nil {
		err = checkProfile(form, profile)
	}
	if err != nil {
		result, msg := classify(form, err)
		out.Err = err
		switch {
		case errors.Is(err, authclient.ErrRejected):
			logger.Info("auth submission rejected", zap.Error(err))
		case errors.Is(err, context.Canceled):
			logger.Debug("auth submission cancelled", zap.Error(err))
		default:
			logger.Error("auth submission failed", zap.Error(err))
		}
		return c.finish(form, out, result, msg, StateFailed)
	}

	rec := Record{FirstName: profile.FirstName, LastName: profile.LastName, Email: profile.Email}
	remember := form.RememberMe
	msg := MsgLoginSuccess
	if form.Mode == ModeRegister {
		// Register keeps the submitted fields as the record.
		rec = Record{FirstName: form.FirstName, LastName: form.LastName, Email: form.Email}
		remember = false
		msg = MsgRegisterSuccess
	}

	form.State = StateSucceeded
	if onSuccess != nil {
		if err := onSuccess(ctx, rec, remember); err != nil {
			logger.Error("auth hand-off failed", zap.Error(err))
			out.Err = err
			return c.finish(form, out, ResultFailed, MsgUnexpected, StateFailed)
		}
	}

	if nav != nil {
		nav.Navigate(ctx, DashboardPath)
	}
	logger.Info("auth submission succeeded")
	out.Record = &rec
	return c.finish(form, out, ResultSucceeded, msg, StateRedirected)
}

func (c *Controller) finish(form *Form, out Outcome, result Result, msg string, state State) Outcome {
	form.State = state
	form.Message = msg
	out.Result = result
	out.Message = msg
	if c.metrics != nil {
		c.metrics.ObserveSubmission(string(form.Mode), string(result))
	}
	return out
}

// checkProfile refuses a success body that cannot become a complete login
// record. Register builds its record from the form and only needs a body.
func checkProfile(form *Form, profile *authclient.Profile) error {
	if profile == nil {
		return fmt.Errorf("%w: empty profile", authclient.ErrDecode)
	}
	if form.Mode == ModeLogin && strings.TrimSpace(profile.Email) == "" {
		return fmt.Errorf("%w: profile without email", authclient.ErrDecode)
	}
	return nil
}

func classify(form *Form, err error) (Result, string) {
	if form.Flavor == FlavorLegacy {
		return ResultRejected, MsgWrongCredentials
	}
	if errors.Is(err, authclient.ErrRejected) {
		if form.Mode == ModeRegister {
			return ResultRejected, MsgEmailTaken
		}
		return ResultRejected, MsgWrongCredentials
	}
	return ResultFailed, MsgUnexpected
}
