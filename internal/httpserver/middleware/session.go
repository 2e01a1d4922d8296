package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"finitefield.org/issuetracker-web/internal/platform/observability"
	appsession "finitefield.org/issuetracker-web/internal/session"
)

type sessionKey struct{}

type requestSession struct {
	sess    *appsession.Session
	expired bool
}

// SessionStore is implemented by *session.Manager.
type SessionStore interface {
	Load(*http.Request) (*appsession.Session, error)
	New() *appsession.Session
	Save(http.ResponseWriter, *appsession.Session) error
	Destroy(http.ResponseWriter)
}

// Session attaches the decoded session to the request context and writes it
// back to the client just before the response headers are sent.
func Session(store SessionStore) func(http.Handler) http.Handler {
	if store == nil {
		panic("session store is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := observability.FromContext(r.Context())

			rs := requestSession{}
			sess, err := store.Load(r)
			switch {
			case errors.Is(err, appsession.ErrExpired):
				logger.Info("session expired: resetting")
				rs.expired = true
			case err != nil:
				logger.Warn("session load failed", zap.Error(err))
			}
			if err != nil || sess == nil {
				sess = store.New()
			}
			rs.sess = sess
			ctx := context.WithValue(r.Context(), sessionKey{}, rs)

			sw := &sessionWriter{ResponseWriter: w}
			sw.save = func() {
				if err := store.Save(w, sess); err != nil {
					logger.Error("session save failed", zap.Error(err))
				}
			}

			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.commit()
		})
	}
}

// SessionFromContext retrieves the session attached to this request.
func SessionFromContext(ctx context.Context) (*appsession.Session, bool) {
	rs, _ := ctx.Value(sessionKey{}).(requestSession)
	return rs.sess, rs.sess != nil
}

// SessionExpired reports whether the visitor arrived with an expired session.
func SessionExpired(ctx context.Context) bool {
	rs, _ := ctx.Value(sessionKey{}).(requestSession)
	return rs.expired
}

type sessionWriter struct {
	http.ResponseWriter
	save  func()
	saved bool
}

func (w *sessionWriter) commit() {
	if w.saved {
		return
	}
	w.saved = true
	w.save()
}

func (w *sessionWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Flush() {
	w.commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
