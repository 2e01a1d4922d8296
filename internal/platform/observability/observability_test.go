package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextDefaultsToNoop(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))

	logger := zap.NewExample()
	require.Same(t, logger, FromContext(WithLogger(context.Background(), logger)))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("loud")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("debug")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestRequestLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(zap.New(core)))
	router.Use(RequestLoggerMiddleware())
	router.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handler")
		w.WriteHeader(http.StatusUnauthorized)
	})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("HX-Request", "true")
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.FilterMessage("handler").FilterField(zap.String("path", "/login")).Len())

	completed := logs.FilterMessage("request completed").All()
	require.Len(t, completed, 1)
	require.Equal(t, zapcore.WarnLevel, completed[0].Level)
	fields := completed[0].ContextMap()
	require.Equal(t, int64(http.StatusUnauthorized), fields["status"])
	require.Equal(t, "/login", fields["route"])
	require.Equal(t, true, fields["htmx"])
}

func TestSanitizeStringStripsControlCharacters(t *testing.T) {
	got := sanitizeString("/login\n\tadmin", 180)
	require.False(t, strings.ContainsAny(got, "\n\t"))
	require.Len(t, sanitizeString(strings.Repeat("a", 300), 180), 180)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveSubmission("login", "succeeded")
	m.ObserveSubmission("login", "succeeded")
	m.ObserveSubmission("register", "rejected")
	m.ObserveBackend("/auth/login", http.StatusOK, 20*time.Millisecond)
	m.ObserveBackend("/auth/login", 0, time.Second)

	require.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("login", "succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("register", "rejected")))
	require.Equal(t, 2, testutil.CollectAndCount(m.backend))

	var nilMetrics *Metrics
	require.NotPanics(t, func() {
		nilMetrics.ObserveSubmission("login", "failed")
		nilMetrics.ObserveBackend("/auth/login", 500, time.Millisecond)
	})
}
