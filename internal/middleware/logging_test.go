package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	})
}

func TestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()

	tests := []struct {
		name      string
		status    int
		wantLevel log.Level
	}{
		{"success", http.StatusCreated, log.InfoLevel},
		{"client error", http.StatusConflict, log.WarnLevel},
		{"server error", http.StatusInternalServerError, log.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			handler := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/claims", nil))

			require.Len(t, hook.Entries, 1)
			entry := hook.LastEntry()
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, tt.status, entry.Data["status"])
			assert.Equal(t, "/api/claims", entry.Data["path"])
			assert.NotEmpty(t, entry.Data["request_id"])
		})
	}
}

func TestRecovery(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/claims", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "boom", hook.LastEntry().Data["panic"])
}
