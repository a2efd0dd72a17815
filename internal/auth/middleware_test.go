package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoUser writes the context user id (or "anonymous") so tests can see
// what the middleware attached.
func echoUser(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		id = "anonymous"
	}
	_, _ = w.Write([]byte(id))
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	valid, _ := ts.Generate("user-42")
	expired, _ := ts.GenerateWithDuration("user-42", -time.Minute)

	h := RequireAuth(ts)(http.HandlerFunc(echoUser))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
		wantError  string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "user-42", ""},
		{"lower-case scheme", "bearer " + valid, http.StatusOK, "user-42", ""},
		{"no header", "", http.StatusUnauthorized, "", "unauthorized"},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "", "unauthorized"},
		{"scheme only", "Bearer ", http.StatusUnauthorized, "", "unauthorized"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "", "invalid token"},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, "", "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError == "" {
				assert.Equal(t, tt.wantBody, rr.Body.String())
				return
			}
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	valid, _ := ts.Generate("user-7")

	h := OptionalAuth(ts)(http.HandlerFunc(echoUser))

	for header, want := range map[string]string{
		"":                 "anonymous",
		"Bearer " + valid:  "user-7",
		"Bearer not-a-jwt": "anonymous",
		"Token " + valid:   "anonymous",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/repos/abc", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "header %q", header)
		assert.Equal(t, want, rr.Body.String(), "header %q", header)
	}
}

func TestUserIDFromContext_EmptyIsAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithUserID(req.Context(), "")

	_, ok := UserIDFromContext(ctx)
	assert.False(t, ok)
}
