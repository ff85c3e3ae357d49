package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

func TestIsAuthorized(t *testing.T) {
	var called bool
	next := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		called = true
		w.WriteHeader(http.StatusOK)
	}
	handler := IsAuthorized("secret-token", next)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantCalled bool
	}{
		{"no header", "", http.StatusUnauthorized, false},
		{"wrong token", "Bearer wrong", http.StatusUnauthorized, false},
		{"valid token", "Bearer secret-token", http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest("POST", "/api/videos", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			handler(rr, req, nil)
			require.Equal(t, tt.wantStatus, rr.Code)
			require.Equal(t, tt.wantCalled, called)
		})
	}
}

func TestIsAuthorizedUnconfiguredToken(t *testing.T) {
	var called bool
	next := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		called = true
		w.WriteHeader(http.StatusOK)
	}
	handler := IsAuthorized("", next)

	// An empty configured token must not match an empty Bearer value.
	req := httptest.NewRequest("POST", "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()
	handler(rr, req, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.False(t, called)
}
