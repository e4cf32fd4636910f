package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/userhub/accounts/internal/errors"
)

func TestMiddleware(t *testing.T) {
	signer := newTestSigner()
	user := testUser()

	valid, err := signer.Sign(user)
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := signer.Sign(user)
	require.NoError(t, err)
	signer.now = time.Now

	var seen *UserContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name         string
		header       string
		allowExpired bool
		wantStatus   int
		wantCode     int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantCode: apperrors.CodeUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantCode: apperrors.CodeUnauthorized},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantCode: apperrors.CodeUnauthorized},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized, wantCode: apperrors.CodeUnauthorized},
		{name: "expired token", header: "Bearer " + expired.AccessToken, wantStatus: http.StatusUnauthorized, wantCode: apperrors.CodeTokenExpired},
		{name: "expired token tolerated", header: "Bearer " + expired.AccessToken, allowExpired: true, wantStatus: http.StatusNoContent},
		{name: "valid token", header: "Bearer " + valid.AccessToken, wantStatus: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + valid.AccessToken, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			mw := Middleware(signer)
			if tt.allowExpired {
				mw = MiddlewareAllowExpired(signer)
			}

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != 0 {
				var env apperrors.Envelope
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
				assert.False(t, env.Success)
				assert.Equal(t, tt.wantCode, env.Code)
				assert.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, user.ID, seen.UserID)
			assert.Equal(t, user.Email, seen.Email)
			assert.Equal(t, []string{"users.read"}, seen.Permissions)
		})
	}
}

func TestGetUserFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetUserFromContext(req.Context()))
}
