package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablo-data/tablo-api/internal/authz"
	"github.com/tablo-data/tablo-api/internal/config"
	"github.com/tablo-data/tablo-api/internal/models"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTMiddleware(t *testing.T) {
	handler := NewAuthHandler(nil, &config.Config{JWTSecret: "test-secret"}, zerolog.Nop())

	var gotOrg, gotUser string
	var gotRoles []models.UserRole
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg, _ = authz.OrgIDFromRequest(r)
		gotUser, _ = authz.UserIDFromRequest(r)
		gotRoles, _ = authz.RolesFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})
	protected := handler.JWTMiddleware(next)

	validClaims := jwt.MapClaims{
		"sub":   "user-1",
		"oid":   "org-1",
		"role":  "admin",
		"roles": []string{"admin"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	}

	t.Run("valid token populates identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orgs/org-1/sources", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", validClaims))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "org-1", gotOrg)
		assert.Equal(t, "user-1", gotUser)
		assert.Equal(t, []models.UserRole{models.RoleAdmin, models.RoleMember}, gotRoles)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", validClaims))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := jwt.MapClaims{
			"sub": "user-1", "oid": "org-1", "roles": []string{"member"},
			"exp": time.Now().Add(-time.Minute).Unix(),
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", expired))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing org claim", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub": "user-1", "roles": []string{"member"},
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", claims))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
