package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/tablo-data/tablo-api/internal/models"
)

func identityRequest(t *testing.T, target, orgID, userID string, roles []models.UserRole) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return req.WithContext(WithIdentity(req.Context(), orgID, userID, roles))
}

func TestRequireOrg(t *testing.T) {
	router := mux.NewRouter()
	router.Handle("/api/orgs/{orgID}/sources", RequireOrg(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	tests := []struct {
		name     string
		tokenOrg string
		path     string
		expected int
	}{
		{
			name:     "matching org",
			tokenOrg: "org-1",
			path:     "/api/orgs/org-1/sources",
			expected: http.StatusOK,
		},
		{
			name:     "mismatched org",
			tokenOrg: "org-1",
			path:     "/api/orgs/org-2/sources",
			expected: http.StatusForbidden,
		},
		{
			name:     "no identity",
			tokenOrg: "",
			path:     "/api/orgs/org-1/sources",
			expected: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := identityRequest(t, tt.path, tt.tokenOrg, "user-1", []models.UserRole{models.RoleMember})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		roles    []models.UserRole
		expected int
	}{
		{name: "admin allowed", roles: []models.UserRole{models.RoleAdmin}, expected: http.StatusOK},
		{name: "member denied", roles: []models.UserRole{models.RoleMember}, expected: http.StatusForbidden},
		{name: "mixed roles allowed", roles: []models.UserRole{models.RoleMember, models.RoleAdmin}, expected: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := identityRequest(t, "/api/orgs/org-1/warehouse", "org-1", "user-1", tt.roles)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	req := identityRequest(t, "/", "org-1", "user-1", []models.UserRole{models.RoleAdmin, models.RoleAdmin})

	oid, ok := OrgIDFromRequest(req)
	assert.True(t, ok)
	assert.Equal(t, "org-1", oid)

	uid, ok := UserIDFromRequest(req)
	assert.True(t, ok)
	assert.Equal(t, "user-1", uid)

	roles, ok := RolesFromRequest(req)
	assert.True(t, ok)
	// Duplicates collapse and the default member role is appended.
	assert.Equal(t, []models.UserRole{models.RoleAdmin, models.RoleMember}, roles)
}
