package authz

import (
	"context"
	"net/http"

	"github.com/tablo-data/tablo-api/internal/models"
)

type contextKey string

const (
	orgIDKey     contextKey = "organization_id"
	userIDKey    contextKey = "user_id"
	userRolesKey contextKey = "user_roles"
)

// WithIdentity stores organization, user, and role information on the context.
func WithIdentity(ctx context.Context, orgID, userID string, roles []models.UserRole) context.Context {
	if orgID != "" {
		ctx = context.WithValue(ctx, orgIDKey, orgID)
	}
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	normalized := models.EnsureDefaultRole(models.NormalizeRoles(roles))
	ctx = context.WithValue(ctx, userRolesKey, normalized)
	return ctx
}

func OrgIDFromRequest(r *http.Request) (string, bool) {
	oid, ok := r.Context().Value(orgIDKey).(string)
	if !ok || oid == "" {
		return "", false
	}
	return oid, true
}

func UserIDFromRequest(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(userIDKey).(string)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

func RolesFromRequest(r *http.Request) ([]models.UserRole, bool) {
	roles, ok := r.Context().Value(userRolesKey).([]models.UserRole)
	if !ok || !models.IsValidRoleList(roles) {
		return nil, false
	}
	return roles, true
}
