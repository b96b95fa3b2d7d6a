package authz

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tablo-data/tablo-api/internal/models"
)

// RequireRole returns a middleware that ensures the requester has at least the required role tier.
func RequireRole(required models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, ok := RolesFromRequest(r)
			if !ok || !models.HasAtLeast(roles, required) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOrg ensures the authenticated identity matches the organization in
// the request path, so one organization can never address another's data.
func RequireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		oid, ok := OrgIDFromRequest(r)
		if !ok {
			http.Error(w, "Missing organization context", http.StatusUnauthorized)
			return
		}
		if pathOrg := pathOrgID(r); pathOrg != "" && pathOrg != oid {
			http.Error(w, "organization mismatch", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pathOrgID(r *http.Request) string {
	return mux.Vars(r)["orgID"]
}
