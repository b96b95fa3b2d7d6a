package models

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	IsActive       bool       `json:"is_active"`
	Roles          []UserRole `json:"roles"`
}

func IsValidRole(role UserRole) bool {
	switch role {
	case RoleAdmin, RoleMember:
		return true
	}
	return false
}

func IsValidRoleList(roles []UserRole) bool {
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if !IsValidRole(role) {
			return false
		}
	}
	return true
}

// NormalizeRoles removes duplicates while preserving first-seen order.
func NormalizeRoles(roles []UserRole) []UserRole {
	seen := make(map[UserRole]struct{}, len(roles))
	normalized := make([]UserRole, 0, len(roles))
	for _, role := range roles {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}

// EnsureDefaultRole guarantees every user carries at least the member role.
func EnsureDefaultRole(roles []UserRole) []UserRole {
	for _, role := range roles {
		if role == RoleMember {
			return roles
		}
	}
	return append(roles, RoleMember)
}

// HasAtLeast reports whether any held role meets the required tier.
// Admin outranks member.
func HasAtLeast(roles []UserRole, required UserRole) bool {
	for _, role := range roles {
		if role == RoleAdmin || role == required {
			return true
		}
	}
	return false
}

func HighestRole(roles []UserRole) UserRole {
	for _, role := range roles {
		if role == RoleAdmin {
			return RoleAdmin
		}
	}
	return RoleMember
}
