package rbac

// Role names. Keep these stable; they appear in ADMIN_USERS and in tokens.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

func IsKnownRole(role string) bool { return role == RoleAdmin || role == RoleViewer }
