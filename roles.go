package auth

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleLearner, RoleTeam, RoleEmployer, RoleAdmin:
		return true
	default:
		return false
	}
}

// SignupRoles returns the roles a caller may self-assign at signup.
// Admin accounts are provisioned out of band, never through signup.
func SignupRoles() []UserRole {
	return []UserRole{RoleLearner, RoleTeam, RoleEmployer}
}

// IsAssignableAtSignup reports whether the role is in the signup allow-list.
func IsAssignableAtSignup(r UserRole) bool {
	switch r {
	case RoleLearner, RoleTeam, RoleEmployer:
		return true
	default:
		return false
	}
}

// ParseRole validates raw input and returns the role
func ParseRole(raw string) (UserRole, bool) {
	if IsValidRole(raw) {
		return raw, true
	}
	return "", false
}
