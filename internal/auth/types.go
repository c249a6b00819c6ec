package auth

import (
	"errors"
	"regexp"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can watch the dashboard: unit list, history and the
	// notification feed.
	RoleViewer Role = "viewer"

	// RoleUser can additionally edit unit status by hand and read the archive.
	RoleUser Role = "user"

	// RoleAdmin has full control and sees notifications for every unit.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles an operator may hold.
var ValidRoles = []Role{RoleViewer, RoleUser, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Operator is a dashboard login account.
type Operator struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // never serialised
	Role         Role   `json:"role"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrDuplicateOperator  = errors.New("duplicate operator")
)
