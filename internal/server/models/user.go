package models

import "time"

// Role is the coarse-grained authorization role attached to a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSeller Role = "seller"
	RoleUser   Role = "user"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleUser:
		return true
	}
	return false
}

// User is a principal in the credential directory. PasswordHash is a bcrypt
// hash; GoogleToken is an optional externally-issued identity token attached
// as a secondary credential at login.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	GoogleToken  string
	Description  string
	CreatedAt    time.Time
}
