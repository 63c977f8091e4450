package models

import (
	"strings"
	"time"
)

// Well-known role names
const (
	RoleAdmin    = "Admin"
	RoleCustomer = "Customer"
)

// User is an account in the credential store
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	UserName     string    `json:"user_name" db:"user_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Active       bool      `json:"active" db:"active"`
	LockedOut    bool      `json:"locked_out" db:"locked_out"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	// Loaded from user_roles and user_claims
	Roles  []string    `json:"roles,omitempty" db:"-"`
	Claims []UserClaim `json:"claims,omitempty" db:"-"`
}

// UserClaim is a permission flag attached to a user, e.g. CanOrder=true
type UserClaim struct {
	Key   string `json:"key" db:"claim_key"`
	Value string `json:"value" db:"claim_value"`
}

// CanAuthenticate reports whether the account may sign in
func (u *User) CanAuthenticate() bool {
	return u.Active && !u.LockedOut
}

// DisplayName is the user name, falling back to the email
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.UserName); name != "" {
		return name
	}
	return u.Email
}

// PermissionEntries renders claims as "key:value" entries
func (u *User) PermissionEntries() []string {
	if len(u.Claims) == 0 {
		return nil
	}
	entries := make([]string, 0, len(u.Claims))
	for _, c := range u.Claims {
		entries = append(entries, c.Key+":"+c.Value)
	}
	return entries
}
