package tokens

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")

	// ErrInvalidPermission is returned when a permission entry is not a "key:bool" pair
	ErrInvalidPermission = errors.New("invalid permission claim")

	// ErrInvalidRole is returned for blank or space-padded role names
	ErrInvalidRole = errors.New("invalid role claim")
)

// ClaimSet is the canonical identity of an authenticated principal.
// Roles and permissions are compared exactly (case-sensitive).
type ClaimSet struct {
	SubjectID   string
	DisplayName string
	Roles       []string
	Permissions map[string]bool
	Email       string

	// IssuedToken echoes the token the claims were read from or signed into,
	// so downstream code can forward it without re-parsing headers.
	IssuedToken string
}

// WithIssuedToken returns a copy of the claim set carrying token
func (c *ClaimSet) WithIssuedToken(token string) *ClaimSet {
	out := c.clone()
	out.IssuedToken = token
	return out
}

// HasRole checks if the claim set carries the given role
func (c *ClaimSet) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// HasAnyRole checks if the claim set carries any of the specified roles
func (c *ClaimSet) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// Allows reports whether permission key is present and granted
func (c *ClaimSet) Allows(key string) bool {
	return c.Permissions[key]
}

// Validate checks the invariants every successful outcome must satisfy.
// Role names and permission keys must already be in canonical form so that
// a signed claim set reads back unchanged.
func (c *ClaimSet) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil claim set", ErrMissingClaim)
	}
	if c.SubjectID == "" {
		return fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if c.DisplayName == "" {
		return fmt.Errorf("%w: name", ErrMissingClaim)
	}
	for _, role := range c.Roles {
		if !canonical(role) {
			return fmt.Errorf("%w: %q", ErrInvalidRole, role)
		}
	}
	for key := range c.Permissions {
		if !canonical(key) {
			return fmt.Errorf("%w: key %q", ErrInvalidPermission, key)
		}
	}
	return nil
}

// canonical reports whether s is non-empty and has no surrounding whitespace
func canonical(s string) bool {
	return s != "" && strings.TrimSpace(s) == s
}

func (c *ClaimSet) clone() *ClaimSet {
	out := *c
	out.Roles = slices.Clone(c.Roles)
	if c.Permissions != nil {
		out.Permissions = make(map[string]bool, len(c.Permissions))
		for k, v := range c.Permissions {
			out.Permissions[k] = v
		}
	}
	return &out
}

// NormalizeRoles returns roles as a sorted set with blanks removed
func NormalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// ParsePermission splits a "key:bool" entry. The split is on the last colon
// so keys may themselves contain colons.
func ParsePermission(entry string) (string, bool, error) {
	i := strings.LastIndex(entry, ":")
	if i < 0 {
		return "", false, fmt.Errorf("%w: %q has no separator", ErrInvalidPermission, entry)
	}
	key := strings.TrimSpace(entry[:i])
	if key == "" {
		return "", false, fmt.Errorf("%w: %q has an empty key", ErrInvalidPermission, entry)
	}
	value, err := strconv.ParseBool(strings.TrimSpace(entry[i+1:]))
	if err != nil {
		return "", false, fmt.Errorf("%w: %q: %v", ErrInvalidPermission, entry, err)
	}
	return key, value, nil
}

// FormatPermissions renders the permission map as sorted "key:bool" entries
func FormatPermissions(perms map[string]bool) []string {
	if len(perms) == 0 {
		return nil
	}
	out := make([]string, 0, len(perms))
	for k, v := range perms {
		out = append(out, k+":"+strconv.FormatBool(v))
	}
	sort.Strings(out)
	return out
}

// ParsePermissions converts "key:bool" entries into a map. Exact duplicates
// collapse; the same key with conflicting values is rejected.
func ParsePermissions(entries []string) (map[string]bool, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	perms := make(map[string]bool, len(entries))
	for _, entry := range entries {
		key, value, err := ParsePermission(entry)
		if err != nil {
			return nil, err
		}
		if prev, seen := perms[key]; seen && prev != value {
			return nil, fmt.Errorf("%w: conflicting values for %q", ErrInvalidPermission, key)
		}
		perms[key] = value
	}
	return perms, nil
}

// Claims is the JWT payload
type Claims struct {
	jwt.RegisteredClaims
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// toClaimSet converts a verified JWT payload back into a ClaimSet
func (c *Claims) toClaimSet() (*ClaimSet, error) {
	perms, err := ParsePermissions(c.Permissions)
	if err != nil {
		return nil, err
	}
	set := &ClaimSet{
		SubjectID:   c.Subject,
		DisplayName: c.Name,
		Roles:       NormalizeRoles(c.Roles),
		Permissions: perms,
		Email:       c.Email,
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}
