package auth

import (
	"errors"
	"fmt"

	"github.com/upb/order-processing/tokens"
)

var errNilPrincipal = errors.New("nil principal")

// BuildClaims converts a principal into the canonical claim set carried by
// issued tokens. Malformed or conflicting permission entries are an error.
func BuildClaims(p *Principal) (*tokens.ClaimSet, error) {
	if p == nil {
		return nil, errNilPrincipal
	}

	perms, err := tokens.ParsePermissions(p.Permissions)
	if err != nil {
		return nil, fmt.Errorf("principal %s: %w", p.ID, err)
	}

	claims := &tokens.ClaimSet{
		SubjectID:   p.ID,
		DisplayName: p.DisplayName,
		Roles:       tokens.NormalizeRoles(p.Roles),
		Permissions: perms,
		Email:       p.Email,
	}
	if err := claims.Validate(); err != nil {
		return nil, err
	}
	return claims, nil
}
