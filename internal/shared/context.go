package shared

import (
	"context"

	"github.com/google/uuid"
)

// Role is the coarse permission level carried in the access token.
type Role string

const (
	RoleAzubi     Role = "AZUBI"
	RoleAusbilder Role = "AUSBILDER"
	RoleAdmin     Role = "ADMIN"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAzubi, RoleAusbilder, RoleAdmin:
		return true
	default:
		return false
	}
}

// Principal identifies the caller of an operation.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     Role
}

// IsAdmin reports whether the principal has admin rights.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanReview reports whether the principal may approve or reject records.
func (p Principal) CanReview() bool { return p.Role == RoleAdmin || p.Role == RoleAusbilder }

// Name returns the display name used in audit rows.
func (p Principal) Name() string {
	if p.Username != "" {
		return p.Username
	}
	return p.UserID.String()
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
