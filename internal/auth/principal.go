package auth

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleTechnician Role = "technician"
	RoleReviewer   Role = "reviewer"
	RoleManager    Role = "manager"
	RoleOwner      Role = "owner"
	RoleSystem     Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTechnician, RoleReviewer, RoleManager, RoleOwner, RoleSystem:
		return true
	}
	return false
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject  string
	GarageID snowflake.ID
	Role     Role
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.Subject != ""
}
