package auth

import (
	"context"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
)

// Principal is the authenticated identity acting on a request.
type Principal struct {
	UserID string
	Email  string
	Role   models.Role
}

// PrincipalFromUser builds the principal for a loaded account.
func PrincipalFromUser(u *models.User) *Principal {
	return &Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
