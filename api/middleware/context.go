package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/aoinlabs/storefront-backend/pkg/enums"
	"github.com/aoinlabs/storefront-backend/pkg/types"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext rebuilds the typed actor seeded by the auth middleware.
// The bool result is false when the context carries no valid identity.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return types.Actor{}, false
	}
	role := enums.Role(RoleFromContext(ctx))
	if !role.IsValid() {
		return types.Actor{}, false
	}
	return types.Actor{UserID: userID, Role: role}, true
}

// WithActor injects the actor identity into the context. Used by tests and
// by the auth middleware.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	return context.WithValue(ctx, ctxRole, actor.Role.String())
}
