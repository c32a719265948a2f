package middleware

import "context"

// Actor is the authenticated caller attached by Auth.
type Actor struct {
	UserID string
	Role   string
}

type actorKey struct{}

func ActorFromContext(ctx context.Context) Actor {
	if ctx == nil {
		return Actor{}
	}
	actor, _ := ctx.Value(actorKey{}).(Actor)
	return actor
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func UserIDFromContext(ctx context.Context) string {
	return ActorFromContext(ctx).UserID
}

func RoleFromContext(ctx context.Context) string {
	return ActorFromContext(ctx).Role
}

// WithUserID replaces the caller's user id and keeps the role.
func WithUserID(ctx context.Context, userID string) context.Context {
	actor := ActorFromContext(ctx)
	actor.UserID = userID
	return WithActor(ctx, actor)
}

// WithRole replaces the caller's role and keeps the user id.
func WithRole(ctx context.Context, role string) context.Context {
	actor := ActorFromContext(ctx)
	actor.Role = role
	return WithActor(ctx, actor)
}
