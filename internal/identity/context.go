package identity

import "context"

type actorContextKey struct{}

// ContextWithActor attaches the resolved actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, &actor)
}

// ActorFromContext extracts the actor from the context. Returns the
// anonymous actor when none was attached.
func ActorFromContext(ctx context.Context) Actor {
	if ctx == nil {
		return Anonymous()
	}
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok && v != nil {
		return *v
	}
	return Anonymous()
}
