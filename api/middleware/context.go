package middleware

import "context"

type contextKey string

const (
	ctxOperator contextKey = "operator"
	ctxRole     contextKey = "actor_role"
)

func OperatorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperator).(string); ok {
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

// WithOperator injects the authenticated operator and role into the context.
func WithOperator(ctx context.Context, subject, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxOperator, subject)
	return context.WithValue(ctx, ctxRole, role)
}
