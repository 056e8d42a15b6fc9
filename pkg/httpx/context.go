package httpx

import "context"

type ctxKey string

const (
	CtxKeyAccountID ctxKey = "account_id"
	CtxKeyRoles     ctxKey = "roles"
	CtxKeyClaims    ctxKey = "claims" // full jwtx.Claims, when needed
)

// AccountIDFromCtx returns the authenticated account id injected by
// AuthnMiddleware, or "" when the request is unauthenticated.
func AccountIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyAccountID).(string); ok {
		return v
	}
	return ""
}

func rolesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyRoles).([]string); ok {
		return v
	}
	return nil
}
