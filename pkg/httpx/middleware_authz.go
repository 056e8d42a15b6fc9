package httpx

import "net/http"

// RequireAnyRole the caller must have at least one of the provided roles.
func RequireAnyRole(required ...string) Middleware {
	want := make(map[string]struct{}, len(required))
	for _, r := range required {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			have := rolesFromCtx(r.Context())

			for _, role := range have {
				if _, ok := want[role]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeBearerRoleError(w, http.StatusForbidden)
		})
	}
}

func writeBearerRoleError(w http.ResponseWriter, code int) {
	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
	w.WriteHeader(code)
}
