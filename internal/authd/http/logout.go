package http

import (
	"net/http"

	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/pkg/authapi"
	"github.com/oakmont/authd/pkg/httpx"
)

// LogoutHandler serves POST /v1/auth/logout.
type LogoutHandler struct {
	LoginService *service.LoginService
}

// ServeHTTP revokes the session behind the presented refresh token. Already
// revoked sessions answer 204 too; only an unparseable token is an error.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authapi.LogoutRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.LoginService.Logout(r.Context(), req.RefreshToken, httpx.IPKeyExtractor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAllHandler serves POST /v1/auth/logout-all. Requires authentication;
// the account comes from the bearer token, not the body.
type LogoutAllHandler struct {
	LoginService *service.LoginService
}

func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.AccountIDFromCtx(r.Context())
	if accountID == "" {
		authapi.ErrInvalidToken.WriteError(w)
		return
	}

	count, err := h.LoginService.LogoutAll(r.Context(), accountID, httpx.IPKeyExtractor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authapi.LogoutAllResponse{SessionsRevoked: count})
}
