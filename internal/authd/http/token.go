package http

import (
	"net/http"

	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/pkg/authapi"
	"github.com/oakmont/authd/pkg/httpx"
)

// RefreshHandler serves POST /v1/auth/refresh.
type RefreshHandler struct {
	LoginService *service.LoginService
}

// ServeHTTP rotates the presented refresh token. The old token is consumed
// whether or not the caller receives the response, so replays always fail.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authapi.RefreshRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.LoginService.Refresh(r.Context(), req.RefreshToken, req.Device, httpx.IPKeyExtractor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// VerifyHandler serves POST /v1/auth/verify.
type VerifyHandler struct {
	LoginService *service.LoginService
}

// ServeHTTP answers 200 for every well-formed request; validity is a field
// of the response, not a status code.
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authapi.VerifyRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.AccessToken == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	res := h.LoginService.Verify(r.Context(), req.AccessToken)

	out := authapi.VerifyResponse{Valid: res.IsValid}
	if res.IsValid {
		out.AccountID = res.AccountID
		out.Username = res.Username
		out.Roles = res.Roles
		out.IssuedAt = res.IssuedAt.Unix()
		out.ExpiresAt = res.ExpiresAt.Unix()
	} else {
		out.Error = res.ErrorMessage
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, out)
}
