package http

import (
	"net/http"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/pkg/authapi"
	"github.com/oakmont/authd/pkg/httpx"
)

// LoginHandler serves POST /v1/auth/login.
type LoginHandler struct {
	LoginService *service.LoginService
}

// ServeHTTP runs one credential attempt. Success answers 200 with a token
// pair; an MFA-enabled account answers 409 with a challenge token instead.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authapi.LoginRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.LoginService.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
		Device:   req.Device,
		IP:       httpx.IPKeyExtractor(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.RequiresMFA {
		(&authapi.MFARequiredError{
			MFAToken: res.MFAChallenge,
			Methods:  []string{"totp"},
		}).WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(res.TokenPair))
}

// MFAHandler serves POST /v1/auth/mfa.
type MFAHandler struct {
	LoginService *service.LoginService
}

func (h *MFAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authapi.MFACompleteRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.MFAToken == "" || req.Code == "" {
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.LoginService.CompleteMFA(r.Context(), service.MFAInput{
		Challenge: req.MFAToken,
		Code:      req.Code,
		Device:    req.Device,
		IP:        httpx.IPKeyExtractor(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(res.TokenPair))
}

// tokenResponse converts a domain token pair into the wire shape.
func tokenResponse(pair domain.TokenPair) authapi.TokenResponse {
	now := time.Now()
	return authapi.TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        pair.TokenType,
		ExpiresIn:        int(pair.AccessExpiresAt.Sub(now).Seconds()),
		RefreshExpiresIn: int(pair.RefreshExpiresAt.Sub(now).Seconds()),
	}
}
