package http

import (
	"net/http"

	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/pkg/authapi"
	"github.com/oakmont/authd/pkg/httpx"
)

// RegisterHandler serves POST /v1/auth/register.
type RegisterHandler struct {
	LoginService *service.LoginService
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authapi.RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}

	acct, err := h.LoginService.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IP:       httpx.IPKeyExtractor(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authapi.RegisterResponse{
		AccountID: acct.ID,
		Username:  acct.Username,
		Roles:     acct.Roles,
	})
}
