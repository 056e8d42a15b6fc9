package http

import (
	"net/http"
	"time"

	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/pkg/authapi"
	"github.com/oakmont/authd/pkg/httpx"
)

// SessionsHandler serves GET /v1/sessions, listing the authenticated
// account's live sessions.
type SessionsHandler struct {
	Sessions *service.SessionRegistryService
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.AccountIDFromCtx(r.Context())
	if accountID == "" {
		authapi.ErrInvalidToken.WriteError(w)
		return
	}

	sessions, err := h.Sessions.List(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authapi.ListSessionsResponse{Sessions: make([]authapi.SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, authapi.SessionInfo{
			ID:        s.JTI,
			Device:    s.Device,
			IP:        s.IP,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, out)
}
