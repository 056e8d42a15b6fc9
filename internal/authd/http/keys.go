package http

import (
	"net/http"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/internal/authd/store"
	"github.com/oakmont/authd/pkg/authapi"
	"github.com/oakmont/authd/pkg/httpx"
	"github.com/oakmont/authd/pkg/slogx"
)

// KeysHandler serves the admin signing-key endpoints.
type KeysHandler struct {
	Keyring *service.KeyringService
	Keys    store.SigningKeys
	Audit   service.AuditTrail
}

// HandleRotate serves POST /v1/keys/rotate. The old key keeps verifying
// until its grace period ends.
func (h *KeysHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	kid, err := h.Keyring.Rotate(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("key rotation failed", "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	h.Audit.Record(r.Context(), domain.AuditEvent{
		Kind:      domain.AuditKeyRotated,
		AccountID: httpx.AccountIDFromCtx(r.Context()),
		IP:        httpx.IPKeyExtractor(r),
		Detail:    "new kid " + kid,
	})

	httpx.WriteJSON(w, http.StatusOK, authapi.RotateKeyResponse{NewKid: kid})
}

// HandleList serves GET /v1/keys.
func (h *KeysHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Keys.ListSigningKeys(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authapi.ListKeysResponse{Keys: make([]authapi.SigningKeyInfo, 0, len(keys))}
	for _, k := range keys {
		info := authapi.SigningKeyInfo{
			Kid:       k.Kid,
			Algorithm: k.Algorithm,
			CreatedAt: k.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt: k.ExpiresAt.UTC().Format(time.RFC3339),
		}
		if k.RetiredAt != nil {
			retired := k.RetiredAt.UTC().Format(time.RFC3339)
			info.RetiredAt = &retired
		}
		out.Keys = append(out.Keys, info)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, out)
}
