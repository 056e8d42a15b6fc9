package http

import (
	"net/http"
	"time"

	"github.com/oakmont/authd/pkg/authapi"
	"github.com/oakmont/authd/pkg/httpx"
	"github.com/oakmont/authd/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery. Retired
// keys stay listed until their grace period ends so old tokens keep
// verifying.
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authapi.JWKSResponse(keys.PublicJWKS(time.Now().UTC())))
	}
}
