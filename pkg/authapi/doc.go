// Package authapi provides the request and response types of the authd HTTP
// API together with a typed Go client.
//
// The server side imports it for the shared DTOs and error envelope; other
// services import it to talk to authd without hand-rolling HTTP calls.
//
// # Basic usage
//
//	client := authapi.NewClient("http://localhost:8080")
//
//	session, err := client.Login(ctx, "alice", "password", "backend")
//	if err != nil {
//		var mfaErr *authapi.MFARequiredError
//		if errors.As(err, &mfaErr) {
//			session, err = client.CompleteMFA(ctx, mfaErr.MFAToken, code, "backend")
//		}
//	}
//
// A Session holds the token pair and refreshes it automatically; call
// session.Logout or session.LogoutAll to end it.
//
// # Errors
//
// Failures decode into typed errors: *APIError for the generic envelope,
// *MFARequiredError for the 409 MFA challenge and *AccountLockedError for
// the 423 lockout response, so callers can branch with errors.As.
package authapi
