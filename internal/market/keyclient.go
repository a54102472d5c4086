package market

import "context"

// KeyClient is the requester side of the authorization protocol: it builds a
// signed access request, submits it to the authority, and unwraps the
// released secret with the session key the request named. The exchange is
// network-bound — it suspends the calling flow and honors ctx for timeout
// and cancellation.
type KeyClient interface {
	// RequestSecret obtains the raw identity secret for an item the signer's
	// principal is authorized on. Fails with ErrSignatureInvalid,
	// ErrExpiredRequest, ErrNotAuthorized, or ErrNotFound from the
	// authority.
	RequestSecret(ctx context.Context, itemID int64, sealedHandle string, signer Signer) ([]byte, error)
}
