package market

import "errors"

// Error taxonomy for the marketplace. Callers match with errors.Is; every
// layer wraps these with context via fmt.Errorf("...: %w", err) and none are
// swallowed on the way up.
var (
	// ErrInvalidInput marks malformed arguments. The caller's fault; not
	// retriable as-is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks an unknown item, blob handle, or sealed handle.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized marks a failed permission check. Never silently
	// downgraded to a softer error.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrAlreadyPurchased rejects a second purchase of the same item by the
	// same principal. This is a double-spend guard, not an optimization:
	// callers should check IsAuthorized before re-attempting a purchase whose
	// outcome they lost.
	ErrAlreadyPurchased = errors.New("already purchased")

	// ErrSelfPurchase rejects a creator purchasing their own item. The
	// creator's permission is seeded at listing time, so payment would buy
	// nothing.
	ErrSelfPurchase = errors.New("creator cannot purchase own item")

	// ErrPriceMismatch rejects any payment that is not exactly the item's
	// price. Both under- and over-payment are rejected; there is no
	// change-making.
	ErrPriceMismatch = errors.New("payment does not match item price")

	// ErrSignatureInvalid marks an access request whose signature does not
	// verify against the claimed principal. The request must be rebuilt and
	// resigned, not retried verbatim.
	ErrSignatureInvalid = errors.New("request signature invalid")

	// ErrExpiredRequest marks an access request submitted outside its
	// validity window.
	ErrExpiredRequest = errors.New("request outside validity window")
)

// Cryptographic failures during decryption (ErrIntegrity, ErrMalformedInput)
// live in internal/encryption, next to the cipher that produces them.
