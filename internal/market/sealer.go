package market

// Sealer is the sealed-value primitive: values are stored in a form the
// storing authority itself cannot read without an explicit Unseal call, and
// view grants are auditable, idempotent operations. The ledger's permission
// bookkeeping is layered on top of this grant mechanism.
//
// Sealing uses the authority's public recipient only — no passphrase
// required. Unsealing requires the authority key to be unlocked for the
// session.
type Sealer interface {
	// Setup performs one-time key generation for the sealing authority.
	// Generates a key pair, stores the public recipient in plaintext, and
	// encrypts the private identity with the provided passphrase.
	Setup(passphrase string) error

	// Unlock decrypts the authority identity using the passphrase and holds
	// it in memory for the duration of the session. Returns an error if the
	// passphrase is incorrect. Required before Unseal.
	Unlock(passphrase string) error

	// IsConfigured returns true if the authority key material exists.
	IsConfigured() bool

	// Seal stores raw in sealed form and returns an opaque handle.
	Seal(raw []byte) (handle string, err error)

	// GrantView permits principal to later unseal the value. Idempotent.
	// Fails with ErrNotFound if the handle is unknown.
	GrantView(handle, principal string) error

	// Unseal returns the raw value for a granted principal.
	// Fails with ErrNotFound for an unknown handle and ErrNotAuthorized for
	// a principal without a view grant.
	Unseal(handle, principal string) ([]byte, error)
}
