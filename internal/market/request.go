package market

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// PrincipalID returns the string identity for an ed25519 public key: the
// lowercase hex encoding of the key bytes. This is the principal form used
// throughout the ledger and sealer.
func PrincipalID(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}

// Signer holds a principal's signing credential. Implementations keep the
// private key in memory only for the duration of a session.
type Signer interface {
	// Public returns the principal's public key.
	Public() ed25519.PublicKey

	// Sign signs the canonical bytes of an access request.
	Sign(message []byte) ([]byte, error)
}

// AccessRequest is the structured, typed message a principal signs to request
// release of a sealed secret. Binding the principal, the specific sealed
// handle, and a validity window into one signed structure means the signature
// cannot be reinterpreted as authorizing anything else, and a captured
// request is useless outside its window.
type AccessRequest struct {
	Principal        ed25519.PublicKey // Requester's identity key
	ItemID           int64
	SealedHandle     string
	SessionRecipient string // age recipient the released secret is encrypted to
	IssuedAt         time.Time
	ExpiresAt        time.Time
	Nonce            [32]byte
}

// NewAccessRequest validates the request shape. The validity window is
// [issuedAt, issuedAt+ttl).
func NewAccessRequest(principal ed25519.PublicKey, itemID int64, sealedHandle, sessionRecipient string, issuedAt time.Time, ttl time.Duration, nonce [32]byte) (*AccessRequest, error) {
	if len(principal) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: principal key must be %d bytes", ErrInvalidInput, ed25519.PublicKeySize)
	}
	if sealedHandle == "" {
		return nil, fmt.Errorf("%w: sealed handle must not be empty", ErrInvalidInput)
	}
	if sessionRecipient == "" {
		return nil, fmt.Errorf("%w: session recipient must not be empty", ErrInvalidInput)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: validity window must be positive", ErrInvalidInput)
	}
	return &AccessRequest{
		Principal:        principal,
		ItemID:           itemID,
		SealedHandle:     sealedHandle,
		SessionRecipient: sessionRecipient,
		IssuedAt:         issuedAt.UTC(),
		ExpiresAt:        issuedAt.Add(ttl).UTC(),
		Nonce:            nonce,
	}, nil
}

// CanonicalBytes encodes the request into a deterministic binary
// representation, the exact bytes covered by the signature:
//
//	Principal(32) || ItemID(8, BE) ||
//	len(SealedHandle)(4, BE) || SealedHandle ||
//	len(SessionRecipient)(4, BE) || SessionRecipient ||
//	IssuedAt(8, BE, unix) || ExpiresAt(8, BE, unix) || Nonce(32)
func (r *AccessRequest) CanonicalBytes() ([]byte, error) {
	if len(r.Principal) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: principal key must be %d bytes", ErrInvalidInput, ed25519.PublicKeySize)
	}
	issued := r.IssuedAt.Unix()
	expires := r.ExpiresAt.Unix()
	if issued < 0 || expires < 0 {
		return nil, fmt.Errorf("%w: timestamps must be unix epoch or later", ErrInvalidInput)
	}

	size := ed25519.PublicKeySize + 8 + 4 + len(r.SealedHandle) + 4 + len(r.SessionRecipient) + 8 + 8 + 32
	buf := make([]byte, 0, size)

	buf = append(buf, r.Principal...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.ItemID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.SealedHandle)))
	buf = append(buf, r.SealedHandle...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.SessionRecipient)))
	buf = append(buf, r.SessionRecipient...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(issued))
	buf = binary.BigEndian.AppendUint64(buf, uint64(expires))
	buf = append(buf, r.Nonce[:]...)

	return buf, nil
}

// SignedRequest pairs an access request with the requester's signature over
// its canonical bytes.
type SignedRequest struct {
	Request   *AccessRequest
	Signature []byte
}

// SignRequest signs the request's canonical bytes with the given signer.
// The signer's public key must match the request's principal.
func SignRequest(req *AccessRequest, signer Signer) (*SignedRequest, error) {
	if !req.Principal.Equal(signer.Public()) {
		return nil, fmt.Errorf("%w: signer does not hold the request principal's key", ErrInvalidInput)
	}
	msg, err := req.CanonicalBytes()
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	sig, err := signer.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}
	return &SignedRequest{Request: req, Signature: sig}, nil
}

// Authority releases sealed secrets to principals that prove authorization.
// Submit is network-bound in real deployments — it suspends the calling flow
// and honors ctx for timeout and cancellation. The authority keeps no
// per-request state, so an abandoned call needs no cleanup.
type Authority interface {
	// Submit verifies the signed request and, if the ledger authorizes the
	// signer, returns the raw secret encrypted to the request's session
	// recipient. Fails with ErrSignatureInvalid, ErrExpiredRequest,
	// ErrNotAuthorized, or ErrNotFound.
	Submit(ctx context.Context, signed *SignedRequest) ([]byte, error)
}
