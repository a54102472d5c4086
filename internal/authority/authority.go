// Package authority implements the key-release side of the authorization
// protocol. The authority performs its own cryptographic verification of each
// signed access request, re-queries the ledger's permission state at submit
// time, and only then unseals the identity secret — returning it encrypted to
// the requester's session recipient so nothing observing the exchange can
// read it.
package authority

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"filippo.io/age"

	"github.com/gracehamilton0/secret-picture/internal/market"
)

// Service validates access requests and releases sealed secrets. It keeps no
// per-request state: a caller abandoning a Submit leaves nothing to clean up.
type Service struct {
	ledger market.Ledger
	sealer market.Sealer
	clock  market.Clock
	logger market.Logger
}

var _ market.Authority = (*Service)(nil)

// NewService creates an authority backed by the given ledger and sealer.
func NewService(ledger market.Ledger, sealer market.Sealer, clock market.Clock, logger market.Logger) *Service {
	if clock == nil {
		clock = market.RealClock{}
	}
	if logger == nil {
		logger = market.NewNopLogger()
	}
	return &Service{
		ledger: ledger,
		sealer: sealer,
		clock:  clock,
		logger: logger,
	}
}

// Submit verifies the signed request and releases the sealed secret if the
// ledger authorizes the signer. The checks run in a fixed order: signature,
// validity window, item binding, permission, unseal. The returned bytes are
// the raw secret encrypted to the request's session recipient.
func (s *Service) Submit(ctx context.Context, signed *market.SignedRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if signed == nil || signed.Request == nil {
		return nil, fmt.Errorf("%w: missing request", market.ErrInvalidInput)
	}
	req := signed.Request

	// 1. The signature must verify against the principal key embedded in
	// the structured message. An identity claimed anywhere else is ignored.
	msg, err := req.CanonicalBytes()
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	if len(req.Principal) != ed25519.PublicKeySize || !ed25519.Verify(req.Principal, msg, signed.Signature) {
		return nil, fmt.Errorf("%w: item %d", market.ErrSignatureInvalid, req.ItemID)
	}

	// 2. Validity window. Requests from the future are rejected the same as
	// expired ones: both are outside [IssuedAt, ExpiresAt).
	now := s.clock.Now()
	if now.Before(req.IssuedAt) || !now.Before(req.ExpiresAt) {
		return nil, fmt.Errorf("%w: item %d, window [%s, %s)", market.ErrExpiredRequest,
			req.ItemID, req.IssuedAt.Format("2006-01-02T15:04:05Z"), req.ExpiresAt.Format("2006-01-02T15:04:05Z"))
	}

	// 3. The request's sealed handle must be the one the ledger recorded for
	// the item, so a signature over one item cannot release another's secret.
	item, err := s.ledger.GetItem(req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("resolving item: %w", err)
	}
	if item.SealedHandle != req.SealedHandle {
		return nil, fmt.Errorf("%w: request handle does not match item %d", market.ErrInvalidInput, req.ItemID)
	}

	// 4. Permission is re-queried at submit time; earlier reads may be stale.
	principal := market.PrincipalID(req.Principal)
	authorized, err := s.ledger.IsAuthorized(req.ItemID, principal)
	if err != nil {
		return nil, fmt.Errorf("checking authorization: %w", err)
	}
	if !authorized {
		return nil, fmt.Errorf("%w: item %d", market.ErrNotAuthorized, req.ItemID)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Extend the sealed store's own grant to the now-authorized principal
	// and unseal. GrantView is idempotent and auditable.
	if err := s.sealer.GrantView(req.SealedHandle, principal); err != nil {
		return nil, fmt.Errorf("granting view: %w", err)
	}
	raw, err := s.sealer.Unseal(req.SealedHandle, principal)
	if err != nil {
		return nil, fmt.Errorf("unsealing secret: %w", err)
	}

	wrapped, err := encryptToRecipient(req.SessionRecipient, raw)
	if err != nil {
		return nil, fmt.Errorf("wrapping secret for requester: %w", err)
	}

	s.logger.Info("secret released", "item", req.ItemID, "principal", principal)
	return wrapped, nil
}

// encryptToRecipient encrypts raw to an age recipient string so only the
// requester's session identity can read the released secret.
func encryptToRecipient(recipient string, raw []byte) ([]byte, error) {
	r, err := age.ParseX25519Recipient(recipient)
	if err != nil {
		return nil, fmt.Errorf("parsing session recipient: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, r)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("encrypting secret: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encrypted secret: %w", err)
	}
	return buf.Bytes(), nil
}
