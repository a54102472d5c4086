package market

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gracehamilton0/secret-picture/internal/encryption"
	"github.com/gracehamilton0/secret-picture/internal/model"
)

// Service is the orchestration layer that composes the ledger, blob store,
// sealer, and key client into the end-to-end listing, purchase, and unlock
// workflows. Failure at any step aborts the remaining steps; steps already
// committed (a settled purchase) are not reversed.
type Service struct {
	ledger Ledger
	blobs  BlobStore
	sealer Sealer
	keys   KeyClient
	logger Logger
	price  int64
}

// NewService creates a new Service with the provided dependencies.
// price is the fixed access price applied to newly listed items.
func NewService(ledger Ledger, blobs BlobStore, sealer Sealer, keys KeyClient, logger Logger, price int64) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Service{
		ledger: ledger,
		blobs:  blobs,
		sealer: sealer,
		keys:   keys,
		logger: logger,
		price:  price,
	}
}

// List encrypts content under a fresh per-item key and records the listing:
// derive key, encrypt, store ciphertext, seal the identity secret, record in
// the ledger with the creator's permission seeded. The identity secret never
// leaves this function in plaintext.
func (s *Service) List(ctx context.Context, creator string, plaintext []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if creator == "" {
		return 0, fmt.Errorf("%w: creator must not be empty", ErrInvalidInput)
	}

	secret, err := encryption.NewIdentitySecret()
	if err != nil {
		return 0, fmt.Errorf("generating identity secret: %w", err)
	}

	pkg, err := encryption.Encrypt(plaintext, encryption.DeriveKey(secret))
	if err != nil {
		return 0, fmt.Errorf("encrypting content: %w", err)
	}

	// The blob handle is the SHA-256 of the ciphertext package, so the
	// store is content-addressed and uploads are idempotent.
	sum := sha256.Sum256(pkg)
	blobHandle := hex.EncodeToString(sum[:])
	if err := s.blobs.Put(blobHandle, bytes.NewReader(pkg), int64(len(pkg))); err != nil {
		return 0, fmt.Errorf("storing ciphertext: %w", err)
	}

	sealedHandle, err := s.sealer.Seal(secret[:])
	if err != nil {
		return 0, fmt.Errorf("sealing identity secret: %w", err)
	}
	if err := s.sealer.GrantView(sealedHandle, creator); err != nil {
		return 0, fmt.Errorf("granting creator view: %w", err)
	}

	itemID, err := s.ledger.List(creator, blobHandle, sealedHandle, s.price)
	if err != nil {
		return 0, fmt.Errorf("recording listing: %w", err)
	}

	s.logger.Info("content listed", "item", itemID, "creator", creator, "blob", blobHandle)
	return itemID, nil
}

// PurchaseAndUnlock settles a purchase for the buyer, then runs the
// key-release protocol and decrypts the content. If the buyer is already
// authorized — a prior purchase whose confirmation was lost, or an explicit
// grant — the payment step is skipped, making the operation idempotent from
// the caller's perspective.
func (s *Service) PurchaseAndUnlock(ctx context.Context, itemID int64, payment int64, signer Signer) ([]byte, error) {
	buyer := PrincipalID(signer.Public())

	authorized, err := s.ledger.IsAuthorized(itemID, buyer)
	if err != nil {
		return nil, fmt.Errorf("checking authorization: %w", err)
	}

	if authorized {
		s.logger.Debug("already authorized, skipping payment", "item", itemID, "buyer", buyer)
	} else {
		if err := s.ledger.Purchase(itemID, buyer, payment); err != nil {
			return nil, fmt.Errorf("purchasing item: %w", err)
		}
		s.logger.Info("purchase settled", "item", itemID, "buyer", buyer, "amount", payment)
	}

	return s.Unlock(ctx, itemID, signer)
}

// Unlock runs the key-release protocol for an already-authorized principal
// and decrypts the item's content: request the sealed secret from the
// authority, derive the content key, fetch the ciphertext, decrypt.
func (s *Service) Unlock(ctx context.Context, itemID int64, signer Signer) ([]byte, error) {
	item, err := s.ledger.GetItem(itemID)
	if err != nil {
		return nil, fmt.Errorf("resolving item: %w", err)
	}

	raw, err := s.keys.RequestSecret(ctx, itemID, item.SealedHandle, signer)
	if err != nil {
		return nil, fmt.Errorf("requesting secret: %w", err)
	}

	secret, err := encryption.SecretFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding released secret: %w", err)
	}

	var pkg bytes.Buffer
	if err := s.blobs.Fetch(item.BlobHandle, &pkg); err != nil {
		return nil, fmt.Errorf("fetching ciphertext: %w", err)
	}

	plaintext, err := encryption.Decrypt(pkg.Bytes(), encryption.DeriveKey(secret))
	if err != nil {
		return nil, fmt.Errorf("decrypting content: %w", err)
	}

	s.logger.Info("content unlocked", "item", itemID, "principal", PrincipalID(signer.Public()))
	return plaintext, nil
}

// Grant idempotently adds principal to an item's permission set on behalf of
// the requester (who must be the creator).
func (s *Service) Grant(itemID int64, principal, requester string) error {
	if err := s.ledger.GrantAccess(itemID, principal, requester); err != nil {
		return fmt.Errorf("granting access: %w", err)
	}
	s.logger.Info("access granted", "item", itemID, "principal", principal, "requester", requester)
	return nil
}

// Info returns the item record.
func (s *Service) Info(itemID int64) (*model.Item, error) {
	return s.ledger.GetItem(itemID)
}

// IsAuthorized reports whether principal may obtain the item's key.
func (s *Service) IsAuthorized(itemID int64, principal string) (bool, error) {
	return s.ledger.IsAuthorized(itemID, principal)
}

// Count returns the total number of items ever listed.
func (s *Service) Count() (int64, error) {
	return s.ledger.Count()
}

// Balance returns a principal's settled balance.
func (s *Service) Balance(principal string) (int64, error) {
	return s.ledger.Balance(principal)
}
