package market

import "github.com/gracehamilton0/secret-picture/internal/model"

// Ledger is the permission state machine: it records listed items, who is
// authorized to request release of each item's sealed secret, and which
// purchases have settled. All mutating operations are transactional — the
// check and the state change commit as one unit, so concurrent purchases of
// the same item by the same principal cannot both succeed.
type Ledger interface {
	// List records a new item and seeds its permission set with the creator.
	// Returns the item's monotonically increasing ID.
	// Fails with ErrInvalidInput if blobHandle or sealedHandle is empty.
	List(creator, blobHandle, sealedHandle string, price int64) (int64, error)

	// Purchase settles a payment for an item and grants the buyer permission,
	// atomically. The full amount is credited to the creator; the ledger
	// retains nothing. Fails with ErrNotFound, ErrSelfPurchase,
	// ErrPriceMismatch (exact match only), or ErrAlreadyPurchased. A failed
	// payout rolls back the entire operation.
	Purchase(itemID int64, principal string, amount int64) error

	// GrantAccess idempotently adds principal to the item's permission set.
	// Only the item's creator may grant. Fails with ErrNotFound,
	// ErrNotAuthorized (requester is not the creator), or ErrInvalidInput
	// (empty principal). Re-granting is a no-op, not an error.
	GrantAccess(itemID int64, principal, requester string) error

	// IsAuthorized reports whether principal may request release of the
	// item's sealed secret. Fails with ErrNotFound if the item is unknown.
	IsAuthorized(itemID int64, principal string) (bool, error)

	// GetItem returns the item record. Fails with ErrNotFound if absent.
	GetItem(itemID int64) (*model.Item, error)

	// Count returns the total number of items ever listed.
	Count() (int64, error)

	// Balance returns a principal's settled balance. Unknown principals have
	// balance zero.
	Balance(principal string) (int64, error)

	// Close closes the underlying store.
	Close() error
}
