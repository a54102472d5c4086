package model

import "time"

// Item represents a listed content item. Immutable after listing; the
// permission set is tracked in separate tables and only ever grows.
type Item struct {
	ID           int64  // Monotonic ordinal assigned by the ledger, never reused
	Creator      string // Principal ID of the creator
	BlobHandle   string // Content-addressed locator in the blob store (SHA-256 hex of the ciphertext package)
	SealedHandle string // Opaque handle to the sealed identity secret
	Price        int64  // Fixed access price, set at listing time
	CreatedAt    time.Time
}

// Permission records that a principal may request release of an item's sealed
// secret. There is no revocation; rows are never deleted.
type Permission struct {
	ItemID    int64
	Principal string
	GrantedAt time.Time
}

// Purchase records a settled payment for an item by a principal.
// At most one per (item, principal); the flag is monotonic and never resets.
type Purchase struct {
	ItemID    int64
	Principal string
	Amount    int64
	CreatedAt time.Time
}

// Account tracks a principal's settled balance, credited when a purchase of
// one of their items settles.
type Account struct {
	Principal string
	Balance   int64
}
