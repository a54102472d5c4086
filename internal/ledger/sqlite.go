// Package ledger implements the permission state machine on SQLite. Items,
// permission sets, purchase records, and account balances live in one
// database; every mutating operation runs in a single transaction so the
// business-rule check and the state change commit as one unit.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gracehamilton0/secret-picture/internal/ledger/migrations"
	"github.com/gracehamilton0/secret-picture/internal/market"
	"github.com/gracehamilton0/secret-picture/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLedger implements the market.Ledger interface using SQLite.
type SQLiteLedger struct {
	db     *sql.DB
	clock  market.Clock
	events market.EventSink
	path   string
}

// NewSQLiteLedger opens a ledger at the given path.
// path can be a file path or ":memory:" for an in-memory ledger.
func NewSQLiteLedger(path string, clock market.Clock, events market.EventSink) (*SQLiteLedger, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteLedgerFromDB(db, clock, events), nil
}

// NewSQLiteLedgerFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteLedgerFromDB(db *sql.DB, clock market.Clock, events market.EventSink) *SQLiteLedger {
	if clock == nil {
		clock = market.RealClock{}
	}
	if events == nil {
		events = market.NopEvents{}
	}
	return &SQLiteLedger{
		db:     db,
		clock:  clock,
		events: events,
	}
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a properly configured
// connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each pooled connection to ":memory:" gets its own database; pin the
	// pool to one connection so the schema is shared.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// List records a new item and seeds its permission set with the creator in
// one transaction. Returns the item's monotonically increasing ID.
func (l *SQLiteLedger) List(creator, blobHandle, sealedHandle string, price int64) (int64, error) {
	if creator == "" {
		return 0, fmt.Errorf("%w: creator must not be empty", market.ErrInvalidInput)
	}
	if blobHandle == "" {
		return 0, fmt.Errorf("%w: blob handle must not be empty", market.ErrInvalidInput)
	}
	if sealedHandle == "" {
		return 0, fmt.Errorf("%w: sealed handle must not be empty", market.ErrInvalidInput)
	}
	if price < 0 {
		return 0, fmt.Errorf("%w: price must not be negative", market.ErrInvalidInput)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := l.clock.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO items (creator, blob_handle, sealed_handle, price, created_at) VALUES (?, ?, ?, ?, ?)`,
		creator, blobHandle, sealedHandle, price, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting item: %w", err)
	}

	itemID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading item id: %w", err)
	}

	// The creator is always a member of the permission set.
	_, err = tx.Exec(
		`INSERT INTO permissions (item_id, principal, granted_at) VALUES (?, ?, ?)`,
		itemID, creator, now,
	)
	if err != nil {
		return 0, fmt.Errorf("seeding creator permission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	l.events.ItemListed(itemID, creator, blobHandle)
	return itemID, nil
}

// Purchase settles a payment and grants the buyer permission atomically.
// The full amount is credited to the creator's account; any failure rolls
// back the whole operation, so permission is never granted without the
// payment settled.
func (l *SQLiteLedger) Purchase(itemID int64, principal string, amount int64) error {
	if principal == "" {
		return fmt.Errorf("%w: principal must not be empty", market.ErrInvalidInput)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getItemTx(tx, itemID)
	if err != nil {
		return err
	}

	if principal == item.Creator {
		return fmt.Errorf("%w: item %d", market.ErrSelfPurchase, itemID)
	}
	if amount != item.Price {
		return fmt.Errorf("%w: paid %d, price is %d", market.ErrPriceMismatch, amount, item.Price)
	}

	var exists int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM purchases WHERE item_id = ? AND principal = ?`,
		itemID, principal,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking purchase record: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: item %d", market.ErrAlreadyPurchased, itemID)
	}

	now := l.clock.Now().UTC()
	_, err = tx.Exec(
		`INSERT INTO purchases (item_id, principal, amount, created_at) VALUES (?, ?, ?, ?)`,
		itemID, principal, amount, now,
	)
	if err != nil {
		return fmt.Errorf("recording purchase: %w", err)
	}

	// Route the full payment to the creator. A failure here aborts the
	// transaction, rolling back the purchase record with it.
	_, err = tx.Exec(
		`INSERT INTO accounts (principal, balance) VALUES (?, ?)
		 ON CONFLICT (principal) DO UPDATE SET balance = balance + excluded.balance`,
		item.Creator, amount,
	)
	if err != nil {
		return fmt.Errorf("crediting creator: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO permissions (item_id, principal, granted_at) VALUES (?, ?, ?)
		 ON CONFLICT (item_id, principal) DO NOTHING`,
		itemID, principal, now,
	)
	if err != nil {
		return fmt.Errorf("granting permission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	l.events.ItemPurchased(itemID, principal, amount)
	l.events.AccessGranted(itemID, principal)
	return nil
}

// GrantAccess idempotently adds principal to the item's permission set.
// Only the creator may grant; re-granting is a no-op, not an error, because
// creators may call this defensively.
func (l *SQLiteLedger) GrantAccess(itemID int64, principal, requester string) error {
	if principal == "" {
		return fmt.Errorf("%w: principal must not be empty", market.ErrInvalidInput)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getItemTx(tx, itemID)
	if err != nil {
		return err
	}

	if requester != item.Creator {
		return fmt.Errorf("%w: only the creator may grant access to item %d", market.ErrNotAuthorized, itemID)
	}

	res, err := tx.Exec(
		`INSERT INTO permissions (item_id, principal, granted_at) VALUES (?, ?, ?)
		 ON CONFLICT (item_id, principal) DO NOTHING`,
		itemID, principal, l.clock.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("granting permission: %w", err)
	}

	added, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking grant result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	if added > 0 {
		l.events.AccessGranted(itemID, principal)
	}
	return nil
}

// IsAuthorized reports whether principal may request release of the item's
// sealed secret: true iff principal is the creator or in the permission set.
func (l *SQLiteLedger) IsAuthorized(itemID int64, principal string) (bool, error) {
	item, err := l.GetItem(itemID)
	if err != nil {
		return false, err
	}
	if principal == item.Creator {
		return true, nil
	}

	var count int
	err = l.db.QueryRow(
		`SELECT COUNT(*) FROM permissions WHERE item_id = ? AND principal = ?`,
		itemID, principal,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking permission: %w", err)
	}
	return count > 0, nil
}

// GetItem returns the item record.
func (l *SQLiteLedger) GetItem(itemID int64) (*model.Item, error) {
	var item model.Item
	err := l.db.QueryRow(
		`SELECT id, creator, blob_handle, sealed_handle, price, created_at FROM items WHERE id = ?`,
		itemID,
	).Scan(&item.ID, &item.Creator, &item.BlobHandle, &item.SealedHandle, &item.Price, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: item %d", market.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("finding item: %w", err)
	}
	return &item, nil
}

// Count returns the total number of items ever listed. Items are never
// deleted, so the row count is the lifetime counter.
func (l *SQLiteLedger) Count() (int64, error) {
	var count int64
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return count, nil
}

// Balance returns a principal's settled balance. Unknown principals have
// balance zero.
func (l *SQLiteLedger) Balance(principal string) (int64, error) {
	var balance int64
	err := l.db.QueryRow(
		`SELECT COALESCE((SELECT balance FROM accounts WHERE principal = ?), 0)`,
		principal,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	return balance, nil
}

// CheckMigrations verifies the ledger schema is up-to-date.
func (l *SQLiteLedger) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(l.db)
}

// MigrateUp applies all pending schema migrations.
func (l *SQLiteLedger) MigrateUp() error {
	return migrations.MigrateUp(l.db)
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

func getItemTx(tx *sql.Tx, itemID int64) (*model.Item, error) {
	var item model.Item
	err := tx.QueryRow(
		`SELECT id, creator, blob_handle, sealed_handle, price, created_at FROM items WHERE id = ?`,
		itemID,
	).Scan(&item.ID, &item.Creator, &item.BlobHandle, &item.SealedHandle, &item.Price, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: item %d", market.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("finding item: %w", err)
	}
	return &item, nil
}

// Compile-time check that SQLiteLedger implements market.Ledger
var _ market.Ledger = (*SQLiteLedger)(nil)
