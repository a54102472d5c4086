package testutil

import (
	"testing"

	"github.com/gracehamilton0/secret-picture/internal/ledger"
	"github.com/gracehamilton0/secret-picture/internal/market"
)

// NewTestLedger creates a new in-memory SQLite ledger with schema applied.
// The ledger is automatically closed when the test completes.
func NewTestLedger(t *testing.T, clock market.Clock, events market.EventSink) *ledger.SQLiteLedger {
	t.Helper()

	l, err := ledger.NewSQLiteLedger(":memory:", clock, events)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}

	if err := l.MigrateUp(); err != nil {
		l.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		l.Close()
	})

	return l
}
