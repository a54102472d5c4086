package ledger_test

import (
	"reflect"
	"testing"

	"github.com/gracehamilton0/secret-picture/internal/testutil"
)

func TestSQLiteLedger_EmitsEvents(t *testing.T) {
	events := testutil.NewRecordingEvents()
	l := testutil.NewTestLedger(t, nil, events)

	id, err := l.List("alice", "blob-1", "sealed-1", 100)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if err := l.Purchase(id, "bob", 100); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if err := l.GrantAccess(id, "carol", "alice"); err != nil {
		t.Fatalf("GrantAccess() error = %v", err)
	}

	want := []string{
		"listed:1:alice",
		"purchased:1:bob:100",
		"granted:1:bob",
		"granted:1:carol",
	}
	if got := events.Events(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSQLiteLedger_RepeatedGrantEmitsNothing(t *testing.T) {
	events := testutil.NewRecordingEvents()
	l := testutil.NewTestLedger(t, nil, events)

	id, err := l.List("alice", "blob-1", "sealed-1", 100)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if err := l.GrantAccess(id, "bob", "alice"); err != nil {
		t.Fatalf("GrantAccess() error = %v", err)
	}

	before := len(events.Events())

	// Re-granting an existing permission is a no-op and must not be
	// announced as a new grant.
	if err := l.GrantAccess(id, "bob", "alice"); err != nil {
		t.Fatalf("repeated GrantAccess() error = %v", err)
	}

	if got := events.Events(); len(got) != before {
		t.Errorf("repeated grant emitted events: %v", got[before:])
	}
}

func TestSQLiteLedger_FailedPurchaseEmitsNothing(t *testing.T) {
	events := testutil.NewRecordingEvents()
	l := testutil.NewTestLedger(t, nil, events)

	id, err := l.List("alice", "blob-1", "sealed-1", 100)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	before := len(events.Events())

	if err := l.Purchase(id, "bob", 99); err == nil {
		t.Fatal("Purchase(wrong amount) succeeded, want error")
	}
	if err := l.Purchase(id, "alice", 100); err == nil {
		t.Fatal("Purchase(creator) succeeded, want error")
	}

	if got := events.Events(); len(got) != before {
		t.Errorf("rejected purchases emitted events: %v", got[before:])
	}
}
