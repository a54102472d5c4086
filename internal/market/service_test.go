package market_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gracehamilton0/secret-picture/internal/authority"
	"github.com/gracehamilton0/secret-picture/internal/blob"
	"github.com/gracehamilton0/secret-picture/internal/market"
	"github.com/gracehamilton0/secret-picture/internal/seal"
	"github.com/gracehamilton0/secret-picture/internal/testutil"
)

const testPrice = 100

// newTestService wires a market service on in-memory backends with the
// authority and key client in the loop.
func newTestService(t *testing.T) *market.Service {
	t.Helper()

	clock := testutil.FixedClock()
	ledger := testutil.NewTestLedger(t, clock, nil)
	blobs := blob.NewMemoryStore("test")
	sealer := seal.NewMemorySealer(testutil.NewStubIDGenerator())

	auth := authority.NewService(ledger, sealer, clock, nil)
	keys := authority.NewClient(auth, clock, time.Minute)

	return market.NewService(ledger, blobs, sealer, keys, nil, testPrice)
}

func TestService_ListPurchaseUnlock(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	creatorSigner, creator := testutil.NewTestSigner(t)
	buyerSigner, _ := testutil.NewTestSigner(t)

	content := []byte("original artwork bytes")
	itemID, err := svc.List(ctx, creator, content)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	t.Run("buyer purchases and decrypts", func(t *testing.T) {
		got, err := svc.PurchaseAndUnlock(ctx, itemID, testPrice, buyerSigner)
		if err != nil {
			t.Fatalf("PurchaseAndUnlock() error = %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("unlocked content = %q, want %q", got, content)
		}
	})

	t.Run("buyer can unlock again without paying", func(t *testing.T) {
		got, err := svc.PurchaseAndUnlock(ctx, itemID, testPrice, buyerSigner)
		if err != nil {
			t.Fatalf("repeat PurchaseAndUnlock() error = %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("unlocked content = %q, want %q", got, content)
		}

		balance, err := svc.Balance(creator)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}
		if balance != testPrice {
			t.Errorf("creator balance = %d after repeat unlock, want %d (single sale)", balance, testPrice)
		}
	})

	t.Run("creator unlocks own item", func(t *testing.T) {
		got, err := svc.Unlock(ctx, itemID, creatorSigner)
		if err != nil {
			t.Fatalf("creator Unlock() error = %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("unlocked content = %q, want %q", got, content)
		}
	})
}

func TestService_Unlock_WithoutAccess(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, creator := testutil.NewTestSigner(t)
	strangerSigner, _ := testutil.NewTestSigner(t)

	itemID, err := svc.List(ctx, creator, []byte("content"))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if _, err := svc.Unlock(ctx, itemID, strangerSigner); !errors.Is(err, market.ErrNotAuthorized) {
		t.Errorf("Unlock(no access) error = %v, want ErrNotAuthorized", err)
	}
}

func TestService_Purchase_WrongAmount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, creator := testutil.NewTestSigner(t)
	buyerSigner, _ := testutil.NewTestSigner(t)

	itemID, err := svc.List(ctx, creator, []byte("content"))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if _, err := svc.PurchaseAndUnlock(ctx, itemID, testPrice-1, buyerSigner); !errors.Is(err, market.ErrPriceMismatch) {
		t.Errorf("PurchaseAndUnlock(underpay) error = %v, want ErrPriceMismatch", err)
	}
}

func TestService_Purchase_OwnItem(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	creatorSigner, creator := testutil.NewTestSigner(t)

	itemID, err := svc.List(ctx, creator, []byte("content"))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	// The creator is already authorized, so the payment path is skipped and
	// the content decrypts without a purchase record.
	got, err := svc.PurchaseAndUnlock(ctx, itemID, testPrice, creatorSigner)
	if err != nil {
		t.Fatalf("PurchaseAndUnlock(own item) error = %v", err)
	}
	if !bytes.Equal(got, []byte("content")) {
		t.Errorf("unlocked content = %q, want %q", got, "content")
	}

	balance, err := svc.Balance(creator)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance != 0 {
		t.Errorf("creator balance = %d after unlocking own item, want 0", balance)
	}
}

func TestService_GrantThenUnlock(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, creator := testutil.NewTestSigner(t)
	granteeSigner, grantee := testutil.NewTestSigner(t)

	content := []byte("gifted content")
	itemID, err := svc.List(ctx, creator, content)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if err := svc.Grant(itemID, grantee, creator); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	got, err := svc.Unlock(ctx, itemID, granteeSigner)
	if err != nil {
		t.Fatalf("Unlock() after grant error = %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("unlocked content = %q, want %q", got, content)
	}

	// The grantee never paid; nothing settled.
	balance, err := svc.Balance(creator)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance != 0 {
		t.Errorf("creator balance = %d after gift, want 0", balance)
	}
}

func TestService_List_DistinctKeysPerItem(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, creator := testutil.NewTestSigner(t)

	first, err := svc.List(ctx, creator, []byte("same bytes"))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	second, err := svc.List(ctx, creator, []byte("same bytes"))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	a, err := svc.Info(first)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	b, err := svc.Info(second)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}

	// Fresh key per item means identical plaintexts produce distinct
	// ciphertext packages and therefore distinct blob handles.
	if a.BlobHandle == b.BlobHandle {
		t.Error("identical plaintexts share a blob handle")
	}
	if a.SealedHandle == b.SealedHandle {
		t.Error("items share a sealed handle")
	}
}

func TestService_CountAndInfo(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, creator := testutil.NewTestSigner(t)

	n, err := svc.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d on empty market, want 0", n)
	}

	itemID, err := svc.List(ctx, creator, []byte("content"))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	n, err = svc.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	item, err := svc.Info(itemID)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if item.Creator != creator || item.Price != testPrice {
		t.Errorf("Info() = %+v, want creator %s price %d", item, creator, testPrice)
	}

	if _, err := svc.Info(itemID + 99); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("Info(unknown) error = %v, want ErrNotFound", err)
	}
}
