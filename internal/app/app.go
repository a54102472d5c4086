package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gracehamilton0/secret-picture/internal/authority"
	"github.com/gracehamilton0/secret-picture/internal/blob"
	"github.com/gracehamilton0/secret-picture/internal/config"
	"github.com/gracehamilton0/secret-picture/internal/identity"
	"github.com/gracehamilton0/secret-picture/internal/ledger"
	"github.com/gracehamilton0/secret-picture/internal/market"
	"github.com/gracehamilton0/secret-picture/internal/model"
	"github.com/gracehamilton0/secret-picture/internal/seal"
)

// App is the application layer between the CLI and the market service. It
// constructs all dependencies from config, exposes high-level operations that
// accept raw CLI arguments, and manages resource lifecycle on Close.
type App struct {
	cfg      *config.Config
	ledger   market.Ledger
	blobs    market.BlobStore
	sealer   market.Sealer
	identity *identity.Manager
	service  *market.Service
	logFile  *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "List", "Purchase"). The caller
// must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	blobs, err := blob.NewBlobStoreFromConfig(cfg.Blob)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	clock := market.RealClock{}
	ldg, err := ledger.NewLedgerFromConfig(cfg.Ledger, clock, market.LogEvents{Logger: log})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	if cfg.Ledger.Type == "sqlite" {
		sl := ldg.(*ledger.SQLiteLedger)
		if err := sl.MigrateUp(); err != nil {
			ldg.Close()
			logFile.Close()
			return nil, fmt.Errorf("migrating ledger schema: %w", err)
		}
		if err := sl.CheckMigrations(); err != nil {
			ldg.Close()
			logFile.Close()
			return nil, fmt.Errorf("ledger schema out of date: %w", err)
		}
	}

	sealer, err := seal.NewSealerFromConfig(cfg.Sealer, market.UUIDGenerator{})
	if err != nil {
		ldg.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	ttl := time.Duration(cfg.TTLSecs) * time.Second
	if ttl <= 0 {
		ttl = config.DefaultTTLSecs * time.Second
	}

	auth := authority.NewService(ldg, sealer, clock, log)
	keys := authority.NewClient(auth, clock, ttl)
	svc := market.NewService(ldg, blobs, sealer, keys, log, cfg.Price)

	return &App{
		cfg:      cfg,
		ledger:   ldg,
		blobs:    blobs,
		sealer:   sealer,
		identity: identity.NewManager(cfg.Identity),
		service:  svc,
		logFile:  logFile,
	}, nil
}

// InitIdentity generates and stores a new principal key pair. Fails if one
// already exists.
func (a *App) InitIdentity(passphrase string) (string, error) {
	if a.identity.IsConfigured() {
		return "", fmt.Errorf("identity already configured at %s", a.cfg.Identity.PublicKeyPath)
	}
	if err := a.identity.Setup(passphrase); err != nil {
		return "", fmt.Errorf("setting up identity: %w", err)
	}
	return a.identity.PrincipalID()
}

// PrincipalID returns the local principal's identity string.
func (a *App) PrincipalID() (string, error) {
	return a.identity.PrincipalID()
}

// unlockSession unlocks the signing identity and, for sealer backends with
// key custody, the sealed store. Commands that touch sealed secrets need
// both.
func (a *App) unlockSession(identityPass, sealerPass string) (market.Signer, error) {
	if !a.identity.IsConfigured() {
		return nil, fmt.Errorf("no identity configured: run `secret-picture identity init` first")
	}
	signer, err := a.identity.Unlock(identityPass)
	if err != nil {
		return nil, fmt.Errorf("unlocking identity: %w", err)
	}
	if err := a.sealer.Unlock(sealerPass); err != nil {
		return nil, fmt.Errorf("unlocking sealed store: %w", err)
	}
	return signer, nil
}

// ListContent reads the file at rawPath, encrypts it, and lists it for sale
// under the local principal. Returns the new item ID.
func (a *App) ListContent(ctx context.Context, rawPath, sealerPass string) (int64, error) {
	creator, err := a.identity.PrincipalID()
	if err != nil {
		return 0, fmt.Errorf("loading identity: %w", err)
	}

	if err := a.ensureSealer(sealerPass); err != nil {
		return 0, err
	}

	plaintext, err := os.ReadFile(rawPath)
	if err != nil {
		return 0, fmt.Errorf("reading content file: %w", err)
	}

	return a.service.List(ctx, creator, plaintext)
}

// Purchase settles a purchase of the item for the local principal and
// returns the decrypted content.
func (a *App) Purchase(ctx context.Context, itemID, payment int64, identityPass, sealerPass string) ([]byte, error) {
	signer, err := a.unlockSession(identityPass, sealerPass)
	if err != nil {
		return nil, err
	}
	return a.service.PurchaseAndUnlock(ctx, itemID, payment, signer)
}

// Unlock re-runs the key-release protocol for an item the local principal
// already has access to and returns the decrypted content.
func (a *App) Unlock(ctx context.Context, itemID int64, identityPass, sealerPass string) ([]byte, error) {
	signer, err := a.unlockSession(identityPass, sealerPass)
	if err != nil {
		return nil, err
	}
	return a.service.Unlock(ctx, itemID, signer)
}

// Grant adds principal to the item's permission set. The local principal
// must be the item's creator.
func (a *App) Grant(itemID int64, principal string) error {
	requester, err := a.identity.PrincipalID()
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}
	return a.service.Grant(itemID, principal, requester)
}

// Info returns the item record.
func (a *App) Info(itemID int64) (*model.Item, error) {
	return a.service.Info(itemID)
}

// Count returns the total number of items ever listed.
func (a *App) Count() (int64, error) {
	return a.service.Count()
}

// Balance returns the settled balance of the local principal.
func (a *App) Balance() (int64, error) {
	principal, err := a.identity.PrincipalID()
	if err != nil {
		return 0, fmt.Errorf("loading identity: %w", err)
	}
	return a.service.Balance(principal)
}

// ensureSealer makes sure the sealed store is set up and unlocked. First use
// generates the store's key pair.
func (a *App) ensureSealer(passphrase string) error {
	if !a.sealer.IsConfigured() {
		if err := a.sealer.Setup(passphrase); err != nil {
			return fmt.Errorf("setting up sealed store: %w", err)
		}
	}
	if err := a.sealer.Unlock(passphrase); err != nil {
		return fmt.Errorf("unlocking sealed store: %w", err)
	}
	return nil
}

// Close releases all resources.
func (a *App) Close() error {
	var firstErr error

	if err := a.ledger.Close(); err != nil {
		firstErr = fmt.Errorf("closing ledger: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
