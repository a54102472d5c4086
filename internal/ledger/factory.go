package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gracehamilton0/secret-picture/internal/config"
	"github.com/gracehamilton0/secret-picture/internal/market"
)

// NewLedgerFromConfig creates a Ledger implementation based on the ledger
// config type.
func NewLedgerFromConfig(cfg config.LedgerConfig, clock market.Clock, events market.EventSink) (market.Ledger, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite ledger")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteLedger(filepath.Join(cfg.DataDir, "ledger.db"), clock, events)
	case "memory":
		l, err := NewSQLiteLedger(":memory:", clock, events)
		if err != nil {
			return nil, err
		}
		// An in-memory ledger starts empty every time; apply the schema now.
		if err := l.MigrateUp(); err != nil {
			l.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger type: %s", cfg.Type)
	}
}
