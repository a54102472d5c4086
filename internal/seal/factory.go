package seal

import (
	"fmt"

	"github.com/gracehamilton0/secret-picture/internal/config"
	"github.com/gracehamilton0/secret-picture/internal/market"
)

// NewSealerFromConfig creates a Sealer based on the configuration type.
func NewSealerFromConfig(cfg config.SealerConfig, idgen market.IDGenerator) (market.Sealer, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeSealer(cfg, idgen), nil
	case "memory":
		return NewMemorySealer(idgen), nil
	default:
		return nil, fmt.Errorf("unknown sealer type: %q", cfg.Type)
	}
}
