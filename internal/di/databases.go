// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/config"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/database"
)

// InitializeDatabases initializes both databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. strategies.db - Strategy rows and runtime settings
	strategiesDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/strategies.db",
		Profile: database.ProfileStandard,
		Name:    "strategies",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize strategies database: %w", err)
	}
	container.StrategiesDB = strategiesDB

	// 2. mcn.db - Append-only memory core (fingerprints, lineage, regime snapshots)
	mcnDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/mcn.db",
		Profile: database.ProfileLedger, // Maximum safety for the append-only record
		Name:    "mcn",
	})
	if err != nil {
		strategiesDB.Close()
		return nil, fmt.Errorf("failed to initialize mcn database: %w", err)
	}
	container.MCNDB = mcnDB

	// Apply schemas to both databases (single source of truth)
	for _, db := range []*database.DB{strategiesDB, mcnDB} {
		if err := db.Migrate(); err != nil {
			strategiesDB.Close()
			mcnDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
