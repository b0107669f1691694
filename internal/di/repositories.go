// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/mcn"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/settings"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/strategies"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Strategy repository (strategy rows, evolution write paths)
	container.StrategyRepo = strategies.NewRepository(
		container.StrategiesDB.Conn(),
		log,
	)

	// Settings repository (runtime tunables; shares strategies.db)
	container.SettingsRepo = settings.NewRepository(
		container.StrategiesDB.Conn(),
		log,
	)

	// Memory core store (fingerprints, lineage edges, regime snapshots)
	container.MemoryStore = mcn.NewStore(
		container.MCNDB.Conn(),
		log,
	)

	log.Info().Msg("All repositories initialized")

	return nil
}
