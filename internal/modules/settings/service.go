package settings

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/events"
)

// Service is the admin control plane for runtime tunables. Writes are
// validated against the bounds in models.go, persisted through the
// Repository, and announced on the event bus. Running loops pick the new
// values up at their next tick boundary; nothing is interrupted mid-cycle.
type Service struct {
	repo         *Repository
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new settings service.
func NewService(repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		eventManager: eventManager,
		log:          log.With().Str("service", "settings").Logger(),
	}
}

// SetEvolutionInterval updates the pause between evolution ticks.
func (s *Service) SetEvolutionInterval(seconds int) error {
	if seconds < MinIntervalSeconds {
		return fmt.Errorf("evolution interval %ds below minimum %ds", seconds, MinIntervalSeconds)
	}
	return s.setInt(KeyEvolutionIntervalSeconds, seconds)
}

// SetMonitoringInterval updates the pause between monitoring snapshots.
func (s *Service) SetMonitoringInterval(seconds int) error {
	if seconds < MinIntervalSeconds {
		return fmt.Errorf("monitoring interval %ds below minimum %ds", seconds, MinIntervalSeconds)
	}
	return s.setInt(KeyMonitoringIntervalSeconds, seconds)
}

// SetMaxConcurrentBacktests updates the backtest worker pool bound.
func (s *Service) SetMaxConcurrentBacktests(n int) error {
	if n < MinConcurrentBacktests || n > MaxConcurrentBacktestsCap {
		return fmt.Errorf("max concurrent backtests %d outside [%d, %d]",
			n, MinConcurrentBacktests, MaxConcurrentBacktestsCap)
	}
	return s.setInt(KeyMaxConcurrentBacktests, n)
}

// Update writes a tunable by key after validating its value. This is the
// entry point for generic admin tooling that works with string pairs.
func (s *Service) Update(key, value string) error {
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("setting %s requires an integer value: %w", key, err)
	}

	switch key {
	case KeyEvolutionIntervalSeconds:
		return s.SetEvolutionInterval(intVal)
	case KeyMonitoringIntervalSeconds:
		return s.SetMonitoringInterval(intVal)
	case KeyMaxConcurrentBacktests:
		return s.SetMaxConcurrentBacktests(intVal)
	default:
		return fmt.Errorf("unknown setting key: %s", key)
	}
}

// All returns every stored setting. Unset keys are absent from the map;
// callers render defaults from config.
func (s *Service) All() (map[string]string, error) {
	return s.repo.GetAll()
}

func (s *Service) setInt(key string, value int) error {
	if err := s.repo.SetInt(key, value); err != nil {
		return err
	}

	s.log.Info().Str("key", key).Int("value", value).Msg("Setting updated")
	s.eventManager.EmitTyped(events.SettingsChanged, "settings", &events.SettingsChangedData{
		Key:   key,
		Value: strconv.Itoa(value),
	})
	return nil
}
