package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/database"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/utils"
	"github.com/rs/zerolog"
)

// WALCheckpointJob truncates the WAL file of every database so long-running
// processes never accumulate unbounded journal growth.
type WALCheckpointJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewWALCheckpointJob creates a new WAL checkpoint job.
func NewWALCheckpointJob(databases map[string]*database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		databases: databases,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Run checkpoints every database. A failed checkpoint is logged but never
// fails the job; the next run retries.
func (j *WALCheckpointJob) Run() error {
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("WAL checkpoint failed")
		}
	}
	return nil
}

// Name returns the job name for the scheduler.
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// IntegrityCheckJob runs a full integrity check on every database. A
// corrupted store is the one condition worth failing loudly over, so the
// first failure is returned after all databases have been checked.
type IntegrityCheckJob struct {
	databases map[string]*database.DB
	timeout   time.Duration
	log       zerolog.Logger
}

// NewIntegrityCheckJob creates a new integrity check job.
func NewIntegrityCheckJob(databases map[string]*database.DB, log zerolog.Logger) *IntegrityCheckJob {
	return &IntegrityCheckJob{
		databases: databases,
		timeout:   5 * time.Minute,
		log:       log.With().Str("job", "integrity_check").Logger(),
	}
}

// Run checks every database and reports the first failure.
func (j *IntegrityCheckJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	var firstErr error
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running integrity check")

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("Integrity check failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("integrity check failed for %s: %w", name, err)
			}
		}
	}
	return firstErr
}

// Name returns the job name for the scheduler.
func (j *IntegrityCheckJob) Name() string {
	return "integrity_check"
}

// VacuumJob compacts every database to reclaim space freed by discarded
// strategies and rotated cache windows. Scheduled weekly; VACUUM rewrites
// the whole file, so it stays off the hot path.
type VacuumJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewVacuumJob creates a new vacuum job.
func NewVacuumJob(databases map[string]*database.DB, log zerolog.Logger) *VacuumJob {
	return &VacuumJob{
		databases: databases,
		log:       log.With().Str("job", "vacuum").Logger(),
	}
}

// Run vacuums every database, logging reclaimed space. One failed database
// does not stop the others.
func (j *VacuumJob) Run() error {
	defer utils.OperationTimer("vacuum_all", j.log)()

	for name, db := range j.databases {
		sizeBefore := j.fileSize(db)

		if err := db.Vacuum(); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("VACUUM failed")
			continue
		}

		sizeAfter := j.fileSize(db)
		j.log.Info().
			Str("database", name).
			Float64("size_before_mb", sizeBefore).
			Float64("size_after_mb", sizeAfter).
			Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
			Msg("VACUUM completed")
	}
	return nil
}

// Name returns the job name for the scheduler.
func (j *VacuumJob) Name() string {
	return "vacuum"
}

func (j *VacuumJob) fileSize(db *database.DB) float64 {
	stats, err := db.GetStats()
	if err != nil {
		return 0
	}
	return float64(stats.SizeBytes) / 1024 / 1024
}
