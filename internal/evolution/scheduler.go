// Package evolution runs the strategy evolution loop: a long-lived scheduler
// that draws a prioritized batch each tick, backtests it under a live-tunable
// concurrency cap, evaluates the results, and spawns mutation rounds for
// fresh candidates.
package evolution

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/config"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/evaluation"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/evaluation/workers"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/events"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/mcn"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/settings"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/mutation"
)

// StrategyStore is the slice of the strategy repository the scheduler
// drives: batch selection and the three write paths of the pipeline.
type StrategyStore interface {
	SelectForEvolution(limit int, staleBefore time.Time) ([]*domain.Strategy, error)
	ApplyEvaluation(id string, update *domain.EvaluationUpdate) error
	IncrementAttempts(id string) error
	InsertChildren(children []*domain.Strategy) error
}

// LineageStore is the slice of the memory core the scheduler writes through.
type LineageStore interface {
	Register(fingerprint string, rs domain.RuleSet) error
	Novelty(fingerprint string) (float64, error)
	RecordRegime(fingerprint string, snap mcn.RegimeSnapshot) error
}

// Backtester runs one deterministic backtest.
type Backtester interface {
	Run(ctx context.Context, req *domain.BacktestRequest) (*domain.BacktestResult, error)
}

// StrategyEvaluator scores results and classifies failures.
type StrategyEvaluator interface {
	Evaluate(strat *domain.Strategy, result *domain.BacktestResult, novelty float64, now time.Time) evaluation.Outcome
	EvaluateFailure(strat *domain.Strategy, runErr error) evaluation.Outcome
}

// ChildMutator produces one mutation round for a parent.
type ChildMutator interface {
	Mutate(parent *domain.Strategy, now time.Time) ([]mutation.Child, error)
}

// TickStats summarizes one scheduler tick.
type TickStats struct {
	Selected   int // rows drawn by the priority query
	Dispatched int // workers actually started
	Completed  int // engine runs that produced a result
	Failed     int // engine runs that returned a typed error
	Persisted  int // strategy rows written
	Aborted    int // runs dropped without any write
	Mutations  int // children inserted by mutation steps
}

type tickCounters struct {
	completed atomic.Int32
	failed    atomic.Int32
	persisted atomic.Int32
	aborted   atomic.Int32
	mutations atomic.Int32
}

// Scheduler owns the evolution loop. Tunables are re-read from the settings
// store at every tick boundary; an in-flight tick is never reconfigured.
type Scheduler struct {
	cfg          *config.Config
	settingsRepo *settings.Repository
	strategies   StrategyStore
	memory       LineageStore
	engine       Backtester
	evaluator    StrategyEvaluator
	mutator      ChildMutator
	pool         *workers.Pool
	events       *events.Bus
	log          zerolog.Logger

	// inFlight serializes backtests per strategy across ticks: a strategy
	// that is still running from a previous tick is skipped, never doubled.
	mu       sync.Mutex
	inFlight map[string]struct{}

	workerWg sync.WaitGroup

	started  bool
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
	cancel   context.CancelFunc

	// nowFunc is overridable in tests.
	nowFunc func() time.Time
}

// NewScheduler wires the evolution loop. The pool is shared so monitoring
// can observe in-flight counts.
func NewScheduler(
	cfg *config.Config,
	settingsRepo *settings.Repository,
	strategies StrategyStore,
	memory LineageStore,
	engine Backtester,
	evaluator StrategyEvaluator,
	mutator ChildMutator,
	pool *workers.Pool,
	bus *events.Bus,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		settingsRepo: settingsRepo,
		strategies:   strategies,
		memory:       memory,
		engine:       engine,
		evaluator:    evaluator,
		mutator:      mutator,
		pool:         pool,
		events:       bus,
		log:          log.With().Str("component", "evolution_scheduler").Logger(),
		inFlight:     make(map[string]struct{}),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start launches the scheduler loop. It returns immediately.
func (s *Scheduler) Start() {
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.loop(ctx)

	s.log.Info().
		Int("interval_seconds", s.cfg.EvolutionIntervalSeconds).
		Int("max_concurrent", s.cfg.MaxConcurrentBacktests).
		Msg("Evolution scheduler started")
}

// Stop requests shutdown and blocks until the loop and every in-flight
// worker have exited. Workers abort at their next bar batch; nothing is
// persisted for aborted runs.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.cancel()
	})
	<-s.doneChan
	s.workerWg.Wait()
	s.log.Info().Msg("Evolution scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneChan)

	for {
		interval := time.Duration(s.cfg.EvolutionIntervalSeconds) * time.Second
		timer := time.NewTimer(interval)

		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
		}

		stats := s.RunTick(ctx)
		s.log.Info().
			Int("selected", stats.Selected).
			Int("completed", stats.Completed).
			Int("failed", stats.Failed).
			Int("persisted", stats.Persisted).
			Int("mutations", stats.Mutations).
			Msg("Evolution tick complete")
	}
}

// refreshTunables overlays settings-store values onto the config snapshot.
// Only the scheduler goroutine mutates the config, so tick reads are safe.
func (s *Scheduler) refreshTunables() {
	if s.settingsRepo == nil {
		return
	}
	if err := s.cfg.UpdateFromSettings(s.settingsRepo); err != nil {
		s.log.Warn().Err(err).Msg("Failed to refresh tunables, keeping previous values")
	}
}

// RunTick executes one evolution tick synchronously: refresh tunables, draw
// a batch, dispatch workers up to the concurrency cap, and wait until they
// finish, the tick budget runs out, or shutdown is requested. Work left
// running past the tick budget finishes on its own and simply isn't waited
// for here.
func (s *Scheduler) RunTick(ctx context.Context) TickStats {
	now := s.now().UTC()
	s.refreshTunables()

	cmax := s.cfg.MaxConcurrentBacktests
	s.pool.SetLimit(cmax)

	staleBefore := now.Add(-time.Duration(s.cfg.StaleAfterDays) * 24 * time.Hour)
	batch, err := s.strategies.SelectForEvolution(cmax, staleBefore)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to select evolution batch")
		return TickStats{}
	}

	stats := TickStats{Selected: len(batch)}
	if len(batch) == 0 {
		s.emitTick(stats)
		return stats
	}

	counters := &tickCounters{}
	var wg sync.WaitGroup

	for _, strat := range batch {
		if !s.claim(strat.ID) {
			continue
		}
		if !s.pool.TryAcquire() {
			s.release(strat.ID)
			break
		}

		wg.Add(1)
		s.workerWg.Add(1)
		stats.Dispatched++

		go func(strat *domain.Strategy) {
			defer func() {
				s.pool.Release()
				s.release(strat.ID)
				s.workerWg.Done()
				wg.Done()
			}()
			s.runOne(ctx, strat, counters)
		}(strat)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	tickTimeout := time.Duration(s.cfg.TickTimeoutSec) * time.Second
	timer := time.NewTimer(tickTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		s.log.Warn().Msg("Tick budget exhausted, unfinished work continues into the next tick")
	case <-ctx.Done():
		// Shutdown: workers notice the cancellation at their next bar batch
		// and abort without persisting. Wait so nothing runs past Stop.
		<-done
	}

	stats.Completed = int(counters.completed.Load())
	stats.Failed = int(counters.failed.Load())
	stats.Persisted = int(counters.persisted.Load())
	stats.Aborted = int(counters.aborted.Load())
	stats.Mutations = int(counters.mutations.Load())

	s.emitTick(stats)
	return stats
}

func (s *Scheduler) emitTick(stats TickStats) {
	s.events.Emit(events.EvolutionTickCompleted, "evolution", map[string]interface{}{
		"selected":   stats.Selected,
		"dispatched": stats.Dispatched,
		"completed":  stats.Completed,
		"failed":     stats.Failed,
		"persisted":  stats.Persisted,
		"aborted":    stats.Aborted,
		"mutations":  stats.Mutations,
	})
}

// runOne is the whole per-strategy pipeline: register, novelty, backtest,
// evaluate, persist, and possibly mutate.
func (s *Scheduler) runOne(ctx context.Context, strat *domain.Strategy, counters *tickCounters) {
	now := s.now().UTC()
	log := s.log.With().Str("strategy", strat.ID).Logger()

	fp := strat.Fingerprint
	if fp == "" {
		fp = mcn.Fingerprint(&strat.RuleSet)
	}

	if err := s.memory.Register(fp, strat.RuleSet); err != nil {
		log.Error().Err(err).Msg("Failed to register fingerprint, run aborted")
		counters.aborted.Add(1)
		return
	}
	novelty, err := s.memory.Novelty(fp)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute novelty, run aborted")
		counters.aborted.Add(1)
		return
	}

	req := s.buildRequest(strat, now)

	btCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.BacktestTimeoutSec)*time.Second)
	result, runErr := s.engine.Run(btCtx, req)
	cancel()

	var outcome evaluation.Outcome
	if runErr != nil {
		counters.failed.Add(1)
		outcome = s.evaluator.EvaluateFailure(strat, runErr)
		s.events.Emit(events.BacktestFailed, "evolution", map[string]interface{}{
			"strategy_id": strat.ID,
			"kind":        outcome.FailureKind,
			"error":       runErr.Error(),
		})
	} else {
		counters.completed.Add(1)
		outcome = s.evaluator.Evaluate(strat, result, novelty, now)
		s.events.Emit(events.BacktestCompleted, "evolution", map[string]interface{}{
			"strategy_id": strat.ID,
			"run_id":      result.RunID,
			"window_hash": result.WindowHash,
		})
	}

	s.applyOutcome(log, strat, fp, outcome, now, counters)
}

// buildRequest pins the backtest window to the bar grid so repeated ticks
// inside one interval reuse the same cached window.
func (s *Scheduler) buildRequest(strat *domain.Strategy, now time.Time) *domain.BacktestRequest {
	end := now
	if d, err := domain.IntervalDuration(s.cfg.BacktestInterval); err == nil {
		end = now.Truncate(d)
	}
	return &domain.BacktestRequest{
		StrategyID: strat.ID,
		RuleSet:    strat.RuleSet,
		Symbols:    s.cfg.BacktestSymbols,
		Interval:   s.cfg.BacktestInterval,
		Start:      end.AddDate(0, 0, -s.cfg.BacktestWindowDays),
		End:        end,
		CostBps:    s.cfg.TransactionCostBps,
	}
}

func (s *Scheduler) applyOutcome(log zerolog.Logger, strat *domain.Strategy, fp string, outcome evaluation.Outcome, now time.Time, counters *tickCounters) {
	if outcome.Abort {
		log.Warn().Str("kind", outcome.FailureKind).Msg("Run aborted, no state written")
		counters.aborted.Add(1)
		return
	}

	if outcome.IncrementAttempts && !outcome.Persist {
		if err := s.strategies.IncrementAttempts(strat.ID); err != nil {
			log.Error().Err(err).Msg("Failed to increment attempts")
		}
		return
	}

	if !outcome.Persist {
		return
	}

	if err := s.strategies.ApplyEvaluation(strat.ID, &outcome.Update); err != nil {
		log.Error().Err(err).Msg("Failed to persist evaluation")
		return
	}
	counters.persisted.Add(1)

	for _, snap := range outcome.Snapshots {
		if err := s.memory.RecordRegime(fp, snap); err != nil {
			log.Warn().Err(err).Str("regime", string(snap.Regime)).Msg("Failed to record regime snapshot")
		}
	}

	score := 0.0
	if outcome.Update.Score != nil {
		score = *outcome.Update.Score
	}
	s.events.Emit(events.StrategyEvaluated, "evolution", map[string]interface{}{
		"strategy_id": strat.ID,
		"status":      string(outcome.Update.Status),
		"score":       score,
	})
	if outcome.StatusChanged {
		s.events.Emit(events.StrategyStatusChanged, "evolution", map[string]interface{}{
			"strategy_id": strat.ID,
			"old_status":  string(outcome.OldStatus),
			"new_status":  string(outcome.NewStatus),
		})
	}

	if outcome.SpawnMutation {
		s.spawnMutation(log, strat, now, counters)
	}
}

// spawnMutation runs one mutation step for a fresh candidate. The step
// consumes one attempt whether or not any child was accepted; an insert
// failure leaves the budget untouched so the step can retry next time.
func (s *Scheduler) spawnMutation(log zerolog.Logger, parent *domain.Strategy, now time.Time, counters *tickCounters) {
	children, err := s.mutator.Mutate(parent, now)
	if err != nil {
		log.Error().Err(err).Msg("Mutation step failed")
	}

	if len(children) > 0 {
		rows := make([]*domain.Strategy, len(children))
		for i, c := range children {
			rows[i] = c.Strategy
		}
		if err := s.strategies.InsertChildren(rows); err != nil {
			log.Error().Err(err).Msg("Failed to insert mutation children")
			return
		}
		counters.mutations.Add(int32(len(rows)))
	}

	if err := s.strategies.IncrementAttempts(parent.ID); err != nil {
		log.Error().Err(err).Msg("Failed to increment attempts after mutation step")
	}

	s.events.Emit(events.MutationSpawned, "evolution", map[string]interface{}{
		"parent_id": parent.ID,
		"children":  len(children),
	})
}

func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// InFlight reports how many backtests are currently running.
func (s *Scheduler) InFlight() int {
	return s.pool.InFlight()
}

func (s *Scheduler) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now()
}
