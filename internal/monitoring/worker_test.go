package monitoring

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/database"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/mcn"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/settings"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/strategies"
	testingpkg "github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGauge struct {
	inFlight int
	calls    atomic.Int32
}

func (g *stubGauge) InFlight() int {
	g.calls.Add(1)
	return g.inFlight
}

type stubBars struct {
	bars    int
	windows int
}

func (b *stubBars) Stats() (int, int, error) {
	return b.bars, b.windows, nil
}

type workerStack struct {
	worker   *Worker
	repo     *strategies.Repository
	memory   *mcn.Store
	settings *settings.Repository
	gauge    *stubGauge
}

func newTestWorker(t *testing.T) *workerStack {
	t.Helper()

	strategiesDB, cleanupStrategies := testingpkg.NewTestDB(t, "strategies")
	t.Cleanup(cleanupStrategies)
	mcnDB, cleanupMCN := testingpkg.NewTestDB(t, "mcn")
	t.Cleanup(cleanupMCN)

	log := zerolog.Nop()
	repo := strategies.NewRepository(strategiesDB.Conn(), log)
	memory := mcn.NewStore(mcnDB.Conn(), log)
	settingsRepo := settings.NewRepository(strategiesDB.Conn(), log)
	gauge := &stubGauge{inFlight: 2}
	bars := &stubBars{bars: 1460, windows: 2}

	worker := NewWorker(
		map[string]*database.DB{"strategies": strategiesDB, "mcn": mcnDB},
		repo,
		memory,
		gauge,
		bars,
		settingsRepo,
		t.TempDir(),
		60,
		log,
	)

	return &workerStack{
		worker:   worker,
		repo:     repo,
		memory:   memory,
		settings: settingsRepo,
		gauge:    gauge,
	}
}

func TestCollectGathersSystemAndDomainCounts(t *testing.T) {
	stack := newTestWorker(t)

	for i, status := range []domain.Status{
		domain.StatusExperiment,
		domain.StatusExperiment,
		domain.StatusCandidate,
		domain.StatusProposable,
	} {
		strat := testingpkg.NewStrategyFixture(string(rune('a'+i)), "strat")
		strat.Status = status
		strat.IsProposable = status == domain.StatusProposable
		require.NoError(t, stack.repo.Insert(strat))
	}

	rs := testingpkg.NewStrategyFixture("seed", "seed").RuleSet
	parentFP := mcn.Fingerprint(&rs)
	require.NoError(t, stack.memory.Register(parentFP, rs))

	child := testingpkg.NewTrendCrossFixture("child", "child")
	childFP := mcn.Fingerprint(&child.RuleSet)
	require.NoError(t, stack.memory.Register(childFP, child.RuleSet))
	require.NoError(t, stack.memory.LinkChild(parentFP, childFP, domain.MutationRuleSwap))

	snap := stack.worker.Collect(context.Background())

	assert.Equal(t, 2, snap.Strategies[domain.StatusExperiment])
	assert.Equal(t, 1, snap.Strategies[domain.StatusCandidate])
	assert.Equal(t, 1, snap.Strategies[domain.StatusProposable])
	assert.Equal(t, 2, snap.Fingerprints)
	assert.Equal(t, 1, snap.LineageEdges)
	assert.Equal(t, 2, snap.InFlightBacktests)
	assert.Equal(t, 1460, snap.CachedBars)
	assert.Equal(t, 2, snap.CachedWindows)
	assert.Positive(t, snap.Goroutines)
	assert.False(t, snap.Timestamp.IsZero())

	require.Len(t, snap.Databases, 2)
	for name, db := range snap.Databases {
		assert.True(t, db.Healthy, "database %s should be healthy", name)
		assert.Positive(t, db.SizeBytes, "database %s should have a file size", name)
	}
}

func TestRunSkipsUntilIntervalElapses(t *testing.T) {
	stack := newTestWorker(t)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stack.worker.nowFunc = func() time.Time { return now }

	require.NoError(t, stack.worker.Run())
	assert.Equal(t, int32(1), stack.gauge.calls.Load())

	// Default interval is 60s; 10s later the gate holds.
	now = now.Add(10 * time.Second)
	require.NoError(t, stack.worker.Run())
	assert.Equal(t, int32(1), stack.gauge.calls.Load())

	now = now.Add(55 * time.Second)
	require.NoError(t, stack.worker.Run())
	assert.Equal(t, int32(2), stack.gauge.calls.Load())
}

func TestRunReadsIntervalFromSettings(t *testing.T) {
	stack := newTestWorker(t)
	require.NoError(t, stack.settings.SetInt(settings.KeyMonitoringIntervalSeconds, 120))

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stack.worker.nowFunc = func() time.Time { return now }

	require.NoError(t, stack.worker.Run())
	assert.Equal(t, int32(1), stack.gauge.calls.Load())

	// 90s is past the 60s default but inside the stored 120s interval.
	now = now.Add(90 * time.Second)
	require.NoError(t, stack.worker.Run())
	assert.Equal(t, int32(1), stack.gauge.calls.Load())

	now = now.Add(31 * time.Second)
	require.NoError(t, stack.worker.Run())
	assert.Equal(t, int32(2), stack.gauge.calls.Load())
}

func TestIntervalClampsStoredValueToFloor(t *testing.T) {
	stack := newTestWorker(t)
	require.NoError(t, stack.settings.SetInt(settings.KeyMonitoringIntervalSeconds, 5))

	assert.Equal(t, time.Duration(settings.MinIntervalSeconds)*time.Second, stack.worker.interval())
}

func TestNewWorkerClampsDefaultInterval(t *testing.T) {
	stack := newTestWorker(t)
	_ = stack

	worker := NewWorker(nil, stack.repo, nil, nil, nil, stack.settings, t.TempDir(), 1, zerolog.Nop())
	assert.Equal(t, time.Duration(settings.MinIntervalSeconds)*time.Second, worker.interval())
}

func TestCollectSurvivesMissingOptionalSources(t *testing.T) {
	strategiesDB, cleanup := testingpkg.NewTestDB(t, "strategies")
	t.Cleanup(cleanup)

	log := zerolog.Nop()
	worker := NewWorker(
		map[string]*database.DB{"strategies": strategiesDB},
		strategies.NewRepository(strategiesDB.Conn(), log),
		nil,
		nil,
		nil,
		settings.NewRepository(strategiesDB.Conn(), log),
		t.TempDir(),
		60,
		log,
	)

	snap := worker.Collect(context.Background())
	assert.Zero(t, snap.Fingerprints)
	assert.Zero(t, snap.InFlightBacktests)
	assert.Zero(t, snap.CachedBars)
	assert.Len(t, snap.Databases, 1)
}
