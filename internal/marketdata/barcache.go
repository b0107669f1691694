package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// barCacheSchema holds fetched bars plus one row per fully cached window.
// A window row is written only after every bar of the window is stored, so
// a Get hit always returns the complete series the provider served.
const barCacheSchema = `
CREATE TABLE IF NOT EXISTS bars (
    symbol   TEXT NOT NULL,
    interval TEXT NOT NULL,
    ts       INTEGER NOT NULL,
    open     REAL NOT NULL,
    high     REAL NOT NULL,
    low      REAL NOT NULL,
    close    REAL NOT NULL,
    volume   REAL NOT NULL,
    PRIMARY KEY (symbol, interval, ts)
);

CREATE TABLE IF NOT EXISTS bar_windows (
    window_hash TEXT PRIMARY KEY,
    symbol      TEXT NOT NULL,
    interval    TEXT NOT NULL,
    start_ts    INTEGER NOT NULL,
    end_ts      INTEGER NOT NULL,
    cached_at   INTEGER NOT NULL
);
`

// BarCache is the on-disk bar store (bars.db). Provider responses are cached
// per window hash; a hit serves the backtest engine without spending rate
// limiter tokens.
type BarCache struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBarCache opens (creating if needed) the bar cache database at path.
func NewBarCache(path string, log zerolog.Logger) (*BarCache, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open bar cache %s: %w", path, err)
	}

	if _, err := db.Exec(barCacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bar cache schema: %w", err)
	}

	return &BarCache{
		db:  db,
		log: log.With().Str("component", "bar_cache").Logger(),
	}, nil
}

// Close releases the underlying database handle.
func (c *BarCache) Close() error {
	return c.db.Close()
}

// Get returns the cached bars for a window, or (nil, false) when the window
// was never fully cached.
func (c *BarCache) Get(windowHash, symbol, interval string, start, end time.Time) ([]domain.Bar, bool, error) {
	var one int
	err := c.db.QueryRow("SELECT 1 FROM bar_windows WHERE window_hash = ?", windowHash).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to check cached window: %w", err)
	}

	rows, err := c.db.Query(`
		SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND interval = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, symbol, interval, start.Unix(), end.Unix())
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cached bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var ts int64
		var b domain.Bar
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, false, fmt.Errorf("failed to scan cached bar: %w", err)
		}
		b.Ts = time.Unix(ts, 0).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating cached bars: %w", err)
	}

	return bars, true, nil
}

// Put stores a window's bars and marks the window complete, in one
// transaction. Bars shared with overlapping windows are upserted in place.
func (c *BarCache) Put(windowHash, symbol, interval string, start, end time.Time, bars []domain.Bar) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars
		(symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err = stmt.Exec(symbol, interval, b.Ts.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert bar %s/%s: %w", symbol, b.Ts, err)
		}
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO bar_windows
		(window_hash, symbol, interval, start_ts, end_ts, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, windowHash, symbol, interval, start.Unix(), end.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record cached window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bar cache write: %w", err)
	}

	return nil
}

// Prune deletes cache windows not refreshed since cutoff, then removes bars
// no remaining window covers. Bars shared with a live overlapping window
// survive; only orphans go.
func (c *BarCache) Prune(cutoff time.Time) (windows, bars int64, err error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	res, err := tx.Exec("DELETE FROM bar_windows WHERE cached_at < ?", cutoff.Unix())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete stale windows: %w", err)
	}
	windows, _ = res.RowsAffected()

	res, err = tx.Exec(`
		DELETE FROM bars WHERE NOT EXISTS (
			SELECT 1 FROM bar_windows w
			WHERE w.symbol = bars.symbol
			  AND w.interval = bars.interval
			  AND bars.ts >= w.start_ts
			  AND bars.ts < w.end_ts
		)
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete orphaned bars: %w", err)
	}
	bars, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit cache prune: %w", err)
	}

	return windows, bars, nil
}

// Stats returns cached bar and window counts for the monitoring snapshot.
func (c *BarCache) Stats() (barCount, windowCount int, err error) {
	if err = c.db.QueryRow("SELECT COUNT(*) FROM bars").Scan(&barCount); err != nil {
		return 0, 0, fmt.Errorf("failed to count cached bars: %w", err)
	}
	if err = c.db.QueryRow("SELECT COUNT(*) FROM bar_windows").Scan(&windowCount); err != nil {
		return 0, 0, fmt.Errorf("failed to count cached windows: %w", err)
	}
	return barCount, windowCount, nil
}
