package domain

import (
	"fmt"
	"time"
)

// Supported bar intervals. Crypto venues quote continuously, so a year is
// 365 calendar days for annualization at every interval.
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration returns the wall-clock span of one bar.
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervalDurations[interval]
	if !ok {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	return d, nil
}

// PeriodsPerYear returns how many bars of the interval fit in a calendar
// year, for annualizing returns and volatility. Unknown intervals fall back
// to daily.
func PeriodsPerYear(interval string) int {
	d, ok := intervalDurations[interval]
	if !ok {
		return 365
	}
	return int((365 * 24 * time.Hour) / d)
}
