// Package timeseries holds the calendar and cadence rules shared by the
// partitioned observation tables.
package timeseries

import (
	"fmt"
	"time"

	"github.com/saviobatista/bike-logger/internal/types"
)

// PartitionedTables lists the tables partitioned by month of fetched_at.
// Order matters: snapshot is the parent of the status tables.
var PartitionedTables = []string{"snapshot", "city_status", "place_status", "bike_status"}

// GapFactor is the multiple of the expected interval tolerated before a gap is recorded
const GapFactor = 1.5

// MonthBounds returns [monthStart, nextMonthStart) in UTC for the month containing ts
func MonthBounds(ts time.Time) (time.Time, time.Time) {
	ts = ts.UTC()
	start := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// MonthKey identifies a month, e.g. "202601"
func MonthKey(ts time.Time) string {
	start, _ := MonthBounds(ts)
	return fmt.Sprintf("%04d%02d", start.Year(), int(start.Month()))
}

// PartitionName returns the partition table name of table for the month containing ts
func PartitionName(table string, ts time.Time) string {
	return table + "_" + MonthKey(ts)
}

// EvaluateGap decides whether the interval between prev and current is a gap.
// A non-positive expected interval disables detection.
func EvaluateGap(domain string, prev, current time.Time, expectedIntervalS int64) *types.SnapshotGap {
	if expectedIntervalS <= 0 {
		return nil
	}
	gapSeconds := int64(current.Sub(prev) / time.Second)
	threshold := int64(float64(expectedIntervalS) * GapFactor)
	if gapSeconds <= threshold {
		return nil
	}
	missing := gapSeconds/expectedIntervalS - 1
	if missing < 0 {
		missing = 0
	}
	return &types.SnapshotGap{
		Domain:            domain,
		GapStart:          prev,
		GapEnd:            current,
		GapSeconds:        gapSeconds,
		ExpectedIntervalS: expectedIntervalS,
		MissingCount:      missing,
	}
}
