package timeseries

import (
	"testing"
	"time"
)

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		name      string
		ts        time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "mid month",
			ts:        time.Date(2026, 3, 17, 8, 30, 0, 0, time.UTC),
			wantStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "december rolls over the year",
			ts:        time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
			wantStart: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "first instant of month",
			ts:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "non-UTC input is normalized",
			ts:        time.Date(2026, 5, 1, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
			wantStart: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := MonthBounds(tt.ts)
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", end, tt.wantEnd)
			}
		})
	}
}

func TestPartitionName(t *testing.T) {
	ts := time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC)
	if got := PartitionName("bike_status", ts); got != "bike_status_202601" {
		t.Errorf("PartitionName() = %q, want %q", got, "bike_status_202601")
	}
	if got := MonthKey(time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC)); got != "202511" {
		t.Errorf("MonthKey() = %q, want %q", got, "202511")
	}
}

func TestEvaluateGap(t *testing.T) {
	prev := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		gapSeconds  int
		expected    int64
		wantGap     bool
		wantMissing int64
	}{
		{name: "within tolerance", gapSeconds: 89, expected: 60, wantGap: false},
		{name: "exactly at threshold", gapSeconds: 90, expected: 60, wantGap: false},
		{name: "just past threshold", gapSeconds: 91, expected: 60, wantGap: true, wantMissing: 0},
		{name: "several missed polls", gapSeconds: 200, expected: 60, wantGap: true, wantMissing: 2},
		{name: "detection disabled", gapSeconds: 10000, expected: 0, wantGap: false},
		{name: "negative interval disables", gapSeconds: 10000, expected: -5, wantGap: false},
		{name: "clock went backwards", gapSeconds: -30, expected: 60, wantGap: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := prev.Add(time.Duration(tt.gapSeconds) * time.Second)
			gap := EvaluateGap("fg", prev, current, tt.expected)
			if !tt.wantGap {
				if gap != nil {
					t.Fatalf("expected no gap, got %+v", gap)
				}
				return
			}
			if gap == nil {
				t.Fatal("expected gap, got nil")
			}
			if gap.GapSeconds != int64(tt.gapSeconds) {
				t.Errorf("GapSeconds = %d, want %d", gap.GapSeconds, tt.gapSeconds)
			}
			if gap.MissingCount != tt.wantMissing {
				t.Errorf("MissingCount = %d, want %d", gap.MissingCount, tt.wantMissing)
			}
			if !gap.GapStart.Equal(prev) || !gap.GapEnd.Equal(current) {
				t.Errorf("gap bounds = [%v, %v], want [%v, %v]", gap.GapStart, gap.GapEnd, prev, current)
			}
			if gap.Domain != "fg" || gap.ExpectedIntervalS != tt.expected {
				t.Errorf("unexpected gap metadata: %+v", gap)
			}
		})
	}
}
