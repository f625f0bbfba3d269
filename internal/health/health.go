// Package health implements the liveness probe.
package health

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saviobatista/bike-logger/internal/config"
	"github.com/saviobatista/bike-logger/internal/logging"
	"github.com/saviobatista/bike-logger/internal/types"
)

// DBTimeout bounds the store connectivity check
const DBTimeout = 3 * time.Second

const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// Pinger is the store connectivity check
type Pinger interface {
	Ping(ctx context.Context) error
}

// CycleSource reports the last cached cycle. Informational only.
type CycleSource interface {
	LastCycle(ctx context.Context, domain string) (*types.CycleResult, error)
}

// Check is the outcome of one probe
type Check struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is printed as one JSON line
type Report struct {
	Status     string             `json:"status"`
	Service    string             `json:"service"`
	Env        string             `json:"env"`
	Version    string             `json:"version"`
	Commit     string             `json:"commit"`
	RunID      string             `json:"run_id"`
	ConfigHash string             `json:"config_hash"`
	Timestamp  string             `json:"timestamp"`
	Checks     []Check            `json:"checks"`
	LastCycle  *types.CycleResult `json:"last_cycle,omitempty"`
}

// Checker runs the probes
type Checker struct {
	cfg    *config.Config
	runID  string
	db     Pinger
	cycles CycleSource
	clock  clockwork.Clock
}

// NewChecker creates a Checker. db may be nil when no connection could be
// opened, which fails the db check. cycles may be nil.
func NewChecker(cfg *config.Config, runID string, db Pinger, cycles CycleSource, clock clockwork.Clock) *Checker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Checker{cfg: cfg, runID: runID, db: db, cycles: cycles, clock: clock}
}

// Run performs the checks. The report is ok only if every check passed.
func (c *Checker) Run(ctx context.Context) Report {
	checks := []Check{{Name: "self", Status: StatusOK}}
	checks = append(checks, c.checkDB(ctx))

	status := StatusOK
	for _, check := range checks {
		if check.Status != StatusOK {
			status = StatusFail
		}
	}

	report := Report{
		Status:     status,
		Service:    c.cfg.ServiceName,
		Env:        c.cfg.Env,
		Version:    c.cfg.Version,
		Commit:     c.cfg.Commit,
		RunID:      c.runID,
		ConfigHash: c.cfg.Hash(),
		Timestamp:  logging.FormatRFC3339Millis(c.clock.Now()),
		Checks:     checks,
	}

	if c.cycles != nil {
		if last, err := c.cycles.LastCycle(ctx, c.cfg.Domain); err == nil {
			report.LastCycle = last
		}
	}
	return report
}

func (c *Checker) checkDB(ctx context.Context) Check {
	start := c.clock.Now()
	check := Check{Name: "db", Status: StatusOK}

	if c.db == nil {
		check.Status = StatusFail
	} else {
		ctx, cancel := context.WithTimeout(ctx, DBTimeout)
		defer cancel()
		if err := c.db.Ping(ctx); err != nil {
			check.Status = StatusFail
		}
	}

	check.LatencyMS = c.clock.Since(start).Milliseconds()
	return check
}

// Write prints r as a single compact JSON line
func (r Report) Write(w io.Writer) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ExitCode is 0 for a passing report and 1 otherwise
func (r Report) ExitCode() int {
	if r.Status == StatusOK {
		return 0
	}
	return 1
}
