package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies a cycle failure
type Kind int

const (
	// KindUpstreamFetch covers network errors, timeouts, non-2xx responses and malformed bodies
	KindUpstreamFetch Kind = iota + 1
	// KindUpstreamShape covers well-formed documents missing expected data
	KindUpstreamShape
	// KindPersistence covers any store failure inside the cycle transaction
	KindPersistence
	// KindSync covers the best-effort zone and metadata stages after commit
	KindSync
)

func (k Kind) String() string {
	switch k {
	case KindUpstreamFetch:
		return "upstream_fetch"
	case KindUpstreamShape:
		return "upstream_shape"
	case KindPersistence:
		return "persistence"
	case KindSync:
		return "sync"
	default:
		return "unknown"
	}
}

// Error is the tagged error returned by a cycle
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fetchErr(op string, err error) error {
	return &Error{Kind: KindUpstreamFetch, Op: op, Err: err}
}

func shapeErr(op string, err error) error {
	return &Error{Kind: KindUpstreamShape, Op: op, Err: err}
}

func persistErr(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

func syncErr(op string, err error) error {
	return &Error{Kind: KindSync, Op: op, Err: err}
}

// Failure reasons exported as metric labels
const (
	ReasonFetch   = "fetch"
	ReasonDB      = "db"
	ReasonUnknown = "unknown"
)

// FailureReason maps err to the metric label of its kind
func FailureReason(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ReasonUnknown
	}
	switch e.Kind {
	case KindUpstreamFetch, KindUpstreamShape:
		return ReasonFetch
	case KindPersistence:
		return ReasonDB
	default:
		return ReasonUnknown
	}
}
