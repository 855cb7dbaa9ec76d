package osmprocessing

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var (
	ErrDanglingReference  = errors.New("dangling reference")
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// ErrNotFound is returned for ids absent from the index. It is itself a
	// dangling reference.
	ErrNotFound = fmt.Errorf("not found: %w", ErrDanglingReference)
)

// DecodeError is returned when the primitive source itself fails. It is
// fatal for the run.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Diagnostics counts entities that were skipped or degraded during a run.
// Counters are safe for concurrent use by workers reading a frozen Index.
type Diagnostics struct {
	DanglingWays      atomic.Int64
	DanglingRelations atomic.Int64
	Degenerate        atomic.Int64
	IncompleteRings   atomic.Int64
	RelationCycles    atomic.Int64
}

func (d *Diagnostics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("dangling_ways", d.DanglingWays.Load()),
		slog.Int64("dangling_relations", d.DanglingRelations.Load()),
		slog.Int64("degenerate", d.Degenerate.Load()),
		slog.Int64("incomplete_rings", d.IncompleteRings.Load()),
		slog.Int64("relation_cycles", d.RelationCycles.Load()),
	)
}
