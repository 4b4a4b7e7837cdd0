// Package idgen implements the engine's GuidFactory collaborator: a
// deterministic event-id generator. The production generator wraps
// github.com/google/uuid (already a direct dependency of the teacher
// monorepo); the Sequential generator gives replay/backtest runs
// byte-identical ids across runs, which UUID v4 cannot.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Factory generates unique event ids. Implementations must be safe for
// sequential (single-threaded) reuse across the lifetime of one Engine.
type Factory interface {
	Generate() string
}

// UUID is the production GuidFactory: each call returns a random UUIDv4.
type UUID struct{}

func (UUID) Generate() string { return uuid.NewString() }

// Sequential is a deterministic GuidFactory for backtests and tests: it
// returns "<prefix>-1", "<prefix>-2", ... in call order. Two engines fed
// the same tick+command sequence and constructed with a fresh Sequential
// of the same prefix produce byte-identical event ids (spec.md §5's
// determinism requirement).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a Sequential id generator. prefix defaults to "EVT"
// when empty.
func NewSequential(prefix string) *Sequential {
	if prefix == "" {
		prefix = "EVT"
	}
	return &Sequential{prefix: prefix}
}

func (s *Sequential) Generate() string {
	n := atomic.AddUint64(&s.counter, 1)
	return fmt.Sprintf("%s-%d", s.prefix, n)
}
