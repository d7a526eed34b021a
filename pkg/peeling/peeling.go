// Package peeling implements the stateful per-layer peeling engine that
// both encodes (from systematic input) and decodes (from arbitrary
// reception) a single Coded Merkle Tree layer, per spec.md §4.3.
package peeling

import (
	"errors"
	"fmt"

	"github.com/eth2030/cmt/pkg/codetable"
	"github.com/eth2030/cmt/pkg/log"
)

var logger = log.Default().Module("cmt.peeling")

var (
	ErrAlreadyDone    = errors.New("peeling: engine has already fully decoded this layer")
	ErrIndexOutOfRange = errors.New("peeling: symbol index out of range")
	ErrLengthMismatch = errors.New("peeling: syms and idxs length mismatch")
)

// Value is the constraint every symbol width (symbol.Base, symbol.Upper)
// satisfies: XOR-able, zero-testable, and serializable to bytes for dhash.
type Value[T any] interface {
	XOR(T) (T, error)
	IsZero() bool
	Bytes() []byte
}

// NotZeroEvidence is produced when a fully-reduced parity equation's
// residual is non-zero: proof that the producer's encoding was wrong.
type NotZeroEvidence[T any] struct {
	EquationIndex int
	SymbolIndices []int
	SymbolValues  []T
}

// NotHashEvidence is produced when a symbol solved by a degree-1 equation
// fails its parent-hash check: proof that the producer emitted a symbol
// whose hash disagrees with its parent commitment.
type NotHashEvidence[T any] struct {
	EquationIndex int
	DisputedIndex int
	// Participants lists every original symbol index in the equation,
	// including DisputedIndex.
	Participants []int
}

// Engine holds the mutable decode/encode state for one CMT layer.
type Engine[T Value[T]] struct {
	original *codetable.Table // immutable; used to reconstruct evidence
	working  *codetable.Table // mutable clone; peeling consumes this

	n, p int
	zero T

	values []T
	known  []bool

	residuals []T
	degree    []int

	deg1Queue []int

	decodedCount    int
	decodedSysCount int
	k               int // number of systematic symbols, for decodedSysCount bookkeeping
}

// New constructs an Engine for a layer whose code is table, with k
// systematic symbols among the table's n symbols. zero must be the
// all-zero value of the symbol width this layer uses (symbol.Zero(S0) or
// symbol.NewUpper(A)).
func New[T Value[T]](table *codetable.Table, k int, zero T) *Engine[T] {
	n := table.N
	p := len(table.Parities)

	residuals := make([]T, p)
	for i := range residuals {
		residuals[i] = zero
	}
	degree := make([]int, p)
	for j, eq := range table.Parities {
		degree[j] = len(eq)
	}

	return &Engine[T]{
		original:  table,
		working:   table.Clone(),
		n:         n,
		p:         p,
		k:         k,
		zero:      zero,
		values:    make([]T, n),
		known:     make([]bool, n),
		residuals: residuals,
		degree:    degree,
	}
}

// Done reports whether every symbol slot is known.
func (e *Engine[T]) Done() bool { return e.decodedCount == e.n }

// Value returns the current value of symbol i and whether it is known.
func (e *Engine[T]) Value(i int) (T, bool) {
	return e.values[i], e.known[i]
}

// Receive writes syms[i] into slot idxs[i] for every still-Empty slot.
// Reception of an already-known index is a no-op. When hashCheck is
// non-nil it is called with each candidate's index and value before it is
// admitted; a false return means the symbol's hash disagrees with its
// parent commitment and it is discarded silently, per spec.md §4.3's "a
// symbol is only trusted once its Merkle proof validates" rule -- the same
// contract SolveDegree1 already applies to peeling-derived symbols. It
// returns the subset that was newly learned (for feeding into Propagate)
// and whether the layer is now fully decoded.
func (e *Engine[T]) Receive(syms []T, idxs []int, hashCheck func(index int, value T) bool) (newSyms []T, newIdxs []int, done bool, err error) {
	if len(syms) != len(idxs) {
		return nil, nil, false, ErrLengthMismatch
	}
	for i, idx := range idxs {
		if idx < 0 || idx >= e.n {
			return nil, nil, false, fmt.Errorf("%w: %d", ErrIndexOutOfRange, idx)
		}
		if e.known[idx] {
			continue
		}
		if hashCheck != nil && !hashCheck(idx, syms[i]) {
			logger.Warn("discarding unverified symbol", "index", idx)
			continue
		}
		e.values[idx] = syms[i]
		e.known[idx] = true
		e.decodedCount++
		if idx < e.k {
			e.decodedSysCount++
		}
		newSyms = append(newSyms, syms[i])
		newIdxs = append(newIdxs, idx)
	}
	return newSyms, newIdxs, e.Done(), nil
}

// Propagate folds each newly-known (value, index) pair into every parity
// equation that still references it: XOR the residual, decrement the
// degree, enqueue the equation if it reaches degree 1, and drop the
// now-satisfied adjacency edge in both directions. It returns the first
// NotZero evidence discovered (nil if none) and whether the degree-1
// queue has work.
func (e *Engine[T]) Propagate(newSyms []T, newIdxs []int) (progress bool, notZero *NotZeroEvidence[T], err error) {
	if len(newSyms) != len(newIdxs) {
		return false, nil, ErrLengthMismatch
	}
	for n, i := range newIdxs {
		v := newSyms[n]
		for _, j := range e.working.Symbols[i] {
			e.residuals[j], err = e.residuals[j].XOR(v)
			if err != nil {
				return false, nil, err
			}
			e.degree[j]--
			if e.degree[j] == 1 {
				e.deg1Queue = append(e.deg1Queue, j)
			}
			e.working.Parities[j] = removeInt(e.working.Parities[j], i)
		}
		e.working.Symbols[i] = nil
	}

	if nz := e.scanNotZero(); nz != nil {
		return len(e.deg1Queue) > 0, nz, nil
	}
	return len(e.deg1Queue) > 0, nil, nil
}

// scanNotZero looks for any equation that has been fully reduced
// (degree 0) yet carries a non-zero residual -- the signature of a
// parity symbol whose value does not satisfy its equation.
func (e *Engine[T]) scanNotZero() *NotZeroEvidence[T] {
	for j, d := range e.degree {
		if d != 0 {
			continue
		}
		if e.residuals[j].IsZero() {
			continue
		}
		eq := e.original.Parities[j]
		values := make([]T, len(eq))
		for i, s := range eq {
			values[i] = e.values[s]
		}
		logger.Warn("not-zero fault detected", "equation", j)
		return &NotZeroEvidence[T]{
			EquationIndex: j,
			SymbolIndices: append([]int(nil), eq...),
			SymbolValues:  values,
		}
	}
	return nil
}

// SolveDegree1 drains the degree-1 queue, setting each remaining unknown
// symbol to its equation's residual. When hashCheck is non-nil it is
// called with the solved symbol's index and value; a false return means
// the solved symbol's hash disagrees with its parent commitment, and
// SolveDegree1 returns NotHash evidence immediately without solving the
// rest of the queue.
func (e *Engine[T]) SolveDegree1(hashCheck func(index int, value T) bool) (newSyms []T, newIdxs []int, done bool, notHash *NotHashEvidence[T], err error) {
	queue := e.deg1Queue
	e.deg1Queue = nil

	for _, j := range queue {
		remaining := e.working.Parities[j]
		if len(remaining) != 1 {
			// Degree fell to 0 (or below, which cannot happen) between
			// enqueue and processing; treat as a no-op per §9.
			continue
		}
		i := remaining[0]
		if e.known[i] {
			continue
		}
		v := e.residuals[j]
		if hashCheck != nil && !hashCheck(i, v) {
			logger.Warn("not-hash fault detected", "equation", j, "index", i)
			return newSyms, newIdxs, false, &NotHashEvidence[T]{
				EquationIndex: j,
				DisputedIndex: i,
				Participants:  append([]int(nil), e.original.Parities[j]...),
			}, nil
		}
		e.values[i] = v
		e.known[i] = true
		e.decodedCount++
		if i < e.k {
			e.decodedSysCount++
		}
		newSyms = append(newSyms, v)
		newIdxs = append(newIdxs, i)
	}
	return newSyms, newIdxs, e.Done(), nil, nil
}

// HasDegree1Work reports whether the degree-1 queue currently has
// equations awaiting SolveDegree1.
func (e *Engine[T]) HasDegree1Work() bool { return len(e.deg1Queue) > 0 }

// QueueDepth reports the current size of the degree-1 queue, for callers
// that export it as a gauge.
func (e *Engine[T]) QueueDepth() int { return len(e.deg1Queue) }

// StoppingSet returns the indices of symbols that remain Empty when no
// further progress is possible (every remaining equation touching them
// has degree >= 2).
func (e *Engine[T]) StoppingSet() []int {
	var out []int
	for i, known := range e.known {
		if !known {
			out = append(out, i)
		}
	}
	return out
}

// Encode drives systematic input through Receive/Propagate/SolveDegree1
// (no hash check, since parent hashes do not exist yet during encoding)
// until the full layer is known. The supplied code's encoding matrix must
// be peeling-solvable from a full systematic set.
func (e *Engine[T]) Encode(systematic []T) ([]T, error) {
	if len(systematic) != e.k {
		return nil, fmt.Errorf("peeling: encode needs %d systematic symbols, got %d", e.k, len(systematic))
	}
	idxs := make([]int, e.k)
	for i := range idxs {
		idxs[i] = i
	}
	newSyms, newIdxs, done, err := e.Receive(systematic, idxs, nil)
	if err != nil {
		return nil, err
	}
	for !done {
		_, notZero, err := e.Propagate(newSyms, newIdxs)
		if err != nil {
			return nil, err
		}
		if notZero != nil {
			return nil, fmt.Errorf("peeling: encode produced a non-zero parity equation %d -- code table is not peeling-solvable from systematic input", notZero.EquationIndex)
		}
		if !e.HasDegree1Work() {
			if !e.Done() {
				return nil, fmt.Errorf("peeling: encode stalled with %d symbols still undetermined -- code table is not peeling-solvable from systematic input", e.n-e.decodedCount)
			}
			break
		}
		newSyms, newIdxs, done, _, err = e.SolveDegree1(nil)
		if err != nil {
			return nil, err
		}
	}

	out := make([]T, e.n)
	for i := range out {
		out[i] = e.values[i]
	}
	return out, nil
}

// InjectFault overwrites the value of an already-known (or still-unknown)
// symbol with an arbitrary value, for testing and for modelling a
// malicious producer. It bypasses Receive's no-op-on-known-index rule and
// does not touch decoded counters if the slot was already known.
func (e *Engine[T]) InjectFault(index int, value T) error {
	if index < 0 || index >= e.n {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if !e.known[index] {
		e.decodedCount++
		if index < e.k {
			e.decodedSysCount++
		}
	}
	e.values[index] = value
	e.known[index] = true
	return nil
}

func removeInt(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
