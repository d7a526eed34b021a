// Package codetable holds the per-layer LDPC parity-check matrices that
// drive the peeling engine, represented as a pair of mutually inverse
// adjacency lists: which symbols participate in each parity equation, and
// which equations constrain each symbol.
package codetable

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/eth2030/cmt/pkg/log"
)

var logger = log.Default().Module("cmt.codetable")

// Table is the immutable, loaded-once-at-startup code for a single
// systematic size k. It may be shared across concurrent block
// verifications: nothing here is ever mutated after Load returns.
type Table struct {
	// N is the number of symbols the equations are defined over.
	N int
	// Parities[p] lists the symbol indices that XOR to zero under
	// equation p.
	Parities [][]int
	// Symbols[s] lists the indices of equations that constrain symbol s.
	// Symbols is the transpose of Parities.
	Symbols [][]int
}

// Load parses an encoding or decoding matrix from r: one parity equation
// per line, whitespace-separated zero-based symbol indices, lines in
// arbitrary order. n is the total symbol count the equations must stay
// within (n = k/r for the layer this table belongs to).
func Load(r io.Reader, n int) (*Table, error) {
	var parities [][]int
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		eq := make([]int, 0, len(fields))
		for _, f := range fields {
			idx, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("codetable: line %d: invalid index %q: %w", lineNo, f, err)
			}
			if idx < 0 || idx >= n {
				return nil, fmt.Errorf("codetable: line %d: index %d out of range [0,%d)", lineNo, idx, n)
			}
			eq = append(eq, idx)
		}
		if len(eq) > 0 {
			parities = append(parities, eq)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("codetable: read: %w", err)
	}

	t := &Table{N: n, Parities: parities}
	t.Symbols = transpose(parities, n)
	if err := t.checkConsistency(); err != nil {
		return nil, err
	}
	logger.Debug("loaded code table", "n", n, "equations", len(parities))
	return t, nil
}

// transpose builds the symbols adjacency list from the parities list.
func transpose(parities [][]int, n int) [][]int {
	symbols := make([][]int, n)
	for p, eq := range parities {
		for _, s := range eq {
			symbols[s] = append(symbols[s], p)
		}
	}
	return symbols
}

// checkConsistency verifies Parities and Symbols are mutually inverse
// adjacency lists.
func (t *Table) checkConsistency() error {
	count := make(map[[2]int]int)
	for p, eq := range t.Parities {
		for _, s := range eq {
			count[[2]int{p, s}]++
		}
	}
	for s, eqs := range t.Symbols {
		for _, p := range eqs {
			count[[2]int{p, s}]--
		}
	}
	for k, v := range count {
		if v != 0 {
			return fmt.Errorf("codetable: inconsistent adjacency between equation %d and symbol %d", k[0], k[1])
		}
	}
	return nil
}

// Clone returns a deep copy of t, suitable as the mutable working copy a
// peeling engine consumes and destroys during decoding.
func (t *Table) Clone() *Table {
	parities := make([][]int, len(t.Parities))
	for i, eq := range t.Parities {
		parities[i] = append([]int(nil), eq...)
	}
	symbols := make([][]int, len(t.Symbols))
	for i, eq := range t.Symbols {
		symbols[i] = append([]int(nil), eq...)
	}
	return &Table{N: t.N, Parities: parities, Symbols: symbols}
}

// Set bundles the encoding and decoding tables for a single systematic
// size k, per spec.md §4.1: "Two files per k may be provided".
type Set struct {
	Encoding *Table
	Decoding *Table
}

// LoadSet loads both the encoding and decoding matrices for a systematic
// size k from the given readers. decodingR may be nil, in which case the
// encoding table also serves as the decoding table.
func LoadSet(encodingR io.Reader, decodingR io.Reader, n int) (*Set, error) {
	enc, err := Load(encodingR, n)
	if err != nil {
		return nil, fmt.Errorf("codetable: encoding matrix: %w", err)
	}
	if decodingR == nil {
		return &Set{Encoding: enc, Decoding: enc}, nil
	}
	dec, err := Load(decodingR, n)
	if err != nil {
		return nil, fmt.Errorf("codetable: decoding matrix: %w", err)
	}
	return &Set{Encoding: enc, Decoding: dec}, nil
}
