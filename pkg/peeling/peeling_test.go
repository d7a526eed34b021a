package peeling

import (
	"strings"
	"testing"

	"github.com/eth2030/cmt/pkg/codetable"
	"github.com/eth2030/cmt/pkg/symbol"
)

// toyMatrix is the (8,4) LDPC from spec.md S3: parity equations
// [[0,3,4,7],[0,1,6,5],[1,2,5,6],[2,3,4,7]].
const toyMatrix = "0 3 4 7\n0 1 6 5\n1 2 5 6\n2 3 4 7\n"

func toyTable(t *testing.T) *codetable.Table {
	t.Helper()
	tbl, err := codetable.Load(strings.NewReader(toyMatrix), 8)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tbl
}

func runToDecode(t *testing.T, tbl *codetable.Table, full []symbol.Base, order []int) *Engine[symbol.Base] {
	t.Helper()
	e := New[symbol.Base](tbl, 4, symbol.Zero(1))
	for step, idx := range order {
		newSyms, newIdxs, done, err := e.Receive([]symbol.Base{full[idx]}, []int{idx}, nil)
		if err != nil {
			t.Fatalf("Receive(%d): %v", idx, err)
		}
		for !done {
			progress, notZero, err := e.Propagate(newSyms, newIdxs)
			if err != nil {
				t.Fatalf("Propagate: %v", err)
			}
			if notZero != nil {
				t.Fatalf("unexpected NotZero at equation %d", notZero.EquationIndex)
			}
			if !progress {
				break
			}
			newSyms, newIdxs, done, _, err = e.SolveDegree1(nil)
			if err != nil {
				t.Fatalf("SolveDegree1: %v", err)
			}
		}
		if done {
			if step+1 > 8 {
				t.Fatalf("decode took more than 8 receptions")
			}
			return e
		}
	}
	if !e.Done() {
		t.Fatalf("decoder did not finish after all 8 receptions, stopping set: %v", e.StoppingSet())
	}
	return e
}

func TestEncodeThenFullDecode(t *testing.T) {
	tbl := toyTable(t)
	enc := New[symbol.Base](tbl, 4, symbol.Zero(1))
	systematic := []symbol.Base{{1}, {2}, {4}, {8}}
	full, err := enc.Encode(systematic)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(full) != 8 {
		t.Fatalf("expected 8 symbols, got %d", len(full))
	}
	for i, s := range systematic {
		if !full[i].Equal(s) {
			t.Fatalf("systematic symbol %d not preserved: got %v, want %v", i, full[i], s)
		}
	}

	order := []int{3, 5, 7, 0, 4, 2, 6, 1}
	dec := runToDecode(t, tbl, full, order)
	for i := 0; i < 8; i++ {
		v, known := dec.Value(i)
		if !known {
			t.Fatalf("symbol %d not known after decode", i)
		}
		if !v.Equal(full[i]) {
			t.Fatalf("symbol %d mismatch: got %v, want %v", i, v, full[i])
		}
	}
}

func TestEncodeRejectsWrongSystematicCount(t *testing.T) {
	tbl := toyTable(t)
	e := New[symbol.Base](tbl, 4, symbol.Zero(1))
	if _, err := e.Encode([]symbol.Base{{1}, {2}}); err == nil {
		t.Fatalf("expected error for short systematic input")
	}
}

func TestNotZeroDetection(t *testing.T) {
	tbl := toyTable(t)
	enc := New[symbol.Base](tbl, 4, symbol.Zero(1))
	full, err := enc.Encode([]symbol.Base{{1}, {2}, {4}, {8}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Corrupt parity symbol 4 (equation 0's only other unknown once 0,3,7
	// arrive) so that equation 0's residual does not reduce to zero.
	corrupted := append([]symbol.Base(nil), full...)
	corrupted[4] = symbol.Base{corrupted[4][0] ^ 0xff}

	dec := New[symbol.Base](tbl, 4, symbol.Zero(1))
	order := []int{0, 3, 7, 4}
	var sawNotZero bool
	for _, idx := range order {
		newSyms, newIdxs, _, err := dec.Receive([]symbol.Base{corrupted[idx]}, []int{idx}, nil)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		_, notZero, err := dec.Propagate(newSyms, newIdxs)
		if err != nil {
			t.Fatalf("Propagate: %v", err)
		}
		if notZero != nil {
			sawNotZero = true
			if notZero.EquationIndex != 0 {
				t.Fatalf("expected equation 0, got %d", notZero.EquationIndex)
			}
			break
		}
	}
	if !sawNotZero {
		t.Fatalf("expected NotZero evidence from corrupted parity symbol")
	}
}

func TestSolveDegree1HashCheckRejectsForgedSymbol(t *testing.T) {
	tbl := toyTable(t)
	enc := New[symbol.Base](tbl, 4, symbol.Zero(1))
	full, err := enc.Encode([]symbol.Base{{1}, {2}, {4}, {8}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	dec := New[symbol.Base](tbl, 4, symbol.Zero(1))
	// Supply 0, 1 and 6 so equation 1 ({0,1,6,5}) drops to degree 1 with
	// only symbol 5 unknown.
	for _, idx := range []int{0, 1, 6} {
		newSyms, newIdxs, _, err := dec.Receive([]symbol.Base{full[idx]}, []int{idx}, nil)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if _, _, err := dec.Propagate(newSyms, newIdxs); err != nil {
			t.Fatalf("propagate returned error: %v", err)
		}
	}
	if !dec.HasDegree1Work() {
		t.Fatalf("expected equation 1 to have reached degree 1")
	}

	rejectAll := func(index int, value symbol.Base) bool { return false }
	_, _, done, notHash, err := dec.SolveDegree1(rejectAll)
	if err != nil {
		t.Fatalf("SolveDegree1: %v", err)
	}
	if done {
		t.Fatalf("expected decode to halt on hash mismatch")
	}
	if notHash == nil {
		t.Fatalf("expected NotHash evidence")
	}
	if notHash.DisputedIndex != 5 {
		t.Fatalf("expected disputed index 5, got %d", notHash.DisputedIndex)
	}
}

func TestReceiveHashCheckDiscardsUnverifiedSymbol(t *testing.T) {
	tbl := toyTable(t)
	e := New[symbol.Base](tbl, 4, symbol.Zero(1))
	rejectAll := func(index int, value symbol.Base) bool { return false }
	newSyms, newIdxs, done, err := e.Receive([]symbol.Base{{1}}, []int{0}, rejectAll)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if done {
		t.Fatalf("expected layer to remain undecoded")
	}
	if len(newSyms) != 0 || len(newIdxs) != 0 {
		t.Fatalf("expected no newly learned symbols, got %d", len(newSyms))
	}
	if v, known := e.Value(0); known {
		t.Fatalf("expected index 0 to remain unknown, got %v", v)
	}
}

func TestInjectFault(t *testing.T) {
	tbl := toyTable(t)
	e := New[symbol.Base](tbl, 4, symbol.Zero(1))
	if err := e.InjectFault(2, symbol.Base{0x42}); err != nil {
		t.Fatalf("InjectFault: %v", err)
	}
	v, known := e.Value(2)
	if !known || v[0] != 0x42 {
		t.Fatalf("InjectFault did not set value, got %v known=%v", v, known)
	}
}

func TestPropagateLengthMismatch(t *testing.T) {
	tbl := toyTable(t)
	e := New[symbol.Base](tbl, 4, symbol.Zero(1))
	if _, _, err := e.Propagate([]symbol.Base{{1}}, []int{0, 1}); err != ErrLengthMismatch {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}
