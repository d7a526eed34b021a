// Package decoder orchestrates top-down, layer-by-layer decoding of a
// Coded Merkle Tree: receive samples into the top layer's peeling engine,
// drive it to completion, expand its systematic prefix into the parent
// hashes the next layer down needs, and repeat -- per spec.md §4.7.
package decoder

import (
	"fmt"

	"github.com/eth2030/cmt/pkg/cmtmetrics"
	"github.com/eth2030/cmt/pkg/cmtparams"
	"github.com/eth2030/cmt/pkg/codetable"
	"github.com/eth2030/cmt/pkg/dhash"
	"github.com/eth2030/cmt/pkg/log"
	"github.com/eth2030/cmt/pkg/peeling"
	"github.com/eth2030/cmt/pkg/symbol"
)

var logger = log.Default().Module("cmt.decoder")

// Outcome tags how a decode session ended.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeNotZero
	OutcomeNotHash
	OutcomeStopped
)

// LayerSpec describes one layer's systematic size and code, needed to
// construct its peeling engine.
type LayerSpec struct {
	K     int
	Table *codetable.Table
}

// SampleInput is what the decoder consumes for one layer: the received
// (index, value) pairs a sampler collected. Values are untrusted on entry
// -- runBaseLayer/runUpperLayer hash-check each one against the parent
// hashes the decoder itself produces layer by layer before admitting it,
// silently discarding any that disagree, per spec.md §4.3/§4.7.
type SampleInput struct {
	Indices    []int
	BaseValues []symbol.Base  // populated only for layer 0
	Upper      []symbol.Upper // populated only for layers > 0
}

// Result is the outcome of one layer's decode attempt within a full
// top-down session.
type Result struct {
	Layer   int
	Outcome Outcome

	// Populated when Outcome == OutcomeDone and this was the base layer.
	Base []symbol.Base

	NotZeroBase  *peeling.NotZeroEvidence[symbol.Base]
	NotZeroUpper *peeling.NotZeroEvidence[symbol.Upper]

	NotHashBase  *peeling.NotHashEvidence[symbol.Base]
	NotHashUpper *peeling.NotHashEvidence[symbol.Upper]

	StoppingSet []int
}

// Decode runs the top-down orchestration loop of spec.md §4.7 across every
// layer, from the top (whose parent hashes are codedRoots) down to the
// base layer. specs and samples are indexed by layer, base layer first.
func Decode(codedRoots [][32]byte, params *cmtparams.Params, specs []LayerSpec, samples []SampleInput) (*Result, error) {
	alg, err := params.Algorithm()
	if err != nil {
		return nil, err
	}
	l := len(specs)
	if l == 0 {
		return nil, fmt.Errorf("decoder: no layer specs supplied")
	}
	if len(samples) != l {
		return nil, fmt.Errorf("decoder: %d layer specs but %d sample sets", l, len(samples))
	}

	kA, pA := params.KA(), params.PA()
	parentHashes := codedRoots

	for layer := l - 1; layer >= 0; layer-- {
		spec := specs[layer]
		sample := samples[layer]

		if layer == 0 {
			out, err := runBaseLayer(spec, sample, params.S0, parentHashes, alg)
			if err != nil {
				return nil, err
			}
			out.Layer = 0
			cmtmetrics.DecodeOutcome(outcomeLabel(out.Outcome))
			return out, nil
		}

		out, full, err := runUpperLayer(spec, sample, params.A, parentHashes, alg)
		if err != nil {
			return nil, err
		}
		if out.Outcome != OutcomeDone {
			out.Layer = layer
			cmtmetrics.DecodeOutcome(outcomeLabel(out.Outcome))
			return out, nil
		}

		decodedSystematic := full[:spec.K]
		parentHashes = expandParentHashes(decodedSystematic, specs[layer-1].K, specs[layer-1].Table.N, kA, pA)
	}

	// layer reaches 0 on every iteration of the loop above and that branch
	// always returns, so this point is never reached.
	panic("decoder: unreachable")
}

func outcomeLabel(o Outcome) string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeNotZero:
		return "not_zero"
	case OutcomeNotHash:
		return "not_hash"
	default:
		return "stopped"
	}
}

// runBaseLayer drives layer 0's peeling engine (symbol.Base) to completion
// or to a fraud/stall outcome.
func runBaseLayer(spec LayerSpec, sample SampleInput, s0 int, parentHashes [][32]byte, alg dhash.Algorithm) (*Result, error) {
	e := peeling.New[symbol.Base](spec.Table, spec.K, symbol.Zero(s0))
	hashCheck := func(i int, v symbol.Base) bool {
		h, err := dhash.Sum(alg, v.Bytes())
		return err == nil && h == parentHashes[i]
	}

	newSyms, newIdxs, done, err := e.Receive(sample.BaseValues, sample.Indices, hashCheck)
	if err != nil {
		return nil, err
	}
	for !done {
		_, notZero, err := e.Propagate(newSyms, newIdxs)
		if err != nil {
			return nil, err
		}
		cmtmetrics.SetPeelingQueueDepth(e.QueueDepth())
		if notZero != nil {
			return &Result{Outcome: OutcomeNotZero, NotZeroBase: notZero}, nil
		}
		if !e.HasDegree1Work() {
			if !e.Done() {
				return &Result{Outcome: OutcomeStopped, StoppingSet: e.StoppingSet()}, nil
			}
			break
		}
		var notHash *peeling.NotHashEvidence[symbol.Base]
		newSyms, newIdxs, done, notHash, err = e.SolveDegree1(hashCheck)
		if err != nil {
			return nil, err
		}
		if notHash != nil {
			return &Result{Outcome: OutcomeNotHash, NotHashBase: notHash}, nil
		}
	}

	full := make([]symbol.Base, spec.Table.N)
	for i := range full {
		v, _ := e.Value(i)
		full[i] = v
	}
	return &Result{Outcome: OutcomeDone, Base: full}, nil
}

// runUpperLayer drives an upper layer's peeling engine (symbol.Upper) to
// completion or to a fraud/stall outcome, returning the full decoded layer
// on success for the caller to slice its systematic prefix from.
func runUpperLayer(spec LayerSpec, sample SampleInput, a int, parentHashes [][32]byte, alg dhash.Algorithm) (*Result, []symbol.Upper, error) {
	e := peeling.New[symbol.Upper](spec.Table, spec.K, symbol.NewUpper(a))
	hashCheck := func(i int, v symbol.Upper) bool {
		h, err := dhash.Sum(alg, v.Bytes())
		return err == nil && h == parentHashes[i]
	}

	newSyms, newIdxs, done, err := e.Receive(sample.Upper, sample.Indices, hashCheck)
	if err != nil {
		return nil, nil, err
	}
	for !done {
		_, notZero, err := e.Propagate(newSyms, newIdxs)
		if err != nil {
			return nil, nil, err
		}
		cmtmetrics.SetPeelingQueueDepth(e.QueueDepth())
		if notZero != nil {
			return &Result{Outcome: OutcomeNotZero, NotZeroUpper: notZero}, nil, nil
		}
		if !e.HasDegree1Work() {
			if !e.Done() {
				return &Result{Outcome: OutcomeStopped, StoppingSet: e.StoppingSet()}, nil, nil
			}
			break
		}
		var notHash *peeling.NotHashEvidence[symbol.Upper]
		newSyms, newIdxs, done, notHash, err = e.SolveDegree1(hashCheck)
		if err != nil {
			return nil, nil, err
		}
		if notHash != nil {
			return &Result{Outcome: OutcomeNotHash, NotHashUpper: notHash}, nil, nil
		}
	}

	full := make([]symbol.Upper, spec.Table.N)
	for i := range full {
		v, _ := e.Value(i)
		full[i] = v
	}
	return &Result{Outcome: OutcomeDone}, full, nil
}

// expandParentHashes is the inverse of cmttree.buildUpperLayer's interleave:
// given the decoded systematic prefix of the layer above (kNext Upper
// symbols of width kA+pA), it reconstructs the nBelow parent hashes the
// layer below needs for its own degree-1 hash checks.
func expandParentHashes(decodedSystematic []symbol.Upper, kBelow, nBelow, kA, pA int) [][32]byte {
	out := make([][32]byte, nBelow)
	for t, u := range decodedSystematic {
		for j := 0; j < kA; j++ {
			idx := t*kA + j
			if idx < kBelow {
				out[idx] = u[j]
			}
		}
		for j := 0; j < pA; j++ {
			idx := kBelow + t*pA + j
			if idx < nBelow {
				out[idx] = u[kA+j]
			}
		}
	}
	return out
}
