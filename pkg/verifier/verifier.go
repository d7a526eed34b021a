// Package verifier checks a single symbol against a block's coded-roots
// commitment, and checks incorrect-coding fraud proofs of the NotZero and
// NotHash classes, per spec.md §4.6.
package verifier

import (
	"errors"
	"fmt"

	"github.com/eth2030/cmt/pkg/cmtparams"
	"github.com/eth2030/cmt/pkg/dhash"
	"github.com/eth2030/cmt/pkg/log"
	"github.com/eth2030/cmt/pkg/proof"
)

var logger = log.Default().Module("cmt.verifier")

var (
	ErrRootIndexOutOfRange = errors.New("verifier: proof resolves to a top-layer index out of range")
	ErrEmptyEquation       = errors.New("verifier: incorrect-coding proof has no participants")
)

// VerifySymbol walks p's ancestry up from (layer, index, value) and checks
// it against codedRoots, per spec.md §4.5's verification mirror.
func VerifySymbol(codedRoots [][32]byte, params *cmtparams.Params, layer, index int, value []byte, p *proof.Proof) (bool, error) {
	alg, err := params.Algorithm()
	if err != nil {
		return false, err
	}

	d := len(p.Ancestry)
	kA, pA := params.KA(), params.PA()

	nAt := make([]int, d+1)
	nAt[d] = len(codedRoots)
	for i := d - 1; i >= 0; i-- {
		nAt[i] = nAt[i+1] * kA
	}
	kAt := make([]int, d+1)
	for i := 0; i <= d; i++ {
		kAt[i] = int(float64(nAt[i]) * params.R)
	}

	current, err := dhash.Sum(alg, value)
	if err != nil {
		return false, err
	}
	idx := index
	for t := 0; t < d; t++ {
		k := kAt[t]
		slot := proof.LaneSlot(idx, k, kA, pA)
		anc := p.Ancestry[t]
		if slot < 0 || slot >= len(anc) || anc[slot] != current {
			return false, nil
		}
		idx = proof.ParentIndex(idx, k, kA, pA)
		h, err := dhash.Sum(alg, anc.Bytes())
		if err != nil {
			return false, err
		}
		current = h
	}
	if idx < 0 || idx >= len(codedRoots) {
		return false, fmt.Errorf("%w: %d", ErrRootIndexOutOfRange, idx)
	}
	return current == codedRoots[idx], nil
}

// Participant is one verified-or-to-be-verified leg of an incorrect-coding
// fraud proof: a symbol's index, byte value, and Merkle proof.
type Participant struct {
	Index int
	Value []byte
	Proof *proof.Proof
}

// NotZeroProof is the fraud proof for a fully-reduced parity equation whose
// XOR is non-zero.
type NotZeroProof struct {
	Layer         int
	EquationIndex int
	Participants  []Participant
}

// NotHashProof is the fraud proof for a degree-1-solved symbol whose hash
// disagrees with its parent commitment: the other |equation|-1 verified
// participants, plus the disputed index's own (claimed, wrong) proof.
type NotHashProof struct {
	Layer         int
	EquationIndex int
	Participants  []Participant // the other, non-disputed members
	DisputedIndex int
	DisputedValue []byte
	DisputedProof *proof.Proof
}

// VerifyNotZero checks a NotZero fraud proof: every participant's Merkle
// proof must pass, and the XOR of their values must be non-zero.
func VerifyNotZero(codedRoots [][32]byte, params *cmtparams.Params, p *NotZeroProof) (bool, error) {
	if len(p.Participants) == 0 {
		return false, ErrEmptyEquation
	}
	xor := make([]byte, len(p.Participants[0].Value))
	for _, part := range p.Participants {
		ok, err := VerifySymbol(codedRoots, params, p.Layer, part.Index, part.Value, part.Proof)
		if err != nil {
			return false, err
		}
		if !ok {
			logger.Warn("not-zero proof rejected: participant proof failed", "index", part.Index)
			return false, nil
		}
		if len(part.Value) != len(xor) {
			return false, fmt.Errorf("verifier: participant %d has mismatched symbol width", part.Index)
		}
		for i := range xor {
			xor[i] ^= part.Value[i]
		}
	}
	if isZero(xor) {
		logger.Warn("not-zero proof rejected: participants actually XOR to zero", "equation", p.EquationIndex)
		return false, nil
	}
	return true, nil
}

// VerifyNotHash checks a NotHash fraud proof: the other participants'
// Merkle proofs must pass; their XOR is the value the disputed index
// should have taken; the fraud proof is accepted iff that implied value
// does NOT verify against the disputed index's own commitment.
func VerifyNotHash(codedRoots [][32]byte, params *cmtparams.Params, p *NotHashProof) (bool, error) {
	if len(p.Participants) == 0 {
		return false, ErrEmptyEquation
	}
	xor := make([]byte, len(p.Participants[0].Value))
	for _, part := range p.Participants {
		ok, err := VerifySymbol(codedRoots, params, p.Layer, part.Index, part.Value, part.Proof)
		if err != nil {
			return false, err
		}
		if !ok {
			logger.Warn("not-hash proof rejected: participant proof failed", "index", part.Index)
			return false, nil
		}
		if len(part.Value) != len(xor) {
			return false, fmt.Errorf("verifier: participant %d has mismatched symbol width", part.Index)
		}
		for i := range xor {
			xor[i] ^= part.Value[i]
		}
	}
	implied, err := VerifySymbol(codedRoots, params, p.Layer, p.DisputedIndex, xor, p.DisputedProof)
	if err != nil {
		return false, err
	}
	if implied {
		logger.Warn("not-hash proof rejected: implied value actually verifies", "equation", p.EquationIndex)
		return false, nil
	}
	return true, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
