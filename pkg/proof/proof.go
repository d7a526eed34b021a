// Package proof builds Merkle inclusion proofs across the lane-interleaved
// Coded Merkle Tree and draws light-client samples via base-layer uniform
// sampling plus Bernoulli self-or-parity-sibling sampling on upper layers.
package proof

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/eth2030/cmt/pkg/cmtparams"
	"github.com/eth2030/cmt/pkg/cmttree"
	"github.com/eth2030/cmt/pkg/symbol"
)

var (
	ErrLayerOutOfRange = errors.New("proof: layer index out of range")
	ErrIndexOutOfRange = errors.New("proof: symbol index out of range")
)

// ParentIndex maps child index c in a layer with k systematic symbols and
// kA systematic slots per parent to its parent's index in the next layer.
func ParentIndex(c, k, kA, pA int) int {
	if c < k {
		return c / kA
	}
	return (c - k) / pA
}

// LaneSlot returns the slot within the parent's A hash positions where
// dhash(c) is stored.
func LaneSlot(c, k, kA, pA int) int {
	if c < k {
		return c % kA
	}
	return (c-k)%pA + kA
}

// Proof is a Merkle inclusion proof: the ordered ancestor symbols from the
// layer above the claim up to (not including) the top layer's roots,
// together with the claim's own layer and index.
type Proof struct {
	Layer    int
	Index    int
	Ancestry []symbol.Upper
}

// MakeMerkleProof builds the inclusion proof for tree.Layers[layer][index],
// per spec.md §4.5: push tree[i+1][parentIndex(c, k_i, kA)] for each layer
// i from layer to L-2, advancing c to its parent index each step.
func MakeMerkleProof(tree *cmttree.Tree, params *cmtparams.Params, layer, index int) (*Proof, error) {
	if layer < 0 || layer >= len(tree.Layers) {
		return nil, fmt.Errorf("%w: %d", ErrLayerOutOfRange, layer)
	}
	cur := tree.Layers[layer]
	if index < 0 || index >= cur.N {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	kA, pA := params.KA(), params.PA()
	p := &Proof{Layer: layer, Index: index}
	c := index
	for i := layer; i < len(tree.Layers)-1; i++ {
		l := tree.Layers[i]
		parent := ParentIndex(c, l.K, kA, pA)
		p.Ancestry = append(p.Ancestry, tree.Layers[i+1].Upper[parent])
		c = parent
	}
	return p, nil
}

// LayerSample is the set of (index, value) pairs sampled at one layer,
// together with each one's Merkle proof, ready to hand to a light client.
type LayerSample struct {
	Layer       int
	Indices     []int
	BaseValues  []symbol.Base  // populated only when Layer == 0
	UpperValues []symbol.Upper // populated only when Layer > 0
	Proofs      []*Proof
}

// Sampler draws light-client sample sets from an in-memory tree.
type Sampler struct {
	Params *cmtparams.Params
	Rng    *rand.Rand
}

// NewSampler constructs a Sampler with its own random source.
func NewSampler(params *cmtparams.Params, seed int64) *Sampler {
	return &Sampler{Params: params, Rng: rand.New(rand.NewSource(seed))}
}

// Sample draws count independent uniform base indices, walks each one's
// Merkle proof, and at every upper layer replaces the proof's own ancestor
// index with either itself (probability r) or a uniformly random sibling
// sharing the same parent (restricted to parity-lane siblings below the
// top layer; unrestricted at the top layer). Indices are deduplicated
// within each layer before proofs are generated.
func (s *Sampler) Sample(tree *cmttree.Tree, count int) ([]LayerSample, error) {
	nLayers := len(tree.Layers)
	chosen := make([]map[int]struct{}, nLayers)
	for i := range chosen {
		chosen[i] = map[int]struct{}{}
	}

	n0 := tree.Layers[0].N
	kA, pA := s.Params.KA(), s.Params.PA()

	for d := 0; d < count; d++ {
		c := s.Rng.Intn(n0)
		chosen[0][c] = struct{}{}
		for li := 0; li < nLayers-1; li++ {
			cur := tree.Layers[li]
			parent := ParentIndex(c, cur.K, kA, pA)
			nextLayer := li + 1
			nextIsTop := nextLayer == nLayers-1
			sib := s.sampleParitySibling(tree.Layers[nextLayer], parent, kA, pA, nextIsTop)
			chosen[nextLayer][sib] = struct{}{}
			c = sib
		}
	}

	out := make([]LayerSample, nLayers)
	for li := 0; li < nLayers; li++ {
		ls := LayerSample{Layer: li}
		for idx := range chosen[li] {
			ls.Indices = append(ls.Indices, idx)
		}
		for _, idx := range ls.Indices {
			p, err := MakeMerkleProof(tree, s.Params, li, idx)
			if err != nil {
				return nil, err
			}
			ls.Proofs = append(ls.Proofs, p)
			if li == 0 {
				ls.BaseValues = append(ls.BaseValues, tree.Layers[0].Base[idx])
			} else {
				ls.UpperValues = append(ls.UpperValues, tree.Layers[li].Upper[idx])
			}
		}
		out[li] = ls
	}
	return out, nil
}

// sampleParitySibling picks, within layer, a sibling of idx -- another
// index whose parent (one layer up) is the same as idx's. With
// probability r it returns idx itself. Otherwise it draws uniformly from
// the parity lane of idx's sibling group (restrict=true), or from the
// full sibling group -- both lanes -- at the top layer (restrict=false).
func (s *Sampler) sampleParitySibling(layer cmttree.Layer, idx, kA, pA int, top bool) int {
	if s.Rng.Float64() < s.Params.R {
		return idx
	}
	var block int
	if idx < layer.K {
		block = idx / kA
	} else {
		block = (idx - layer.K) / pA
	}
	parityLo := layer.K + block*pA
	if !top {
		return parityLo + s.Rng.Intn(pA)
	}
	sysLo := block * kA
	draw := s.Rng.Intn(kA + pA)
	if draw < kA {
		return sysLo + draw
	}
	return parityLo + (draw - kA)
}
