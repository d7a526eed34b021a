// Package cmttree builds a Coded Merkle Tree from raw block bytes: base
// padding, layer-0 peeling encode, hash-and-aggregate interleaving into
// successive upper layers, until a layer of exactly H symbols is reached.
package cmttree

import (
	"errors"
	"fmt"

	"github.com/eth2030/cmt/pkg/cmtparams"
	"github.com/eth2030/cmt/pkg/codetable"
	"github.com/eth2030/cmt/pkg/dhash"
	"github.com/eth2030/cmt/pkg/log"
	"github.com/eth2030/cmt/pkg/peeling"
	"github.com/eth2030/cmt/pkg/symbol"
	"github.com/eth2030/cmt/pkg/txcodec"
)

var logger = log.Default().Module("cmt.cmttree")

var (
	ErrNoTopLayer    = errors.New("cmttree: construction did not reach a layer of H symbols")
	ErrMissingCode   = errors.New("cmttree: no code table configured for systematic size")
	ErrEmptyTopLayer = errors.New("cmttree: top layer is empty")
)

// CodeProvider resolves the loaded code table for a given systematic size.
// pkg/cmtparams + pkg/codetable.LoadSet populate the concrete implementation
// this interface abstracts away, so cmttree never reads files directly.
type CodeProvider interface {
	TableFor(k int) (*codetable.Table, error)
}

// MapCodeProvider is the simplest CodeProvider: a pre-loaded map from
// systematic size to table.
type MapCodeProvider map[int]*codetable.Table

func (m MapCodeProvider) TableFor(k int) (*codetable.Table, error) {
	t, ok := m[k]
	if !ok {
		return nil, fmt.Errorf("%w: k=%d", ErrMissingCode, k)
	}
	return t, nil
}

// Layer is one level of the tree: either the base layer (Base symbols) or
// an upper layer (Upper symbols), never both.
type Layer struct {
	K     int // systematic symbol count
	N     int // total symbol count
	Base  []symbol.Base
	Upper []symbol.Upper
}

// Hash returns the committed digest of symbol i in this layer.
func (l *Layer) Hash(alg dhash.Algorithm, i int) ([32]byte, error) {
	if l.Base != nil {
		return dhash.Sum(alg, l.Base[i].Bytes())
	}
	return dhash.Sum(alg, l.Upper[i].Bytes())
}

// Tree is the complete ordered sequence of layers, base first.
type Tree struct {
	Layers []Layer
	Alg    dhash.Algorithm
}

// CodedRoots returns the dhash of every symbol in the top layer: the
// block header's commitment.
func (t *Tree) CodedRoots() ([][32]byte, error) {
	top := t.Layers[len(t.Layers)-1]
	roots := make([][32]byte, top.N)
	for i := 0; i < top.N; i++ {
		h, err := top.Hash(t.Alg, i)
		if err != nil {
			return nil, err
		}
		roots[i] = h
	}
	return roots, nil
}

// FaultInjection overwrites base-layer symbol Index with Value immediately
// after layer 0 is encoded, before upper layers are built from it -- the
// hook spec.md §4.3 names for testing and for modelling a malicious
// producer. Upper layers are then built honestly from the tampered base
// layer, exactly as scenario S5 requires.
type FaultInjection struct {
	Index int
	Value symbol.Base
}

// padBase zero-pads data to a multiple of s0 bytes and splits it into
// base symbols.
func padBase(data []byte, s0 int) []symbol.Base {
	m := (len(data) + s0 - 1) / s0
	if m == 0 {
		m = 1
	}
	padded := make([]byte, m*s0)
	copy(padded, data)
	out := make([]symbol.Base, m)
	for i := 0; i < m; i++ {
		out[i] = symbol.Base(padded[i*s0 : (i+1)*s0])
	}
	return out
}

// chooseK0 finds the smallest k0 = H * reduceFactor^t * r (t >= 0) whose
// base symbol count is >= m, guaranteeing successive layer widths divide
// down to exactly H, per spec.md §4.4's padding requirement.
func chooseK0(m, h, reduceFactor int, r float64) int {
	n := h
	for int(float64(n)*r) < m {
		n *= reduceFactor
	}
	return int(float64(n) * r)
}

// Build constructs a complete CodedMerkleTree from txs.
func Build(txs []txcodec.Transaction, params *cmtparams.Params, codes CodeProvider, inject *FaultInjection) (*Tree, error) {
	alg, err := params.Algorithm()
	if err != nil {
		return nil, err
	}
	data := txcodec.Concat(txs)
	baseSyms := padBase(data, params.S0)

	kA := params.KA()
	k0 := chooseK0(len(baseSyms), params.H, kA, params.R)
	systematic := make([]symbol.Base, k0)
	copy(systematic, baseSyms)
	for i := len(baseSyms); i < k0; i++ {
		systematic[i] = symbol.Zero(params.S0)
	}

	table0, err := codes.TableFor(k0)
	if err != nil {
		return nil, err
	}
	engine0 := peeling.New[symbol.Base](table0, k0, symbol.Zero(params.S0))
	layer0Syms, err := engine0.Encode(systematic)
	if err != nil {
		return nil, fmt.Errorf("cmttree: layer 0 encode: %w", err)
	}

	if inject != nil {
		if inject.Index < 0 || inject.Index >= len(layer0Syms) {
			return nil, fmt.Errorf("cmttree: fault injection index %d out of range", inject.Index)
		}
		layer0Syms[inject.Index] = inject.Value
		logger.Warn("injected fault into layer 0", "index", inject.Index)
	}

	tree := &Tree{Alg: alg}
	tree.Layers = append(tree.Layers, Layer{K: k0, N: len(layer0Syms), Base: layer0Syms})
	logger.Info("built layer 0", "k", k0, "n", len(layer0Syms))

	for {
		cur := &tree.Layers[len(tree.Layers)-1]
		if cur.N == params.H {
			break
		}
		next, err := buildUpperLayer(cur, params, alg, codes)
		if err != nil {
			return nil, err
		}
		tree.Layers = append(tree.Layers, *next)
		logger.Info("built upper layer", "layer", len(tree.Layers)-1, "k", next.K, "n", next.N)
		if len(tree.Layers) > 64 {
			return nil, ErrNoTopLayer
		}
	}

	top := tree.Layers[len(tree.Layers)-1]
	if top.N == 0 {
		return nil, ErrEmptyTopLayer
	}
	return tree, nil
}

// buildUpperLayer hashes every symbol of cur, interleaves the hashes per
// spec.md §4.4 into the systematic input for the next layer, and encodes
// it with that layer's code.
func buildUpperLayer(cur *Layer, params *cmtparams.Params, alg dhash.Algorithm, codes CodeProvider) (*Layer, error) {
	hashes := make([][32]byte, cur.N)
	for i := 0; i < cur.N; i++ {
		h, err := cur.Hash(alg, i)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}

	a := params.A
	kA := params.KA()
	pA := params.PA()
	kCur := cur.K
	kNext := cur.N / a
	if kNext == 0 {
		return nil, fmt.Errorf("cmttree: layer of %d symbols is too small to aggregate by A=%d", cur.N, a)
	}

	systematic := make([]symbol.Upper, kNext)
	for t := 0; t < kNext; t++ {
		u := symbol.NewUpper(a)
		for j := 0; j < kA; j++ {
			u[j] = hashes[t*kA+j]
		}
		for j := 0; j < pA; j++ {
			u[kA+j] = hashes[kCur+t*pA+j]
		}
		systematic[t] = u
	}

	table, err := codes.TableFor(kNext)
	if err != nil {
		return nil, err
	}
	engine := peeling.New[symbol.Upper](table, kNext, symbol.NewUpper(a))
	full, err := engine.Encode(systematic)
	if err != nil {
		return nil, fmt.Errorf("cmttree: upper layer encode: %w", err)
	}
	return &Layer{K: kNext, N: len(full), Upper: full}, nil
}
