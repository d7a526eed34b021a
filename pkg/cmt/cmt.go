// Package cmt is the public facade over the Coded Merkle Tree core: the six
// operations of spec.md §6, each composing the lower C1-C7 packages so a
// caller never has to wire a tree build, a proof, or a decode session by
// hand.
package cmt

import (
	"time"

	"github.com/eth2030/cmt/pkg/cmtmetrics"
	"github.com/eth2030/cmt/pkg/cmtparams"
	"github.com/eth2030/cmt/pkg/cmttree"
	"github.com/eth2030/cmt/pkg/decoder"
	"github.com/eth2030/cmt/pkg/log"
	"github.com/eth2030/cmt/pkg/proof"
	"github.com/eth2030/cmt/pkg/txcodec"
	"github.com/eth2030/cmt/pkg/verifier"
	"github.com/eth2030/cmt/pkg/wire"
)

var logger = log.Default().Module("cmt")

// Commitment is the result of building a block's coded Merkle tree: the
// header ready for broadcast and the in-memory tree needed to serve proofs
// and samples to light clients.
type Commitment struct {
	Header *wire.BlockHeader
	Tree   *cmttree.Tree
}

// BuildBlockCommitment builds the full tree for a block's transactions and
// assembles the header that carries its coded-roots commitment.
func BuildBlockCommitment(txs []txcodec.Transaction, params *cmtparams.Params, codes cmttree.CodeProvider, previousHeaderHash [32]byte) (*Commitment, error) {
	start := time.Now()
	tree, err := cmttree.Build(txs, params, codes, nil)
	if err != nil {
		return nil, err
	}
	cmtmetrics.ObserveTreeBuild(time.Since(start))

	roots, err := tree.CodedRoots()
	if err != nil {
		return nil, err
	}
	header := &wire.BlockHeader{
		PreviousHeaderHash: previousHeaderHash,
		CodedRoots:         roots,
	}
	logger.Info("built block commitment", "layers", len(tree.Layers), "roots", len(roots))
	return &Commitment{Header: header, Tree: tree}, nil
}

// MakeMerkleProof builds the inclusion proof for tree[layer][index].
func MakeMerkleProof(tree *cmttree.Tree, params *cmtparams.Params, layer, index int) (*proof.Proof, error) {
	return proof.MakeMerkleProof(tree, params, layer, index)
}

// VerifySymbol checks value against header's coded roots using p.
func VerifySymbol(header *wire.BlockHeader, params *cmtparams.Params, layer, index int, value []byte, p *proof.Proof) (bool, error) {
	return verifier.VerifySymbol(header.CodedRoots, params, layer, index, value, p)
}

// SampleForLightClient draws count independent samples from tree for a
// light client, one LayerSample per tree layer (possibly with zero
// indices, if a layer never came up in any draw).
func SampleForLightClient(tree *cmttree.Tree, params *cmtparams.Params, count int, seed int64) ([]proof.LayerSample, error) {
	s := proof.NewSampler(params, seed)
	samples, err := s.Sample(tree, count)
	if err != nil {
		return nil, err
	}
	for _, ls := range samples {
		cmtmetrics.RecordSamplesRequested(ls.Layer, len(ls.Indices))
	}
	return samples, nil
}

// DecodeBlock runs the top-down peeling decode of spec.md §4.7 across every
// layer, given the per-layer codes and whatever samples a light client (or
// archive node) has collected.
func DecodeBlock(header *wire.BlockHeader, params *cmtparams.Params, codes cmttree.CodeProvider, layerKs []int, samples []decoder.SampleInput) (*decoder.Result, error) {
	specs := make([]decoder.LayerSpec, len(layerKs))
	for i, k := range layerKs {
		table, err := codes.TableFor(k)
		if err != nil {
			return nil, err
		}
		specs[i] = decoder.LayerSpec{K: k, Table: table}
	}
	return decoder.Decode(header.CodedRoots, params, specs, samples)
}

// VerifyIncorrectCoding checks a NotZero or NotHash fraud proof against
// header's coded roots.
func VerifyIncorrectCoding(header *wire.BlockHeader, params *cmtparams.Params, notZero *verifier.NotZeroProof, notHash *verifier.NotHashProof) (bool, error) {
	if notZero != nil {
		return verifier.VerifyNotZero(header.CodedRoots, params, notZero)
	}
	if notHash != nil {
		return verifier.VerifyNotHash(header.CodedRoots, params, notHash)
	}
	return false, nil
}
