package wire

import (
	"github.com/eth2030/cmt/pkg/proof"
	"github.com/eth2030/cmt/pkg/rlp"
	"github.com/eth2030/cmt/pkg/symbol"
)

// MerkleProofWire is the wire form of proof.Proof: the ancestor upper
// symbols packed to bytes so the generic RLP codec can transport them
// without reflecting into the symbol package's types.
type MerkleProofWire struct {
	Layer    uint32
	Index    uint32
	Ancestry [][]byte
}

// FromProof packs p into its wire form.
func FromProof(p *proof.Proof) *MerkleProofWire {
	w := &MerkleProofWire{Layer: uint32(p.Layer), Index: uint32(p.Index)}
	for _, u := range p.Ancestry {
		w.Ancestry = append(w.Ancestry, u.Bytes())
	}
	return w
}

// ToProof unpacks w back into a proof.Proof, given the aggregation width A.
func (w *MerkleProofWire) ToProof(a int) (*proof.Proof, error) {
	p := &proof.Proof{Layer: int(w.Layer), Index: int(w.Index)}
	for _, b := range w.Ancestry {
		u, err := symbol.FromBytes(b, a)
		if err != nil {
			return nil, err
		}
		p.Ancestry = append(p.Ancestry, u)
	}
	return p, nil
}

// EncodeToBytes RLP-encodes w.
func (w *MerkleProofWire) EncodeToBytes() ([]byte, error) {
	return rlp.EncodeToBytes(w)
}

// DecodeBytes RLP-decodes b into w.
func (w *MerkleProofWire) DecodeBytes(b []byte) error {
	return rlp.DecodeBytes(b, w)
}

// IncorrectCodingKind tags the fraud-proof class, per spec.md §7.
type IncorrectCodingKind uint8

const (
	KindNotZero IncorrectCodingKind = iota
	KindNotHash
)

// IncorrectCodingWire is the wire form of an IncorrectCodingProof: a tag,
// the layer and equation it concerns, the participating symbol indices
// and byte values, and (for NotHash) the disputed index's Merkle proof.
type IncorrectCodingWire struct {
	Kind          IncorrectCodingKind
	Layer         uint32
	EquationIndex uint32
	Participants  []uint32
	Values        [][]byte
	DisputedIndex uint32
	DisputedProof *MerkleProofWire
}

// EncodeToBytes RLP-encodes w.
func (w *IncorrectCodingWire) EncodeToBytes() ([]byte, error) {
	return rlp.EncodeToBytes(w)
}

// DecodeBytes RLP-decodes b into w.
func (w *IncorrectCodingWire) DecodeBytes(b []byte) error {
	return rlp.DecodeBytes(b, w)
}
