// Package wire defines the block header and proof wire types and their RLP
// encoding, built atop the carried pkg/rlp codec.
package wire

import (
	"errors"
	"fmt"

	"github.com/eth2030/cmt/pkg/dhash"
	"github.com/eth2030/cmt/pkg/rlp"
)

var ErrWrongRootCount = errors.New("wire: coded roots length does not match the configured header size H")

// BlockHeader carries the bit-exact fields of spec.md §6. rate, block
// size, and the code identifier are process-start constants, not
// per-header consensus fields (per the Open Question decision recorded in
// DESIGN.md): only the coded roots commitment is carried here.
type BlockHeader struct {
	Version           uint32
	PreviousHeaderHash [32]byte
	MerkleRootHash    [32]byte
	Time              uint32
	Bits              uint32
	Nonce             uint32
	CodedRoots        [][32]byte
}

// EncodeToBytes RLP-encodes h.
func (h *BlockHeader) EncodeToBytes() ([]byte, error) {
	return rlp.EncodeToBytes(h)
}

// DecodeBytes RLP-decodes b into h.
func (h *BlockHeader) DecodeBytes(b []byte) error {
	return rlp.DecodeBytes(b, h)
}

// Hash returns dhash(serialize(header)), the block header hash.
func (h *BlockHeader) Hash(alg dhash.Algorithm) ([32]byte, error) {
	b, err := h.EncodeToBytes()
	if err != nil {
		return [32]byte{}, fmt.Errorf("wire: encode header: %w", err)
	}
	return dhash.Sum(alg, b)
}

// ValidateRootCount checks that h carries exactly H coded roots.
func (h *BlockHeader) ValidateRootCount(expectedH int) error {
	if len(h.CodedRoots) != expectedH {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongRootCount, len(h.CodedRoots), expectedH)
	}
	return nil
}
