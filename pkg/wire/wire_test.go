package wire

import (
	"testing"

	"github.com/eth2030/cmt/pkg/dhash"
)

func sampleHeader() *BlockHeader {
	h := &BlockHeader{
		Version: 1,
		Time:    1700000000,
		Bits:    0x1d00ffff,
		Nonce:   42,
	}
	for i := 0; i < 4; i++ {
		var root [32]byte
		root[0] = byte(i)
		h.CodedRoots = append(h.CodedRoots, root)
	}
	return h
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := sampleHeader()
	b, err := h.EncodeToBytes()
	if err != nil {
		t.Fatalf("EncodeToBytes: %v", err)
	}
	var back BlockHeader
	if err := back.DecodeBytes(b); err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if back.Version != h.Version || back.Time != h.Time || back.Bits != h.Bits || back.Nonce != h.Nonce {
		t.Fatalf("scalar fields mismatch: got %+v", back)
	}
	if len(back.CodedRoots) != len(h.CodedRoots) {
		t.Fatalf("coded roots length mismatch: got %d, want %d", len(back.CodedRoots), len(h.CodedRoots))
	}
	for i := range h.CodedRoots {
		if back.CodedRoots[i] != h.CodedRoots[i] {
			t.Fatalf("coded root %d mismatch", i)
		}
	}
}

func TestBlockHeaderHashDeterministic(t *testing.T) {
	h := sampleHeader()
	a, err := h.Hash(dhash.DoubleSHA256)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash(dhash.DoubleSHA256)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a != b {
		t.Fatalf("header hash not deterministic")
	}
}

func TestValidateRootCount(t *testing.T) {
	h := sampleHeader()
	if err := h.ValidateRootCount(4); err != nil {
		t.Fatalf("ValidateRootCount(4): %v", err)
	}
	if err := h.ValidateRootCount(8); err == nil {
		t.Fatalf("expected error for mismatched H")
	}
}
