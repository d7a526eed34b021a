package verifier

import (
	"fmt"
	"strings"
	"testing"

	"github.com/eth2030/cmt/pkg/cmtparams"
	"github.com/eth2030/cmt/pkg/cmttree"
	"github.com/eth2030/cmt/pkg/codetable"
	"github.com/eth2030/cmt/pkg/proof"
	"github.com/eth2030/cmt/pkg/symbol"
	"github.com/eth2030/cmt/pkg/txcodec"
)

func repetitionCode(t *testing.T, k int) *codetable.Table {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < k; i++ {
		fmt.Fprintf(&sb, "%d %d\n", i, k+i)
	}
	tbl, err := codetable.Load(strings.NewReader(sb.String()), 2*k)
	if err != nil {
		t.Fatalf("Load repetition code k=%d: %v", k, err)
	}
	return tbl
}

func buildTestTree(t *testing.T, m int) (*cmttree.Tree, *cmtparams.Params) {
	t.Helper()
	params := &cmtparams.Params{S0: 256, A: 8, R: 0.5, H: 8}
	data := make([]byte, m*256)
	for i := range data {
		data[i] = byte(i)
	}
	txs := []txcodec.Transaction{txcodec.RawTransaction(data)}

	codes := cmttree.MapCodeProvider{}
	n := params.H
	for int(float64(n)*params.R) < m {
		n *= params.KA()
	}
	k0 := int(float64(n) * params.R)
	k := k0
	for {
		codes[k] = repetitionCode(t, k)
		if k%4 != 0 {
			break
		}
		k /= 4
	}

	tree, err := cmttree.Build(txs, params, codes, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree, params
}

func TestVerifySymbolAcceptsGenuineProof(t *testing.T) {
	tree, params := buildTestTree(t, 64)
	roots, err := tree.CodedRoots()
	if err != nil {
		t.Fatalf("CodedRoots: %v", err)
	}
	p, err := proof.MakeMerkleProof(tree, params, 0, 37)
	if err != nil {
		t.Fatalf("MakeMerkleProof: %v", err)
	}
	ok, err := VerifySymbol(roots, params, 0, 37, tree.Layers[0].Base[37].Bytes(), p)
	if err != nil {
		t.Fatalf("VerifySymbol: %v", err)
	}
	if !ok {
		t.Fatalf("expected genuine proof to verify")
	}
}

func TestVerifySymbolRejectsFlippedByte(t *testing.T) {
	tree, params := buildTestTree(t, 64)
	roots, err := tree.CodedRoots()
	if err != nil {
		t.Fatalf("CodedRoots: %v", err)
	}
	p, err := proof.MakeMerkleProof(tree, params, 0, 37)
	if err != nil {
		t.Fatalf("MakeMerkleProof: %v", err)
	}
	corrupted := append([]byte(nil), tree.Layers[0].Base[37].Bytes()...)
	corrupted[0] ^= 0xff
	ok, err := VerifySymbol(roots, params, 0, 37, corrupted, p)
	if err != nil {
		t.Fatalf("VerifySymbol: %v", err)
	}
	if ok {
		t.Fatalf("expected corrupted symbol to fail verification")
	}
}

func TestVerifySymbolUpperLayer(t *testing.T) {
	tree, params := buildTestTree(t, 64)
	roots, err := tree.CodedRoots()
	if err != nil {
		t.Fatalf("CodedRoots: %v", err)
	}
	p, err := proof.MakeMerkleProof(tree, params, 1, 2)
	if err != nil {
		t.Fatalf("MakeMerkleProof: %v", err)
	}
	ok, err := VerifySymbol(roots, params, 1, 2, tree.Layers[1].Upper[2].Bytes(), p)
	if err != nil {
		t.Fatalf("VerifySymbol: %v", err)
	}
	if !ok {
		t.Fatalf("expected upper-layer proof to verify")
	}
}

func TestVerifyNotZeroRejectsWhenParticipantProofFails(t *testing.T) {
	tree, params := buildTestTree(t, 64)
	roots, err := tree.CodedRoots()
	if err != nil {
		t.Fatalf("CodedRoots: %v", err)
	}
	base := tree.Layers[0]
	k0 := base.K

	// Our test code's equation for parity symbol k0+i is {i, k0+i}; tamper
	// the parity symbol so it no longer equals its systematic partner.
	tamperedIdx := k0
	tampered := append([]byte(nil), base.Base[tamperedIdx].Bytes()...)
	tampered[0] ^= 0xff

	var parts []Participant
	for _, idx := range []int{0, tamperedIdx} {
		p, err := proof.MakeMerkleProof(tree, params, 0, idx)
		if err != nil {
			t.Fatalf("MakeMerkleProof: %v", err)
		}
		value := base.Base[idx].Bytes()
		if idx == tamperedIdx {
			value = tampered
		}
		parts = append(parts, Participant{Index: idx, Value: value, Proof: p})
	}

	fraud := &NotZeroProof{Layer: 0, EquationIndex: 0, Participants: parts}
	ok, err := VerifyNotZero(roots, params, fraud)
	if err != nil {
		t.Fatalf("VerifyNotZero: %v", err)
	}
	if ok {
		t.Fatalf("expected VerifyNotZero to reject a tampered value whose Merkle proof no longer matches the honest roots")
	}
}

func TestVerifyNotZeroAcceptsRealFraud(t *testing.T) {
	params := &cmtparams.Params{S0: 256, A: 8, R: 0.5, H: 8}
	m := 64
	data := make([]byte, m*256)
	for i := range data {
		data[i] = byte(i)
	}
	txs := []txcodec.Transaction{txcodec.RawTransaction(data)}

	codes := cmttree.MapCodeProvider{}
	n := params.H
	for int(float64(n)*params.R) < m {
		n *= params.KA()
	}
	k0 := int(float64(n) * params.R)
	k := k0
	for {
		codes[k] = repetitionCode(t, k)
		if k%4 != 0 {
			break
		}
		k /= 4
	}

	badValue := make([]byte, params.S0)
	for i := range badValue {
		badValue[i] = 0xAB
	}
	injectValue, err := symbol.NewBase(badValue, params.S0)
	if err != nil {
		t.Fatalf("build inject value: %v", err)
	}
	tree, err := cmttree.Build(txs, params, codes, &cmttree.FaultInjection{Index: k0, Value: injectValue})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	roots, err := tree.CodedRoots()
	if err != nil {
		t.Fatalf("CodedRoots: %v", err)
	}

	base := tree.Layers[0]
	var parts []Participant
	for _, idx := range []int{0, k0} {
		p, err := proof.MakeMerkleProof(tree, params, 0, idx)
		if err != nil {
			t.Fatalf("MakeMerkleProof: %v", err)
		}
		parts = append(parts, Participant{Index: idx, Value: base.Base[idx].Bytes(), Proof: p})
	}
	fraud := &NotZeroProof{Layer: 0, EquationIndex: 0, Participants: parts}
	ok, err := VerifyNotZero(roots, params, fraud)
	if err != nil {
		t.Fatalf("VerifyNotZero: %v", err)
	}
	if !ok {
		t.Fatalf("expected real tampered-parity fraud to be accepted")
	}
}

func TestVerifyNotZeroRejectsActuallyZeroXOR(t *testing.T) {
	tree, params := buildTestTree(t, 64)
	roots, err := tree.CodedRoots()
	if err != nil {
		t.Fatalf("CodedRoots: %v", err)
	}
	base := tree.Layers[0]
	k0 := base.K

	var parts []Participant
	for _, idx := range []int{0, k0} {
		p, err := proof.MakeMerkleProof(tree, params, 0, idx)
		if err != nil {
			t.Fatalf("MakeMerkleProof: %v", err)
		}
		parts = append(parts, Participant{Index: idx, Value: base.Base[idx].Bytes(), Proof: p})
	}
	fraud := &NotZeroProof{Layer: 0, EquationIndex: 0, Participants: parts}
	ok, err := VerifyNotZero(roots, params, fraud)
	if err != nil {
		t.Fatalf("VerifyNotZero: %v", err)
	}
	if ok {
		t.Fatalf("expected honest equation (zero XOR) to be rejected as fraud")
	}
}
