package cmtparams

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eth2030/cmt/pkg/dhash"
)

func writeParams(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidParams(t *testing.T) {
	path := writeParams(t, `
s0: 256
a: 8
r: 0.5
h: 4
codes:
  - k: 128
    encoding_path: codes/k128.enc
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.KA() != 4 || p.PA() != 4 {
		t.Fatalf("unexpected lane split: kA=%d pA=%d", p.KA(), p.PA())
	}
	alg, err := p.Algorithm()
	if err != nil || alg != dhash.DoubleSHA256 {
		t.Fatalf("expected default DoubleSHA256, got %v err=%v", alg, err)
	}
	if _, ok := p.CodeFor(128); !ok {
		t.Fatalf("expected code entry for k=128")
	}
}

func TestValidateRejectsBadRate(t *testing.T) {
	p := &Params{S0: 256, A: 8, R: 1.5, H: 4}
	if err := p.Validate(); err != ErrInvalidRate {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestValidateRejectsDegenerateKA(t *testing.T) {
	p := &Params{S0: 256, A: 8, R: 0.01, H: 4}
	if err := p.Validate(); err != ErrNoKA {
		t.Fatalf("expected ErrNoKA, got %v", err)
	}
}

func TestAlgorithmRejectsUnknown(t *testing.T) {
	p := &Params{S0: 256, A: 8, R: 0.5, H: 4, HashAlgorithm: "md5"}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for unknown hash algorithm")
	}
}
