// Package cmtparams loads and validates the frozen construction parameters
// that govern a Coded Merkle Tree: base symbol size, aggregation factor,
// code rate, header width, per-layer code file paths, and hash algorithm.
package cmtparams

import (
	"errors"
	"fmt"
	"os"

	"github.com/eth2030/cmt/pkg/dhash"
	"gopkg.in/yaml.v2"
)

var (
	ErrInvalidS0   = errors.New("cmtparams: S0 must be positive")
	ErrInvalidA    = errors.New("cmtparams: A must be positive")
	ErrInvalidRate = errors.New("cmtparams: r must satisfy 0 < r < 1")
	ErrInvalidH    = errors.New("cmtparams: H must be positive")
	ErrNoKA        = errors.New("cmtparams: round(A*r) must be in (0, A)")
)

// CodePaths names the encoding and (optional) decoding matrix files for one
// layer's systematic size. DecodingPath may be empty, in which case the
// encoding matrix also serves as the decoding matrix.
type CodePaths struct {
	K            int    `yaml:"k"`
	EncodingPath string `yaml:"encoding_path"`
	DecodingPath string `yaml:"decoding_path"`
}

// Params is the complete set of construction parameters for a CMT, frozen
// once at process start and shared by reference across every block this
// process builds or verifies.
type Params struct {
	S0 int     `yaml:"s0"`
	A  int     `yaml:"a"`
	R  float64 `yaml:"r"`
	H  int     `yaml:"h"`

	HashAlgorithm string `yaml:"hash_algorithm"`

	Codes []CodePaths `yaml:"codes"`
}

// Load reads and parses a YAML parameter file, then validates it.
func Load(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cmtparams: read %s: %w", path, err)
	}
	var p Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("cmtparams: parse %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate enforces the invariants of spec §3: S0 and H positive, A
// positive, 0 < r < 1, and kA = round(A*r) strictly between 0 and A.
func (p *Params) Validate() error {
	if p.S0 <= 0 {
		return ErrInvalidS0
	}
	if p.A <= 0 {
		return ErrInvalidA
	}
	if p.R <= 0 || p.R >= 1 {
		return ErrInvalidRate
	}
	if p.H <= 0 {
		return ErrInvalidH
	}
	ka := p.KA()
	if ka <= 0 || ka >= p.A {
		return ErrNoKA
	}
	if _, err := p.Algorithm(); err != nil {
		return err
	}
	return nil
}

// KA returns round(A*r), the number of systematic-lane slots in an upper
// symbol.
func (p *Params) KA() int {
	return int(p.R*float64(p.A) + 0.5)
}

// PA returns A - KA, the number of parity-lane slots in an upper symbol.
func (p *Params) PA() int {
	return p.A - p.KA()
}

// Algorithm resolves the configured hash algorithm name to a dhash.Algorithm.
// An empty name defaults to double-SHA256.
func (p *Params) Algorithm() (dhash.Algorithm, error) {
	switch p.HashAlgorithm {
	case "", "double-sha256":
		return dhash.DoubleSHA256, nil
	case "keccak256":
		return dhash.Keccak256, nil
	default:
		return 0, fmt.Errorf("cmtparams: unknown hash_algorithm %q", p.HashAlgorithm)
	}
}

// CodeFor returns the CodePaths entry for systematic size k, if configured.
func (p *Params) CodeFor(k int) (CodePaths, bool) {
	for _, c := range p.Codes {
		if c.K == k {
			return c, true
		}
	}
	return CodePaths{}, false
}
