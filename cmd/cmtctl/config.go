package main

import (
	"fmt"
	"os"

	"github.com/eth2030/cmt/pkg/cmtparams"
	"github.com/eth2030/cmt/pkg/cmttree"
	"github.com/eth2030/cmt/pkg/codetable"
)

// loadParams reads and validates the cmtparams YAML file at path.
func loadParams(path string) (*cmtparams.Params, error) {
	return cmtparams.Load(path)
}

// loadCodes loads one codetable.Set per params.Codes entry and splits them
// into two MapCodeProviders: one serving each layer's encoding table (used
// when building a tree) and one serving its decoding table (used by the
// peeling decoder). The two coincide whenever a layer's CodePaths omits a
// DecodingPath.
func loadCodes(params *cmtparams.Params) (encoding, decoding cmttree.MapCodeProvider, err error) {
	encoding = cmttree.MapCodeProvider{}
	decoding = cmttree.MapCodeProvider{}
	for _, cp := range params.Codes {
		encR, err := os.Open(cp.EncodingPath)
		if err != nil {
			return nil, nil, fmt.Errorf("cmtctl: open encoding matrix for k=%d: %w", cp.K, err)
		}
		defer encR.Close()

		var decR *os.File
		if cp.DecodingPath != "" {
			decR, err = os.Open(cp.DecodingPath)
			if err != nil {
				return nil, nil, fmt.Errorf("cmtctl: open decoding matrix for k=%d: %w", cp.K, err)
			}
			defer decR.Close()
		}

		n := int(float64(cp.K) / params.R)
		var set *codetable.Set
		if decR != nil {
			set, err = codetable.LoadSet(encR, decR, n)
		} else {
			set, err = codetable.LoadSet(encR, nil, n)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("cmtctl: load code set for k=%d: %w", cp.K, err)
		}
		encoding[cp.K] = set.Encoding
		decoding[cp.K] = set.Decoding
	}
	return encoding, decoding, nil
}
