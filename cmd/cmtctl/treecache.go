package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/eth2030/cmt/pkg/cmttree"
	"github.com/eth2030/cmt/pkg/symbol"
)

// treeCacheLayer is the JSON-friendly form of one cmttree.Layer: symbol
// bytes hex-encoded so build, prove, sample, and decode can run as
// separate cmtctl invocations against the same on-disk tree.
type treeCacheLayer struct {
	K     int      `json:"k"`
	N     int      `json:"n"`
	Base  []string `json:"base,omitempty"`
	Upper []string `json:"upper,omitempty"`
}

type treeCache struct {
	A      int              `json:"a"`
	Layers []treeCacheLayer `json:"layers"`
}

func saveTreeCache(path string, tree *cmttree.Tree, a int) error {
	tc := &treeCache{A: a}
	for _, l := range tree.Layers {
		tcl := treeCacheLayer{K: l.K, N: l.N}
		for _, b := range l.Base {
			tcl.Base = append(tcl.Base, hex.EncodeToString(b.Bytes()))
		}
		for _, u := range l.Upper {
			tcl.Upper = append(tcl.Upper, hex.EncodeToString(u.Bytes()))
		}
		tc.Layers = append(tc.Layers, tcl)
	}
	data, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return fmt.Errorf("cmtctl: marshal tree cache: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func loadTreeCache(path string) (*cmttree.Tree, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("cmtctl: read tree cache: %w", err)
	}
	var tc treeCache
	if err := json.Unmarshal(data, &tc); err != nil {
		return nil, 0, fmt.Errorf("cmtctl: parse tree cache: %w", err)
	}

	tree := &cmttree.Tree{}
	for _, tcl := range tc.Layers {
		l := cmttree.Layer{K: tcl.K, N: tcl.N}
		if len(tcl.Base) > 0 {
			for _, hx := range tcl.Base {
				b, err := hex.DecodeString(hx)
				if err != nil {
					return nil, 0, fmt.Errorf("cmtctl: decode base symbol: %w", err)
				}
				l.Base = append(l.Base, symbol.Base(b))
			}
		} else {
			for _, hx := range tcl.Upper {
				b, err := hex.DecodeString(hx)
				if err != nil {
					return nil, 0, fmt.Errorf("cmtctl: decode upper symbol: %w", err)
				}
				u, err := symbol.FromBytes(b, tc.A)
				if err != nil {
					return nil, 0, fmt.Errorf("cmtctl: decode upper symbol: %w", err)
				}
				l.Upper = append(l.Upper, u)
			}
		}
		tree.Layers = append(tree.Layers, l)
	}
	return tree, tc.A, nil
}
