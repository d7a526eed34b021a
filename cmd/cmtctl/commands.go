package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/eth2030/cmt/pkg/cmt"
	"github.com/eth2030/cmt/pkg/cmtmetrics"
	"github.com/eth2030/cmt/pkg/decoder"
	"github.com/eth2030/cmt/pkg/proof"
	"github.com/eth2030/cmt/pkg/txcodec"
	"github.com/eth2030/cmt/pkg/verifier"
	"github.com/eth2030/cmt/pkg/wire"
)

var buildCommand = &cli.Command{
	Name:  "build",
	Usage: "build a coded Merkle tree from raw transaction files and write its header",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "tx", Usage: "path to a raw transaction byte file (repeatable)", Required: true},
		&cli.StringFlag{Name: "prev-hash", Usage: "hex-encoded previous header hash", Value: ""},
		&cli.StringFlag{Name: "header-out", Usage: "path to write the RLP-encoded header", Required: true},
		&cli.StringFlag{Name: "tree-out", Usage: "path to write the JSON tree cache consumed by prove/sample", Required: true},
	},
	Action: func(c *cli.Context) error {
		params, err := loadParams(c.String("params"))
		if err != nil {
			return err
		}
		encoding, _, err := loadCodes(params)
		if err != nil {
			return err
		}

		var txs []txcodec.Transaction
		for _, p := range c.StringSlice("tx") {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("cmtctl: read tx file %s: %w", p, err)
			}
			txs = append(txs, txcodec.RawTransaction(data))
		}

		var prevHash [32]byte
		if h := c.String("prev-hash"); h != "" {
			b, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
			if err != nil || len(b) != 32 {
				return fmt.Errorf("cmtctl: prev-hash must be 32 hex-encoded bytes")
			}
			copy(prevHash[:], b)
		}

		commit, err := cmt.BuildBlockCommitment(txs, params, encoding, prevHash)
		if err != nil {
			return err
		}

		headerBytes, err := commit.Header.EncodeToBytes()
		if err != nil {
			return fmt.Errorf("cmtctl: encode header: %w", err)
		}
		if err := os.WriteFile(c.String("header-out"), headerBytes, 0o644); err != nil {
			return fmt.Errorf("cmtctl: write header: %w", err)
		}
		if err := saveTreeCache(c.String("tree-out"), commit.Tree, params.A); err != nil {
			return err
		}

		logger.Info("built tree", "layers", len(commit.Tree.Layers), "roots", len(commit.Header.CodedRoots))
		return nil
	},
}

var proveCommand = &cli.Command{
	Name:  "prove",
	Usage: "build a Merkle inclusion proof for one symbol of a cached tree",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "tree", Usage: "path to a tree cache written by build", Required: true},
		&cli.IntFlag{Name: "layer", Required: true},
		&cli.IntFlag{Name: "index", Required: true},
		&cli.StringFlag{Name: "proof-out", Usage: "path to write the RLP-encoded proof", Required: true},
		&cli.StringFlag{Name: "value-out", Usage: "path to write the claimed symbol's raw bytes", Value: ""},
	},
	Action: func(c *cli.Context) error {
		params, err := loadParams(c.String("params"))
		if err != nil {
			return err
		}
		tree, _, err := loadTreeCache(c.String("tree"))
		if err != nil {
			return err
		}
		alg, err := params.Algorithm()
		if err != nil {
			return err
		}
		tree.Alg = alg

		layer, index := c.Int("layer"), c.Int("index")
		p, err := cmt.MakeMerkleProof(tree, params, layer, index)
		if err != nil {
			return err
		}
		wireProof := wire.FromProof(p)
		data, err := wireProof.EncodeToBytes()
		if err != nil {
			return fmt.Errorf("cmtctl: encode proof: %w", err)
		}
		if err := os.WriteFile(c.String("proof-out"), data, 0o644); err != nil {
			return fmt.Errorf("cmtctl: write proof: %w", err)
		}

		if out := c.String("value-out"); out != "" {
			l := tree.Layers[layer]
			var value []byte
			if l.Base != nil {
				value = l.Base[index].Bytes()
			} else {
				value = l.Upper[index].Bytes()
			}
			if err := os.WriteFile(out, value, 0o644); err != nil {
				return fmt.Errorf("cmtctl: write claimed value: %w", err)
			}
		}

		logger.Info("built proof", "layer", layer, "index", index, "ancestry", len(p.Ancestry))
		return nil
	},
}

var verifyCommand = &cli.Command{
	Name:  "verify",
	Usage: "verify a symbol's value against a header using a Merkle proof",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "header", Required: true},
		&cli.StringFlag{Name: "proof", Required: true},
		&cli.StringFlag{Name: "value", Usage: "path to the claimed symbol's raw bytes", Required: true},
		&cli.IntFlag{Name: "layer", Required: true},
		&cli.IntFlag{Name: "index", Required: true},
	},
	Action: func(c *cli.Context) error {
		params, err := loadParams(c.String("params"))
		if err != nil {
			return err
		}
		header, err := readHeader(c.String("header"))
		if err != nil {
			return err
		}
		p, err := readProof(c.String("proof"), params.A)
		if err != nil {
			return err
		}
		value, err := os.ReadFile(c.String("value"))
		if err != nil {
			return fmt.Errorf("cmtctl: read value: %w", err)
		}

		ok, err := cmt.VerifySymbol(header, params, c.Int("layer"), c.Int("index"), value, p)
		if err != nil {
			return err
		}
		fmt.Println(ok)
		if !ok {
			return cli.Exit("symbol failed verification", 2)
		}
		return nil
	},
}

var sampleCommand = &cli.Command{
	Name:  "sample",
	Usage: "draw a light client's symbol samples from a cached tree",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "tree", Required: true},
		&cli.IntFlag{Name: "count", Value: 30},
		&cli.Int64Flag{Name: "seed", Value: 1},
		&cli.StringFlag{Name: "out", Required: true},
	},
	Action: func(c *cli.Context) error {
		params, err := loadParams(c.String("params"))
		if err != nil {
			return err
		}
		tree, _, err := loadTreeCache(c.String("tree"))
		if err != nil {
			return err
		}
		alg, err := params.Algorithm()
		if err != nil {
			return err
		}
		tree.Alg = alg

		samples, err := cmt.SampleForLightClient(tree, params, c.Int("count"), c.Int64("seed"))
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(samples, "", "  ")
		if err != nil {
			return fmt.Errorf("cmtctl: marshal samples: %w", err)
		}
		if err := os.WriteFile(c.String("out"), data, 0o644); err != nil {
			return fmt.Errorf("cmtctl: write samples: %w", err)
		}
		logger.Info("drew samples", "layers", len(samples))
		return nil
	},
}

var decodeCommand = &cli.Command{
	Name:  "decode",
	Usage: "run the top-down peeling decoder against collected samples",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "header", Required: true},
		&cli.StringFlag{Name: "layer-ks", Usage: "comma-separated systematic sizes, base layer first", Required: true},
		&cli.StringFlag{Name: "samples", Usage: "path to a []proof.LayerSample JSON file, e.g. from sample", Required: true},
		&cli.StringFlag{Name: "base-out", Usage: "path to write the decoded base layer bytes on success", Value: ""},
	},
	Action: func(c *cli.Context) error {
		params, err := loadParams(c.String("params"))
		if err != nil {
			return err
		}
		_, decoding, err := loadCodes(params)
		if err != nil {
			return err
		}
		header, err := readHeader(c.String("header"))
		if err != nil {
			return err
		}

		var ks []int
		for _, s := range strings.Split(c.String("layer-ks"), ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			k, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("cmtctl: invalid layer-ks entry %q: %w", s, err)
			}
			ks = append(ks, k)
		}

		data, err := os.ReadFile(c.String("samples"))
		if err != nil {
			return fmt.Errorf("cmtctl: read samples: %w", err)
		}
		var layerSamples []proof.LayerSample
		if err := json.Unmarshal(data, &layerSamples); err != nil {
			return fmt.Errorf("cmtctl: parse samples: %w", err)
		}
		inputs, err := toSampleInputs(ks, layerSamples)
		if err != nil {
			return err
		}

		result, err := cmt.DecodeBlock(header, params, decoding, ks, inputs)
		if err != nil {
			return err
		}

		logger.Info("decode finished", "layer", result.Layer, "outcome", result.Outcome)
		switch result.Outcome {
		case decoder.OutcomeDone:
			fmt.Println("done")
			if out := c.String("base-out"); out != "" {
				var flat []byte
				for _, b := range result.Base {
					flat = append(flat, b.Bytes()...)
				}
				if err := os.WriteFile(out, flat, 0o644); err != nil {
					return fmt.Errorf("cmtctl: write decoded base: %w", err)
				}
			}
			return nil
		case decoder.OutcomeNotZero:
			fmt.Println("not_zero")
			return cli.Exit("layer rejected as not-zero", 3)
		case decoder.OutcomeNotHash:
			fmt.Println("not_hash")
			return cli.Exit("layer rejected as not-hash", 4)
		default:
			fmt.Println("stopped")
			return cli.Exit(fmt.Sprintf("decode stalled, stopping set %v", result.StoppingSet), 5)
		}
	},
}

var verifyFraudCommand = &cli.Command{
	Name:  "verify-fraud",
	Usage: "verify a NotZero or NotHash incorrect-coding fraud proof (JSON)",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "header", Required: true},
		&cli.StringFlag{Name: "not-zero", Usage: "path to a JSON verifier.NotZeroProof", Value: ""},
		&cli.StringFlag{Name: "not-hash", Usage: "path to a JSON verifier.NotHashProof", Value: ""},
	},
	Action: func(c *cli.Context) error {
		params, err := loadParams(c.String("params"))
		if err != nil {
			return err
		}
		header, err := readHeader(c.String("header"))
		if err != nil {
			return err
		}

		var notZero *verifier.NotZeroProof
		var notHash *verifier.NotHashProof
		if p := c.String("not-zero"); p != "" {
			notZero = &verifier.NotZeroProof{}
			if err := readJSON(p, notZero); err != nil {
				return err
			}
		}
		if p := c.String("not-hash"); p != "" {
			notHash = &verifier.NotHashProof{}
			if err := readJSON(p, notHash); err != nil {
				return err
			}
		}
		if notZero == nil && notHash == nil {
			return fmt.Errorf("cmtctl: one of --not-zero or --not-hash is required")
		}

		ok, err := cmt.VerifyIncorrectCoding(header, params, notZero, notHash)
		if err != nil {
			return err
		}
		fmt.Println(ok)
		if !ok {
			return cli.Exit("fraud proof rejected", 2)
		}
		return nil
	},
}

var metricsCommand = &cli.Command{
	Name:  "metrics",
	Usage: "serve Prometheus metrics for a long-running build/decode pipeline",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "listen", Value: ":9464"},
	},
	Action: func(c *cli.Context) error {
		addr := c.String("listen")
		mux := http.NewServeMux()
		mux.Handle("/metrics", cmtmetrics.Handler())
		logger.Info("serving metrics", "addr", addr)
		return http.ListenAndServe(addr, mux)
	},
}

func readHeader(path string) (*wire.BlockHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cmtctl: read header: %w", err)
	}
	h := &wire.BlockHeader{}
	if err := h.DecodeBytes(data); err != nil {
		return nil, fmt.Errorf("cmtctl: decode header: %w", err)
	}
	return h, nil
}

func readProof(path string, a int) (*proof.Proof, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cmtctl: read proof: %w", err)
	}
	w := &wire.MerkleProofWire{}
	if err := w.DecodeBytes(data); err != nil {
		return nil, fmt.Errorf("cmtctl: decode proof: %w", err)
	}
	return w.ToProof(a)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cmtctl: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cmtctl: parse %s: %w", path, err)
	}
	return nil
}

// toSampleInputs re-groups proof.LayerSample entries (Sample emits one per
// tree layer) into the full per-layer decoder.SampleInput slice DecodeBlock
// expects, filling in empty inputs for any layer ks names that has no entry
// in samples.
func toSampleInputs(ks []int, samples []proof.LayerSample) ([]decoder.SampleInput, error) {
	byLayer := make(map[int]proof.LayerSample, len(samples))
	for _, s := range samples {
		byLayer[s.Layer] = s
	}

	inputs := make([]decoder.SampleInput, len(ks))
	for i := range ks {
		s, ok := byLayer[i]
		if !ok {
			inputs[i] = decoder.SampleInput{}
			continue
		}
		in := decoder.SampleInput{Indices: s.Indices}
		if i == 0 {
			in.BaseValues = s.BaseValues
		} else {
			in.Upper = s.UpperValues
		}
		inputs[i] = in
	}
	return inputs, nil
}
