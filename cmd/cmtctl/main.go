// Command cmtctl drives a Coded Merkle Tree end to end from the shell:
// build a tree from raw transaction bytes, hand out inclusion proofs and
// light-client samples, verify a symbol or a fraud proof against a header,
// and run the top-down peeling decoder against collected samples.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/eth2030/cmt/pkg/log"
)

var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

var logger = log.Default().Module("cmtctl")

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := &cli.App{
		Name:    "cmtctl",
		Usage:   "build, prove, sample, verify, and decode Coded Merkle Trees",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "params",
				Aliases:  []string{"p"},
				Usage:    "path to the cmtparams YAML file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn, or error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text, color, or json",
				Value: "text",
			},
		},
		Before: func(c *cli.Context) error {
			level := log.LevelFromString(c.String("log-level"))
			formatter := formatterForName(c.String("log-format"))
			handler := newFormatterHandler(os.Stderr, formatter, slogLevelForLogLevel(level))
			log.SetDefault(log.NewWithHandler(handler))
			logger = log.Default().Module("cmtctl")
			return nil
		},
		Commands: []*cli.Command{
			buildCommand,
			proveCommand,
			verifyCommand,
			sampleCommand,
			decodeCommand,
			verifyFraudCommand,
			metricsCommand,
		},
	}

	if err := app.Run(args); err != nil {
		logger.Error("cmtctl failed", "error", err)
		return 1
	}
	return 0
}
