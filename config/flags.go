package config

import (
	"github.com/tos-network/elmux/internal/flags"
	"github.com/urfave/cli/v2"
)

// These are all the command line flags elmux supports: package-level
// *cli.XxxFlag vars grouped by Category.
var (
	PortFlag = &cli.IntFlag{
		Name:     "port",
		Usage:    "Port to listen on for inbound JSON-RPC from the consensus client",
		Value:    7000,
		Category: flags.APICategory,
	}
	ListenAddrFlag = &cli.StringFlag{
		Name:     "listen-addr",
		Usage:    "Network interface to bind the HTTP surface to",
		Value:    "0.0.0.0",
		Category: flags.APICategory,
	}
	NodesFlag = &cli.StringFlag{
		Name:     "nodes",
		Usage:    "Comma-separated execution-layer endpoint URLs, each optionally suffixed #jwt-secret=PATH",
		Category: flags.NetworkingCategory,
	}
	JWTSecretFlag = &cli.StringFlag{
		Name:     "jwt-secret",
		Usage:    "Default JWT secret file for nodes with no #jwt-secret fragment",
		Category: flags.NetworkingCategory,
	}
	FcuMajorityFlag = &cli.Float64Flag{
		Name:     "fcu-majority",
		Usage:    "Fraction of identical responses required for the majority reducer",
		Value:    0.6,
		Category: flags.NetworkingCategory,
	}
	LogLevelFlag = &cli.StringFlag{
		Name:     "log-level",
		Usage:    "Log level: crit, error, warn, info, debug, trace",
		Value:    "info",
		Category: flags.LoggingCategory,
	}
	NodeTimingsFlag = &cli.BoolFlag{
		Name:     "node-timings",
		Usage:    "Log per-node latency on every pool sweep",
		Category: flags.LoggingCategory,
	}
	HoleskyFlag = &cli.BoolFlag{
		Name:     "holesky",
		Usage:    "Select the Holesky testnet fork schedule instead of mainnet",
		Category: flags.NetworkingCategory,
	}
)

// Flags is the full flag set cmd/elmux registers on its cli.App.
var Flags = []cli.Flag{
	PortFlag,
	ListenAddrFlag,
	NodesFlag,
	JWTSecretFlag,
	FcuMajorityFlag,
	LogLevelFlag,
	NodeTimingsFlag,
	HoleskyFlag,
}
