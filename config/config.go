// Package config parses the CLI surface into a validated Config: node
// URL + JWT source resolution, threshold validation, fork schedule
// selection.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tos-network/elmux/engine/fork"
	"github.com/tos-network/elmux/internal/jwtauth"
	"github.com/tos-network/elmux/internal/xlog"
	"github.com/urfave/cli/v2"
)

// NodeSource is one configured EL endpoint before its JWT secret has
// been resolved to key bytes: either a URL-fragment override
// (#jwt-secret=PATH) or the global --jwt-secret default.
type NodeSource struct {
	URL           string
	JWTSecretPath string
}

// Config is the fully validated, resolved process configuration built
// from CLI flags.
type Config struct {
	Port             int
	ListenAddr       string
	Nodes            []NodeSource
	JWTSecretDefault string
	FcuMajority      float64
	LogLevel         xlog.Level
	NodeTimings      bool
	Holesky          bool
	Forks            fork.Config
}

const jwtFragmentKey = "#jwt-secret="

// ParseNodeSources splits the comma-separated --nodes value into
// NodeSource entries, extracting a per-node "#jwt-secret=PATH"
// fragment when present.
func ParseNodeSources(raw string) ([]NodeSource, error) {
	parts := strings.Split(raw, ",")
	out := make([]NodeSource, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		url := p
		jwtPath := ""
		if idx := strings.Index(p, jwtFragmentKey); idx >= 0 {
			url = p[:idx]
			jwtPath = p[idx+len(jwtFragmentKey):]
		}
		if url == "" {
			return nil, fmt.Errorf("config: empty node URL in %q", p)
		}
		out = append(out, NodeSource{URL: url, JWTSecretPath: jwtPath})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("config: --nodes must name at least one endpoint")
	}
	return out, nil
}

// ValidateThreshold enforces the 0.0 <= v <= 1.0 bound on
// --fcu-majority.
func ValidateThreshold(v float64) error {
	if v < 0.0 || v > 1.0 {
		return fmt.Errorf("config: --fcu-majority must satisfy 0.0 <= v <= 1.0, got %v", v)
	}
	return nil
}

// FromCLI builds a Config from a parsed cli.Context, validating every
// field a config-time error can surface from.
func FromCLI(c *cli.Context) (*Config, error) {
	level, err := xlog.ParseLevel(c.String(LogLevelFlag.Name))
	if err != nil {
		return nil, err
	}

	threshold := c.Float64(FcuMajorityFlag.Name)
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	nodesRaw := c.String(NodesFlag.Name)
	if nodesRaw == "" {
		return nil, fmt.Errorf("config: --nodes is required")
	}
	sources, err := ParseNodeSources(nodesRaw)
	if err != nil {
		return nil, err
	}

	jwtDefault := c.String(JWTSecretFlag.Name)
	for _, ns := range sources {
		if ns.JWTSecretPath == "" && jwtDefault == "" {
			return nil, fmt.Errorf("config: node %q has no #jwt-secret fragment and no --jwt-secret default", ns.URL)
		}
	}

	forks := fork.Mainnet
	if c.Bool(HoleskyFlag.Name) {
		forks = fork.Holesky
	}

	return &Config{
		Port:             c.Int(PortFlag.Name),
		ListenAddr:       c.String(ListenAddrFlag.Name),
		Nodes:            sources,
		JWTSecretDefault: jwtDefault,
		FcuMajority:      threshold,
		LogLevel:         level,
		NodeTimings:      c.Bool(NodeTimingsFlag.Name),
		Holesky:          c.Bool(HoleskyFlag.Name),
		Forks:            forks,
	}, nil
}

// ResolveSecret loads the JWT secret bytes for a NodeSource, falling
// back to the process-wide default path when the node carries no
// fragment override.
func ResolveSecret(ns NodeSource, defaultPath string) ([]byte, error) {
	path := ns.JWTSecretPath
	if path == "" {
		path = defaultPath
	}
	return jwtauth.LoadSecretFile(path)
}

// Addr renders the listen address:port cmd/elmux's http.Server binds to.
func (cfg *Config) Addr() string {
	return cfg.ListenAddr + ":" + strconv.Itoa(cfg.Port)
}
