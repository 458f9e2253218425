// Command elmux is the fault-tolerant Engine API multiplexer: it
// accepts one inbound JSON-RPC stream from a consensus client, fans
// engine_* calls to a pool of execution-layer endpoints, and reduces
// their responses under a configurable majority rule.
//
// Bootstrap builds a package-level *cli.App in init, with flags
// declared in config/flags.go.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/elmux/config"
	"github.com/tos-network/elmux/httpapi"
	"github.com/tos-network/elmux/internal/xlog"
	"github.com/tos-network/elmux/pool"
	"github.com/tos-network/elmux/router"
)

// sweepInterval is the node pool's periodic health sweep period.
const sweepInterval = 15 * time.Second

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Name = "elmux"
	app.Usage = "fault-tolerant multiplexer between one consensus client and a pool of execution clients"
	app.Flags = config.Flags
	app.Action = run
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromCLI(c)
	if err != nil {
		xlog.Crit("invalid configuration", "err", err)
	}
	xlog.SetRoot(xlog.New(os.Stderr, cfg.LogLevel))

	p := pool.New()
	for _, ns := range cfg.Nodes {
		secret, err := config.ResolveSecret(ns, cfg.JWTSecretDefault)
		if err != nil {
			xlog.Crit("failed to load node JWT secret", "node", ns.URL, "err", err)
		}
		p.AddNodes(pool.NewNode(ns.URL, secret))
	}

	scheduleName := "mainnet"
	if cfg.Holesky {
		scheduleName = "holesky"
	}
	xlog.Info("elmux starting",
		"nodes", len(cfg.Nodes),
		"fcu_majority", cfg.FcuMajority,
		"fork_schedule", scheduleName,
		"listen", cfg.Addr())

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	p.Recheck(bootCtx)
	bootCancel()
	logSweep(p, cfg)

	r := router.New(p, cfg.Forks, cfg.FcuMajority, xlog.Root())
	srv := httpapi.New(p, r, cfg.JWTSecretDefault, xlog.Root())

	httpSrv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.Handler(),
	}

	stopSweep := make(chan struct{})
	go runSweepLoop(p, cfg, stopSweep)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		xlog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		xlog.Error("http server failed", "err", err)
		return err
	}

	close(stopSweep)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// runSweepLoop runs the periodic pool health sweep every sweepInterval
// until stop is closed.
func runSweepLoop(p *pool.Pool, cfg *config.Config, stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepInterval)
			p.Recheck(ctx)
			cancel()
			logSweep(p, cfg)
		}
	}
}

// logSweep emits one Info line per node's latency when --node-timings
// is set.
func logSweep(p *pool.Pool, cfg *config.Config) {
	if !cfg.NodeTimings {
		return
	}
	for _, n := range p.Nodes() {
		xlog.Info("node timing", "url", n.URL, "health", n.Health(), "resp_time_us", n.LastRTT().Microseconds())
	}
}
