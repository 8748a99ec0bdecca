// Package commands implements the gc60 command tree.
package commands

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jcalabro/gc60"
	"github.com/jcalabro/gc60/internal/config"
	"github.com/jcalabro/gc60/internal/logger"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// app carries the resolved configuration from the root command to its
// subcommands.
type app struct {
	configPath string
	cfg        *config.Config
}

// flag name -> config key
var boundFlags = map[string]string{
	"limit":          "limit",
	"segment-blocks": "segment_blocks",
	"workers":        "workers",
	"parallel":       "parallel",
	"memory-limit":   "memory_limit",
	"json":           "log.json",
	"log-level":      "log.level",
}

// NewRootCmd builds the gc60 command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "gc60",
		Short: "Wheel-compressed segmented prime sieve",
		Long: `gc60 finds the primes up to a bound with a mod-60 wheel sieve of
Eratosthenes packed 16 candidates to a 2-byte block.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (GC60_* prefix)
3. Config file (--config, or ./gc60.toml)
4. Default values

Examples:
  gc60 count --limit 1000000000      # number of primes up to 10^9
  gc60 primes --from 100 --to 200    # primes in a window
  gc60 isprime 999999937             # primality of each argument
  gc60 verify --certify 1000         # cross-check the sieve
  gc60 dump --out primes.gc60        # persist the sieved bitset`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Cleanup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ./gc60.toml if present)")
	pf.Bool("json", false, "emit structured JSON logs")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Uint64("limit", 0, "search bound (default 1000000000)")
	pf.Uint64("segment-blocks", gc60.DefaultSegmentBlocks, "blocks per sieve segment")
	pf.Int("workers", 0, "parallel sieve workers (0 = GOMAXPROCS)")
	pf.Bool("parallel", false, "sieve segments concurrently")
	pf.Int64("memory-limit", 0, "bitset memory budget in bytes (0 = available RAM, <0 = unlimited)")

	root.AddCommand(
		newCountCmd(a),
		newPrimesCmd(a),
		newIsPrimeCmd(a),
		newVerifyCmd(a),
		newDumpCmd(a),
		newLoadCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	v, err := config.New(a.configPath)
	if err != nil {
		return errors.WithHint(err, "check the --config path and TOML syntax")
	}
	for flag, key := range boundFlags {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", flag)
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	pterm.SetDefaultOutput(cmd.ErrOrStderr())
	a.cfg = cfg
	return nil
}

func (a *app) options() []gc60.Option {
	return []gc60.Option{
		gc60.WithSegmentBlocks(a.cfg.SegmentBlocks),
		gc60.WithWorkers(a.cfg.Workers),
		gc60.WithMemoryLimit(a.cfg.MemoryLimit),
		gc60.WithLogger(logger.Named("gc60")),
	}
}

// sieve allocates an engine for limit and runs it to completion.
func (a *app) sieve(ctx context.Context, limit uint64) (*gc60.Engine, error) {
	e, err := gc60.New(limit, a.options()...)
	if err != nil {
		if errors.Is(err, gc60.ErrOutOfMemory) {
			return nil, errors.WithHintf(err, "the bitset needs %d bytes; lower --limit or raise --memory-limit", gc60.BitsetBytes(limit))
		}
		if errors.Is(err, gc60.ErrInvalidLimit) {
			return nil, errors.WithHintf(err, "the limit must be between 1 and %d", uint64(gc60.MaxLimit))
		}
		return nil, errors.Wrap(err, "failed to create sieve")
	}

	start := time.Now()
	if a.cfg.Parallel {
		if err := e.SieveParallel(ctx); err != nil {
			_ = e.Close()
			return nil, errors.Wrap(err, "parallel sieve interrupted")
		}
	} else {
		e.Sieve()
	}

	logger.Logger.Infow("Sieve complete",
		"limit", limit,
		"blocks", e.NumBlocks(),
		"parallel", a.cfg.Parallel,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return e, nil
}
