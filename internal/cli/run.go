package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/mutree/internal/config"
	"github.com/roach88/mutree/internal/genotype"
	"github.com/roach88/mutree/internal/store"
	"github.com/roach88/mutree/internal/treeio"
	"github.com/roach88/mutree/internal/walk"
)

// RunOptions holds flags for the run command. Walk settings are read back
// through config.Load, which layers these flags over env and file values.
type RunOptions struct {
	*RootOptions
	ConfigPath string

	// WalkID overrides the generated move log id (for testing).
	WalkID string
}

// ParticleSummary is the final state of one particle.
type ParticleSummary struct {
	ID       int    `json:"id"`
	Seed     uint64 `json:"seed"`
	Nodes    int    `json:"nodes"`
	Height   int    `json:"height"`
	Losses   int    `json:"losses"`
	Applied  int    `json:"applied"`
	Rejected int    `json:"rejected"`
	Pruned   int    `json:"pruned"`
	Hash     string `json:"hash"`
	Newick   string `json:"newick"`
}

// RunResult is the output of the run command.
type RunResult struct {
	WalkID     string            `json:"walk_id,omitempty"`
	Seed       uint64            `json:"seed"`
	Cells      int               `json:"cells"`
	Mutations  int               `json:"mutations"`
	Iterations int               `json:"iterations"`
	Stopped    bool              `json:"stopped"`
	Particles  []ParticleSummary `json:"particles"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Random-walk mutation trees over a genotype matrix",
		Long: `Load a genotype matrix, build one tree per particle and apply one random
structural move to every particle per iteration.

Settings come from flags, then MUTREE_* environment variables (for example
MUTREE_WALK_SEED), then .mutree.yaml in the working or home directory, then
defaults. A seed of -1 draws a random seed; the seed used is always logged
so the walk can be repeated.

Exit codes:
  0 - Walk completed or was interrupted
  1 - Walk failed
  2 - Bad input files, configuration or database

Examples:
  mutree run -f matrix.txt -m names.txt -p 4 -i 1000
  mutree run -f matrix.txt --seed 42 --db walks.db --dot tree.dot
  mutree run -f matrix.txt --ops add_back_mutation,prune_regraft --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ConfigPath, "config", "", "config file (default .mutree.yaml)")
	f.StringP("matrix", "f", "", "genotype matrix file (required)")
	f.StringP("mutations", "m", "", "mutation names file, one per line")
	f.IntP("particles", "p", config.DefaultParticles, "number of independent trees")
	f.IntP("iterations", "i", config.DefaultIterations, "moves per particle")
	f.Int64("seed", config.DefaultSeed, "random seed, -1 for a random one")
	f.Int("k", config.DefaultK, "maximum losses per mutation, 0 for unlimited")
	f.Int("max-losses", config.DefaultMaxLosses, "maximum losses in a tree, 0 for unlimited")
	f.String("init", config.DefaultInit, "starting tree: random|chain|flat")
	f.String("uids", config.DefaultUIDs, "node uid scheme: sequential|token|uuid")
	f.StringSlice("ops", nil, "operators to draw from (default add_back_mutation,delete_back_mutation,switch_nodes,prune_regraft)")
	f.String("db", "", "SQLite move log to record the walk in")
	f.String("dot", "", "write the last particle's final tree as Graphviz DOT")
	f.String("metrics", "", "write walk metrics in Prometheus text format")

	return cmd
}

func runWalk(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	walkOpts, err := cfg.WalkOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	ds, err := genotype.Load(cfg.Input.Matrix, cfg.Input.Mutations)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load input", err)
	}
	logger.Info("input loaded", "matrix", cfg.Input.Matrix, "cells", ds.Matrix.Rows(), "mutations", ds.Matrix.Columns())

	var (
		st     *store.Store
		walkID string
	)
	metrics := walk.NewMetrics()
	walkerOpts := []walk.Option{walk.WithLogger(logger), walk.WithMetrics(metrics)}
	if cfg.Output.DB != "" {
		st, err = store.Open(cfg.Output.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		walkID = opts.WalkID
		if walkID == "" {
			walkID = uuid.Must(uuid.NewV7()).String()
		}
		walkerOpts = append(walkerOpts, walk.WithRecorder(st.Recorder(walkID)))
	}

	w, err := walk.New(walkOpts, ds.Names, walkerOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid walk options", err)
	}
	logger.Info("walk configured", "seed", w.Options().Seed, "walk_id", walkID)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	if st != nil {
		if err := st.BeginWalk(ctx, store.Walk{ID: walkID, Options: w.Options(), Mutations: ds.Names}); err != nil {
			return WrapExitError(ExitCommandError, "failed to record walk", err)
		}
	}

	res, runErr := w.Run(ctx)
	stopped := errors.Is(runErr, context.Canceled)
	if runErr != nil && !stopped {
		return WrapExitError(ExitFailure, "walk failed", runErr)
	}

	// the move log and outputs are written even when interrupted, on a
	// fresh context since ctx is done by then
	finishCtx := context.WithoutCancel(ctx)
	if st != nil {
		if err := recordTrees(finishCtx, st, walkID, res, stopped); err != nil {
			return WrapExitError(ExitCommandError, "failed to record walk", err)
		}
	}
	if err := writeOutputs(cfg, res, metrics, logger); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	result := RunResult{
		WalkID:     walkID,
		Seed:       res.Seed,
		Cells:      ds.Matrix.Rows(),
		Mutations:  ds.Matrix.Columns(),
		Iterations: res.Iterations,
		Stopped:    stopped,
		Particles:  make([]ParticleSummary, 0, len(res.Particles)),
	}
	for _, p := range res.Particles {
		h, err := treeio.Hash(p.Tree)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to hash tree", err)
		}
		result.Particles = append(result.Particles, ParticleSummary{
			ID:       p.ID,
			Seed:     p.Seed,
			Nodes:    p.Tree.Len(),
			Height:   p.Tree.Height(),
			Losses:   len(p.Tree.Losses()),
			Applied:  p.Applied,
			Rejected: p.Rejected,
			Pruned:   p.Pruned,
			Hash:     h,
			Newick:   treeio.Newick(p.Tree),
		})
	}

	if out.Format == "json" {
		return out.Success(result)
	}
	printRunText(out, result)
	return nil
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping walk", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func recordTrees(ctx context.Context, st *store.Store, walkID string, res *walk.Result, stopped bool) error {
	for _, p := range res.Particles {
		if err := st.WriteTree(ctx, walkID, p.ID, p.Tree); err != nil {
			return err
		}
	}
	status := store.StatusCompleted
	if stopped {
		status = store.StatusStopped
	}
	return st.FinishWalk(ctx, walkID, status)
}

func writeOutputs(cfg *config.Config, res *walk.Result, metrics *walk.Metrics, logger *slog.Logger) error {
	if path := cfg.Output.DOT; path != "" && len(res.Particles) > 0 {
		last := res.Particles[len(res.Particles)-1]
		if err := os.WriteFile(path, []byte(treeio.DOT(last.Tree)), 0o644); err != nil {
			return fmt.Errorf("write dot: %w", err)
		}
		logger.Info("tree written", "path", path, "particle", last.ID)
	}
	if path := cfg.Output.Metrics; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Info("metrics written", "path", path)
	}
	return nil
}

func printRunText(out *OutputFormatter, r RunResult) {
	w := out.Writer
	state := "completed"
	if r.Stopped {
		state = "stopped"
	}
	fmt.Fprintf(w, "Walk %s after %d iterations (seed %d, %d cells, %d mutations)\n",
		state, r.Iterations, r.Seed, r.Cells, r.Mutations)
	if r.WalkID != "" {
		fmt.Fprintf(w, "Recorded as %s\n", r.WalkID)
	}
	fmt.Fprintln(w)

	rows := make([]table.Row, 0, len(r.Particles))
	for _, p := range r.Particles {
		rows = append(rows, table.Row{p.ID, p.Nodes, p.Height, p.Losses, p.Applied, p.Rejected, p.Pruned, shortHash(p.Hash)})
	}
	out.Table(table.Row{"Particle", "Nodes", "Height", "Losses", "Applied", "Rejected", "Pruned", "Hash"}, rows)

	fmt.Fprintln(w)
	for _, p := range r.Particles {
		fmt.Fprintf(w, "%d: %s\n", p.ID, p.Newick)
	}
	out.VerboseLog("particle seeds: %s", particleSeeds(r.Particles))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func particleSeeds(ps []ParticleSummary) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = fmt.Sprintf("%d=%d", p.ID, p.Seed)
	}
	return strings.Join(parts, " ")
}
