package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/mutree/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	WalkID   string // optional, specific walk only
}

// ReplayWalkResult holds the replay result for a single walk.
type ReplayWalkResult struct {
	WalkID        string `json:"walk_id"`
	Status        string `json:"status"`
	Particles     int    `json:"particles"`
	Mismatches    []int  `json:"mismatches,omitempty"`
	StepsDiffer   bool   `json:"steps_differ"`
	Skipped       bool   `json:"skipped"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Walks            []ReplayWalkResult `json:"walks"`
	TotalWalks       int                `json:"total_walks"`
	AllDeterministic bool               `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run recorded walks and verify determinism",
		Long: `Re-run every completed walk in a move log from its recorded seed and
options, and compare the resulting trees with the recorded ones. Walks that
were interrupted or never finished are skipped.

Exit codes:
  0 - All replayed walks are deterministic
  1 - A replay produced different trees or step counts
  2 - Command error (database not found, unknown walk, etc.)

Examples:
  mutree replay --db ./walks.db
  mutree replay --db ./walks.db --walk 0192f1c4-...
  mutree replay --db ./walks.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite move log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.WalkID, "walk", "", "replay one walk only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var walkIDs []string
	if opts.WalkID != "" {
		walkIDs = []string{opts.WalkID}
	} else if walkIDs, err = st.ListWalks(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to list walks", err)
	}

	result := ReplayResult{
		Walks:            make([]ReplayWalkResult, 0, len(walkIDs)),
		TotalWalks:       len(walkIDs),
		AllDeterministic: true,
	}
	for _, id := range walkIDs {
		w, err := st.ReadWalk(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read walk %s", id), err)
		}
		wr := ReplayWalkResult{WalkID: id, Status: w.Status}
		if w.Status != store.StatusCompleted {
			wr.Skipped = true
			result.Walks = append(result.Walks, wr)
			out.VerboseLog("skipping walk %s: status %s", id, w.Status)
			continue
		}

		rr, err := st.Replay(ctx, id, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay walk %s", id), err)
		}
		wr.Particles = rr.Particles
		wr.Mismatches = rr.Mismatches
		wr.StepsDiffer = rr.StepsDiffer
		wr.Deterministic = rr.Deterministic()
		if !wr.Deterministic {
			result.AllDeterministic = false
		}
		result.Walks = append(result.Walks, wr)
	}

	if out.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		printReplayText(out, result)
	}

	if !result.AllDeterministic {
		return WrapExitError(ExitFailure, "determinism verification failed", ErrNonDeterministic)
	}
	return nil
}

func printReplayText(out *OutputFormatter, r ReplayResult) {
	if r.TotalWalks == 0 {
		fmt.Fprintln(out.Writer, "No walks found in database.")
		return
	}

	rows := make([]table.Row, 0, len(r.Walks))
	for _, w := range r.Walks {
		verdict := "deterministic"
		switch {
		case w.Skipped:
			verdict = "skipped (" + w.Status + ")"
		case !w.Deterministic:
			verdict = fmt.Sprintf("DIFFERS particles=%v steps_differ=%t", w.Mismatches, w.StepsDiffer)
		}
		rows = append(rows, table.Row{w.WalkID, w.Particles, verdict})
	}
	out.Table(table.Row{"Walk", "Particles", "Replay"}, rows)

	if r.AllDeterministic {
		fmt.Fprintf(out.Writer, "\nAll %d walks verified.\n", r.TotalWalks)
	} else {
		fmt.Fprintln(out.Writer, "\nDeterminism verification FAILED.")
	}
}
