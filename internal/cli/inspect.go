package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/mutree/internal/config"
	"github.com/roach88/mutree/internal/genotype"
	"github.com/roach88/mutree/internal/harness"
	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/treeio"
	"github.com/roach88/mutree/internal/uid"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	ConfigPath string
	Tree       string // shape notation, optional
}

// ColumnSummary describes one mutation column.
type ColumnSummary struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	genotype.ColumnCounts
}

// LeafProfile is the genotype of the clone at one leaf of a tree.
type LeafProfile struct {
	UID      string `json:"uid"`
	Label    string `json:"label"`
	Genotype string `json:"genotype"` // one 0 or 1 per matrix column
	Cells    int    `json:"cells"`    // cells consistent with Genotype
}

// InspectResult is the output of the inspect command.
type InspectResult struct {
	Cells     int             `json:"cells"`
	Mutations int             `json:"mutations"`
	Columns   []ColumnSummary `json:"columns"`
	Leaves    []LeafProfile   `json:"leaves,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarise a genotype matrix and its mutation names",
		Long: `Load a genotype matrix (and optionally a names file) the way run does and
print, per mutation, how many cells carry it, lack it or have no call.

With --tree, also print the genotype of every leaf of that tree (in shape
notation, e.g. "germline(1(2,-1))") and how many cells agree with it.
Missing calls agree with anything.

Examples:
  mutree inspect -f matrix.txt
  mutree inspect -f matrix.txt -m names.txt --format json
  mutree inspect -f matrix.txt --tree "germline(1(2),3(4))"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file (default .mutree.yaml)")
	cmd.Flags().StringP("matrix", "f", "", "genotype matrix file (required)")
	cmd.Flags().StringP("mutations", "m", "", "mutation names file, one per line")
	cmd.Flags().StringVar(&opts.Tree, "tree", "", "tree in shape notation whose leaf genotypes to report")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	ds, err := genotype.Load(cfg.Input.Matrix, cfg.Input.Mutations)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load input", err)
	}

	m := ds.Matrix
	res := InspectResult{Cells: m.Rows(), Mutations: m.Columns(), Columns: make([]ColumnSummary, 0, m.Columns())}
	for j := range m.Columns() {
		res.Columns = append(res.Columns, ColumnSummary{Index: j, Name: ds.Names[j], ColumnCounts: m.Counts(j)})
	}
	if opts.Tree != "" {
		tree, err := harness.ParseShape(opts.Tree, ds.Names, uid.NewSequential("n"))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid tree", err)
		}
		res.Leaves = leafProfiles(tree, m)
	}

	if out.Format == "json" {
		return out.Success(res)
	}

	fmt.Fprintf(out.Writer, "%d cells, %d mutations\n\n", res.Cells, res.Mutations)
	rows := make([]table.Row, 0, len(res.Columns))
	for _, c := range res.Columns {
		rows = append(rows, table.Row{c.Index + 1, c.Name, c.Present, c.Absent, c.Missing})
	}
	out.Table(table.Row{"#", "Mutation", "Present", "Absent", "Missing"}, rows)

	if len(res.Leaves) > 0 {
		fmt.Fprintln(out.Writer)
		rows = rows[:0]
		for _, l := range res.Leaves {
			rows = append(rows, table.Row{l.UID, l.Label, l.Genotype, l.Cells})
		}
		out.Table(table.Row{"Leaf", "Mutation", "Genotype", "Cells"}, rows)
	}
	return nil
}

func leafProfiles(tree *mutree.Tree, m *genotype.Matrix) []LeafProfile {
	var out []LeafProfile
	for _, id := range tree.Preorder() {
		if !tree.IsLeaf(id) {
			continue
		}
		profile := tree.Genotype(id)
		var g strings.Builder
		for _, present := range profile {
			if present {
				g.WriteByte('1')
			} else {
				g.WriteByte('0')
			}
		}
		mut := tree.Mutation(id)
		label := mut.Name
		if mut.Loss {
			label = treeio.LossPrefix + label
		}
		out = append(out, LeafProfile{
			UID:      tree.UID(id),
			Label:    label,
			Genotype: g.String(),
			Cells:    m.ConsistentCells(profile),
		})
	}
	return out
}
