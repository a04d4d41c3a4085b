package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/mutree/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
}

// ScenarioReport is the outcome of one scenario.
type ScenarioReport struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Steps  int      `json:"steps"`
	Shape  string   `json:"shape"`
	Hash   string   `json:"hash"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioResult is the output of the scenario command.
type ScenarioResult struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file-or-dir>...",
		Short: "Run move scenarios and check their assertions",
		Long: `Run YAML scenarios: a starting tree, a list of moves and assertions on the
result. Directories are searched for *.yaml files. Every scenario runs twice
and fails if the two runs disagree.

Exit codes:
  0 - All scenarios passed
  1 - At least one scenario failed
  2 - A scenario could not be loaded or run

Examples:
  mutree scenario testdata/scenarios
  mutree scenario regraft.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, cmd, args)
		},
	}
	return cmd
}

func runScenarios(opts *ScenarioOptions, cmd *cobra.Command, paths []string) error {
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	var scenarios []*harness.Scenario
	for _, p := range paths {
		loaded, err := loadScenarios(p)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		scenarios = append(scenarios, loaded...)
	}

	result := ScenarioResult{Scenarios: make([]ScenarioReport, 0, len(scenarios))}
	for _, s := range scenarios {
		res, err := harness.CheckDeterminism(cmd.Context(), s, harness.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to run scenario %s", s.Name), err)
		}
		result.Scenarios = append(result.Scenarios, ScenarioReport{
			Name:   res.Name,
			Pass:   res.Pass,
			Steps:  len(res.Trace),
			Shape:  res.Shape,
			Hash:   res.Hash,
			Errors: res.Errors,
		})
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if out.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		printScenarioText(out, result)
	}

	if result.Failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios", result.Failed, len(result.Scenarios)), ErrScenarioFailed)
	}
	return nil
}

func loadScenarios(path string) ([]*harness.Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return harness.LoadDir(path)
	}
	s, err := harness.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return []*harness.Scenario{s}, nil
}

func printScenarioText(out *OutputFormatter, r ScenarioResult) {
	w := out.Writer
	for _, s := range r.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "PASS %s (%d steps) %s\n", s.Name, s.Steps, s.Shape)
			out.VerboseLog("  hash %s", s.Hash)
			continue
		}
		fmt.Fprintf(w, "FAIL %s (%d steps)\n", s.Name, s.Steps)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed\n", r.Passed, r.Failed)
}
