package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/walk"
)

// Scenario is a starting tree, a sequence of moves and the assertions the
// outcome must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Mutations are the mutation names, in column order.
	Mutations []string `yaml:"mutations"`

	// Tree is the starting tree in shape notation. Mutually exclusive
	// with Init.
	Tree string `yaml:"tree,omitempty"`

	// Init builds the starting tree when Tree is empty: chain (the
	// default), flat or random.
	Init string `yaml:"init,omitempty"`

	// Seed drives every random draw. It must not be negative.
	Seed int64 `yaml:"seed"`

	Limits Limits `yaml:"limits,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Limits mirrors mutree.Limits with YAML names.
type Limits struct {
	MaxLosses            int `yaml:"max_losses"`
	MaxLossesPerMutation int `yaml:"max_losses_per_mutation"`
}

// Step is one move, or Repeat copies of it.
type Step struct {
	// Op is an operation name such as prune_regraft.
	Op string `yaml:"op"`

	// Node is the uid the move acts on. Empty means a random move.
	Node string `yaml:"node,omitempty"`

	// Target is the second uid for prune_regraft and switch_nodes.
	Target string `yaml:"target,omitempty"`

	// Mutation names the mutation an add_back_mutation step loses. With
	// no Node, the node is drawn among the eligible ones.
	Mutation string `yaml:"mutation,omitempty"`

	// Repeat runs the step this many times; 0 means once.
	Repeat int `yaml:"repeat,omitempty"`

	// Expect, when set, is the required outcome: applied or rejected.
	Expect string `yaml:"expect,omitempty"`
}

// Step outcomes.
const (
	ExpectApplied  = "applied"
	ExpectRejected = "rejected"
)

// Assertion checks the final tree or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Shape is the expected tree (shape).
	Shape string `yaml:"shape,omitempty"`

	// Count is the expected number (node_count, loss_count, applied_count).
	Count int `yaml:"count,omitempty"`

	// Mutation restricts loss_count to one mutation name.
	Mutation string `yaml:"mutation,omitempty"`

	// Op, Applied and Rejected are used by op_count.
	Op       string `yaml:"op,omitempty"`
	Applied  int    `yaml:"applied,omitempty"`
	Rejected int    `yaml:"rejected,omitempty"`
}

// Assertion type constants.
const (
	AssertShape        = "shape"
	AssertValid        = "valid"
	AssertNodeCount    = "node_count"
	AssertLossCount    = "loss_count"
	AssertAppliedCount = "applied_count"
	AssertOpCount      = "op_count"
)

// ErrInvalidScenario is wrapped by every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// LoadScenario reads, parses and validates a scenario file. Unknown fields
// are rejected so typos do not silently drop a step or assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	slices.Sort(paths)
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Validate checks required fields and cross-field rules.
func (s *Scenario) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...))
	}

	switch {
	case s.Name == "":
		return fail("name is required")
	case s.Description == "":
		return fail("description is required")
	case len(s.Mutations) == 0:
		return fail("mutations list is required and must be non-empty")
	case s.Seed < 0:
		return fail("seed must not be negative, got %d", s.Seed)
	case s.Tree != "" && s.Init != "":
		return fail("tree and init are mutually exclusive")
	case len(s.Steps) == 0:
		return fail("steps list is required and must be non-empty")
	case len(s.Assertions) == 0:
		return fail("assertions list is required and must be non-empty")
	case s.Limits.MaxLosses < 0 || s.Limits.MaxLossesPerMutation < 0:
		return fail("limits must not be negative")
	}
	if s.Init != "" {
		if _, err := walk.ParseInit(s.Init); err != nil {
			return fail("%v", err)
		}
	}

	for i, step := range s.Steps {
		if err := s.validateStep(step); err != nil {
			return fail("steps[%d]: %v", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := s.validateAssertion(a); err != nil {
			return fail("assertions[%d]: %v", i, err)
		}
	}
	return nil
}

func (s *Scenario) validateStep(step Step) error {
	op, err := mutree.ParseOperation(step.Op)
	if err != nil {
		return err
	}
	if step.Repeat < 0 {
		return fmt.Errorf("repeat must not be negative, got %d", step.Repeat)
	}
	switch step.Expect {
	case "", ExpectApplied, ExpectRejected:
	default:
		return fmt.Errorf("expect must be %s or %s, got %q", ExpectApplied, ExpectRejected, step.Expect)
	}
	if step.Mutation != "" {
		if op != mutree.OpAddBackMutation {
			return fmt.Errorf("mutation is only valid for %s", mutree.OpAddBackMutation)
		}
		if s.mutationIndex(step.Mutation) < 0 {
			return fmt.Errorf("unknown mutation %q", step.Mutation)
		}
	}
	if step.Node == "" {
		if step.Target != "" {
			return errors.New("target requires node")
		}
		return nil
	}

	switch op {
	case mutree.OpPruneRegraft, mutree.OpSwitchNodes:
		if step.Target == "" {
			return fmt.Errorf("%s with a node requires target", op)
		}
	case mutree.OpAddBackMutation:
		if step.Mutation == "" {
			return fmt.Errorf("%s with a node requires mutation", op)
		}
		fallthrough
	default:
		if step.Target != "" {
			return fmt.Errorf("%s takes no target", op)
		}
	}
	return nil
}

func (s *Scenario) validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return errors.New("type is required")
	case AssertShape:
		if a.Shape == "" {
			return errors.New("shape is required for shape")
		}
	case AssertValid:
	case AssertNodeCount, AssertLossCount, AssertAppliedCount:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for %s", a.Type)
		}
		if a.Mutation != "" {
			if a.Type != AssertLossCount {
				return fmt.Errorf("mutation is only valid for %s", AssertLossCount)
			}
			if s.mutationIndex(a.Mutation) < 0 {
				return fmt.Errorf("unknown mutation %q", a.Mutation)
			}
		}
	case AssertOpCount:
		if _, err := mutree.ParseOperation(a.Op); err != nil {
			return err
		}
		if a.Applied < 0 || a.Rejected < 0 {
			return errors.New("applied and rejected must be non-negative for op_count")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// mutationIndex returns the column of name, or -1.
func (s *Scenario) mutationIndex(name string) int {
	return slices.Index(s.Mutations, name)
}

// limits converts the YAML limits.
func (s *Scenario) limits() mutree.Limits {
	return mutree.Limits{
		MaxLosses:            s.Limits.MaxLosses,
		MaxLossesPerMutation: s.Limits.MaxLossesPerMutation,
	}
}
