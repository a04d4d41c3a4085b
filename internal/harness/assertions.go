package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/mutree/internal/mutree"
)

// AssertionError is a failed assertion with enough context to debug it.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			if ev.Applied {
				fmt.Fprintf(&buf, "  [%d] %s node=%s target=%s\n", ev.Seq, ev.Op, ev.Node, ev.Target)
			} else {
				fmt.Fprintf(&buf, "  [%d] %s rejected\n", ev.Seq, ev.Op)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion of s against res and returns
// the failure messages. An empty slice means all passed.
func EvaluateAssertions(res *Result, s *Scenario) []string {
	failures := []string{}
	for i, a := range s.Assertions {
		if err := evaluate(res, s, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func evaluate(res *Result, s *Scenario, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: res.Trace}
	}
	t := res.Tree

	switch a.Type {
	case AssertShape:
		if got := FormatShape(t); got != a.Shape {
			return fail(a.Shape, got)
		}
	case AssertValid:
		if err := t.Validate(); err != nil {
			return fail("valid tree", err.Error())
		}
		if bad := t.InvalidLosses(); len(bad) > 0 {
			return fail("every loss below an active gain", fmt.Sprintf("%d invalid losses in %s", len(bad), FormatShape(t)))
		}
	case AssertNodeCount:
		if got := t.Len(); got != a.Count {
			return fail(fmt.Sprintf("%d nodes", a.Count), fmt.Sprintf("%d nodes", got))
		}
	case AssertLossCount:
		got := len(t.Losses())
		if a.Mutation != "" {
			got = t.LossCount(s.mutationIndex(a.Mutation))
		}
		if got != a.Count {
			return fail(fmt.Sprintf("%d losses", a.Count), fmt.Sprintf("%d losses", got))
		}
	case AssertAppliedCount:
		got := 0
		for _, ev := range res.Trace {
			if ev.Applied {
				got++
			}
		}
		if got != a.Count {
			return fail(fmt.Sprintf("%d applied moves", a.Count), fmt.Sprintf("%d applied moves", got))
		}
	case AssertOpCount:
		op, err := mutree.ParseOperation(a.Op)
		if err != nil {
			return err
		}
		applied, rejected := 0, 0
		for _, c := range res.OpCounts {
			if c.Op == op {
				applied, rejected = c.Applied, c.Rejected
			}
		}
		if applied != a.Applied || rejected != a.Rejected {
			return fail(fmt.Sprintf("%s applied=%d rejected=%d", op, a.Applied, a.Rejected),
				fmt.Sprintf("%s applied=%d rejected=%d", op, applied, rejected))
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
