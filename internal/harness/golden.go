package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/mutree/internal/treeio"
)

// Snapshot is the golden form of a run: the trace and the final tree.
type Snapshot struct {
	Name  string
	Trace []TraceEvent
	Shape string
	Hash  string
}

// canonicalMap converts the snapshot for treeio.MarshalCanonical, which
// only handles maps, slices and scalars.
func (s *Snapshot) canonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"op":      ev.Op,
			"applied": ev.Applied,
		}
		if ev.Node != "" {
			m["node"] = ev.Node
		}
		if ev.Target != "" {
			m["target"] = ev.Target
		}
		if ev.Mutation != "" {
			m["mutation"] = ev.Mutation
		}
		if ev.Reason != "" {
			m["reason"] = ev.Reason
		}
		if len(ev.Pruned) > 0 {
			pruned := make([]any, len(ev.Pruned))
			for j, p := range ev.Pruned {
				pruned[j] = p
			}
			m["pruned"] = pruned
		}
		trace[i] = m
	}
	return map[string]any{
		"scenario_name": s.Name,
		"trace":         trace,
		"shape":         s.Shape,
		"hash":          s.Hash,
	}
}

// MarshalSnapshot renders res as canonical JSON.
func MarshalSnapshot(res *Result) ([]byte, error) {
	snap := Snapshot{Name: res.Name, Trace: res.Trace, Shape: res.Shape, Hash: res.Hash}
	return treeio.MarshalCanonical(snap.canonicalMap())
}

// RunWithGolden runs the scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	res, err := Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, s.Name, res); err != nil {
		return nil, err
	}
	return res, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, res *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(res)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
