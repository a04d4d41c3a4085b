package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/mutree/internal/treeio"
	"github.com/roach88/mutree/internal/walk"
)

// ReplayResult compares a stored walk with a fresh run of it.
type ReplayResult struct {
	WalkID string

	// Particles is the number of particles compared.
	Particles int

	// Mismatches lists particles whose replayed tree hash differs from the
	// stored one, or that have no stored tree.
	Mismatches []int

	// StepsDiffer is set when the replay produced a different step count.
	StepsDiffer bool
}

// Deterministic reports whether the replay matched everywhere.
func (r ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0 && !r.StepsDiffer
}

// Replay re-runs a stored walk from its seed and options without writing
// anything, and compares the resulting trees with the stored hashes.
func (s *Store) Replay(ctx context.Context, walkID string, logger *slog.Logger) (ReplayResult, error) {
	res := ReplayResult{WalkID: walkID}

	stored, err := s.ReadWalk(ctx, walkID)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}
	hashes, err := s.ReadTreeHashes(ctx, walkID)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}
	steps, err := s.ReadSteps(ctx, walkID, AllParticles)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}

	counter := &stepCounter{}
	opts := []walk.Option{walk.WithRecorder(counter)}
	if logger != nil {
		opts = append(opts, walk.WithLogger(logger))
	}
	w, err := walk.New(stored.Options, stored.Mutations, opts...)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}
	run, err := w.Run(ctx)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}

	res.Particles = len(run.Particles)
	res.StepsDiffer = counter.n != len(steps)
	for _, p := range run.Particles {
		h, err := treeio.Hash(p.Tree)
		if err != nil {
			return res, fmt.Errorf("replay: %w", err)
		}
		if p.ID >= len(hashes) || hashes[p.ID] != h {
			res.Mismatches = append(res.Mismatches, p.ID)
		}
	}
	return res, nil
}

type stepCounter struct {
	n int
}

func (c *stepCounter) RecordStep(context.Context, walk.Step) error {
	c.n++
	return nil
}
