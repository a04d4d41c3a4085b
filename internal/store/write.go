package store

import (
	"context"
	"fmt"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/treeio"
	"github.com/roach88/mutree/internal/walk"
)

// Walk status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
)

// Walk is the stored header of a walk.
type Walk struct {
	ID        string
	Options   walk.Options
	Mutations []string
	Status    string
}

// BeginWalk records a walk before its first step. Options.Seed must be
// resolved (see walk.Walker.Options). Uses ON CONFLICT(id) DO NOTHING, so
// beginning the same walk twice is harmless.
func (s *Store) BeginWalk(ctx context.Context, w Walk) error {
	if w.Options.Seed < 0 {
		return fmt.Errorf("begin walk %s: seed %d is not resolved", w.ID, w.Options.Seed)
	}
	optsJSON, err := marshalOptions(w.Options)
	if err != nil {
		return fmt.Errorf("begin walk: %w", err)
	}
	namesJSON, err := marshalStrings(w.Mutations)
	if err != nil {
		return fmt.Errorf("begin walk: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO walks (id, seed, options, mutations, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, w.ID, w.Options.Seed, optsJSON, namesJSON, StatusRunning)
	if err != nil {
		return fmt.Errorf("begin walk: %w", err)
	}
	return nil
}

// FinishWalk sets the walk's final status.
func (s *Store) FinishWalk(ctx context.Context, walkID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE walks SET status = ? WHERE id = ?`, status, walkID)
	if err != nil {
		return fmt.Errorf("finish walk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish walk %s: %w", walkID, ErrNotFound)
	}
	return nil
}

// WriteStep appends one step. Duplicate (particle, iteration) pairs are
// ignored.
func (s *Store) WriteStep(ctx context.Context, walkID string, st walk.Step) error {
	prunedJSON, err := marshalStrings(st.Pruned)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps
		(walk_id, particle, iteration, op, applied, node_uid, target_uid, mutation, reason, pruned, nodes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		walkID,
		st.Particle,
		st.Iteration,
		st.Op.String(),
		boolToInt(st.Applied),
		st.Move.NodeUID,
		st.Move.TargetUID,
		st.Move.Mutation,
		st.Reason,
		prunedJSON,
		st.Nodes,
	)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	return nil
}

// WriteTree stores a particle's tree with its content hash, replacing any
// tree stored for the same particle.
func (s *Store) WriteTree(ctx context.Context, walkID string, particle int, t *mutree.Tree) error {
	doc, err := treeio.MarshalTree(t)
	if err != nil {
		return fmt.Errorf("write tree: %w", err)
	}
	hash, err := treeio.Hash(t)
	if err != nil {
		return fmt.Errorf("write tree: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trees (walk_id, particle, hash, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(walk_id, particle) DO UPDATE SET hash = excluded.hash, document = excluded.document
	`, walkID, particle, hash, string(doc))
	if err != nil {
		return fmt.Errorf("write tree: %w", err)
	}
	return nil
}

// Recorder returns a walk.Recorder that writes steps under walkID.
func (s *Store) Recorder(walkID string) walk.Recorder {
	return &stepRecorder{store: s, walkID: walkID}
}

type stepRecorder struct {
	store  *Store
	walkID string
}

func (r *stepRecorder) RecordStep(ctx context.Context, st walk.Step) error {
	return r.store.WriteStep(ctx, r.walkID, st)
}
