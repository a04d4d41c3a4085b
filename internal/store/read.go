package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/treeio"
	"github.com/roach88/mutree/internal/uid"
	"github.com/roach88/mutree/internal/walk"
)

// ErrNotFound is returned when a walk or tree does not exist.
var ErrNotFound = errors.New("not found")

// AllParticles selects every particle in ReadSteps.
const AllParticles = -1

// ReadWalk returns the walk header.
func (s *Store) ReadWalk(ctx context.Context, walkID string) (Walk, error) {
	var (
		w         Walk
		optsJSON  string
		namesJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, options, mutations, status FROM walks WHERE id = ?
	`, walkID).Scan(&w.ID, &optsJSON, &namesJSON, &w.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Walk{}, fmt.Errorf("read walk %s: %w", walkID, ErrNotFound)
	}
	if err != nil {
		return Walk{}, fmt.Errorf("read walk: %w", err)
	}

	if w.Options, err = unmarshalOptions(optsJSON); err != nil {
		return Walk{}, fmt.Errorf("read walk: %w", err)
	}
	if w.Mutations, err = unmarshalStrings(namesJSON); err != nil {
		return Walk{}, fmt.Errorf("read walk: %w", err)
	}
	return w, nil
}

// ListWalks returns every walk id in id order.
func (s *Store) ListWalks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM walks ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("list walks: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan walk: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate walks: %w", err)
	}
	return ids, nil
}

// ReadSteps returns the steps of one particle, or of all particles with
// AllParticles, ordered by iteration then particle (the order they ran).
//
// Returns an empty slice (not nil) if no steps exist.
func (s *Store) ReadSteps(ctx context.Context, walkID string, particle int) ([]walk.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT particle, iteration, op, applied, node_uid, target_uid, mutation, reason, pruned, nodes
		FROM steps
		WHERE walk_id = ? AND (? < 0 OR particle = ?)
		ORDER BY iteration ASC, particle ASC
	`, walkID, particle, particle)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []walk.Step{}
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

func scanStep(rows *sql.Rows) (walk.Step, error) {
	var (
		st         walk.Step
		op         string
		applied    int
		prunedJSON string
	)
	err := rows.Scan(&st.Particle, &st.Iteration, &op, &applied,
		&st.Move.NodeUID, &st.Move.TargetUID, &st.Move.Mutation,
		&st.Reason, &prunedJSON, &st.Nodes)
	if err != nil {
		return st, fmt.Errorf("scan step: %w", err)
	}
	if st.Op, err = mutree.ParseOperation(op); err != nil {
		return st, fmt.Errorf("scan step: %w", err)
	}
	st.Applied = applied != 0
	if st.Applied {
		st.Move.Op = st.Op
	}
	if st.Pruned, err = unmarshalStrings(prunedJSON); err != nil {
		return st, fmt.Errorf("scan step: %w", err)
	}
	return st, nil
}

// OpCount is the number of attempts of one operation.
type OpCount struct {
	Op       mutree.Operation
	Applied  int
	Rejected int
}

// CountOps summarises a walk's steps per operation, in operation order.
func (s *Store) CountOps(ctx context.Context, walkID string) ([]OpCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op, SUM(applied), SUM(1 - applied)
		FROM steps
		WHERE walk_id = ?
		GROUP BY op
	`, walkID)
	if err != nil {
		return nil, fmt.Errorf("count ops: %w", err)
	}
	defer rows.Close()

	byOp := make(map[mutree.Operation]OpCount)
	for rows.Next() {
		var (
			name string
			c    OpCount
		)
		if err := rows.Scan(&name, &c.Applied, &c.Rejected); err != nil {
			return nil, fmt.Errorf("scan op count: %w", err)
		}
		if c.Op, err = mutree.ParseOperation(name); err != nil {
			return nil, fmt.Errorf("scan op count: %w", err)
		}
		byOp[c.Op] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate op counts: %w", err)
	}

	counts := []OpCount{}
	for _, op := range mutree.Operations {
		if c, ok := byOp[op]; ok {
			counts = append(counts, c)
		}
	}
	return counts, nil
}

// ReadTree rebuilds a particle's stored tree and returns it with its stored
// hash. gen supplies uids for nodes added after loading.
func (s *Store) ReadTree(ctx context.Context, walkID string, particle int, gen uid.Generator) (*mutree.Tree, string, error) {
	var hash, doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, document FROM trees WHERE walk_id = ? AND particle = ?
	`, walkID, particle).Scan(&hash, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("read tree %s/%d: %w", walkID, particle, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read tree: %w", err)
	}

	t, err := treeio.UnmarshalTree([]byte(doc), gen)
	if err != nil {
		return nil, "", fmt.Errorf("read tree: %w", err)
	}
	return t, hash, nil
}

// ReadTreeHashes returns the stored hash of every particle's tree, in
// particle order.
func (s *Store) ReadTreeHashes(ctx context.Context, walkID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash FROM trees WHERE walk_id = ? ORDER BY particle ASC
	`, walkID)
	if err != nil {
		return nil, fmt.Errorf("query tree hashes: %w", err)
	}
	defer rows.Close()

	hashes := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan tree hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tree hashes: %w", err)
	}
	return hashes, nil
}
