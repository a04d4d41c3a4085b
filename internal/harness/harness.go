package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/random"
	"github.com/roach88/mutree/internal/store"
	"github.com/roach88/mutree/internal/treeio"
	"github.com/roach88/mutree/internal/uid"
	"github.com/roach88/mutree/internal/walk"
)

// uidPrefix is the prefix of every scenario uid: n1, n2, ...
const uidPrefix = "n"

// TraceEvent is one attempted move.
type TraceEvent struct {
	Seq      int      `json:"seq"`
	Op       string   `json:"op"`
	Applied  bool     `json:"applied"`
	Node     string   `json:"node,omitempty"`
	Target   string   `json:"target,omitempty"`
	Mutation string   `json:"mutation,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Pruned   []string `json:"pruned,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Name string `json:"name"`

	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Shape and Hash describe the final tree.
	Shape string `json:"shape"`
	Hash  string `json:"hash"`

	// OpCounts is the per-operation summary read back from the move log.
	OpCounts []store.OpCount `json:"-"`

	Tree *mutree.Tree `json:"-"`
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Harness executes one scenario against a fresh move log.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	rng      *random.Source
	tree     *mutree.Tree
	logger   *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger; the default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes the scenario and evaluates its assertions.
//
// Each run opens its own in-memory move log, so runs are isolated and can
// be repeated. An error is returned only when the scenario could not be
// executed at all; failed expectations and assertions are reported in the
// result.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open move log: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: s,
		store:    st,
		rng:      random.New(s.Seed),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(h)
	}

	if h.tree, err = h.startTree(); err != nil {
		return nil, err
	}
	if err := st.BeginWalk(ctx, store.Walk{ID: s.Name, Options: h.walkOptions(), Mutations: s.Mutations}); err != nil {
		return nil, err
	}

	res := &Result{Name: s.Name, Pass: true, Trace: []TraceEvent{}}
	if err := h.execute(ctx, res); err != nil {
		return nil, err
	}

	if err := st.WriteTree(ctx, s.Name, 0, h.tree); err != nil {
		return nil, err
	}
	if err := st.FinishWalk(ctx, s.Name, store.StatusCompleted); err != nil {
		return nil, err
	}
	if res.OpCounts, err = st.CountOps(ctx, s.Name); err != nil {
		return nil, err
	}

	res.Tree = h.tree
	res.Shape = FormatShape(h.tree)
	if res.Hash, err = treeio.Hash(h.tree); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(res, s) {
		res.AddError("%s", msg)
	}
	h.logger.Info("scenario finished", "name", s.Name, "pass", res.Pass, "steps", len(res.Trace), "hash", res.Hash)
	return res, nil
}

// CheckDeterminism runs the scenario twice and fails the first result if
// the two runs disagree on the trace or the final tree hash.
func CheckDeterminism(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	first, err := Run(ctx, s, opts...)
	if err != nil {
		return nil, err
	}
	second, err := Run(ctx, s, opts...)
	if err != nil {
		return nil, err
	}
	if first.Hash != second.Hash {
		first.AddError("non-deterministic: tree hash %s then %s", first.Hash, second.Hash)
	}
	if !slices.EqualFunc(first.Trace, second.Trace, equalEvent) {
		first.AddError("non-deterministic: traces differ")
	}
	return first, nil
}

func equalEvent(a, b TraceEvent) bool {
	return a.Seq == b.Seq && a.Op == b.Op && a.Applied == b.Applied &&
		a.Node == b.Node && a.Target == b.Target && a.Mutation == b.Mutation &&
		a.Reason == b.Reason && slices.Equal(a.Pruned, b.Pruned)
}

func (h *Harness) startTree() (*mutree.Tree, error) {
	s := h.scenario
	gen := uid.NewSequential(uidPrefix)
	limits := mutree.WithLimits(s.limits())

	if s.Tree != "" {
		return ParseShape(s.Tree, s.Mutations, gen, limits)
	}
	switch walk.Init(s.Init) {
	case walk.InitFlat:
		return mutree.NewFlat(s.Mutations, gen, limits)
	case walk.InitRandom:
		return mutree.NewRandom(s.Mutations, h.rng, gen, limits)
	default:
		return mutree.NewChain(s.Mutations, gen, limits)
	}
}

// walkOptions describes the run in the move log's terms: one particle whose
// iterations are the expanded steps.
func (h *Harness) walkOptions() walk.Options {
	s := h.scenario
	n := 0
	for _, step := range s.Steps {
		n += max(step.Repeat, 1)
	}
	return walk.Options{
		Particles:  1,
		Iterations: n,
		Seed:       s.Seed,
		Init:       walk.Init(s.Init),
		Limits:     s.limits(),
		UIDKind:    uid.KindSequential,
	}
}

func (h *Harness) execute(ctx context.Context, res *Result) error {
	seq := 0
	for i, step := range h.scenario.Steps {
		for range max(step.Repeat, 1) {
			if err := ctx.Err(); err != nil {
				return err
			}
			ev, err := h.step(ctx, seq, step)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if step.Expect != "" && step.Expect != outcome(ev.Applied) {
				res.AddError("step %d (%s): expected %s, got %s: %s", i, step.Op, step.Expect, outcome(ev.Applied), ev.Reason)
			}
			res.Trace = append(res.Trace, ev)
			seq++
		}
	}
	return nil
}

// step applies one move, repairs losses the way a walk does and logs it.
func (h *Harness) step(ctx context.Context, seq int, step Step) (TraceEvent, error) {
	op, err := mutree.ParseOperation(step.Op)
	if err != nil {
		return TraceEvent{}, err
	}
	ev := TraceEvent{Seq: seq, Op: op.String()}
	ws := walk.Step{Particle: 0, Iteration: seq, Op: op}

	mv, err := h.apply(op, step)
	switch {
	case mutree.IsInvalidMove(err):
		ev.Reason = err.Error()
		ws.Reason = ev.Reason
		h.logger.Debug("move rejected", "seq", seq, "op", op.String(), "reason", err)
	case err != nil:
		return ev, err
	default:
		ev.Applied = true
		ev.Node = mv.NodeUID
		ev.Target = mv.TargetUID
		if mv.Mutation >= 0 && mv.Mutation < len(h.scenario.Mutations) {
			ev.Mutation = h.scenario.Mutations[mv.Mutation]
		}
		ev.Pruned = h.tree.PruneInvalidLosses()
		ws.Applied = true
		ws.Move = mv
		ws.Pruned = ev.Pruned
		h.logger.Debug("move applied", "seq", seq, "move", mv.String(), "pruned", len(ev.Pruned))
	}
	ws.Nodes = h.tree.Len()

	if err := h.store.WriteStep(ctx, h.scenario.Name, ws); err != nil {
		return ev, err
	}
	return ev, nil
}

func (h *Harness) apply(op mutree.Operation, step Step) (mutree.Move, error) {
	t := h.tree
	k := h.scenario.mutationIndex(step.Mutation)

	if step.Node == "" {
		if k >= 0 {
			return t.RandomAddBackMutation(h.rng, k)
		}
		return t.Apply(op, h.rng)
	}

	v, ok := t.FindByUID(step.Node)
	if !ok {
		return mutree.Move{}, &mutree.MoveError{Op: op, Reason: fmt.Sprintf("no node %q", step.Node)}
	}
	switch op {
	case mutree.OpAddBackMutation:
		return t.AddBackMutation(v, k)
	case mutree.OpDeleteBackMutation:
		return t.RemoveLoss(v)
	case mutree.OpDeleteNode:
		return t.Remove(v)
	}

	u, ok := t.FindByUID(step.Target)
	if !ok {
		return mutree.Move{}, &mutree.MoveError{Op: op, Reason: fmt.Sprintf("no target %q", step.Target)}
	}
	if op == mutree.OpPruneRegraft {
		return t.Regraft(v, u)
	}
	return t.Switch(v, u)
}

func outcome(applied bool) string {
	if applied {
		return ExpectApplied
	}
	return ExpectRejected
}
