// Package walk drives mutation trees through random sequences of structural
// moves.
//
// A walk owns one tree per particle. Every iteration applies one randomly
// chosen operator to each particle's tree, repairs losses the move
// invalidated, and reports the step. There is no scoring: the walk is the
// move-proposal half of a search, useful for exploring the operators and
// replaying them deterministically.
package walk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/random"
	"github.com/roach88/mutree/internal/uid"
)

// Init selects how each particle's starting tree is built.
type Init string

const (
	InitRandom Init = "random"
	InitChain  Init = "chain"
	InitFlat   Init = "flat"
)

// Inits lists the accepted starting layouts.
var Inits = []Init{InitRandom, InitChain, InitFlat}

// ParseInit validates s as an Init.
func ParseInit(s string) (Init, error) {
	for _, i := range Inits {
		if string(i) == s {
			return i, nil
		}
	}
	return "", fmt.Errorf("unknown init %q: must be one of %v", s, Inits)
}

// Options configures a walk.
type Options struct {
	Particles  int `json:"particles"`
	Iterations int `json:"iterations"`

	// Seed drives every random draw; random.RandomSeed picks one.
	Seed int64 `json:"seed"`

	Init   Init          `json:"init"`
	Limits mutree.Limits `json:"limits"`

	// Mix is the operator pool; empty means mutree.DefaultMix.
	Mix []mutree.Operation `json:"mix,omitempty"`

	UIDKind uid.Kind `json:"uid_kind"`
}

// DefaultOptions mirrors the command line defaults.
func DefaultOptions() Options {
	return Options{
		Particles:  1,
		Iterations: 100,
		Seed:       random.RandomSeed,
		Init:       InitRandom,
		Limits:     mutree.Limits{MaxLossesPerMutation: 3},
		UIDKind:    uid.KindSequential,
	}
}

// Step is one attempted move on one particle.
type Step struct {
	Particle  int              `json:"particle"`
	Iteration int              `json:"iteration"`
	Op        mutree.Operation `json:"op"`
	Applied   bool             `json:"applied"`
	Move      mutree.Move      `json:"move"`
	Reason    string           `json:"reason,omitempty"`
	Pruned    []string         `json:"pruned,omitempty"`
	Nodes     int              `json:"nodes"`
}

// Recorder receives every step as it happens. A recorder error stops the
// walk.
type Recorder interface {
	RecordStep(ctx context.Context, s Step) error
}

// Particle is one independent tree and its counters.
type Particle struct {
	ID       int
	Seed     uint64
	Tree     *mutree.Tree
	Applied  int
	Rejected int
	Pruned   int

	rng *random.Source
}

// Result is the outcome of a walk.
type Result struct {
	// Seed is the resolved seed, also when a random one was drawn.
	Seed       uint64
	Iterations int
	Particles  []*Particle
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger sets the logger; the default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) { w.logger = l }
}

// WithMetrics records counters into m.
func WithMetrics(m *Metrics) Option {
	return func(w *Walker) { w.metrics = m }
}

// WithRecorder forwards every step to r.
func WithRecorder(r Recorder) Option {
	return func(w *Walker) { w.recorder = r }
}

// Walker runs walks over a fixed mutation set.
//
// Thread-safety: a Walker must not run concurrently with itself.
type Walker struct {
	opts     Options
	names    []string
	logger   *slog.Logger
	metrics  *Metrics
	recorder Recorder
}

// New validates opts and returns a Walker over the named mutations.
func New(opts Options, names []string, options ...Option) (*Walker, error) {
	if opts.Particles < 1 {
		return nil, fmt.Errorf("walk: particles must be at least 1, got %d", opts.Particles)
	}
	if opts.Iterations < 0 {
		return nil, fmt.Errorf("walk: iterations must not be negative, got %d", opts.Iterations)
	}
	if len(names) == 0 {
		return nil, errors.New("walk: no mutations")
	}
	if opts.Init == "" {
		opts.Init = InitRandom
	}
	if _, err := ParseInit(string(opts.Init)); err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	if opts.Seed < 0 {
		opts.Seed = int64(random.New(opts.Seed).Seed())
	}
	w := &Walker{
		opts:   opts,
		names:  names,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range options {
		o(w)
	}
	return w, nil
}

// Options returns the walker's options with the seed resolved, so a walk
// started with random.RandomSeed can be repeated.
func (w *Walker) Options() Options {
	return w.opts
}

// Names returns the mutation names the walker was built with.
func (w *Walker) Names() []string {
	return w.names
}

// Run builds the particles and walks them. Cancelling ctx stops the walk
// between moves and returns the particles as they stand with ctx's error.
func (w *Walker) Run(ctx context.Context) (*Result, error) {
	src := random.New(w.opts.Seed)
	res := &Result{Seed: src.Seed()}
	w.logger.Info("walk starting",
		"seed", res.Seed,
		"particles", w.opts.Particles,
		"iterations", w.opts.Iterations,
		"mutations", len(w.names),
		"init", w.opts.Init)

	for p := 0; p < w.opts.Particles; p++ {
		particle, err := w.newParticle(p, src.Derive(p))
		if err != nil {
			return nil, err
		}
		res.Particles = append(res.Particles, particle)
		w.metrics.observeTree(strconv.Itoa(p), particle.Tree.Len())
	}

	for i := 0; i < w.opts.Iterations; i++ {
		for _, particle := range res.Particles {
			if err := ctx.Err(); err != nil {
				w.logger.Info("walk stopping: context cancelled", "iteration", i)
				return res, err
			}
			if err := w.step(ctx, particle, i); err != nil {
				return res, err
			}
		}
		res.Iterations = i + 1
		w.metrics.observeIteration()
	}

	for _, particle := range res.Particles {
		w.logger.Info("particle finished",
			"particle", particle.ID,
			"applied", particle.Applied,
			"rejected", particle.Rejected,
			"pruned", particle.Pruned,
			"nodes", particle.Tree.Len(),
			"losses", len(particle.Tree.Losses()))
	}
	return res, nil
}

func (w *Walker) newParticle(id int, rng *random.Source) (*Particle, error) {
	gen, err := uid.New(w.opts.UIDKind, rng)
	if err != nil {
		return nil, fmt.Errorf("particle %d: %w", id, err)
	}
	limits := mutree.WithLimits(w.opts.Limits)

	var tree *mutree.Tree
	switch w.opts.Init {
	case InitChain:
		tree, err = mutree.NewChain(w.names, gen, limits)
	case InitFlat:
		tree, err = mutree.NewFlat(w.names, gen, limits)
	default:
		tree, err = mutree.NewRandom(w.names, rng, gen, limits)
	}
	if err != nil {
		return nil, fmt.Errorf("particle %d: %w", id, err)
	}
	return &Particle{ID: id, Seed: rng.Seed(), Tree: tree, rng: rng}, nil
}

func (w *Walker) step(ctx context.Context, p *Particle, iteration int) error {
	op := mutree.RandomOperation(p.rng, w.opts.Mix)
	s := Step{Particle: p.ID, Iteration: iteration, Op: op}

	mv, err := p.Tree.Apply(op, p.rng)
	switch {
	case mutree.IsInvalidMove(err):
		p.Rejected++
		s.Reason = err.Error()
		w.logger.Debug("move rejected", "particle", p.ID, "iteration", iteration, "op", op.String(), "reason", err)
	case err != nil:
		return fmt.Errorf("particle %d iteration %d: %w", p.ID, iteration, err)
	default:
		p.Applied++
		s.Applied = true
		s.Move = mv
		s.Pruned = p.Tree.PruneInvalidLosses()
		p.Pruned += len(s.Pruned)
		w.logger.Debug("move applied", "particle", p.ID, "iteration", iteration, "move", mv.String(), "pruned", len(s.Pruned))
	}
	s.Nodes = p.Tree.Len()

	w.metrics.observeMove(op, s.Applied)
	w.metrics.observePruned(len(s.Pruned))
	w.metrics.observeTree(strconv.Itoa(p.ID), s.Nodes)

	if w.recorder != nil {
		if err := w.recorder.RecordStep(ctx, s); err != nil {
			return fmt.Errorf("record step: %w", err)
		}
	}
	return nil
}
