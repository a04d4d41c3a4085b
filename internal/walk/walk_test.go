package walk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/testutil"
	"github.com/roach88/mutree/internal/treeio"
	"github.com/roach88/mutree/internal/uid"
)

type stepLog struct {
	steps []Step
	after int
	err   error
	stop  context.CancelFunc
}

func (l *stepLog) RecordStep(_ context.Context, s Step) error {
	l.steps = append(l.steps, s)
	if l.after > 0 && len(l.steps) == l.after {
		if l.stop != nil {
			l.stop()
		}
		return l.err
	}
	return nil
}

func testOptions(seed int64) Options {
	opts := DefaultOptions()
	opts.Seed = seed
	opts.Particles = 3
	opts.Iterations = 60
	return opts
}

func hashes(t *testing.T, res *Result) []string {
	t.Helper()
	var out []string
	for _, p := range res.Particles {
		h, err := treeio.Hash(p.Tree)
		require.NoError(t, err)
		out = append(out, h)
	}
	return out
}

func TestRun_Deterministic(t *testing.T) {
	names := mutree.DefaultNames(6)
	run := func() (*Result, []Step) {
		log := &stepLog{}
		w, err := New(testOptions(42), names, WithRecorder(log))
		require.NoError(t, err)
		res, err := w.Run(context.Background())
		require.NoError(t, err)
		return res, log.steps
	}

	a, stepsA := run()
	b, stepsB := run()
	assert.Equal(t, uint64(42), a.Seed)
	assert.Equal(t, hashes(t, a), hashes(t, b))
	assert.Equal(t, stepsA, stepsB)
	assert.Len(t, stepsA, 3*60)
}

func TestRun_ParticlesAreIndependent(t *testing.T) {
	names := mutree.DefaultNames(5)

	one := testOptions(7)
	one.Particles = 1
	w, err := New(one, names)
	require.NoError(t, err)
	single, err := w.Run(context.Background())
	require.NoError(t, err)

	w, err = New(testOptions(7), names)
	require.NoError(t, err)
	many, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, single.Particles[0].Tree.Equal(many.Particles[0].Tree))
	assert.NotEqual(t, many.Particles[0].Seed, many.Particles[1].Seed)
}

func TestRun_TreesStayValid(t *testing.T) {
	opts := testOptions(99)
	opts.Iterations = 200
	opts.Mix = mutree.Operations
	opts.Limits = mutree.Limits{MaxLossesPerMutation: 2, MaxLosses: 4}
	opts.UIDKind = uid.KindToken

	w, err := New(opts, mutree.DefaultNames(8))
	require.NoError(t, err)
	res, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, res.Iterations)

	for _, p := range res.Particles {
		testutil.RequireValid(t, p.Tree)
		testutil.RequireValidLosses(t, p.Tree)
		assert.LessOrEqual(t, len(p.Tree.Losses()), 4)
		assert.Equal(t, 200, p.Applied+p.Rejected)
	}
}

func TestRun_Metrics(t *testing.T) {
	m := NewMetrics()
	w, err := New(testOptions(5), mutree.DefaultNames(4), WithMetrics(m))
	require.NoError(t, err)
	res, err := w.Run(context.Background())
	require.NoError(t, err)

	var applied, rejected int
	for _, p := range res.Particles {
		applied += p.Applied
		rejected += p.Rejected
	}
	var countedApplied, countedRejected float64
	for _, op := range mutree.DefaultMix {
		countedApplied += promtestutil.ToFloat64(m.moves.WithLabelValues(op.String(), OutcomeApplied))
		countedRejected += promtestutil.ToFloat64(m.moves.WithLabelValues(op.String(), OutcomeRejected))
	}
	assert.Equal(t, float64(applied), countedApplied)
	assert.Equal(t, float64(rejected), countedRejected)
	assert.Equal(t, float64(60), promtestutil.ToFloat64(m.iterations))
	assert.Equal(t, float64(res.Particles[1].Tree.Len()), promtestutil.ToFloat64(m.treeNodes.WithLabelValues("1")))

	path := filepath.Join(t.TempDir(), "walk.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mutree_walk_moves_total")
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := &stepLog{after: 5, stop: cancel}

	w, err := New(testOptions(1), mutree.DefaultNames(4), WithRecorder(log))
	require.NoError(t, err)
	res, err := w.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, log.steps, 5)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Iterations)
}

func TestRun_RecorderErrorStops(t *testing.T) {
	boom := errors.New("disk full")
	log := &stepLog{after: 2, err: boom}

	w, err := New(testOptions(1), mutree.DefaultNames(4), WithRecorder(log))
	require.NoError(t, err)
	_, err = w.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Len(t, log.steps, 2)
}

func TestRun_ZeroIterationsKeepsInitialTree(t *testing.T) {
	opts := testOptions(3)
	opts.Iterations = 0
	opts.Init = InitChain

	w, err := New(opts, mutree.DefaultNames(3))
	require.NoError(t, err)
	res, err := w.Run(context.Background())
	require.NoError(t, err)
	for _, p := range res.Particles {
		assert.Equal(t, "germline(1(2(3)))", testutil.Shape(p.Tree))
	}
}

func TestNew_Validation(t *testing.T) {
	names := mutree.DefaultNames(2)

	bad := testOptions(1)
	bad.Particles = 0
	_, err := New(bad, names)
	assert.ErrorContains(t, err, "particles")

	bad = testOptions(1)
	bad.Iterations = -1
	_, err = New(bad, names)
	assert.ErrorContains(t, err, "iterations")

	bad = testOptions(1)
	bad.Init = "star"
	_, err = New(bad, names)
	assert.ErrorContains(t, err, "unknown init")

	_, err = New(testOptions(1), nil)
	assert.Error(t, err)
}

func TestParseInit(t *testing.T) {
	for _, i := range Inits {
		got, err := ParseInit(string(i))
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
}

func TestNew_ResolvesRandomSeed(t *testing.T) {
	opts := testOptions(-1)
	w, err := New(opts, mutree.DefaultNames(3))
	require.NoError(t, err)

	resolved := w.Options().Seed
	assert.GreaterOrEqual(t, resolved, int64(0))

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(resolved), res.Seed)
}
