package mutree_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/node"
	"github.com/roach88/mutree/internal/random"
	"github.com/roach88/mutree/internal/testutil"
	"github.com/roach88/mutree/internal/uid"
)

// requireUnchangedOnFailure runs op on tree and asserts it failed with an
// invalid move without touching the tree.
func requireUnchangedOnFailure(t *testing.T, tree *mutree.Tree, op func() (mutree.Move, error)) {
	t.Helper()
	before := tree.Clone()

	_, err := op()
	require.Error(t, err)
	require.ErrorIs(t, err, mutree.ErrInvalidMove)
	require.True(t, mutree.IsInvalidMove(err))
	require.Equal(t, before, tree)
	require.True(t, before.Equal(tree))
}

func TestRootOnlyTree_EveryMoveIsInvalid(t *testing.T) {
	tree, err := mutree.New(mutree.DefaultNames(2), uid.NewSequential("n"))
	require.NoError(t, err)
	rng := random.New(1)

	ops := map[string]func() (mutree.Move, error){
		"delete node":          func() (mutree.Move, error) { return tree.RandomDeleteNode(rng) },
		"delete back mutation": func() (mutree.Move, error) { return tree.RandomDeleteBackMutation(rng) },
		"prune regraft":        func() (mutree.Move, error) { return tree.RandomPruneRegraft(rng) },
		"switch nodes":         func() (mutree.Move, error) { return tree.RandomSwitchNodes(rng) },
		"back mutation":        func() (mutree.Move, error) { return tree.RandomBackMutation(rng) },
		"add back mutation":    func() (mutree.Move, error) { return tree.RandomAddBackMutation(rng, 0) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			requireUnchangedOnFailure(t, tree, op)
		})
	}
	assert.Equal(t, 1, tree.Len())
}

func TestRegraft_DescendantTargetPromotesChildren(t *testing.T) {
	// five-node chain: germline, 1, 2, 3, 4
	tree := testutil.Chain(t, 4)
	third := testutil.Find(t, tree, "2")
	fifth := testutil.Find(t, tree, "4")

	mv, err := tree.Regraft(third, fifth)
	require.NoError(t, err)

	assert.Equal(t, "germline(1(3(4(2))))", testutil.Shape(tree))
	assert.Equal(t, mutree.OpPruneRegraft, mv.Op)
	assert.Equal(t, "n3", mv.NodeUID)
	assert.Equal(t, "n5", mv.TargetUID)
	assert.Equal(t, testutil.Find(t, tree, "1"), tree.Parent(testutil.Find(t, tree, "3")))
	assert.Equal(t, fifth, tree.Parent(third))
	testutil.RequireValid(t, tree)
}

func TestRegraft_MovesWholeSubtree(t *testing.T) {
	tree := testutil.Chain(t, 3)

	_, err := tree.Regraft(testutil.Find(t, tree, "2"), tree.Root())
	require.NoError(t, err)
	assert.Equal(t, "germline(1,2(3))", testutil.Shape(tree))
	testutil.RequireValid(t, tree)
}

func TestRegraft_Refusals(t *testing.T) {
	tree := testutil.Chain(t, 3)
	one := testutil.Find(t, tree, "1")
	two := testutil.Find(t, tree, "2")

	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) { return tree.Regraft(tree.Root(), two) })
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) { return tree.Regraft(two, two) })
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) { return tree.Regraft(two, one) })
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) { return tree.Regraft(two, 99) })
}

func TestRandomPruneRegraft_TooSmall(t *testing.T) {
	tree := testutil.Chain(t, 1)
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.RandomPruneRegraft(random.New(1))
	})
}

func TestRandomPruneRegraft_NeverCreatesCycle(t *testing.T) {
	tree, err := mutree.NewRandom(mutree.DefaultNames(12), random.New(11), uid.NewSequential("n"))
	require.NoError(t, err)
	rng := random.New(12)

	for i := 0; i < 500; i++ {
		mv, err := tree.RandomPruneRegraft(rng)
		require.NoError(t, err)

		assert.Equal(t, mv.Target, tree.Parent(mv.Node))
		assert.NotContains(t, tree.Ancestors(mv.Node), mv.Node)
		testutil.RequireValid(t, tree)
	}
}

func TestRegraftTargets_ExcludeSubtreeAndParent(t *testing.T) {
	tree := testutil.Flat(t, 3)
	_, err := tree.Regraft(testutil.Find(t, tree, "3"), testutil.Find(t, tree, "2"))
	require.NoError(t, err)
	require.Equal(t, "germline(1,2(3))", testutil.Shape(tree))

	targets := tree.RegraftTargets(testutil.Find(t, tree, "2"))
	assert.Equal(t, []string{"1"}, names(tree, targets))
}

func TestAddBackMutation_AdoptsChildren(t *testing.T) {
	tree := testutil.Chain(t, 3)

	candidates := tree.BackMutationCandidates(0)
	assert.Equal(t, []string{"1", "2", "3"}, names(tree, candidates))

	mv, err := tree.RandomAddBackMutation(testutil.NewScriptedRand(1), 0)
	require.NoError(t, err)

	assert.Equal(t, "germline(1(2(-1(3))))", testutil.Shape(tree))
	assert.Equal(t, mutree.OpAddBackMutation, mv.Op)
	assert.Equal(t, "n5", mv.NodeUID)
	assert.Equal(t, "n3", mv.TargetUID)
	assert.Equal(t, 0, mv.Mutation)
	assert.Equal(t, mutree.Mutation{ID: 0, Name: "1", Loss: true}, tree.Mutation(mv.Node))
	assert.Equal(t, 1, tree.LossCount(0))
	testutil.RequireValid(t, tree)
	testutil.RequireValidLosses(t, tree)
}

func TestAddBackMutation_NoDoubleLoss(t *testing.T) {
	tree := testutil.Chain(t, 3)
	_, err := tree.AddBackMutation(testutil.Find(t, tree, "2"), 0)
	require.NoError(t, err)

	assert.Empty(t, tree.BackMutationCandidates(0))
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.RandomAddBackMutation(random.New(1), 0)
	})
	// losing it again above the existing loss would lose it twice on one path
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.AddBackMutation(testutil.Find(t, tree, "1"), 0)
	})
}

func TestAddBackMutation_Refusals(t *testing.T) {
	tree := testutil.Flat(t, 2)

	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.AddBackMutation(testutil.Find(t, tree, "2"), 0)
	})
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.AddBackMutation(tree.Root(), 0)
	})
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.RandomAddBackMutation(random.New(1), 5)
	})
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.RandomAddBackMutation(random.New(1), -1)
	})
}

func TestAddBackMutation_Limits(t *testing.T) {
	t.Run("total", func(t *testing.T) {
		tree := testutil.Flat(t, 3, mutree.WithLimits(mutree.Limits{MaxLosses: 1}))
		_, err := tree.AddBackMutation(testutil.Find(t, tree, "1"), 0)
		require.NoError(t, err)

		requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
			return tree.RandomBackMutation(random.New(1))
		})
	})

	t.Run("per mutation", func(t *testing.T) {
		limited := mutree.WithLimits(mutree.Limits{MaxLossesPerMutation: 1})
		tree := testutil.Flat(t, 3, limited)
		one := testutil.Find(t, tree, "1")
		for _, name := range []string{"2", "3"} {
			_, err := tree.Regraft(testutil.Find(t, tree, name), one)
			require.NoError(t, err)
		}
		_, err := tree.AddBackMutation(testutil.Find(t, tree, "2"), 0)
		require.NoError(t, err)
		require.Equal(t, "germline(1(2(-1),3))", testutil.Shape(tree))

		// "3" still carries mutation 0, only the limit blocks it
		assert.Equal(t, []string{"3"}, names(tree, tree.BackMutationCandidates(0)))
		requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
			return tree.RandomAddBackMutation(random.New(1), 0)
		})
		assert.Equal(t, mutree.Limits{MaxLossesPerMutation: 1}, tree.Limits())
	})
}

func TestRandomBackMutation(t *testing.T) {
	tree := testutil.Flat(t, 1)

	mv, err := tree.RandomBackMutation(random.New(4))
	require.NoError(t, err)
	assert.Equal(t, "germline(1(-1))", testutil.Shape(tree))
	assert.Equal(t, 0, mv.Mutation)

	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.RandomBackMutation(random.New(4))
	})
}

func TestRandomDeleteBackMutation_SplicesChildren(t *testing.T) {
	tree := testutil.Flat(t, 3)
	one := testutil.Find(t, tree, "1")
	for _, name := range []string{"2", "3"} {
		_, err := tree.Regraft(testutil.Find(t, tree, name), one)
		require.NoError(t, err)
	}
	_, err := tree.AddBackMutation(one, 0)
	require.NoError(t, err)
	require.Equal(t, "germline(1(-1(2,3)))", testutil.Shape(tree))

	mv, err := tree.RandomDeleteBackMutation(testutil.NewScriptedRand(0))
	require.NoError(t, err)

	assert.Equal(t, "germline(1(2,3))", testutil.Shape(tree))
	assert.Equal(t, mutree.OpDeleteBackMutation, mv.Op)
	assert.Equal(t, "n2", mv.TargetUID)
	testutil.RequireValid(t, tree)

	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.RandomDeleteBackMutation(random.New(1))
	})
}

func TestRemoveLoss_RefusesGains(t *testing.T) {
	tree := testutil.Chain(t, 2)
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) {
		return tree.RemoveLoss(testutil.Find(t, tree, "1"))
	})

	_, err := tree.AddBackMutation(testutil.Find(t, tree, "1"), 0)
	require.NoError(t, err)
	loss := tree.Losses()[0]

	mv, err := tree.RemoveLoss(loss)
	require.NoError(t, err)
	assert.Equal(t, mutree.OpDeleteBackMutation, mv.Op)
	assert.Equal(t, "germline(1(2))", testutil.Shape(tree))
}

func TestRandomDeleteNode_KeepsPosition(t *testing.T) {
	tree := testutil.Flat(t, 5)
	one := testutil.Find(t, tree, "1")
	for _, name := range []string{"4", "5"} {
		_, err := tree.Regraft(testutil.Find(t, tree, name), one)
		require.NoError(t, err)
	}
	require.Equal(t, "germline(1(4,5),2,3)", testutil.Shape(tree))

	mv, err := tree.RandomDeleteNode(testutil.NewScriptedRand(0))
	require.NoError(t, err)

	assert.Equal(t, "germline(4,5,2,3)", testutil.Shape(tree))
	assert.Equal(t, mutree.OpDeleteNode, mv.Op)
	assert.Equal(t, "n2", mv.NodeUID)
	_, ok := tree.FindByUID("n2")
	assert.False(t, ok)
	testutil.RequireValid(t, tree)
}

func TestRemove_Refusals(t *testing.T) {
	tree := testutil.Flat(t, 1)
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) { return tree.Remove(tree.Root()) })
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) { return tree.Remove(42) })
}

func TestSwitch_ExchangesPayloadOnly(t *testing.T) {
	tree := testutil.Chain(t, 3)
	one := testutil.Find(t, tree, "1")
	three := testutil.Find(t, tree, "3")

	_, err := tree.Switch(one, three)
	require.NoError(t, err)

	assert.Equal(t, "germline(3(2(1)))", testutil.Shape(tree))
	assert.Equal(t, "n2", tree.UID(one))
	assert.Equal(t, "3", tree.Mutation(one).Name)
	testutil.RequireValid(t, tree)

	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) { return tree.Switch(one, one) })
	requireUnchangedOnFailure(t, tree, func() (mutree.Move, error) { return tree.Switch(tree.Root(), one) })
}

func TestRandomSwitchNodes(t *testing.T) {
	tree := testutil.Chain(t, 3)

	// first draw picks index 0, second draw 0 is shifted past it to index 1
	mv, err := tree.RandomSwitchNodes(testutil.NewScriptedRand(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "germline(2(1(3)))", testutil.Shape(tree))
	assert.NotEqual(t, mv.Node, mv.Target)

	small := testutil.Chain(t, 1)
	requireUnchangedOnFailure(t, small, func() (mutree.Move, error) {
		return small.RandomSwitchNodes(random.New(1))
	})
}

func TestPruneInvalidLosses(t *testing.T) {
	tree := testutil.Flat(t, 2)
	_, err := tree.AddBackMutation(testutil.Find(t, tree, "1"), 0)
	require.NoError(t, err)
	loss := tree.Losses()[0]

	_, err = tree.Regraft(loss, testutil.Find(t, tree, "2"))
	require.NoError(t, err)
	require.Equal(t, "germline(1,2(-1))", testutil.Shape(tree))
	require.Len(t, tree.InvalidLosses(), 1)

	removed := tree.PruneInvalidLosses()
	assert.Equal(t, []string{"n4"}, removed)
	assert.Equal(t, "germline(1,2)", testutil.Shape(tree))
	testutil.RequireValid(t, tree)
	testutil.RequireValidLosses(t, tree)
}

func TestApply_RandomWalkKeepsInvariants(t *testing.T) {
	rng := random.New(2024)
	tree, err := mutree.NewRandom(mutree.DefaultNames(8), rng, uid.NewToken(rng),
		mutree.WithLimits(mutree.Limits{MaxLossesPerMutation: 2}))
	require.NoError(t, err)

	failures := 0
	for i := 0; i < 400; i++ {
		op := mutree.RandomOperation(rng, nil)
		before := tree.Clone()

		_, err := tree.Apply(op, rng)
		if err != nil {
			require.ErrorIs(t, err, mutree.ErrInvalidMove, "iteration %d", i)
			require.Equal(t, before, tree, "iteration %d", i)
			failures++
			continue
		}
		tree.PruneInvalidLosses()
		testutil.RequireValid(t, tree)
		testutil.RequireValidLosses(t, tree)
		for k := 0; k < tree.Mutations(); k++ {
			require.LessOrEqual(t, tree.LossCount(k), 2)
		}
	}
	// delete-back-mutation fails whenever there are no losses
	assert.Positive(t, failures)
}

func TestApply_Deterministic(t *testing.T) {
	run := func() (*mutree.Tree, []mutree.Move) {
		rng := random.New(77)
		tree, err := mutree.NewRandom(mutree.DefaultNames(6), rng, uid.NewUUID(rng))
		require.NoError(t, err)

		var moves []mutree.Move
		for i := 0; i < 200; i++ {
			mv, err := tree.Apply(mutree.RandomOperation(rng, mutree.Operations), rng)
			if err != nil {
				continue
			}
			tree.PruneInvalidLosses()
			moves = append(moves, mv)
		}
		return tree, moves
	}

	a, movesA := run()
	b, movesB := run()
	assert.True(t, a.Equal(b))
	assert.Equal(t, movesA, movesB)
	assert.Equal(t, testutil.Shape(a), testutil.Shape(b))
}

func TestApply_UnknownOperation(t *testing.T) {
	tree := testutil.Chain(t, 2)
	_, err := tree.Apply(mutree.Operation(99), random.New(1))
	require.Error(t, err)
	assert.False(t, errors.Is(err, mutree.ErrInvalidMove))
}

func TestOperation_StringAndParse(t *testing.T) {
	for _, op := range mutree.Operations {
		parsed, err := mutree.ParseOperation(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
	_, err := mutree.ParseOperation("teleport")
	assert.Error(t, err)
	assert.Equal(t, "operation(42)", mutree.Operation(42).String())
}

func TestMoveError_Message(t *testing.T) {
	err := &mutree.MoveError{Op: mutree.OpSwitchNodes, Reason: "need two nodes"}
	assert.Equal(t, "INVALID_MOVE: switch_nodes: need two nodes", err.Error())
}

func names(tree *mutree.Tree, ids []node.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = tree.Mutation(id).Name
	}
	return out
}
