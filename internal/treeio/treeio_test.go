package treeio

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/testutil"
	"github.com/roach88/mutree/internal/uid"
)

// lossTree builds germline(1(-1),2) with uids n1..n4.
func lossTree(t *testing.T) *mutree.Tree {
	t.Helper()
	tree := testutil.Flat(t, 2)
	_, err := tree.AddBackMutation(testutil.Find(t, tree, "1"), 0)
	require.NoError(t, err)
	require.Equal(t, "germline(1(-1),2)", testutil.Shape(tree))
	return tree
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestDOT_Golden(t *testing.T) {
	newGoldie(t).Assert(t, "loss_tree_dot", []byte(DOT(lossTree(t))))
}

func TestCanonical_Golden(t *testing.T) {
	data, err := Canonical(lossTree(t))
	require.NoError(t, err)
	newGoldie(t).Assert(t, "loss_tree_canonical", data)
}

func TestNewick(t *testing.T) {
	assert.Equal(t, "((-1)1,2)germline;", Newick(lossTree(t)))
	assert.Equal(t, "(((3)2)1)germline;", Newick(testutil.Chain(t, 3)))

	tree, err := mutree.NewFlat([]string{"TP53 R175H", "it's"}, uid.NewSequential("n"))
	require.NoError(t, err)
	assert.Equal(t, "('TP53 R175H','it''s')germline;", Newick(tree))
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(lossTree(t))
	require.NoError(t, err)
	h2, err := Hash(lossTree(t))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	other := lossTree(t)
	_, err = other.Switch(testutil.Find(t, other, "1"), testutil.Find(t, other, "2"))
	require.NoError(t, err)
	h3, err := Hash(other)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestMarshalTree_RoundTrip(t *testing.T) {
	tree := lossTree(t)
	data, err := MarshalTree(tree)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mutation_id": -1`)

	back, err := UnmarshalTree(data, uid.NewSequential("m"))
	require.NoError(t, err)
	assert.True(t, tree.Equal(back))
	testutil.RequireValid(t, back)

	// new nodes draw from gen once the recorded uids are used up
	mv, err := back.AddBackMutation(testutil.Find(t, back, "2"), 1)
	require.NoError(t, err)
	assert.Equal(t, "m1", mv.NodeUID)
}

func TestDocument_Refusals(t *testing.T) {
	doc := FromTree(lossTree(t))

	bad := doc
	bad.Version = 9
	_, err := bad.Tree(nil)
	assert.ErrorContains(t, err, "unsupported version")

	bad = doc
	bad.Root.MutationID = 0
	_, err = bad.Tree(nil)
	assert.ErrorContains(t, err, "not a germline node")

	renamed := FromTree(lossTree(t))
	renamed.Root.Children[0].Name = "other"
	_, err = renamed.Tree(nil)
	assert.ErrorContains(t, err, "does not match mutation")

	_, err = UnmarshalTree([]byte("{"), nil)
	assert.Error(t, err)
}

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "key order", in: map[string]any{"b": 1, "a": true}, want: `{"a":true,"b":1}`},
		{name: "no html escaping", in: "<a&b>", want: `"<a&b>"`},
		{name: "control chars", in: "a\nb\x01", want: `"a\nb\u0001"`},
		{name: "line separator kept", in: "x\u2028y", want: "\"x\u2028y\""},
		{name: "nfc", in: "cafe\u0301", want: "\"caf\u00e9\""},
		{name: "nested", in: []any{int64(-3), []any{}, map[string]any{}}, want: `[-3,[],{}]`},
		// U+FB01 sorts after U+1F600 in UTF-16 (0xFB01 > 0xD83D) but before it in UTF-8
		{name: "utf16 order", in: map[string]any{"\U0001F600": 1, "\uFB01": 2}, want: "{\"\U0001F600\":1,\"\uFB01\":2}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	for _, bad := range []any{nil, 1.5, struct{}{}, []any{nil}} {
		_, err := MarshalCanonical(bad)
		assert.Error(t, err, "%#v", bad)
	}
}

func TestWriteDOT_QuotesNames(t *testing.T) {
	tree, err := mutree.NewFlat([]string{`say "hi"`}, uid.NewSequential("n"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(DOT(tree), `[label="say \"hi\""];`))
}
