package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mutree/internal/store"
)

// cliResult is the outcome of one Execute call.
type cliResult struct {
	code   int
	stdout string
	stderr string
}

func execute(t *testing.T, ctx context.Context, args ...string) cliResult {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(ctx, args, &out, &errOut)
	return cliResult{code: code, stdout: out.String(), stderr: errOut.String()}
}

// fixture returns the absolute path of a testdata file. Call it before
// isolate, which changes the working directory.
func fixture(t *testing.T, name string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return p
}

// isolate keeps config files in the real working and home directories from
// leaking into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)
	return dir
}

// runResponse decodes a JSON success envelope from run.
type runResponse struct {
	Status string    `json:"status"`
	Data   RunResult `json:"data"`
}

func TestRun_TextSummary(t *testing.T) {
	matrix, names := fixture(t, "matrix.txt"), fixture(t, "names.txt")
	isolate(t)

	res := execute(t, context.Background(), "run", "-f", matrix, "-m", names, "-p", "2", "-i", "20", "--seed", "5")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	assert.Contains(t, res.stdout, "Walk completed after 20 iterations (seed 5, 4 cells, 4 mutations)")
	assert.Contains(t, res.stdout, "PARTICLE")
	assert.Contains(t, res.stdout, "\n0: ")
	assert.Contains(t, res.stdout, "\n1: ")
	assert.Contains(t, res.stdout, "germline;")
	assert.Contains(t, res.stderr, "input loaded")
	assert.NotContains(t, res.stdout, "Recorded as")
}

func TestRun_JSONIsDeterministic(t *testing.T) {
	matrix := fixture(t, "matrix.txt")
	isolate(t)

	decode := func() RunResult {
		res := execute(t, context.Background(), "run", "-f", matrix, "-p", "3", "-i", "50", "--seed", "9", "--format", "json")
		require.Equal(t, ExitSuccess, res.code, res.stderr)
		var resp runResponse
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
		assert.Equal(t, "ok", resp.Status)
		return resp.Data
	}

	first, second := decode(), decode()
	assert.Equal(t, uint64(9), first.Seed)
	assert.Equal(t, 50, first.Iterations)
	require.Len(t, first.Particles, 3)
	assert.Equal(t, first.Particles, second.Particles)
	for _, p := range first.Particles {
		assert.Equal(t, 50, p.Applied+p.Rejected)
		assert.Len(t, p.Hash, 64)
		assert.GreaterOrEqual(t, p.Height, 2)
		assert.LessOrEqual(t, p.Height, p.Nodes)
	}
}

func TestRun_RandomSeedIsReported(t *testing.T) {
	matrix := fixture(t, "matrix.txt")
	isolate(t)

	res := execute(t, context.Background(), "run", "-f", matrix, "-i", "5", "--format", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))

	again := execute(t, context.Background(), "run", "-f", matrix, "-i", "5", "--format", "json",
		"--seed", jsonNumber(resp.Data.Seed))
	require.Equal(t, ExitSuccess, again.code, again.stderr)
	var replay runResponse
	require.NoError(t, json.Unmarshal([]byte(again.stdout), &replay))
	assert.Equal(t, resp.Data.Particles, replay.Data.Particles)
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestRun_InputErrors(t *testing.T) {
	matrix, short := fixture(t, "matrix.txt"), fixture(t, "short_names.txt")
	isolate(t)

	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantMsg  string
	}{
		{name: "missing matrix", args: []string{"run"}, wantCode: CodeInvalidConfig, wantMsg: "input.matrix is required"},
		{name: "too few names", args: []string{"run", "-f", matrix, "-m", short}, wantCode: "NAME_COUNT_MISMATCH", wantMsg: "mutation counts do not match"},
		{name: "matrix not found", args: []string{"run", "-f", "nope.txt"}, wantCode: "NOT_FOUND", wantMsg: "nope.txt"},
		{name: "unknown op", args: []string{"run", "-f", matrix, "--ops", "jump"}, wantCode: CodeInvalidConfig, wantMsg: "walk.ops"},
		{name: "zero particles", args: []string{"run", "-f", matrix, "-p", "0"}, wantCode: CodeInvalidConfig, wantMsg: "walk.particles must be at least 1"},
		{name: "bad init", args: []string{"run", "-f", matrix, "--init", "star"}, wantCode: CodeInvalidConfig, wantMsg: "walk.init"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, context.Background(), append(tt.args, "--format", "json")...)
			assert.Equal(t, ExitCommandError, res.code)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.wantMsg)

			text := execute(t, context.Background(), tt.args...)
			assert.Equal(t, ExitCommandError, text.code)
			assert.Contains(t, text.stderr, tt.wantMsg)
		})
	}
}

func TestRun_RaggedMatrix(t *testing.T) {
	matrix := fixture(t, "ragged.txt")
	isolate(t)

	res := execute(t, context.Background(), "run", "-f", matrix, "-i", "10", "--seed", "2")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "(seed 2, 3 cells, 4 mutations)")
}

func TestRun_ConfigFileAndEnv(t *testing.T) {
	matrix := fixture(t, "matrix.txt")
	dir := isolate(t)

	cfg := "walk:\n  iterations: 7\n  seed: 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mutree.yaml"), []byte(cfg), 0o644))
	t.Setenv("MUTREE_WALK_PARTICLES", "2")

	res := execute(t, context.Background(), "run", "-f", matrix)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "after 7 iterations (seed 3,")
	assert.Contains(t, res.stdout, "\n1: ")

	res = execute(t, context.Background(), "run", "-f", matrix, "-i", "4")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "after 4 iterations (seed 3,")
}

func TestRun_ExplicitConfigPath(t *testing.T) {
	matrix := fixture(t, "matrix.txt")
	dir := isolate(t)

	path := filepath.Join(dir, "walk.yaml")
	cfg := "input:\n  matrix: " + matrix + "\nwalk:\n  iterations: 2\n  seed: 8\n  init: chain\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	res := execute(t, context.Background(), "run", "--config", path)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "after 2 iterations (seed 8,")
}

func TestRun_RecordsWalkAndWritesOutputs(t *testing.T) {
	matrix := fixture(t, "matrix.txt")
	dir := isolate(t)
	db := filepath.Join(dir, "walks.db")
	dot := filepath.Join(dir, "tree.dot")
	prom := filepath.Join(dir, "walk.prom")

	res := execute(t, context.Background(), "run", "-f", matrix, "-p", "2", "-i", "30", "--seed", "11",
		"--db", db, "--dot", dot, "--metrics", prom)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Recorded as ")

	st, err := store.Open(db)
	require.NoError(t, err)
	ids, err := st.ListWalks(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	w, err := st.ReadWalk(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, w.Status)
	assert.Equal(t, int64(11), w.Options.Seed)
	hashes, err := st.ReadTreeHashes(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Len(t, hashes, 2)
	require.NoError(t, st.Close())

	dotData, err := os.ReadFile(dot)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(dotData), "graph {\n"))

	promData, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(promData), "mutree_walk_moves_total")
	assert.Contains(t, string(promData), "mutree_walk_iterations_total 30")

	replay := execute(t, context.Background(), "replay", "--db", db)
	require.Equal(t, ExitSuccess, replay.code, replay.stderr)
	assert.Contains(t, replay.stdout, "All 1 walks verified.")
}

func TestRun_InterruptedWalkStops(t *testing.T) {
	matrix := fixture(t, "matrix.txt")
	isolate(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := execute(t, ctx, "run", "-f", matrix, "-i", "1000", "--seed", "1")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Walk stopped after 0 iterations")
}

func TestInspect_Text(t *testing.T) {
	matrix, names := fixture(t, "matrix.txt"), fixture(t, "names.txt")
	isolate(t)

	res := execute(t, context.Background(), "inspect", "-f", matrix, "-m", names)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "4 cells, 4 mutations")
	assert.Contains(t, res.stdout, "TP53")
	assert.Contains(t, res.stdout, "PIK3CA")
	assert.Contains(t, res.stdout, "MISSING")
}

func TestInspect_JSON(t *testing.T) {
	matrix := fixture(t, "matrix.txt")
	isolate(t)

	res := execute(t, context.Background(), "inspect", "-f", matrix, "--format", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var resp struct {
		Status string        `json:"status"`
		Data   InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, 4, resp.Data.Cells)
	require.Len(t, resp.Data.Columns, 4)

	first := resp.Data.Columns[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "1", first.Name)
	assert.Equal(t, 1, first.Present)
	assert.Equal(t, 2, first.Absent)
	assert.Equal(t, 1, first.Missing)
	assert.Equal(t, 3, resp.Data.Columns[1].Present)
}

func TestInspect_LeafGenotypes(t *testing.T) {
	matrix := fixture(t, "matrix.txt")
	isolate(t)

	res := execute(t, context.Background(), "inspect", "-f", matrix, "--tree", "germline(1(2),3(4(-3)))", "--format", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var resp struct {
		Data InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, []LeafProfile{
		{UID: "n3", Label: "2", Genotype: "1100", Cells: 1},
		{UID: "n6", Label: "-3", Genotype: "0001", Cells: 0},
	}, resp.Data.Leaves)

	text := execute(t, context.Background(), "inspect", "-f", matrix, "--tree", "germline(1(2),3(4(-3)))")
	require.Equal(t, ExitSuccess, text.code, text.stderr)
	assert.Contains(t, text.stdout, "GENOTYPE")
	assert.Contains(t, text.stdout, "1100")
}

func TestInspect_InvalidTree(t *testing.T) {
	matrix := fixture(t, "matrix.txt")
	isolate(t)

	res := execute(t, context.Background(), "inspect", "-f", matrix, "--tree", "germline(9)")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "unknown mutation")
}

func TestInspect_MissingMatrix(t *testing.T) {
	isolate(t)
	res := execute(t, context.Background(), "inspect", "-f", "missing.txt")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "NOT_FOUND")
}
