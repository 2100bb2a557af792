package commands

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dluc/usearch"
	"github.com/dluc/usearch/blobstore"
)

// resetFlags restores every flag to its default; cobra keeps values between
// Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeJSONL(t *testing.T, path string, n int, offset usearch.Key) {
	t.Helper()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range n {
		key := offset + usearch.Key(i)
		require.NoError(t, enc.Encode(map[string]any{
			"key":    key,
			"vector": []float32{float32(i), float32(i % 7), float32(i % 3)},
		}))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func buildIndex(t *testing.T, dir, name string, n int, offset usearch.Key) string {
	t.Helper()

	input := filepath.Join(dir, name+".jsonl")
	writeJSONL(t, input, n, offset)
	output := filepath.Join(dir, name+".usearch")
	out, err := runCmd(t, "build", input, "-o", output, "--metric", "l2sq")
	require.NoError(t, err, out)
	return output
}

func TestBuildAndInfo(t *testing.T) {
	dir := t.TempDir()
	path := buildIndex(t, dir, "a", 50, 0)

	out, err := runCmd(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, out, "dimensions:        3")
	assert.Contains(t, out, "metric:            l2sq")
	assert.Contains(t, out, "size:              50")

	_, err = runCmd(t, "info", filepath.Join(dir, "missing.usearch"))
	assert.Error(t, err)
}

func TestBuild_Fbin(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "v.fbin")

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []uint32{4, 2}))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []float32{0, 0, 1, 0, 0, 1, 1, 1}))
	require.NoError(t, os.WriteFile(input, buf.Bytes(), 0o644))

	output := filepath.Join(dir, "v.usearch")
	out, err := runCmd(t, "build", input, "-o", output, "--metric", "l2sq", "--compression", "zstd")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Indexed 4 of 4 vectors")

	meta, ok := usearch.ReadMetadata(output)
	require.True(t, ok)
	assert.Equal(t, 4, meta.Count)
	assert.Equal(t, 2, meta.Dimensions)

	out, err = runCmd(t, "search", output, "--vector", "1,1", "-k", "1", "--load")
	require.NoError(t, err)
	assert.Contains(t, out, "3\t0\n")
}

func TestBuild_Config(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "index.yaml")
	output := filepath.Join(dir, "cfg.usearch")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(
		"dimensions: 3\nmetric: l2sq\nscalar: f16\nconnectivity: 8\npath: %s\n", output)), 0o644))

	input := filepath.Join(dir, "in.jsonl")
	writeJSONL(t, input, 20, 0)

	out, err := runCmd(t, "build", input, "--config", cfgPath)
	require.NoError(t, err, out)

	meta, ok := usearch.ReadMetadata(output)
	require.True(t, ok)
	assert.Equal(t, "f16", meta.Scalar.String())
	assert.Equal(t, 8, meta.Connectivity)
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	a := buildIndex(t, dir, "a", 30, 0)
	b := buildIndex(t, dir, "b", 30, 1000)

	out, err := runCmd(t, "search", a, "--vector", "0,0,0", "-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "query 0: 1 matches")
	assert.Contains(t, out, "  0\t0\n")

	out, err = runCmd(t, "search", a, b, "--vector", "0,0,0", "-k", "2", "--exact")
	require.NoError(t, err)
	assert.Contains(t, out, "query 0: 2 matches")
	assert.Contains(t, out, "  0\t0\n")
	assert.Contains(t, out, "  1000\t0\n")

	_, err = runCmd(t, "search", a)
	assert.Error(t, err)

	_, err = runCmd(t, "search", a, "--vector", "0,0")
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	dir := t.TempDir()
	a := buildIndex(t, dir, "a", 20, 0)
	b := buildIndex(t, dir, "b", 20, 1000)

	out, err := runCmd(t, "join", a, b, "--exact")
	require.NoError(t, err)
	assert.Contains(t, out, "matched 20 of 20 keys")
	assert.Contains(t, out, "5\t1005\n")
}

func TestCluster(t *testing.T) {
	dir := t.TempDir()
	path := buildIndex(t, dir, "a", 200, 0)

	out, err := runCmd(t, "cluster", path, "--min", "2", "--max", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "200 members in")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.LessOrEqual(t, len(lines)-1, 4)
}

func TestSnapshot_LocalStore(t *testing.T) {
	dir := t.TempDir()
	path := buildIndex(t, dir, "a", 25, 0)
	storeDir := filepath.Join(dir, "store")

	out, err := runCmd(t, "snapshot", "push", path, "--store", "file://"+storeDir)
	require.NoError(t, err)
	name := strings.TrimSpace(out)
	assert.True(t, strings.HasSuffix(name, ".usearch"))

	current, err := blobstore.Current(t.Context(), blobstore.NewLocalStore(storeDir))
	require.NoError(t, err)
	assert.Equal(t, name, current)

	out, err = runCmd(t, "snapshot", "list", "--store", storeDir)
	require.NoError(t, err)
	assert.Contains(t, out, "* "+name)

	pulled := filepath.Join(dir, "pulled.usearch")
	out, err = runCmd(t, "snapshot", "pull", pulled, "--store", "file://"+storeDir)
	require.NoError(t, err)
	assert.Contains(t, out, "(25 vectors)")

	meta, ok := usearch.ReadMetadata(pulled)
	require.True(t, ok)
	assert.Equal(t, 25, meta.Count)

	_, err = runCmd(t, "snapshot", "pull", pulled)
	assert.Error(t, err)
}

func TestParseVector(t *testing.T) {
	v, err := parseVector(" 1, 2.5 ,-3 ")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5, -3}, v)

	_, err = parseVector("1,x")
	assert.Error(t, err)

	_, err = parseVector("")
	assert.Error(t, err)
}
