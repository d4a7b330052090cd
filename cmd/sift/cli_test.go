package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonReport struct {
	Records []struct {
		Path   string `json:"path"`
		Hash   string `json:"hash"`
		Source string `json:"source"`
	} `json:"records"`
	Stats struct {
		Digested   int64 `json:"digested"`
		NonMatches int64 `json:"non_matches"`
	} `json:"stats"`
	Meta struct {
		Target string `json:"target"`
		State  string `json:"state"`
	} `json:"meta"`
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"-q"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags(rootCmd)
		shutdownLogging()
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so executions within one
// test binary do not leak flag values into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestCLISearchThenSmart(t *testing.T) {
	home := useTestEnv(t)
	root := filepath.Join(home, "data")
	writeFile(t, filepath.Join(root, "hello.txt"), "hello")
	writeFile(t, filepath.Join(root, "nested", "copy.bin"), "hello")
	writeFile(t, filepath.Join(root, "other.txt"), "world")

	out, err := execute(t, "hash", filepath.Join(root, "hello.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, helloHash+"  "), out)

	out, err = execute(t, "search", root, "--hash", helloHash, "-o", "json")
	require.NoError(t, err)

	var rep jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep), out)
	assert.Equal(t, "completed", rep.Meta.State)
	assert.Equal(t, helloHash, rep.Meta.Target)
	assert.Equal(t, int64(3), rep.Stats.Digested)
	assert.Equal(t, int64(1), rep.Stats.NonMatches)
	require.Len(t, rep.Records, 2)
	assert.Equal(t, "hello.txt", filepath.Base(rep.Records[0].Path))
	assert.Equal(t, "copy.bin", filepath.Base(rep.Records[1].Path))

	out, err = execute(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Matches:      2")
	assert.Contains(t, out, "Non-matches:  1")

	out, err = execute(t, "smart", root, "--hash", helloHash, "--fallback", "never", "--history", "-o", "json")
	require.NoError(t, err)

	rep = jsonReport{}
	require.NoError(t, json.Unmarshal([]byte(out), &rep), out)
	assert.Empty(t, rep.Meta.State)
	require.Len(t, rep.Records, 2)
	for _, r := range rep.Records {
		assert.Equal(t, "Smart", r.Source)
	}

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "scan")
	assert.Contains(t, out, "smart")
}

func TestCLIRejectsBadHash(t *testing.T) {
	home := useTestEnv(t)

	_, err := execute(t, "search", home, "--hash", "not-a-hash", "-o", "json")
	assert.Error(t, err)
}

func TestCLIVersion(t *testing.T) {
	useTestEnv(t)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sift dev")
}

func TestCLICacheCommands(t *testing.T) {
	home := useTestEnv(t)
	root := filepath.Join(home, "data")
	hello := filepath.Join(root, "hello.txt")
	writeFile(t, hello, "hello")
	writeFile(t, filepath.Join(root, "other.txt"), "world")

	_, err := execute(t, "search", root, "--hash", helloHash, "-o", "paths")
	require.NoError(t, err)

	out, err := execute(t, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "hello.txt")
	assert.NotContains(t, out, "other.txt")

	out, err = execute(t, "cache", "list", "-p", "non-matches")
	require.NoError(t, err)
	assert.Contains(t, out, "other.txt")

	_, err = execute(t, "cache", "delete", hello, helloHash)
	require.NoError(t, err)

	_, err = execute(t, "cache", "clear", "-p", "non-matches")
	require.NoError(t, err)

	out, err = execute(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Matches:      0")
	assert.Contains(t, out, "Non-matches:  0")

	out, err = execute(t, "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache"), strings.TrimSpace(out))
}

func TestCLICacheListFilters(t *testing.T) {
	home := useTestEnv(t)
	root := filepath.Join(home, "data")
	writeFile(t, filepath.Join(root, "hello.txt"), "hello")
	writeFile(t, filepath.Join(root, "nested", "copy.bin"), "hello")
	writeFile(t, filepath.Join(root, "other.txt"), "world")

	_, err := execute(t, "search", root, "--hash", helloHash, "-o", "null")
	require.NoError(t, err)

	out, err := execute(t, "cache", "list", "--ext", "txt")
	require.NoError(t, err)
	assert.Contains(t, out, "hello.txt")
	assert.NotContains(t, out, "copy.bin")

	out, err = execute(t, "cache", "list", "--ext", ".BIN")
	require.NoError(t, err)
	assert.Contains(t, out, "copy.bin")
	assert.NotContains(t, out, "hello.txt")

	out, err = execute(t, "cache", "list", "--ext", "all", "--match", "NESTED")
	require.NoError(t, err)
	assert.Contains(t, out, "copy.bin")
	assert.NotContains(t, out, "hello.txt")

	out, err = execute(t, "cache", "list", "--match", "*/hello.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "hello.txt")
	assert.NotContains(t, out, "copy.bin")

	out, err = execute(t, "cache", "list", "--match", helloHash[:10])
	require.NoError(t, err)
	assert.Contains(t, out, "hello.txt")
	assert.Contains(t, out, "copy.bin")

	out, err = execute(t, "cache", "list", "-p", "non-matches", "--match", "hello")
	require.NoError(t, err)
	assert.NotContains(t, out, "other.txt")

	_, err = execute(t, "cache", "list", "--match", "[bad")
	assert.Error(t, err)
}

func TestCLICacheDeleteRelativePath(t *testing.T) {
	home := useTestEnv(t)
	root := filepath.Join(home, "data")
	writeFile(t, filepath.Join(root, "hello.txt"), "hello")
	writeFile(t, filepath.Join(root, "keep", "copy.bin"), "hello")

	_, err := execute(t, "search", root, "--hash", helloHash, "-o", "null")
	require.NoError(t, err)

	t.Chdir(root)
	_, err = execute(t, "cache", "delete", "./hello.txt")
	require.NoError(t, err)

	out, err := execute(t, "cache", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "hello.txt")
	assert.Contains(t, out, "copy.bin")
}
