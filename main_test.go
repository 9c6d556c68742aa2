package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xperimental/git-seek/internal/adapter"
	"github.com/xperimental/git-seek/internal/engine"
	"github.com/xperimental/git-seek/internal/gittest"
)

func setupRepository(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "widgets")
	g := gittest.NewOnDisk(t, dir)
	g.CommitAs("Add parser", "Ann", "ann@x.com")
	head := g.CommitAs("Fix parser bug", "Bob", "bob@x.com")
	g.LightweightTag("v1.0.0", head)

	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestParseVars(t *testing.T) {
	vars := parseVars([]string{"author=Bob", "limit=5", "ratio=0.5", "broken", "expr=a=b"})

	assert.Equal(t, map[string]engine.FieldValue{
		"author": engine.String("Bob"),
		"limit":  engine.Int64(5),
		"ratio":  engine.Float64(0.5),
		"expr":   engine.String("a=b"),
	}, vars)
}

func TestLoadQuery(t *testing.T) {
	file := filepath.Join(t.TempDir(), "query.graphql")
	require.NoError(t, os.WriteFile(file, []byte("{ from-file }"), 0o644))

	tests := []struct {
		name    string
		stdin   string
		query   string
		file    string
		want    string
		wantErr bool
	}{
		{name: "inline", query: "{ inline }", want: "{ inline }"},
		{name: "file", file: file, want: "{ from-file }"},
		{name: "stdin", stdin: "{ piped }", want: "{ piped }"},
		{name: "inline before stdin", stdin: "{ piped }", query: "{ inline }", want: "{ inline }"},
		{name: "missing file", file: filepath.Join(t.TempDir(), "missing.graphql"), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := loadQuery(strings.NewReader(tc.stdin), tc.query, tc.file)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQueryCommand(t *testing.T) {
	dir := setupRepository(t)

	out, err := execute(t, "", "--repo", dir, "--format", "json",
		"-q", "{ repository { name @output commits { message @output } } }")
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"name": "widgets", "message": "Fix parser bug"},
		{"name": "widgets", "message": "Add parser"}
	]`, out)
}

func TestQueryCommandVariables(t *testing.T) {
	dir := setupRepository(t)

	out, err := execute(t, "", "--repo", dir,
		"-q", `{ repository { commits { author @filter(op: "=", value: ["$who"]) message @output } } }`,
		"--var", "who=Ann")
	require.NoError(t, err)
	assert.Equal(t, "{message: \"Add parser\"}\n", out)
}

func TestQueryCommandStdin(t *testing.T) {
	dir := setupRepository(t)

	out, err := execute(t, "{ repository { tags { name @output } } }", "--repo", dir)
	require.NoError(t, err)
	assert.Equal(t, "{name: \"v1.0.0\"}\n", out)
}

func TestQueryCommandErrors(t *testing.T) {
	dir := setupRepository(t)

	_, err := execute(t, "", "--repo", dir, "-q", "{ x }", "-f", "query.graphql")
	assert.Error(t, err)

	_, err = execute(t, "", "--repo", dir, "-q", "{ repository { size @output } }")
	assert.Error(t, err)

	_, err = execute(t, "", "--repo", dir, "--format", "xml", "-q", "{ repository { name @output } }")
	assert.Error(t, err)

	_, err = execute(t, "", "--repo", filepath.Join(t.TempDir(), "nothing"), "-q", "{ repository { name @output } }")
	assert.ErrorContains(t, err, "error opening repository")
}

func TestPresetList(t *testing.T) {
	out, err := execute(t, "", "preset", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "recent-commits")
	assert.Contains(t, out, "--limit: Maximum number of commits to show (default: 10)")
	assert.Contains(t, out, "(none)")
}

func TestPresetRun(t *testing.T) {
	dir := setupRepository(t)

	out, err := execute(t, "", "--repo", dir, "preset", "run", "commits-by-author", "--param", "author=Bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Fix parser bug")
	assert.NotContains(t, out, "Add parser")

	out, err = execute(t, "", "--repo", dir, "preset", "run", "recent-commits", "--param", "limit=1", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"message": "Fix parser bug"`)
	assert.NotContains(t, out, "Add parser")
}

func TestPresetRunErrors(t *testing.T) {
	dir := setupRepository(t)

	_, err := execute(t, "", "--repo", dir, "preset", "run", "nonexistent")
	assert.ErrorContains(t, err, "git-seek preset list")

	_, err = execute(t, "", "--repo", dir, "preset", "run", "commits-by-author")
	assert.ErrorContains(t, err, "missing required parameter '--param author=<value>'")

	_, err = execute(t, "", "--repo", dir, "preset", "run", "recent-commits", "--param", "limit")
	assert.ErrorContains(t, err, "invalid parameter format")

	_, err = execute(t, "", "--repo", dir, "preset", "run", "recent-commits", "--param", "limit=abc")
	assert.ErrorContains(t, err, "must be an integer")
}

func TestPresetRunCompletion(t *testing.T) {
	out, err := execute(t, "", "__complete", "preset", "run", "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{"branches", "commits-by-author", "recent-commits", "search-commits", "tags", ":4"}, lines[:6])
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "", "schema")
	require.NoError(t, err)
	assert.Equal(t, adapter.SDL(), out)
}
