package adapter

import (
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xperimental/git-seek/internal/data"
	"github.com/xperimental/git-seek/internal/engine"
	"github.com/xperimental/git-seek/internal/gittest"
	"github.com/xperimental/git-seek/internal/repository"
)

func newTestAdapter(t *testing.T, g *gittest.Repo) *Adapter {
	t.Helper()

	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	repo, err := repository.New(log, g.Repository)
	require.NoError(t, err)

	a, err := New(log, repo)
	require.NoError(t, err)
	return a
}

func run(t *testing.T, a *Adapter, query string, variables map[string]engine.FieldValue) []engine.Row {
	t.Helper()

	rows, err := a.Query(query, variables)
	require.NoError(t, err)
	return slices.Collect(rows)
}

func column(rows []engine.Row, key string) []string {
	result := []string{}
	for _, row := range rows {
		result = append(result, row[key].String())
	}
	return result
}

func TestSchema(t *testing.T) {
	a := newTestAdapter(t, gittest.NewMemory(t))

	assert.Equal(t, []string{"Branch", "Commit", "Repository", "Tag"}, a.Schema().Types())
	assert.Equal(t, "RootSchemaQuery", a.Schema().QueryType())
	assert.Contains(t, SDL(), "commits(limit: Int): [Commit!]!")

	f, ok := a.Schema().Field("Repository", "commits")
	require.True(t, ok)
	assert.True(t, f.IsEdge())
	_, ok = f.Argument("limit")
	assert.True(t, ok)
}

func TestNewLogsSchema(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	repo, err := repository.New(log, gittest.NewMemory(t).Repository)
	require.NoError(t, err)
	_, err = New(log, repo)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Loaded schema rooted at RootSchemaQuery with types Branch, Commit, Repository, Tag", entry.Message)
}

func TestRepositoryName(t *testing.T) {
	g := gittest.NewMemory(t)
	g.SetOrigin("https://github.com/acme/widgets.git")

	rows := run(t, newTestAdapter(t, g), `{ repository { name @output } }`, nil)
	assert.Equal(t, []engine.Row{{"name": engine.String("widgets")}}, rows)
}

func TestRepositoryNameUnknown(t *testing.T) {
	rows := run(t, newTestAdapter(t, gittest.NewMemory(t)), `{ repository { name @output } }`, nil)
	assert.Equal(t, []string{"unknown"}, column(rows, "name"))
}

func TestCommitProperties(t *testing.T) {
	g := gittest.NewMemory(t)
	authored := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	committed := time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	hash := g.CommitWith("Initial commit\n",
		gittest.Signature("Ann", "ann@x.com", authored),
		gittest.Signature("Bob", "bob@x.com", committed))

	rows := run(t, newTestAdapter(t, g), `{
		repository {
			commits {
				hash @output
				message @output
				author @output
				author_email @output
				committer @output
				committer_email @output
				date @output
			}
		}
	}`, nil)

	require.Len(t, rows, 1)
	assert.Regexp(t, `^[0-9a-f]{40}$`, rows[0]["hash"].String())
	assert.Equal(t, engine.Row{
		"hash":            engine.String(hash.String()),
		"message":         engine.String("Initial commit\n"),
		"author":          engine.String("Ann"),
		"author_email":    engine.String("ann@x.com"),
		"committer":       engine.String("Bob"),
		"committer_email": engine.String("bob@x.com"),
		"date":            engine.String(committed.Local().Format(dateLayout)),
	}, rows[0])
}

func TestCommitDate(t *testing.T) {
	g := gittest.NewMemory(t)
	g.Commit("first")
	g.Commit("second")

	rows := run(t, newTestAdapter(t, g), `{ repository { commits { date @output } } }`, nil)
	require.Len(t, rows, 2)
	for _, date := range column(rows, "date") {
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[+-]\d{2}:\d{2}$`, date)
	}

	first := gittest.Epoch.Add(time.Minute)
	assert.Equal(t, first.Local().Format(dateLayout), column(rows, "date")[1])
}

func TestCommitInvalidMessage(t *testing.T) {
	g := gittest.NewMemory(t)
	g.Commit("broken \xff message")

	rows := run(t, newTestAdapter(t, g), `{ repository { commits { message @output } } }`, nil)
	require.Len(t, rows, 1)
	assert.True(t, rows[0]["message"].IsNull())
}

func TestCommitsOrder(t *testing.T) {
	g := gittest.NewMemory(t)
	first := g.Commit("first")
	second := g.Commit("second")
	third := g.Commit("third")

	rows := run(t, newTestAdapter(t, g), `{ repository { commits { hash @output message @output } } }`, nil)
	assert.Equal(t, []string{third.String(), second.String(), first.String()}, column(rows, "hash"))
	assert.Equal(t, []string{"third", "second", "first"}, column(rows, "message"))
}

func TestCommitsLimit(t *testing.T) {
	g := gittest.NewMemory(t)
	for _, msg := range []string{"a", "b", "c", "d"} {
		g.Commit(msg)
	}
	a := newTestAdapter(t, g)

	all := column(run(t, a, `{ repository { commits { hash @output } } }`, nil), "hash")
	require.Len(t, all, 4)

	for _, tc := range []struct {
		query string
		want  int
	}{
		{`{ repository { commits(limit: 0) { hash @output } } }`, 0},
		{`{ repository { commits(limit: 1) { hash @output } } }`, 1},
		{`{ repository { commits(limit: 3) { hash @output } } }`, 3},
		{`{ repository { commits(limit: 10) { hash @output } } }`, 4},
		{`{ repository { commits(limit: -1) { hash @output } } }`, 4},
		{`{ repository { commits(limit: null) { hash @output } } }`, 4},
	} {
		got := column(run(t, a, tc.query, nil), "hash")
		assert.Equal(t, all[:tc.want], got, tc.query)
	}
}

func TestCommitsEmptyRepository(t *testing.T) {
	a := newTestAdapter(t, gittest.NewMemory(t))

	assert.Empty(t, run(t, a, `{ repository { commits { hash @output } } }`, nil))
	assert.Empty(t, run(t, a, `{ repository { branches { name @output } } }`, nil))
	assert.Empty(t, run(t, a, `{ repository { tags { name @output } } }`, nil))
}

func TestCommitsLaziness(t *testing.T) {
	g := gittest.NewMemory(t)
	g.Commit("first")
	latest := g.Commit("second")
	a := newTestAdapter(t, g)

	var seen []data.Vertex
	for v := range a.commits(-1) {
		seen = append(seen, v)
		break
	}
	require.Len(t, seen, 1)
	assert.Equal(t, latest.String(), seen[0].(*data.Commit).Hash())
}

type countingStorer struct {
	storage.Storer
	reads int
}

func (s *countingStorer) EncodedObject(t plumbing.ObjectType, h plumbing.Hash) (plumbing.EncodedObject, error) {
	s.reads++
	return s.Storer.EncodedObject(t, h)
}

func TestCommitsLimitStopsWalk(t *testing.T) {
	g := gittest.NewMemory(t)
	for i := 0; i < 20; i++ {
		g.Commit(fmt.Sprintf("commit %d", i))
	}

	storer := &countingStorer{Storer: g.Storer}
	handle, err := git.Open(storer, nil)
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	repo, err := repository.New(log, handle)
	require.NoError(t, err)
	a, err := New(log, repo)
	require.NoError(t, err)

	assert.Len(t, slices.Collect(a.commits(1)), 1)
	assert.Equal(t, 1, storer.reads)

	storer.reads = 0
	assert.Len(t, slices.Collect(a.commits(3)), 3)
	assert.Equal(t, 3, storer.reads)

	storer.reads = 0
	assert.Len(t, slices.Collect(a.commits(-1)), 20)
	assert.Equal(t, 20, storer.reads)
}

func TestCommitsMissingParent(t *testing.T) {
	g := gittest.NewMemory(t)
	tip := g.CommitOnto("shallow tip", plumbing.NewHash("0123456789abcdef0123456789abcdef01234567"))
	a := newTestAdapter(t, g)

	rows := run(t, a, `{ repository { commits { hash @output message @output } } }`, nil)
	assert.Equal(t, []string{tip.String()}, column(rows, "hash"))
	assert.Equal(t, []string{"shallow tip"}, column(rows, "message"))

	rows = run(t, a, `{ repository { commits(limit: 5) { hash @output } } }`, nil)
	assert.Len(t, rows, 1)
}

func TestCommitsFilter(t *testing.T) {
	g := gittest.NewMemory(t)
	g.CommitAs("Add parser", "Ann", "ann@x.com")
	g.CommitAs("Fix parser bug", "Bob", "bob@x.com")
	g.CommitAs("Update docs", "Ann", "ann@x.com")
	a := newTestAdapter(t, g)

	rows := run(t, a, `{
		repository {
			commits {
				author @output @filter(op: "=", value: ["$author"])
				message @output
			}
		}
	}`, map[string]engine.FieldValue{"author": engine.String("Ann")})
	assert.Equal(t, []string{"Update docs", "Add parser"}, column(rows, "message"))

	rows = run(t, a, `{
		repository {
			commits {
				message @output @filter(op: "regex", value: ["$pattern"])
			}
		}
	}`, map[string]engine.FieldValue{"pattern": engine.String("(?i)PARSER")})
	assert.Equal(t, []string{"Fix parser bug", "Add parser"}, column(rows, "message"))
}

func TestBranches(t *testing.T) {
	g := gittest.NewMemory(t)
	first := g.Commit("first")
	second := g.Commit("second")
	g.Branch("feature/x", first)

	rows := run(t, newTestAdapter(t, g), `{
		repository {
			branches {
				name @output
				commit {
					hash @output
				}
			}
		}
	}`, nil)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i]["name"].String() < rows[j]["name"].String()
	})

	assert.Equal(t, []string{"feature/x", "master"}, column(rows, "name"))
	assert.Equal(t, []string{first.String(), second.String()}, column(rows, "hash"))
}

func TestBranchSingleCommit(t *testing.T) {
	g := gittest.NewMemory(t)
	c := g.Commit("only")

	rows := run(t, newTestAdapter(t, g), `{ repository { branches { commit { hash @output } } } }`, nil)
	assert.Equal(t, []string{c.String()}, column(rows, "hash"))
}

func TestBranchCommitFollowsBranch(t *testing.T) {
	g := gittest.NewMemory(t)
	first := g.Commit("first")
	second := g.Commit("second")
	g.Branch("topic", first)
	a := newTestAdapter(t, g)

	ref, err := g.Reference(plumbing.NewBranchReferenceName("topic"), false)
	require.NoError(t, err)
	branch := data.NewBranch(ref)

	assert.Equal(t, []string{first.String()}, hashes(a.branchCommit(branch)))

	g.Branch("topic", second)
	assert.Equal(t, []string{second.String()}, hashes(a.branchCommit(branch)))

	g.DeleteBranch("topic")
	assert.Empty(t, hashes(a.branchCommit(branch)))

	assert.Empty(t, hashes(a.branchCommit(data.NewBranch(nil))))
}

func hashes(vertices iter.Seq[data.Vertex]) []string {
	result := []string{}
	for v := range vertices {
		result = append(result, v.(*data.Commit).Hash())
	}
	return result
}

func TestBranchOptionalCommit(t *testing.T) {
	g := gittest.NewMemory(t)
	g.Commit("first")
	a := newTestAdapter(t, g)

	rows := run(t, a, `{
		repository {
			branches {
				name @output
				commit @optional {
					message @output
				}
			}
		}
	}`, nil)
	assert.Equal(t, []engine.Row{{"name": engine.String("master"), "message": engine.String("first")}}, rows)
}

func TestTags(t *testing.T) {
	g := gittest.NewMemory(t)
	c := g.Commit("tagged")
	d := g.Commit("head")
	g.AnnotatedTag("v1", c, "release", gittest.Signature("Ann", "ann@x.com", gittest.Epoch))
	g.LightweightTag("v0", d)
	g.AnnotatedTag("tree-annotated", g.TreeOf(c), "tree", gittest.Signature("Ann", "ann@x.com", gittest.Epoch))
	g.LightweightTag("tree-lightweight", g.TreeOf(c))

	rows := run(t, newTestAdapter(t, g), `{
		repository {
			tags {
				name @output
				message @output
				tagger_name @output
				tagger_email @output
				commit {
					hash @output
				}
			}
		}
	}`, nil)

	require.Len(t, rows, 2)
	assert.Equal(t, engine.Row{
		"name":         engine.String("v0"),
		"message":      engine.Null,
		"tagger_name":  engine.Null,
		"tagger_email": engine.Null,
		"hash":         engine.String(d.String()),
	}, rows[0])

	assert.Equal(t, "v1", rows[1]["name"].String())
	assert.Equal(t, "release", strings.TrimSpace(rows[1]["message"].String()))
	assert.Equal(t, "Ann", rows[1]["tagger_name"].String())
	assert.Equal(t, "ann@x.com", rows[1]["tagger_email"].String())
	assert.Equal(t, c.String(), rows[1]["hash"].String())
}

func TestNestedAnnotatedTagSkipped(t *testing.T) {
	g := gittest.NewMemory(t)
	c := g.Commit("tagged")
	tagger := gittest.Signature("Ann", "ann@x.com", gittest.Epoch)
	g.AnnotatedTag("inner", c, "inner", tagger)

	ref, err := g.Reference(plumbing.NewTagReferenceName("inner"), false)
	require.NoError(t, err)
	g.AnnotatedTag("outer", ref.Hash(), "outer", tagger)

	rows := run(t, newTestAdapter(t, g), `{
		repository {
			tags {
				name @output
				commit { hash @output }
			}
		}
	}`, nil)
	assert.Equal(t, []string{"inner"}, column(rows, "name"))
	assert.Equal(t, []string{c.String()}, column(rows, "hash"))
}

func TestCoercion(t *testing.T) {
	g := gittest.NewMemory(t)
	g.Commit("first")

	rows := run(t, newTestAdapter(t, g), `{
		repository {
			commits {
				... on Commit {
					message @output
				}
			}
		}
	}`, nil)
	assert.Equal(t, []string{"first"}, column(rows, "message"))
}

func TestRepeatedQuery(t *testing.T) {
	g := gittest.NewMemory(t)
	c := g.Commit("first")
	g.Commit("second")
	g.AnnotatedTag("v1", c, "release", gittest.Signature("Ann", "ann@x.com", gittest.Epoch))
	a := newTestAdapter(t, g)

	query := `{ repository { commits { hash @output date @output } tags { name @output } } }`
	assert.Equal(t, run(t, a, query, nil), run(t, a, query, nil))
}

func TestUnknownNamesPanic(t *testing.T) {
	a := newTestAdapter(t, gittest.NewMemory(t))
	contexts := func(func(*engine.DataContext[data.Vertex]) bool) {}

	assert.Panics(t, func() { a.ResolveStartingVertices("repositories", nil) })
	assert.Panics(t, func() { a.ResolveProperty(contexts, data.TypeCommit, "subject") })
	assert.Panics(t, func() { a.ResolveProperty(contexts, "Blob", "size") })
	assert.Panics(t, func() { a.ResolveNeighbors(contexts, data.TypeRepository, "remotes", nil) })
	assert.Panics(t, func() { a.ResolveNeighbors(contexts, data.TypeCommit, "parents", nil) })
	assert.Panics(t, func() { a.ResolveCoercion(contexts, data.TypeCommit, "Blob") })
}

func TestResolversPreserveOrder(t *testing.T) {
	g := gittest.NewMemory(t)
	first := g.Commit("first")
	second := g.Commit("second")
	a := newTestAdapter(t, g)

	vertices := slices.Collect(a.commits(-1))
	contexts := func(yield func(*engine.DataContext[data.Vertex]) bool) {
		for _, v := range vertices {
			if !yield(engine.NewDataContext(v)) {
				return
			}
		}
	}

	var got []string
	for ctx, value := range a.ResolveProperty(contexts, data.TypeCommit, "hash") {
		v, _ := ctx.ActiveVertex()
		assert.Equal(t, v.(*data.Commit).Hash(), value.String())
		got = append(got, value.String())
	}
	assert.Equal(t, []string{second.String(), first.String()}, got)

	for ctx, ok := range a.ResolveCoercion(contexts, data.TypeCommit, data.TypeCommit) {
		assert.NotNil(t, ctx)
		assert.True(t, ok)
	}
	for _, ok := range a.ResolveCoercion(contexts, data.TypeCommit, data.TypeTag) {
		assert.False(t, ok)
	}
}
