package git

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var backends = []Backend{BackendCLI, BackendNative}

func openBackend(t *testing.T, dir string, b Backend) Repository {
	t.Helper()
	if b == BackendCLI {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git binary not available")
		}
	}
	repo, err := Open(context.Background(), dir, b, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return repo
}

// monorepo builds:
//
//	feat: add pluginA      (pluginA)  <- pluginA-v1
//	docs: add pluginB      (pluginB)
//	fix: pluginA crash     (pluginA)  <- pluginA-v2 (annotated)
//	chore: bump pluginA    (pluginA)
//	feat: pluginAB extras  (pluginAB)
func monorepo(t *testing.T) *testutil.GitRepo {
	f := testutil.NewGitRepo(t)
	h1 := f.Commit("pluginA/main.py", "v1", "feat: add pluginA")
	f.Tag("pluginA-v1", h1)
	f.Commit("pluginB/main.py", "v1", "docs: add pluginB")
	h3 := f.Commit("pluginA/main.py", "v2", "fix: pluginA crash")
	f.AnnotatedTag("pluginA-v2", h3)
	f.Commit("pluginA/main.py", "v3", "chore: bump pluginA")
	f.Commit("pluginAB/main.py", "v1", "feat: pluginAB extras")
	return f
}

func TestTags_NewestFirst(t *testing.T) {
	f := monorepo(t)
	f.Tag("pluginB-v1", f.Commit("pluginB/readme.md", "x", "docs: readme"))

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)
			tags, err := repo.Tags(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"pluginB-v1", "pluginA-v2", "pluginA-v1"}, tags)
		})
	}
}

func TestTags_EmptyRepositoryHasNoTags(t *testing.T) {
	f := testutil.NewGitRepo(t)
	f.Commit("pluginA/main.py", "v1", "feat: add pluginA")

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)
			tags, err := repo.Tags(context.Background())
			require.NoError(t, err)
			assert.Empty(t, tags)
		})
	}
}

func TestLog_TagRange(t *testing.T) {
	f := monorepo(t)

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)
			log, err := repo.Log(context.Background(), LogRequest{Since: "pluginA-v1", Path: "pluginA", Format: FormatFull})
			require.NoError(t, err)

			assert.Contains(t, log, "fix: pluginA crash")
			assert.Contains(t, log, "chore: bump pluginA")
			assert.Contains(t, log, "Author: Test Author <author@example.com>")
			assert.NotContains(t, log, "feat: add pluginA")
			assert.NotContains(t, log, "pluginB")
			assert.NotContains(t, log, "pluginAB extras")
		})
	}
}

func TestLog_AnnotatedTagRange(t *testing.T) {
	f := monorepo(t)

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)
			log, err := repo.Log(context.Background(), LogRequest{Since: "pluginA-v2", Path: "pluginA", Format: FormatFull})
			require.NoError(t, err)

			assert.Contains(t, log, "chore: bump pluginA")
			assert.NotContains(t, log, "fix: pluginA crash")
		})
	}
}

func TestLog_FullHistoryIsPathScoped(t *testing.T) {
	f := monorepo(t)

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)
			log, err := repo.Log(context.Background(), LogRequest{Path: "pluginB", Format: FormatFull})
			require.NoError(t, err)

			assert.Contains(t, log, "docs: add pluginB")
			assert.NotContains(t, log, "fix")
			assert.NotContains(t, log, "feat")
		})
	}
}

func TestLog_Oneline(t *testing.T) {
	f := monorepo(t)

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)
			log, err := repo.Log(context.Background(), LogRequest{Path: "pluginA", Format: FormatOneline})
			require.NoError(t, err)

			lines := splitLines(log)
			require.Len(t, lines, 3)
			assert.True(t, strings.HasSuffix(lines[0], " chore: bump pluginA"), lines[0])
			assert.True(t, strings.HasSuffix(lines[2], " feat: add pluginA"), lines[2])
			assert.NotContains(t, log, "Author:")
		})
	}
}

func TestMessages(t *testing.T) {
	f := monorepo(t)
	f.Commit("pluginB/main.py", "v2", "feat(core)!: new api\n\nBREAKING CHANGE: removes v1\nRelease-As: 2.0.0")

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)
			msgs, err := repo.Messages(context.Background(), LogRequest{Path: "pluginB"})
			require.NoError(t, err)

			require.Len(t, msgs, 2)
			assert.Equal(t, "feat(core)!: new api\n\nBREAKING CHANGE: removes v1\nRelease-As: 2.0.0", msgs[0])
			assert.Equal(t, "docs: add pluginB", msgs[1])
		})
	}
}

// mergedRepo builds a history where a side branch touching pluginA is
// merged into master after master only touched pluginB:
//
//	docs: A1          (pluginA)  <- pluginA-v1
//	  side: docs: side A  (pluginA)
//	master: docs: B       (pluginB)
//	Merge side
//	feat: on rel      (pluginA)
func mergedRepo(t *testing.T) *testutil.GitRepo {
	f := testutil.NewGitRepo(t)
	f.Tag("pluginA-v1", f.Commit("pluginA/a", "1", "docs: A1"))
	f.Branch("side")
	f.Commit("pluginA/b", "1", "docs: side A")
	f.Checkout("master")
	f.Commit("pluginB/a", "1", "docs: B")
	f.Merge("side", "Merge side", map[string]string{"pluginA/b": "1"})
	f.Commit("pluginA/a", "2", "feat: on rel")
	return f
}

func TestMessages_MergeHistoryIsSimplified(t *testing.T) {
	f := mergedRepo(t)

	tests := []struct {
		name  string
		since string
		path  string
		want  []string
	}{
		{name: "full_history", path: "pluginA", want: []string{"feat: on rel", "docs: side A", "docs: A1"}},
		{name: "tag_range", since: "pluginA-v1", path: "pluginA", want: []string{"feat: on rel", "docs: side A"}},
		{name: "other_plugin", path: "pluginB", want: []string{"docs: B"}},
	}

	for _, b := range backends {
		for _, tt := range tests {
			t.Run(string(b)+"/"+tt.name, func(t *testing.T) {
				repo := openBackend(t, f.Dir, b)
				msgs, err := repo.Messages(context.Background(), LogRequest{Since: tt.since, Path: tt.path})
				require.NoError(t, err)
				assert.Equal(t, tt.want, msgs)
			})
		}
	}
}

func TestMessages_MergeChangingBothSidesIsKept(t *testing.T) {
	f := testutil.NewGitRepo(t)
	f.Tag("pluginA-v1", f.Commit("pluginA/a", "1", "docs: A1"))
	f.Branch("side")
	f.Commit("pluginA/b", "1", "docs: side A")
	f.Checkout("master")
	f.Commit("pluginA/c", "1", "docs: A c")
	f.Merge("side", "Merge side", map[string]string{"pluginA/b": "1"})

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)
			msgs, err := repo.Messages(context.Background(), LogRequest{Since: "pluginA-v1", Path: "pluginA"})
			require.NoError(t, err)
			assert.Equal(t, []string{"Merge side", "docs: A c", "docs: side A"}, msgs)
		})
	}
}

func TestLog_UnknownTagFails(t *testing.T) {
	f := monorepo(t)

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)
			_, err := repo.Log(context.Background(), LogRequest{Since: "nope-v9", Path: "pluginA"})
			require.Error(t, err)
			assert.Equal(t, cf_err.CategoryGit, cf_err.CategoryOf(err))
		})
	}
}

func TestPathExists(t *testing.T) {
	f := monorepo(t)

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			repo := openBackend(t, f.Dir, b)

			ok, err := repo.PathExists("pluginA")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = repo.PathExists("pluginZ")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = repo.PathExists("")
			assert.Error(t, err)
		})
	}
}

func TestOpen_NotARepository(t *testing.T) {
	dir := t.TempDir()

	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			if b == BackendCLI {
				if _, err := exec.LookPath("git"); err != nil {
					t.Skip("git binary not available")
				}
			}
			_, err := Open(context.Background(), dir, b)
			require.Error(t, err)
			assert.Equal(t, cf_err.CategoryGit, cf_err.CategoryOf(err))
		})
	}
}

func TestOpen_MissingDirectory(t *testing.T) {
	_, err := Open(context.Background(), "/definitely/not/here", BackendNative)
	require.Error(t, err)
	assert.Equal(t, cf_err.CategorySystem, cf_err.CategoryOf(err))
}

func TestParseBackendAndFormat(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendCLI, b)

	b, err = ParseBackend("Native")
	require.NoError(t, err)
	assert.Equal(t, BackendNative, b)

	_, err = ParseBackend("libgit2")
	assert.Error(t, err)

	f, err := ParseLogFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatFull, f)

	f, err = ParseLogFormat("oneline")
	require.NoError(t, err)
	assert.Equal(t, FormatOneline, f)

	_, err = ParseLogFormat("short")
	assert.Equal(t, cf_err.CategoryConfig, cf_err.CategoryOf(err))
}

func TestLogRequest_Range(t *testing.T) {
	assert.Equal(t, "HEAD", LogRequest{Path: "a"}.Range())
	assert.Equal(t, "a-v1...HEAD", LogRequest{Since: "a-v1", Path: "a"}.Range())
}

func TestSafeEntriesCover(t *testing.T) {
	assert.True(t, safeEntriesCover("/srv/repo\n", "/srv/repo"))
	assert.True(t, safeEntriesCover("/other\r\n*\r\n", "/srv/repo"))
	assert.True(t, safeEntriesCover("/srv/repo/\n", "/srv/repo"))
	assert.False(t, safeEntriesCover("/srv/other\n", "/srv/repo"))
	assert.False(t, safeEntriesCover("", "/srv/repo"))
}
