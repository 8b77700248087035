package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/git"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/release"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap/zaptest"
)

// MockRepository is a testify mock of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Tags(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	tags, _ := args.Get(0).([]string)
	return tags, args.Error(1)
}

func (m *MockRepository) Log(ctx context.Context, req git.LogRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) Messages(ctx context.Context, req git.LogRequest) ([]string, error) {
	args := m.Called(ctx, req)
	msgs, _ := args.Get(0).([]string)
	return msgs, args.Error(1)
}

func (m *MockRepository) PathExists(path string) (bool, error) {
	args := m.Called(path)
	return args.Bool(0), args.Error(1)
}

func setupLogger(t *testing.T) context.Context {
	t.Helper()
	otelzap.ReplaceGlobals(otelzap.New(zaptest.NewLogger(t)))
	return context.Background()
}

func full(since, path string) git.LogRequest {
	return git.LogRequest{Since: since, Path: path, Format: git.FormatFull}
}

func TestDetect_Scenario(t *testing.T) {
	ctx := setupLogger(t)
	repo := new(MockRepository)

	repo.On("Tags", mock.Anything).Return([]string{"pluginA-v2", "pluginA-v1"}, nil)
	repo.On("PathExists", "pluginA").Return(true, nil)
	repo.On("PathExists", "pluginB").Return(true, nil)
	repo.On("Log", mock.Anything, full("pluginA-v2", "pluginA")).Return("fix: bug", nil)
	repo.On("Log", mock.Anything, full("", "pluginB")).Return("docs: update readme", nil)

	res, err := New(repo, nil).Detect(ctx, []string{"pluginA", "pluginB"})
	require.NoError(t, err)

	assert.True(t, res.AnyChanged())
	assert.Equal(t, `["pluginA"]`, res.PluginsJSON())
	require.Len(t, res.Reports, 2)
	assert.Equal(t, Report{Plugin: "pluginA", Tag: "pluginA-v2", Range: "pluginA-v2...HEAD", Affects: true, Reason: "fix"}, res.Reports[0])
	assert.Equal(t, Report{Plugin: "pluginB", Range: "HEAD"}, res.Reports[1])
	repo.AssertExpectations(t)
}

func TestDetect_ZeroPlugins(t *testing.T) {
	ctx := setupLogger(t)
	repo := new(MockRepository)
	repo.On("Tags", mock.Anything).Return([]string{"pluginA-v1"}, nil)

	res, err := New(repo, nil).Detect(ctx, nil)
	require.NoError(t, err)

	assert.False(t, res.AnyChanged())
	assert.Equal(t, "[]", res.PluginsJSON())
	assert.NotNil(t, res.Changed)
	repo.AssertExpectations(t)
}

func TestDetect_TaggedWithoutMarkersIsUnchanged(t *testing.T) {
	ctx := setupLogger(t)
	repo := new(MockRepository)
	repo.On("Tags", mock.Anything).Return([]string{"pluginA-v1"}, nil)
	repo.On("PathExists", "pluginA").Return(true, nil)
	repo.On("Log", mock.Anything, full("pluginA-v1", "pluginA")).Return("docs: typo\nchore: deps", nil)

	res, err := New(repo, nil).Detect(ctx, []string{"pluginA"})
	require.NoError(t, err)
	assert.Empty(t, res.Changed)
	assert.Equal(t, "[]", res.PluginsJSON())
}

func TestDetect_UntaggedScansFullHistory(t *testing.T) {
	ctx := setupLogger(t)
	repo := new(MockRepository)
	repo.On("Tags", mock.Anything).Return([]string{"other-v1"}, nil)
	repo.On("PathExists", "pluginA").Return(true, nil)
	repo.On("Log", mock.Anything, full("", "pluginA")).Return("feat: initial import (2019)", nil)

	res, err := New(repo, nil).Detect(ctx, []string{"pluginA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pluginA"}, res.Changed)
	repo.AssertExpectations(t)
}

func TestDetect_PreservesInputOrder(t *testing.T) {
	ctx := setupLogger(t)
	repo := new(MockRepository)
	repo.On("Tags", mock.Anything).Return([]string{}, nil)

	logs := map[string]string{
		"zeta":  "fix: z",
		"alpha": "docs: a",
		"mid":   "feat: m",
		"beta":  "refactor!: b",
	}
	order := []string{"zeta", "alpha", "mid", "beta"}
	for _, p := range order {
		repo.On("PathExists", p).Return(true, nil)
		repo.On("Log", mock.Anything, full("", p)).Return(logs[p], nil)
	}

	res, err := New(repo, nil).Detect(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "mid", "beta"}, res.Changed)
	assert.Equal(t, `["zeta","mid","beta"]`, res.PluginsJSON())
}

func TestDetect_PrefixTagMatchWithoutDelimiter(t *testing.T) {
	ctx := setupLogger(t)
	repo := new(MockRepository)
	repo.On("Tags", mock.Anything).Return([]string{"foobar-1.0", "foo-0.9"}, nil)
	repo.On("PathExists", "foo").Return(true, nil)
	repo.On("Log", mock.Anything, full("foobar-1.0", "foo")).Return("", nil)

	res, err := New(repo, nil).Detect(ctx, []string{"foo"})
	require.NoError(t, err)
	assert.Equal(t, "foobar-1.0", res.Reports[0].Tag)
	repo.AssertExpectations(t)
}

func TestDetect_OnelineFormat(t *testing.T) {
	ctx := setupLogger(t)
	repo := new(MockRepository)
	repo.On("Tags", mock.Anything).Return([]string{}, nil)
	repo.On("PathExists", "pluginA").Return(true, nil)
	repo.On("Log", mock.Anything, git.LogRequest{Path: "pluginA", Format: git.FormatOneline}).Return("abc1234 fix: x\n", nil)

	res, err := New(repo, nil, WithLogFormat(git.FormatOneline)).Detect(ctx, []string{"pluginA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pluginA"}, res.Changed)
	repo.AssertExpectations(t)
}

func TestDetect_ConventionalClassifierUsesMessages(t *testing.T) {
	ctx := setupLogger(t)
	repo := new(MockRepository)
	repo.On("Tags", mock.Anything).Return([]string{"pluginA-v1"}, nil)
	repo.On("PathExists", "pluginA").Return(true, nil)
	repo.On("PathExists", "pluginB").Return(true, nil)
	repo.On("Messages", mock.Anything, full("pluginA-v1", "pluginA")).Return([]string{"chore: rename prefix"}, nil)
	repo.On("Messages", mock.Anything, full("", "pluginB")).Return([]string{"docs: x", "fix: y"}, nil)

	res, err := New(repo, release.NewConventionalClassifier()).Detect(ctx, []string{"pluginA", "pluginB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pluginB"}, res.Changed)
	assert.Equal(t, "fix: y", res.Reports[1].Reason)
	repo.AssertNotCalled(t, "Log", mock.Anything, mock.Anything)
}

func TestDetect_SemverTagOrder(t *testing.T) {
	ctx := setupLogger(t)
	repo := new(MockRepository)
	// listing order puts v9 before v10
	repo.On("Tags", mock.Anything).Return([]string{"pluginA-v9", "pluginA-v10", "pluginA-v1"}, nil)
	repo.On("PathExists", "pluginA").Return(true, nil)
	repo.On("Log", mock.Anything, full("pluginA-v10", "pluginA")).Return("", nil)

	res, err := New(repo, nil, WithTagOrder(OrderSemver)).Detect(ctx, []string{"pluginA"})
	require.NoError(t, err)
	assert.Equal(t, "pluginA-v10", res.Reports[0].Tag)
	repo.AssertExpectations(t)
}

func TestDetect_FailuresAreFatal(t *testing.T) {
	gitErr := cf_err.NewGitError("git log failed", errors.New("exit status 128"))

	t.Run("tags", func(t *testing.T) {
		ctx := setupLogger(t)
		repo := new(MockRepository)
		repo.On("Tags", mock.Anything).Return(nil, gitErr)

		res, err := New(repo, nil).Detect(ctx, []string{"pluginA"})
		require.Error(t, err)
		assert.Nil(t, res)
		assert.Equal(t, cf_err.CategoryGit, cf_err.CategoryOf(err))
	})

	t.Run("log_after_earlier_success", func(t *testing.T) {
		ctx := setupLogger(t)
		repo := new(MockRepository)
		repo.On("Tags", mock.Anything).Return([]string{}, nil)
		repo.On("PathExists", mock.Anything).Return(true, nil)
		repo.On("Log", mock.Anything, full("", "pluginA")).Return("fix: a", nil)
		repo.On("Log", mock.Anything, full("", "pluginB")).Return("", gitErr)

		res, err := New(repo, nil).Detect(ctx, []string{"pluginA", "pluginB", "pluginC"})
		require.Error(t, err)
		assert.Nil(t, res)
		assert.Contains(t, err.Error(), "plugin pluginB")
		repo.AssertNotCalled(t, "Log", mock.Anything, full("", "pluginC"))
	})

	t.Run("missing_path", func(t *testing.T) {
		ctx := setupLogger(t)
		repo := new(MockRepository)
		repo.On("Tags", mock.Anything).Return([]string{}, nil)
		repo.On("PathExists", "gone").Return(false, nil)

		_, err := New(repo, nil).Detect(ctx, []string{"gone"})
		require.Error(t, err)
		assert.Equal(t, cf_err.CategoryValidation, cf_err.CategoryOf(err))
	})

	t.Run("nil_repository", func(t *testing.T) {
		_, err := New(nil, nil).Detect(context.Background(), nil)
		require.Error(t, err)
		assert.Equal(t, cf_err.CategoryInternal, cf_err.CategoryOf(err))
	})
}

func TestResult_PluginsJSON_NilChanged(t *testing.T) {
	assert.Equal(t, "[]", (&Result{}).PluginsJSON())
	assert.False(t, (&Result{}).AnyChanged())
}
