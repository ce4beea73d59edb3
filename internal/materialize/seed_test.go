package materialize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbfs/dbfs/internal/vpath"
	"github.com/dbfs/dbfs/pkg/errors"
	"github.com/dbfs/dbfs/pkg/types"
)

func TestSeedCreatesPlaceholders(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dump")
	exec := &fakeExecutor{response: []byte("name\ntables\nviews\n")}
	entry := &types.ServerEntry{Name: "prod", Version: 16}

	s := NewSeeder(vpath.NewTranslator(root), singleServer(entry), exec, nil)
	require.NoError(t, s.Seed(context.Background()))

	for _, name := range []string{"tables", "views", "tables.json", "views.json"} {
		info, err := os.Stat(filepath.Join(root, "prod", name))
		require.NoError(t, err, "missing %s", name)
		assert.Zero(t, info.Size(), "%s should be empty", name)
	}

	require.Len(t, exec.queries, 1)
	assert.Equal(t, "SELECT name from sys.system_views where schema_id = 4", exec.queries[0])
}

func TestSeedSkipsJSONTwinsForOldServers(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dump")
	exec := &fakeExecutor{response: []byte("name\ntables\n")}
	entry := &types.ServerEntry{Name: "legacy", Version: 15}

	s := NewSeeder(vpath.NewTranslator(root), singleServer(entry), exec, nil)
	require.NoError(t, s.Seed(context.Background()))

	_, err := os.Stat(filepath.Join(root, "legacy", "tables"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "legacy", "tables.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSeedCreatesCustomQueryDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dump")
	exec := &fakeExecutor{response: []byte("name\n")}
	entry := &types.ServerEntry{Name: "prod", CustomQueriesPath: "/etc/dbfs/queries"}

	s := NewSeeder(vpath.NewTranslator(root), singleServer(entry), exec, nil)
	require.NoError(t, s.Seed(context.Background()))

	info, err := os.Stat(filepath.Join(root, "prod", "customQueries"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSeedSkipsHeaderAndBlankLines(t *testing.T) {
	assert.Equal(t, []string{"tables", "views"},
		parseSeedResponse([]byte("name\ntables\n\nviews\n\n")))
	assert.Empty(t, parseSeedResponse([]byte("name\n")))
	assert.Empty(t, parseSeedResponse(nil))
}

func TestSeedFailureAborts(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dump")
	exec := &fakeExecutor{err: fmt.Errorf("login timeout")}
	entry := &types.ServerEntry{Name: "prod"}

	s := NewSeeder(vpath.NewTranslator(root), singleServer(entry), exec, nil)
	err := s.Seed(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSeedFailed))
}

func TestSeedTruncatesLeftoverContent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dump")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prod"), 0755))
	stale := filepath.Join(root, "prod", "tables")
	require.NoError(t, os.WriteFile(stale, []byte("left over from a crash"), 0644))

	exec := &fakeExecutor{response: []byte("name\ntables\n")}
	entry := &types.ServerEntry{Name: "prod"}

	s := NewSeeder(vpath.NewTranslator(root), singleServer(entry), exec, nil)
	require.NoError(t, s.Seed(context.Background()))

	info, err := os.Stat(stale)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}
