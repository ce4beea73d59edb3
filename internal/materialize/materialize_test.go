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

// fakeExecutor serves canned responses and records the queries it saw.
type fakeExecutor struct {
	response []byte
	err      error
	queries  []string

	fileContent map[string][]byte
	fileErr     map[string]bool
}

func (f *fakeExecutor) Execute(ctx context.Context, query string, server *types.ServerEntry, format types.FileFormat) ([]byte, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeExecutor) ExecuteFile(ctx context.Context, queryPath, outputPath string, server *types.ServerEntry) error {
	name := filepath.Base(queryPath)
	if f.fileErr[name] {
		return fmt.Errorf("query %s failed", name)
	}
	content, ok := f.fileContent[name]
	if !ok {
		content = []byte("output of " + name + "\n")
	}
	return os.WriteFile(outputPath, content, 0644)
}

func (f *fakeExecutor) Verify(ctx context.Context, server *types.ServerEntry) error {
	return f.err
}

type fakeResolver struct {
	entries map[string]*types.ServerEntry
}

func (f *fakeResolver) Resolve(name string) (*types.ServerEntry, error) {
	entry, ok := f.entries[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownServer, "server %q is not registered", name)
	}
	return entry, nil
}

func (f *fakeResolver) All() []*types.ServerEntry {
	var out []*types.ServerEntry
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out
}

func singleServer(entry *types.ServerEntry) *fakeResolver {
	return &fakeResolver{entries: map[string]*types.ServerEntry{entry.Name: entry}}
}

func TestViewQuery(t *testing.T) {
	assert.Equal(t,
		"SELECT * FROM [master].[sys].[tables]",
		ViewQuery("tables", types.FormatTSV))
	assert.Equal(t,
		"SELECT * FROM [master].[sys].[tables] FOR JSON AUTO, ROOT('info')",
		ViewQuery("tables", types.FormatJSON))
}

func TestMaterializeView(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prod"), 0755))
	backing := filepath.Join(root, "prod", "tables")
	require.NoError(t, os.WriteFile(backing, nil, 0644))

	exec := &fakeExecutor{response: []byte("name\tobject_id\nusers\t1\n")}
	m := NewMaterializer(vpath.NewTranslator(root), singleServer(&types.ServerEntry{Name: "prod"}), exec, nil, nil)

	require.NoError(t, m.MaterializeView(context.Background(), "/prod/tables"))

	content, err := os.ReadFile(backing)
	require.NoError(t, err)
	assert.Equal(t, "name\tobject_id\nusers\t1\n", string(content))
	require.Len(t, exec.queries, 1)
	assert.Equal(t, "SELECT * FROM [master].[sys].[tables]", exec.queries[0])
}

func TestMaterializeViewJSON(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prod"), 0755))
	backing := filepath.Join(root, "prod", "tables.json")
	require.NoError(t, os.WriteFile(backing, nil, 0644))

	exec := &fakeExecutor{response: []byte(`{"info":[]}`)}
	m := NewMaterializer(vpath.NewTranslator(root), singleServer(&types.ServerEntry{Name: "prod"}), exec, nil, nil)

	require.NoError(t, m.MaterializeView(context.Background(), "/prod/tables.json"))

	require.Len(t, exec.queries, 1)
	assert.Contains(t, exec.queries[0], "FOR JSON AUTO, ROOT('info')")
}

func TestMaterializeViewUnknownServer(t *testing.T) {
	root := t.TempDir()
	exec := &fakeExecutor{}
	m := NewMaterializer(vpath.NewTranslator(root), &fakeResolver{entries: map[string]*types.ServerEntry{}}, exec, nil, nil)

	err := m.MaterializeView(context.Background(), "/ghost/tables")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownServer))
	assert.Empty(t, exec.queries)
}

func TestMaterializeViewQueryFailure(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prod"), 0755))

	exec := &fakeExecutor{err: fmt.Errorf("connection reset")}
	m := NewMaterializer(vpath.NewTranslator(root), singleServer(&types.ServerEntry{Name: "prod"}), exec, nil, nil)

	assert.Error(t, m.MaterializeView(context.Background(), "/prod/tables"))
}

func TestReleaseView(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prod"), 0755))
	backing := filepath.Join(root, "prod", "tables")
	require.NoError(t, os.WriteFile(backing, []byte("stale content"), 0644))

	m := NewMaterializer(vpath.NewTranslator(root), singleServer(&types.ServerEntry{Name: "prod"}), &fakeExecutor{}, nil, nil)
	require.NoError(t, m.ReleaseView("/prod/tables"))

	info, err := os.Stat(backing)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestRefreshCustomQuery(t *testing.T) {
	root := t.TempDir()
	queries := t.TempDir()
	backingDir := filepath.Join(root, "prod", "customQueries")
	require.NoError(t, os.MkdirAll(backingDir, 0755))

	entry := &types.ServerEntry{Name: "prod", CustomQueriesPath: queries}
	exec := &fakeExecutor{fileContent: map[string][]byte{"top.sql": []byte("pid\n42\n")}}
	m := NewMaterializer(vpath.NewTranslator(root), singleServer(entry), exec, nil, nil)

	m.RefreshCustomQuery(context.Background(), "/prod/customQueries/top.sql")

	content, err := os.ReadFile(filepath.Join(backingDir, "top.sql"))
	require.NoError(t, err)
	assert.Equal(t, "pid\n42\n", string(content))
}

func TestRefreshCustomQueryNoSourceDirConfigured(t *testing.T) {
	root := t.TempDir()
	entry := &types.ServerEntry{Name: "prod"}
	exec := &fakeExecutor{}
	m := NewMaterializer(vpath.NewTranslator(root), singleServer(entry), exec, nil, nil)

	// No panic and no output: servers without a source directory skip
	// the refresh entirely.
	m.RefreshCustomQuery(context.Background(), "/prod/customQueries/top.sql")
	_, err := os.Stat(filepath.Join(root, "prod", "customQueries", "top.sql"))
	assert.True(t, os.IsNotExist(err))
}
