package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbfs/dbfs/internal/config"
	"github.com/dbfs/dbfs/pkg/errors"
	"github.com/dbfs/dbfs/pkg/types"
)

type stubExecutor struct {
	failing map[string]bool
	seen    []string
}

func (s *stubExecutor) Execute(ctx context.Context, query string, server *types.ServerEntry, format types.FileFormat) ([]byte, error) {
	return nil, nil
}

func (s *stubExecutor) ExecuteFile(ctx context.Context, queryPath, outputPath string, server *types.ServerEntry) error {
	return nil
}

func (s *stubExecutor) Verify(ctx context.Context, server *types.ServerEntry) error {
	s.seen = append(s.seen, server.Name)
	if s.failing[server.Name] {
		return fmt.Errorf("login failed")
	}
	return nil
}

func testConfig(names ...string) *config.Configuration {
	cfg := config.NewDefault()
	for _, name := range names {
		cfg.Servers = append(cfg.Servers, types.ServerEntry{
			Name:     name,
			Hostname: name + ".example.com",
			Username: "sa",
		})
	}
	return cfg
}

func TestResolve(t *testing.T) {
	reg := New(testConfig("prod", "staging"))

	entry, err := reg.Resolve("prod")
	require.NoError(t, err)
	assert.Equal(t, "prod.example.com", entry.Hostname)

	_, err = reg.Resolve("missing")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownServer))
}

func TestAllSorted(t *testing.T) {
	reg := New(testConfig("zeta", "alpha", "mid"))

	var names []string
	for _, entry := range reg.All() {
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestVerify(t *testing.T) {
	reg := New(testConfig("alpha", "beta"))
	exec := &stubExecutor{}

	require.NoError(t, reg.Verify(context.Background(), exec))
	assert.Equal(t, []string{"alpha", "beta"}, exec.seen)
}

func TestVerifyStopsOnFirstFailure(t *testing.T) {
	reg := New(testConfig("alpha", "beta", "gamma"))
	exec := &stubExecutor{failing: map[string]bool{"beta": true}}

	err := reg.Verify(context.Background(), exec)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConnectionFailed))
	assert.Equal(t, []string{"alpha", "beta"}, exec.seen)
}
