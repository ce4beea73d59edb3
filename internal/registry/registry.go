// Package registry holds the process-wide server registry. The registry
// is populated once at startup from configuration and read-only
// afterwards, so lookups need no synchronization.
package registry

import (
	"context"
	"sort"

	"github.com/dbfs/dbfs/internal/config"
	"github.com/dbfs/dbfs/pkg/errors"
	"github.com/dbfs/dbfs/pkg/types"
)

// Registry maps server names to their connection details.
type Registry struct {
	servers map[string]*types.ServerEntry
}

// New builds a registry from the configured server list.
func New(cfg *config.Configuration) *Registry {
	servers := make(map[string]*types.ServerEntry, len(cfg.Servers))
	for i := range cfg.Servers {
		entry := cfg.Servers[i]
		servers[entry.Name] = &entry
	}
	return &Registry{servers: servers}
}

// Resolve returns the entry for the named server.
func (r *Registry) Resolve(name string) (*types.ServerEntry, error) {
	entry, ok := r.servers[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownServer, "server %q is not registered", name).
			WithComponent("registry")
	}
	return entry, nil
}

// All returns every registered server, sorted by name for deterministic
// iteration order.
func (r *Registry) All() []*types.ServerEntry {
	entries := make([]*types.ServerEntry, 0, len(r.servers))
	for _, entry := range r.servers {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Verify checks connectivity for every registered server and returns
// the first failure.
func (r *Registry) Verify(ctx context.Context, executor types.QueryExecutor) error {
	for _, entry := range r.All() {
		if err := executor.Verify(ctx, entry); err != nil {
			return errors.Wrap(errors.ErrCodeConnectionFailed, "server verification failed", err).
				WithComponent("registry").
				WithContext("server", entry.Name)
		}
	}
	return nil
}

var _ types.ServerResolver = (*Registry)(nil)
