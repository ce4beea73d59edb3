package materialize

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbfs/dbfs/internal/vpath"
	"github.com/dbfs/dbfs/pkg/errors"
	"github.com/dbfs/dbfs/pkg/types"
)

const stagingSuffix = ".tmp"

// Synchronizer rebuilds a server's custom query directory so that its
// outputs mirror the current contents of the configured source
// directory. Rebuilds of the same directory are serialized, and each
// output is staged and renamed into place so a concurrent open never
// sees a partially written file.
type Synchronizer struct {
	translator *vpath.Translator
	registry   types.ServerResolver
	executor   types.QueryExecutor
	metrics    types.MetricsCollector
	logger     *slog.Logger

	mu   sync.Mutex
	dirs map[string]*sync.Mutex
}

func NewSynchronizer(translator *vpath.Translator, registry types.ServerResolver,
	executor types.QueryExecutor, metrics types.MetricsCollector, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		translator: translator,
		registry:   registry,
		executor:   executor,
		metrics:    metrics,
		logger:     logger,
		dirs:       make(map[string]*sync.Mutex),
	}
}

func (s *Synchronizer) dirLock(virtual string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.dirs[virtual]
	if !ok {
		lock = &sync.Mutex{}
		s.dirs[virtual] = lock
	}
	return lock
}

// SyncDir brings the custom query directory at the given virtual path
// up to date: outputs for removed source queries are deleted, and one
// output per current source query is regenerated. Individual query
// failures are logged and skipped so one broken query cannot hide the
// rest of the directory. The returned error covers infrastructural
// failures only, where the listing itself cannot proceed.
func (s *Synchronizer) SyncDir(ctx context.Context, virtual string) error {
	server, err := vpath.CustomQueryDirServer(virtual)
	if err != nil {
		return err
	}
	entry, err := s.registry.Resolve(server)
	if err != nil {
		return err
	}
	if entry.CustomQueriesPath == "" {
		return nil
	}

	lock := s.dirLock(virtual)
	lock.Lock()
	defer lock.Unlock()

	sources, err := readSourceNames(entry.CustomQueriesPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBackingStore, "reading custom query source directory", err).
			WithComponent("materialize").
			WithContext("path", entry.CustomQueriesPath)
	}

	backingDir := s.translator.Backing(virtual)
	if err := s.purgeStale(backingDir, sources); err != nil {
		return err
	}

	for name := range sources {
		s.regenerate(ctx, entry, backingDir, name)
	}
	return nil
}

// readSourceNames returns the set of regular file names in the source
// directory. A missing directory reads as empty, which purges every
// output.
func readSourceNames(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names[e.Name()] = struct{}{}
	}
	return names, nil
}

// purgeStale removes outputs with no matching source query, plus any
// staging leftovers from an interrupted rebuild.
func (s *Synchronizer) purgeStale(backingDir string, sources map[string]struct{}) error {
	entries, err := os.ReadDir(backingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.ErrCodeBackingStore, "reading custom query output directory", err).
			WithComponent("materialize").
			WithContext("path", backingDir)
	}
	for _, e := range entries {
		name := e.Name()
		if _, current := sources[name]; current {
			continue
		}
		if err := os.Remove(filepath.Join(backingDir, name)); err != nil {
			s.logger.Warn("stale output not removed", "path", filepath.Join(backingDir, name), "error", err)
		}
	}
	return nil
}

// regenerate executes one source query into a staged file and renames
// it over the output, so readers see either the old content or the new
// content in full.
func (s *Synchronizer) regenerate(ctx context.Context, entry *types.ServerEntry, backingDir, name string) {
	queryPath := filepath.Join(entry.CustomQueriesPath, name)
	staged := filepath.Join(backingDir, "."+name+"."+uuid.NewString()[:8]+stagingSuffix)
	final := filepath.Join(backingDir, name)

	start := time.Now()
	if err := s.executor.ExecuteFile(ctx, queryPath, staged, entry); err != nil {
		if s.metrics != nil {
			s.metrics.RecordQueryFailure(entry.Name)
		}
		s.logger.Error("custom query failed",
			"server", entry.Name,
			"query", name,
			"error", err)
		os.Remove(staged)
		return
	}
	if err := os.Rename(staged, final); err != nil {
		s.logger.Error("custom query output not published",
			"server", entry.Name,
			"query", name,
			"error", err)
		os.Remove(staged)
		return
	}
	s.logger.Debug("custom query regenerated",
		"server", entry.Name,
		"query", name,
		"duration", time.Since(start))
}
