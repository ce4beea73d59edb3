package materialize

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dbfs/dbfs/internal/vpath"
	"github.com/dbfs/dbfs/pkg/errors"
	"github.com/dbfs/dbfs/pkg/types"
)

// seedQuery enumerates catalog views in the sys schema. The first
// response line is the column header and is skipped.
const seedQuery = "SELECT name from sys.system_views where schema_id = 4"

// Seeder builds the backing tree before the filesystem is mounted: one
// directory per server, one empty placeholder file per catalog view,
// and a custom query directory where one is configured. A seed failure
// for any server aborts the mount.
type Seeder struct {
	translator *vpath.Translator
	registry   types.ServerResolver
	executor   types.QueryExecutor
	logger     *slog.Logger
}

func NewSeeder(translator *vpath.Translator, registry types.ServerResolver,
	executor types.QueryExecutor, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		translator: translator,
		registry:   registry,
		executor:   executor,
		logger:     logger,
	}
}

// Seed creates the backing directory tree for every registered server.
func (s *Seeder) Seed(ctx context.Context) error {
	if err := ensureDir(s.translator.Root()); err != nil {
		return err
	}
	for _, entry := range s.registry.All() {
		if err := s.seedServer(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedServer(ctx context.Context, entry *types.ServerEntry) error {
	serverDir := filepath.Join(s.translator.Root(), entry.Name)
	if err := ensureDir(serverDir); err != nil {
		return err
	}

	response, err := s.executor.Execute(ctx, seedQuery, entry, types.FormatTSV)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSeedFailed, "enumerating catalog views", err).
			WithComponent("materialize").
			WithContext("server", entry.Name)
	}

	names := parseSeedResponse(response)
	s.logger.Info("seeding server directory",
		"server", entry.Name,
		"views", len(names),
		"json", entry.SupportsJSON())

	for _, name := range names {
		if err := touch(filepath.Join(serverDir, name)); err != nil {
			return err
		}
		if entry.SupportsJSON() {
			if err := touch(filepath.Join(serverDir, name+vpath.JSONSuffix)); err != nil {
				return err
			}
		}
	}

	if entry.CustomQueriesPath != "" {
		if err := ensureDir(filepath.Join(serverDir, vpath.CustomQueryFolderName)); err != nil {
			return err
		}
	}
	return nil
}

// parseSeedResponse extracts view names from the enumeration response,
// dropping the header line and blanks.
func parseSeedResponse(response []byte) []string {
	lines := strings.Split(string(response), "\n")
	var names []string
	for i, line := range lines {
		if i == 0 {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names
}

func ensureDir(path string) error {
	if err := os.Mkdir(path, 0755); err != nil && !os.IsExist(err) {
		return errors.Wrap(errors.ErrCodeSeedFailed, "creating backing directory", err).
			WithComponent("materialize").
			WithContext("path", path)
	}
	return nil
}

// touch creates an empty placeholder, truncating any leftover content
// from a previous run.
func touch(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSeedFailed, "creating placeholder file", err).
			WithComponent("materialize").
			WithContext("path", path)
	}
	return file.Close()
}
