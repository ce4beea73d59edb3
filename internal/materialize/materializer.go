// Package materialize produces the content of generated files: system
// view files filled at open time and custom query outputs rebuilt at
// directory listing time. All content is written through the backing
// store, which the filesystem layer's read path then serves.
package materialize

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dbfs/dbfs/internal/vpath"
	"github.com/dbfs/dbfs/pkg/errors"
	"github.com/dbfs/dbfs/pkg/types"
)

// Query shape for view files. The object name is spliced between the
// two parts; the JSON form appends the FOR JSON clause.
const (
	viewQueryPrefix = "SELECT * FROM [master].[sys].["
	viewQuerySuffix = "]"
	viewJSONClause  = " FOR JSON AUTO, ROOT('info')"
)

// Materializer fills generated view files on open and empties them on
// release.
type Materializer struct {
	translator *vpath.Translator
	registry   types.ServerResolver
	executor   types.QueryExecutor
	metrics    types.MetricsCollector
	logger     *slog.Logger
}

// NewMaterializer wires a materializer to its collaborators. The
// metrics collector may be nil.
func NewMaterializer(translator *vpath.Translator, registry types.ServerResolver,
	executor types.QueryExecutor, metrics types.MetricsCollector, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		translator: translator,
		registry:   registry,
		executor:   executor,
		metrics:    metrics,
		logger:     logger,
	}
}

// ViewQuery composes the query text for a catalog object in the given
// format.
func ViewQuery(object string, format types.FileFormat) string {
	query := viewQueryPrefix + object + viewQuerySuffix
	if format == types.FormatJSON {
		query += viewJSONClause
	}
	return query
}

// MaterializeView derives a query from the view file's name, executes
// it remotely, and writes the response into the backing file at offset
// zero. The caller's open fails when this fails.
func (m *Materializer) MaterializeView(ctx context.Context, virtual string) error {
	server, object, format, err := vpath.ViewTarget(virtual)
	if err != nil {
		return err
	}

	entry, err := m.registry.Resolve(server)
	if err != nil {
		return err
	}

	start := time.Now()
	response, err := m.executor.Execute(ctx, ViewQuery(object, format), entry, format)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordQueryFailure(server)
		}
		m.logger.Error("view query failed",
			"server", server,
			"object", object,
			"error", err)
		return err
	}

	backing := m.translator.Backing(virtual)
	file, err := os.OpenFile(backing, os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBackingStore, "opening backing file for write", err).
			WithComponent("materialize").
			WithContext("path", backing)
	}
	defer file.Close()

	if _, err := file.WriteAt(response, 0); err != nil {
		return errors.Wrap(errors.ErrCodeBackingStore, "writing materialized content", err).
			WithComponent("materialize").
			WithContext("path", backing)
	}

	if m.metrics != nil {
		m.metrics.RecordMaterialization(server, format, time.Since(start), len(response))
	}
	m.logger.Debug("view materialized",
		"server", server,
		"object", object,
		"format", format.String(),
		"bytes", len(response))
	return nil
}

// ReleaseView truncates the backing file back to zero length so the
// next open re-executes the query instead of serving stale content.
func (m *Materializer) ReleaseView(virtual string) error {
	backing := m.translator.Backing(virtual)
	if err := os.Truncate(backing, 0); err != nil {
		return errors.Wrap(errors.ErrCodeBackingStore, "truncating view file", err).
			WithComponent("materialize").
			WithContext("path", backing)
	}
	return nil
}

// RefreshCustomQuery re-executes the one source query backing a custom
// query output file and rewrites that output. Failures are logged and
// swallowed: the open proceeds and serves whatever content the file
// has, matching the listing-time best-effort policy.
func (m *Materializer) RefreshCustomQuery(ctx context.Context, virtual string) {
	server, filename, err := vpath.CustomQueryTarget(virtual)
	if err != nil {
		m.logger.Error("custom query path rejected", "path", virtual, "error", err)
		return
	}

	entry, err := m.registry.Resolve(server)
	if err != nil {
		m.logger.Error("custom query server unknown", "server", server, "error", err)
		return
	}
	if entry.CustomQueriesPath == "" {
		return
	}

	queryPath := entry.CustomQueriesPath + "/" + filename
	backing := m.translator.Backing(virtual)
	if err := m.executor.ExecuteFile(ctx, queryPath, backing, entry); err != nil {
		if m.metrics != nil {
			m.metrics.RecordQueryFailure(server)
		}
		m.logger.Error("custom query refresh failed",
			"server", server,
			"file", filename,
			"error", err)
	}
}
