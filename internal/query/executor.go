// Package query executes SQL against remote servers on behalf of the
// filesystem core. It is the only package that talks to the network;
// everything above it consumes the types.QueryExecutor contract.
package query

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/dbfs/dbfs/internal/config"
	"github.com/dbfs/dbfs/pkg/errors"
	"github.com/dbfs/dbfs/pkg/types"
)

// appName identifies this process in the server's session metadata.
const appName = "dbfs"

// Executor runs queries over TDS using database/sql.
type Executor struct {
	cfg    config.QueryConfig
	logger *slog.Logger
}

// NewExecutor creates an executor with the given query settings.
func NewExecutor(cfg config.QueryConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{cfg: cfg, logger: logger}
}

// dsn builds the connection string for a server entry.
func (e *Executor) dsn(server *types.ServerEntry) string {
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(server.Username, server.Password),
		Host:   server.Hostname,
	}
	values := url.Values{}
	values.Set("database", e.cfg.Database)
	values.Set("app name", appName)
	values.Set("dial timeout", strconv.Itoa(int(e.cfg.LoginTimeout/time.Second)))
	u.RawQuery = values.Encode()
	return u.String()
}

// connect opens a connection and verifies it within the login timeout.
// Each query uses its own short-lived connection.
func (e *Executor) connect(ctx context.Context, server *types.ServerEntry) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", e.dsn(server))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnectionFailed, "opening connection", err).
			WithComponent("query").
			WithContext("server", server.Name)
	}

	pingCtx, cancel := context.WithTimeout(ctx, e.cfg.LoginTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeConnectionFailed, "server unreachable", err).
			WithComponent("query").
			WithContext("server", server.Name)
	}
	return db, nil
}

// Execute runs query against the server and renders the response in the
// requested format. The response timeout bounds the whole round trip.
func (e *Executor) Execute(ctx context.Context, query string, server *types.ServerEntry, format types.FileFormat) ([]byte, error) {
	db, err := e.connect(ctx, server)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	queryCtx, cancel := context.WithTimeout(ctx, e.cfg.ResponseTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, query)
	if err != nil {
		code := errors.ErrCodeQueryFailed
		if queryCtx.Err() == context.DeadlineExceeded {
			code = errors.ErrCodeQueryTimeout
		}
		return nil, errors.Wrap(code, "query execution failed", err).
			WithComponent("query").
			WithContext("server", server.Name)
	}
	defer rows.Close()

	var response []byte
	switch format {
	case types.FormatJSON:
		response, err = renderJSON(rows)
	default:
		response, err = renderTSV(rows)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResponseInvalid, "rendering response", err).
			WithComponent("query").
			WithContext("server", server.Name)
	}

	e.logger.Debug("query executed",
		"server", server.Name,
		"format", format.String(),
		"bytes", len(response))
	return response, nil
}

// ExecuteFile reads a query definition from queryPath, runs it, and
// writes the tabular response to outputPath, truncating any previous
// content.
func (e *Executor) ExecuteFile(ctx context.Context, queryPath, outputPath string, server *types.ServerEntry) error {
	text, err := os.ReadFile(queryPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBackingStore, "reading query file", err).
			WithComponent("query").
			WithContext("path", queryPath)
	}

	response, err := e.Execute(ctx, string(text), server, types.FormatTSV)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, response, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeBackingStore, "writing query output", err).
			WithComponent("query").
			WithContext("path", outputPath)
	}
	return nil
}

// Verify checks that the server accepts connections with its configured
// credentials.
func (e *Executor) Verify(ctx context.Context, server *types.ServerEntry) error {
	db, err := e.connect(ctx, server)
	if err != nil {
		return err
	}
	defer db.Close()

	queryCtx, cancel := context.WithTimeout(ctx, e.cfg.ResponseTimeout)
	defer cancel()

	var one int
	if err := db.QueryRowContext(queryCtx, "SELECT 1").Scan(&one); err != nil {
		return errors.Wrap(errors.ErrCodeConnectionFailed, "verification query failed", err).
			WithComponent("query").
			WithContext("server", server.Name)
	}
	return nil
}

var _ types.QueryExecutor = (*Executor)(nil)
