package types

import (
	"context"
	"time"
)

// QueryExecutor abstracts remote query execution. The filesystem core
// never talks to a server directly; every remote interaction goes
// through this interface so the core is testable without a live server.
type QueryExecutor interface {
	// Execute runs query against the given server and returns the
	// response bytes in the requested format.
	Execute(ctx context.Context, query string, server *ServerEntry, format FileFormat) ([]byte, error)

	// ExecuteFile reads a query definition from queryPath, runs it
	// against the server, and writes the raw response to outputPath.
	ExecuteFile(ctx context.Context, queryPath, outputPath string, server *ServerEntry) error

	// Verify checks that the server is reachable with its configured
	// credentials.
	Verify(ctx context.Context, server *ServerEntry) error
}

// ServerResolver looks up registered servers by name.
type ServerResolver interface {
	// Resolve returns the entry for the named server, or an error with
	// code UNKNOWN_SERVER when no such server is registered.
	Resolve(name string) (*ServerEntry, error)

	// All returns every registered server.
	All() []*ServerEntry
}

// MetricsCollector defines the metrics collection interface.
type MetricsCollector interface {
	RecordOperation(operation string, duration time.Duration, success bool)
	RecordMaterialization(server string, format FileFormat, duration time.Duration, bytes int)
	RecordQueryFailure(server string)
}
