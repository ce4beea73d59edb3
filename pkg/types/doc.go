/*
Package types provides the core interfaces and type definitions shared
across DBFS components.

The filesystem layer (internal/fuse) depends on the QueryExecutor and
ServerResolver contracts rather than on concrete implementations, which
keeps the materialization core testable without a reachable server:

	┌─────────────────────────────────────────┐
	│             FUSE frontends              │
	│     (go-fuse default / cgofuse tag)     │
	└─────────────────────────────────────────┘
	                    │
	┌─────────────────────────────────────────┐
	│   Materializer / Directory Synchronizer │
	│          (internal/materialize)         │
	└─────────────────────────────────────────┘
	        │                       │
	┌───────┴────────┐     ┌────────┴────────┐
	│ QueryExecutor  │     │ ServerResolver  │
	│ (internal/query)│    │(internal/registry)│
	└────────────────┘     └─────────────────┘

All interfaces here are safe for concurrent use when properly
implemented; ServerEntry values are immutable after startup.
*/
package types
