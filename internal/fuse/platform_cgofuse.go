//go:build cgofuse
// +build cgofuse

package fuse

import (
	"log/slog"

	"github.com/dbfs/dbfs/internal/config"
)

// NewMounter returns the cross-platform cgofuse mount manager.
func NewMounter(dbfs *DBFS, cfg config.MountConfig, logger *slog.Logger) Mounter {
	return NewPathMountManager(NewPathFS(dbfs), cfg, logger)
}
