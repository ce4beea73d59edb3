//go:build !cgofuse
// +build !cgofuse

package fuse

import (
	"log/slog"

	"github.com/dbfs/dbfs/internal/config"
)

// NewMounter returns the default kernel-FUSE mount manager.
func NewMounter(dbfs *DBFS, cfg config.MountConfig, logger *slog.Logger) Mounter {
	return NewMountManager(dbfs, cfg, logger)
}
