//go:build cgofuse
// +build cgofuse

package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/dbfs/dbfs/internal/config"
	"github.com/dbfs/dbfs/pkg/errors"
)

// PathMountManager mounts the path-based frontend.
type PathMountManager struct {
	fsys   *PathFS
	cfg    config.MountConfig
	logger *slog.Logger

	mu      sync.Mutex
	host    *fuse.FileSystemHost
	done    chan struct{}
	mounted bool
}

func NewPathMountManager(fsys *PathFS, cfg config.MountConfig, logger *slog.Logger) *PathMountManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PathMountManager{fsys: fsys, cfg: cfg, logger: logger}
}

// Mount attaches the filesystem and serves it in the background. Reads
// bypass the page cache so every open observes freshly materialized
// content.
func (m *PathMountManager) Mount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mounted {
		return errors.NewError(errors.ErrCodeInvalidState, "filesystem is already mounted")
	}

	options := []string{
		"-o", fmt.Sprintf("fsname=%s", m.cfg.FSName),
		"-o", "direct_io",
	}
	if m.cfg.AllowOther {
		options = append(options, "-o", "allow_other")
	}
	if m.cfg.Debug {
		options = append(options, "-d")
	}

	m.host = fuse.NewFileSystemHost(m.fsys)
	m.done = make(chan struct{})
	m.mounted = true

	go func() {
		defer close(m.done)
		if ok := m.host.Mount(m.cfg.MountPoint, options); !ok {
			m.logger.Error("mount exited with failure", "mount_point", m.cfg.MountPoint)
		}
		m.mu.Lock()
		m.mounted = false
		m.mu.Unlock()
	}()

	m.logger.Info("filesystem mounted", "mount_point", m.cfg.MountPoint)
	return nil
}

// Wait blocks until the filesystem is unmounted.
func (m *PathMountManager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (m *PathMountManager) Unmount() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted || m.host == nil {
		return errors.NewError(errors.ErrCodeInvalidState, "filesystem is not mounted")
	}
	if !m.host.Unmount() {
		return errors.NewError(errors.ErrCodeUnmountFailed, "unmount failed").
			WithContext("mount_point", m.cfg.MountPoint)
	}
	return nil
}

func (m *PathMountManager) IsMounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}
