//go:build !cgofuse
// +build !cgofuse

package fuse

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/dbfs/dbfs/internal/config"
	"github.com/dbfs/dbfs/pkg/errors"
)

// MountManager mounts the filesystem and manages its lifetime.
type MountManager struct {
	dbfs    *DBFS
	cfg     config.MountConfig
	logger  *slog.Logger
	server  *fuse.Server
	mounted bool
}

func NewMountManager(dbfs *DBFS, cfg config.MountConfig, logger *slog.Logger) *MountManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &MountManager{dbfs: dbfs, cfg: cfg, logger: logger}
}

// Mount attaches the filesystem at the configured mount point and
// starts serving in the background.
func (m *MountManager) Mount(ctx context.Context) error {
	if m.mounted {
		return errors.NewError(errors.ErrCodeInvalidState, "filesystem is already mounted")
	}
	if err := m.validateMountPoint(); err != nil {
		return err
	}

	server, err := fs.Mount(m.cfg.MountPoint, NewRoot(m.dbfs), m.buildOptions())
	if err != nil {
		return errors.Wrap(errors.ErrCodeMountFailed, "mounting filesystem", err).
			WithComponent("fuse").
			WithContext("mount_point", m.cfg.MountPoint)
	}

	m.server = server
	m.mounted = true
	m.logger.Info("filesystem mounted", "mount_point", m.cfg.MountPoint)
	return nil
}

// Wait blocks until the filesystem is unmounted.
func (m *MountManager) Wait() {
	if m.server != nil {
		m.server.Wait()
	}
}

// Unmount detaches the filesystem, falling back to a lazy unmount when
// the mount point is busy.
func (m *MountManager) Unmount() error {
	if !m.mounted || m.server == nil {
		return errors.NewError(errors.ErrCodeInvalidState, "filesystem is not mounted")
	}

	if err := m.server.Unmount(); err != nil {
		m.logger.Warn("unmount failed, trying lazy unmount", "error", err)
		if lazyErr := syscall.Unmount(m.cfg.MountPoint, 2); lazyErr != nil {
			return errors.Wrap(errors.ErrCodeUnmountFailed, "unmounting filesystem", err).
				WithComponent("fuse").
				WithContext("mount_point", m.cfg.MountPoint)
		}
	}

	m.mounted = false
	m.server = nil
	m.logger.Info("filesystem unmounted", "mount_point", m.cfg.MountPoint)
	return nil
}

func (m *MountManager) IsMounted() bool {
	return m.mounted
}

func (m *MountManager) validateMountPoint() error {
	info, err := os.Stat(m.cfg.MountPoint)
	if err != nil {
		return errors.Wrap(errors.ErrCodeMountFailed, "mount point not accessible", err).
			WithComponent("fuse").
			WithContext("mount_point", m.cfg.MountPoint)
	}
	if !info.IsDir() {
		return errors.NewError(errors.ErrCodeMountFailed, "mount point is not a directory").
			WithContext("mount_point", m.cfg.MountPoint)
	}
	if m.isAlreadyMounted() {
		return errors.NewError(errors.ErrCodeMountFailed, "mount point is already mounted").
			WithContext("mount_point", m.cfg.MountPoint)
	}
	return nil
}

func (m *MountManager) buildOptions() *fs.Options {
	// Attribute and entry caching stay off: a view file's size changes
	// at every open, so the kernel must re-stat each time.
	zero := time.Duration(0)
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:       m.cfg.FSName,
			FsName:     m.cfg.FSName,
			Debug:      m.cfg.Debug,
			AllowOther: m.cfg.AllowOther,
		},
		AttrTimeout:  &zero,
		EntryTimeout: &zero,
	}
	return opts
}

func (m *MountManager) isAlreadyMounted() bool {
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == m.cfg.MountPoint {
			return true
		}
	}
	return false
}
