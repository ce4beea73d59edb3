package fuse

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/dbfs/dbfs/internal/config"
	"github.com/dbfs/dbfs/internal/materialize"
	"github.com/dbfs/dbfs/internal/vpath"
	"github.com/dbfs/dbfs/pkg/types"
)

// Mounter manages a mounted filesystem instance. Both frontends
// provide one; the build tag selects which.
type Mounter interface {
	Mount(ctx context.Context) error
	Wait()
	Unmount() error
	IsMounted() bool
}

// DBFS is the filesystem core shared by both FUSE frontends. It owns
// path classification and the open, release, and listing hooks that
// give generated files their content. The frontends stay thin: they
// translate FUSE callbacks into calls on this type.
type DBFS struct {
	translator   *vpath.Translator
	materializer *materialize.Materializer
	synchronizer *materialize.Synchronizer
	metrics      types.MetricsCollector
	logger       *slog.Logger
	cfg          config.MountConfig
}

// NewDBFS wires the filesystem core. The metrics collector may be nil.
func NewDBFS(translator *vpath.Translator, materializer *materialize.Materializer,
	synchronizer *materialize.Synchronizer, metrics types.MetricsCollector,
	logger *slog.Logger, cfg config.MountConfig) *DBFS {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBFS{
		translator:   translator,
		materializer: materializer,
		synchronizer: synchronizer,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
	}
}

// Backing translates a virtual path into its backing path.
func (d *DBFS) Backing(virtual string) string {
	return d.translator.Backing(virtual)
}

// OpenFile runs the open hook for virtual and returns the backing file
// opened with the given flags. The backing file is opened first: a path
// with no placeholder fails with the OS error before any query runs.
// Generated view files are then filled, after the open so a truncating
// open cannot erase the fresh content; a failed materialization fails
// the open with EIO. Custom query outputs are refreshed best effort.
// Writes to generated files are rejected later, at the write callback,
// so the open itself stays permissive.
func (d *DBFS) OpenFile(ctx context.Context, virtual string, flags int) (*os.File, error) {
	file, err := os.OpenFile(d.translator.Backing(virtual), flags, 0)
	if err != nil {
		return nil, err
	}

	switch vpath.Classify(virtual) {
	case types.ClassGeneratedView:
		if err := d.materializer.MaterializeView(ctx, virtual); err != nil {
			d.logger.Error("open aborted", "path", virtual, "error", err)
			file.Close()
			return nil, syscall.EIO
		}
	case types.ClassCustomQueryFile:
		d.materializer.RefreshCustomQuery(ctx, virtual)
	}

	return file, nil
}

// ReleaseFile closes the backing file and, for generated view files,
// truncates the backing content so the next open starts fresh.
func (d *DBFS) ReleaseFile(virtual string, file *os.File) {
	if file != nil {
		file.Close()
	}
	if vpath.Classify(virtual) == types.ClassGeneratedView {
		if err := d.materializer.ReleaseView(virtual); err != nil {
			d.logger.Error("release truncate failed", "path", virtual, "error", err)
		}
	}
}

// OpenDir runs the listing hook: custom query directories are rebuilt
// before the listing proceeds. Rebuild failures are logged and the
// listing continues with whatever the directory holds.
func (d *DBFS) OpenDir(ctx context.Context, virtual string) {
	if vpath.Classify(virtual) != types.ClassCustomQueryDir {
		return
	}
	if err := d.synchronizer.SyncDir(ctx, virtual); err != nil {
		d.logger.Error("custom query directory rebuild failed", "path", virtual, "error", err)
	}
}

// WriteAllowed reports whether writes may reach the backing file at
// virtual. Generated targets are read only.
func (d *DBFS) WriteAllowed(virtual string) bool {
	return vpath.Classify(virtual) == types.ClassPlain
}

func (d *DBFS) recordOp(op string, start time.Time, success bool) {
	if d.metrics != nil {
		d.metrics.RecordOperation(op, time.Since(start), success)
	}
}
