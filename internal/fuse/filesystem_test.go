//go:build !cgofuse
// +build !cgofuse

package fuse

import (
	"bytes"
	"context"
	"log/slog"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"

	"github.com/dbfs/dbfs/internal/config"
	"github.com/dbfs/dbfs/pkg/types"
)

func newLoggedRoot(t *testing.T) (*Node, *bytes.Buffer) {
	t.Helper()
	d, _ := newTestDBFS(t, &types.ServerEntry{Name: "prod"}, &fakeExecutor{})
	buf := &bytes.Buffer{}
	d.logger = slog.New(slog.NewTextHandler(buf, nil))
	return NewRoot(d), buf
}

func TestGetattrMissStaysUnlogged(t *testing.T) {
	root, buf := newLoggedRoot(t)
	node := &Node{dbfs: root.dbfs, path: "/missing"}

	errno := node.Getattr(context.Background(), nil, &fuse.AttrOut{})

	assert.Equal(t, syscall.ENOENT, errno)
	assert.Empty(t, buf.String())
}

func TestUnlinkFailureIsLogged(t *testing.T) {
	root, buf := newLoggedRoot(t)

	errno := root.Unlink(context.Background(), "missing")

	assert.Equal(t, syscall.ENOENT, errno)
	assert.Contains(t, buf.String(), "operation failed")
	assert.Contains(t, buf.String(), "unlink")
}

func TestMountOptionsDisableKernelCaching(t *testing.T) {
	d, _ := newTestDBFS(t, &types.ServerEntry{Name: "prod"}, &fakeExecutor{})
	m := NewMountManager(d, config.MountConfig{FSName: "dbfs"}, nil)

	opts := m.buildOptions()

	if assert.NotNil(t, opts.AttrTimeout) {
		assert.Zero(t, *opts.AttrTimeout)
	}
	if assert.NotNil(t, opts.EntryTimeout) {
		assert.Zero(t, *opts.EntryTimeout)
	}
}
