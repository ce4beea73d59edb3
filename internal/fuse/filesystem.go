//go:build !cgofuse
// +build !cgofuse

package fuse

import (
	"context"
	"io"
	"os"
	"path"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// Node is one virtual path in the tree. Every node delegates to the
// shared core; the node itself carries nothing but its virtual path.
type Node struct {
	fs.Inode
	dbfs *DBFS
	path string
}

// NewRoot returns the root node for mounting.
func NewRoot(dbfs *DBFS) *Node {
	return &Node{dbfs: dbfs, path: "/"}
}

func (n *Node) child(name string) string {
	return path.Join(n.path, name)
}

// errno translates a failure for the kernel and logs it. Attribute
// queries bypass this: the kernel stats paths constantly and those
// misses are routine.
func (n *Node) errno(op, virtual string, err error) syscall.Errno {
	if err == nil {
		return 0
	}
	n.dbfs.logger.Error("operation failed", "op", op, "path", virtual, "error", err)
	return fs.ToErrno(err)
}

var _ = (fs.NodeGetattrer)((*Node)(nil))
var _ = (fs.NodeLookuper)((*Node)(nil))
var _ = (fs.NodeReaddirer)((*Node)(nil))
var _ = (fs.NodeOpendirer)((*Node)(nil))
var _ = (fs.NodeOpener)((*Node)(nil))
var _ = (fs.NodeSetattrer)((*Node)(nil))
var _ = (fs.NodeUnlinker)((*Node)(nil))
var _ = (fs.NodeRmdirer)((*Node)(nil))
var _ = (fs.NodeMkdirer)((*Node)(nil))
var _ = (fs.NodeRenamer)((*Node)(nil))
var _ = (fs.NodeCreater)((*Node)(nil))
var _ = (fs.NodeStatfser)((*Node)(nil))
var _ = (fs.NodeReadlinker)((*Node)(nil))
var _ = (fs.NodeSymlinker)((*Node)(nil))
var _ = (fs.NodeLinker)((*Node)(nil))
var _ = (fs.NodeMknoder)((*Node)(nil))
var _ = (fs.NodeAccesser)((*Node)(nil))
var _ = (fs.NodeGetxattrer)((*Node)(nil))
var _ = (fs.NodeSetxattrer)((*Node)(nil))
var _ = (fs.NodeListxattrer)((*Node)(nil))
var _ = (fs.NodeRemovexattrer)((*Node)(nil))

// Getattr stats the backing path. Failures are routine during kernel
// path probing and are not logged.
func (n *Node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	var st syscall.Stat_t
	if err := syscall.Lstat(n.dbfs.Backing(n.path), &st); err != nil {
		return fs.ToErrno(err)
	}
	out.FromStat(&st)
	return 0
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := n.child(name)
	var st syscall.Stat_t
	if err := syscall.Lstat(n.dbfs.Backing(childPath), &st); err != nil {
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)

	child := &Node{dbfs: n.dbfs, path: childPath}
	stable := fs.StableAttr{Mode: st.Mode, Ino: st.Ino}
	return n.NewInode(ctx, child, stable), 0
}

// Opendir rebuilds custom query directories before their listing.
func (n *Node) Opendir(ctx context.Context) syscall.Errno {
	start := time.Now()
	n.dbfs.OpenDir(ctx, n.path)
	n.dbfs.recordOp("opendir", start, true)
	return 0
}

// Readdir lists the backing directory. Entries are synthesized from
// directory entry metadata alone, without a per-entry stat.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	start := time.Now()
	entries, err := os.ReadDir(n.dbfs.Backing(n.path))
	if err != nil {
		n.dbfs.recordOp("readdir", start, false)
		return nil, n.errno("readdir", n.path, err)
	}

	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(fuse.S_IFREG)
		if e.IsDir() {
			mode = fuse.S_IFDIR
		}
		out = append(out, fuse.DirEntry{Name: e.Name(), Mode: mode})
	}
	n.dbfs.recordOp("readdir", start, true)
	return fs.NewListDirStream(out), 0
}

// Open runs the materialization hook and hands the backing descriptor
// to a file handle. Direct IO keeps the kernel page cache out of the
// way so each read observes the freshly materialized content.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	start := time.Now()
	file, err := n.dbfs.OpenFile(ctx, n.path, int(flags))
	if err != nil {
		n.dbfs.recordOp("open", start, false)
		return nil, 0, n.errno("open", n.path, err)
	}
	n.dbfs.recordOp("open", start, true)
	return &Handle{dbfs: n.dbfs, path: n.path, file: file}, fuse.FOPEN_DIRECT_IO, 0
}

func (n *Node) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	backing := n.dbfs.Backing(n.path)

	if size, ok := in.GetSize(); ok {
		if !n.dbfs.WriteAllowed(n.path) {
			return syscall.EPERM
		}
		if err := os.Truncate(backing, int64(size)); err != nil {
			return n.errno("truncate", n.path, err)
		}
	}
	if mode, ok := in.GetMode(); ok {
		if err := os.Chmod(backing, os.FileMode(mode)); err != nil {
			return n.errno("chmod", n.path, err)
		}
	}
	atime, hasATime := in.GetATime()
	mtime, hasMTime := in.GetMTime()
	if hasATime || hasMTime {
		ts := []unix.Timespec{
			{Nsec: unix.UTIME_OMIT},
			{Nsec: unix.UTIME_OMIT},
		}
		if hasATime {
			ts[0] = unix.NsecToTimespec(atime.UnixNano())
		}
		if hasMTime {
			ts[1] = unix.NsecToTimespec(mtime.UnixNano())
		}
		if err := unix.UtimesNanoAt(unix.AT_FDCWD, backing, ts, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return n.errno("utimens", n.path, err)
		}
	}
	uid, hasUID := in.GetUID()
	gid, hasGID := in.GetGID()
	if hasUID || hasGID {
		u, g := -1, -1
		if hasUID {
			u = int(uid)
		}
		if hasGID {
			g = int(gid)
		}
		if err := os.Lchown(backing, u, g); err != nil {
			return n.errno("chown", n.path, err)
		}
	}

	return n.Getattr(ctx, fh, out)
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return n.errno("unlink", n.child(name), syscall.Unlink(n.dbfs.Backing(n.child(name))))
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return n.errno("rmdir", n.child(name), syscall.Rmdir(n.dbfs.Backing(n.child(name))))
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := n.child(name)
	if err := os.Mkdir(n.dbfs.Backing(childPath), os.FileMode(mode)); err != nil {
		return nil, n.errno("mkdir", childPath, err)
	}
	return n.Lookup(ctx, name, out)
}

func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	np, ok := newParent.(*Node)
	if !ok {
		return syscall.EXDEV
	}
	oldBacking := n.dbfs.Backing(n.child(name))
	newBacking := n.dbfs.Backing(np.child(newName))
	return n.errno("rename", n.child(name), os.Rename(oldBacking, newBacking))
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	childPath := n.child(name)
	file, err := os.OpenFile(n.dbfs.Backing(childPath), int(flags)|os.O_CREATE, os.FileMode(mode))
	if err != nil {
		return nil, nil, 0, n.errno("create", childPath, err)
	}

	inode, errno := n.Lookup(ctx, name, out)
	if errno != 0 {
		file.Close()
		return nil, nil, 0, errno
	}
	handle := &Handle{dbfs: n.dbfs, path: childPath, file: file}
	return inode, handle, fuse.FOPEN_DIRECT_IO, 0
}

func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var st syscall.Statfs_t
	if err := syscall.Statfs(n.dbfs.Backing(n.path), &st); err != nil {
		return n.errno("statfs", n.path, err)
	}
	out.FromStatfsT(&st)
	return 0
}

func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := os.Readlink(n.dbfs.Backing(n.path))
	if err != nil {
		return nil, n.errno("readlink", n.path, err)
	}
	return []byte(target), 0
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if err := os.Symlink(target, n.dbfs.Backing(n.child(name))); err != nil {
		return nil, n.errno("symlink", n.child(name), err)
	}
	return n.Lookup(ctx, name, out)
}

func (n *Node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	tn, ok := target.(*Node)
	if !ok {
		return nil, syscall.EXDEV
	}
	if err := os.Link(n.dbfs.Backing(tn.path), n.dbfs.Backing(n.child(name))); err != nil {
		return nil, n.errno("link", n.child(name), err)
	}
	return n.Lookup(ctx, name, out)
}

func (n *Node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if err := unix.Mknod(n.dbfs.Backing(n.child(name)), mode, int(dev)); err != nil {
		return nil, n.errno("mknod", n.child(name), err)
	}
	return n.Lookup(ctx, name, out)
}

func (n *Node) Access(ctx context.Context, mask uint32) syscall.Errno {
	return n.errno("access", n.path, unix.Access(n.dbfs.Backing(n.path), mask))
}

func (n *Node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	sz, err := unix.Lgetxattr(n.dbfs.Backing(n.path), attr, dest)
	if err != nil {
		return 0, n.errno("getxattr", n.path, err)
	}
	return uint32(sz), 0
}

func (n *Node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return n.errno("setxattr", n.path, unix.Lsetxattr(n.dbfs.Backing(n.path), attr, data, int(flags)))
}

func (n *Node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	sz, err := unix.Llistxattr(n.dbfs.Backing(n.path), dest)
	if err != nil {
		return 0, n.errno("listxattr", n.path, err)
	}
	return uint32(sz), 0
}

func (n *Node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return n.errno("removexattr", n.path, unix.Lremovexattr(n.dbfs.Backing(n.path), attr))
}

// Handle is the per-open state: the backing descriptor and the virtual
// path it was opened for. The descriptor is owned by the handle and
// closed exactly once, on release.
type Handle struct {
	dbfs *DBFS
	path string
	file *os.File
}

var _ = (fs.FileReader)((*Handle)(nil))
var _ = (fs.FileWriter)((*Handle)(nil))
var _ = (fs.FileFlusher)((*Handle)(nil))
var _ = (fs.FileReleaser)((*Handle)(nil))
var _ = (fs.FileFsyncer)((*Handle)(nil))
var _ = (fs.FileAllocater)((*Handle)(nil))

func (h *Handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	start := time.Now()
	n, err := h.file.ReadAt(dest, off)
	if err != nil && err != io.EOF {
		h.dbfs.recordOp("read", start, false)
		h.dbfs.logger.Error("operation failed", "op", "read", "path", h.path, "error", err)
		return nil, fs.ToErrno(err)
	}
	h.dbfs.recordOp("read", start, true)
	return fuse.ReadResultData(dest[:n]), 0
}

// Write passes through to the backing file for plain paths and rejects
// generated targets, which are read only projections.
func (h *Handle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	start := time.Now()
	if !h.dbfs.WriteAllowed(h.path) {
		h.dbfs.recordOp("write", start, false)
		return 0, syscall.EPERM
	}
	n, err := h.file.WriteAt(data, off)
	if err != nil {
		h.dbfs.recordOp("write", start, false)
		h.dbfs.logger.Error("operation failed", "op", "write", "path", h.path, "error", err)
		return 0, fs.ToErrno(err)
	}
	h.dbfs.recordOp("write", start, true)
	return uint32(n), 0
}

func (h *Handle) Flush(ctx context.Context) syscall.Errno {
	return 0
}

func (h *Handle) Release(ctx context.Context) syscall.Errno {
	start := time.Now()
	h.dbfs.ReleaseFile(h.path, h.file)
	h.file = nil
	h.dbfs.recordOp("release", start, true)
	return 0
}

func (h *Handle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	if h.file == nil {
		return syscall.EBADF
	}
	if err := h.file.Sync(); err != nil {
		h.dbfs.logger.Error("operation failed", "op", "fsync", "path", h.path, "error", err)
		return fs.ToErrno(err)
	}
	return 0
}

func (h *Handle) Allocate(ctx context.Context, off uint64, size uint64, mode uint32) syscall.Errno {
	if h.file == nil {
		return syscall.EBADF
	}
	if !h.dbfs.WriteAllowed(h.path) {
		return syscall.EPERM
	}
	if err := unix.Fallocate(int(h.file.Fd()), mode, int64(off), int64(size)); err != nil {
		h.dbfs.logger.Error("operation failed", "op", "fallocate", "path", h.path, "error", err)
		return fs.ToErrno(err)
	}
	return 0
}
