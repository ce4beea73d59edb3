//go:build cgofuse
// +build cgofuse

package fuse

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/winfsp/cgofuse/fuse"
	"golang.org/x/sys/unix"
)

// invalidHandle marks callbacks invoked without an open file handle.
const invalidHandle = ^uint64(0)

// session is the per-open state: the backing descriptor, the virtual
// path it belongs to, and the open flags. The descriptor is owned by
// the session and closed exactly once, on release.
type session struct {
	path  string
	flags int
	file  *os.File
}

// PathFS is the path-based frontend. Every callback translates its
// virtual path through the shared core and operates on the backing
// store.
type PathFS struct {
	fuse.FileSystemBase
	dbfs *DBFS

	mu       sync.Mutex
	sessions map[uint64]*session
	nextFH   uint64
}

func NewPathFS(dbfs *DBFS) *PathFS {
	return &PathFS{
		dbfs:     dbfs,
		sessions: make(map[uint64]*session),
		nextFH:   1,
	}
}

func toErrc(err error) int {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return -int(errno)
	}
	return -fuse.EIO
}

// errc translates a failure to a negated errno and logs it. Getattr
// bypasses this; the kernel stats paths constantly and those misses
// are routine.
func (p *PathFS) errc(op, virtual string, err error) int {
	if err == nil {
		return 0
	}
	p.dbfs.logger.Error("operation failed", "op", op, "path", virtual, "error", err)
	return toErrc(err)
}

func (p *PathFS) session(fh uint64) *session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[fh]
}

// fileFor returns the backing file for a callback. When the kernel
// supplied a handle its descriptor is used; otherwise a fresh
// descriptor is opened with the caller's explicit flags and the
// returned cleanup closes it. The flags always come from the caller,
// never from per-open state that may be absent.
func (p *PathFS) fileFor(op, virtual string, fh uint64, flags int) (*os.File, func(), int) {
	if fh != invalidHandle {
		if s := p.session(fh); s != nil {
			return s.file, func() {}, 0
		}
	}
	file, err := os.OpenFile(p.dbfs.Backing(virtual), flags, 0)
	if err != nil {
		return nil, nil, p.errc(op, virtual, err)
	}
	return file, func() { file.Close() }, 0
}

// Getattr stats the backing path. Failures are routine kernel probing
// and are not logged.
func (p *PathFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	var st syscall.Stat_t
	if err := syscall.Lstat(p.dbfs.Backing(path), &st); err != nil {
		return toErrc(err)
	}
	fillStat(stat, &st)
	return 0
}

func (p *PathFS) Access(path string, mask uint32) int {
	return p.errc("access", path, unix.Access(p.dbfs.Backing(path), mask))
}

func (p *PathFS) Readlink(path string) (int, string) {
	target, err := os.Readlink(p.dbfs.Backing(path))
	if err != nil {
		return p.errc("readlink", path, err), ""
	}
	return 0, target
}

func (p *PathFS) Mknod(path string, mode uint32, dev uint64) int {
	return p.errc("mknod", path, unix.Mknod(p.dbfs.Backing(path), mode, int(dev)))
}

func (p *PathFS) Mkdir(path string, mode uint32) int {
	return p.errc("mkdir", path, os.Mkdir(p.dbfs.Backing(path), os.FileMode(mode)))
}

func (p *PathFS) Unlink(path string) int {
	return p.errc("unlink", path, syscall.Unlink(p.dbfs.Backing(path)))
}

func (p *PathFS) Rmdir(path string) int {
	return p.errc("rmdir", path, syscall.Rmdir(p.dbfs.Backing(path)))
}

func (p *PathFS) Symlink(target string, newpath string) int {
	return p.errc("symlink", newpath, os.Symlink(target, p.dbfs.Backing(newpath)))
}

func (p *PathFS) Rename(oldpath string, newpath string) int {
	return p.errc("rename", oldpath, os.Rename(p.dbfs.Backing(oldpath), p.dbfs.Backing(newpath)))
}

func (p *PathFS) Link(oldpath string, newpath string) int {
	return p.errc("link", newpath, os.Link(p.dbfs.Backing(oldpath), p.dbfs.Backing(newpath)))
}

func (p *PathFS) Chmod(path string, mode uint32) int {
	return p.errc("chmod", path, os.Chmod(p.dbfs.Backing(path), os.FileMode(mode)))
}

func (p *PathFS) Chown(path string, uid uint32, gid uint32) int {
	return p.errc("chown", path, os.Lchown(p.dbfs.Backing(path), int(uid), int(gid)))
}

// Utimens updates timestamps without following symlinks.
func (p *PathFS) Utimens(path string, tmsp []fuse.Timespec) int {
	var ts []unix.Timespec
	if tmsp != nil {
		ts = []unix.Timespec{
			{Sec: tmsp[0].Sec, Nsec: tmsp[0].Nsec},
			{Sec: tmsp[1].Sec, Nsec: tmsp[1].Nsec},
		}
	}
	return p.errc("utimens", path, unix.UtimesNanoAt(unix.AT_FDCWD, p.dbfs.Backing(path), ts, unix.AT_SYMLINK_NOFOLLOW))
}

func (p *PathFS) Truncate(path string, size int64, fh uint64) int {
	if !p.dbfs.WriteAllowed(path) {
		return -fuse.EPERM
	}
	if s := p.session(fh); s != nil {
		return p.errc("truncate", path, s.file.Truncate(size))
	}
	return p.errc("truncate", path, os.Truncate(p.dbfs.Backing(path), size))
}

func (p *PathFS) Statfs(path string, stat *fuse.Statfs_t) int {
	var st unix.Statfs_t
	if err := unix.Statfs(p.dbfs.Backing(path), &st); err != nil {
		return p.errc("statfs", path, err)
	}
	stat.Bsize = uint64(st.Bsize)
	stat.Frsize = uint64(st.Frsize)
	stat.Blocks = st.Blocks
	stat.Bfree = st.Bfree
	stat.Bavail = st.Bavail
	stat.Files = st.Files
	stat.Ffree = st.Ffree
	stat.Favail = st.Ffree
	stat.Namemax = uint64(st.Namelen)
	return 0
}

func (p *PathFS) Setxattr(path string, name string, value []byte, flags int) int {
	return p.errc("setxattr", path, unix.Lsetxattr(p.dbfs.Backing(path), name, value, flags))
}

func (p *PathFS) Getxattr(path string, name string) (int, []byte) {
	backing := p.dbfs.Backing(path)
	size, err := unix.Lgetxattr(backing, name, nil)
	if err != nil {
		return p.errc("getxattr", path, err), nil
	}
	buf := make([]byte, size)
	n, err := unix.Lgetxattr(backing, name, buf)
	if err != nil {
		return p.errc("getxattr", path, err), nil
	}
	return 0, buf[:n]
}

func (p *PathFS) Removexattr(path string, name string) int {
	return p.errc("removexattr", path, unix.Lremovexattr(p.dbfs.Backing(path), name))
}

func (p *PathFS) Listxattr(path string, fill func(name string) bool) int {
	backing := p.dbfs.Backing(path)
	size, err := unix.Llistxattr(backing, nil)
	if err != nil {
		return p.errc("listxattr", path, err)
	}
	buf := make([]byte, size)
	n, err := unix.Llistxattr(backing, buf)
	if err != nil {
		return p.errc("listxattr", path, err)
	}
	start := 0
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			if !fill(string(buf[start:i])) {
				break
			}
			start = i + 1
		}
	}
	return 0
}

// Open runs the materialization hook, then opens the backing file with
// the caller's flags and registers the session.
func (p *PathFS) Open(path string, flags int) (int, uint64) {
	start := time.Now()
	file, err := p.dbfs.OpenFile(context.Background(), path, flags)
	if err != nil {
		p.dbfs.recordOp("open", start, false)
		return p.errc("open", path, err), invalidHandle
	}

	p.mu.Lock()
	fh := p.nextFH
	p.nextFH++
	p.sessions[fh] = &session{path: path, flags: flags, file: file}
	p.mu.Unlock()

	p.dbfs.recordOp("open", start, true)
	return 0, fh
}

func (p *PathFS) Create(path string, flags int, mode uint32) (int, uint64) {
	file, err := os.OpenFile(p.dbfs.Backing(path), flags|os.O_CREATE, os.FileMode(mode))
	if err != nil {
		return p.errc("create", path, err), invalidHandle
	}

	p.mu.Lock()
	fh := p.nextFH
	p.nextFH++
	p.sessions[fh] = &session{path: path, flags: flags, file: file}
	p.mu.Unlock()

	return 0, fh
}

func (p *PathFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	start := time.Now()
	file, done, errc := p.fileFor("read", path, fh, os.O_RDONLY)
	if errc != 0 {
		p.dbfs.recordOp("read", start, false)
		return errc
	}
	defer done()

	n, err := file.ReadAt(buff, ofst)
	if err != nil && err != io.EOF {
		p.dbfs.recordOp("read", start, false)
		return p.errc("read", path, err)
	}
	p.dbfs.recordOp("read", start, true)
	return n
}

// Write passes through for plain paths and rejects generated targets,
// which are read only projections.
func (p *PathFS) Write(path string, buff []byte, ofst int64, fh uint64) int {
	start := time.Now()
	if !p.dbfs.WriteAllowed(path) {
		p.dbfs.recordOp("write", start, false)
		return -fuse.EPERM
	}

	file, done, errc := p.fileFor("write", path, fh, os.O_WRONLY)
	if errc != 0 {
		p.dbfs.recordOp("write", start, false)
		return errc
	}
	defer done()

	n, err := file.WriteAt(buff, ofst)
	if err != nil {
		p.dbfs.recordOp("write", start, false)
		return p.errc("write", path, err)
	}
	p.dbfs.recordOp("write", start, true)
	return n
}

func (p *PathFS) Flush(path string, fh uint64) int {
	return 0
}

func (p *PathFS) Fsync(path string, datasync bool, fh uint64) int {
	s := p.session(fh)
	if s == nil {
		return -fuse.EBADF
	}
	return p.errc("fsync", path, s.file.Sync())
}

// Release destroys the session and runs the release hook, which
// truncates generated view files back to empty.
func (p *PathFS) Release(path string, fh uint64) int {
	start := time.Now()

	p.mu.Lock()
	s := p.sessions[fh]
	delete(p.sessions, fh)
	p.mu.Unlock()

	if s == nil {
		p.dbfs.recordOp("release", start, false)
		return -fuse.EBADF
	}
	p.dbfs.ReleaseFile(s.path, s.file)
	p.dbfs.recordOp("release", start, true)
	return 0
}

// Opendir rebuilds custom query directories before their listing.
func (p *PathFS) Opendir(path string) (int, uint64) {
	start := time.Now()
	p.dbfs.OpenDir(context.Background(), path)
	p.dbfs.recordOp("opendir", start, true)
	return 0, 0
}

// Readdir lists the backing directory. Entry modes come from the
// directory entry type alone, without a per-entry stat.
func (p *PathFS) Readdir(path string,
	fill func(name string, stat *fuse.Stat_t, ofst int64) bool,
	ofst int64, fh uint64) int {
	start := time.Now()

	fill(".", nil, 0)
	fill("..", nil, 0)

	entries, err := os.ReadDir(p.dbfs.Backing(path))
	if err != nil {
		p.dbfs.recordOp("readdir", start, false)
		return p.errc("readdir", path, err)
	}
	for _, e := range entries {
		stat := &fuse.Stat_t{}
		if e.IsDir() {
			stat.Mode = fuse.S_IFDIR | 0755
		} else {
			stat.Mode = fuse.S_IFREG | 0644
		}
		if !fill(e.Name(), stat, 0) {
			break
		}
	}
	p.dbfs.recordOp("readdir", start, true)
	return 0
}

func (p *PathFS) Releasedir(path string, fh uint64) int {
	return 0
}

func fillStat(stat *fuse.Stat_t, st *syscall.Stat_t) {
	stat.Dev = st.Dev
	stat.Ino = st.Ino
	stat.Mode = st.Mode
	stat.Nlink = uint32(st.Nlink)
	stat.Uid = st.Uid
	stat.Gid = st.Gid
	stat.Rdev = st.Rdev
	stat.Size = st.Size
	stat.Atim = fuse.Timespec{Sec: st.Atim.Sec, Nsec: st.Atim.Nsec}
	stat.Mtim = fuse.Timespec{Sec: st.Mtim.Sec, Nsec: st.Mtim.Nsec}
	stat.Ctim = fuse.Timespec{Sec: st.Ctim.Sec, Nsec: st.Ctim.Nsec}
	stat.Blksize = st.Blksize
	stat.Blocks = st.Blocks
}
