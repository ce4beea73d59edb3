package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Rotator is an io.Writer that rotates the log file once it grows past
// a size limit. Rotated files get a timestamp suffix, are gzipped, and
// the oldest backups are dropped past the retention cap. A long-lived
// mount writes logs indefinitely, so the file has to be bounded.
type Rotator struct {
	mu sync.Mutex

	path       string
	maxBytes   int64
	maxBackups int

	file *os.File
	size int64
}

// NewRotator opens path for appending. maxMB bounds the live file
// size; maxBackups bounds how many rotated files are kept. Zero for
// either disables that bound.
func NewRotator(path string, maxMB, maxBackups int) (*Rotator, error) {
	r := &Rotator{
		path:       path,
		maxBytes:   int64(maxMB) * 1024 * 1024,
		maxBackups: maxBackups,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxBytes > 0 && r.size+int64(len(p)) >= r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Rotator) open() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *Rotator) rotate() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return err
		}
		r.file = nil
	}

	backup := r.backupName(time.Now().UTC())
	if err := os.Rename(r.path, backup); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := compress(backup); err != nil {
		fmt.Fprintf(os.Stderr, "log backup not compressed: %v\n", err)
	}
	r.prune()

	return r.open()
}

func (r *Rotator) backupName(ts time.Time) string {
	ext := filepath.Ext(r.path)
	base := strings.TrimSuffix(r.path, ext)
	return fmt.Sprintf("%s-%s%s", base, ts.Format("2006-01-02T15-04-05"), ext)
}

// prune drops the oldest backups past the retention cap.
func (r *Rotator) prune() {
	if r.maxBackups <= 0 {
		return
	}
	backups := r.backups()
	if len(backups) <= r.maxBackups {
		return
	}
	sort.Strings(backups)
	for _, old := range backups[:len(backups)-r.maxBackups] {
		if err := os.Remove(old); err != nil {
			fmt.Fprintf(os.Stderr, "old log backup not removed: %v\n", err)
		}
	}
}

func (r *Rotator) backups() []string {
	dir := filepath.Dir(r.path)
	name := filepath.Base(r.path)
	ext := filepath.Ext(name)
	prefix := strings.TrimSuffix(name, ext) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if n == name || !strings.HasPrefix(n, prefix) {
			continue
		}
		if strings.HasSuffix(n, ext) || strings.HasSuffix(n, ext+".gz") {
			out = append(out, filepath.Join(dir, n))
		}
	}
	return out
}

func compress(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer dst.Close()

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
