// Package fuse exposes the backing store as a mounted filesystem and
// hooks content generation into the open and listing paths.
//
// Two frontends share one core. The default frontend uses the go-fuse
// node API and talks to the kernel FUSE driver directly. Building with
// the cgofuse tag selects a path-based frontend on libfuse, whose
// callback surface maps 1:1 onto the classic FUSE operation table.
//
// The core decides, per virtual path, whether a callback passes
// through to the backing store or triggers generation first:
//
//	/<server>/<object>           view file, filled on open, emptied on release
//	/<server>/customQueries      rebuilt on opendir from the source directory
//	/<server>/customQueries/<f>  refreshed on open, read only
//
// Everything else passes through unchanged.
package fuse
