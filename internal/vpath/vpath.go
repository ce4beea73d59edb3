// Package vpath maps virtual paths handed in by the kernel layer onto
// the backing store and classifies them. Everything here is pure string
// manipulation: no syscalls, no remote calls, stable for a given input.
package vpath

import (
	"path/filepath"
	"strings"

	"github.com/dbfs/dbfs/pkg/errors"
	"github.com/dbfs/dbfs/pkg/types"
)

// CustomQueryFolderName is the fixed name of the per-server directory
// holding custom query output files.
const CustomQueryFolderName = "customQueries"

// JSONSuffix marks a view file whose content is rendered as a JSON
// document instead of tab-separated values.
const JSONSuffix = ".json"

// Translator rewrites virtual paths under the backing store root.
type Translator struct {
	root string
}

// NewTranslator returns a translator anchored at the given backing
// store root directory.
func NewTranslator(root string) *Translator {
	return &Translator{root: root}
}

// Root returns the backing store root directory.
func (t *Translator) Root() string {
	return t.root
}

// Backing returns the backing store path for a virtual path. The result
// is a deterministic function of the input; two equal virtual paths
// always translate to equal backing paths.
func (t *Translator) Backing(virtual string) string {
	return filepath.Join(t.root, strings.TrimPrefix(virtual, "/"))
}

// Split breaks a virtual path into its non-empty segments.
func Split(virtual string) []string {
	trimmed := strings.Trim(virtual, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Classify returns the syntactic classification of a virtual path.
//
// Paths of the form <server>/customQueries classify as the custom query
// directory, <server>/customQueries/<name> as a custom query output
// file, and any other <server>/<name> as a generated view. Everything
// else is plain passthrough.
func Classify(virtual string) types.PathClass {
	segments := Split(virtual)
	switch {
	case len(segments) == 2 && segments[1] == CustomQueryFolderName:
		return types.ClassCustomQueryDir
	case len(segments) >= 3 && segments[1] == CustomQueryFolderName:
		return types.ClassCustomQueryFile
	case len(segments) == 2:
		return types.ClassGeneratedView
	default:
		return types.ClassPlain
	}
}

// ViewTarget extracts the server name, catalog object name, and output
// format from a generated view path. The object name has any .json
// suffix stripped; the suffix selects the JSON format.
func ViewTarget(virtual string) (server, object string, format types.FileFormat, err error) {
	segments := Split(virtual)
	if len(segments) != 2 {
		return "", "", types.FormatTSV, errors.Newf(errors.ErrCodePathInvalid,
			"view path %q needs exactly a server and a file segment", virtual)
	}

	server = segments[0]
	object = segments[1]
	format = types.FormatTSV
	if strings.HasSuffix(object, JSONSuffix) {
		object = strings.TrimSuffix(object, JSONSuffix)
		format = types.FormatJSON
	}
	return server, object, format, nil
}

// CustomQueryTarget extracts the server name and output file name from
// a custom query file path.
func CustomQueryTarget(virtual string) (server, file string, err error) {
	segments := Split(virtual)
	if len(segments) < 3 || segments[1] != CustomQueryFolderName {
		return "", "", errors.Newf(errors.ErrCodePathInvalid,
			"path %q is not inside a %s directory", virtual, CustomQueryFolderName)
	}
	return segments[0], segments[2], nil
}

// CustomQueryDirServer extracts the server name from a custom query
// directory path.
func CustomQueryDirServer(virtual string) (string, error) {
	segments := Split(virtual)
	if len(segments) < 2 || segments[1] != CustomQueryFolderName {
		return "", errors.Newf(errors.ErrCodePathInvalid,
			"path %q is not a %s directory", virtual, CustomQueryFolderName)
	}
	return segments[0], nil
}
