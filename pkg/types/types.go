package types

// FileFormat selects the wire shape of a query response.
type FileFormat int

const (
	// FormatTSV returns rows as tab-separated values with a header line.
	FormatTSV FileFormat = iota
	// FormatJSON returns the server-side FOR JSON document.
	FormatJSON
)

func (f FileFormat) String() string {
	switch f {
	case FormatTSV:
		return "tsv"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// PathClass is the syntactic classification of a virtual path.
type PathClass int

const (
	// ClassPlain paths are passed straight through to the backing store.
	ClassPlain PathClass = iota
	// ClassGeneratedView paths name a per-server system view file whose
	// content is materialized at open time.
	ClassGeneratedView
	// ClassCustomQueryDir paths name a per-server customQueries directory.
	ClassCustomQueryDir
	// ClassCustomQueryFile paths name an output file inside a
	// customQueries directory.
	ClassCustomQueryFile
)

func (c PathClass) String() string {
	switch c {
	case ClassPlain:
		return "plain"
	case ClassGeneratedView:
		return "generated_view"
	case ClassCustomQueryDir:
		return "custom_query_dir"
	case ClassCustomQueryFile:
		return "custom_query_file"
	default:
		return "unknown"
	}
}

// ServerEntry holds the connection details for one registered server.
// Entries are immutable after registry construction; concurrent reads
// need no synchronization.
type ServerEntry struct {
	Name string `yaml:"name"`

	Hostname string `yaml:"hostname"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Version is the server's major version. Servers at version 16 or
	// later also expose .json twins of every view file.
	Version int `yaml:"version"`

	// CustomQueriesPath is the optional local directory holding
	// user-supplied query definition files. Empty means the server has
	// no customQueries directory.
	CustomQueriesPath string `yaml:"custom_queries_path"`
}

// SupportsJSON reports whether the server can render FOR JSON responses.
func (s *ServerEntry) SupportsJSON() bool {
	return s.Version >= 16
}
