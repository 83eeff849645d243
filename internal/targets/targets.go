package targets

// Kind distinguishes directory targets (removed recursively) from file
// targets (removed as a single entry).
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Target is a configured name slated for deletion, relative to the root.
type Target struct {
	Name string
	Kind Kind
}

// Compiled-in target lists.
var (
	defaultDirectories = []string{
		"vite-project",
		"BD TESTE",
	}

	defaultFiles = []string{
		"clean_db.js",
		"fix_database.js",
		"fix_db.js",
		"database.sqlite",
		"dummy.db",
	}
)

// Set is an immutable pair of ordered target lists.
// The zero value is an empty set.
type Set struct {
	directories []string
	files       []string
}

// New copies dirs and files so later changes by the caller are not observed.
func New(dirs, files []string) Set {
	return Set{
		directories: clone(dirs),
		files:       clone(files),
	}
}

// Default returns the compiled-in target table.
func Default() Set {
	return New(defaultDirectories, defaultFiles)
}

// Directories returns a copy of the directory names in processing order.
func (s Set) Directories() []string {
	return clone(s.directories)
}

// Files returns a copy of the file names in processing order.
func (s Set) Files() []string {
	return clone(s.files)
}

// All returns every target in processing order: directories first, then files.
func (s Set) All() []Target {
	out := make([]Target, 0, s.Len())
	for _, name := range s.directories {
		out = append(out, Target{Name: name, Kind: KindDirectory})
	}
	for _, name := range s.files {
		out = append(out, Target{Name: name, Kind: KindFile})
	}
	return out
}

func (s Set) Len() int {
	return len(s.directories) + len(s.files)
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
