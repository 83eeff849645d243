package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidName   = errors.New("invalid target name")
	ErrAbsoluteName  = errors.New("target name must be relative")
	ErrTraversal     = errors.New("path traversal detected")
	ErrProtectedPath = errors.New("protected path")
)

// Validator enforces the safety contract for every cleanup target:
// a target name may only ever resolve to a path strictly below Root.
type Validator struct {
	Root           string
	ProtectedPaths []string
}

// NewValidator creates a validator for root with optional additional protected paths
func NewValidator(root string, extraProtected []string) *Validator {
	cleaned, err := NormalizePath(root)
	if err != nil {
		cleaned = filepath.Clean(root)
	}
	return &Validator{
		Root:           cleaned,
		ProtectedPaths: defaultProtected(extraProtected),
	}
}

// Resolve joins name onto Root and returns the candidate path.
// Returns typed error on safety violation. Names may only resolve strictly
// below Root, so a Root that is itself a protected system path rejects every
// name while a project living somewhere under /usr or /etc is accepted.
func (v *Validator) Resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrInvalidName
	}

	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrAbsoluteName, name)
	}

	if DetectTraversal(name) {
		return "", fmt.Errorf("%w: %s", ErrTraversal, name)
	}

	if IsProtectedRoot(v.Root, v.ProtectedPaths) {
		return "", fmt.Errorf("%w: %s", ErrProtectedPath, v.Root)
	}

	p := filepath.Join(v.Root, name)
	if p == v.Root || !hasPathPrefix(p, v.Root) {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, name)
	}

	return p, nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidName
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidName
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	parts := strings.Split(filepath.ToSlash(raw), "/")
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsProtectedRoot reports whether root is "/" or exactly one of the
// protected system paths. Directories below a protected path are not
// protected roots.
func IsProtectedRoot(root string, protected []string) bool {
	r := filepath.Clean(root)

	// Hard block: "/" exact
	if r == string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		if r == filepath.Clean(prot) {
			return true
		}
	}
	return false
}

// hasPathPrefix checks if path has the given prefix
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return path == prefix
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
	}
	return append(base, extra...)
}
