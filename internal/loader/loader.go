// Package loader hands resolved artifacts to the process that runs them.
//
// Resolution only produces paths. A Host decides what appending a search path
// means, so the same resolved set can feed a launcher command line, an
// embedded runtime, or a test double.
package loader

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Host is the capability a code-loading runtime exposes to the resolver.
type Host interface {
	AppendSearchPath(path string) error
	// ResolveSymbol reports which search path entry provides name.
	ResolveSymbol(name string) (string, bool)
}

// Load appends every path to host in order and reports all failures together.
func Load(host Host, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := host.AppendSearchPath(p); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Classpath is a Host that records search paths and renders them as an
// OS path list.
type Classpath struct {
	mu      sync.RWMutex
	entries []string
	seen    sets.Set[string]
}

var _ Host = (*Classpath)(nil)

func NewClasspath() *Classpath {
	return &Classpath{seen: sets.New[string]()}
}

// AppendSearchPath adds an existing file or directory. Repeated paths are ignored.
func (c *Classpath) AppendSearchPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("search path %q: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("search path %q: %w", path, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen.Has(abs) {
		return nil
	}
	c.seen.Insert(abs)
	c.entries = append(c.entries, abs)
	return nil
}

// ResolveSymbol finds the first entry containing the compiled unit for a
// dotted name such as "org.example.Widget".
func (c *Classpath) ResolveSymbol(name string) (string, bool) {
	entry := strings.ReplaceAll(name, ".", "/") + ".class"
	for _, p := range c.Entries() {
		if ok, _ := contains(p, entry); ok {
			return p, true
		}
	}
	return "", false
}

// Resource returns the bytes of the first entry named name across the search path.
func (c *Classpath) Resource(name string) ([]byte, bool, error) {
	name = strings.TrimPrefix(name, "/")
	for _, p := range c.Entries() {
		data, err := read(p, name)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}
	return nil, false, nil
}

// Entries returns the search path in insertion order.
func (c *Classpath) Entries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.entries...)
}

func (c *Classpath) String() string {
	return strings.Join(c.Entries(), string(os.PathListSeparator))
}

func contains(path, name string) (bool, error) {
	_, err := read(path, name)
	if err != nil {
		return false, err
	}
	return true, nil
}

func read(path, name string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return os.ReadFile(filepath.Join(path, filepath.FromSlash(name)))
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()
	f, err := zr.Open(name)
	if err != nil {
		return nil, os.ErrNotExist
	}
	defer f.Close()
	return io.ReadAll(f)
}
