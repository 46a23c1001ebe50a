// Package namespace discovers matrix directories and runs them one after
// another.
package namespace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chis/imagesmith/internal/matrix"
)

// DefaultRoot is the directory scanned for namespaces.
const DefaultRoot = "images"

// Namespace is one directory holding a build matrix. Its name becomes the
// image repository name.
type Namespace struct {
	Name       string
	Dir        string
	MatrixPath string
}

// NotFoundError is returned when a requested namespace does not exist.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("namespace %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Discover returns every direct subdirectory of root that contains a matrix
// file, sorted by name. Hidden directories are ignored.
func Discover(root string) ([]Namespace, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read namespace root %s: %w", root, err)
	}

	var namespaces []Namespace
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		path, ok := matrix.FindFile(dir)
		if !ok {
			continue
		}
		namespaces = append(namespaces, Namespace{Name: entry.Name(), Dir: dir, MatrixPath: path})
	}

	sort.Slice(namespaces, func(i, j int) bool {
		return namespaces[i].Name < namespaces[j].Name
	})
	return namespaces, nil
}

// Find returns the namespace called name.
func Find(namespaces []Namespace, name string) (Namespace, error) {
	for _, ns := range namespaces {
		if ns.Name == name {
			return ns, nil
		}
	}
	return Namespace{}, &NotFoundError{Name: name, Available: Names(namespaces)}
}

// Names returns the namespace names in order.
func Names(namespaces []Namespace) []string {
	names := make([]string, len(namespaces))
	for i, ns := range namespaces {
		names[i] = ns.Name
	}
	return names
}
