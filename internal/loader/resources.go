package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// Resource origins.
const (
	OriginIsolated       = "isolated"
	OriginInfrastructure = "infrastructure"
)

// Resource is a located resource. Origin tells which tier found it.
type Resource struct {
	Name   string
	Origin string
	Root   int
	fsys   fs.FS
}

// Open opens the resource.
func (r *Resource) Open() (fs.File, error) {
	return r.fsys.Open(r.Name)
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s:%d/%s", r.Origin, r.Root, r.Name)
}

// Resource finds name in the isolated roots, then in the infrastructure root.
func (l *Loader) Resource(name string) (*Resource, bool) {
	p, ok := cleanResourceName(name)
	if !ok {
		return nil, false
	}
	for i, root := range l.isolated {
		if exists(root, p) {
			return &Resource{Name: p, Origin: OriginIsolated, Root: i, fsys: root}, true
		}
	}
	if l.infrastructure != nil && exists(l.infrastructure, p) {
		return &Resource{Name: p, Origin: OriginInfrastructure, fsys: l.infrastructure}, true
	}
	return nil, false
}

// ResourceAsStream opens name with the same two-tier lookup as Resource.
func (l *Loader) ResourceAsStream(name string) (io.ReadCloser, error) {
	r, ok := l.Resource(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return r.Open()
}

// Resources returns every isolated match for name; only when there is none
// does it fall back to the infrastructure root.
func (l *Loader) Resources(name string) ([]*Resource, error) {
	p, ok := cleanResourceName(name)
	if !ok {
		return nil, nil
	}
	var out []*Resource
	for i, root := range l.isolated {
		ok, err := statFile(root, p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, &Resource{Name: p, Origin: OriginIsolated, Root: i, fsys: root})
		}
	}
	if len(out) > 0 || l.infrastructure == nil {
		return out, nil
	}
	ok, err := statFile(l.infrastructure, p)
	if err != nil {
		return nil, err
	}
	if ok {
		out = append(out, &Resource{Name: p, Origin: OriginInfrastructure, fsys: l.infrastructure})
	}
	return out, nil
}

func cleanResourceName(name string) (string, bool) {
	p := strings.TrimPrefix(name, "/")
	return p, p != "" && fs.ValidPath(p)
}

func exists(fsys fs.FS, p string) bool {
	ok, _ := statFile(fsys, p)
	return ok
}

func statFile(fsys fs.FS, p string) (bool, error) {
	_, err := fs.Stat(fsys, p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}
