package venvs

import (
	"os"
	"path/filepath"

	"github.com/reqlock/reqlock/pkg/errors"
)

// Map is an ordered view over the declared venvs. Every accessor hands
// out a fresh slice, so callers can iterate as many times as they like
// without sharing a cursor.
type Map struct {
	loader *Loader
}

// NewMap wraps a loader and checks that every declared venv base folder
// actually exists.
func NewMap(l *Loader) (*Map, error) {
	for _, v := range l.Venvs {
		dir := filepath.Join(l.ProjectBase, filepath.FromSlash(v.Path))
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, errors.New(errors.ErrCodeVenvNotFound,
				"venv folder %s does not exist; create it", dir)
		}
	}
	return &Map{loader: l}, nil
}

// Len is the number of declared venvs.
func (m *Map) Len() int {
	return len(m.loader.Venvs)
}

// Contains reports whether key names a declared venv. The key may be
// relative or absolute.
func (m *Map) Contains(key string) bool {
	_, err := m.loader.Relpath(key)
	return err == nil
}

// VenvRelpaths lists the declared venv paths in file order.
func (m *Map) VenvRelpaths() []string {
	return m.loader.VenvRelpaths()
}

// Reqs returns the requirement records for one venv.
func (m *Map) Reqs(venvKey string) ([]VenvReq, error) {
	return m.loader.Reqs(venvKey)
}

// All returns every requirement record across every venv, in declaration
// order. The slice is fresh on every call.
func (m *Map) All() []VenvReq {
	var out []VenvReq
	for _, rel := range m.loader.VenvRelpaths() {
		reqs, err := m.loader.Reqs(rel)
		if err != nil {
			continue
		}
		out = append(out, reqs...)
	}
	return out
}

// Missing lists the requirement records whose file with the given
// suffix does not exist on disk.
func (m *Map) Missing(suffix string) []VenvReq {
	var out []VenvReq
	for _, req := range m.All() {
		if _, err := os.Stat(req.Abspath(suffix)); err != nil {
			out = append(out, req)
		}
	}
	return out
}
