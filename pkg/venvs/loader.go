// Package venvs reads the virtual-environment declarations from
// pyproject.toml and aggregates requirement files per environment.
//
// Each [[tool.venvs]] table names a venv base folder and the requirement
// file stems (no suffix) that feed it:
//
//	[[tool.venvs]]
//	venv_base_path = ".venv"
//	reqs = ["requirements/prod", "requirements/pins.shared"]
//
// The declarations are decoded once, validated once, and served through
// typed records; raw TOML maps never cross the package boundary.
package venvs

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/reqlock/reqlock/pkg/errors"
	"github.com/reqlock/reqlock/pkg/reqfile"
)

// Venv is one [[tool.venvs]] table.
type Venv struct {
	// Path is the venv base folder, relative to the project base.
	Path string `toml:"venv_base_path"`

	// Reqs holds requirement file stems relative to the project base,
	// without a requirements suffix.
	Reqs []string `toml:"reqs"`
}

type pyproject struct {
	Tool struct {
		Venvs   []Venv `toml:"venvs"`
		Reqlock struct {
			// Dependencies maps a generated pyproject.toml section id to
			// the requirement file stem whose lock pins fill it.
			Dependencies map[string]string `toml:"dependencies"`
		} `toml:"reqlock"`
	} `toml:"tool"`
}

// Loader locates pyproject.toml and holds the decoded, validated
// [[tool.venvs]] declarations.
type Loader struct {
	// ProjectBase is the directory containing pyproject.toml.
	ProjectBase string

	// PyprojectPath is the absolute path of the decoded file.
	PyprojectPath string

	// Venvs holds the declarations in file order.
	Venvs []Venv

	// Dependencies maps [tool.reqlock.dependencies] section ids to
	// requirement file stems, project-base relative, without a suffix.
	Dependencies map[string]string
}

// NewLoader walks upward from start (a directory or a pyproject.toml
// path) until it finds pyproject.toml, decodes the [[tool.venvs]]
// section, and validates it.
func NewLoader(start string) (*Loader, error) {
	pyPath, err := findPyproject(start)
	if err != nil {
		return nil, err
	}

	var doc pyproject
	if _, err := toml.DecodeFile(pyPath, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s", pyPath)
	}

	l := &Loader{
		ProjectBase:   filepath.Dir(pyPath),
		PyprojectPath: pyPath,
		Venvs:         doc.Tool.Venvs,
		Dependencies:  doc.Tool.Reqlock.Dependencies,
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func findPyproject(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", start)
	}
	if filepath.Base(abs) == "pyproject.toml" {
		abs = filepath.Dir(abs)
	}

	for dir := abs; ; {
		candidate := filepath.Join(dir, "pyproject.toml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.ErrCodeInvalidInput,
				"no pyproject.toml found in %s or any parent", start)
		}
		dir = parent
	}
}

// validate enforces the declaration shape once, at load time: venv
// paths are project-relative and requirement stems carry no suffix.
func (l *Loader) validate() error {
	if len(l.Venvs) == 0 {
		return errors.New(errors.ErrCodeVenvNotFound,
			"no [[tool.venvs]] tables in %s", l.PyprojectPath)
	}

	for _, v := range l.Venvs {
		if v.Path == "" {
			return errors.New(errors.ErrCodeInvalidInput,
				"[[tool.venvs]] table missing venv_base_path in %s", l.PyprojectPath)
		}
		if err := errors.ValidateRelPath(filepath.ToSlash(v.Path)); err != nil {
			return err
		}
		if len(v.Reqs) == 0 {
			return errors.New(errors.ErrCodeInvalidInput,
				"venv %s declares no reqs", v.Path)
		}
		for _, stem := range v.Reqs {
			if err := errors.ValidateRelPath(filepath.ToSlash(stem)); err != nil {
				return err
			}
			if ext := path.Ext(filepath.ToSlash(stem)); reqfile.ValidSuffix(ext) {
				return errors.New(errors.ErrCodeInvalidInput,
					"venv %s req %q must be a stem without the %s suffix", v.Path, stem, ext)
			}
		}
	}

	for id, stem := range l.Dependencies {
		if id == "" || stem == "" {
			return errors.New(errors.ErrCodeInvalidInput,
				"[tool.reqlock.dependencies] entries need both an id and a stem in %s", l.PyprojectPath)
		}
		if err := errors.ValidateRelPath(filepath.ToSlash(stem)); err != nil {
			return err
		}
		if ext := path.Ext(filepath.ToSlash(stem)); reqfile.ValidSuffix(ext) {
			return errors.New(errors.ErrCodeInvalidInput,
				"dependency section %q stem %q must not carry the %s suffix", id, stem, ext)
		}
	}
	return nil
}

// DependencyGroups lists the [tool.reqlock.dependencies] section ids in
// sorted order.
func (l *Loader) DependencyGroups() []string {
	out := make([]string, 0, len(l.Dependencies))
	for id := range l.Dependencies {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// VenvRelpaths lists the declared venv paths in file order.
func (l *Loader) VenvRelpaths() []string {
	out := make([]string, len(l.Venvs))
	for i, v := range l.Venvs {
		out[i] = normalizeRel(v.Path)
	}
	return out
}

// Relpath normalizes key, relative or absolute, back to the declared
// venv relative path.
func (l *Loader) Relpath(key string) (string, error) {
	rel := normalizeRel(key)
	if filepath.IsAbs(key) {
		r, err := filepath.Rel(l.ProjectBase, key)
		if err != nil || strings.HasPrefix(r, "..") {
			return "", errors.New(errors.ErrCodeVenvNotFound,
				"venv %s is outside the project base %s", key, l.ProjectBase)
		}
		rel = normalizeRel(r)
	}

	for _, v := range l.Venvs {
		if normalizeRel(v.Path) == rel {
			return rel, nil
		}
	}
	return "", errors.New(errors.ErrCodeVenvNotFound,
		"venv %q is not declared in %s", key, l.PyprojectPath)
}

// Reqs returns the requirement records for one declared venv.
func (l *Loader) Reqs(venvKey string) ([]VenvReq, error) {
	rel, err := l.Relpath(venvKey)
	if err != nil {
		return nil, err
	}

	for _, v := range l.Venvs {
		if normalizeRel(v.Path) != rel {
			continue
		}
		out := make([]VenvReq, len(v.Reqs))
		for i, stem := range v.Reqs {
			out[i] = VenvReq{
				ProjectBase: l.ProjectBase,
				VenvRel:     rel,
				ReqRel:      normalizeRel(stem),
			}
		}
		return out, nil
	}
	return nil, errors.New(errors.ErrCodeVenvNotFound, "venv %q is not declared", venvKey)
}

func normalizeRel(p string) string {
	return strings.TrimSuffix(path.Clean(filepath.ToSlash(p)), "/")
}

// VenvReq is one requirement file stem declared for one venv.
type VenvReq struct {
	// ProjectBase is the directory containing pyproject.toml.
	ProjectBase string

	// VenvRel is the venv base folder, project-base relative.
	VenvRel string

	// ReqRel is the requirement file stem, project-base relative,
	// without a suffix.
	ReqRel string
}

// Abspath joins the stem with a requirements suffix.
func (r VenvReq) Abspath(suffix string) string {
	return filepath.Join(r.ProjectBase, filepath.FromSlash(r.ReqRel)) + suffix
}

// IsShared reports whether the stem feeds multiple venvs.
func (r VenvReq) IsShared() bool {
	return reqfile.IsShared(path.Base(r.ReqRel) + reqfile.SuffixIn)
}
