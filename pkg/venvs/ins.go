package venvs

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/reqlock/reqlock/pkg/errors"
	"github.com/reqlock/reqlock/pkg/reqfile"
	"github.com/reqlock/reqlock/pkg/resolve"
)

// Ins aggregates the requirement files of one venv for one suffix
// class: every declared file plus everything transitively referenced,
// closed by the resolution loop.
type Ins struct {
	loader  *Loader
	logger  *log.Logger
	venvRel string
	coll    *resolve.Collection
}

// NewIns prepares an aggregator for the venv named by venvKey. Nothing
// is read from disk until Load.
func NewIns(loader *Loader, venvKey string, logger *log.Logger) (*Ins, error) {
	rel, err := loader.Relpath(venvKey)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Ins{
		loader:  loader,
		logger:  logger,
		venvRel: rel,
	}, nil
}

// VenvRel is the declared venv relative path.
func (i *Ins) VenvRel() string {
	return i.venvRel
}

// Load reads every declared requirement file with the given suffix and
// runs the resolution loop. A declared file that is absent or cannot be
// parsed surfaces as a missing-requirements failure.
func (i *Ins) Load(suffix string) error {
	reqs, err := i.loader.Reqs(i.venvRel)
	if err != nil {
		return err
	}

	coll := resolve.New(i.loader.ProjectBase, i.logger)
	for _, req := range reqs {
		if err := coll.Add(req.Abspath(suffix)); err != nil {
			return err
		}
	}
	if err := coll.Resolve(); err != nil {
		return err
	}

	i.coll = coll
	i.logger.Debug("loaded venv requirements", "venv", i.venvRel, "suffix", suffix, "files", coll.Len())
	return nil
}

// Collection exposes the resolved file set. Nil before Load.
func (i *Ins) Collection() *resolve.Collection {
	return i.coll
}

// Len is the number of files in the aggregate.
func (i *Ins) Len() int {
	if i.coll == nil {
		return 0
	}
	return i.coll.Len()
}

// Files returns the resolved files, ordered by depth then name. The
// slice is fresh on every call; iterating it never exhausts anything.
func (i *Ins) Files() []*reqfile.File {
	if i.coll == nil {
		return nil
	}
	return i.coll.Resolved()
}

// ContainsAbspath reports whether the aggregate holds the file.
func (i *Ins) ContainsAbspath(abspath string) bool {
	_, ok := i.GetByAbspath(abspath)
	return ok
}

// GetByAbspath returns the file with the given absolute path.
func (i *Ins) GetByAbspath(abspath string) (*reqfile.File, bool) {
	for _, f := range i.Files() {
		if f.Abspath == abspath {
			return f, true
		}
	}
	return nil, false
}

// ByPkg returns every pin of the normalized package name across the
// aggregate. A package no file mentions is a lookup failure; a package
// that is present with zero specifiers is not.
func (i *Ins) ByPkg(name string) ([]reqfile.Pin, error) {
	name = reqfile.NormalizeName(name)
	pins := i.PinsByPkg()[name]
	if len(pins) == 0 {
		return nil, errors.New(errors.ErrCodePackageNotFound,
			"package %q not found in venv %s", name, i.venvRel)
	}
	return pins, nil
}

// PinsByPkg groups every pin in the aggregate by package name.
// Duplicate pins (same file, specifiers, and qualifiers) collapse.
func (i *Ins) PinsByPkg() map[string][]reqfile.Pin {
	return i.groupByPkg(func(f *reqfile.File) []reqfile.Pin { return f.Pins })
}

// NotableByPkg groups only pins that constrain a version or carry
// qualifiers.
func (i *Ins) NotableByPkg() map[string][]reqfile.Pin {
	return i.groupByPkg((*reqfile.File).NotablePins)
}

func (i *Ins) groupByPkg(pick func(*reqfile.File) []reqfile.Pin) map[string][]reqfile.Pin {
	out := make(map[string][]reqfile.Pin)
	seen := make(map[string]struct{})
	for _, f := range i.Files() {
		for _, pin := range pick(f) {
			key := pin.FileAbspath + "\x00" + pin.PkgName + "\x00" + pin.SpecifierText() + "\x00" + pin.QualifierSuffix()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out[pin.PkgName] = append(out[pin.PkgName], pin)
		}
	}
	for _, pins := range out {
		sort.SliceStable(pins, func(a, b int) bool {
			c, err := pins[a].Compare(pins[b])
			return err == nil && c < 0
		})
	}
	return out
}
