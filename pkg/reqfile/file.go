package reqfile

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reqlock/reqlock/pkg/errors"
)

// File is one parsed requirements file: its package pins plus the
// "-r" (requirement) and "-c" (constraint) references it makes to other
// requirement files.
//
// References are recorded twice: the Requirements/Constraints sets keep
// the full reference graph for rendering, while the pending sets shrink
// as the resolution loop satisfies each reference. A file with no
// pending references is fully resolved.
type File struct {
	// Abspath is the absolute path of the file.
	Abspath string

	// Relpath is the slash-separated path relative to the project base.
	Relpath string

	// Pins holds the package lines, sorted by package name.
	Pins []Pin

	// Requirements holds "-r" reference targets, project-base relative.
	Requirements map[string]struct{}

	// Constraints holds "-c" reference targets, project-base relative.
	Constraints map[string]struct{}

	pendingReqs map[string]struct{}
	pendingCons map[string]struct{}
}

// Load reads and parses the requirements file at abspath. The path must
// be absolute, carry a supported suffix, and live under baseDir.
//
// A reference to a file that does not exist is not a load error; the
// resolution loop discovers that later.
func Load(baseDir, abspath string) (*File, error) {
	if err := errors.ValidateAbsPath(abspath); err != nil {
		return nil, err
	}
	if err := CheckSuffix(abspath); err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(baseDir, abspath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, errors.New(errors.ErrCodeInvalidPath,
			"requirements file %s is outside the project base %s", abspath, baseDir)
	}
	rel = filepath.ToSlash(rel)

	r, err := os.Open(abspath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMissingRequirements, err, "read requirements file %s", abspath)
	}
	defer r.Close()

	f := &File{
		Abspath:      abspath,
		Relpath:      rel,
		Requirements: make(map[string]struct{}),
		Constraints:  make(map[string]struct{}),
		pendingReqs:  make(map[string]struct{}),
		pendingCons:  make(map[string]struct{}),
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(StripInlineComment(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "-r "):
			target, err := f.refTarget(line[len("-r "):])
			if err != nil {
				return nil, err
			}
			f.Requirements[target] = struct{}{}
			f.pendingReqs[target] = struct{}{}
		case strings.HasPrefix(line, "-c "):
			target, err := f.refTarget(line[len("-c "):])
			if err != nil {
				return nil, err
			}
			f.Constraints[target] = struct{}{}
			f.pendingCons[target] = struct{}{}
		case strings.HasPrefix(line, "-"):
			// Other pip options (--index-url etc.) do not name packages.
			continue
		default:
			pin, err := ParsePinLine(abspath, line)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeMissingRequirements, err,
					"parse requirements file %s", abspath)
			}
			f.addPin(pin)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMissingRequirements, err, "read requirements file %s", abspath)
	}

	f.sortPins()
	return f, nil
}

// refTarget resolves a "-r"/"-c" argument, written relative to the
// containing file's directory, into a project-base relative path.
func (f *File) refTarget(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New(errors.ErrCodeInvalidPath, "empty file reference in %s", f.Abspath)
	}
	target := path.Clean(path.Join(path.Dir(f.Relpath), filepath.ToSlash(arg)))
	if err := errors.ValidateRelPath(target); err != nil {
		return "", err
	}
	return target, nil
}

func (f *File) addPin(pin Pin) {
	for _, have := range f.Pins {
		if have.PkgName == pin.PkgName &&
			have.SpecifierText() == pin.SpecifierText() &&
			have.QualifierSuffix() == pin.QualifierSuffix() {
			return
		}
	}
	f.Pins = append(f.Pins, pin)
}

func (f *File) sortPins() {
	sort.SliceStable(f.Pins, func(i, j int) bool {
		c, _ := f.Pins[i].Compare(f.Pins[j])
		return c < 0
	})
}

// Depth is the folder nesting of the file below the project base.
func (f *File) Depth() int {
	return strings.Count(f.Relpath, "/")
}

// Less orders files for deterministic iteration: shallower directories
// first, then by file name, then by full relative path.
func (f *File) Less(o *File) bool {
	if d, od := f.Depth(), o.Depth(); d != od {
		return d < od
	}
	fn, on := path.Base(f.Relpath), path.Base(o.Relpath)
	if fn != on {
		return fn < on
	}
	return f.Relpath < o.Relpath
}

// PendingCount is the number of references not yet satisfied.
func (f *File) PendingCount() int {
	return len(f.pendingReqs) + len(f.pendingCons)
}

// Pending lists the unsatisfied reference targets, sorted.
func (f *File) Pending() []string {
	out := make([]string, 0, f.PendingCount())
	for rel := range f.pendingReqs {
		out = append(out, rel)
	}
	for rel := range f.pendingCons {
		out = append(out, rel)
	}
	sort.Strings(out)
	return out
}

// PendingRequirements lists unsatisfied "-r" targets, sorted.
func (f *File) PendingRequirements() []string {
	out := make([]string, 0, len(f.pendingReqs))
	for rel := range f.pendingReqs {
		out = append(out, rel)
	}
	sort.Strings(out)
	return out
}

// PendingConstraints lists unsatisfied "-c" targets, sorted.
func (f *File) PendingConstraints() []string {
	out := make([]string, 0, len(f.pendingCons))
	for rel := range f.pendingCons {
		out = append(out, rel)
	}
	sort.Strings(out)
	return out
}

// SatisfyRequirement marks the "-r" reference rel satisfied and merges
// the referenced file's pins into this file. Merged pins are re-owned
// by this file; duplicates (same package, specifiers, and qualifiers)
// collapse.
func (f *File) SatisfyRequirement(rel string, pins []Pin) {
	if _, ok := f.pendingReqs[rel]; !ok {
		return
	}
	delete(f.pendingReqs, rel)
	for _, pin := range pins {
		pin.FileAbspath = f.Abspath
		f.addPin(pin)
	}
	f.sortPins()
}

// SatisfyConstraint marks the "-c" reference rel satisfied. Constraint
// references restrict without adding, so no pins merge.
func (f *File) SatisfyConstraint(rel string) {
	delete(f.pendingCons, rel)
}

// ByPkg returns this file's pins for the normalized package name.
func (f *File) ByPkg(name string) []Pin {
	name = NormalizeName(name)
	var out []Pin
	for _, pin := range f.Pins {
		if pin.PkgName == name {
			out = append(out, pin)
		}
	}
	return out
}

// NotablePins returns pins that constrain a version or carry
// qualifiers. Presence-only entries are omitted.
func (f *File) NotablePins() []Pin {
	var out []Pin
	for _, pin := range f.Pins {
		if pin.IsPin() || pin.HasQualifiers() {
			out = append(out, pin)
		}
	}
	return out
}
