// Package reconcile detects version discrepancies for a package across
// the lock files of one venv and chooses a single authoritative
// (operator, version) pair to nudge every file toward.
//
// The candidate versions come from the ".lock" files themselves; the
// constraints come from the ".in" sources. The chooser works from that
// limited view, so a resolvable answer is a best effort, and anything
// outside the supported specifier grammar fails fast rather than
// guessing.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/reqlock/reqlock/pkg/errors"
	"github.com/reqlock/reqlock/pkg/reqfile"
)

// Issue records one package whose lock files disagree on a version.
type Issue struct {
	// Highest is the greatest version seen across the lock files.
	Highest pep440.Version

	// Others holds the remaining distinct versions, ascending.
	Others []pep440.Version
}

// Versions returns every known version, Highest included, ascending.
func (i Issue) Versions() []pep440.Version {
	out := make([]pep440.Version, 0, len(i.Others)+1)
	out = append(out, i.Others...)
	out = append(out, i.Highest)
	return out
}

// Discrepancies scans lock pins grouped by package and reports each
// package pinned to two or more distinct versions. Packages every lock
// file agrees on are omitted.
func Discrepancies(byPkg map[string][]reqfile.Pin) (map[string]Issue, error) {
	out := make(map[string]Issue)

	for pkg, pins := range byPkg {
		var versions []pep440.Version
		for _, pin := range pins {
			if len(pin.Specifiers) == 0 {
				continue
			}
			// Lock lines carry exactly one ==version specifier.
			v, err := pep440.Parse(pin.Specifiers[0].Version)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err,
					"unparseable version in %s line %q", pin.FileAbspath, pin.Line)
			}
			versions = append(versions, v)
		}
		distinct := dedupeVersions(versions)
		if len(distinct) < 2 {
			continue
		}
		out[pkg] = Issue{
			Highest: distinct[len(distinct)-1],
			Others:  distinct[:len(distinct)-1],
		}
	}

	return out, nil
}

func dedupeVersions(versions []pep440.Version) []pep440.Version {
	sort.Slice(versions, func(a, b int) bool { return versions[a].LessThan(versions[b]) })
	var out []pep440.Version
	for _, v := range versions {
		if len(out) == 0 || !out[len(out)-1].Equal(v) {
			out = append(out, v)
		}
	}
	return out
}

// Choice is the authoritative pin for one package: the version every
// lock file is nudged to, and the operator unlock files carry.
type Choice struct {
	Op      string
	Version pep440.Version
}

// String renders the choice as a specifier, e.g. ">=25.0".
func (c Choice) String() string {
	return c.Op + c.Version.String()
}

// bound is one half-open range constraint.
type bound struct {
	op string
	v  pep440.Version
}

// Choose picks one version for a package from the known candidates
// (highest plus others) under the constraints the given pins impose.
//
// The rules, in order:
//   - no pin constrains the package: take the highest, operator ">=";
//   - exactly one distinct "==" version: take it, operator "==";
//   - distinct conflicting "==" versions, any "~=" or "===", or more
//     than one distinct bound in the same direction: unsupported;
//   - otherwise intersect the candidates with the range bounds, drop
//     "!=" exclusions, and take the highest survivor. The operator is
//     "==" when an exclusion changed the outcome, ">=" when the ranges
//     alone would have picked the same version.
//
// The boolean reports whether any candidate survived; false means the
// conflict is real and a human has to pick.
func Choose(pins []reqfile.Pin, highest pep440.Version, others []pep440.Version) (Choice, bool, error) {
	var (
		eqs    []pep440.Version
		neqs   []pep440.Version
		lowers []bound
		uppers []bound
		any    bool
	)

	for _, pin := range pins {
		for _, spec := range pin.Specifiers {
			any = true
			v, err := pep440.Parse(spec.Version)
			if err != nil {
				return Choice{}, false, errors.Wrap(errors.ErrCodeInvalidInput, err,
					"unparseable version in %q", pin.Line)
			}
			switch spec.Op {
			case "==":
				eqs = appendDistinct(eqs, v)
			case "!=":
				neqs = appendDistinct(neqs, v)
			case ">", ">=":
				lowers = appendDistinctBound(lowers, bound{spec.Op, v})
			case "<", "<=":
				uppers = appendDistinctBound(uppers, bound{spec.Op, v})
			default:
				return Choice{}, false, errors.New(errors.ErrCodeUnsupportedSpecifier,
					"%s specifier is not supported: %q", spec.Op, pin.Line)
			}
		}
	}

	if !any {
		return Choice{Op: ">=", Version: highest}, true, nil
	}

	if len(eqs) > 1 {
		return Choice{}, false, errors.New(errors.ErrCodeUnsupportedSpecifier,
			"conflicting exact pins: %s", joinVersions(eqs))
	}
	if len(eqs) == 1 {
		return Choice{Op: "==", Version: eqs[0]}, true, nil
	}
	if len(lowers) > 1 || len(uppers) > 1 {
		return Choice{}, false, errors.New(errors.ErrCodeUnsupportedSpecifier,
			"more than one bound in the same direction is not supported")
	}

	candidates := append(append([]pep440.Version{}, others...), highest)

	inRange := func(v pep440.Version) bool {
		for _, b := range lowers {
			if b.op == ">" && !v.GreaterThan(b.v) {
				return false
			}
			if b.op == ">=" && v.LessThan(b.v) {
				return false
			}
		}
		for _, b := range uppers {
			if b.op == "<" && !v.LessThan(b.v) {
				return false
			}
			if b.op == "<=" && v.GreaterThan(b.v) {
				return false
			}
		}
		return true
	}

	var rangeCands []pep440.Version
	for _, v := range candidates {
		if inRange(v) {
			rangeCands = append(rangeCands, v)
		}
	}
	if len(rangeCands) == 0 {
		return Choice{}, false, nil
	}
	rangesPick := maxVersion(rangeCands)

	var finalCands []pep440.Version
	for _, v := range rangeCands {
		if !containsVersion(neqs, v) {
			finalCands = append(finalCands, v)
		}
	}
	if len(finalCands) == 0 {
		return Choice{}, false, nil
	}
	finalPick := maxVersion(finalCands)

	op := ">="
	if !finalPick.Equal(rangesPick) {
		// An exclusion moved the pick off the range optimum; only the
		// exact version is known to satisfy everyone.
		op = "=="
	}
	return Choice{Op: op, Version: finalPick}, true, nil
}

func appendDistinct(vs []pep440.Version, v pep440.Version) []pep440.Version {
	if containsVersion(vs, v) {
		return vs
	}
	return append(vs, v)
}

func appendDistinctBound(bs []bound, b bound) []bound {
	for _, have := range bs {
		if have.op == b.op && have.v.Equal(b.v) {
			return bs
		}
	}
	return append(bs, b)
}

func containsVersion(vs []pep440.Version, v pep440.Version) bool {
	for _, have := range vs {
		if have.Equal(v) {
			return true
		}
	}
	return false
}

func maxVersion(vs []pep440.Version) pep440.Version {
	best := vs[0]
	for _, v := range vs[1:] {
		if v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

func joinVersions(vs []pep440.Version) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// Resolvable is a dependency conflict with a chosen fix: the nudge pin
// lines for the venv's ".lock" and ".unlock" files.
type Resolvable struct {
	VenvRel    string
	PkgName    string
	Qualifiers string // rendered suffix, e.g. `; python_version < "3.11"`

	// NudgeUnlock is the ".unlock" line, e.g. "pip>=24.2". Empty when
	// the conflict exists only between lock files.
	NudgeUnlock string

	// NudgeLock is the ".lock" line, always an exact pin.
	NudgeLock string
}

// UnResolvable is a dependency conflict no candidate version satisfies.
// It carries enough context for a human to track the conflict down.
type UnResolvable struct {
	VenvRel    string
	PkgName    string
	Qualifiers string
	Highest    pep440.Version
	Others     []pep440.Version
	Pins       []reqfile.Pin
}

// String renders the conflict for CLI output.
func (u UnResolvable) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (venv %s): no version satisfies all pins; highest %s, others %s\n",
		u.PkgName, u.VenvRel, u.Highest, joinVersions(u.Others))
	for _, pin := range u.Pins {
		fmt.Fprintf(&b, "  %s: %s\n", pin.FileAbspath, pin.Line)
	}
	return b.String()
}

// ResolvedMsg reports one applied (or dry-run) nudge.
type ResolvedMsg struct {
	VenvRel     string
	FileAbspath string
	Line        string
}

// SharedNotice flags a conflict that touches a ".shared" requirements
// file. Shared files feed several venvs, so a single-venv nudge is not
// applied automatically; the human is informed instead.
type SharedNotice struct {
	VenvRel    string
	Suffix     string
	Resolvable Resolvable
	Pin        reqfile.Pin
}
