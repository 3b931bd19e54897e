package reconcile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/reqlock/reqlock/pkg/reqfile"
	"github.com/reqlock/reqlock/pkg/venvs"
)

// Fixer reconciles the lock and unlock files of one venv. It loads the
// ".in" sources and the ".lock" outputs, detects packages whose lock
// files disagree, chooses an authoritative version for each, and nudges
// the affected files toward it.
type Fixer struct {
	loader  *venvs.Loader
	logger  *log.Logger
	venvRel string
	ins     *venvs.Ins
	locks   *venvs.Ins

	resolvables   []Resolvable
	unresolvables []UnResolvable
	computed      bool
}

// NewFixer loads the ".in" and ".lock" aggregates of the venv named by
// venvKey. Missing declared files surface here, before any fix runs.
func NewFixer(loader *venvs.Loader, venvKey string, logger *log.Logger) (*Fixer, error) {
	if logger == nil {
		logger = log.Default()
	}

	ins, err := venvs.NewIns(loader, venvKey, logger)
	if err != nil {
		return nil, err
	}
	if err := ins.Load(reqfile.SuffixIn); err != nil {
		return nil, err
	}

	locks, err := venvs.NewIns(loader, venvKey, logger)
	if err != nil {
		return nil, err
	}
	if err := locks.Load(reqfile.SuffixLock); err != nil {
		return nil, err
	}

	return &Fixer{
		loader:  loader,
		logger:  logger,
		venvRel: ins.VenvRel(),
		ins:     ins,
		locks:   locks,
	}, nil
}

// VenvRel is the declared venv relative path.
func (f *Fixer) VenvRel() string {
	return f.venvRel
}

// Issues computes the per-package outcome for every lock discrepancy in
// the venv: a Resolvable carrying the nudge lines, or an UnResolvable
// when no candidate version satisfies the ".in" constraints. Results are
// ordered by package name and cached; calling Issues twice is cheap.
//
// A package constrained by an unsupported specifier shape ("~=", "===",
// conflicting exact pins, stacked bounds) is an error, not an outcome:
// silently picking a version there would be a guess.
func (f *Fixer) Issues() ([]Resolvable, []UnResolvable, error) {
	if f.computed {
		return f.resolvables, f.unresolvables, nil
	}

	notableIns := f.ins.NotableByPkg()
	allLocks := f.locks.PinsByPkg()

	issues, err := Discrepancies(allLocks)
	if err != nil {
		return nil, nil, err
	}

	pkgs := make([]string, 0, len(issues))
	for pkg := range issues {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	for _, pkg := range pkgs {
		issue := issues[pkg]
		quals := firstQualifierSuffix(notableIns[pkg], allLocks[pkg])

		srcPins, constrained := notableIns[pkg]
		if !constrained {
			// The disagreement exists only between lock files; without a
			// source constraint the highest version wins and the unlock
			// files are left alone.
			f.resolvables = append(f.resolvables, Resolvable{
				VenvRel:    f.venvRel,
				PkgName:    pkg,
				Qualifiers: quals,
				NudgeLock:  pkg + "==" + issue.Highest.String(),
			})
			continue
		}

		choice, found, err := Choose(srcPins, issue.Highest, issue.Others)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			f.unresolvables = append(f.unresolvables, UnResolvable{
				VenvRel:    f.venvRel,
				PkgName:    pkg,
				Qualifiers: quals,
				Highest:    issue.Highest,
				Others:     issue.Others,
				Pins:       append(append([]reqfile.Pin{}, srcPins...), allLocks[pkg]...),
			})
			continue
		}

		f.resolvables = append(f.resolvables, Resolvable{
			VenvRel:     f.venvRel,
			PkgName:     pkg,
			Qualifiers:  quals,
			NudgeUnlock: pkg + choice.String(),
			NudgeLock:   pkg + "==" + choice.Version.String(),
		})
	}

	f.computed = true
	f.logger.Debug("computed fix issues", "venv", f.venvRel,
		"resolvable", len(f.resolvables), "unresolvable", len(f.unresolvables))
	return f.resolvables, f.unresolvables, nil
}

// Apply writes the nudges of every resolvable issue into the venv's lock
// files and, where one exists, the matching unlock file. Shared files
// feed several venvs, so instead of writing them Apply emits a notice.
//
// With dryRun set nothing is written; the returned messages report what
// an actual run would do.
func (f *Fixer) Apply(dryRun bool) ([]ResolvedMsg, []SharedNotice, error) {
	resolvables, _, err := f.Issues()
	if err != nil {
		return nil, nil, err
	}

	byPkg := make(map[string]Resolvable, len(resolvables))
	for _, r := range resolvables {
		byPkg[r.PkgName] = r
	}

	var msgs []ResolvedMsg
	var shared []SharedNotice
	done := make(map[string]struct{})

	for _, file := range f.locks.Files() {
		for _, pin := range file.Pins {
			r, ok := byPkg[pin.PkgName]
			if !ok {
				continue
			}
			key := file.Abspath + "\x00" + pin.PkgName
			if _, dup := done[key]; dup {
				continue
			}
			done[key] = struct{}{}

			if reqfile.IsShared(filepath.Base(file.Abspath)) {
				shared = append(shared, SharedNotice{
					VenvRel:    f.venvRel,
					Suffix:     reqfile.SuffixLock,
					Resolvable: r,
					Pin:        pin,
				})
				continue
			}

			// Lock files are never appended to: a pin that reached this
			// file only through a "-r" merge is nudged in its home file
			// on its own iteration.
			lockLine := withQualifiers(r.NudgeLock, r.Qualifiers)
			wrote, err := f.nudge(file.Abspath, pin.PkgName, lockLine, false, dryRun)
			if err != nil {
				return msgs, shared, err
			}
			if wrote {
				msgs = append(msgs, ResolvedMsg{VenvRel: f.venvRel, FileAbspath: file.Abspath, Line: lockLine})
			}

			if r.NudgeUnlock == "" {
				continue
			}
			unlockPath := reqfile.ReplaceSuffix(file.Abspath, reqfile.SuffixUnlock)
			if _, err := os.Stat(unlockPath); err != nil {
				continue
			}
			unlockLine := withQualifiers(r.NudgeUnlock, r.Qualifiers)
			if _, err := f.nudge(unlockPath, pin.PkgName, unlockLine, true, dryRun); err != nil {
				return msgs, shared, err
			}
			msgs = append(msgs, ResolvedMsg{VenvRel: f.venvRel, FileAbspath: unlockPath, Line: unlockLine})
		}
	}

	f.logger.Debug("applied fixes", "venv", f.venvRel, "dry_run", dryRun,
		"written", len(msgs), "shared", len(shared))
	return msgs, shared, nil
}

func (f *Fixer) nudge(abspath, pkgName, line string, appendMissing, dryRun bool) (bool, error) {
	if dryRun {
		data, err := os.ReadFile(abspath)
		if err != nil {
			return false, nil
		}
		if appendMissing {
			return true, nil
		}
		for _, existing := range strings.Split(string(data), "\n") {
			if MatchesPackage(existing, pkgName) {
				return true, nil
			}
		}
		return false, nil
	}
	return NudgePin(abspath, pkgName, line, appendMissing)
}

func withQualifiers(line, quals string) string {
	if quals == "" {
		return line
	}
	return line + " " + quals
}

// firstQualifierSuffix picks the rendered qualifiers of the first pin
// that has any, source pins taking precedence over lock pins.
func firstQualifierSuffix(groups ...[]reqfile.Pin) string {
	for _, pins := range groups {
		for _, pin := range pins {
			if q := pin.QualifierSuffix(); q != "" {
				return q
			}
		}
	}
	return ""
}
