// Package resolve closes a set of requirement files over their "-r" and
// "-c" references.
//
// Files enter the collection unresolved and move to the resolved set once
// every reference they make is satisfied. Each pass over the unresolved
// set discovers newly referenced files on disk, merges the packages of
// resolved "-r" targets into their referencing files, and marks "-c"
// targets satisfied. A pass that makes no progress means a referenced
// file is missing, and resolution fails naming the culprits.
package resolve

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/reqlock/reqlock/pkg/errors"
	"github.com/reqlock/reqlock/pkg/reqfile"
)

// Collection is the working set of requirement files for one resolution
// run. Files are keyed by project-base relative path; each file lives in
// exactly one of the unresolved or resolved sets, and only ever moves
// from unresolved to resolved.
type Collection struct {
	// BaseDir is the project base all relative paths hang off.
	BaseDir string

	logger     *log.Logger
	unresolved map[string]*reqfile.File
	resolved   map[string]*reqfile.File
}

// New creates an empty collection rooted at baseDir.
func New(baseDir string, logger *log.Logger) *Collection {
	if logger == nil {
		logger = log.Default()
	}
	return &Collection{
		BaseDir:    baseDir,
		logger:     logger,
		unresolved: make(map[string]*reqfile.File),
		resolved:   make(map[string]*reqfile.File),
	}
}

// Add loads the requirements file at abspath into the collection.
// A file with no references lands in the resolved set immediately.
// Adding a file that is already present is a no-op.
func (c *Collection) Add(abspath string) error {
	f, err := reqfile.Load(c.BaseDir, abspath)
	if err != nil {
		return err
	}
	if c.Contains(f.Relpath) {
		return nil
	}
	if f.PendingCount() == 0 {
		c.resolved[f.Relpath] = f
	} else {
		c.unresolved[f.Relpath] = f
	}
	c.logger.Debug("added requirements file", "file", f.Relpath, "pending", f.PendingCount())
	return nil
}

// Contains reports whether the relative path is in either set.
func (c *Collection) Contains(rel string) bool {
	_, inU := c.unresolved[rel]
	_, inR := c.resolved[rel]
	return inU || inR
}

// Get returns the file for rel from either set.
func (c *Collection) Get(rel string) (*reqfile.File, bool) {
	if f, ok := c.resolved[rel]; ok {
		return f, true
	}
	f, ok := c.unresolved[rel]
	return f, ok
}

// Len is the total number of files in the collection.
func (c *Collection) Len() int {
	return len(c.unresolved) + len(c.resolved)
}

// Resolved returns the resolved files, ordered by directory depth then
// file name. The slice is fresh on every call.
func (c *Collection) Resolved() []*reqfile.File {
	return sortedFiles(c.resolved)
}

// Unresolved returns the files still carrying pending references,
// ordered by directory depth then file name.
func (c *Collection) Unresolved() []*reqfile.File {
	return sortedFiles(c.unresolved)
}

func sortedFiles(m map[string]*reqfile.File) []*reqfile.File {
	out := make([]*reqfile.File, 0, len(m))
	for _, f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// pass runs one worklist iteration and reports whether it made progress:
// a file admitted, a reference satisfied, or a file moved to resolved.
func (c *Collection) pass() (bool, error) {
	progress := false

	// Discover referenced files that exist on disk but are not yet in
	// the collection.
	var admit []string
	for _, f := range c.unresolved {
		for _, rel := range f.Pending() {
			if c.Contains(rel) {
				continue
			}
			abspath := filepath.Join(c.BaseDir, filepath.FromSlash(rel))
			if info, err := os.Stat(abspath); err == nil && !info.IsDir() {
				admit = append(admit, abspath)
			}
		}
	}
	sort.Strings(admit)
	for _, abspath := range admit {
		before := c.Len()
		if err := c.Add(abspath); err != nil {
			return false, err
		}
		if c.Len() != before {
			progress = true
		}
	}

	// Satisfy references whose targets are resolved.
	for _, f := range c.unresolved {
		for _, rel := range f.PendingRequirements() {
			target, ok := c.resolved[rel]
			if !ok {
				continue
			}
			f.SatisfyRequirement(rel, target.Pins)
			progress = true
			c.logger.Debug("merged requirement reference", "file", f.Relpath, "target", rel)
		}
		for _, rel := range f.PendingConstraints() {
			if _, ok := c.resolved[rel]; !ok {
				continue
			}
			f.SatisfyConstraint(rel)
			progress = true
			c.logger.Debug("satisfied constraint reference", "file", f.Relpath, "target", rel)
		}
	}

	// Move fully satisfied files to the resolved set.
	for rel, f := range c.unresolved {
		if f.PendingCount() == 0 {
			c.resolved[rel] = f
			delete(c.unresolved, rel)
			progress = true
		}
	}

	return progress, nil
}

// Resolve runs worklist passes until every file is resolved. A pass with
// no progress means at least one referenced file cannot be found; the
// returned error names each stuck file and its missing references.
func (c *Collection) Resolve() error {
	for len(c.unresolved) != 0 {
		progress, err := c.pass()
		if err != nil {
			return err
		}
		if !progress {
			return c.missingErr()
		}
	}
	c.logger.Debug("resolution complete", "files", len(c.resolved))
	return nil
}

func (c *Collection) missingErr() error {
	var parts []string
	for _, f := range c.Unresolved() {
		parts = append(parts, f.Relpath+" -> "+strings.Join(f.Pending(), ", "))
	}
	return errors.New(errors.ErrCodeMissingRequirements,
		"unresolvable requirement references: %s", strings.Join(parts, "; "))
}
