package resolve

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/reqlock/reqlock/pkg/errors"
	"github.com/reqlock/reqlock/pkg/reqfile"
)

// Write renders every resolved file to its suffix-substituted sibling:
// one line per package, sorted by package name, qualifiers verbatim.
// Shared pins files are inputs only and are skipped. Output is
// byte-stable across runs over the same inputs.
//
// Returns the absolute paths written, in write order.
func (c *Collection) Write(suffix string) ([]string, error) {
	if !reqfile.ValidSuffix(suffix) {
		return nil, errors.New(errors.ErrCodeInvalidSuffix, "unsupported output suffix %q", suffix)
	}
	if len(c.unresolved) != 0 {
		return nil, c.missingErr()
	}

	var written []string
	for _, f := range c.Resolved() {
		if reqfile.IsSharedPins(path.Base(f.Relpath)) {
			c.logger.Debug("skipping shared pins file", "file", f.Relpath)
			continue
		}

		target := reqfile.ReplaceSuffix(f.Abspath, suffix)
		if err := os.WriteFile(target, []byte(Render(f)), 0o644); err != nil {
			return written, errors.Wrap(errors.ErrCodeInternal, err, "write %s", target)
		}
		written = append(written, target)
		c.logger.Debug("wrote requirements file", "file", target, "packages", len(f.Pins))
	}
	return written, nil
}

// Render produces the normalized file content for f: package lines
// sorted by name, one per line, trailing newline.
func Render(f *reqfile.File) string {
	lines := make([]string, 0, len(f.Pins))
	for _, pin := range f.Pins {
		lines = append(lines, pin.Render())
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
