package reconcile

import (
	"os"
	"regexp"
	"strings"

	"github.com/reqlock/reqlock/pkg/errors"
	"github.com/reqlock/reqlock/pkg/reqfile"
)

// leadingNameRe captures the package name at the start of a requirement
// line, stopping before extras, specifiers, or markers.
var leadingNameRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)`)

// MatchesPackage reports whether line pins exactly pkgName. The match is
// whole-name: "tox==4.11" matches "tox", "tox-gh-actions==3.2" does not.
func MatchesPackage(line, pkgName string) bool {
	line = strings.TrimSpace(reqfile.StripInlineComment(line))
	m := leadingNameRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}

	rest := line[len(m[0]):]
	if rest != "" {
		switch rest[0] {
		case '=', '<', '>', '!', '~', ';', '@', ' ', '\t', '[':
		default:
			return false
		}
	}

	return reqfile.NormalizeName(m[1]) == reqfile.NormalizeName(pkgName)
}

// NudgePin rewrites the requirement file at abspath so pkgName is pinned
// by exactly the nudge line. Every existing line for the package is
// replaced by one nudge line; when appendMissing is set and no line
// matched, the nudge is appended instead.
//
// Returns whether the file was written.
func NudgePin(abspath, pkgName, nudge string, appendMissing bool) (bool, error) {
	data, err := os.ReadFile(abspath)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", abspath)
	}

	var lines []string
	if trimmed := strings.TrimRight(string(data), "\n"); trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}

	var out []string
	replaced := false
	for _, line := range lines {
		if MatchesPackage(line, pkgName) {
			if !replaced {
				out = append(out, nudge)
				replaced = true
			}
			continue
		}
		out = append(out, line)
	}

	if !replaced {
		if !appendMissing {
			return false, nil
		}
		out = append(out, nudge)
	}

	content := strings.Join(out, "\n") + "\n"
	if err := os.WriteFile(abspath, []byte(content), 0o644); err != nil {
		return false, errors.Wrap(errors.ErrCodeInternal, err, "write %s", abspath)
	}
	return true, nil
}
