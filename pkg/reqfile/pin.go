// Package reqfile parses pip-style requirement files: package pins with
// version specifiers and environment qualifiers, plus "-r"/"-c" references
// to other requirement files.
//
// Files carry one of three suffixes (.in, .lock, .unlock) and are keyed by
// absolute path. A Pin is one package line within one file; ordering and
// equality of pins never cross package boundaries.
package reqfile

import (
	"regexp"
	"strings"

	"github.com/reqlock/reqlock/pkg/errors"
)

// Specifier is a single version constraint, e.g. {">=", "24.2"}.
type Specifier struct {
	Op      string
	Version string
}

// String renders the specifier in requirement-line form.
func (s Specifier) String() string {
	return s.Op + s.Version
}

// Pin is one package line from one requirements file.
//
// A Pin with no specifiers is a presence-only entry (the package is
// named but unconstrained); IsPin reports false for it.
type Pin struct {
	// FileAbspath is the absolute path of the containing file.
	FileAbspath string

	// PkgName is the PEP 503 normalized package name.
	PkgName string

	// Line is the raw requirement line as read, inline comment stripped.
	Line string

	// Specifiers holds the parsed version constraints, in written order.
	Specifiers []Specifier

	// Qualifiers holds the environment markers after ";", each trimmed.
	Qualifiers []string
}

// IsPin reports whether the entry constrains a version.
func (p Pin) IsPin() bool {
	return len(p.Specifiers) != 0
}

// HasQualifiers reports whether the entry carries environment markers.
func (p Pin) HasQualifiers() bool {
	return len(p.Qualifiers) != 0
}

// QualifierSuffix renders the qualifiers as a line suffix, e.g.
// `; python_version < "3.11"`. Empty when there are no qualifiers.
func (p Pin) QualifierSuffix() string {
	if len(p.Qualifiers) == 0 {
		return ""
	}
	return "; " + strings.Join(p.Qualifiers, "; ")
}

// SpecifierText renders the specifiers comma-joined, e.g. ">=24.2,<25".
func (p Pin) SpecifierText() string {
	parts := make([]string, len(p.Specifiers))
	for i, s := range p.Specifiers {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Render produces the normalized requirement line for write-back:
// name, specifiers, then qualifiers verbatim.
func (p Pin) Render() string {
	line := p.PkgName + p.SpecifierText()
	if q := p.QualifierSuffix(); q != "" {
		line += " " + q
	}
	return line
}

// Compare orders pins within one file by package name then qualifier
// text, and pins of the same package across files by file path then
// qualifier text. Comparing pins from different files with different
// package names is a usage error.
func (p Pin) Compare(o Pin) (int, error) {
	if p.FileAbspath == o.FileAbspath {
		if c := strings.Compare(p.PkgName, o.PkgName); c != 0 {
			return c, nil
		}
		return strings.Compare(p.QualifierSuffix(), o.QualifierSuffix()), nil
	}

	if p.PkgName != o.PkgName {
		return 0, errors.New(errors.ErrCodeInvalidInput,
			"pins from different files are only ordered within one package: %q vs %q",
			p.PkgName, o.PkgName)
	}

	if c := strings.Compare(p.FileAbspath, o.FileAbspath); c != 0 {
		return c, nil
	}
	return strings.Compare(p.QualifierSuffix(), o.QualifierSuffix()), nil
}

var (
	normalizeRe = regexp.MustCompile(`[-_.]+`)

	// Package name with optional extras, e.g. "coverage[toml]".
	pinNameRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(\[[A-Za-z0-9._,\s-]*\])?`)

	// One version constraint. "===" must match before "==".
	specifierRe = regexp.MustCompile(`^\s*(===|==|!=|<=|>=|~=|<|>)\s*([^\s,;]+)`)

	// "pkg @ https://..." direct reference.
	urlRefRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*@\s+\S`)
)

// NormalizeName applies PEP 503 normalization: lowercase with runs of
// ".", "-", "_" collapsed to a single "-".
func NormalizeName(raw string) string {
	return normalizeRe.ReplaceAllString(strings.ToLower(raw), "-")
}

// StripInlineComment removes a trailing "#" comment. The "#" only opens
// a comment at the start of the line or after whitespace, so anchors in
// direct-reference URLs survive.
func StripInlineComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}
		if i == 0 || line[i-1] == ' ' || line[i-1] == '\t' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// ParsePinLine parses one package line into a Pin. The line must not be
// blank, a comment, or a "-r"/"-c" directive; the file parser filters
// those first.
//
// Direct references ("pkg @ url") yield a presence-only pin: the name is
// kept, specifiers and qualifiers are not parsed out of the URL.
func ParsePinLine(fileAbspath, raw string) (Pin, error) {
	line := strings.TrimSpace(StripInlineComment(raw))
	if line == "" {
		return Pin{}, errors.New(errors.ErrCodeInvalidInput, "empty requirement line in %s", fileAbspath)
	}

	if m := urlRefRe.FindStringSubmatch(line); m != nil {
		return Pin{
			FileAbspath: fileAbspath,
			PkgName:     NormalizeName(m[1]),
			Line:        line,
		}, nil
	}

	m := pinNameRe.FindStringSubmatch(line)
	if m == nil {
		return Pin{}, errors.New(errors.ErrCodeInvalidInput,
			"cannot parse package name from %q in %s", line, fileAbspath)
	}

	pin := Pin{
		FileAbspath: fileAbspath,
		PkgName:     NormalizeName(m[1]),
		Line:        line,
	}

	rest := line[len(m[0]):]
	specPart, qualPart, _ := strings.Cut(rest, ";")

	for _, seg := range strings.Split(specPart, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		sm := specifierRe.FindStringSubmatch(seg)
		if sm == nil {
			// Unparseable fragment after the name; keep the raw line,
			// drop the fragment.
			continue
		}
		pin.Specifiers = append(pin.Specifiers, Specifier{Op: sm[1], Version: sm[2]})
	}

	pin.Qualifiers = parseQualifiers(qualPart)
	return pin, nil
}

// parseQualifiers splits the text after the first ";" into trimmed,
// non-empty markers. The legacy spelling os_name=="nt" is rewritten to
// platform_system=="Windows" so equal markers compare equal.
func parseQualifiers(part string) []string {
	if strings.TrimSpace(part) == "" {
		return nil
	}

	var out []string
	for _, q := range strings.Split(part, ";") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if strings.HasPrefix(q, "os_name") && strings.Contains(q, "nt") {
			q = `platform_system=="Windows"`
		}
		out = append(out, q)
	}
	return out
}
