// Package snip replaces generated sections inside hand-edited files.
// A section is delimited by comment markers carrying an id:
//
//	# @@ reqlock deps @@
//	dependencies = ["pip==25.0"]
//	# @@ end @@
//
// Everything between the markers is owned by the generator; everything
// outside them is owned by the human and never touched.
package snip

import (
	"strings"

	"github.com/reqlock/reqlock/pkg/errors"
)

const (
	beginPrefix = "# @@ reqlock "
	beginSuffix = " @@"
	endMarker   = "# @@ end @@"
)

// Begin renders the opening marker for an id.
func Begin(id string) string {
	return beginPrefix + id + beginSuffix
}

// End is the closing marker, identical for every snippet.
func End() string {
	return endMarker
}

func parseBegin(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, beginPrefix) || !strings.HasSuffix(trimmed, beginSuffix) {
		return "", false
	}
	id := strings.TrimSpace(trimmed[len(beginPrefix) : len(trimmed)-len(beginSuffix)])
	return id, id != ""
}

func isEnd(line string) bool {
	return strings.TrimSpace(line) == endMarker
}

// List returns the snippet ids present in content, in file order.
func List(content string) ([]string, error) {
	var ids []string
	open := ""
	for _, line := range strings.Split(content, "\n") {
		if id, ok := parseBegin(line); ok {
			if open != "" {
				return nil, errors.New(errors.ErrCodeInvalidInput,
					"snippet %q opens inside unclosed snippet %q", id, open)
			}
			open = id
			ids = append(ids, id)
			continue
		}
		if isEnd(line) {
			if open == "" {
				return nil, errors.New(errors.ErrCodeInvalidInput,
					"end marker without a matching begin marker")
			}
			open = ""
		}
	}
	if open != "" {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"snippet %q is never closed", open)
	}
	return ids, nil
}

// Replace swaps the body of the snippet with the given id for payload,
// markers preserved. The payload is written as-is; a trailing newline is
// neither required nor added inside the section.
func Replace(content, id, payload string) (string, error) {
	if _, err := List(content); err != nil {
		return "", err
	}

	lines := strings.Split(content, "\n")
	var out []string
	found := false
	skipping := false

	for _, line := range lines {
		if skipping {
			if isEnd(line) {
				out = append(out, line)
				skipping = false
			}
			continue
		}
		out = append(out, line)
		if got, ok := parseBegin(line); ok && got == id {
			found = true
			skipping = true
			if payload != "" {
				out = append(out, strings.Split(strings.TrimRight(payload, "\n"), "\n")...)
			}
		}
	}

	if !found {
		return "", errors.New(errors.ErrCodeInvalidInput,
			"no snippet %q in content; add the %q markers first", id, Begin(id))
	}
	return strings.Join(out, "\n"), nil
}
