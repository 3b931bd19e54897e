package reconcile

import (
	"testing"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/reqlock/reqlock/pkg/errors"
	"github.com/reqlock/reqlock/pkg/reqfile"
)

func mustPin(t *testing.T, abspath, line string) reqfile.Pin {
	t.Helper()
	pin, err := reqfile.ParsePinLine(abspath, line)
	if err != nil {
		t.Fatalf("ParsePinLine(%q): %v", line, err)
	}
	return pin
}

func versions(t *testing.T, raw ...string) []pep440.Version {
	t.Helper()
	out := make([]pep440.Version, len(raw))
	for i, r := range raw {
		out[i] = pep440.MustParse(r)
	}
	return out
}

func TestDiscrepancies(t *testing.T) {
	byPkg := map[string][]reqfile.Pin{
		"pip": {
			mustPin(t, "/p/requirements/prod.lock", "pip==25.0"),
			mustPin(t, "/p/requirements/dev.lock", "pip==25.3"),
			mustPin(t, "/p/docs/requirements.lock", "pip==25.0"),
		},
		"requests": {
			mustPin(t, "/p/requirements/prod.lock", "requests==2.31.0"),
			mustPin(t, "/p/requirements/dev.lock", "requests==2.31.0"),
		},
	}

	issues, err := Discrepancies(byPkg)
	if err != nil {
		t.Fatalf("Discrepancies error: %v", err)
	}

	if _, ok := issues["requests"]; ok {
		t.Error("agreeing package should not be an issue")
	}

	issue, ok := issues["pip"]
	if !ok {
		t.Fatal("pip should be an issue")
	}
	if issue.Highest.String() != "25.3" {
		t.Errorf("Highest = %s, want 25.3", issue.Highest)
	}
	if len(issue.Others) != 1 || issue.Others[0].String() != "25.0" {
		t.Errorf("Others = %v, want [25.0]", issue.Others)
	}
	if got := issue.Versions(); len(got) != 2 || got[1].String() != "25.3" {
		t.Errorf("Versions = %v", got)
	}
}

func TestDiscrepanciesBadVersion(t *testing.T) {
	byPkg := map[string][]reqfile.Pin{
		"pip": {
			mustPin(t, "/p/a.lock", "pip==25.0"),
			mustPin(t, "/p/b.lock", "pip==best-version-ever"),
		},
	}

	if _, err := Discrepancies(byPkg); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestChoose(t *testing.T) {
	tests := []struct {
		name      string
		pins      []string
		highest   string
		others    []string
		wantOp    string
		wantVer   string
		wantFound bool
		wantCode  errors.Code
	}{
		{
			name:      "no constraints takes highest",
			pins:      nil,
			highest:   "25.3",
			others:    []string{"23.0", "24.8", "25.0"},
			wantOp:    ">=",
			wantVer:   "25.3",
			wantFound: true,
		},
		{
			name:      "single exact pin dominates",
			pins:      []string{"pip==24.8"},
			highest:   "25.3",
			others:    []string{"23.0", "24.8", "25.0"},
			wantOp:    "==",
			wantVer:   "24.8",
			wantFound: true,
		},
		{
			name:      "exclusion moves the pick to exact",
			pins:      []string{"pip!=25.3"},
			highest:   "25.3",
			others:    []string{"23.0", "24.8", "25.0"},
			wantOp:    "==",
			wantVer:   "25.0",
			wantFound: true,
		},
		{
			name:      "ranges alone keep the loose operator",
			pins:      []string{"pip>=23.0,<25.3,!=25.2"},
			highest:   "25.3",
			others:    []string{"23.0", "24.8", "25.0"},
			wantOp:    ">=",
			wantVer:   "25.0",
			wantFound: true,
		},
		{
			name:      "duplicate bounds collapse",
			pins:      []string{"pip>=23.0", "pip>=23.0"},
			highest:   "25.3",
			others:    []string{"23.0", "24.8"},
			wantOp:    ">=",
			wantVer:   "25.3",
			wantFound: true,
		},
		{
			name:      "nothing satisfies the range",
			pins:      []string{"pip>=26.0"},
			highest:   "25.3",
			others:    []string{"25.0"},
			wantFound: false,
		},
		{
			name:      "exclusions eliminate every candidate",
			pins:      []string{"pip!=25.3"},
			highest:   "25.3",
			others:    nil,
			wantFound: false,
		},
		{
			name:     "compatible release is unsupported",
			pins:     []string{"pip~=25.0"},
			highest:  "25.3",
			others:   []string{"25.0"},
			wantCode: errors.ErrCodeUnsupportedSpecifier,
		},
		{
			name:     "arbitrary equality is unsupported",
			pins:     []string{"pip===25.0"},
			highest:  "25.3",
			others:   []string{"25.0"},
			wantCode: errors.ErrCodeUnsupportedSpecifier,
		},
		{
			name:     "conflicting exact pins are unsupported",
			pins:     []string{"pip==24.8", "pip==25.0"},
			highest:  "25.3",
			others:   []string{"24.8", "25.0"},
			wantCode: errors.ErrCodeUnsupportedSpecifier,
		},
		{
			name:     "stacked lower bounds are unsupported",
			pins:     []string{"pip>=23.0", "pip>=24.0"},
			highest:  "25.3",
			others:   []string{"24.8"},
			wantCode: errors.ErrCodeUnsupportedSpecifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pins []reqfile.Pin
			for i, line := range tt.pins {
				abspath := "/p/requirements/prod.in"
				if i > 0 {
					abspath = "/p/requirements/dev.in"
				}
				pins = append(pins, mustPin(t, abspath, line))
			}

			choice, found, err := Choose(pins, pep440.MustParse(tt.highest), versions(t, tt.others...))

			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Choose error: %v", err)
			}
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if !tt.wantFound {
				return
			}
			if choice.Op != tt.wantOp || choice.Version.String() != tt.wantVer {
				t.Errorf("choice = %s, want %s%s", choice, tt.wantOp, tt.wantVer)
			}
		})
	}
}

func TestChoiceString(t *testing.T) {
	c := Choice{Op: ">=", Version: pep440.MustParse("25.0")}
	if c.String() != ">=25.0" {
		t.Errorf("String = %q, want %q", c.String(), ">=25.0")
	}
}
