package reqfile

import (
	"testing"

	"github.com/reqlock/reqlock/pkg/errors"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"pip", "pip"},
		{"Django", "django"},
		{"typing_extensions", "typing-extensions"},
		{"zope.interface", "zope-interface"},
		{"oslo.utils", "oslo-utils"},
		{"Foo__Bar.-baz", "foo-bar-baz"},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.expected {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestStripInlineComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no comment", "pip>=24.2", "pip>=24.2"},
		{"trailing comment", "pip>=24.2  # via -r base.in", "pip>=24.2"},
		{"whole line comment", "# header", ""},
		{"hash inside url", "pkg @ https://example.com/a.whl#sha256=abc", "pkg @ https://example.com/a.whl#sha256=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripInlineComment(tt.input); got != tt.expected {
				t.Errorf("StripInlineComment(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParsePinLine(t *testing.T) {
	const abspath = "/proj/requirements/prod.in"

	tests := []struct {
		name       string
		line       string
		pkg        string
		specifiers []Specifier
		qualifiers []string
	}{
		{
			name: "presence only",
			line: "requests",
			pkg:  "requests",
		},
		{
			name:       "single specifier",
			line:       "pip>=24.2",
			pkg:        "pip",
			specifiers: []Specifier{{">=", "24.2"}},
		},
		{
			name:       "range",
			line:       "urllib3>=1.26, <3",
			pkg:        "urllib3",
			specifiers: []Specifier{{">=", "1.26"}, {"<", "3"}},
		},
		{
			name:       "exact with qualifier",
			line:       `colorama==0.4.6 ; platform_system == "Windows"`,
			pkg:        "colorama",
			specifiers: []Specifier{{"==", "0.4.6"}},
			qualifiers: []string{`platform_system == "Windows"`},
		},
		{
			name:       "os_name nt normalized",
			line:       `colorama>=0.4 ; os_name == "nt"`,
			pkg:        "colorama",
			specifiers: []Specifier{{">=", "0.4"}},
			qualifiers: []string{`platform_system=="Windows"`},
		},
		{
			name:       "extras kept out of name",
			line:       "coverage[toml]>=7.6",
			pkg:        "coverage",
			specifiers: []Specifier{{">=", "7.6"}},
		},
		{
			name: "direct url reference",
			line: "mypkg @ https://example.com/mypkg-1.0.whl",
			pkg:  "mypkg",
		},
		{
			name:       "normalized name",
			line:       "Typing_Extensions!=4.0",
			pkg:        "typing-extensions",
			specifiers: []Specifier{{"!=", "4.0"}},
		},
		{
			name:       "inline comment stripped",
			line:       "tox>=4.0  # via tox-gh-actions",
			pkg:        "tox",
			specifiers: []Specifier{{">=", "4.0"}},
		},
		{
			name:       "arbitrary equality",
			line:       "weird===1.0+local",
			pkg:        "weird",
			specifiers: []Specifier{{"===", "1.0+local"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin, err := ParsePinLine(abspath, tt.line)
			if err != nil {
				t.Fatalf("ParsePinLine(%q) error: %v", tt.line, err)
			}
			if pin.PkgName != tt.pkg {
				t.Errorf("PkgName = %q, want %q", pin.PkgName, tt.pkg)
			}
			if pin.FileAbspath != abspath {
				t.Errorf("FileAbspath = %q", pin.FileAbspath)
			}
			if len(pin.Specifiers) != len(tt.specifiers) {
				t.Fatalf("Specifiers = %v, want %v", pin.Specifiers, tt.specifiers)
			}
			for i, s := range tt.specifiers {
				if pin.Specifiers[i] != s {
					t.Errorf("Specifiers[%d] = %v, want %v", i, pin.Specifiers[i], s)
				}
			}
			if len(pin.Qualifiers) != len(tt.qualifiers) {
				t.Fatalf("Qualifiers = %v, want %v", pin.Qualifiers, tt.qualifiers)
			}
			for i, q := range tt.qualifiers {
				if pin.Qualifiers[i] != q {
					t.Errorf("Qualifiers[%d] = %q, want %q", i, pin.Qualifiers[i], q)
				}
			}
		})
	}
}

func TestParsePinLineEmpty(t *testing.T) {
	if _, err := ParsePinLine("/proj/a.in", "   # just a comment"); err == nil {
		t.Error("expected error for comment-only line")
	}
}

func TestPinPredicates(t *testing.T) {
	pinned, _ := ParsePinLine("/proj/a.in", "pip>=24.2")
	if !pinned.IsPin() {
		t.Error("pin with specifier should report IsPin")
	}
	if pinned.HasQualifiers() {
		t.Error("pin without qualifiers should not report HasQualifiers")
	}

	bare, _ := ParsePinLine("/proj/a.in", "requests")
	if bare.IsPin() {
		t.Error("presence-only entry should not report IsPin")
	}
}

func TestPinRender(t *testing.T) {
	pin, _ := ParsePinLine("/proj/a.in", `urllib3>=1.26,<3 ; python_version < "3.11"`)
	want := `urllib3>=1.26,<3 ; python_version < "3.11"`
	if got := pin.Render(); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestPinCompare(t *testing.T) {
	a, _ := ParsePinLine("/proj/a.in", "aiohttp>=3.9")
	b, _ := ParsePinLine("/proj/a.in", "requests>=2.31")

	// Same file: package name ordering
	if c, err := a.Compare(b); err != nil || c >= 0 {
		t.Errorf("Compare same file = %d, %v; want negative, nil", c, err)
	}

	// Same package across files: file path ordering
	c1, _ := ParsePinLine("/proj/a.in", "pip>=24.2")
	c2, _ := ParsePinLine("/proj/b.in", "pip>=24.0")
	if c, err := c1.Compare(c2); err != nil || c >= 0 {
		t.Errorf("Compare cross file same pkg = %d, %v; want negative, nil", c, err)
	}

	// Different files AND different packages: usage error
	d1, _ := ParsePinLine("/proj/a.in", "pip>=24.2")
	d2, _ := ParsePinLine("/proj/b.in", "tox>=4.0")
	if _, err := d1.Compare(d2); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Compare cross file cross pkg error = %v, want INVALID_INPUT", err)
	}

	// Qualifier text breaks ties
	e1, _ := ParsePinLine("/proj/a.in", "pip>=24.2")
	e2, _ := ParsePinLine("/proj/a.in", `pip>=24.2 ; python_version < "3.11"`)
	if c, err := e1.Compare(e2); err != nil || c >= 0 {
		t.Errorf("Compare qualifier tiebreak = %d, %v; want negative, nil", c, err)
	}
}
