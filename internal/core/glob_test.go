package core

import (
	"testing"
)

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"acct_*.csv", "acct_2024.csv", true},
		{"acct_*.csv", "acct_.csv", true},
		{"acct_*.csv", "ACCT_2024.csv", false},
		{"acct_*.csv", "acct_2024.csv.bak", false},
		{"acct_*.csv", "x_acct_2024.csv", false},
		{"report*.xlsx", "report.xlsx", true},
		{"*", "", true},
		{"*", "anything at all", true},
		{"**.csv", "a.csv", true},
		{"file?.csv", "file1.csv", true},
		{"file?.csv", "file12.csv", false},
		{"file?.csv", "file.csv", false},
		{"data[0-9].csv", "data7.csv", true},
		{"data[0-9].csv", "dataX.csv", false},
		{"data[!0-9].csv", "dataX.csv", true},
		{"data[!0-9].csv", "data7.csv", false},
		{"[]]x", "]x", true},
		{"[!]]x", "ax", true},
		{"[!]]x", "]x", false},
		{"[a-]x", "-x", true},
		{"[a-]x", "ax", true},
		{"[-a]x", "-x", true},
		{"[abc", "[abc", true},
		{"[abc", "a", false},
		{"[z-a]x", "ax", false},
		{"[z-a]x", "zx", false},
		{"[!z-a]x", "qx", true},
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		{"a+b(1)$", "a+b(1)$", true},
		{"[*]x", "*x", true},
		{"[*]x", "ax", false},
		{"[\\]x", "\\x", true},
		{"[^a]x", "^x", true},
		{"[^a]x", "bx", false},
		{"*.csv", "line\nbreak.csv", true},
		{"Größe_*.csv", "Größe_2024.csv", true},
		{"[ä-ü]", "ö", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.name, func(t *testing.T) {
			g, err := CompileGlob(tt.pattern)
			if err != nil {
				t.Fatalf("CompileGlob(%q) error: %v", tt.pattern, err)
			}
			if got := g.Match(tt.name); got != tt.want {
				t.Errorf("Glob(%q).Match(%q) = %v, want %v (regexp %s)",
					tt.pattern, tt.name, got, tt.want, translateGlob(tt.pattern))
			}
		})
	}
}

func TestTranslateGlob(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"*.csv", `^(?s:.*\.csv)\z`},
		{"a?b", `^(?s:a.b)\z`},
		{"[!0-9]", `^(?s:[^0-9])\z`},
		{"[b-a]", `^(?s:` + neverMatch + `)\z`},
		{"[!b-a]", `^(?s:.)\z`},
		{"[", `^(?s:\[)\z`},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := translateGlob(tt.pattern); got != tt.want {
				t.Errorf("translateGlob(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestGlobString(t *testing.T) {
	g, err := CompileGlob("acct_*.csv")
	if err != nil {
		t.Fatal(err)
	}
	if g.String() != "acct_*.csv" {
		t.Errorf("String() = %q", g.String())
	}
}
