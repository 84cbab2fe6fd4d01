package command

import (
	"strings"
	"testing"
)

func TestParse_Simple(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCmd  string
		wantArgs []string
	}{
		{name: "empty", input: "", wantCmd: "", wantArgs: []string{}},
		{name: "single word", input: "ping", wantCmd: "ping", wantArgs: []string{}},
		{name: "with args", input: "select users", wantCmd: "select", wantArgs: []string{"users"}},
		{name: "extra whitespace", input: "  select   users  ", wantCmd: "select", wantArgs: []string{"users"}},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.input)
			if got.Command != tt.wantCmd {
				t.Errorf("Command = %q, want %q", got.Command, tt.wantCmd)
			}
			if len(got.Arguments) != len(tt.wantArgs) {
				t.Fatalf("Arguments = %v, want %v", got.Arguments, tt.wantArgs)
			}
			for i, a := range tt.wantArgs {
				if got.Arguments[i] != a {
					t.Errorf("Arguments[%d] = %q, want %q", i, got.Arguments[i], a)
				}
			}
		})
	}
}

func TestParse_Options(t *testing.T) {
	p := NewParser()

	got := p.Parse("status --format=json --verbose -v extra")
	if got.Command != "status" {
		t.Fatalf("Command = %q", got.Command)
	}
	if v, _ := got.StringOption("format"); v != "json" {
		t.Errorf("format = %v", got.Options["format"])
	}
	if v, _ := got.StringOption("verbose"); v != "true" {
		t.Errorf("verbose = %v, want string true", got.Options["verbose"])
	}
	if b, ok := got.Options["v"].(bool); !ok || !b {
		t.Errorf("v = %v, want bool true", got.Options["v"])
	}
	if len(got.Arguments) != 1 || got.Arguments[0] != "extra" {
		t.Errorf("Arguments = %v", got.Arguments)
	}
}

func TestParse_Quoting(t *testing.T) {
	p := NewParser()

	got := p.Parse(`insert "hello \"world\"" 'literal \n text'`)
	want := []string{`hello "world"`, `literal \n text`}
	if len(got.Arguments) != len(want) {
		t.Fatalf("Arguments = %v, want %v", got.Arguments, want)
	}
	for i := range want {
		if got.Arguments[i] != want[i] {
			t.Errorf("Arguments[%d] = %q, want %q", i, got.Arguments[i], want[i])
		}
	}
}

func TestParse_VerticalTerminator(t *testing.T) {
	p := NewParser()

	got := p.Parse(`SELECT * FROM users WHERE id = 1\G`)
	if !got.HasVerticalTerminator {
		t.Fatal("expected HasVerticalTerminator = true")
	}
	if got.Command != "SELECT" {
		t.Errorf("Command = %q", got.Command)
	}
	last := got.Arguments[len(got.Arguments)-1]
	if strings.Contains(last, `\G`) {
		t.Errorf("trailing \\G leaked into arguments: %v", got.Arguments)
	}
}

// TestParse_Totality exercises property P1: Parse never panics and never
// poisons subsequent calls, across a battery of degenerate inputs.
func TestParse_Totality(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		`\`,
		`"`,
		`'`,
		`\G`,
		`"unterminated`,
		`'unterminated`,
		"日本語 テスト",
		strings.Repeat("a ", 10*1024),
	}

	p := NewParser()
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Parse(%q) panicked: %v", in, r)
				}
			}()
			_ = p.Parse(in)
		}()
	}

	// A call after the battery must behave identically to a fresh parser.
	a := NewParser().Parse("ping")
	b := p.Parse("ping")
	if a.Command != b.Command {
		t.Errorf("parser state leaked across calls: %q vs %q", a.Command, b.Command)
	}
}

func TestParse_UnclosedQuoteExtendsToEnd(t *testing.T) {
	p := NewParser()
	got := p.Parse(`say "never closed`)
	if got.Command != "say" {
		t.Fatalf("Command = %q", got.Command)
	}
	if len(got.Arguments) != 1 || got.Arguments[0] != "never closed" {
		t.Errorf("Arguments = %v", got.Arguments)
	}
}
