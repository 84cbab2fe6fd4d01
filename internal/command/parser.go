package command

import (
	"strconv"
	"strings"
)

// Parser tokenizes one line of shell input into a ParsedCommand. It is
// total: no input causes it to panic or return an error, and it keeps no
// state between calls, so successive Parse calls are fully independent
// (property P1 in the specification this module implements).
type Parser struct{}

// NewParser returns a ready-to-use Parser. Parser holds no state, so the
// zero value also works; NewParser exists for symmetry with the rest of
// the package's constructors.
func NewParser() *Parser {
	return &Parser{}
}

// Parse tokenizes input into a ParsedCommand. It never fails.
func (p *Parser) Parse(input string) ParsedCommand {
	raw := input
	body, vertical := splitVerticalTerminator(input)

	tokens := tokenize(body)

	cmd := ParsedCommand{
		Arguments: []string{},
		Options:   map[string]any{},
		Raw:       raw,
	}
	if vertical {
		cmd.HasVerticalTerminator = true
	}

	if len(tokens) == 0 {
		cmd.Raw = ""
		return cmd
	}

	cmd.Command = tokens[0]
	for _, tok := range tokens[1:] {
		switch {
		case strings.HasPrefix(tok, "--"):
			name := tok[2:]
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				cmd.Options[name[:eq]] = name[eq+1:]
			} else if name != "" {
				cmd.Options[name] = "true"
			}
		case isShortFlag(tok):
			cmd.Options[tok[1:]] = true
		default:
			cmd.Arguments = append(cmd.Arguments, tok)
		}
	}

	return cmd
}

// isShortFlag reports whether tok is a single-dash, single-character flag
// like "-v". Anything else starting with "-" (negative numbers, "-file",
// a lone "-") is treated as a positional argument.
func isShortFlag(tok string) bool {
	if len(tok) != 2 || tok[0] != '-' {
		return false
	}
	c := tok[1]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// splitVerticalTerminator right-trims whitespace from input and, if what
// remains ends with the literal two-character sequence "\G", strips it and
// reports vertical=true. The text returned for tokenizing has trailing
// whitespace trimmed again so a trailing "\G" never leaves a dangling
// blank token.
func splitVerticalTerminator(input string) (body string, vertical bool) {
	trimmed := strings.TrimRight(input, " \t\r\n")
	if strings.HasSuffix(trimmed, `\G`) {
		return strings.TrimRight(trimmed[:len(trimmed)-2], " \t\r\n"), true
	}
	return input, false
}

// tokenize splits s into whitespace-separated tokens, honoring quoted
// regions. Double-quoted regions process backslash escapes for ", \, n, t,
// r; single-quoted regions are taken literally. An unclosed quote extends
// to end-of-input rather than erroring, keeping the function total.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	haveToken := false

	const (
		stateNone = iota
		stateSingle
		stateDouble
	)
	state := stateNone

	flush := func() {
		if haveToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			haveToken = false
		}
	}

	n := len(s)
	for i := 0; i < n; i++ {
		c := s[i]
		switch state {
		case stateNone:
			switch {
			case c == ' ' || c == '\t' || c == '\r' || c == '\n':
				flush()
			case c == '\'':
				state = stateSingle
				haveToken = true
			case c == '"':
				state = stateDouble
				haveToken = true
			default:
				haveToken = true
				cur.WriteByte(c)
			}
		case stateSingle:
			if c == '\'' {
				state = stateNone
			} else {
				cur.WriteByte(c)
			}
		case stateDouble:
			switch {
			case c == '"':
				state = stateNone
			case c == '\\' && i+1 < n:
				next := s[i+1]
				switch next {
				case '"':
					cur.WriteByte('"')
					i++
				case '\\':
					cur.WriteByte('\\')
					i++
				case 'n':
					cur.WriteByte('\n')
					i++
				case 't':
					cur.WriteByte('\t')
					i++
				case 'r':
					cur.WriteByte('\r')
					i++
				default:
					cur.WriteByte(c)
				}
			default:
				cur.WriteByte(c)
			}
		}
	}
	flush()

	return tokens
}

// quoteIfNeeded re-renders a token that may contain whitespace or quote
// characters in quoted form. Nothing in this module calls it, Parse
// included.
func quoteIfNeeded(tok string) string {
	if tok == "" {
		return "''"
	}
	if strings.ContainsAny(tok, " \t\"'\\") {
		return strconv.Quote(tok)
	}
	return tok
}
