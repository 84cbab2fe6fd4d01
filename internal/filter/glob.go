package filter

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/shellbridge/shellbridge/internal/result"
)

// globFields is the fixed set of message attributes the client-side
// glob filter can match against.
var globFields = map[string]bool{
	"type": true, "source": true, "topic": true, "channel": true,
}

// GlobFilter is the simpler filter StreamingShell's `filter` built-in
// uses day to day: a space-delimited list of `field:glob` pairs using
// only `*`/`?` wildcards (see globMatch). An empty filter matches
// everything.
type GlobFilter struct {
	pairs map[string]string // field -> glob pattern
}

// ParseGlobFilter parses a string like "type:data source:sensor*". A
// pair naming a field outside globFields is skipped rather than rejected,
// so a client can send a filter naming fields a future server version
// added without breaking against this one.
func ParseGlobFilter(s string) (*GlobFilter, error) {
	f := &GlobFilter{pairs: map[string]string{}}
	s = strings.TrimSpace(s)
	if s == "" {
		return f, nil
	}
	for _, tok := range strings.Fields(s) {
		field, pattern, ok := strings.Cut(tok, ":")
		if !ok {
			return nil, newParseError("expected 'field:glob' but found '%s'", tok)
		}
		field = strings.ToLower(field)
		if !globFields[field] {
			continue
		}
		f.pairs[field] = pattern
	}
	return f, nil
}

// IsEmpty reports whether the filter has no pairs (matches everything).
func (f *GlobFilter) IsEmpty() bool {
	return len(f.pairs) == 0
}

// String renders the filter as a re-parseable "field:glob ..." string,
// for display (e.g. `stats`/`filter show`).
func (f *GlobFilter) String() string {
	if f.IsEmpty() {
		return "(no filter)"
	}
	fields := make([]string, 0, len(f.pairs))
	for field := range f.pairs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ":" + f.pairs[field]
	}
	return strings.Join(parts, " ")
}

// Matches reports whether msg satisfies every field:glob pair whose field
// is present on msg. A pair whose field is absent (e.g. "topic" on a
// message with no such metadata key) is ignored rather than treated as a
// mismatch against an empty value.
func (f *GlobFilter) Matches(msg result.Message) bool {
	if f.IsEmpty() {
		return true
	}
	for field, pattern := range f.pairs {
		value, present := fieldValue(msg, field)
		if !present {
			continue
		}
		if !globMatch(pattern, value) {
			return false
		}
	}
	return true
}

func fieldValue(msg result.Message, field string) (string, bool) {
	switch field {
	case "type":
		return string(msg.Type), true
	case "source":
		return msg.Source, msg.Source != ""
	case "topic":
		return metaString(msg, "topic")
	case "channel":
		return metaString(msg, "channel")
	default:
		return "", false
	}
}

func metaString(msg result.Message, key string) (string, bool) {
	if msg.Metadata == nil {
		return "", false
	}
	v, ok := msg.Metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// globMatch reports whether value matches pattern using only `*`/`?`
// wildcards, delegating to filepath.Match after escaping `[` and `\` so
// that every other character is literal. As in filepath.Match, `*` and
// `?` do not match '/'.
func globMatch(pattern, value string) bool {
	pattern = strings.NewReplacer(`\`, `\\`, `[`, `\[`).Replace(pattern)
	ok, err := filepath.Match(pattern, value)
	if err != nil {
		return false
	}
	return ok
}
