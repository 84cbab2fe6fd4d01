// Package format renders a CommandResult as table, JSON, CSV, or MySQL-style
// vertical (\G) text, the way the interactive shell presents command output.
package format

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/shellbridge/shellbridge/internal/result"
)

// OutputFormat selects a rendering.
type OutputFormat string

const (
	Table    OutputFormat = "table"
	JSON     OutputFormat = "json"
	CSV      OutputFormat = "csv"
	Vertical OutputFormat = "vertical"
)

// Parse maps a user-typed format name (as given to --format) to an
// OutputFormat, falling back to Table for anything unrecognized.
func Parse(name string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return JSON
	case "csv":
		return CSV
	case "vertical", "g":
		return Vertical
	default:
		return Table
	}
}

// Render formats r according to format. It never returns an empty string:
// every branch guarantees at least a status line.
func Render(r result.CommandResult, format OutputFormat) string {
	switch format {
	case JSON:
		return renderJSON(r)
	case CSV:
		return renderCSV(r)
	case Vertical:
		return renderVertical(r)
	default:
		return renderTable(r)
	}
}

func renderJSON(r result.CommandResult) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Sprintf("{\"success\":false,\"error\":%q}\n", err.Error())
	}
	return buf.String()
}

// rows converts r.Data into a uniform list of ordered key/value records,
// suitable for both the table and CSV renderers. A slice of maps becomes
// one record per element, with the sorted union of keys as columns; a
// single map becomes one "field"/"value" record per key, sorted by key;
// anything else becomes a single "value" column.
func rows(data any) (columns []string, records []map[string]string) {
	switch v := data.(type) {
	case []map[string]any:
		seen := map[string]bool{}
		for _, m := range v {
			for k := range m {
				if !seen[k] {
					seen[k] = true
					columns = append(columns, k)
				}
			}
		}
		sort.Strings(columns)
		for _, m := range v {
			records = append(records, stringify(m))
		}
		return columns, records
	case map[string]any:
		columns = []string{"field", "value"}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			records = append(records, map[string]string{"field": k, "value": toDisplay(v[k])})
		}
		return columns, records
	case []any:
		columns = []string{"value"}
		for _, item := range v {
			records = append(records, map[string]string{"value": toDisplay(item)})
		}
		return columns, records
	case []string:
		columns = []string{"value"}
		for _, item := range v {
			records = append(records, map[string]string{"value": item})
		}
		return columns, records
	case nil:
		return nil, nil
	default:
		columns = []string{"value"}
		records = append(records, map[string]string{"value": toDisplay(v)})
		return columns, records
	}
}

func stringify(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = toDisplay(v)
	}
	return out
}

func toDisplay(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		s := string(b)
		if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
			var unquoted string
			if err := json.Unmarshal(b, &unquoted); err == nil {
				return unquoted
			}
		}
		return s
	}
}

func renderTable(r result.CommandResult) string {
	var buf bytes.Buffer

	if !r.Success {
		buf.WriteString("ERROR: ")
		if r.Error != nil {
			buf.WriteString(*r.Error)
		} else {
			buf.WriteString("unknown error")
		}
		buf.WriteByte('\n')
		return buf.String()
	}

	columns, records := rows(r.Data)
	if len(columns) == 0 {
		if r.Message != nil {
			fmt.Fprintf(&buf, "%s\n", *r.Message)
		} else {
			buf.WriteString("OK\n")
		}
		return buf.String()
	}

	tw := tablewriter.NewWriter(&buf)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = strings.ToUpper(c)
	}
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	for _, rec := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := rec[c]; ok {
				row[i] = v
			} else {
				row[i] = "NULL"
			}
		}
		tw.Append(row)
	}
	tw.Render()
	return buf.String()
}

func renderCSV(r result.CommandResult) string {
	var buf bytes.Buffer

	if !r.Success {
		cw := csv.NewWriter(&buf)
		msg := "unknown error"
		if r.Error != nil {
			msg = *r.Error
		}
		_ = cw.Write([]string{"error", msg})
		cw.Flush()
		return buf.String()
	}

	columns, records := rows(r.Data)
	cw := csv.NewWriter(&buf)
	if len(columns) == 0 {
		_ = cw.Write([]string{"status"})
		_ = cw.Write([]string{"ok"})
		cw.Flush()
		return buf.String()
	}

	_ = cw.Write(columns)
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = rec[c]
		}
		_ = cw.Write(row)
	}
	cw.Flush()
	return buf.String()
}

// renderVertical mimics MySQL's \G output: one "*** N. row ***" block per
// record, each field on its own "name: value" line. A single map is one
// record whose fields are its keys.
func renderVertical(r result.CommandResult) string {
	var buf bytes.Buffer

	if !r.Success {
		buf.WriteString("*** ERROR ***\n")
		if r.Error != nil {
			fmt.Fprintf(&buf, "error: %s\n", *r.Error)
		}
		return buf.String()
	}

	columns, records := rows(r.Data)
	if m, ok := r.Data.(map[string]any); ok {
		columns, records = rows([]map[string]any{m})
	}
	if len(columns) == 0 {
		if r.Message != nil {
			fmt.Fprintf(&buf, "%s\n", *r.Message)
		} else {
			buf.WriteString("OK\n")
		}
		return buf.String()
	}

	width := 0
	for _, c := range columns {
		if len(c) > width {
			width = len(c)
		}
	}

	for i, rec := range records {
		fmt.Fprintf(&buf, "*** %d. row ***\n", i+1)
		for _, c := range columns {
			fmt.Fprintf(&buf, "%*s: %s\n", width, c, rec[c])
		}
	}
	buf.WriteString(rowCountSuffix(len(records), r.Metadata))
	return buf.String()
}

// rowCountSuffix renders MySQL's "N row(s) in set (S.SS sec)" line for
// Vertical output when metadata carries a duration_ms timing, and just
// "N row(s) in set" otherwise.
func rowCountSuffix(n int, metadata map[string]any) string {
	plural := "s"
	if n == 1 {
		plural = ""
	}
	if metadata != nil {
		if ms, ok := durationMillis(metadata["duration_ms"]); ok {
			return fmt.Sprintf("%d row%s in set (%.2f sec)\n", n, plural, ms/1000)
		}
	}
	return fmt.Sprintf("%d row%s in set\n", n, plural)
}

func durationMillis(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
