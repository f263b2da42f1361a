package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// TableFormatter formats data as an aligned text table.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format renders data. A *Table is rendered as is; a slice of objects
// becomes one row per element with the union of their keys as columns;
// any other object becomes a FIELD/VALUE table. Scalars print on one line.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	if t, ok := data.(*Table); ok {
		return t.render(w, f.NoHeaders, f.Wide)
	}

	generic, err := project(data)
	if err != nil {
		return err
	}
	switch v := generic.(type) {
	case []any:
		return objectsTable(v).render(w, f.NoHeaders, f.Wide)
	case map[string]any:
		return fieldTable(v).render(w, f.NoHeaders, f.Wide)
	default:
		_, err := fmt.Fprintln(w, cell(v))
		return err
	}
}

func objectsTable(items []any) *Table {
	keys := map[string]struct{}{}
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			for k := range m {
				keys[k] = struct{}{}
			}
		}
	}
	if len(keys) == 0 {
		t := &Table{}
		t.SetHeaders("VALUE")
		for _, item := range items {
			t.AddRow(cell(item))
		}
		return t
	}

	cols := sortedKeys(keys)
	t := &Table{}
	for _, c := range cols {
		t.Headers = append(t.Headers, strings.ToUpper(toSnakeCase(c)))
	}
	for _, item := range items {
		m, _ := item.(map[string]any)
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = cell(m[c])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func fieldTable(m map[string]any) *Table {
	keys := make(map[string]struct{}, len(m))
	for k := range m {
		keys[k] = struct{}{}
	}
	t := &Table{}
	t.SetHeaders("FIELD", "VALUE")
	for _, k := range sortedKeys(keys) {
		t.AddRow(k, cell(m[k]))
	}
	return t
}

func sortedKeys(keys map[string]struct{}) []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// cell renders one generic JSON value for a table cell.
func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		if val == "" {
			return "-"
		}
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		if len(val) == 0 {
			return "-"
		}
		return fmt.Sprintf("[%d items]", len(val))
	case map[string]any:
		if len(val) == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", len(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}

// toSnakeCase converts camelCase to snake_case; spaces and dots become
// underscores.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		switch {
		case r == ' ' || r == '.':
			result.WriteByte('_')
			continue
		case i > 0 && r >= 'A' && r <= 'Z':
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return result.String()
}

// Table is explicitly shaped tabular data. Columns whose header ends
// with "+" are shown only in wide mode (the marker is not printed).
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// SetHeaders sets the table headers.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}

// Render renders every column of the table.
func (t *Table) Render(w io.Writer) error {
	return t.render(w, false, true)
}

// Records returns the rows as header-keyed maps for structured output.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				rec[strings.ToLower(strings.TrimSuffix(h, "+"))] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

func (t *Table) render(w io.Writer, noHeaders, wide bool) error {
	var keep []int
	var headers []string
	for i, h := range t.Headers {
		if strings.HasSuffix(h, "+") {
			if !wide {
				continue
			}
			h = strings.TrimSuffix(h, "+")
		}
		keep = append(keep, i)
		headers = append(headers, h)
	}
	if len(t.Headers) == 0 && len(t.Rows) > 0 {
		for i := range t.Rows[0] {
			keep = append(keep, i)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(headers) > 0 {
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}
	for _, row := range t.Rows {
		cells := make([]string, 0, len(keep))
		for _, i := range keep {
			if i < len(row) {
				cells = append(cells, row[i])
			} else {
				cells = append(cells, "")
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
