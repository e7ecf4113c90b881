package console

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/grammatic/grammatic/pkg/styles"
)

// TableConfig describes a table to render.
type TableConfig struct {
	Title     string
	Headers   []string
	Rows      [][]string
	ShowTotal bool
	TotalRow  []string
}

// RenderTable renders a bordered table. An empty config renders as "".
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 {
		return ""
	}

	rows := config.Rows
	if config.ShowTotal && len(config.TotalRow) > 0 {
		rows = append(append([][]string{}, rows...), config.TotalRow)
	}
	totalIndex := -1
	if config.ShowTotal && len(config.TotalRow) > 0 {
		totalIndex = len(rows) - 1
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.TableBorder).
		Headers(config.Headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.TableHeader
			case row == totalIndex:
				return styles.TableTotal
			default:
				return styles.TableCell
			}
		})

	var b strings.Builder
	if config.Title != "" {
		b.WriteString(styles.TableTitle.Render(config.Title))
		b.WriteString("\n")
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

// RenderTableAsJSON renders rows as a JSON array of objects keyed by
// normalised header names ("Grammar Version" becomes "grammar_version").
func RenderTableAsJSON(config TableConfig) (string, error) {
	if len(config.Headers) == 0 {
		return "[]", nil
	}

	keys := make([]string, len(config.Headers))
	for i, h := range config.Headers {
		keys[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
	}

	out := make([]map[string]string, 0, len(config.Rows))
	for _, row := range config.Rows {
		item := make(map[string]string, len(keys))
		for i, key := range keys {
			if i < len(row) {
				item[key] = row[i]
			}
		}
		out = append(out, item)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal table: %w", err)
	}
	return string(data), nil
}

// RenderStruct renders a slice of structs as a table. Columns come from
// `console:"header:Name"` tags; `console:"-"` hides a field and
// `omitempty` drops a column whose cells are all empty.
func RenderStruct(items any) string {
	v := reflect.ValueOf(items)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return ""
	}

	elemType := v.Type().Elem()
	if elemType.Kind() == reflect.Pointer {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return ""
	}

	type column struct {
		index     int
		header    string
		omitEmpty bool
	}
	var columns []column
	for i := 0; i < elemType.NumField(); i++ {
		field := elemType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("console")
		if tag == "-" {
			continue
		}
		col := column{index: i, header: field.Name}
		for _, part := range strings.Split(tag, ",") {
			switch {
			case strings.HasPrefix(part, "header:"):
				col.header = strings.TrimPrefix(part, "header:")
			case part == "omitempty":
				col.omitEmpty = true
			}
		}
		columns = append(columns, col)
	}

	cells := make([][]string, v.Len())
	for r := 0; r < v.Len(); r++ {
		elem := v.Index(r)
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		row := make([]string, len(columns))
		for c, col := range columns {
			row[c] = formatCell(elem.Field(col.index))
		}
		cells[r] = row
	}

	var headers []string
	var keep []int
	for c, col := range columns {
		if col.omitEmpty {
			empty := true
			for _, row := range cells {
				if row[c] != "" {
					empty = false
					break
				}
			}
			if empty {
				continue
			}
		}
		headers = append(headers, col.header)
		keep = append(keep, c)
	}

	rows := make([][]string, len(cells))
	for r, row := range cells {
		projected := make([]string, len(keep))
		for i, c := range keep {
			projected[i] = row[c]
		}
		rows[r] = projected
	}

	return RenderTable(TableConfig{Headers: headers, Rows: rows})
}

func formatCell(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return ""
		}
		return formatCell(v.Elem())
	case reflect.Slice:
		parts := make([]string, v.Len())
		for i := 0; i < v.Len(); i++ {
			parts[i] = formatCell(v.Index(i))
		}
		return strings.Join(parts, ", ")
	case reflect.Bool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	default:
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprint(v.Interface())
	}
}
