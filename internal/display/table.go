// Package display renders stored sample tables for the console.
package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/mockdaq/internal/sample"
)

const separator = " | "

// Columns shown with two decimal places; other floats get one.
var twoDecimalColumns = map[string]bool{
	"latitude":  true,
	"longitude": true,
}

type cell struct {
	text    string
	numeric bool
}

func formatCell(column string, v any) cell {
	switch x := v.(type) {
	case nil:
		return cell{text: sample.NullToken}
	case float64:
		prec := 1
		if twoDecimalColumns[column] {
			prec = 2
		}
		return cell{text: strconv.FormatFloat(x, 'f', prec, 64), numeric: true}
	case int64:
		return cell{text: strconv.FormatInt(x, 10), numeric: true}
	case []byte:
		return cell{text: string(x)}
	case string:
		return cell{text: x}
	default:
		return cell{text: fmt.Sprint(x)}
	}
}

// WriteTable writes a header, a dashed rule and one line per row. Columns are
// as wide as their widest value, numbers right-aligned and text left-aligned,
// separated by " | ". NULL values print as NULL.
func WriteTable(w io.Writer, columns []string, rows [][]any) error {
	cells := make([][]cell, len(rows))
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has %d values, want %d", r, len(row), len(columns))
		}
		cells[r] = make([]cell, len(row))
		for i, v := range row {
			c := formatCell(columns[i], v)
			cells[r][i] = c
			widths[i] = max(widths[i], len(c.text))
		}
	}

	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = pad(c, widths[i], false)
	}
	header := strings.Join(parts, separator)
	if _, err := fmt.Fprintf(w, "%s\n%s\n", header, strings.Repeat("-", len(header))); err != nil {
		return err
	}

	for _, row := range cells {
		for i, c := range row {
			parts[i] = pad(c.text, widths[i], c.numeric)
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, separator)); err != nil {
			return err
		}
	}
	return nil
}

func pad(s string, width int, right bool) string {
	if len(s) >= width {
		return s
	}
	fill := strings.Repeat(" ", width-len(s))
	if right {
		return fill + s
	}
	return s + fill
}
