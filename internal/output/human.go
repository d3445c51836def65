package output

import (
	"strings"

	"ocelot/internal/core"
)

type humanFormatter struct{}

// FormatResult renders a result set as an aligned text table followed by
// the statement message. Results without columns render the message only.
func (humanFormatter) FormatResult(result *core.QueryResult) (string, error) {
	if result == nil {
		return "", nil
	}
	if len(result.Columns) == 0 {
		return result.Message, nil
	}

	widths := make([]int, len(result.Columns))
	for i, col := range result.Columns {
		widths[i] = len(col)
	}
	cells := make([][]string, len(result.Rows))
	for r, row := range result.Rows {
		cells[r] = make([]string, len(result.Columns))
		for i, col := range result.Columns {
			cells[r][i] = row[col].String()
			if len(cells[r][i]) > widths[i] {
				widths[i] = len(cells[r][i])
			}
		}
	}

	var b strings.Builder
	for i, col := range result.Columns {
		if i > 0 {
			b.WriteString("  ")
		}
		pad(&b, col, widths[i])
	}
	b.WriteByte('\n')
	for i, w := range widths {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteByte('\n')
	for _, row := range cells {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			pad(&b, cell, widths[i])
		}
		b.WriteByte('\n')
	}
	b.WriteString(result.Message)
	return b.String(), nil
}

func pad(b *strings.Builder, s string, width int) {
	b.WriteString(s)
	for range width - len(s) {
		b.WriteByte(' ')
	}
}
