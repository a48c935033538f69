package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// column describes one table column. A zero width leaves cells untrimmed.
type column struct {
	title   string
	width   int
	numeric bool
	status  bool
}

var statusColors = map[string]text.Colors{
	"succeeded":  {text.FgGreen},
	"ok":         {text.FgGreen},
	"processing": {text.FgYellow},
	"failed":     {text.FgRed},
	"FAIL":       {text.FgRed, text.Bold},
}

// writeTable renders a rounded table on terminals and tab-separated rows otherwise.
func writeTable(w io.Writer, columns []column, rows [][]string) {
	for _, row := range rows {
		for i := range row {
			if i < len(columns) && columns[i].width > 0 {
				row[i] = truncate(row[i], columns[i].width)
			}
		}
	}

	if !isTerminal(w) {
		titles := make([]string, len(columns))
		for i, col := range columns {
			titles[i] = col.title
		}
		fmt.Fprintln(w, strings.Join(titles, "\t"))
		for _, row := range rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.title
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if col.numeric {
			configs[i].Align = text.AlignRight
		}
		if col.status {
			configs[i].Transformer = colorStatus
		}
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	tw.SetColumnConfigs(configs)
	fmt.Fprintln(w, tw.Render())
}

func colorStatus(value any) string {
	s := fmt.Sprint(value)
	if colors, ok := statusColors[s]; ok {
		return colors.Sprint(s)
	}
	return s
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
