// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// Status colors a table cell in rich mode.
type Status int

const (
	StatusNone Status = iota
	StatusOK
	StatusWarning
	StatusError
)

// Cell is one table entry.
type Cell struct {
	Text   string
	Status Status
}

// Plain returns an uncolored cell.
func Plain(text string) Cell { return Cell{Text: text} }

// Table is a titled grid of cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]Cell
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...Cell) {
	t.Rows = append(t.Rows, cells)
}

// Render formats the table.
//
// Description:
//
//	ModeMachine emits the headers and rows as tab-separated lines with no
//	title. ModeRich left-aligns columns, styles headers and cell statuses,
//	and wraps the result in a rounded box under the title.
func (t Table) Render(mode Mode) string {
	if mode == ModeMachine {
		var b strings.Builder
		if len(t.Headers) > 0 {
			b.WriteString(strings.Join(t.Headers, "\t"))
			b.WriteByte('\n')
		}
		for _, row := range t.Rows {
			texts := make([]string, len(row))
			for i, c := range row {
				texts[i] = c.Text
			}
			b.WriteString(strings.Join(texts, "\t"))
			b.WriteByte('\n')
		}
		return b.String()
	}

	widths := t.columnWidths()
	lines := make([]string, 0, len(t.Rows)+2)
	if len(t.Headers) > 0 {
		cells := make([]string, len(t.Headers))
		for i, h := range t.Headers {
			cells[i] = Styles.Header.Render(pad(h, widths[i]))
		}
		lines = append(lines, strings.Join(cells, "  "))
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = styleFor(c.Status).Render(pad(c.Text, widths[i]))
		}
		lines = append(lines, strings.Join(cells, "  "))
	}

	body := strings.Join(lines, "\n")
	if t.Title != "" {
		body = Styles.Title.Render(t.Title) + "\n" + body
	}
	return Styles.Box.Render(body) + "\n"
}

func (t Table) columnWidths() []int {
	n := len(t.Headers)
	for _, row := range t.Rows {
		n = max(n, len(row))
	}
	widths := make([]int, n)
	for i, h := range t.Headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.Rows {
		for i, c := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(c.Text))
		}
	}
	return widths
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func styleFor(s Status) lipgloss.Style {
	switch s {
	case StatusOK:
		return Styles.Success
	case StatusWarning:
		return Styles.Warning
	case StatusError:
		return Styles.Error
	default:
		return lipgloss.NewStyle()
	}
}
