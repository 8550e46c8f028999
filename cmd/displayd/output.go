package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/1broseidon/displayd/internal/ipc"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	portraitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	armedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func printJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func formatSize(s ipc.Size) string {
	if s.Width == 0 && s.Height == 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// renderTable pads cells to column width. Styled output is bolded and
// coloured per cell by style, which may be nil.
func renderTable(w io.Writer, header []string, rows [][]string, styled bool, style func(row, col int) lipgloss.Style) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string, cellStyle func(col int) lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if styled {
				parts[i] = cellStyle(i).Width(widths[i]).Render(cell)
			} else {
				parts[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
			}
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(w, line(header, func(int) lipgloss.Style { return headerStyle }))
	for r, row := range rows {
		fmt.Fprintln(w, line(row, func(col int) lipgloss.Style {
			if style == nil {
				return lipgloss.NewStyle()
			}
			return style(r, col)
		}))
	}
}

func printDisplays(w io.Writer, displays []ipc.DisplayInfo, styled bool) {
	if len(displays) == 0 {
		fmt.Fprintln(w, "no displays")
		return
	}
	rows := make([][]string, len(displays))
	for i, d := range displays {
		rows[i] = []string{
			fmt.Sprint(d.ID),
			d.Name,
			fmt.Sprintf("%d,%d", d.X, d.Y),
			formatSize(d.Logical),
			formatSize(d.Physical),
			fmt.Sprint(d.Rotation),
			fmt.Sprint(d.Observers),
		}
	}
	renderTable(w, []string{"ID", "NAME", "POS", "LOGICAL", "PHYSICAL", "ROTATION", "OBSERVERS"}, rows, styled,
		func(r, col int) lipgloss.Style {
			if col == 5 && (displays[r].Rotation == 90 || displays[r].Rotation == 270) {
				return portraitStyle
			}
			return lipgloss.NewStyle()
		})
}

func printSessions(w io.Writer, sessions []ipc.SessionInfo, styled bool) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no sessions")
		return
	}
	rows := make([][]string, len(sessions))
	for i, s := range sessions {
		rows[i] = []string{s.ID, s.Source, s.Phase, s.Token, s.CreatedAt.Format(time.TimeOnly)}
	}
	renderTable(w, []string{"SESSION", "SOURCE", "PHASE", "TOKEN", "CREATED"}, rows, styled,
		func(r, col int) lipgloss.Style {
			if col == 2 && sessions[r].Phase == "armed" {
				return armedStyle
			}
			return lipgloss.NewStyle()
		})
}

func formatRotationEvent(ev ipc.RotationEvent, styled bool) string {
	ts := ev.Time.Format(time.TimeOnly)
	rot := fmt.Sprintf("%d", ev.Rotation)
	if styled {
		ts = dimStyle.Render(ts)
		if ev.Rotation == 90 || ev.Rotation == 270 {
			rot = portraitStyle.Render(rot)
		}
	}
	return fmt.Sprintf("%s display %d rotation %s logical %s physical %s",
		ts, ev.DisplayID, rot, formatSize(ev.Logical), formatSize(ev.Physical))
}
