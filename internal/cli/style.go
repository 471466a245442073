package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/me/gopop/pkg/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	statusStyles = map[model.RequestStatus]lipgloss.Style{
		model.RequestStatusActive:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		model.RequestStatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		model.RequestStatusCanceled:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		model.RequestStatusDismissed: dimStyle,
	}
)

func styleStatus(st model.RequestStatus) string {
	if s, ok := statusStyles[st]; ok {
		return s.Render(string(st))
	}
	return string(st)
}

// age renders t relative to now ("3 seconds ago").
func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// table writes rows as space-aligned columns. Widths are measured on the
// visible text so styled cells line up.
type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(w io.Writer) {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	line := func(cells []string, style *lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if style != nil {
				cell = style.Render(cell)
			}
			pad := widths[i] - lipgloss.Width(cell)
			if i == len(cells)-1 {
				pad = 0
			}
			parts[i] = cell + strings.Repeat(" ", pad)
		}
		fmt.Fprintln(w, strings.Join(parts, "  "))
	}

	line(t.header, &headerStyle)
	for _, row := range t.rows {
		line(row, nil)
	}
}
