package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/serialpong/internal/led"
	"github.com/vovakirdan/serialpong/internal/pong"
)

// glyphStyles maps frame glyphs to lipgloss styles.
var glyphStyles = map[byte]lipgloss.Style{
	pong.BorderChar: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	pong.SideChar:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	pong.PaddleChar: lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
	pong.BallChar:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// RenderFrame styles the rows of one frame, one output line per row.
// Line feeds inside rows are dropped. Adjacent bytes with the same style
// are rendered as one run to minimize ANSI escape sequences.
func RenderFrame(rows []string) string {
	var sb strings.Builder

	for y, row := range rows {
		if y > 0 {
			sb.WriteByte('\n')
		}
		row = strings.TrimRight(row, "\r\n")

		x := 0
		for x < len(row) {
			start := row[x]
			_, styled := glyphStyles[start]

			end := x
			for end < len(row) {
				_, s := glyphStyles[row[end]]
				if s != styled || (styled && row[end] != start) {
					break
				}
				end++
			}

			if styled {
				sb.WriteString(glyphStyles[start].Render(row[x:end]))
			} else {
				sb.WriteString(row[x:end])
			}
			x = end
		}
	}
	return sb.String()
}

var lightColors = map[led.Color]lipgloss.Color{
	led.Red:    lipgloss.Color("9"),
	led.Yellow: lipgloss.Color("11"),
	led.Green:  lipgloss.Color("10"),
}

// RenderLights draws the three lights, lit ones in colour.
func RenderLights(l led.Lights) string {
	off := lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	cells := make([]string, 0, 3)
	for _, c := range []led.Color{led.Red, led.Yellow, led.Green} {
		if l.On(c) {
			cells = append(cells, lipgloss.NewStyle().Foreground(lightColors[c]).Bold(true).Render("●"))
		} else {
			cells = append(cells, off.Render("○"))
		}
	}
	return strings.Join(cells, "  ")
}
