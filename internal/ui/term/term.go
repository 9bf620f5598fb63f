// Package term renders presentational units for a terminal.
package term

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/openhis/slotkit/internal/ui"
)

// Kinds understood by Render. Extensions carry their kind in metadata.
const (
	KindLink     = "link"
	KindBanner   = "banner"
	KindCard     = "card"
	KindPatients = "patients"
)

var (
	colorBrand  = lipgloss.Color("#0f62fe")
	colorMuted  = lipgloss.Color("#8d8d8d")
	colorError  = lipgloss.Color("#da1e28")
	colorBorder = lipgloss.Color("#393939")

	titleStyle  = lipgloss.NewStyle().Foreground(colorBrand).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
	activeStyle = lipgloss.NewStyle().Foreground(colorBrand).Bold(true).Underline(true)

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, true, false).
			BorderForeground(colorBrand).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// Render draws props as the given kind. Unknown kinds render the title.
func Render(kind string, p ui.Props) string {
	switch kind {
	case KindLink:
		return Link(p)
	case KindBanner:
		return Banner(p)
	case KindCard:
		return Card(p)
	case KindPatients:
		return Patients(p)
	default:
		return titleStyle.Render(p.StringOr(ui.KeyTitle, p.StringOr(ui.KeyName, ui.Placeholder)))
	}
}

// Link draws a dashboard link as "› Title  /path".
func Link(p ui.Props) string {
	title := p.StringOr(ui.KeyTitle, p.StringOr(ui.KeyName, ui.Placeholder))
	style := lipgloss.NewStyle()
	marker := "  "
	if p.Bool(ui.KeyActive) {
		style = activeStyle
		marker = "› "
	}
	href := ui.LinkHref(p.String(ui.KeyBase), p.StringOr(ui.KeyPath, p.String(ui.KeyName)))
	return marker + style.Render(title) + "  " + mutedStyle.Render(href)
}

// Banner draws a page header.
func Banner(p ui.Props) string {
	sub := p.StringOr(ui.KeySubtitle, ui.Placeholder)
	body := mutedStyle.Render(sub) + "\n" + titleStyle.Render(p.StringOr(ui.KeyTitle, ui.Placeholder))
	return bannerStyle.Render(body)
}

// Card draws a bordered listing.
func Card(p ui.Props) string {
	title := p.StringOr(ui.KeyTitle, ui.Placeholder)
	rows := p.Rows(ui.KeyRows)

	var lines []string
	switch {
	case len(rows) > 0:
		for _, r := range rows {
			line := orPlaceholder(r.Primary)
			if r.Secondary != "" {
				line += "  " + mutedStyle.Render(r.Secondary)
			}
			if r.Meta != "" {
				line += "  " + mutedStyle.Render(r.Meta)
			}
			lines = append(lines, line)
		}
	case p.Bool(ui.KeyLoading):
		lines = append(lines, mutedStyle.Render("Loading..."))
	case p.Err(ui.KeyError) != nil:
		lines = append(lines, errorStyle.Render("Unable to load "+strings.ToLower(title)))
	default:
		lines = append(lines, mutedStyle.Render("No "+strings.ToLower(title)))
	}
	return cardStyle.Render(titleStyle.Render(title) + "\n" + strings.Join(lines, "\n"))
}

// Patients draws a patient table with aligned columns.
func Patients(p ui.Props) string {
	rows := p.Patients(ui.KeyPatients)
	if len(rows) == 0 {
		switch {
		case p.Bool(ui.KeyLoading):
			return mutedStyle.Render("Searching...")
		case p.Err(ui.KeyError) != nil:
			return errorStyle.Render("Unable to search patients")
		default:
			return mutedStyle.Render("No patients found")
		}
	}

	header := []string{"Name", "Identifier", "Gender", "Age"}
	cells := [][]string{header}
	for _, r := range rows {
		cells = append(cells, []string{orPlaceholder(r.Name), orPlaceholder(r.Identifier), orPlaceholder(r.Gender), orPlaceholder(r.Age)})
	}

	widths := make([]int, len(header))
	for _, row := range cells {
		for i, c := range row {
			if w := lipgloss.Width(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for i, row := range cells {
		for j, c := range row {
			cell := fmt.Sprintf("%-*s", widths[j], c)
			if i == 0 {
				cell = titleStyle.Render(cell)
			}
			b.WriteString(cell)
			if j < len(row)-1 {
				b.WriteString("  ")
			}
		}
		if i < len(cells)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return ui.Placeholder
	}
	return s
}
