package devserver

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#8BC34A")
	muted  = lipgloss.Color("#7a8599")
	danger = lipgloss.Color("#e53935")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(muted)
	urlStyle   = lipgloss.NewStyle().Underline(true)
	errStyle   = lipgloss.NewStyle().Foreground(danger)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 2)
)

// BannerInfo is what the banner shows after a build.
type BannerInfo struct {
	Addon    string
	Version  string
	BaseURL  string
	Records  int
	LastErr  error
	Watching string
}

// ManifestURL is the address the editor imports the addon from.
func ManifestURL(base string) string {
	return strings.TrimRight(base, "/") + "/addon.json"
}

// Banner renders the dev server status box.
func Banner(b BannerInfo) string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s %s", b.Addon, b.Version)),
		"",
		labelStyle.Render("Server running at"),
		urlStyle.Render(b.BaseURL),
		"",
		labelStyle.Render("Import addon.json path"),
		urlStyle.Render(ManifestURL(b.BaseURL)),
	}
	if b.Watching != "" {
		lines = append(lines, "", labelStyle.Render("Watching ")+b.Watching)
	}
	if b.LastErr != nil {
		lines = append(lines, "", errStyle.Render("Last build failed: "+b.LastErr.Error()))
	} else if b.Records > 0 {
		lines = append(lines, "", labelStyle.Render(fmt.Sprintf("%d ACEs", b.Records)))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
