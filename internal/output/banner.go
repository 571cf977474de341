package output

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	versionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D4AA")).Bold(true)
	taglineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
)

func Banner(version string) string {
	art := `               __            _       __  _____         __
  ___  ___  ___/ /__  ___  (_)__  / /_/ __(_)__  ___/ /__ ____
 / -_)/ _ \/ _  / _ \/ _ \/ / _ \/ __/ _// / _ \/ _  / -_) __/
 \__//_//_/\_,_/ .__/\___/_/_//_/\__/_/ /_/_//_/\_,_/\__/_/
              /_/`
	return fmt.Sprintf("%s\n\n%s\n%s\n",
		bannerStyle.Render(art),
		taglineStyle.Render("static endpoint discovery for JavaScript"),
		versionStyle.Render("version "+version),
	)
}
