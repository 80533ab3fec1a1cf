package popup

import "github.com/charmbracelet/lipgloss"

var (
	blurredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	protectedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	unprotectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f44336"))

	feedbackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#27ae60")).
			Padding(0, 1).
			Render

	breachStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e67e22")).Render

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF0000")).
				Render

	gradeColors = map[string]lipgloss.Color{
		"A": "#27ae60",
		"B": "#2ecc71",
		"C": "#f1c40f",
		"D": "#e67e22",
		"F": "#e74c3c",
	}

	docStyle = lipgloss.NewStyle().Padding(1, 2)
)

func gradeStyle(g string) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(gradeColors[g])
}
