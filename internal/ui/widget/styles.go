package widget

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("211"))
	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	mayaLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	sourceHdrStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("211"))
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Underline(true)
	typingStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("211"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	promptKeyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)
