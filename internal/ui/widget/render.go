package widget

import (
	"strings"

	"concierge-backend/internal/models"

	"github.com/charmbracelet/lipgloss"
)

func renderTranscript(st models.ConversationState, width int) string {
	body := lipgloss.NewStyle().Width(max(width-2, 20))
	var b strings.Builder
	for i, msg := range st.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderMessage(msg, body))
	}
	return b.String()
}

func renderMessage(msg models.Message, body lipgloss.Style) string {
	var b strings.Builder

	label := mayaLabelStyle.Render("Maya")
	switch msg.Role {
	case models.RoleUser:
		label = userLabelStyle.Render("You")
	case models.RoleSystem:
		label = timeStyle.Render("system")
	}
	b.WriteString(label + " " + timeStyle.Render(msg.Timestamp.Format("15:04")) + "\n")
	b.WriteString(body.Render(msg.Content) + "\n")

	if len(msg.Sources) > 0 {
		b.WriteString(sourceHdrStyle.Render("Useful Resources:") + "\n")
		for _, src := range msg.Sources {
			b.WriteString("  • " + src.Title + " " + sourceStyle.Render(src.URI) + "\n")
		}
	}
	return b.String()
}
