package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/adi-253/Talkie/chatsync/internal/models"
)

// sanitizeBody keeps line breaks and tabs but drops escape sequences and
// other control characters, so a body is always shown as literal text.
func sanitizeBody(body string) string {
	body = ansi.Strip(body)
	body = strings.ReplaceAll(body, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, body)
}

// renderMessages lays out the conversation for a viewport of the given width.
func renderMessages(msgs []models.Message, viewerID string, width int) string {
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		own := msg.SenderID == viewerID

		sender := msg.SenderID
		if own {
			sender = "you"
		}
		meta := sender + " · " + msg.CreatedAt.Local().Format("Jan 2 15:04")
		body := sanitizeBody(msg.Body)

		if own {
			b.WriteString(ownMeta.Width(width).Render(meta))
			b.WriteString("\n")
			b.WriteString(ownBodyStyle.Width(width).Render(body))
		} else {
			b.WriteString(metaStyle.Render(meta))
			b.WriteString("\n")
			b.WriteString(bodyStyle.Width(width).Render(body))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTabs(convs []Conversation, active int) string {
	tabs := make([]string, len(convs))
	for i, conv := range convs {
		title := conv.Title
		if title == "" {
			title = conv.ID
		}
		if i == active {
			tabs[i] = activeTab.Render(title)
		} else {
			tabs[i] = tabStyle.Render(title)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}
