package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"selfhostgpt/internal/models"
	"selfhostgpt/internal/styles"
)

// runOp runs fn off the update loop and reports its error, if any.
func runOp(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(context.Background()); err != nil {
			return ErrMsg(err)
		}
		return nil
	}
}

// refreshUsage measures the store off the update loop. It is nil without a source.
func (m *Model) refreshUsage() tea.Cmd {
	usage := m.usage
	if usage == nil {
		return nil
	}
	return func() tea.Msg {
		n, err := usage.Usage(context.Background())
		if err != nil {
			return nil
		}
		return UsageMsg{n}
	}
}

// ParseCommand splits "/name arg..." into its name and the rest of the line.
func ParseCommand(input string) (name, arg string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(input[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(arg), name != ""
}

func WrappedLineCount(value string, width int) int {
	if width <= 0 {
		return 1
	}
	count := 0
	for _, line := range strings.Split(value, "\n") {
		w := runewidth.StringWidth(line)
		if w == 0 {
			count++
			continue
		}
		count += (w-1)/width + 1
	}
	return count
}

func TruncateWidth(s string, max int) string {
	if max <= 0 {
		return ""
	}
	return runewidth.Truncate(s, max, "…")
}

func RelativeTime(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	}
	if d < 24*time.Hour {
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1 hr ago"
		}
		return fmt.Sprintf("%d hrs ago", hrs)
	}
	days := int(d.Hours() / 24)
	if days < 14 {
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	weeks := days / 7
	if weeks == 1 {
		return "1 week ago"
	}
	return fmt.Sprintf("%d weeks ago", weeks)
}

// LastUserMessage returns the newest user message of c.
func LastUserMessage(c models.Chat) (models.Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == models.RoleUser {
			return c.Messages[i], true
		}
	}
	return models.Message{}, false
}

// PageCount returns the number of history pages for n headers, at least one.
func PageCount(n int) int {
	pages := (n + HistoryPageSize - 1) / HistoryPageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// HistoryPageItems returns page of the headers, newest first.
func HistoryPageItems(headers []models.ChatHeader, page int) []models.ChatHeader {
	newest := make([]models.ChatHeader, 0, len(headers))
	for i := len(headers) - 1; i >= 0; i-- {
		newest = append(newest, headers[i])
	}
	start := page * HistoryPageSize
	if start >= len(newest) {
		return nil
	}
	end := start + HistoryPageSize
	if end > len(newest) {
		end = len(newest)
	}
	return newest[start:end]
}

func (m *Model) SyncModelViewportScroll() {
	const itemHeight = 1
	const headerHeight = 1

	var currentY int
	var lastProvider string
	for i, mdl := range models.AvailableModels {
		var itemStartY int
		if mdl.Provider != lastProvider {
			if lastProvider != "" {
				currentY++ // spacer
			}
			itemStartY = currentY
			currentY += headerHeight
			lastProvider = mdl.Provider
		} else {
			itemStartY = currentY
		}

		if i == m.SelectedModelIndex {
			if currentY+itemHeight > m.ModelViewport.YOffset+m.ModelViewport.Height {
				m.ModelViewport.SetYOffset(currentY + itemHeight - m.ModelViewport.Height)
			}
			if itemStartY < m.ModelViewport.YOffset {
				m.ModelViewport.SetYOffset(itemStartY)
			}
			break
		}
		currentY += itemHeight
	}
}

func FormatUserMessage(content string, width int, isFirst bool) string {
	label := styles.UserLabelStyle.Render("YOU")
	msg := styles.UserMsgStyle.Width(width - 4).Render(content)
	if isFirst {
		return fmt.Sprintf("\n%s\n%s", label, msg)
	}
	return fmt.Sprintf("%s\n%s", label, msg)
}

func FormatAIMessage(content string, width int) string {
	label := styles.AiLabelStyle.Render("ASSISTANT")
	msg := styles.AiMsgStyle.Width(width - 4).Render(content)
	return fmt.Sprintf("%s\n%s", label, msg)
}

// RenderTranscript renders the visible messages of c. The system message is hidden and
// an assistant message still streaming shows its partial text followed by spinner.
func RenderTranscript(c models.Chat, width int, spinner string) string {
	var parts []string
	for _, msg := range c.Messages {
		switch msg.Role {
		case models.RoleUser:
			parts = append(parts, FormatUserMessage(msg.Content, width, len(parts) == 0))
		case models.RoleAssistant:
			switch {
			case msg.Content != "":
				parts = append(parts, FormatAIMessage(msg.Content, width))
			case c.Status == models.StatusSending:
				label := styles.AiLabelStyle.Render("ASSISTANT")
				body := spinner + " Generating..."
				if msg.Partial != "" {
					body = styles.PartialStyle.Width(width-4).Render(msg.Partial) + "\n" + spinner
				}
				parts = append(parts, fmt.Sprintf("%s\n%s", label, body))
			}
		}
	}

	if c.Status == models.StatusSending {
		if last, ok := c.LastMessage(); !ok || last.Role != models.RoleAssistant {
			parts = append(parts, fmt.Sprintf("%s\n%s Waiting for a response...", styles.AiLabelStyle.Render("ASSISTANT"), spinner))
		}
	}
	if c.Status == models.StatusDeleting {
		parts = append(parts, styles.InfoStyle.Render("Deleting chat..."))
	}
	if c.Status == models.StatusError {
		text := c.LastError
		if text == "" {
			text = models.DefaultErrorMessage
		}
		parts = append(parts, styles.ErrorStyle.Width(width-4).Render("Error: "+text)+"\n"+
			styles.InfoStyle.Render("ctrl+r: resend"))
	}
	return strings.Join(parts, "\n\n")
}
