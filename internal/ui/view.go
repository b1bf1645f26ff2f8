package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"selfhostgpt/internal/models"
	"selfhostgpt/internal/styles"
	"selfhostgpt/internal/tokens"
)

func (m *Model) UpdateModelSelectorContent() {
	var items []string
	var lastProvider string
	for i, mdl := range models.AvailableModels {
		if mdl.Provider != lastProvider {
			if lastProvider != "" {
				items = append(items, "")
			}
			items = append(items, styles.ModalHeaderStyle.Render(mdl.Provider))
			lastProvider = mdl.Provider
		}

		isSelected := i == m.SelectedModelIndex
		isCurrent := m.Settings.Model == mdl.ID

		displayName := "  " + mdl.Name
		if isCurrent {
			displayName = "● " + mdl.Name
		}
		displayName = fmt.Sprintf("%s %s", displayName,
			lipgloss.NewStyle().Foreground(styles.HintColor).Render(fmt.Sprintf("(%dk)", mdl.ContextLength/1000)))

		if isSelected {
			items = append(items, styles.ModalSelectedStyle.Render(displayName))
			continue
		}
		style := styles.ModalItemStyle
		if isCurrent {
			style = style.Foreground(styles.CurrentTheme.Secondary)
		}
		items = append(items, style.Render(displayName))
	}

	m.ModelViewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, items...))
}

func (m *Model) RenderModelSelector() string {
	title := styles.ModalTitleStyle.Render("Select AI Model")
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.ModelViewport.View())

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • Enter: select • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderHistorySelector() string {
	title := styles.ModalTitleStyle.Render(fmt.Sprintf("Chats (%d) - Page %d/%d",
		len(m.Headers), m.HistoryPage+1, PageCount(len(m.Headers))))

	var body string
	items := HistoryPageItems(m.Headers, m.HistoryPage)
	if len(items) == 0 {
		body = styles.ModalItemStyle.Render(lipgloss.NewStyle().Foreground(styles.HintColor).Render("No chats yet"))
	} else {
		rows := make([]string, 0, len(items))
		for i, h := range items {
			isSelected := i == m.HistorySelectedIdx
			cursor := "  "
			if isSelected {
				cursor = "> "
			}
			if h.ID == m.Chat.ID {
				cursor = "● "
			}
			timeStr := RelativeTime(h.CreatedAt)
			label := h.Title
			if label == "" {
				label = "(untitled)"
			}
			if h.Preview != "" && h.Preview != h.Title {
				label += " · " + h.Preview
			}
			available := styles.ContentWidth - 2 - len(cursor) - 1 - len(timeStr)
			label = TruncateWidth(label, available)

			row := fmt.Sprintf("%s%s %s", cursor, label, lipgloss.NewStyle().Foreground(styles.HintColor).Render(timeStr))
			if isSelected {
				rows = append(rows, styles.ModalSelectedStyle.Render(row))
			} else {
				rows = append(rows, styles.ModalItemStyle.Render(row))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, rows...)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body)
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • ←/→: page • Enter: open • d: delete • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderShortcutsModal() string {
	title := styles.ModalTitleStyle.Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Ctrl+C", "Quit Application"},
		{"Ctrl+N", "New Chat"},
		{"Ctrl+B", "Select AI Model"},
		{"Ctrl+H", "View Chat History"},
		{"Ctrl+E", "Edit Last Message"},
		{"Ctrl+R", "Resend Last Message"},
		{"Ctrl+S", "View Shortcuts (this menu)"},
		{"/system", "Set System Message"},
		{"/key", "Set API Key"},
		{"/theme", "Switch light/dark"},
		{"/title", "Rename Chat"},
		{"/tokens", "Recount Tokens"},
	}

	var items []string
	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", styles.KeyStyle.Render(s.key), styles.DescStyle.Render(s.desc))
		items = append(items, styles.ModalItemStyle.Render(line))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...))

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Esc/Enter: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderBottomBar() string {
	modelName := m.Settings.Model
	if mdl, _, ok := models.FindModelByID(m.Settings.Model); ok {
		modelName = mdl.Name
	}
	model := styles.ModelStyle.Render(TruncateWidth(modelName, 25))

	var status string
	switch {
	case m.Err != nil:
		status = styles.ErrorStyle.Render(TruncateWidth(m.Err.Error(), 40))
	case m.EditingID != 0:
		status = styles.WarningStyle.Render("editing (esc to cancel)")
	case m.Settings.Mock:
		status = styles.WarningStyle.Render("mock client")
	}

	systemTokens := 0
	if sys, ok := m.Chat.SystemMessage(); ok {
		systemTokens = sys.Tokens
	}
	limit := tokens.ContextLimit(m.Settings.Model)
	tokenText := fmt.Sprintf("%d/%d tokens (system %d)", m.Chat.TotalTokens, limit, systemTokens)
	ctx := styles.TokenStyle.Render(tokenText)
	if tokens.OverContextLimit(m.Settings.Model, m.Chat.TotalTokens) {
		ctx = styles.ErrorStyle.Render(tokenText + " over context limit")
	}

	help := styles.TokenStyle.Render("Help: ^S")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, model, "  ", status)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Center, ctx, "  ", help)
	if m.usage != nil {
		storage := styles.TokenStyle.Render("db " + humanize.Bytes(uint64(m.StorageBytes)))
		rightSide = lipgloss.JoinHorizontal(lipgloss.Center, ctx, "  ", storage, "  ", help)
	}

	availableWidth := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, strings.Repeat(" ", availableWidth), rightSide)

	return styles.BarStyle.Width(m.WindowWidth).Render(bar)
}

func GetWelcomeScreen(width, height int) string {
	art := `
 ╭──────────────────────────────────────╮
 │                                      │
 │     s e l f h o s t g p t            │
 │                                      │
 ╰──────────────────────────────────────╯
`
	subtitle := "Bring your own key. Your chats stay on this machine."

	content := lipgloss.JoinVertical(lipgloss.Center,
		styles.WelcomeArtStyle.Render(art),
		"",
		styles.WelcomeSubtitleStyle.Render(subtitle),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) UpdateViewport() {
	content := RenderTranscript(m.Chat, m.Viewport.Width, m.Spinner.View())
	if content == "" {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
		return
	}
	m.Viewport.SetContent(content)
	m.Viewport.GotoBottom()
}

func (m *Model) View() string {
	inputBox := styles.InputBoxStyle.Width(m.WindowWidth - 4).Render(m.TextInput.View())

	title := AppTitle
	if !m.Chat.IsBlank() && m.Chat.Title != "" {
		title = AppTitle + " · " + m.Chat.Title
	}
	chatContent := lipgloss.JoinVertical(lipgloss.Center,
		styles.TitleStyle.Render(title),
		"",
		m.Viewport.View(),
		"",
		inputBox,
	)
	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, chatContent)
	content := lipgloss.JoinVertical(lipgloss.Left, chatArea, m.RenderBottomBar())

	var modal string
	switch {
	case m.HistoryOpen:
		modal = m.RenderHistorySelector()
	case m.ModelSelectorOpen:
		modal = m.RenderModelSelector()
	case m.ShortcutsOpen:
		modal = m.RenderShortcutsModal()
	default:
		return content
	}
	modal = styles.ModalStyle.Width(ModalWidth).Render(modal)
	return lipgloss.Place(m.WindowWidth, m.WindowHeight, lipgloss.Center, lipgloss.Center, modal)
}
