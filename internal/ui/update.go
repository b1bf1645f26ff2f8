package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"selfhostgpt/internal/models"
	"selfhostgpt/internal/settings"
	"selfhostgpt/internal/styles"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Chat.Status == models.StatusSending {
			m.UpdateViewport()
		}
		return m, spCmd

	case ChatMsg:
		if msg.Chat.ID != m.Chat.ID {
			m.EditingID = 0
		}
		var cmd tea.Cmd
		if m.Chat.Status == models.StatusSending && msg.Chat.Status != models.StatusSending {
			cmd = m.refreshUsage()
		}
		m.Chat = msg.Chat
		m.UpdateViewport()
		return m, cmd

	case HeadersMsg:
		m.Headers = msg.Headers
		if last := PageCount(len(m.Headers)) - 1; m.HistoryPage > last {
			m.HistoryPage = last
		}
		if n := len(HistoryPageItems(m.Headers, m.HistoryPage)); m.HistorySelectedIdx >= n {
			m.HistorySelectedIdx = max(n-1, 0)
		}
		return m, m.refreshUsage()

	case UsageMsg:
		m.StorageBytes = msg.Bytes
		return m, nil

	case SettingsMsg:
		if msg.Settings.Theme != m.Settings.Theme {
			styles.Apply(msg.Settings.Theme == settings.ThemeDark)
			applyInputTheme(&m.TextInput)
		}
		m.Settings = msg.Settings
		m.UpdateViewport()
		return m, nil

	case ErrMsg:
		m.Err = msg
		return m, nil

	case tea.KeyMsg:
		if m.HistoryOpen {
			return m.updateHistory(msg)
		}
		if m.ModelSelectorOpen {
			return m.updateModelSelector(msg)
		}
		if m.ShortcutsOpen {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc", "enter", "?", "ctrl+s":
				m.ShortcutsOpen = false
			}
			return m, nil
		}

		if isNewlineShortcut(msg) {
			m.TextInput.InsertString("\n")
			m.updateInputLayout()
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyEsc:
			if m.EditingID != 0 {
				m.EditingID = 0
				m.TextInput.Reset()
				m.updateInputLayout()
				return m, nil
			}
			return m, tea.Quit

		case tea.KeyCtrlN:
			m.EditingID = 0
			m.Err = nil
			m.TextInput.Reset()
			m.updateInputLayout()
			core := m.core
			return m, runOp(func(context.Context) error {
				core.SetBlankNewChat()
				return nil
			})

		case tea.KeyCtrlB:
			m.ModelSelectorOpen = true
			m.HistoryOpen = false
			m.ShortcutsOpen = false
			m.UpdateModelSelectorContent()
			m.SyncModelViewportScroll()
			return m, nil

		case tea.KeyCtrlS:
			m.ShortcutsOpen = true
			m.ModelSelectorOpen = false
			m.HistoryOpen = false
			return m, nil

		case tea.KeyCtrlH:
			m.ModelSelectorOpen = false
			m.ShortcutsOpen = false
			m.HistoryOpen = true
			m.HistoryPage = 0
			m.HistorySelectedIdx = 0
			return m, nil

		case tea.KeyCtrlE:
			last, ok := LastUserMessage(m.Chat)
			if !ok || m.Chat.Busy() {
				return m, nil
			}
			m.EditingID = last.ID
			m.TextInput.SetValue(last.Content)
			m.updateInputLayout()
			return m, nil

		case tea.KeyCtrlR:
			if m.Chat.IsBlank() || m.Chat.Busy() {
				return m, nil
			}
			m.Err = nil
			core, id := m.core, m.Chat.ID
			return m, tea.Batch(runOp(func(ctx context.Context) error {
				return core.ResendMessage(ctx, id)
			}), m.Spinner.Tick)

		case tea.KeyEnter:
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		ModalWidth = msg.Width - 10
		if ModalWidth > 60 {
			ModalWidth = 60
		}
		if ModalWidth < 30 {
			ModalWidth = 30
		}
		styles.SetContentWidth(ModalWidth - 6)

		m.ModelViewport.Width = styles.ContentWidth
		m.ModelViewport.Height = msg.Height - 15
		if m.ModelViewport.Height > 20 {
			m.ModelViewport.Height = 20
		}
		if m.ModelViewport.Height < 5 {
			m.ModelViewport.Height = 5
		}

		m.Viewport.Width = msg.Width - 4
		m.updateInputLayout()
		m.UpdateViewport()
		return m, nil
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Filter out terminal background color queries and cursor reference codes that leak into the input
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}

	m.Viewport, vpCmd = m.Viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

// submit handles enter in the input box: a slash command, an edit of an earlier user
// message, or a new message on the visible chat.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.TextInput.Value())
	if input == "" {
		return m, nil
	}
	if name, arg, ok := ParseCommand(input); ok {
		m.resetInput()
		return m, m.command(name, arg)
	}
	if m.Chat.Busy() {
		return m, nil
	}

	m.Err = nil
	core, id := m.core, m.Chat.ID
	var op func(ctx context.Context) error
	if m.EditingID != 0 {
		messageID := m.EditingID
		op = func(ctx context.Context) error {
			return core.EditMessage(ctx, id, messageID, input)
		}
	} else {
		op = func(ctx context.Context) error {
			return core.Submit(ctx, input)
		}
	}
	m.resetInput()
	return m, tea.Batch(runOp(op), m.Spinner.Tick)
}

func (m *Model) resetInput() {
	m.EditingID = 0
	m.TextInput.Reset()
	m.updateInputLayout()
}

func (m *Model) command(name, arg string) tea.Cmd {
	svc, core := m.settings, m.core
	switch name {
	case "new", "clear", "reset":
		return runOp(func(context.Context) error {
			core.SetBlankNewChat()
			return nil
		})
	case "system":
		return runOp(func(context.Context) error {
			return svc.SetSystemMessage(arg)
		})
	case "key":
		return runOp(func(context.Context) error {
			return svc.SetAPIKey(arg)
		})
	case "theme":
		theme := settings.Theme(strings.ToUpper(arg))
		if theme != settings.ThemeLight && theme != settings.ThemeDark {
			return errCmd(errors.Errorf("unknown theme %q, use light or dark", arg))
		}
		return runOp(func(context.Context) error {
			return svc.SetTheme(theme)
		})
	case "tokens":
		if m.Chat.IsBlank() {
			return nil
		}
		id := m.Chat.ID
		return runOp(func(ctx context.Context) error {
			return core.RefreshTokens(ctx, id)
		})
	case "title":
		if m.Chat.IsBlank() || arg == "" {
			return nil
		}
		idx, id := m.index, m.Chat.ID
		return runOp(func(ctx context.Context) error {
			idx.SetTitle(ctx, id, arg)
			return nil
		})
	}
	return errCmd(errors.Errorf("unknown command /%s", name))
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg { return ErrMsg(err) }
}

func (m *Model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := HistoryPageItems(m.Headers, m.HistoryPage)
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+h":
		m.HistoryOpen = false
	case "up", "k":
		if len(items) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx--
		if m.HistorySelectedIdx < 0 {
			m.HistorySelectedIdx = len(items) - 1
		}
	case "down", "j":
		if len(items) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx++
		if m.HistorySelectedIdx >= len(items) {
			m.HistorySelectedIdx = 0
		}
	case "left", "h":
		if m.HistoryPage > 0 {
			m.HistoryPage--
			m.HistorySelectedIdx = 0
		}
	case "right", "l":
		if m.HistoryPage < PageCount(len(m.Headers))-1 {
			m.HistoryPage++
			m.HistorySelectedIdx = 0
		}
	case "enter":
		if len(items) == 0 {
			return m, nil
		}
		m.HistoryOpen = false
		m.EditingID = 0
		m.Err = nil
		core, id := m.core, items[m.HistorySelectedIdx].ID
		return m, runOp(func(ctx context.Context) error {
			if !core.SwitchTo(ctx, id) {
				return errors.Errorf("chat %d could not be opened", id)
			}
			return nil
		})
	case "d", "delete":
		if len(items) == 0 {
			return m, nil
		}
		core, idx, id := m.core, m.index, items[m.HistorySelectedIdx].ID
		return m, runOp(func(ctx context.Context) error {
			idx.Remove(ctx, id)
			if core.Current().ID == id {
				core.SetBlankNewChat()
			}
			return nil
		})
	}
	return m, nil
}

func (m *Model) updateModelSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+b":
		m.ModelSelectorOpen = false
	case "up", "k":
		m.SelectedModelIndex--
		if m.SelectedModelIndex < 0 {
			m.SelectedModelIndex = len(models.AvailableModels) - 1
		}
		m.SyncModelViewportScroll()
		m.UpdateModelSelectorContent()
	case "down", "j":
		m.SelectedModelIndex++
		if m.SelectedModelIndex >= len(models.AvailableModels) {
			m.SelectedModelIndex = 0
		}
		m.SyncModelViewportScroll()
		m.UpdateModelSelectorContent()
	case "enter":
		m.ModelSelectorOpen = false
		svc, id := m.settings, models.AvailableModels[m.SelectedModelIndex].ID
		return m, runOp(func(context.Context) error {
			return svc.SetModel(id)
		})
	}
	return m, nil
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > MaxInputHeight {
		lineCount = MaxInputHeight
	}

	m.TextInput.MaxHeight = MaxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 5
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}
