package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"selfhostgpt/internal/chat"
	"selfhostgpt/internal/collection"
	"selfhostgpt/internal/models"
	"selfhostgpt/internal/settings"
	"selfhostgpt/internal/styles"
)

// InitialModel builds the shell around an already loaded core, index and settings. usage
// may be nil, which hides the storage size.
func InitialModel(core *chat.Core, index *collection.Index, svc *settings.Service, usage UsageSource) Model {
	cfg := svc.Get()
	styles.Apply(cfg.Theme == settings.ThemeDark)

	ti := textarea.New()
	ti.Placeholder = "Send a message... (ctrl+s for shortcuts)"
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = MaxInputHeight
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	applyInputTheme(&ti)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	_, selected, _ := models.FindModelByID(cfg.Model)

	return Model{
		TextInput:          ti,
		Viewport:           viewport.New(60, 15),
		ModelViewport:      viewport.New(ModalWidth-4, 15),
		Spinner:            sp,
		core:               core,
		index:              index,
		settings:           svc,
		usage:              usage,
		Chat:               core.Current(),
		Headers:            index.Headers(),
		Settings:           cfg,
		SelectedModelIndex: selected,
	}
}

func applyInputTheme(ti *textarea.Model) {
	prompt := lipgloss.NewStyle().Foreground(styles.CurrentTheme.Primary).Bold(true)
	placeholder := lipgloss.NewStyle().Foreground(styles.HintColor)
	ti.FocusedStyle.Prompt = prompt
	ti.BlurredStyle.Prompt = prompt
	ti.FocusedStyle.Placeholder = placeholder
	ti.BlurredStyle.Placeholder = placeholder
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
		m.refreshUsage(),
	)
}

// NewProgram creates the program and forwards core, index and settings changes to it.
// Subscribers block until the program reads the message, so every call into the core,
// index or settings from Update runs inside a tea.Cmd.
func NewProgram(core *chat.Core, index *collection.Index, svc *settings.Service, usage UsageSource) *tea.Program {
	m := InitialModel(core, index, svc, usage)
	p := tea.NewProgram(&m, tea.WithAltScreen())

	core.Subscribe(func(c models.Chat) { p.Send(ChatMsg{c}) })
	index.Subscribe(func(hs []models.ChatHeader) { p.Send(HeadersMsg{hs}) })
	svc.Subscribe(func(s settings.Settings) { p.Send(SettingsMsg{s}) })
	return p
}
