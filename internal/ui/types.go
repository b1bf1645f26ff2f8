package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"

	"selfhostgpt/internal/chat"
	"selfhostgpt/internal/collection"
	"selfhostgpt/internal/models"
	"selfhostgpt/internal/settings"
)

const (
	MaxInputHeight  = 6
	HistoryPageSize = 10

	AppTitle = "SELFHOSTGPT"
)

var ModalWidth = 60

type ErrMsg error

type (
	// ChatMsg carries the visible chat after a change in the core.
	ChatMsg struct{ Chat models.Chat }
	// HeadersMsg carries the header list after a change in the index.
	HeadersMsg struct{ Headers []models.ChatHeader }
	// SettingsMsg carries the settings after a setter succeeded.
	SettingsMsg struct{ Settings settings.Settings }
	// UsageMsg carries the measured size of the chat store.
	UsageMsg struct{ Bytes int64 }
)

// UsageSource measures the chat store for the bottom bar.
type UsageSource interface {
	Usage(ctx context.Context) (int64, error)
}

type Model struct {
	Viewport      viewport.Model
	ModelViewport viewport.Model
	TextInput     textarea.Model
	Spinner       spinner.Model

	core     *chat.Core
	index    *collection.Index
	settings *settings.Service
	usage    UsageSource // optional

	Chat     models.Chat
	Headers  []models.ChatHeader
	Settings settings.Settings
	Err      error

	StorageBytes int64

	// id of the user message being edited, 0 when composing a new one
	EditingID int

	WindowWidth  int
	WindowHeight int

	HistoryOpen        bool
	HistorySelectedIdx int
	HistoryPage        int

	ModelSelectorOpen  bool
	SelectedModelIndex int

	ShortcutsOpen bool
}
