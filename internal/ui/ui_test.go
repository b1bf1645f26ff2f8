package ui

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfhostgpt/internal/chat"
	"selfhostgpt/internal/collection"
	"selfhostgpt/internal/completion"
	"selfhostgpt/internal/db"
	"selfhostgpt/internal/models"
	"selfhostgpt/internal/settings"
)

type harness struct {
	m     *Model
	core  *chat.Core
	index *collection.Index
	svc   *settings.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv(settings.EnvAPIKey, "")
	t.Setenv(settings.EnvBaseURL, "")

	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := db.OpenSQLite(filepath.Join(dir, "chats.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := settings.NewService(filepath.Join(dir, "settings.toml"))
	idx := collection.New(store, log)
	core := chat.New(chat.Options{
		Store:    store,
		Client:   &completion.Mock{},
		Settings: svc,
		Headers:  idx,
		Logger:   log,
	})
	t.Cleanup(core.Close)
	idx.WriteThrough(core)

	m := InitialModel(core, idx, svc, store)
	return &harness{m: &m, core: core, index: idx, svc: svc}
}

// sync copies the current core and index state into the model, as the program
// subscriptions would.
func (h *harness) sync() {
	h.m.Update(ChatMsg{h.core.Current()})
	h.m.Update(HeadersMsg{h.index.Headers()})
}

func (h *harness) submit(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, h.core.Submit(context.Background(), text))
	h.core.Wait()
	h.sync()
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		name  string
		arg   string
		ok    bool
	}{
		{"/system Be brief.", "system", "Be brief.", true},
		{"  /THEME dark ", "theme", "dark", true},
		{"/new", "new", "", true},
		{"/", "", "", false},
		{"hello /system", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, arg, ok := ParseCommand(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.name, name)
				assert.Equal(t, tt.arg, arg)
			}
		})
	}
}

func TestWrappedLineCount(t *testing.T) {
	assert.Equal(t, 1, WrappedLineCount("", 10))
	assert.Equal(t, 1, WrappedLineCount("0123456789", 10))
	assert.Equal(t, 2, WrappedLineCount("0123456789a", 10))
	assert.Equal(t, 3, WrappedLineCount("a\n\nb", 10))
	assert.Equal(t, 2, WrappedLineCount("漢字漢字漢字", 10), "wide runes take two cells")
	assert.Equal(t, 1, WrappedLineCount("anything", 0))
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "short", TruncateWidth("short", 10))
	assert.Equal(t, "abcd…", TruncateWidth("abcdefgh", 5))
	assert.Equal(t, "", TruncateWidth("abc", 0))
}

func TestHistoryPageItems(t *testing.T) {
	var headers []models.ChatHeader
	for i := 1; i <= HistoryPageSize+3; i++ {
		headers = append(headers, models.ChatHeader{ID: int64(i)})
	}

	first := HistoryPageItems(headers, 0)
	require.Len(t, first, HistoryPageSize)
	assert.Equal(t, int64(HistoryPageSize+3), first[0].ID, "newest first")

	second := HistoryPageItems(headers, 1)
	require.Len(t, second, 3)
	assert.Equal(t, int64(1), second[2].ID)

	assert.Nil(t, HistoryPageItems(headers, 2))
	assert.Equal(t, 2, PageCount(len(headers)))
	assert.Equal(t, 1, PageCount(0))
}

func TestRenderTranscript(t *testing.T) {
	c := models.Chat{
		ID:     1,
		Status: models.StatusSending,
		Messages: []models.Message{
			{ID: 1, Role: models.RoleSystem, Content: "hidden instructions"},
			{ID: 2, Role: models.RoleUser, Content: "hi there"},
			{ID: 3, Role: models.RoleAssistant, Partial: "streaming so far"},
		},
	}

	out := RenderTranscript(c, 60, "*")
	assert.NotContains(t, out, "hidden instructions")
	assert.Contains(t, out, "hi there")
	assert.Contains(t, out, "streaming so far")

	c.Status = models.StatusError
	c.Messages[2].Partial = ""
	c.LastError = "quota exceeded"
	out = RenderTranscript(c, 60, "*")
	assert.Contains(t, out, "quota exceeded")
	assert.NotContains(t, out, "Generating")

	c.Status = models.StatusDeleting
	assert.Contains(t, RenderTranscript(c, 60, "*"), "Deleting chat")

	assert.Empty(t, RenderTranscript(models.Chat{ID: models.BlankChatID}, 60, "*"))
}

func TestLastUserMessage(t *testing.T) {
	c := models.Chat{Messages: []models.Message{
		{ID: 1, Role: models.RoleUser, Content: "first"},
		{ID: 2, Role: models.RoleAssistant, Content: "reply"},
		{ID: 3, Role: models.RoleUser, Content: "second"},
		{ID: 4, Role: models.RoleAssistant, Content: "reply"},
	}}
	msg, ok := LastUserMessage(c)
	require.True(t, ok)
	assert.Equal(t, 3, msg.ID)

	_, ok = LastUserMessage(models.Chat{})
	assert.False(t, ok)
}

func TestModel_EditLastMessage(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "first question")

	h.m.Update(key(tea.KeyCtrlE))
	last, ok := LastUserMessage(h.m.Chat)
	require.True(t, ok)
	assert.Equal(t, last.ID, h.m.EditingID)
	assert.Equal(t, "first question", h.m.TextInput.Value())

	h.m.Update(key(tea.KeyEsc))
	assert.Zero(t, h.m.EditingID)
	assert.Empty(t, h.m.TextInput.Value())
}

func TestModel_EditSubmitsEditMessage(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "first question")
	h.m.Update(key(tea.KeyCtrlE))
	h.m.TextInput.SetValue("better question")

	_, cmd := h.m.Update(key(tea.KeyEnter))
	assert.Zero(t, h.m.EditingID)
	for _, msg := range drain(cmd) {
		_, isErr := msg.(ErrMsg)
		assert.False(t, isErr, "unexpected error %v", msg)
	}
	h.core.Wait()
	h.sync()

	users := 0
	for _, msg := range h.m.Chat.Messages {
		if msg.Role == models.RoleUser {
			users++
		}
	}
	assert.Equal(t, 1, users, "the edit replaces the message")
	reply, ok := h.m.Chat.LastMessage()
	require.True(t, ok)
	assert.Equal(t, completion.MockReplyPrefix+"better question", reply.Content)
}

// drain runs cmd and every command batched inside it, returning the messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, drain(c)...)
	}
	return out
}

func TestModel_UnknownCommandReportsError(t *testing.T) {
	h := newHarness(t)
	h.m.TextInput.SetValue("/bogus")

	_, cmd := h.m.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)
	msg := cmd()
	h.m.Update(msg)

	require.Error(t, h.m.Err)
	assert.Contains(t, h.m.Err.Error(), "/bogus")
	assert.Empty(t, h.m.TextInput.Value())
}

func TestModel_ThemeCommand(t *testing.T) {
	h := newHarness(t)
	h.m.TextInput.SetValue("/theme dark")

	_, cmd := h.m.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, settings.ThemeDark, h.svc.Get().Theme)

	h.m.Update(SettingsMsg{h.svc.Get()})
	assert.Equal(t, settings.ThemeDark, h.m.Settings.Theme)
}

func TestModel_HistoryOpenAndDelete(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "older chat")
	older := h.m.Chat.ID

	h.core.SetBlankNewChat()
	h.submit(t, "newer chat")
	newer := h.m.Chat.ID
	require.NotEqual(t, older, newer)

	h.m.Update(key(tea.KeyCtrlH))
	require.True(t, h.m.HistoryOpen)

	// newest first, so one step down selects the older chat
	h.m.Update(runes("j"))
	_, cmd := h.m.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.False(t, h.m.HistoryOpen)
	assert.Equal(t, older, h.core.Current().ID)
	h.sync()

	h.m.Update(key(tea.KeyCtrlH))
	h.m.Update(runes("j"))
	_, cmd = h.m.Update(runes("d"))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	h.sync()

	assert.True(t, h.core.Current().IsBlank(), "deleting the visible chat shows a blank one")
	require.Len(t, h.m.Headers, 1)
	assert.Equal(t, newer, h.m.Headers[0].ID)
	assert.False(t, h.core.SwitchTo(context.Background(), older))
}

func TestModel_SelectModel(t *testing.T) {
	h := newHarness(t)
	h.m.Update(key(tea.KeyCtrlB))
	require.True(t, h.m.ModelSelectorOpen)

	h.m.Update(runes("j"))
	_, cmd := h.m.Update(key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())

	assert.False(t, h.m.ModelSelectorOpen)
	assert.Equal(t, models.AvailableModels[1].ID, h.svc.Get().Model)
}

func TestModel_BottomBarWarnsOverContextLimit(t *testing.T) {
	h := newHarness(t)
	h.m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})

	c := h.core.Current()
	c.TotalTokens = 1_000_000
	h.m.Update(ChatMsg{c})
	assert.Contains(t, h.m.RenderBottomBar(), "over context limit")

	c.TotalTokens = 10
	h.m.Update(ChatMsg{c})
	assert.NotContains(t, h.m.RenderBottomBar(), "over context limit")
}

func TestModel_EnterIgnoredWhileDeleting(t *testing.T) {
	h := newHarness(t)
	h.submit(t, "doomed chat")

	c := h.m.Chat
	c.Status = models.StatusDeleting
	h.m.Update(ChatMsg{c})
	h.m.TextInput.SetValue("too late")

	_, cmd := h.m.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Equal(t, "too late", h.m.TextInput.Value())
}

func TestModel_BottomBarShowsStorageUsage(t *testing.T) {
	h := newHarness(t)
	h.m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	h.submit(t, "something worth storing")

	cmd := h.m.refreshUsage()
	require.NotNil(t, cmd)
	msg, ok := cmd().(UsageMsg)
	require.True(t, ok)
	h.m.Update(msg)

	assert.Positive(t, h.m.StorageBytes)
	assert.Contains(t, h.m.RenderBottomBar(), "db "+humanize.Bytes(uint64(h.m.StorageBytes)))

	_, cmd = h.m.Update(HeadersMsg{h.index.Headers()})
	assert.NotNil(t, cmd, "a header change remeasures the store")
}

func TestRelativeTime(t *testing.T) {
	assert.Equal(t, "just now", RelativeTime(time.Now()))
	assert.Equal(t, "5 mins ago", RelativeTime(time.Now().Add(-5*time.Minute)))
	assert.Equal(t, "1 hr ago", RelativeTime(time.Now().Add(-90*time.Minute)))
	assert.True(t, strings.HasSuffix(RelativeTime(time.Now().Add(-72*time.Hour)), "days ago"))
}
