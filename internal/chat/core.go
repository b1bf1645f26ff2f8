// Package chat owns the currently visible chat and every operation that changes a chat.
//
// Each change re-reads the chat from the store by id, applies the change, writes it back,
// and only then compares the id with the visible chat. Writes for a chat the user has
// navigated away from are persisted but never shown.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/pkg/errors"

	"selfhostgpt/internal/completion"
	"selfhostgpt/internal/logging"
	"selfhostgpt/internal/models"
	"selfhostgpt/internal/settings"
	"selfhostgpt/internal/tokens"
)

var (
	ErrChatBusy        = errors.New("chat is waiting for a response")
	ErrMessageNotFound = errors.New("message not found")
	ErrNothingToResend = errors.New("chat has no messages to resend")
	errAlreadyApplied  = errors.New("change already applied")
)

const (
	TitleWidth   = 20
	PreviewWidth = 25
)

// SettingsSource provides the settings in effect when an operation starts.
type SettingsSource interface {
	Get() settings.Settings
}

// HeaderSink receives the header of a chat created by Submit.
type HeaderSink interface {
	Add(ctx context.Context, header models.ChatHeader)
}

type Options struct {
	Store    Store
	Client   completion.Client
	Settings SettingsSource
	Headers  HeaderSink // optional
	Logger   *slog.Logger
}

type Core struct {
	repo     *repository
	client   completion.Client
	settings SettingsSource
	headers  HeaderSink
	log      *slog.Logger

	mu      sync.Mutex
	state   models.Chat
	subs    []func(models.Chat)
	running map[int64]bool // chats with a round-trip in flight

	// serializes visible changes with their notifications so subscribers see them in order
	notifyMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Core {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Core{
		repo:     newRepository(opts.Store, log),
		client:   opts.Client,
		settings: opts.Settings,
		headers:  opts.Headers,
		log:      log,
		state:    blankChat(),
		running:  map[int64]bool{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Current returns a copy of the visible chat.
func (c *Core) Current() models.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Subscribe registers fn to receive the visible chat after every change. fn must not
// call back into the Core synchronously.
func (c *Core) Subscribe(fn func(models.Chat)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Wait blocks until every started round-trip has finished.
func (c *Core) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight round-trips and waits for them.
func (c *Core) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Core) dispatch(actions ...Action) {
	c.apply(nil, actions...)
}

// reconcile applies actions only if chat is still the visible one.
func (c *Core) reconcile(chat models.Chat, actions ...Action) bool {
	return c.apply(&chat.ID, actions...)
}

func (c *Core) apply(onlyID *int64, actions ...Action) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if onlyID != nil && c.state.ID != *onlyID {
		c.mu.Unlock()
		return false
	}
	for _, a := range actions {
		c.state = Reduce(c.state, a)
	}
	snapshot := c.state.Clone()
	subs := append([]func(models.Chat){}, c.subs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot.Clone())
	}
	return true
}

// mutate runs one fetch-mutate-write step on chat id. When show is set, the written chat
// is reconciled with the visible one before the step lock is released, so subscribers
// see the steps of one chat in write order. When fn returns an error nothing is written.
func (c *Core) mutate(ctx context.Context, id int64, fn func(*models.Chat) error, show func(models.Chat) Action) (models.Chat, error) {
	unlock := c.repo.lock(id)
	defer unlock()

	chat, err := c.repo.get(ctx, id)
	if err != nil {
		return models.Chat{}, errors.Wrapf(err, "fetch chat %d", id)
	}
	if err := fn(&chat); err != nil {
		return chat, err
	}
	if _, err := c.repo.update(ctx, chat); err != nil {
		return chat, errors.Wrapf(err, "write chat %d", id)
	}
	if show != nil {
		c.reconcile(chat, show(chat))
	}
	return chat, nil
}

func showChat(chat models.Chat) Action     { return SetChat{chat} }
func showMessages(chat models.Chat) Action { return SetMessages{chat.Messages} }
func showStatus(chat models.Chat) Action   { return SetStatus{chat.Status} }
func showTokens(chat models.Chat) Action   { return SetTokens{chat.TotalTokens} }

// claim marks chat id as having a round-trip in flight. It reports false when one
// already is.
func (c *Core) claim(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running[id] {
		return false
	}
	c.running[id] = true
	return true
}

func (c *Core) release(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, id)
}

// CreateChat persists a new chat seeded with the configured system message and makes
// it visible. Title and preview come from the first user message.
func (c *Core) CreateChat(ctx context.Context, firstUserMessage string) (models.Chat, error) {
	chat := newChat(c.settings.Get().SystemMessage, firstUserMessage)
	id, err := c.repo.add(ctx, chat)
	if err != nil {
		c.log.Error("failed to create chat", logging.FieldError, err)
		return models.Chat{}, errors.Wrap(err, "create chat")
	}
	chat.ID = id
	c.dispatch(SetChat{chat})
	c.log.Debug("created chat", logging.FieldChatID, id)
	return chat, nil
}

// SwitchTo shows chat id. It reports false, leaving the visible chat alone, when the
// chat cannot be loaded.
func (c *Core) SwitchTo(ctx context.Context, id int64) bool {
	unlock := c.repo.lock(id)
	defer unlock()

	chat, err := c.repo.get(ctx, id)
	if err != nil {
		c.log.Warn("failed to switch chat, it might be deleted", logging.FieldChatID, id, logging.FieldError, err)
		return false
	}
	c.dispatch(SetChat{chat})
	return true
}

// OpenLatest shows the most recently created chat, if there is one.
func (c *Core) OpenLatest(ctx context.Context) bool {
	id, ok, err := c.repo.store.LatestChatID(ctx)
	if err != nil {
		c.log.Error("failed to find latest chat", logging.FieldError, err)
		return false
	}
	if !ok {
		return false
	}
	return c.SwitchTo(ctx, id)
}

// SetBlankNewChat shows an unsaved chat. It is stored on its first message.
func (c *Core) SetBlankNewChat() {
	c.dispatch(SetChat{blankChat()})
}

// DeleteChat removes chat id from the store. Deleting a missing chat is not an error.
// A visible chat shows DELETING while the store call runs and keeps showing it after a
// successful delete; callers follow up with SetBlankNewChat. A failed delete restores
// the previous status.
func (c *Core) DeleteChat(ctx context.Context, id int64) error {
	unlock := c.repo.lock(id)
	defer unlock()

	previous := c.Current().Status
	shown := c.apply(&id, SetStatus{models.StatusDeleting})
	if err := c.repo.store.DeleteChat(ctx, id); err != nil {
		if shown {
			c.apply(&id, SetStatus{previous})
		}
		c.log.Error("failed to delete chat", logging.FieldChatID, id, logging.FieldError, err)
		return errors.Wrapf(err, "delete chat %d", id)
	}
	return nil
}

// Submit sends text on the visible chat, storing it first when it is blank.
func (c *Core) Submit(ctx context.Context, text string) error {
	cur := c.Current()
	if !cur.IsBlank() {
		return c.SendMessage(ctx, cur.ID, text)
	}

	chat, err := c.CreateChat(ctx, text)
	if err != nil {
		return err
	}
	if c.headers != nil {
		c.headers.Add(ctx, chat.Header())
	}
	return c.SendMessage(ctx, chat.ID, text)
}

// SendMessage appends a user message to chat id and starts a round-trip for it. It fails
// with ErrChatBusy while a round-trip for the chat is still running.
func (c *Core) SendMessage(ctx context.Context, id int64, text string) error {
	if !c.claim(id) {
		return ErrChatBusy
	}
	var messageID int
	chat, err := c.mutate(ctx, id, func(chat *models.Chat) error {
		messageID = chat.NextMessageID()
		chat.Messages = append(chat.Messages, models.Message{
			ID:      messageID,
			Role:    models.RoleUser,
			Content: text,
		})
		chat.Status = models.StatusSending
		chat.LastError = ""
		return nil
	}, showChat)
	if err != nil {
		c.release(id)
		c.log.Warn("failed to send message", logging.FieldChatID, id, logging.FieldError, err)
		return err
	}
	c.startRoundTrip(id, messageID, chat.Messages)
	return nil
}

// EditMessage replaces message messageID, drops everything after it and asks for a new
// response.
func (c *Core) EditMessage(ctx context.Context, id int64, messageID int, content string) error {
	if !c.claim(id) {
		return ErrChatBusy
	}
	chat, err := c.mutate(ctx, id, func(chat *models.Chat) error {
		target := -1
		for i := len(chat.Messages) - 1; i >= 0; i-- {
			if chat.Messages[i].ID == messageID {
				target = i
				break
			}
		}
		if target < 0 {
			return ErrMessageNotFound
		}

		role := chat.Messages[target].Role
		kept := make([]models.Message, 0, target+1)
		for _, m := range chat.Messages {
			if m.ID < messageID {
				kept = append(kept, m)
			}
		}
		kept = append(kept, models.Message{ID: messageID, Role: role, Content: content})

		chat.Messages = kept
		chat.TotalTokens = models.SumTokens(kept)
		chat.Status = models.StatusSending
		chat.LastError = ""
		return nil
	}, showChat)
	if err != nil {
		c.release(id)
		c.log.Error("failed to edit message", logging.FieldChatID, id, logging.FieldMessageID, messageID, logging.FieldError, err)
		return err
	}
	c.startRoundTrip(id, messageID, chat.Messages)
	return nil
}

// ResendMessage drops everything after the last user message and asks for a new
// response to it. Without a user message the whole list is kept.
func (c *Core) ResendMessage(ctx context.Context, id int64) error {
	if !c.claim(id) {
		return ErrChatBusy
	}
	var triggerID int
	chat, err := c.mutate(ctx, id, func(chat *models.Chat) error {
		if len(chat.Messages) == 0 {
			return ErrNothingToResend
		}
		idx := len(chat.Messages) - 1
		for i := len(chat.Messages) - 1; i >= 0; i-- {
			if chat.Messages[i].Role == models.RoleUser {
				idx = i
				break
			}
		}
		chat.Messages = chat.Messages[:idx+1]
		triggerID = chat.Messages[idx].ID
		chat.TotalTokens = models.SumTokens(chat.Messages)
		chat.Status = models.StatusSending
		chat.LastError = ""
		return nil
	}, showChat)
	if err != nil {
		c.release(id)
		c.log.Warn("failed to resend message", logging.FieldChatID, id, logging.FieldError, err)
		return err
	}
	c.startRoundTrip(id, triggerID, chat.Messages)
	return nil
}

// MirrorHeader copies the title and preview of h into the stored chat.
func (c *Core) MirrorHeader(ctx context.Context, h models.ChatHeader) error {
	_, err := c.mutate(ctx, h.ID, func(chat *models.Chat) error {
		if chat.Title == h.Title && chat.Preview == h.Preview {
			return errAlreadyApplied
		}
		chat.Title = h.Title
		chat.Preview = h.Preview
		return nil
	}, showChat)
	if errors.Is(err, errAlreadyApplied) {
		return nil
	}
	return err
}

// RefreshTokens recomputes the chat total from the per-message counts.
func (c *Core) RefreshTokens(ctx context.Context, id int64) error {
	_, err := c.mutate(ctx, id, func(chat *models.Chat) error {
		chat.TotalTokens = models.SumTokens(chat.Messages)
		return nil
	}, showTokens)
	if err != nil {
		c.log.Warn("failed to refresh tokens", logging.FieldChatID, id, logging.FieldError, err)
		return err
	}
	return nil
}

func blankChat() models.Chat {
	return models.Chat{
		ID:        models.BlankChatID,
		Status:    models.StatusReady,
		Messages:  []models.Message{},
		CreatedAt: time.Now(),
	}
}

func newChat(systemMessage, firstUserMessage string) models.Chat {
	chat := models.Chat{
		Status:    models.StatusReady,
		Messages:  []models.Message{},
		CreatedAt: time.Now(),
	}
	if systemMessage != "" {
		sys := models.Message{ID: 1, Role: models.RoleSystem, Content: systemMessage}
		sys.Tokens = tokens.Count(sys)
		chat.Messages = append(chat.Messages, sys)
		chat.TotalTokens = sys.Tokens
	}
	chat.Title, chat.Preview = DefaultHeader(firstUserMessage)
	return chat
}

// DefaultHeader derives a title and preview from the first message of a chat.
func DefaultHeader(message string) (title, preview string) {
	flat := strings.Join(strings.Fields(message), " ")
	return runewidth.Truncate(flat, TitleWidth, ""), runewidth.Truncate(flat, PreviewWidth, "")
}
