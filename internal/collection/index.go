// Package collection keeps the chat header list shown in the history view.
//
// The in-memory list is updated optimistically. Every change is also written to the
// stored chat, and the list is never re-read after a write.
package collection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"selfhostgpt/internal/logging"
	"selfhostgpt/internal/models"
)

type Store interface {
	GetChat(ctx context.Context, id int64) (models.Chat, error)
	UpdateChat(ctx context.Context, chat models.Chat) (int64, error)
	DeleteChat(ctx context.Context, id int64) error
	ListHeaders(ctx context.Context) ([]models.ChatHeader, error)
}

// Mirror writes header fields into the stored chat and deletes chats. The chat core
// implements it so these writes are ordered with its own steps on that chat.
type Mirror interface {
	MirrorHeader(ctx context.Context, h models.ChatHeader) error
	DeleteChat(ctx context.Context, id int64) error
}

type Index struct {
	store  Store
	mirror Mirror
	log    *slog.Logger

	mu      sync.Mutex
	headers []models.ChatHeader
	subs    []func([]models.ChatHeader)
}

func New(store Store, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{store: store, log: log, headers: []models.ChatHeader{}}
}

// WriteThrough routes header writes and deletions through m instead of the store.
func (x *Index) WriteThrough(m Mirror) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.mirror = m
}

// Load replaces the list with every stored header, oldest first.
func (x *Index) Load(ctx context.Context) error {
	headers, err := x.store.ListHeaders(ctx)
	if err != nil {
		x.log.Error("failed to load chat headers", logging.FieldError, err)
		return errors.Wrap(err, "load headers")
	}
	x.mu.Lock()
	x.headers = headers
	x.mu.Unlock()
	x.notify()
	return nil
}

// Headers returns a copy of the list.
func (x *Index) Headers() []models.ChatHeader {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]models.ChatHeader{}, x.headers...)
}

// Subscribe registers fn to receive the list after every change.
func (x *Index) Subscribe(fn func([]models.ChatHeader)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.subs = append(x.subs, fn)
}

// Add appends h. A header whose id is already listed is ignored.
func (x *Index) Add(ctx context.Context, h models.ChatHeader) {
	x.mu.Lock()
	if indexOf(x.headers, h.ID) >= 0 {
		x.mu.Unlock()
		x.log.Warn("chat header already listed", logging.FieldChatID, h.ID)
		return
	}
	x.headers = Reduce(x.headers, AddHeader{h})
	x.mu.Unlock()

	x.notify()
	x.writeThrough(ctx, h)
}

// SetTitle renames chat id. Unknown ids are ignored.
func (x *Index) SetTitle(ctx context.Context, id int64, title string) {
	x.update(ctx, id, SetTitle{ID: id, Title: title})
}

// SetPreview changes the preview of chat id. Unknown ids are ignored.
func (x *Index) SetPreview(ctx context.Context, id int64, preview string) {
	x.update(ctx, id, SetPreview{ID: id, Preview: preview})
}

// Remove drops chat id from the list and the store.
func (x *Index) Remove(ctx context.Context, id int64) {
	x.mu.Lock()
	x.headers = Reduce(x.headers, RemoveHeader{id})
	mirror := x.mirror
	x.mu.Unlock()
	x.notify()

	if mirror != nil {
		// the core logs its own failures
		_ = mirror.DeleteChat(ctx, id)
		return
	}
	if err := x.store.DeleteChat(ctx, id); err != nil {
		x.log.Error("failed to delete chat", logging.FieldChatID, id, logging.FieldError, err)
	}
}

func (x *Index) update(ctx context.Context, id int64, a Action) {
	x.mu.Lock()
	i := indexOf(x.headers, id)
	if i < 0 {
		x.mu.Unlock()
		return
	}
	x.headers = Reduce(x.headers, a)
	h := x.headers[i]
	x.mu.Unlock()

	x.notify()
	x.writeThrough(ctx, h)
}

func (x *Index) writeThrough(ctx context.Context, h models.ChatHeader) {
	x.mu.Lock()
	mirror := x.mirror
	x.mu.Unlock()

	var err error
	if mirror != nil {
		err = mirror.MirrorHeader(ctx, h)
	} else {
		err = x.writeStore(ctx, h)
	}
	if err != nil {
		x.log.Warn("failed to write header to chat, it might be deleted", logging.FieldChatID, h.ID, logging.FieldError, err)
	}
}

func (x *Index) writeStore(ctx context.Context, h models.ChatHeader) error {
	chat, err := x.store.GetChat(ctx, h.ID)
	if err != nil {
		return err
	}
	if chat.Title == h.Title && chat.Preview == h.Preview {
		return nil
	}
	chat.Title = h.Title
	chat.Preview = h.Preview
	_, err = x.store.UpdateChat(ctx, chat)
	return err
}

func (x *Index) notify() {
	x.mu.Lock()
	snapshot := append([]models.ChatHeader{}, x.headers...)
	subs := append([]func([]models.ChatHeader){}, x.subs...)
	x.mu.Unlock()

	for _, fn := range subs {
		fn(append([]models.ChatHeader{}, snapshot...))
	}
}
