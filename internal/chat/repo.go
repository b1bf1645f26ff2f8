package chat

import (
	"context"
	"log/slog"
	"sync"

	"selfhostgpt/internal/logging"
	"selfhostgpt/internal/models"
)

// Store is the persistent chat store the core reads and writes through.
type Store interface {
	GetChat(ctx context.Context, id int64) (models.Chat, error)
	AddChat(ctx context.Context, chat models.Chat) (int64, error)
	UpdateChat(ctx context.Context, chat models.Chat) (int64, error)
	DeleteChat(ctx context.Context, id int64) error
	LatestChatID(ctx context.Context) (int64, bool, error)
}

// repository wraps a Store with per-id step locks and first-load recovery.
type repository struct {
	store Store
	log   *slog.Logger

	mu     sync.Mutex
	loaded map[int64]bool
	locks  map[int64]*sync.Mutex
}

func newRepository(store Store, log *slog.Logger) *repository {
	return &repository{
		store:  store,
		log:    log,
		loaded: map[int64]bool{},
		locks:  map[int64]*sync.Mutex{},
	}
}

// lock serializes fetch-mutate-write steps on one chat id.
func (r *repository) lock(id int64) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (r *repository) markLoaded(id int64) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	first = !r.loaded[id]
	r.loaded[id] = true
	return first
}

// get reads a chat. A chat still SENDING when first seen by this process was left behind
// by an interrupted run, so it is turned into an ERROR and written back.
// Callers hold lock(id).
func (r *repository) get(ctx context.Context, id int64) (models.Chat, error) {
	chat, err := r.store.GetChat(ctx, id)
	if err != nil {
		return models.Chat{}, err
	}
	if r.markLoaded(id) && chat.Status == models.StatusSending {
		chat.Status = models.StatusError
		if chat.LastError == "" {
			chat.LastError = models.DefaultErrorMessage
		}
		if _, err := r.store.UpdateChat(ctx, chat); err != nil {
			r.log.Warn("failed to recover interrupted chat", logging.FieldChatID, id, logging.FieldError, err)
		} else {
			r.log.Info("recovered interrupted chat", logging.FieldChatID, id)
		}
	}
	return chat, nil
}

func (r *repository) add(ctx context.Context, chat models.Chat) (int64, error) {
	id, err := r.store.AddChat(ctx, chat)
	if err != nil {
		return 0, err
	}
	r.markLoaded(id)
	return id, nil
}

func (r *repository) update(ctx context.Context, chat models.Chat) (int64, error) {
	r.markLoaded(chat.ID)
	return r.store.UpdateChat(ctx, chat)
}

