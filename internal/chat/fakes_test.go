package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"selfhostgpt/internal/completion"
	"selfhostgpt/internal/db"
	"selfhostgpt/internal/models"
	"selfhostgpt/internal/settings"
)

// memStore keeps chats as JSON so reads never alias writes.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	chats  map[int64][]byte
	// resurrect lets UpdateChat recreate deleted ids
	resurrect  bool
	failAdd    bool
	failDelete bool
	// failUpdate rejects every update it returns true for
	failUpdate func(models.Chat) bool
	updates    int
}

func newMemStore() *memStore {
	return &memStore{chats: map[int64][]byte{}}
}

func (s *memStore) GetChat(_ context.Context, id int64) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.chats[id]
	if !ok {
		return models.Chat{}, db.ErrNotFound
	}
	var chat models.Chat
	if err := json.Unmarshal(data, &chat); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

func (s *memStore) AddChat(_ context.Context, chat models.Chat) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd {
		return 0, errors.New("disk full")
	}
	s.nextID++
	chat.ID = s.nextID
	data, _ := json.Marshal(chat)
	s.chats[chat.ID] = data
	return chat.ID, nil
}

func (s *memStore) UpdateChat(_ context.Context, chat models.Chat) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chat.ID]; !ok && !s.resurrect {
		return 0, db.ErrNotFound
	}
	if s.failUpdate != nil && s.failUpdate(chat) {
		return 0, errors.New("disk full")
	}
	s.updates++
	data, _ := json.Marshal(chat)
	s.chats[chat.ID] = data
	return chat.ID, nil
}

func (s *memStore) DeleteChat(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return errors.New("disk full")
	}
	delete(s.chats, id)
	return nil
}

func (s *memStore) LatestChatID(ctx context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best   int64
		bestAt time.Time
		found  bool
	)
	for id, data := range s.chats {
		var chat models.Chat
		if err := json.Unmarshal(data, &chat); err != nil {
			continue
		}
		if !found || chat.CreatedAt.After(bestAt) || (chat.CreatedAt.Equal(bestAt) && id > best) {
			best, bestAt, found = id, chat.CreatedAt, true
		}
	}
	return best, found, nil
}

// put stores chat verbatim, bypassing the core.
func (s *memStore) put(chat models.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := json.Marshal(chat)
	s.chats[chat.ID] = data
	if chat.ID > s.nextID {
		s.nextID = chat.ID
	}
}

func (s *memStore) setFailUpdate(fn func(models.Chat) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate = fn
}

func (s *memStore) has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[id]
	return ok
}

type staticSettings struct{ s settings.Settings }

func (f staticSettings) Get() settings.Settings { return f.s }

// reply scripts one round-trip: fragments in order, then err. When gate is set every
// read, including the final one, blocks until the gate is closed.
type reply struct {
	frags []string
	err   error
	gate  chan struct{}
}

type scriptedClient struct {
	mu      sync.Mutex
	replies []reply
	reqs    []completion.Request
	openErr error
}

func (c *scriptedClient) Stream(ctx context.Context, req completion.Request) (*completion.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	if c.openErr != nil {
		return nil, c.openErr
	}
	r := reply{}
	if len(c.replies) > 0 {
		r = c.replies[0]
		c.replies = c.replies[1:]
	}
	return completion.NewStream(&scriptedChunks{ctx: ctx, r: r}), nil
}

func (c *scriptedClient) requests() []completion.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]completion.Request{}, c.reqs...)
}

type scriptedChunks struct {
	ctx context.Context
	r   reply
	pos int
	err error
}

func (s *scriptedChunks) Next() bool {
	if s.r.gate != nil {
		select {
		case <-s.r.gate:
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return false
		}
	}
	if s.pos >= len(s.r.frags) {
		s.err = s.r.err
		return false
	}
	s.pos++
	return true
}

func (s *scriptedChunks) Fragment() string { return s.r.frags[s.pos-1] }
func (s *scriptedChunks) Err() error       { return s.err }
func (s *scriptedChunks) Close() error     { return nil }

type recordedHeaders struct {
	mu      sync.Mutex
	headers []models.ChatHeader
}

func (h *recordedHeaders) Add(_ context.Context, header models.ChatHeader) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.headers = append(h.headers, header)
}
