package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"selfhostgpt/internal/logging"
	"selfhostgpt/internal/models"
)

const (
	redisNextIDKey    = "chats:next_id"
	redisByCreatedKey = "chats:by_created"
)

// RedisStore keeps each chat as a JSON value under chat:<id> with a creation-time index.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore wraps a connected client. A nil log uses slog.Default.
func NewRedisStore(client *redis.Client, log *slog.Logger) (*RedisStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return &RedisStore{client: client, log: log}, nil
}

func OpenRedis(addr string, log *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	store, err := NewRedisStore(client, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) chatKey(id int64) string {
	return fmt.Sprintf("chat:%d", id)
}

func (r *RedisStore) GetChat(ctx context.Context, id int64) (models.Chat, error) {
	data, err := r.client.Get(ctx, r.chatKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Chat{}, ErrNotFound
	}
	if err != nil {
		return models.Chat{}, errors.Wrapf(err, "get chat %d", id)
	}

	chat, err := decodeChat(data)
	if err != nil {
		r.log.Warn("stored chat has unexpected shape", logging.FieldChatID, id, logging.FieldError, err)
		return models.Chat{}, errors.Wrapf(ErrNotFound, "decode chat %d", id)
	}
	chat.ID = id
	return chat, nil
}

func (r *RedisStore) AddChat(ctx context.Context, chat models.Chat) (int64, error) {
	id, err := r.client.Incr(ctx, redisNextIDKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "allocate chat id")
	}
	chat.ID = id
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now()
	}
	data, err := json.Marshal(chat)
	if err != nil {
		return 0, errors.Wrap(err, "encode chat")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.chatKey(id), data, 0)
	pipe.ZAdd(ctx, redisByCreatedKey, &redis.Z{
		Score:  float64(chat.CreatedAt.UnixMilli()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrap(err, "insert chat")
	}
	return id, nil
}

// UpdateChat overwrites an existing record. SET XX keeps a deleted id deleted.
func (r *RedisStore) UpdateChat(ctx context.Context, chat models.Chat) (int64, error) {
	data, err := json.Marshal(chat)
	if err != nil {
		return 0, errors.Wrap(err, "encode chat")
	}
	ok, err := r.client.SetXX(ctx, r.chatKey(chat.ID), data, 0).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "update chat %d", chat.ID)
	}
	if !ok {
		return 0, ErrNotFound
	}
	return chat.ID, nil
}

func (r *RedisStore) DeleteChat(ctx context.Context, id int64) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.chatKey(id))
	pipe.ZRem(ctx, redisByCreatedKey, id)
	_, err := pipe.Exec(ctx)
	return errors.Wrapf(err, "delete chat %d", id)
}

// Usage reports the bytes held by chat records.
func (r *RedisStore) Usage(ctx context.Context) (int64, error) {
	ids, err := r.client.ZRange(ctx, redisByCreatedKey, 0, -1).Result()
	if err != nil {
		return 0, errors.Wrap(err, "list chats")
	}
	pipe := r.client.Pipeline()
	sizes := make([]*redis.IntCmd, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		sizes = append(sizes, pipe.StrLen(ctx, r.chatKey(id)))
	}
	if len(sizes) == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrap(err, "measure chats")
	}
	var total int64
	for _, size := range sizes {
		total += size.Val()
	}
	return total, nil
}

// ListHeaders returns every chat header, oldest first. Unreadable records are skipped.
func (r *RedisStore) ListHeaders(ctx context.Context) ([]models.ChatHeader, error) {
	ids, err := r.client.ZRange(ctx, redisByCreatedKey, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	headers := []models.ChatHeader{}
	if len(ids) == 0 {
		return headers, nil
	}

	keys := make([]string, 0, len(ids))
	chatIDs := make([]int64, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, r.chatKey(id))
		chatIDs = append(chatIDs, id)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	for i, result := range results {
		s, ok := result.(string)
		if !ok {
			continue
		}
		chat, err := decodeChat([]byte(s))
		if err != nil {
			continue
		}
		chat.ID = chatIDs[i]
		headers = append(headers, chat.Header())
	}

	sort.SliceStable(headers, func(i, j int) bool {
		if headers[i].CreatedAt.Equal(headers[j].CreatedAt) {
			return headers[i].ID < headers[j].ID
		}
		return headers[i].CreatedAt.Before(headers[j].CreatedAt)
	})
	return headers, nil
}

// LatestChatID reads the newest entry of the creation index. Chats created in the same
// millisecond resolve to the highest id.
func (r *RedisStore) LatestChatID(ctx context.Context) (int64, bool, error) {
	newest, err := r.client.ZRevRangeWithScores(ctx, redisByCreatedKey, 0, 0).Result()
	if err != nil {
		return 0, false, errors.Wrap(err, "find latest chat")
	}
	if len(newest) == 0 {
		return 0, false, nil
	}

	score := strconv.FormatFloat(newest[0].Score, 'f', -1, 64)
	members, err := r.client.ZRangeByScore(ctx, redisByCreatedKey, &redis.ZRangeBy{Min: score, Max: score}).Result()
	if err != nil {
		return 0, false, errors.Wrap(err, "find latest chat")
	}
	var (
		latest int64
		found  bool
	)
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		if !found || id > latest {
			latest, found = id, true
		}
	}
	return latest, found, nil
}
