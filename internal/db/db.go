package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"selfhostgpt/internal/logging"
	"selfhostgpt/internal/models"
)

// ErrNotFound is returned when a chat id has no (readable) record.
var ErrNotFound = errors.New("chat not found")

// SQLiteStore keeps one row per chat: header columns for listing plus the full record as JSON.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// DefaultPath returns <UserConfigDir>/selfhostgpt/selfhostgpt.db, creating the directory.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dbDir := filepath.Join(configDir, "selfhostgpt")
	if err := os.MkdirAll(dbDir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dbDir, "selfhostgpt.db"), nil
}

// OpenSQLite opens or creates the database at dbPath. A nil log uses slog.Default.
func OpenSQLite(dbPath string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// Round-trips write from several goroutines; one connection serializes them.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}

	schema := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS chats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			preview TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chats_created_at ON chats(created_at);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "init schema")
		}
	}

	return &SQLiteStore{db: db, log: log}, nil
}

// Usage reports the size of the database in bytes.
func (s *SQLiteStore) Usage(ctx context.Context) (int64, error) {
	var pages, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pages); err != nil {
		return 0, errors.Wrap(err, "read page count")
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, errors.Wrap(err, "read page size")
	}
	return pages * pageSize, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetChat(ctx context.Context, id int64) (models.Chat, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM chats WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return models.Chat{}, ErrNotFound
	}
	if err != nil {
		return models.Chat{}, errors.Wrapf(err, "get chat %d", id)
	}

	chat, err := decodeChat([]byte(data))
	if err != nil {
		s.log.Warn("stored chat has unexpected shape", logging.FieldChatID, id, logging.FieldError, err)
		return models.Chat{}, errors.Wrapf(ErrNotFound, "decode chat %d", id)
	}
	chat.ID = id
	return chat, nil
}

func (s *SQLiteStore) AddChat(ctx context.Context, chat models.Chat) (int64, error) {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now()
	}
	data, err := json.Marshal(chat)
	if err != nil {
		return 0, errors.Wrap(err, "encode chat")
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO chats(created_at, title, preview, data) VALUES(?, ?, ?, ?)",
		chat.CreatedAt.UnixMilli(),
		chat.Title,
		chat.Preview,
		string(data),
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert chat")
	}
	return res.LastInsertId()
}

// UpdateChat overwrites an existing record. A deleted id is not recreated.
func (s *SQLiteStore) UpdateChat(ctx context.Context, chat models.Chat) (int64, error) {
	data, err := json.Marshal(chat)
	if err != nil {
		return 0, errors.Wrap(err, "encode chat")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE chats SET title = ?, preview = ?, data = ? WHERE id = ?",
		chat.Title,
		chat.Preview,
		string(data),
		chat.ID,
	)
	if err != nil {
		return 0, errors.Wrapf(err, "update chat %d", chat.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "update chat %d", chat.ID)
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return chat.ID, nil
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	return errors.Wrapf(err, "delete chat %d", id)
}

// ListHeaders returns every chat header, oldest first.
func (s *SQLiteStore) ListHeaders(ctx context.Context) ([]models.ChatHeader, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, title, preview FROM chats ORDER BY created_at ASC, id ASC",
	)
	if err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	defer rows.Close()

	headers := []models.ChatHeader{}
	for rows.Next() {
		var (
			h         models.ChatHeader
			createdAt int64
		)
		if err := rows.Scan(&h.ID, &createdAt, &h.Title, &h.Preview); err != nil {
			return nil, errors.Wrap(err, "scan chat header")
		}
		h.CreatedAt = time.UnixMilli(createdAt)
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	return headers, nil
}

// LatestChatID returns the most recently created chat, if any.
func (s *SQLiteStore) LatestChatID(ctx context.Context) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM chats ORDER BY created_at DESC, id DESC LIMIT 1",
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "latest chat")
	}
	return id, true, nil
}

func decodeChat(data []byte) (models.Chat, error) {
	var chat models.Chat
	if err := json.Unmarshal(data, &chat); err != nil {
		return models.Chat{}, err
	}
	if chat.Status == "" {
		return models.Chat{}, errors.New("missing status")
	}
	if chat.Messages == nil {
		chat.Messages = []models.Message{}
	}
	return chat, nil
}
