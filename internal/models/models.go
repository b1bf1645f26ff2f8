package models

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatStatus is the lifecycle state of a chat as seen by the UI.
type ChatStatus string

const (
	StatusReady    ChatStatus = "READY"
	StatusSending  ChatStatus = "SENDING" // exactly one round-trip in flight
	StatusError    ChatStatus = "ERROR"
	StatusDeleting ChatStatus = "DELETING" // shown while the store removes the chat
)

// BlankChatID marks the transient chat shown after "New Chat". Stores never assign it.
const BlankChatID int64 = -1

// DefaultErrorMessage is shown for chats whose response was interrupted.
const DefaultErrorMessage = "There was an error generating the response."

// Message is one entry of a chat transcript. IDs are strictly increasing within a chat.
type Message struct {
	ID      int    `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Partial string `json:"partial,omitempty"` // in-progress streamed text
	Tokens  int    `json:"tokens,omitempty"`  // 0 when not counted yet
}

type Chat struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title,omitempty"`
	Preview     string     `json:"preview,omitempty"`
	Status      ChatStatus `json:"status"`
	Messages    []Message  `json:"messages"`
	CreatedAt   time.Time  `json:"created_at"`
	LastError   string     `json:"last_error,omitempty"`
	TotalTokens int        `json:"total_tokens,omitempty"`
}

// ChatHeader is the listing projection of a Chat.
type ChatHeader struct {
	ID        int64
	Title     string
	Preview   string
	CreatedAt time.Time
}

func (c Chat) Header() ChatHeader {
	return ChatHeader{ID: c.ID, Title: c.Title, Preview: c.Preview, CreatedAt: c.CreatedAt}
}

// IsBlank reports whether c is the unpersisted "New Chat" placeholder.
func (c Chat) IsBlank() bool {
	return c.ID == BlankChatID
}

// Busy reports whether c takes no new input: a response is streaming or the chat is
// being deleted.
func (c Chat) Busy() bool {
	return c.Status == StatusSending || c.Status == StatusDeleting
}

// LastMessage returns the final message of the transcript, if any.
func (c Chat) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// NextMessageID is the id a newly appended message receives.
func (c Chat) NextMessageID() int {
	if last, ok := c.LastMessage(); ok {
		return last.ID + 1
	}
	return 1
}

// SystemMessage returns the leading system message, which is hidden from the transcript.
func (c Chat) SystemMessage() (Message, bool) {
	if len(c.Messages) > 0 && c.Messages[0].Role == RoleSystem {
		return c.Messages[0], true
	}
	return Message{}, false
}

// Clone returns a copy whose message slice does not alias c's.
func (c Chat) Clone() Chat {
	out := c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	return out
}

// SumTokens adds up the cached per-message token counts.
func SumTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += m.Tokens
	}
	return total
}
