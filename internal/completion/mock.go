package completion

import (
	"context"
	"strings"
	"time"
)

const (
	MockReplyPrefix  = "MOCK_REPLY: "
	MockErrorMessage = "MOCK ERROR - Very long random error message/failure oh no something brokies"
)

// Mock is an offline client. It echoes the last message back word by word, or fails
// with a nested error payload when Fail is set.
type Mock struct {
	Delay time.Duration // pause before each chunk
	Fail  bool
}

func (m *Mock) Stream(ctx context.Context, req Request) (*Stream, error) {
	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	src := &mockChunks{
		ctx:   ctx,
		delay: m.Delay,
	}
	if m.Fail {
		src.err = &PayloadError{Payload: []byte(`{"error":{"message":"` + MockErrorMessage + `"}}`)}
	} else {
		src.words = strings.SplitAfter(MockReplyPrefix+last, " ")
	}
	return NewStream(src), nil
}

type mockChunks struct {
	ctx   context.Context
	delay time.Duration
	words []string
	pos   int
	err   error
}

func (c *mockChunks) Next() bool {
	if c.err != nil || c.pos >= len(c.words) {
		return false
	}
	if c.delay > 0 {
		select {
		case <-c.ctx.Done():
			c.err = c.ctx.Err()
			return false
		case <-time.After(c.delay):
		}
	}
	c.pos++
	return true
}

func (c *mockChunks) Fragment() string {
	if c.pos == 0 || c.pos > len(c.words) {
		return ""
	}
	return c.words[c.pos-1]
}

func (c *mockChunks) Err() error {
	return c.err
}

func (c *mockChunks) Close() error {
	c.pos = len(c.words)
	return nil
}
