// Package completion streams chat completions from an OpenAI-compatible API.
package completion

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"selfhostgpt/internal/models"
)

type Request struct {
	APIKey   string
	Model    string
	Messages []models.Message
}

// Client opens one streamed completion per call.
type Client interface {
	Stream(ctx context.Context, req Request) (*Stream, error)
}

// OpenAI talks to the chat completions endpoint of OpenAI or any compatible server.
type OpenAI struct {
	baseURL string
	opts    []option.RequestOption
}

// NewOpenAI returns a client for baseURL; an empty baseURL uses the library default.
func NewOpenAI(baseURL string, opts ...option.RequestOption) *OpenAI {
	return &OpenAI{baseURL: baseURL, opts: opts}
}

func (c *OpenAI) Stream(ctx context.Context, req Request) (*Stream, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(req.APIKey),
		option.WithHeader("X-Title", "selfhostgpt"),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	opts = append(opts, c.opts...)
	client := openai.NewClient(opts...)

	stream := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: toParams(req.Messages),
	})
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return NewStream(&openAIChunks{stream: stream}), nil
}

func toParams(msgs []models.Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}

type openAIChunks struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (o *openAIChunks) Next() bool {
	return o.stream.Next()
}

func (o *openAIChunks) Fragment() string {
	chunk := o.stream.Current()
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

func (o *openAIChunks) Err() error {
	return o.stream.Err()
}

func (o *openAIChunks) Close() error {
	return o.stream.Close()
}
