package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"selfhostgpt/internal/completion"
	"selfhostgpt/internal/db"
	"selfhostgpt/internal/logging"
	"selfhostgpt/internal/models"
	"selfhostgpt/internal/tokens"
)

// saveFailedMessage is shown when a received response could not be stored.
const saveFailedMessage = "The response could not be saved."

// startRoundTrip asks for the response to message triggerID of chat id, with history as
// context. The response gets id triggerID+1. The caller has claimed id; the claim is
// released when the round-trip ends.
func (c *Core) startRoundTrip(id int64, triggerID int, history []models.Message) {
	s := c.settings.Get()
	sent := make([]models.Message, len(history))
	for i, m := range history {
		sent[i] = models.Message{ID: m.ID, Role: m.Role, Content: m.Content}
	}
	req := completion.Request{
		APIKey:   s.APIKey,
		Model:    s.Model,
		Messages: sent,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release(id)
		c.roundTrip(c.ctx, id, triggerID+1, req)
	}()
}

func (c *Core) roundTrip(ctx context.Context, id int64, responseID int, req completion.Request) {
	log := c.log.With(
		logging.FieldRoundTripID, logging.NewRoundTripID(),
		logging.FieldChatID, id,
		logging.FieldMessageID, responseID,
	)
	start := time.Now()
	log.Debug("round-trip started", "model", req.Model, "messages", len(req.Messages))

	c.appendResponse(ctx, log, id, responseID)

	stream, err := c.client.Stream(ctx, req)
	if err != nil {
		c.fail(ctx, log, id, err)
		return
	}
	defer stream.Close()

	for stream.Next() {
		partial := stream.Current()
		_, err := c.mutate(ctx, id, func(chat *models.Chat) error {
			for i := range chat.Messages {
				if chat.Messages[i].ID == responseID {
					chat.Messages[i].Partial = partial
					return nil
				}
			}
			return errAlreadyApplied
		}, showMessages)
		if err != nil {
			log.Debug("partial response not stored", logging.FieldError, err)
		}
	}
	if err := stream.Err(); err != nil {
		c.fail(ctx, log, id, err)
		return
	}

	c.complete(ctx, log, id, responseID, req.Messages, stream.Text())
	log.Debug("round-trip finished", logging.FieldDuration, time.Since(start).Milliseconds())
}

// appendResponse adds the empty assistant message the stream fills in. A chat whose
// last message id already reaches responseID is left as is.
func (c *Core) appendResponse(ctx context.Context, log *slog.Logger, id int64, responseID int) {
	_, err := c.mutate(ctx, id, func(chat *models.Chat) error {
		if last, ok := chat.LastMessage(); ok && last.ID >= responseID {
			return errAlreadyApplied
		}
		chat.Messages = append(chat.Messages, models.Message{ID: responseID, Role: models.RoleAssistant})
		return nil
	}, showMessages)
	switch {
	case err == nil:
	case errors.Is(err, errAlreadyApplied):
		log.Warn("response message already present")
	default:
		log.Warn("failed to add response message, chat might be deleted", logging.FieldError, err)
	}
}

func (c *Core) complete(ctx context.Context, log *slog.Logger, id int64, responseID int, sent []models.Message, final string) {
	if final == "" {
		_, err := c.mutate(ctx, id, func(chat *models.Chat) error {
			chat.Status = models.StatusReady
			return nil
		}, showStatus)
		if err != nil {
			c.settle(ctx, log, id, saveFailedMessage, err)
		}
		return
	}

	promptTokens := 0
	if n := len(sent); n > 0 {
		promptTokens = tokens.Count(sent[n-1])
	}
	response := models.Message{ID: responseID, Role: models.RoleAssistant, Content: final}
	response.Tokens = tokens.Count(response)

	_, err := c.mutate(ctx, id, func(chat *models.Chat) error {
		previous := 0
		for i := len(chat.Messages) - 1; i >= 0; i-- {
			if chat.Messages[i].Role == models.RoleUser {
				previous += chat.Messages[i].Tokens
				chat.Messages[i].Tokens = promptTokens
				break
			}
		}

		placed := false
		for i := range chat.Messages {
			if chat.Messages[i].ID == responseID {
				previous += chat.Messages[i].Tokens
				chat.Messages[i] = response
				placed = true
				break
			}
		}
		if !placed {
			if last, ok := chat.LastMessage(); !ok || last.ID < responseID {
				chat.Messages = append(chat.Messages, response)
				placed = true
			}
		}
		if !placed {
			log.Warn("response message missing, final text dropped")
			response.Tokens = 0
		}

		chat.TotalTokens += promptTokens + response.Tokens - previous
		if chat.TotalTokens < 0 {
			chat.TotalTokens = 0
		}
		chat.Status = models.StatusReady
		return nil
	}, showChat)
	if err != nil {
		c.settle(ctx, log, id, saveFailedMessage, err)
	}
}

func (c *Core) fail(ctx context.Context, log *slog.Logger, id int64, cause error) {
	desc := completion.Describe(cause)
	log.Warn("completion failed", logging.FieldError, cause)

	// Record the failure even when the core is shutting down.
	ctx = context.WithoutCancel(ctx)
	_, err := c.mutate(ctx, id, func(chat *models.Chat) error {
		if n := len(chat.Messages); n > 0 {
			chat.Messages[n-1].Partial = ""
		}
		chat.LastError = desc
		chat.Status = models.StatusError
		return nil
	}, showChat)
	if err != nil {
		c.settle(ctx, log, id, desc, err)
	}
}

// settle runs after the last write of a round-trip failed with writeErr. It stores a
// plain ERROR status so the chat does not stay SENDING, and marks the visible chat
// failed even when that write fails too. A deleted chat stays deleted.
func (c *Core) settle(ctx context.Context, log *slog.Logger, id int64, desc string, writeErr error) {
	if errors.Is(writeErr, db.ErrNotFound) {
		log.Warn("round-trip result not stored, chat was deleted", logging.FieldError, writeErr)
		return
	}
	log.Error("failed to store round-trip result", logging.FieldError, writeErr)

	ctx = context.WithoutCancel(ctx)
	_, err := c.mutate(ctx, id, func(chat *models.Chat) error {
		for i := range chat.Messages {
			chat.Messages[i].Partial = ""
		}
		chat.LastError = desc
		chat.Status = models.StatusError
		return nil
	}, showChat)
	switch {
	case err == nil:
	case errors.Is(err, db.ErrNotFound):
		log.Warn("chat deleted before its failure was stored", logging.FieldError, err)
	default:
		log.Error("failed to store chat failure", logging.FieldError, err)
		c.apply(&id, SetStatus{models.StatusError}, SetError{desc})
	}
}
