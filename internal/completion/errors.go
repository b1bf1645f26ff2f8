package completion

import (
	"encoding/json"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/pkg/errors"
)

// PayloadError carries a raw error body returned by a completion backend.
type PayloadError struct {
	Payload []byte
}

func (e *PayloadError) Error() string {
	return string(e.Payload)
}

// Describe returns the human-readable text of a completion failure. A nested
// error.message field is preferred; otherwise the whole payload or error text is used.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return apiErr.Error()
	}

	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		if msg, ok := nestedMessage(payloadErr.Payload); ok {
			return msg
		}
		return strings.TrimSpace(string(payloadErr.Payload))
	}

	if msg, ok := nestedMessage([]byte(err.Error())); ok {
		return msg
	}
	return err.Error()
}

func nestedMessage(data []byte) (string, bool) {
	var body struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", false
	}
	if body.Error == nil || body.Error.Message == "" {
		return "", false
	}
	return body.Error.Message, true
}
