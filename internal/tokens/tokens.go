// Package tokens estimates token usage locally.
//
// The streaming completions API does not report usage, so every count here is an
// approximation derived from the serialized message, not a real tokenizer.
package tokens

import (
	"encoding/json"
	"unicode/utf8"

	"selfhostgpt/internal/models"
)

const CharsPerToken = 4 // Rough estimate for token calculation

// Estimate returns the approximate token count of s, rounding up.
func Estimate(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Count estimates the tokens of a message as it is sent on the wire ({role, content}).
func Count(msg models.Message) int {
	data, err := json.Marshal(struct {
		Role    models.Role `json:"role"`
		Content string      `json:"content"`
	}{msg.Role, msg.Content})
	if err != nil {
		return 0
	}
	return Estimate(string(data))
}

// CountAll sums Count over msgs.
func CountAll(msgs []models.Message) int {
	total := 0
	for _, m := range msgs {
		total += Count(m)
	}
	return total
}

// ContextLimit returns the context ceiling of modelID, or 0 when unknown.
func ContextLimit(modelID string) int {
	if mdl, _, ok := models.FindModelByID(modelID); ok {
		return mdl.ContextLength
	}
	return 0
}

// OverContextLimit reports whether total exceeds the ceiling of a known model.
// Unknown models are never over the limit.
func OverContextLimit(modelID string, total int) bool {
	limit := ContextLimit(modelID)
	return limit > 0 && total > limit
}
