package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"selfhostgpt/internal/models"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"one rune", "a", 1},
		{"exact multiple", "abcd", 1},
		{"round up", "abcde", 2},
		{"multibyte counts runes", "日本語テ", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Estimate(tt.in))
		})
	}
}

func TestCount_Deterministic(t *testing.T) {
	msg := models.Message{ID: 7, Role: models.RoleUser, Content: "Hello there", Partial: "ignored", Tokens: 99}
	first := Count(msg)
	assert.Equal(t, first, Count(msg))
	assert.Greater(t, first, 0)

	// Only role and content are part of the estimate.
	assert.Equal(t, first, Count(models.Message{Role: models.RoleUser, Content: "Hello there"}))
}

func TestCountAll(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleSystem, Content: "be brief"},
		{Role: models.RoleUser, Content: "hi"},
	}
	assert.Equal(t, Count(msgs[0])+Count(msgs[1]), CountAll(msgs))
	assert.Equal(t, 0, CountAll(nil))
}

func TestOverContextLimit(t *testing.T) {
	assert.False(t, OverContextLimit(models.GPT35, 4096))
	assert.True(t, OverContextLimit(models.GPT35, 4097))
	assert.True(t, OverContextLimit(models.GPT4, 9000))
	assert.False(t, OverContextLimit("unknown-model", 1<<30))
	assert.Equal(t, 0, ContextLimit("unknown-model"))
}
