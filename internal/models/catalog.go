package models

const (
	GPT35 = "gpt-3.5-turbo"
	GPT4  = "gpt-4"
)

type AIModel struct {
	ID            string
	Name          string
	Provider      string
	Description   string
	ContextLength int // Maximum context window size in tokens
}

var AvailableModels = []AIModel{
	{ID: GPT35, Name: "GPT-3.5 Turbo", Provider: "OpenAI", Description: "Fast, inexpensive model", ContextLength: 4096},
	{ID: GPT4, Name: "GPT-4", Provider: "OpenAI", Description: "Most capable GPT-4 model", ContextLength: 8192},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini", Provider: "OpenAI", Description: "Small multimodal model", ContextLength: 128000},
	{ID: "gpt-4o", Name: "GPT-4o", Provider: "OpenAI", Description: "Flagship multimodal model", ContextLength: 128000},
	{ID: "deepseek-chat", Name: "DeepSeek Chat", Provider: "DeepSeek", Description: "OpenAI-compatible endpoint", ContextLength: 64000},
}

func FindModelByID(id string) (AIModel, int, bool) {
	for i, mdl := range AvailableModels {
		if mdl.ID == id {
			return mdl, i, true
		}
	}
	return AIModel{}, 0, false
}
