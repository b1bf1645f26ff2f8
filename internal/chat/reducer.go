package chat

import "selfhostgpt/internal/models"

// Action is one visible-state transition.
type Action interface{ isAction() }

type SetChat struct{ Chat models.Chat }
type SetMessages struct{ Messages []models.Message }
type SetStatus struct{ Status models.ChatStatus }
type SetTokens struct{ Tokens int }
type SetError struct{ Error string }

func (SetChat) isAction()     {}
func (SetMessages) isAction() {}
func (SetStatus) isAction()   {}
func (SetTokens) isAction()   {}
func (SetError) isAction()    {}

// Reduce returns the visible chat after a. It never aliases the input message slices.
func Reduce(state models.Chat, a Action) models.Chat {
	switch a := a.(type) {
	case SetChat:
		return a.Chat.Clone()
	case SetMessages:
		next := state
		next.Messages = models.Chat{Messages: a.Messages}.Clone().Messages
		return next
	case SetStatus:
		state.Status = a.Status
	case SetTokens:
		state.TotalTokens = a.Tokens
	case SetError:
		state.LastError = a.Error
	}
	return state
}
