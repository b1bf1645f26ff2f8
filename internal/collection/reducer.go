package collection

import "selfhostgpt/internal/models"

type Action interface{ isAction() }

type AddHeader struct{ Header models.ChatHeader }
type SetTitle struct {
	ID    int64
	Title string
}
type SetPreview struct {
	ID      int64
	Preview string
}
type RemoveHeader struct{ ID int64 }

func (AddHeader) isAction()    {}
func (SetTitle) isAction()     {}
func (SetPreview) isAction()   {}
func (RemoveHeader) isAction() {}

// Reduce returns the header list after a. The input slice is never modified.
func Reduce(state []models.ChatHeader, a Action) []models.ChatHeader {
	next := make([]models.ChatHeader, 0, len(state)+1)
	switch a := a.(type) {
	case AddHeader:
		next = append(next, state...)
		next = append(next, a.Header)
	case SetTitle:
		for _, h := range state {
			if h.ID == a.ID {
				h.Title = a.Title
			}
			next = append(next, h)
		}
	case SetPreview:
		for _, h := range state {
			if h.ID == a.ID {
				h.Preview = a.Preview
			}
			next = append(next, h)
		}
	case RemoveHeader:
		for _, h := range state {
			if h.ID != a.ID {
				next = append(next, h)
			}
		}
	default:
		next = append(next, state...)
	}
	return next
}

func indexOf(headers []models.ChatHeader, id int64) int {
	for i, h := range headers {
		if h.ID == id {
			return i
		}
	}
	return -1
}
