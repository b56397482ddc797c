package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PairSeparator joins the two participant ids of a conversation.
const PairSeparator = "_"

// PairID is the conversation id for a and b. The order of the arguments does not matter.
func PairID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, PairSeparator)
}

// SortedPair returns a and b in the order PairID joins them.
func SortedPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

// Conversation is the per-pair summary stored at conversations/{pairId}.
type Conversation struct {
	ChatID       string    `json:"chatId"`
	Participants []string  `json:"participants"`
	LastMessage  string    `json:"lastMessage"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Title        string    `json:"title,omitempty"`
}

// Other returns the participant that is not uid, or "" if uid is not a participant.
func (c Conversation) Other(uid string) string {
	if len(c.Participants) != 2 {
		return ""
	}
	switch uid {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	}
	return ""
}

func DecodeConversation(id string, data map[string]any) (Conversation, error) {
	d := &decoder{data: data}
	c := Conversation{
		ChatID:       d.str("chatId"),
		Participants: d.strings("participants"),
		LastMessage:  d.str("lastMessage"),
		UpdatedAt:    d.time("updatedAt"),
		Title:        d.str("title"),
	}
	if c.ChatID == "" {
		c.ChatID = id
	}
	if d.err == nil && len(c.Participants) != 2 {
		d.err = fmt.Errorf("%w: %d participants", ErrMalformedDocument, len(c.Participants))
	}
	if d.err != nil {
		return Conversation{}, fmt.Errorf("conversation %s: %w", id, d.err)
	}
	return c, nil
}

// Message is one entry in conversations/{pairId}/messages.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

func DecodeMessage(id string, data map[string]any) (Message, error) {
	d := &decoder{data: data}
	m := Message{
		ID:        id,
		From:      d.str("from"),
		Text:      d.str("text"),
		CreatedAt: d.time("createdAt"),
	}
	if d.err != nil {
		return Message{}, fmt.Errorf("message %s: %w", id, d.err)
	}
	return m, nil
}
