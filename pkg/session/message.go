package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable entry in a session transcript. Language is
// frozen at creation time; later settings changes never rewrite it.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// newMessageID builds an opaque id that still sorts in creation order
// within a session.
func newMessageID(seq uint64) string {
	return fmt.Sprintf("%08d-%s", seq, uuid.NewString())
}
