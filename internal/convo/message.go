package convo

import (
	"context"
	"strings"
	"time"
)

// Sigil is the prefix marking a chat message as a command.
const Sigil = "-"

// Message is a transport-neutral inbound chat message.
type Message struct {
	ID           string
	SenderJID    string
	SenderNumber string
	PushName     string
	ChatJID      string
	IsGroup      bool
	IsForwarded  bool
	Body         string
	Timestamp    time.Time
}

// identityKey is the serialization unit: the chat for groups, the sender for
// personal conversations.
func (m Message) identityKey() string {
	if m.IsGroup {
		return m.ChatJID
	}
	return m.SenderJID
}

// Gateway sends outbound messages through the chat transport.
type Gateway interface {
	SendText(ctx context.Context, jid, text string) error
	SendTextWithMentions(ctx context.Context, jid, text string, mentionJIDs []string) error
	SendSticker(ctx context.Context, jid string, webpData []byte) error
	GroupParticipantCount(ctx context.Context, jid string) (int, error)
}

// firstToken returns the text up to the first whitespace.
func firstToken(body string) string {
	if i := strings.IndexFunc(body, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }); i != -1 {
		return body[:i]
	}
	return body
}

// commandArgs returns the trimmed remainder of body after the first token.
func commandArgs(body string) string {
	token := firstToken(body)
	return strings.TrimSpace(body[len(token):])
}
