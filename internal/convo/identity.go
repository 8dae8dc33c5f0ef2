package convo

import (
	"context"
	"errors"
	"fmt"

	"bot-ojek/internal/repo"
)

// Identity is the resolved sender of a message: a known user, a known group
// chat, or neither (unregistered).
type Identity struct {
	User  *repo.User
	Group *repo.GroupChat
}

// resolveIdentity classifies the sender by exact external id among active
// records. A storage failure degrades to unregistered with an admin
// notification; it never raises into the dispatch path.
func (e *Engine) resolveIdentity(ctx context.Context, msg Message) Identity {
	if msg.IsGroup {
		group, err := e.store.FindGroupChatByJID(ctx, msg.ChatJID)
		if err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				e.notifier.Operational(ctx, msg, fmt.Errorf("resolve group chat: %w", err))
			}
			return Identity{}
		}
		return Identity{Group: group}
	}

	user, err := e.store.FindUserByWAID(ctx, msg.SenderJID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			e.notifier.Operational(ctx, msg, fmt.Errorf("resolve user: %w", err))
		}
		return Identity{}
	}
	return Identity{User: user}
}
