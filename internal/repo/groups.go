package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateGroupChat stores a new group chat record.
func (s *PostgresStore) CreateGroupChat(ctx context.Context, group GroupChat) (*GroupChat, error) {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	const q = `
INSERT INTO group_chats (id, group_jid, size, is_partner, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, group_jid, size, is_partner, active, created_at, updated_at;
`
	row := s.pool.QueryRow(ctx, q, group.ID, group.GroupJID, group.Size, group.IsPartner, group.Active)
	var g GroupChat
	if err := row.Scan(&g.ID, &g.GroupJID, &g.Size, &g.IsPartner, &g.Active, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create group chat: %w", err)
	}
	return &g, nil
}

// FindGroupChatByJID returns the active group chat keyed by its external JID.
func (s *PostgresStore) FindGroupChatByJID(ctx context.Context, jid string) (*GroupChat, error) {
	const q = `
SELECT id, group_jid, size, is_partner, active, created_at, updated_at
FROM group_chats
WHERE group_jid = $1 AND active
LIMIT 1;
`
	row := s.pool.QueryRow(ctx, q, jid)
	var g GroupChat
	if err := row.Scan(&g.ID, &g.GroupJID, &g.Size, &g.IsPartner, &g.Active, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find group chat: %w", err)
	}
	return &g, nil
}

// ToggleGroupChatActive flips the soft-delete marker on a group chat.
func (s *PostgresStore) ToggleGroupChatActive(ctx context.Context, id string) error {
	const q = `UPDATE group_chats SET active = NOT active, updated_at = NOW() WHERE id = $1;`
	ct, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("toggle group chat active: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("toggle group chat active %s: %w", id, ErrNotFound)
	}
	return nil
}
