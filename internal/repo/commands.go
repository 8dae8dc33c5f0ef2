package repo

import (
	"context"
	"fmt"
)

// ListActiveCommands returns every active command ordered by sort key then token.
func (s *PostgresStore) ListActiveCommands(ctx context.Context) ([]Command, error) {
	const q = `
SELECT id, name, token, description, parent_id, is_partner, is_admin, is_personal, is_group, sort_order, active
FROM commands
WHERE active
ORDER BY sort_order, token;
`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var c Command
		if err := rows.Scan(&c.ID, &c.Name, &c.Token, &c.Description, &c.ParentID,
			&c.IsPartner, &c.IsAdmin, &c.IsPersonal, &c.IsGroup, &c.Order, &c.Active); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return commands, nil
}
