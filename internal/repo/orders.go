package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateOrder stores a new order record.
func (s *PostgresStore) CreateOrder(ctx context.Context, order Order) (*Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = OrderStatusPlaced
	}
	const q = `
INSERT INTO orders (id, user_id, partner_id, service_id, cust_number, time, status, note, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, user_id, partner_id, service_id, cust_number, time, status, note, active, created_at;
`
	row := s.pool.QueryRow(ctx, q,
		order.ID, order.UserID, order.PartnerID, order.ServiceID,
		order.CustNumber, order.Time, order.Status, order.Note, order.Active,
	)
	var created Order
	if err := row.Scan(&created.ID, &created.UserID, &created.PartnerID, &created.ServiceID,
		&created.CustNumber, &created.Time, &created.Status, &created.Note,
		&created.Active, &created.CreatedAt); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &created, nil
}
