package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const partnerColumns = `id, user_id, motorcycle, police_number, is_ready, reason, state, active, created_at, updated_at`

func scanPartner(row pgx.Row) (*Partner, error) {
	var p Partner
	err := row.Scan(&p.ID, &p.UserID, &p.Motorcycle, &p.PoliceNumber, &p.IsReady,
		&p.Reason, &p.State, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreatePartner stores a new partner record.
func (s *PostgresStore) CreatePartner(ctx context.Context, partner Partner) (*Partner, error) {
	if partner.ID == "" {
		partner.ID = uuid.NewString()
	}
	const q = `
INSERT INTO partners (id, user_id, motorcycle, police_number, is_ready, reason, state, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + partnerColumns + `;
`
	row := s.pool.QueryRow(ctx, q,
		partner.ID, partner.UserID, partner.Motorcycle, partner.PoliceNumber,
		partner.IsReady, partner.Reason, partner.State, partner.Active,
	)
	created, err := scanPartner(row)
	if err != nil {
		return nil, fmt.Errorf("create partner: %w", err)
	}
	return created, nil
}

// GetPartner returns a partner with its service bindings.
func (s *PostgresStore) GetPartner(ctx context.Context, id string) (*Partner, error) {
	const q = `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1 LIMIT 1;`
	p, err := scanPartner(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get partner: %w", err)
	}
	if err := s.loadPartnerServices(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindPartnerByUserID returns the active partner owned by the user.
func (s *PostgresStore) FindPartnerByUserID(ctx context.Context, userID string) (*Partner, error) {
	const q = `SELECT ` + partnerColumns + ` FROM partners WHERE user_id = $1 AND active LIMIT 1;`
	p, err := scanPartner(s.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find partner by user: %w", err)
	}
	if err := s.loadPartnerServices(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) loadPartnerServices(ctx context.Context, p *Partner) error {
	const q = `SELECT service_id, pricelist_id FROM partner_services WHERE partner_id = $1;`
	rows, err := s.pool.Query(ctx, q, p.ID)
	if err != nil {
		return fmt.Errorf("load partner services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ps PartnerService
		if err := rows.Scan(&ps.ServiceID, &ps.PricelistID); err != nil {
			return fmt.Errorf("scan partner service: %w", err)
		}
		p.Services = append(p.Services, ps)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate partner services: %w", err)
	}
	return nil
}

// UpdatePartner persists mutable partner fields.
func (s *PostgresStore) UpdatePartner(ctx context.Context, partner *Partner) error {
	const q = `
UPDATE partners
SET motorcycle = $2, police_number = $3, is_ready = $4, reason = $5,
    state = $6, active = $7, updated_at = NOW()
WHERE id = $1;
`
	ct, err := s.pool.Exec(ctx, q,
		partner.ID, partner.Motorcycle, partner.PoliceNumber, partner.IsReady,
		partner.Reason, partner.State, partner.Active,
	)
	if err != nil {
		return fmt.Errorf("update partner: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update partner %s: %w", partner.ID, ErrNotFound)
	}
	return nil
}

// BindPartnerUser assigns the owning user once. A partner that already has an
// owner is left untouched and the call reports false.
func (s *PostgresStore) BindPartnerUser(ctx context.Context, partnerID, userID string) (bool, error) {
	const q = `
UPDATE partners SET user_id = $2, updated_at = NOW()
WHERE id = $1 AND user_id IS NULL;
`
	ct, err := s.pool.Exec(ctx, q, partnerID, userID)
	if err != nil {
		return false, fmt.Errorf("bind partner user: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// SetPartnerServices replaces the partner's service bindings.
func (s *PostgresStore) SetPartnerServices(ctx context.Context, partnerID string, services []PartnerService) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM partner_services WHERE partner_id = $1;`, partnerID); err != nil {
			return fmt.Errorf("clear partner services: %w", err)
		}
		for _, svc := range services {
			if _, err := tx.Exec(ctx, `
INSERT INTO partner_services (partner_id, service_id, pricelist_id)
VALUES ($1, $2, $3);
`, partnerID, svc.ServiceID, svc.PricelistID); err != nil {
				return fmt.Errorf("insert partner service: %w", err)
			}
		}
		return nil
	})
}

// ListPartnerStatuses returns the active partner roster joined with owner
// details, most recently updated first.
func (s *PostgresStore) ListPartnerStatuses(ctx context.Context, filter StatusFilter) ([]PartnerStatus, error) {
	q := `
SELECT p.id, u.name, u.username, u.gender, u.number, u.wa_id, p.is_ready, p.reason, p.updated_at
FROM partners p
JOIN users u ON u.id = p.user_id
WHERE p.active
`
	switch filter {
	case StatusFilterReady:
		q += ` AND p.is_ready`
	case StatusFilterBusy:
		q += ` AND NOT p.is_ready`
	}
	q += ` ORDER BY p.updated_at DESC;`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list partner statuses: %w", err)
	}
	defer rows.Close()

	var statuses []PartnerStatus
	for rows.Next() {
		var st PartnerStatus
		if err := rows.Scan(&st.PartnerID, &st.Name, &st.Username, &st.Gender,
			&st.Number, &st.WAID, &st.IsReady, &st.Reason, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan partner status: %w", err)
		}
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partner statuses: %w", err)
	}
	return statuses, nil
}

// ListServiceNamesForPartner returns full names of the services bound to a partner.
func (s *PostgresStore) ListServiceNamesForPartner(ctx context.Context, partnerID string) ([]string, error) {
	const q = `
SELECT s.fullname
FROM partner_services ps
JOIN services s ON s.id = ps.service_id
WHERE ps.partner_id = $1
ORDER BY s.fullname;
`
	rows, err := s.pool.Query(ctx, q, partnerID)
	if err != nil {
		return nil, fmt.Errorf("list partner service names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan service name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service names: %w", err)
	}
	return names, nil
}

// TogglePartnerActive flips the soft-delete marker on a partner.
func (s *PostgresStore) TogglePartnerActive(ctx context.Context, id string) error {
	const q = `UPDATE partners SET active = NOT active, updated_at = NOW() WHERE id = $1;`
	ct, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("toggle partner active: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("toggle partner active %s: %w", id, ErrNotFound)
	}
	return nil
}
