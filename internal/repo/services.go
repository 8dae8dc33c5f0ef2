package repo

import (
	"context"
	"fmt"
)

// ListActiveServices returns every active service ordered by short name.
func (s *PostgresStore) ListActiveServices(ctx context.Context) ([]Service, error) {
	const q = `
SELECT id, fullname, shortname, description, tag, active
FROM services
WHERE active
ORDER BY shortname;
`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Fullname, &svc.Shortname, &svc.Description, &svc.Tag, &svc.Active); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

// FindServicesByShortnames returns the active services matching any of the
// provided short names.
func (s *PostgresStore) FindServicesByShortnames(ctx context.Context, shortnames []string) ([]Service, error) {
	if len(shortnames) == 0 {
		return nil, nil
	}
	const q = `
SELECT id, fullname, shortname, description, tag, active
FROM services
WHERE shortname = ANY($1) AND active;
`
	rows, err := s.pool.Query(ctx, q, shortnames)
	if err != nil {
		return nil, fmt.Errorf("find services by shortnames: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Fullname, &svc.Shortname, &svc.Description, &svc.Tag, &svc.Active); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}
