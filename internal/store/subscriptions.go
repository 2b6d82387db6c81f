package store

import (
	"context"
	"fmt"
)

// Subscribed reports which of the given place IDs belong to facilities with an
// active subscription. Unknown IDs are absent from the result.
func (s *Store) Subscribed(ctx context.Context, placeIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(placeIDs))
	if len(placeIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT place_id
		FROM facility_subscriptions
		WHERE active AND place_id = ANY($1)`,
		placeIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// UpsertSubscription marks a facility as subscribed or not.
func (s *Store) UpsertSubscription(ctx context.Context, placeID string, active bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO facility_subscriptions (place_id, active, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (place_id)
		DO UPDATE SET active = $2, updated_at = now()`,
		placeID, active,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// Migrate creates the subscription table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS facility_subscriptions (
			place_id   text PRIMARY KEY,
			active     boolean NOT NULL DEFAULT true,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
