package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narastore/narastore/internal/rfp"
)

// CreatePersonnel inserts a personnel record and returns its id. Records are
// never updated in place; an edit is a delete followed by a create.
func (s *Store) CreatePersonnel(ctx context.Context, p rfp.Personnel) (string, error) {
	if p.Name == "" {
		return "", fmt.Errorf("%w: name is required", rfp.ErrInvalidPersonnel)
	}
	if p.Status == "" {
		p.Status = rfp.Available
	}
	stack, err := json.Marshal(rfp.DedupeTechStack(p.TechStack))
	if err != nil {
		return "", fmt.Errorf("encoding tech stack: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO personnel (id, name, position, role, experience, tech_stack, status, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, string(p.Position), p.Role, p.Experience, string(stack), string(p.Status),
		formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("inserting personnel: %w", err)
	}
	s.notifier.publish(CollectionPersonnel)
	return id, nil
}

// ListPersonnel returns the roster ordered by name.
func (s *Store) ListPersonnel(ctx context.Context) ([]rfp.Personnel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, position, role, experience, tech_stack, status, registered_at
		FROM personnel ORDER BY name ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []rfp.Personnel{}
	for rows.Next() {
		var p rfp.Personnel
		var position, status, stack, registeredAt string
		if err := rows.Scan(&p.ID, &p.Name, &position, &p.Role, &p.Experience, &stack, &status, &registeredAt); err != nil {
			return nil, err
		}
		p.Position = rfp.Position(position)
		p.Status = rfp.Availability(status)
		if err := json.Unmarshal([]byte(stack), &p.TechStack); err != nil {
			return nil, fmt.Errorf("decoding tech stack of %s: %w", p.ID, err)
		}
		if p.RegisteredAt, err = parseTime(registeredAt); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// DeletePersonnel removes one personnel record. Deleting a missing id is a no-op.
func (s *Store) DeletePersonnel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM personnel WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting personnel: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notifier.publish(CollectionPersonnel)
	}
	return nil
}
