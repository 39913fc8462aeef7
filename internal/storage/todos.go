package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/narastore/narastore/internal/rfp"
)

// CreateTodo inserts one incomplete todo for rfpID and returns its id.
// The rfp id is not checked against the rfps table.
func (s *Store) CreateTodo(ctx context.Context, rfpID, text string) (string, error) {
	ids, err := s.CreateTodos(ctx, rfpID, []string{text})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CreateTodos inserts all texts for rfpID in one transaction: either every
// todo is stored or none is. The returned ids follow the order of texts.
func (s *Store) CreateTodos(ctx context.Context, rfpID string, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning todo transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO todos (id, rfp_id, text, completed, created_at) VALUES (?, ?, ?, 0, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing todo insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	ids := make([]string, len(texts))
	for i, text := range texts {
		ids[i] = uuid.New().String()
		if _, err := stmt.ExecContext(ctx, ids[i], rfpID, text, formatTime(now)); err != nil {
			return nil, fmt.Errorf("inserting todo %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing todos: %w", err)
	}
	s.notifier.publish(CollectionTodos)
	return ids, nil
}

// GetTodo returns the todo with the given id.
func (s *Store) GetTodo(ctx context.Context, id string) (rfp.Todo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, rfp_id, text, completed, created_at FROM todos WHERE id = ?`, id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rfp.Todo{}, ErrNotFound
	}
	return t, err
}

// ListTodos returns todos matching f, newest first. Todos created in the same
// batch keep their insertion order.
func (s *Store) ListTodos(ctx context.Context, f TodoFilter) ([]rfp.Todo, error) {
	q := sq.Select("id", "rfp_id", "text", "completed", "created_at").From("todos")
	if f.RFPID != "" {
		q = q.Where(sq.Eq{"rfp_id": f.RFPID})
	}
	query, args, err := q.OrderBy("created_at DESC", "rowid ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building todo query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []rfp.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// SetTodoCompleted sets the completed flag of a todo.
func (s *Store) SetTodoCompleted(ctx context.Context, id string, completed bool) error {
	return s.execTodo(ctx, `UPDATE todos SET completed = ? WHERE id = ?`, boolToInt(completed), id)
}

// ToggleTodo flips the completed flag and returns the new value.
func (s *Store) ToggleTodo(ctx context.Context, id string) (bool, error) {
	var completed int
	err := s.db.QueryRowContext(ctx, `UPDATE todos SET completed = 1 - completed WHERE id = ? RETURNING completed`, id).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggling todo: %w", err)
	}
	s.notifier.publish(CollectionTodos)
	return completed == 1, nil
}

// UpdateTodoText replaces the text of a todo.
func (s *Store) UpdateTodoText(ctx context.Context, id, text string) error {
	return s.execTodo(ctx, `UPDATE todos SET text = ? WHERE id = ?`, text, id)
}

// DeleteTodo removes a todo. Deleting a missing id is a no-op.
func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notifier.publish(CollectionTodos)
	}
	return nil
}

func (s *Store) execTodo(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.notifier.publish(CollectionTodos)
	return nil
}

func scanTodo(row rowScanner) (rfp.Todo, error) {
	var t rfp.Todo
	var completed int
	var createdAt string
	if err := row.Scan(&t.ID, &t.RFPID, &t.Text, &completed, &createdAt); err != nil {
		return rfp.Todo{}, err
	}
	t.Completed = completed == 1
	ts, err := parseTime(createdAt)
	if err != nil {
		return rfp.Todo{}, err
	}
	t.CreatedAt = ts
	return t, nil
}
