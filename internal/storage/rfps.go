package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/narastore/narastore/internal/rfp"
)

const rfpColumns = `id, title, analysis_date, status, structured_analysis, summary, analysis, strategy, page_count, size_bytes, created_at`

// CreateRFP inserts a new RFP and returns its generated id. The id and
// CreatedAt fields of r are ignored.
func (s *Store) CreateRFP(ctx context.Context, r rfp.RFP) (string, error) {
	if r.Status == "" {
		r.Status = rfp.StatusPending
	}
	if !r.Status.Valid() {
		return "", fmt.Errorf("unknown status %q", r.Status)
	}
	analysisJSON, err := encodeAnalysis(r.StructuredAnalysis)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rfps (`+rfpColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Title, r.AnalysisDate, string(r.Status), analysisJSON,
		r.Summary, r.Analysis, r.Strategy, r.PageCount, r.SizeBytes,
		formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("inserting rfp: %w", err)
	}
	s.notifier.publish(CollectionRFPs)
	return id, nil
}

// GetRFP returns the RFP with the given id.
func (s *Store) GetRFP(ctx context.Context, id string) (rfp.RFP, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rfpColumns+` FROM rfps WHERE id = ?`, id)
	r, err := scanRFP(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rfp.RFP{}, ErrNotFound
	}
	return r, err
}

// ListRFPs returns every RFP, newest first.
func (s *Store) ListRFPs(ctx context.Context) ([]rfp.RFP, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+rfpColumns+` FROM rfps ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []rfp.RFP{}
	for rows.Next() {
		r, err := scanRFP(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// UpdateRFP merges the non-nil fields of u into the RFP. It returns
// ErrNotFound when id does not exist and rfp.ErrInvalidStatusTransition when
// the status change would leave a settled state.
func (s *Store) UpdateRFP(ctx context.Context, id string, u RFPUpdate) error {
	set := map[string]any{}
	if u.Status != nil {
		if !u.Status.Valid() {
			return fmt.Errorf("unknown status %q", *u.Status)
		}
		set["status"] = string(*u.Status)
	}
	if u.StructuredAnalysis != nil {
		analysisJSON, err := encodeAnalysis(u.StructuredAnalysis)
		if err != nil {
			return err
		}
		set["structured_analysis"] = analysisJSON
	}
	if u.Summary != nil {
		set["summary"] = *u.Summary
	}
	if u.Analysis != nil {
		set["analysis"] = *u.Analysis
	}
	if u.Strategy != nil {
		set["strategy"] = *u.Strategy
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning update transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM rfps WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading rfp status: %w", err)
	}
	if u.Status != nil && !rfp.CanTransition(rfp.Status(current), *u.Status) {
		return fmt.Errorf("%w: %s -> %s", rfp.ErrInvalidStatusTransition, current, *u.Status)
	}
	if len(set) == 0 {
		return nil
	}

	query, args, err := sq.Update("rfps").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating rfp: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}
	s.notifier.publish(CollectionRFPs)
	return nil
}

// DeleteRFP removes an RFP together with its todos.
//
// The delete runs in two phases: first every todo with a matching rfp_id,
// then the RFP row itself. The phases are not one transaction. If the second
// phase fails the RFP survives without todos, and calling DeleteRFP again
// finishes the job; deleting rows that are already gone is not an error.
func (s *Store) DeleteRFP(ctx context.Context, id string) (CascadeResult, error) {
	var res CascadeResult

	out, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE rfp_id = ?`, id)
	if err != nil {
		return res, fmt.Errorf("deleting todos of rfp %s: %w", id, err)
	}
	res.TodosDeleted, _ = out.RowsAffected()
	if res.TodosDeleted > 0 {
		s.notifier.publish(CollectionTodos)
	}

	if s.afterTodoPhase != nil {
		if err := s.afterTodoPhase(id); err != nil {
			return res, err
		}
	}

	out, err = s.db.ExecContext(ctx, `DELETE FROM rfps WHERE id = ?`, id)
	if err != nil {
		return res, fmt.Errorf("deleting rfp %s: %w", id, err)
	}
	n, _ := out.RowsAffected()
	res.RFPDeleted = n > 0
	if res.RFPDeleted {
		s.notifier.publish(CollectionRFPs)
	}
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRFP(row rowScanner) (rfp.RFP, error) {
	var r rfp.RFP
	var status, createdAt string
	var analysisJSON sql.NullString
	if err := row.Scan(&r.ID, &r.Title, &r.AnalysisDate, &status, &analysisJSON,
		&r.Summary, &r.Analysis, &r.Strategy, &r.PageCount, &r.SizeBytes, &createdAt); err != nil {
		return rfp.RFP{}, err
	}
	r.Status = rfp.Status(status)

	if analysisJSON.Valid && analysisJSON.String != "" {
		var a rfp.AnalysisResult
		if err := json.Unmarshal([]byte(analysisJSON.String), &a); err != nil {
			return rfp.RFP{}, fmt.Errorf("decoding structured analysis of %s: %w", r.ID, err)
		}
		r.StructuredAnalysis = &a
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return rfp.RFP{}, err
	}
	r.CreatedAt = t
	return r, nil
}

func encodeAnalysis(a *rfp.AnalysisResult) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding structured analysis: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
