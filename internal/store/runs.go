package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

var (
	// ErrNotFound is returned when no run matches an id
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguous is returned when an id prefix matches several runs
	ErrAmbiguous = errors.New("run id prefix is ambiguous")
)

// RunSummary is one row of the history listing
type RunSummary struct {
	ID               string    `db:"id"`
	Source           string    `db:"source"`
	CreatedAt        time.Time `db:"-"`
	CreatedAtRaw     string    `db:"created_at"`
	NumClaims        int       `db:"num_claims"`
	NumCheckworthy   int       `db:"num_checkworthy"`
	NumVerified      int       `db:"num_verified"`
	NumSupported     int       `db:"num_supported"`
	NumRefuted       int       `db:"num_refuted"`
	NumControversial int       `db:"num_controversial"`
	Factuality       float64   `db:"factuality"`
}

// SaveRun stores a finalized result. Saving the same id again replaces it.
func (db *DB) SaveRun(ctx context.Context, r *model.Result) error {
	if r == nil || r.ID == "" {
		return errors.New("save run: result without id")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("save run: encode: %w", err)
	}

	s := r.Summary
	_, err = db.conn.ExecContext(ctx, `
INSERT OR REPLACE INTO runs (
    id, source, created_at, num_claims, num_checkworthy, num_verified,
    num_supported, num_refuted, num_controversial, factuality, result_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.CreatedAt.UTC().Format(time.RFC3339Nano),
		s.NumClaims, s.NumCheckworthy, s.NumVerified,
		s.NumSupported, s.NumRefuted, s.NumControversial, s.Factuality,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first, at most limit (0 = all)
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
SELECT id, source, created_at, num_claims, num_checkworthy, num_verified,
       num_supported, num_refuted, num_controversial, factuality
FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var runs []RunSummary
	if err := db.conn.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		t, err := time.Parse(time.RFC3339Nano, runs[i].CreatedAtRaw)
		if err != nil {
			return nil, fmt.Errorf("list runs: run %s: %w", runs[i].ID, err)
		}
		runs[i].CreatedAt = t
	}
	return runs, nil
}

// GetRun loads a stored result by full id or unique id prefix
func (db *DB) GetRun(ctx context.Context, id string) (*model.Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	var payloads []string
	err := db.conn.SelectContext(ctx, &payloads,
		`SELECT result_json FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, escapeLike(id)+"%", id)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	switch {
	case len(payloads) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case len(payloads) > 1:
		// an exact match sorts first and wins over prefix matches
		var exact int
		if err := db.conn.GetContext(ctx, &exact, `SELECT COUNT(*) FROM runs WHERE id = ?`, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get run %s: %w", id, err)
		}
		if exact == 0 {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
		}
	}

	var r model.Result
	if err := json.Unmarshal([]byte(payloads[0]), &r); err != nil {
		return nil, fmt.Errorf("get run %s: decode: %w", id, err)
	}
	return &r, nil
}

// DeleteRun removes a run by full id
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
