package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// File is one uploaded artifact (company info document or slide
// template).
type File struct {
	ID         int64
	ProfileID  sql.NullInt64
	Kind       string
	Filename   string
	URL        string
	SizeBytes  int64
	UploadedAt time.Time
}

// InsertFile records an uploaded file.
func (s *Store) InsertFile(ctx context.Context, profileID *int64, kind, filename, url string, sizeBytes int64) (File, error) {
	var pid sql.NullInt64
	if profileID != nil {
		pid = sql.NullInt64{Int64: *profileID, Valid: true}
	}

	var f File
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO files (profile_id, kind, filename, url, size_bytes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, profile_id, kind, filename, url, size_bytes, uploaded_at`,
		pid, kind, filename, url, sizeBytes).
		Scan(&f.ID, &f.ProfileID, &f.Kind, &f.Filename, &f.URL, &f.SizeBytes, &f.UploadedAt)
	return f, err
}

// ListFiles returns uploaded files, newest first, optionally filtered by
// kind.
func (s *Store) ListFiles(ctx context.Context, profileID *int64, kind string, limit int32) ([]File, error) {
	query := `SELECT id, profile_id, kind, filename, url, size_bytes, uploaded_at
	          FROM files WHERE 1=1`
	args := []any{}
	if profileID != nil {
		args = append(args, *profileID)
		query += ` AND profile_id = $1`
	}
	if kind != "" {
		args = append(args, kind)
		if len(args) == 1 {
			query += ` AND kind = $1`
		} else {
			query += ` AND kind = $2`
		}
	}
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY uploaded_at DESC LIMIT %d`, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.ProfileID, &f.Kind, &f.Filename, &f.URL, &f.SizeBytes, &f.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// TokenUsage is one recorded token consumption entry reported by an
// agent run.
type TokenUsage struct {
	ID               int64
	ProfileID        sql.NullInt64
	EventID          sql.NullInt64
	Agent            string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	RecordedAt       time.Time
}

// InsertTokenUsage records token consumption for an agent run.
func (s *Store) InsertTokenUsage(ctx context.Context, eventID *int64, agent string, promptTokens, completionTokens int64) error {
	var eid sql.NullInt64
	if eventID != nil {
		eid = sql.NullInt64{Int64: *eventID, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO token_usage (event_id, agent, prompt_tokens, completion_tokens, total_tokens)
		 VALUES ($1, $2, $3, $4, $5)`,
		eid, agent, promptTokens, completionTokens, promptTokens+completionTokens)
	return err
}

// UsageSummary aggregates token usage per agent.
type UsageSummary struct {
	Agent            string
	Runs             int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// SummarizeTokenUsage aggregates usage per agent since the given time.
func (s *Store) SummarizeTokenUsage(ctx context.Context, since time.Time) ([]UsageSummary, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT agent, COUNT(*),
		        COALESCE(SUM(prompt_tokens), 0),
		        COALESCE(SUM(completion_tokens), 0),
		        COALESCE(SUM(total_tokens), 0)
		 FROM token_usage
		 WHERE recorded_at >= $1
		 GROUP BY agent
		 ORDER BY agent`,
		since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsageSummary
	for rows.Next() {
		var u UsageSummary
		if err := rows.Scan(&u.Agent, &u.Runs, &u.PromptTokens, &u.CompletionTokens, &u.TotalTokens); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteTokenUsageBefore removes usage rows older than the cutoff so the
// table does not grow without bound.
func (s *Store) DeleteTokenUsageBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM token_usage WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
