package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/jobs"
)

// JobState holds the per-kind job-status columns of a calendar event
// row. An absent status reads as pending.
type JobState struct {
	Status      sql.NullString
	StartedAt   sql.NullTime
	URL         sql.NullString
	Content     sql.NullString
	GeneratedAt sql.NullTime
}

// EffectiveStatus maps an unset status column to pending.
func (j JobState) EffectiveStatus() jobs.Status {
	if !j.Status.Valid || j.Status.String == "" {
		return jobs.StatusPending
	}
	return jobs.Status(j.Status.String)
}

// Event is one calendar event row, including both job-status
// sub-records.
type Event struct {
	ID            int64
	ProfileID     sql.NullInt64
	ExternalID    string
	Source        string
	Title         string
	Description   string
	AttendeeEmail string
	StartsAt      sql.NullTime
	EndsAt        sql.NullTime
	Report        JobState
	Slides        JobState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Job returns the JobState for the given kind.
func (e Event) Job(kind jobs.Kind) JobState {
	if kind == jobs.KindSlides {
		return e.Slides
	}
	return e.Report
}

// jobColumns maps a job kind onto its column names. The slides job has
// no content column; callers must check for the empty string.
func jobColumns(kind jobs.Kind) (status, started, url, content, generated string) {
	switch kind {
	case jobs.KindSlides:
		return "slides_status", "slides_started_at", "slides_url", "", "slides_generated_at"
	default:
		return "presales_report_status", "presales_report_started_at", "presales_report_url",
			"presales_report_content", "presales_report_generated_at"
	}
}

const eventColumns = `id, profile_id, external_id, source, title, description, attendee_email,
	starts_at, ends_at,
	presales_report_status, presales_report_started_at, presales_report_url,
	presales_report_content, presales_report_generated_at,
	slides_status, slides_started_at, slides_url, slides_generated_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.ProfileID, &e.ExternalID, &e.Source, &e.Title, &e.Description, &e.AttendeeEmail,
		&e.StartsAt, &e.EndsAt,
		&e.Report.Status, &e.Report.StartedAt, &e.Report.URL,
		&e.Report.Content, &e.Report.GeneratedAt,
		&e.Slides.Status, &e.Slides.StartedAt, &e.Slides.URL, &e.Slides.GeneratedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// GetEvent fetches a single calendar event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (Event, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM calendar_events WHERE id = $1`, id)
	return scanEvent(row)
}

// ListEvents returns events ordered by start time, optionally scoped to
// a profile.
func (s *Store) ListEvents(ctx context.Context, profileID *int64, limit, offset int32) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events`
	args := []any{}
	if profileID != nil {
		query += ` WHERE profile_id = $1`
		args = append(args, *profileID)
	}
	query += fmt.Sprintf(` ORDER BY starts_at NULLS LAST, id LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventUpsert carries the calendar fields synchronized from a connected
// calendar. Job-status columns are never touched by upserts.
type EventUpsert struct {
	ProfileID     *int64
	ExternalID    string
	Source        string
	Title         string
	Description   string
	AttendeeEmail string
	StartsAt      *time.Time
	EndsAt        *time.Time
}

// UpsertEvent inserts or refreshes a calendar event keyed by
// (profile_id, source, external_id) and returns the row id.
func (s *Store) UpsertEvent(ctx context.Context, in EventUpsert) (int64, error) {
	var profileID sql.NullInt64
	if in.ProfileID != nil {
		profileID = sql.NullInt64{Int64: *in.ProfileID, Valid: true}
	}
	var startsAt, endsAt sql.NullTime
	if in.StartsAt != nil {
		startsAt = sql.NullTime{Time: *in.StartsAt, Valid: true}
	}
	if in.EndsAt != nil {
		endsAt = sql.NullTime{Time: *in.EndsAt, Valid: true}
	}

	var id int64
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO calendar_events
		   (profile_id, external_id, source, title, description, attendee_email, starts_at, ends_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (profile_id, source, external_id) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   attendee_email = EXCLUDED.attendee_email,
		   starts_at = EXCLUDED.starts_at,
		   ends_at = EXCLUDED.ends_at,
		   updated_at = now()
		 RETURNING id`,
		profileID, in.ExternalID, in.Source, in.Title, in.Description,
		in.AttendeeEmail, startsAt, endsAt).Scan(&id)
	return id, err
}

// ClaimJob atomically transitions the given job into processing. The
// WHERE clause enforces the retrigger precondition in a single
// conditional UPDATE, so two racing triggers cannot both claim the same
// job: claims are allowed from unset/pending/failed, or from a stale
// processing row whose started_at predates staleBefore. Returns true if
// this call won the claim.
func (s *Store) ClaimJob(ctx context.Context, id int64, kind jobs.Kind, now, staleBefore time.Time) (bool, error) {
	status, started, url, _, _ := jobColumns(kind)
	res, err := s.DB.ExecContext(ctx, fmt.Sprintf(
		`UPDATE calendar_events
		 SET %[1]s = 'processing', %[2]s = $2, updated_at = now()
		 WHERE id = $1 AND (
		   %[1]s IS NULL OR %[1]s IN ('pending', 'failed')
		   OR (%[1]s = 'processing' AND %[3]s IS NULL AND %[2]s IS NOT NULL AND %[2]s < $3)
		 )`, status, started, url),
		id, now, staleBefore)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SweepStale marks every job of the given kind stuck in processing past
// the cutoff as failed. Idempotent: rows already failed are not matched
// again.
func (s *Store) SweepStale(ctx context.Context, kind jobs.Kind, staleBefore time.Time) (int64, error) {
	status, started, url, _, _ := jobColumns(kind)
	res, err := s.DB.ExecContext(ctx, fmt.Sprintf(
		`UPDATE calendar_events
		 SET %[1]s = 'failed', updated_at = now()
		 WHERE %[1]s = 'processing' AND %[2]s IS NULL AND %[3]s IS NOT NULL AND %[3]s < $1`,
		status, url, started),
		staleBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CompleteJob writes a terminal completed state with its result. Content
// only applies to the report job; it is ignored for slides, which have
// no content column.
func (s *Store) CompleteJob(ctx context.Context, id int64, kind jobs.Kind, url, content *string, generatedAt time.Time) error {
	statusCol, _, urlCol, contentCol, generatedCol := jobColumns(kind)

	var u, c sql.NullString
	if url != nil {
		u = sql.NullString{String: *url, Valid: true}
	}
	if content != nil {
		c = sql.NullString{String: *content, Valid: true}
	}

	if contentCol == "" {
		_, err := s.DB.ExecContext(ctx, fmt.Sprintf(
			`UPDATE calendar_events
			 SET %s = 'completed', %s = $2, %s = $3, updated_at = now()
			 WHERE id = $1`, statusCol, urlCol, generatedCol),
			id, u, generatedAt)
		return err
	}

	_, err := s.DB.ExecContext(ctx, fmt.Sprintf(
		`UPDATE calendar_events
		 SET %s = 'completed', %s = $2, %s = $3, %s = $4, updated_at = now()
		 WHERE id = $1`, statusCol, urlCol, contentCol, generatedCol),
		id, u, c, generatedAt)
	return err
}

// FailJob writes a terminal failed state with no result.
func (s *Store) FailJob(ctx context.Context, id int64, kind jobs.Kind) error {
	statusCol, _, _, _, _ := jobColumns(kind)
	_, err := s.DB.ExecContext(ctx, fmt.Sprintf(
		`UPDATE calendar_events SET %s = 'failed', updated_at = now() WHERE id = $1`,
		statusCol),
		id)
	return err
}

// GetOrCreateProfile resolves a profile id by email, creating the row on
// first use.
func (s *Store) GetOrCreateProfile(ctx context.Context, email, name, provider string) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO profiles (email, name, provider)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		email, name, provider).Scan(&id)
	return id, err
}
