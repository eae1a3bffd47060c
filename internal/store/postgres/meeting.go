package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
)

const meetingSelect = `
SELECT m.id, m.title, m.description, m.start_time, m.end_time, m.created_by, m.created_at, m.updated_at,
       COALESCE(array_agg(a.user_id::text ORDER BY a.position) FILTER (WHERE a.user_id IS NOT NULL), '{}')
FROM meetings m
LEFT JOIN meeting_attendees a ON a.meeting_id = m.id`

func scanMeeting(row pgx.Row) (*model.Meeting, error) {
	m := &model.Meeting{}
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.StartTime, &m.EndTime,
		&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt, &m.AttendeeIDs)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) CreateMeeting(ctx context.Context, m *model.Meeting) error {
	id := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres.CreateMeeting: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO meetings (id, title, description, start_time, end_time, created_by, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		id, m.Title, m.Description, m.StartTime, m.EndTime, m.CreatedBy, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres.CreateMeeting: %w", err)
	}

	batch := &pgx.Batch{}
	for i, uid := range m.AttendeeIDs {
		batch.Queue(`INSERT INTO meeting_attendees (meeting_id, user_id, position) VALUES ($1,$2,$3)`, id, uid, i)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres.CreateMeeting attendees: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres.CreateMeeting: %w", err)
	}
	m.ID = id
	return nil
}

func (s *Store) MeetingByID(ctx context.Context, id string) (*model.Meeting, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	m, err := scanMeeting(s.pool.QueryRow(ctx, meetingSelect+` WHERE m.id = $1 GROUP BY m.id`, id))
	return m, notFound(err, "postgres.MeetingByID")
}

func (s *Store) ListMeetings(ctx context.Context, f model.MeetingFilter) ([]model.Meeting, error) {
	q := meetingSelect
	var args []any
	if f.ParticipantID != "" {
		if !validID(f.ParticipantID) {
			return nil, nil
		}
		q += ` WHERE m.created_by = $1
		   OR EXISTS (SELECT 1 FROM meeting_attendees x WHERE x.meeting_id = m.id AND x.user_id = $1)`
		args = append(args, f.ParticipantID)
	}
	q += ` GROUP BY m.id ORDER BY m.start_time ASC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListMeetings: %w", err)
	}
	defer rows.Close()

	var out []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres.ListMeetings: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMeeting(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("postgres.DeleteMeeting: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
