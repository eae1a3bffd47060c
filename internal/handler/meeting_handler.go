package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meeting-scheduler-api/internal/apperr"
	"meeting-scheduler-api/internal/events"
	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
)

type MeetingInput struct {
	Title       string   `json:"title" validate:"min=1,max=200"`
	Description *string  `json:"description"`
	StartTime   string   `json:"startTime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime     string   `json:"endTime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	AttendeeIDs []string `json:"attendeeIds" validate:"dive,required"`
}

// MeetingView is a meeting with its user references resolved.
// Attendees that no longer exist are left out; Creator is nil in that case.
type MeetingView struct {
	model.Meeting
	Attendees []model.User
	Creator   *model.User
}

func (h *Handler) Meetings(ctx context.Context) ([]MeetingView, error) {
	id, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	var f model.MeetingFilter
	if h.scope == ScopeParticipant {
		f.ParticipantID = id
	}
	ms, err := h.store.ListMeetings(ctx, f)
	if err != nil {
		return nil, internal("meetings", err)
	}
	return h.populate(ctx, ms, "meetings")
}

// Meeting returns nil for unknown or malformed ids.
func (h *Handler) Meeting(ctx context.Context, id string) (*MeetingView, error) {
	if _, err := uid(ctx); err != nil {
		return nil, err
	}
	m, err := h.store.MeetingByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, internal("meeting", err)
	}
	views, err := h.populate(ctx, []model.Meeting{*m}, "meeting")
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (h *Handler) CreateMeeting(ctx context.Context, in MeetingInput) (*MeetingView, error) {
	caller, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := h.check(in); err != nil {
		return nil, err
	}
	start, _ := time.Parse(time.RFC3339, in.StartTime)
	end, _ := time.Parse(time.RFC3339, in.EndTime)

	creator, err := h.store.UserByID(ctx, caller)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.Unauthenticated()
	case err != nil:
		return nil, internal("createMeeting", err)
	}

	attendees, err := h.resolveAttendees(ctx, in.AttendeeIDs)
	if err != nil {
		return nil, err
	}

	now := h.now().UTC()
	m := &model.Meeting{
		Title:       in.Title,
		StartTime:   start.UTC(),
		EndTime:     end.UTC(),
		AttendeeIDs: make([]string, len(attendees)),
		CreatedBy:   caller,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	for i, a := range attendees {
		m.AttendeeIDs[i] = a.ID
	}
	if err := h.store.CreateMeeting(ctx, m); err != nil {
		return nil, internal("createMeeting", err)
	}

	h.publish(ctx, events.MeetingCreated, meetingEvent(m, caller, now))
	return &MeetingView{Meeting: *m, Attendees: attendees, Creator: creator}, nil
}

// resolveAttendees drops repeated ids, keeping first occurrence order, and
// rejects ids that do not name an existing user.
func (h *Handler) resolveAttendees(ctx context.Context, ids []string) ([]model.User, error) {
	unique := make([]string, 0, len(ids))
	first := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := first[id]; dup {
			continue
		}
		first[id] = i
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	found, err := h.store.UsersByIDs(ctx, unique)
	if err != nil {
		return nil, internal("createMeeting", err)
	}
	byID := make(map[string]model.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}

	out := make([]model.User, 0, len(unique))
	var details []apperr.FieldError
	for _, id := range unique {
		u, ok := byID[id]
		if !ok {
			details = append(details, apperr.FieldError{
				Field:   fmt.Sprintf("attendeeIds[%d]", first[id]),
				Message: "Unknown user",
			})
			continue
		}
		out = append(out, u)
	}
	if len(details) > 0 {
		return nil, apperr.BadInput("Invalid input", details...)
	}
	return out, nil
}

// DeleteMeeting reports false for a meeting that does not exist. Only the
// creator may delete.
func (h *Handler) DeleteMeeting(ctx context.Context, id string) (bool, error) {
	caller, err := uid(ctx)
	if err != nil {
		return false, err
	}
	m, err := h.store.MeetingByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	case err != nil:
		return false, internal("deleteMeeting", err)
	}
	if m.CreatedBy != caller {
		return false, apperr.Forbidden()
	}

	ok, err := h.store.DeleteMeeting(ctx, m.ID)
	if err != nil {
		return false, internal("deleteMeeting", err)
	}
	if ok {
		h.publish(ctx, events.MeetingDeleted, meetingEvent(m, caller, h.now().UTC()))
	}
	return ok, nil
}

// populate resolves attendee and creator references with a single lookup.
func (h *Handler) populate(ctx context.Context, ms []model.Meeting, op string) ([]MeetingView, error) {
	views := make([]MeetingView, len(ms))
	if len(ms) == 0 {
		return views, nil
	}

	var ids []string
	for _, m := range ms {
		ids = append(ids, m.CreatedBy)
		ids = append(ids, m.AttendeeIDs...)
	}
	users, err := h.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, internal(op, err)
	}
	byID := make(map[string]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	for i, m := range ms {
		v := MeetingView{Meeting: m, Creator: byID[m.CreatedBy], Attendees: make([]model.User, 0, len(m.AttendeeIDs))}
		for _, a := range m.AttendeeIDs {
			if u, ok := byID[a]; ok {
				v.Attendees = append(v.Attendees, *u)
			}
		}
		views[i] = v
	}
	return views, nil
}

func meetingEvent(m *model.Meeting, actor string, at time.Time) events.MeetingEvent {
	return events.MeetingEvent{
		MeetingID:   m.ID,
		Title:       m.Title,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		CreatedBy:   m.CreatedBy,
		AttendeeIDs: m.AttendeeIDs,
		ActorID:     actor,
		OccurredAt:  at,
	}
}
