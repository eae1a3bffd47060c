// Package store declares the persistence contract shared by the MongoDB,
// Postgres and in-memory backends.
package store

import (
	"context"
	"errors"

	"meeting-scheduler-api/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

// Store persists users and meetings. Backends assign identifiers on create;
// an identifier the backend cannot parse is reported as ErrNotFound.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	// UsersByIDs returns the users that exist, in no particular order.
	UsersByIDs(ctx context.Context, ids []string) ([]model.User, error)
	// ListUsers returns every user, newest first.
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id string, p model.ProfileUpdate) (*model.User, error)

	CreateMeeting(ctx context.Context, m *model.Meeting) error
	MeetingByID(ctx context.Context, id string) (*model.Meeting, error)
	// ListMeetings returns meetings ordered by start time.
	ListMeetings(ctx context.Context, f model.MeetingFilter) ([]model.Meeting, error)
	// DeleteMeeting reports whether a meeting was removed.
	DeleteMeeting(ctx context.Context, id string) (bool, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ApplyProfile applies p to u in place. Backends that update whole records
// share it so partial-update rules live in one place.
func ApplyProfile(u *model.User, p model.ProfileUpdate) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.ImageURL != nil {
		if *p.ImageURL == "" {
			u.ImageURL = nil
		} else {
			v := *p.ImageURL
			u.ImageURL = &v
		}
	}
	if p.ClearDOB {
		u.DOB = nil
	} else if p.DOB != nil {
		d := *p.DOB
		u.DOB = &d
	}
	if !p.UpdatedAt.IsZero() {
		u.UpdatedAt = p.UpdatedAt
	}
}
