package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	ImageURL     *string
	Address      string
	DOB          *time.Time
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Meeting struct {
	ID          string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	AttendeeIDs []string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileUpdate is a partial update of a user's own profile. Nil fields are
// left untouched; an empty ImageURL clears the stored value.
type ProfileUpdate struct {
	Name     *string
	Address  *string
	ImageURL *string
	DOB      *time.Time
	ClearDOB bool

	UpdatedAt time.Time
}

// MeetingFilter narrows ListMeetings. The zero value matches every meeting.
type MeetingFilter struct {
	// ParticipantID keeps meetings created by or attended by this user.
	ParticipantID string
}
