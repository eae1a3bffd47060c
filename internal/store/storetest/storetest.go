// Package storetest holds the behaviour every store.Store backend must share.
// Backend test files call Run against a live instance.
package storetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
)

// Run exercises s. It only creates records with fresh emails so it can run
// against a shared database.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	t.Run("Users", func(t *testing.T) { testUsers(t, s) })
	t.Run("ListUsersNewestFirst", func(t *testing.T) { testListUsers(t, s) })
	t.Run("Meetings", func(t *testing.T) { testMeetings(t, s) })
	t.Run("MalformedIDs", func(t *testing.T) { testMalformedIDs(t, s) })
}

func email(tag string) string {
	return tag + "-" + uuid.NewString()[:8] + "@test.com"
}

// ms drops sub-millisecond precision that some backends do not keep.
func ms(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

func newUser(t *testing.T, s store.Store, tag string, created time.Time) *model.User {
	t.Helper()
	u := &model.User{
		Name:         tag,
		Email:        email(tag),
		PasswordHash: "hash",
		Role:         model.RoleUser,
		CreatedAt:    ms(created),
		UpdatedAt:    ms(created),
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	require.NotEmpty(t, u.ID)
	return u
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	ann := newUser(t, s, "ann", time.Now())

	err := s.CreateUser(ctx, &model.User{Name: "Ann 2", Email: ann.Email, PasswordHash: "h", Role: model.RoleUser})
	require.ErrorIs(t, err, store.ErrDuplicateEmail)

	got, err := s.UserByEmail(ctx, ann.Email)
	require.NoError(t, err)
	assert.Equal(t, ann.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, model.RoleUser, got.Role)

	_, err = s.UserByEmail(ctx, email("nobody"))
	require.ErrorIs(t, err, store.ErrNotFound)

	img := "https://img.example/ann.png"
	addr := "1 Main St"
	dob := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	updated, err := s.UpdateUser(ctx, ann.ID, model.ProfileUpdate{ImageURL: &img, Address: &addr, DOB: &dob, UpdatedAt: ms(time.Now())})
	require.NoError(t, err)
	require.NotNil(t, updated.ImageURL)
	assert.Equal(t, img, *updated.ImageURL)
	assert.Equal(t, addr, updated.Address)
	require.NotNil(t, updated.DOB)
	assert.Equal(t, "1990-05-17", updated.DOB.UTC().Format("2006-01-02"))

	// a later partial update leaves the other fields alone
	name := "Ann B"
	renamed, err := s.UpdateUser(ctx, ann.ID, model.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ann B", renamed.Name)
	assert.Equal(t, addr, renamed.Address)
	require.NotNil(t, renamed.ImageURL)

	empty := ""
	cleared, err := s.UpdateUser(ctx, ann.ID, model.ProfileUpdate{ImageURL: &empty, ClearDOB: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.ImageURL)
	assert.Nil(t, cleared.DOB)

	reread, err := s.UserByID(ctx, ann.ID)
	require.NoError(t, err)
	assert.Nil(t, reread.ImageURL)
	assert.Equal(t, "Ann B", reread.Name)

	bob := newUser(t, s, "bob", time.Now())
	found, err := s.UsersByIDs(ctx, []string{ann.ID, bob.ID, "not-an-id"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func testListUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Now().Add(time.Hour)
	old := newUser(t, s, "old", base)
	mid := newUser(t, s, "mid", base.Add(time.Minute))
	recent := newUser(t, s, "new", base.Add(2*time.Minute))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, u := range users {
		pos[u.ID] = i
	}
	for _, u := range []*model.User{old, mid, recent} {
		require.Contains(t, pos, u.ID)
	}
	assert.Less(t, pos[recent.ID], pos[mid.ID])
	assert.Less(t, pos[mid.ID], pos[old.ID])
}

func testMeetings(t *testing.T, s store.Store) {
	ctx := context.Background()
	u1 := newUser(t, s, "creator", time.Now())
	u2 := newUser(t, s, "other", time.Now())
	u3 := newUser(t, s, "guest", time.Now())

	start := ms(time.Date(2031, 6, 1, 9, 0, 0, 0, time.UTC))
	later := &model.Meeting{Title: "later", StartTime: start.Add(2 * time.Hour), EndTime: start.Add(3 * time.Hour),
		CreatedBy: u1.ID, CreatedAt: start, UpdatedAt: start}
	earlier := &model.Meeting{Title: "earlier", Description: "d", StartTime: start, EndTime: start.Add(time.Hour),
		CreatedBy: u2.ID, AttendeeIDs: []string{u3.ID, u1.ID}, CreatedAt: start, UpdatedAt: start}
	require.NoError(t, s.CreateMeeting(ctx, later))
	require.NoError(t, s.CreateMeeting(ctx, earlier))
	require.NotEmpty(t, later.ID)

	got, err := s.MeetingByID(ctx, earlier.ID)
	require.NoError(t, err)
	assert.Equal(t, "earlier", got.Title)
	assert.Equal(t, []string{u3.ID, u1.ID}, got.AttendeeIDs)
	assert.Equal(t, u2.ID, got.CreatedBy)
	assert.True(t, start.Equal(got.StartTime))

	all, err := s.ListMeetings(ctx, model.MeetingFilter{})
	require.NoError(t, err)
	var titles []string
	for _, m := range all {
		if m.ID == later.ID || m.ID == earlier.ID {
			titles = append(titles, m.Title)
		}
	}
	assert.Equal(t, "earlier,later", strings.Join(titles, ","))

	mine, err := s.ListMeetings(ctx, model.MeetingFilter{ParticipantID: u3.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, earlier.ID, mine[0].ID)

	// creator or attendee both count as participation
	both, err := s.ListMeetings(ctx, model.MeetingFilter{ParticipantID: u1.ID})
	require.NoError(t, err)
	assert.Len(t, both, 2)

	ok, err := s.DeleteMeeting(ctx, later.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteMeeting(ctx, later.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.MeetingByID(ctx, later.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testMalformedIDs(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.UserByID(ctx, "definitely not an id")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.MeetingByID(ctx, "definitely not an id")
	require.ErrorIs(t, err, store.ErrNotFound)

	ok, err := s.DeleteMeeting(ctx, "definitely not an id")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.UpdateUser(ctx, "definitely not an id", model.ProfileUpdate{})
	require.ErrorIs(t, err, store.ErrNotFound)
}
