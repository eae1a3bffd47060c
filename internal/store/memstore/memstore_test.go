package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
	"meeting-scheduler-api/internal/store/memstore"
	"meeting-scheduler-api/internal/store/storetest"
)

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	ann := &model.User{Name: "Ann", Email: "a@x.com", PasswordHash: "h", Role: model.RoleUser, CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(ctx, ann))
	require.NotEmpty(t, ann.ID)

	err := s.CreateUser(ctx, &model.User{Name: "Ann 2", Email: "a@x.com"})
	require.ErrorIs(t, err, store.ErrDuplicateEmail)

	got, err := s.UserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, ann.ID, got.ID)

	_, err = s.UserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	img := "https://img.example/ann.png"
	updated, err := s.UpdateUser(ctx, ann.ID, model.ProfileUpdate{ImageURL: &img})
	require.NoError(t, err)
	require.NotNil(t, updated.ImageURL)
	assert.Equal(t, img, *updated.ImageURL)

	// returned copies must not alias stored state
	*updated.ImageURL = "mutated"
	again, err := s.UserByID(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, img, *again.ImageURL)

	empty := ""
	cleared, err := s.UpdateUser(ctx, ann.ID, model.ProfileUpdate{ImageURL: &empty})
	require.NoError(t, err)
	assert.Nil(t, cleared.ImageURL)
}

func TestListUsersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, email := range []string{"old@x.com", "mid@x.com", "new@x.com"} {
		require.NoError(t, s.CreateUser(ctx, &model.User{Email: email, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "new@x.com", users[0].Email)
	assert.Equal(t, "old@x.com", users[2].Email)
}

func TestMeetings(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	later := &model.Meeting{Title: "later", StartTime: start.Add(2 * time.Hour), EndTime: start.Add(3 * time.Hour), CreatedBy: "u1"}
	earlier := &model.Meeting{Title: "earlier", StartTime: start, EndTime: start.Add(time.Hour), CreatedBy: "u2", AttendeeIDs: []string{"u3"}}
	require.NoError(t, s.CreateMeeting(ctx, later))
	require.NoError(t, s.CreateMeeting(ctx, earlier))

	all, err := s.ListMeetings(ctx, model.MeetingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "earlier", all[0].Title)

	mine, err := s.ListMeetings(ctx, model.MeetingFilter{ParticipantID: "u3"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, earlier.ID, mine[0].ID)

	ok, err := s.DeleteMeeting(ctx, later.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteMeeting(ctx, later.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.MeetingByID(ctx, later.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, memstore.New())
}
