package handler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meeting-scheduler-api/internal/apperr"
	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/events"
	"meeting-scheduler-api/internal/handler"
	"meeting-scheduler-api/internal/middleware"
	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store/memstore"
)

const secret = "test-secret"

type published struct {
	key string
	ev  events.MeetingEvent
}

type recorder struct {
	mu   sync.Mutex
	got  []published
	fail error
}

func (r *recorder) PublishJSON(_ context.Context, key string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, published{key: key, ev: v.(events.MeetingEvent)})
	return nil
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func setup(t *testing.T, opts ...handler.Option) (*handler.Handler, *memstore.Store, *recorder) {
	t.Helper()
	st := memstore.New()
	rec := &recorder{}
	opts = append([]handler.Option{handler.WithEvents(rec)}, opts...)
	h := handler.New(st, auth.NewTokens(secret, auth.DefaultTTL), opts...)
	return h, st, rec
}

func authedCtx(uid string) context.Context {
	return middleware.WithUserID(context.Background(), uid)
}

func registerUser(t *testing.T, h *handler.Handler, name string) *model.User {
	t.Helper()
	email := fmt.Sprintf("%s-%s@test.com", name, uuid.New().String()[:8])
	u, err := h.Register(context.Background(), handler.RegisterInput{Name: name, Email: email, Password: "testpass123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return u
}

func meetingInput(start time.Time, d time.Duration, attendees ...string) handler.MeetingInput {
	return handler.MeetingInput{
		Title:       "sync",
		StartTime:   start.Format(time.RFC3339),
		EndTime:     start.Add(d).Format(time.RFC3339),
		AttendeeIDs: attendees,
	}
}

func requireCode(t *testing.T, err error, want apperr.Code) *apperr.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperr.CodeOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
	return apperr.From(err)
}

func fields(e *apperr.Error) []string {
	var out []string
	for _, d := range e.Details {
		out = append(out, d.Field)
	}
	return out
}

// ----- auth tests -----

func TestRegisterAnn(t *testing.T) {
	h, st, _ := setup(t)
	ctx := context.Background()

	u, err := h.Register(ctx, handler.RegisterInput{Name: "Ann", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "secret1"))

	_, err = h.Register(ctx, handler.RegisterInput{Name: "Ann", Email: "a@x.com", Password: "secret1"})
	e := requireCode(t, err, apperr.CodeBadUserInput)
	assert.Equal(t, "Email already in use", e.Message)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	h, _, _ := setup(t)
	ctx := context.Background()

	u, err := h.Register(ctx, handler.RegisterInput{Name: "  Bob  ", Email: "  Bob@Example.COM ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.Equal(t, "Bob", u.Name)

	_, err = h.Register(ctx, handler.RegisterInput{Name: "Bob", Email: "BOB@example.com", Password: "secret1"})
	requireCode(t, err, apperr.CodeBadUserInput)
}

func TestRegisterValidation(t *testing.T) {
	h, st, _ := setup(t)

	tests := []struct {
		name  string
		in    handler.RegisterInput
		field string
	}{
		{"short name", handler.RegisterInput{Name: "A", Email: "a@b.com", Password: "secret1"}, "name"},
		{"blank name", handler.RegisterInput{Name: "   ", Email: "a@b.com", Password: "secret1"}, "name"},
		{"bad email", handler.RegisterInput{Name: "Ann", Email: "not-an-email", Password: "secret1"}, "email"},
		{"empty email", handler.RegisterInput{Name: "Ann", Email: "", Password: "secret1"}, "email"},
		{"short password", handler.RegisterInput{Name: "Ann", Email: "a@b.com", Password: "12345"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Register(context.Background(), tt.in)
			e := requireCode(t, err, apperr.CodeBadUserInput)
			assert.Contains(t, fields(e), tt.field)
		})
	}

	users, _ := st.ListUsers(context.Background())
	assert.Empty(t, users)
}

func TestLogin(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	st := memstore.New()
	tokens := auth.NewTokens(secret, auth.DefaultTTL).WithClock(func() time.Time { return now })
	h := handler.New(st, tokens)
	ctx := context.Background()

	u, err := h.Register(ctx, handler.RegisterInput{Name: "Ann", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	p, err := h.Login(ctx, handler.LoginInput{Email: "A@X.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.User.ID)

	// the issued token keeps resolving to the same user until it expires
	got, err := tokens.Verify(p.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got)

	now = now.Add(auth.DefaultTTL - time.Second)
	got, err = tokens.Verify(p.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got)

	now = now.Add(2 * time.Second)
	_, err = tokens.Verify(p.Token)
	assert.ErrorIs(t, err, auth.ErrBadToken)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	h, _, _ := setup(t)
	ctx := context.Background()
	u := registerUser(t, h, "ann")

	_, wrongPw := h.Login(ctx, handler.LoginInput{Email: u.Email, Password: "wrongpassword"})
	_, noUser := h.Login(ctx, handler.LoginInput{Email: "nobody@nowhere.com", Password: "testpass123"})

	a := requireCode(t, wrongPw, apperr.CodeUnauthenticated)
	b := requireCode(t, noUser, apperr.CodeUnauthenticated)
	assert.Equal(t, "Invalid credentials", a.Message)
	if diff := cmp.Diff(a.Extensions(), b.Extensions()); diff != "" {
		t.Errorf("login failures differ (-wrong password +unknown user):\n%s", diff)
	}
	assert.Equal(t, a.Message, b.Message)
}

func TestLoginAlwaysComparesPassword(t *testing.T) {
	h, _, _ := setup(t)
	ctx := context.Background()
	u := registerUser(t, h, "ann")

	var hashes []string
	handler.SetPasswordCheck(h, func(hash, pw string) bool {
		hashes = append(hashes, hash)
		return auth.CheckPassword(hash, pw)
	})

	_, err := h.Login(ctx, handler.LoginInput{Email: "nobody@nowhere.com", Password: "testpass123"})
	requireCode(t, err, apperr.CodeUnauthenticated)
	_, err = h.Login(ctx, handler.LoginInput{Email: u.Email, Password: "wrongpassword"})
	requireCode(t, err, apperr.CodeUnauthenticated)

	require.Len(t, hashes, 2, "both failure paths pay for a bcrypt comparison")
	assert.Equal(t, auth.DummyHash(), hashes[0])
	assert.NotEqual(t, auth.DummyHash(), hashes[1])
}

func TestLoginValidation(t *testing.T) {
	h, _, _ := setup(t)
	_, err := h.Login(context.Background(), handler.LoginInput{Email: "bad", Password: "x"})
	e := requireCode(t, err, apperr.CodeBadUserInput)
	assert.ElementsMatch(t, []string{"email", "password"}, fields(e))
}

func TestLoginWithoutSecret(t *testing.T) {
	h := handler.New(memstore.New(), auth.NewTokens("", 0))
	ctx := context.Background()
	_, err := h.Register(ctx, handler.RegisterInput{Name: "Ann", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = h.Login(ctx, handler.LoginInput{Email: "a@x.com", Password: "secret1"})
	e := requireCode(t, err, apperr.CodeInternal)
	assert.ErrorIs(t, e, auth.ErrNoSecret)
}

func TestRateLimit(t *testing.T) {
	lim := &mockLimiter{}
	h, _, _ := setup(t, handler.WithLimiter(lim))
	ctx := middleware.WithClientIP(context.Background(), "198.51.100.4")

	lim.On("Allow", mock.Anything, "login:198.51.100.4").Return(false, nil).Once()
	_, err := h.Login(ctx, handler.LoginInput{Email: "a@x.com", Password: "secret1"})
	requireCode(t, err, apperr.CodeTooManyRequests)

	// limiter outage lets the request through
	lim.On("Allow", mock.Anything, "register:198.51.100.4").Return(false, errors.New("redis down")).Once()
	_, err = h.Register(ctx, handler.RegisterInput{Name: "Ann", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	lim.AssertExpectations(t)
}

// ----- profile -----

func TestMeAndProfile(t *testing.T) {
	h, _, _ := setup(t)
	u := registerUser(t, h, "ann")

	_, err := h.Me(context.Background())
	requireCode(t, err, apperr.CodeUnauthenticated)
	_, err = h.Users(context.Background())
	requireCode(t, err, apperr.CodeUnauthenticated)

	me, err := h.Me(authedCtx(u.ID))
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.ID)

	prof, err := h.MyProfile(authedCtx(u.ID))
	require.NoError(t, err)
	assert.Equal(t, u.Email, prof.Email)

	// a valid token for a user that no longer exists resolves to nothing
	gone, err := h.Me(authedCtx(uuid.NewString()))
	require.NoError(t, err)
	assert.Nil(t, gone)

	other, err := h.User(authedCtx(u.ID), "not-an-id")
	require.NoError(t, err)
	assert.Nil(t, other)

	registerUser(t, h, "bob")
	users, err := h.Users(authedCtx(u.ID))
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUpdateMyProfile(t *testing.T) {
	h, _, _ := setup(t)
	u := registerUser(t, h, "ann")
	ctx := authedCtx(u.ID)
	str := func(s string) *string { return &s }

	got, err := h.UpdateMyProfile(ctx, handler.ProfileInput{
		Name:     str("Ann Smith"),
		Address:  str("1 Main St"),
		DOB:      str("1990-05-17"),
		ImageURL: str("https://img.example/a.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann Smith", got.Name)
	assert.Equal(t, "1 Main St", got.Address)
	require.NotNil(t, got.DOB)
	assert.Equal(t, "1990-05-17", got.DOB.Format(time.DateOnly))
	require.NotNil(t, got.ImageURL)

	got, err = h.UpdateMyProfile(ctx, handler.ProfileInput{DOB: str("1991-02-03T10:00:00Z")})
	require.NoError(t, err)
	assert.Equal(t, "1991-02-03", got.DOB.Format(time.DateOnly))
	assert.Equal(t, "Ann Smith", got.Name)

	got, err = h.UpdateMyProfile(ctx, handler.ProfileInput{DOB: str(""), ImageURL: str("")})
	require.NoError(t, err)
	assert.Nil(t, got.DOB)
	assert.Nil(t, got.ImageURL)

	_, err = h.UpdateMyProfile(ctx, handler.ProfileInput{Name: str("A"), DOB: str("yesterday"), ImageURL: str("nope")})
	e := requireCode(t, err, apperr.CodeBadUserInput)
	assert.ElementsMatch(t, []string{"name", "dob", "imageUrl"}, fields(e))

	_, err = h.UpdateMyProfile(context.Background(), handler.ProfileInput{Name: str("Ann")})
	requireCode(t, err, apperr.CodeUnauthenticated)
}

// ----- meeting CRUD -----

func TestCreateMeeting(t *testing.T) {
	h, st, rec := setup(t)
	ann := registerUser(t, h, "ann")
	bob := registerUser(t, h, "bob")
	start := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)

	in := meetingInput(start, time.Hour, bob.ID, ann.ID, bob.ID)
	in.Title = "  Planning  "
	desc := "quarterly"
	in.Description = &desc

	m, err := h.CreateMeeting(authedCtx(ann.ID), in)
	require.NoError(t, err)
	assert.Equal(t, "Planning", m.Title)
	assert.Equal(t, "quarterly", m.Description)
	assert.Equal(t, ann.ID, m.CreatedBy)
	require.NotNil(t, m.Creator)
	assert.Equal(t, ann.ID, m.Creator.ID)
	assert.Equal(t, []string{bob.ID, ann.ID}, m.AttendeeIDs)
	require.Len(t, m.Attendees, 2)
	assert.Equal(t, bob.Name, m.Attendees[0].Name)
	assert.True(t, start.Equal(m.StartTime))

	stored, err := st.MeetingByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.AttendeeIDs, stored.AttendeeIDs)

	require.Len(t, rec.got, 1)
	assert.Equal(t, events.MeetingCreated, rec.got[0].key)
	assert.Equal(t, m.ID, rec.got[0].ev.MeetingID)
}

func TestCreateMeetingValidation(t *testing.T) {
	h, st, rec := setup(t)
	ann := registerUser(t, h, "ann")
	ctx := authedCtx(ann.ID)
	start := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)
	with := func(edit func(*handler.MeetingInput)) handler.MeetingInput {
		in := meetingInput(start, time.Hour)
		edit(&in)
		return in
	}

	tests := []struct {
		name  string
		in    handler.MeetingInput
		field string
	}{
		{"end before start", meetingInput(start, -time.Hour), "endTime"},
		{"zero length", meetingInput(start, 0), "endTime"},
		{"empty title", with(func(in *handler.MeetingInput) { in.Title = "  " }), "title"},
		{"bad start", with(func(in *handler.MeetingInput) { in.StartTime = "tomorrow" }), "startTime"},
		{"missing end", with(func(in *handler.MeetingInput) { in.EndTime = "" }), "endTime"},
		{"unknown attendee", meetingInput(start, time.Hour, ann.ID, uuid.NewString()), "attendeeIds[1]"},
		{"blank attendee", meetingInput(start, time.Hour, ""), "attendeeIds[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.CreateMeeting(ctx, tt.in)
			e := requireCode(t, err, apperr.CodeBadUserInput)
			assert.Contains(t, fields(e), tt.field)
		})
	}

	all, err := st.ListMeetings(context.Background(), model.MeetingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "no meeting may be persisted on validation failure")
	assert.Empty(t, rec.got)

	_, err = h.CreateMeeting(context.Background(), meetingInput(start, time.Hour))
	requireCode(t, err, apperr.CodeUnauthenticated)

	// a token for a deleted user cannot create meetings
	_, err = h.CreateMeeting(authedCtx(uuid.NewString()), meetingInput(start, time.Hour))
	requireCode(t, err, apperr.CodeUnauthenticated)
}

func TestCreateMeetingPublishFailure(t *testing.T) {
	h, _, rec := setup(t)
	rec.fail = errors.New("broker down")
	ann := registerUser(t, h, "ann")

	m, err := h.CreateMeeting(authedCtx(ann.ID), meetingInput(time.Now().Add(time.Hour), time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
}

func TestMeetingsScope(t *testing.T) {
	for _, tt := range []struct {
		scope handler.Scope
		want  []string
	}{
		{handler.ScopeAll, []string{"first", "second", "third"}},
		{handler.ScopeParticipant, []string{"first", "third"}},
	} {
		t.Run(string(tt.scope), func(t *testing.T) {
			h, _, _ := setup(t, handler.WithScope(tt.scope))
			ann := registerUser(t, h, "ann")
			bob := registerUser(t, h, "bob")
			base := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)

			create := func(owner *model.User, title string, at time.Duration, attendees ...string) {
				in := meetingInput(base.Add(at), 30*time.Minute, attendees...)
				in.Title = title
				_, err := h.CreateMeeting(authedCtx(owner.ID), in)
				require.NoError(t, err)
			}
			create(ann, "third", 3*time.Hour)
			create(bob, "second", 2*time.Hour)
			create(bob, "first", time.Hour, ann.ID)

			ms, err := h.Meetings(authedCtx(ann.ID))
			require.NoError(t, err)
			var titles []string
			for _, m := range ms {
				titles = append(titles, m.Title)
				require.NotNil(t, m.Creator)
			}
			assert.Equal(t, tt.want, titles)
			assert.Equal(t, ann.ID, ms[0].Attendees[0].ID)
		})
	}
}

func TestMeetingLookup(t *testing.T) {
	h, _, _ := setup(t)
	ann := registerUser(t, h, "ann")
	ctx := authedCtx(ann.ID)

	m, err := h.CreateMeeting(ctx, meetingInput(time.Now().Add(time.Hour), time.Hour))
	require.NoError(t, err)

	got, err := h.Meeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Title, got.Title)
	assert.Equal(t, ann.ID, got.Creator.ID)

	missing, err := h.Meeting(ctx, "malformed")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = h.Meeting(context.Background(), m.ID)
	requireCode(t, err, apperr.CodeUnauthenticated)
}

func TestDeleteMeeting(t *testing.T) {
	h, _, rec := setup(t)
	ann := registerUser(t, h, "ann")
	bob := registerUser(t, h, "bob")

	m, err := h.CreateMeeting(authedCtx(ann.ID), meetingInput(time.Now().Add(time.Hour), time.Hour, bob.ID))
	require.NoError(t, err)

	ok, err := h.DeleteMeeting(authedCtx(ann.ID), uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)

	// attending is not owning
	_, err = h.DeleteMeeting(authedCtx(bob.ID), m.ID)
	e := requireCode(t, err, apperr.CodeForbidden)
	assert.Equal(t, "Forbidden", e.Message)

	still, err := h.Meeting(authedCtx(bob.ID), m.ID)
	require.NoError(t, err)
	require.NotNil(t, still)

	ok, err = h.DeleteMeeting(authedCtx(ann.ID), m.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := h.Meeting(authedCtx(ann.ID), m.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	ok, err = h.DeleteMeeting(authedCtx(ann.ID), m.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, rec.got, 2)
	assert.Equal(t, events.MeetingDeleted, rec.got[1].key)
	assert.Equal(t, ann.ID, rec.got[1].ev.ActorID)

	_, err = h.DeleteMeeting(context.Background(), m.ID)
	requireCode(t, err, apperr.CodeUnauthenticated)
}

func TestParseScope(t *testing.T) {
	for in, want := range map[string]handler.Scope{"": handler.ScopeAll, "all": handler.ScopeAll, "participant": handler.ScopeParticipant} {
		got, err := handler.ParseScope(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := handler.ParseScope("mine")
	assert.Error(t, err)
}
