package graph

import (
	"errors"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"meeting-scheduler-api/internal/handler"
	"meeting-scheduler-api/internal/model"
)

// instants go out as RFC 3339 in UTC with milliseconds
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// userResolver serves both AuthUser and User.
type userResolver struct {
	u *model.User
}

func newUser(u *model.User) *userResolver {
	if u == nil {
		return nil
	}
	return &userResolver{u: u}
}

func newUsers(users []model.User) []*userResolver {
	out := make([]*userResolver, len(users))
	for i := range users {
		out[i] = &userResolver{u: &users[i]}
	}
	return out
}

func (r *userResolver) ID() graphql.ID    { return graphql.ID(r.u.ID) }
func (r *userResolver) Name() string      { return r.u.Name }
func (r *userResolver) Email() string     { return r.u.Email }
func (r *userResolver) ImageURL() *string { return r.u.ImageURL }
func (r *userResolver) Role() string      { return string(r.u.Role) }
func (r *userResolver) CreatedAt() string { return formatTime(r.u.CreatedAt) }
func (r *userResolver) UpdatedAt() string { return formatTime(r.u.UpdatedAt) }

func (r *userResolver) Address() *string {
	if r.u.Address == "" {
		return nil
	}
	return &r.u.Address
}

func (r *userResolver) Dob() *string {
	if r.u.DOB == nil {
		return nil
	}
	s := r.u.DOB.UTC().Format(time.DateOnly)
	return &s
}

type meetingResolver struct {
	m *handler.MeetingView
}

func (r *meetingResolver) ID() graphql.ID       { return graphql.ID(r.m.ID) }
func (r *meetingResolver) Title() string        { return r.m.Title }
func (r *meetingResolver) Description() *string { return &r.m.Description }
func (r *meetingResolver) StartTime() string    { return formatTime(r.m.StartTime) }
func (r *meetingResolver) EndTime() string      { return formatTime(r.m.EndTime) }
func (r *meetingResolver) CreatedAt() string    { return formatTime(r.m.CreatedAt) }
func (r *meetingResolver) UpdatedAt() string    { return formatTime(r.m.UpdatedAt) }

func (r *meetingResolver) Attendees() []*userResolver {
	return newUsers(r.m.Attendees)
}

var errNoCreator = errors.New("meeting creator no longer exists")

func (r *meetingResolver) CreatedBy() (*userResolver, error) {
	if r.m.Creator == nil {
		return nil, errNoCreator
	}
	return &userResolver{u: r.m.Creator}, nil
}

type authPayloadResolver struct {
	p *handler.AuthPayload
}

func (r *authPayloadResolver) Token() string { return r.p.Token }

func (r *authPayloadResolver) User() *userResolver { return newUser(r.p.User) }
