package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"meeting-scheduler-api/internal/handler"
)

// Resolver is the root for both Query and Mutation.
type Resolver struct {
	h *handler.Handler
}

type registerInput struct {
	Name     string
	Email    string
	Password string
}

type loginInput struct {
	Email    string
	Password string
}

type profileInput struct {
	Name     *string
	Address  *string
	DOB      *string
	ImageURL *string
}

type meetingInput struct {
	Title       string
	Description *string
	StartTime   string
	EndTime     string
	AttendeeIDs []graphql.ID
}

// ----- queries -----

func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	u, err := r.h.Me(ctx)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return newUser(u), nil
}

func (r *Resolver) MyProfile(ctx context.Context) (*userResolver, error) {
	u, err := r.h.MyProfile(ctx)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return newUser(u), nil
}

func (r *Resolver) User(ctx context.Context, args struct{ ID graphql.ID }) (*userResolver, error) {
	u, err := r.h.User(ctx, string(args.ID))
	if err != nil {
		return nil, fail(ctx, err)
	}
	return newUser(u), nil
}

func (r *Resolver) Users(ctx context.Context) ([]*userResolver, error) {
	users, err := r.h.Users(ctx)
	if err != nil {
		return nil, fail(ctx, err)
	}
	return newUsers(users), nil
}

func (r *Resolver) Meetings(ctx context.Context) ([]*meetingResolver, error) {
	ms, err := r.h.Meetings(ctx)
	if err != nil {
		return nil, fail(ctx, err)
	}
	out := make([]*meetingResolver, len(ms))
	for i := range ms {
		out[i] = &meetingResolver{m: &ms[i]}
	}
	return out, nil
}

func (r *Resolver) Meeting(ctx context.Context, args struct{ ID graphql.ID }) (*meetingResolver, error) {
	m, err := r.h.Meeting(ctx, string(args.ID))
	if err != nil {
		return nil, fail(ctx, err)
	}
	if m == nil {
		return nil, nil
	}
	return &meetingResolver{m: m}, nil
}

// ----- mutations -----

func (r *Resolver) Register(ctx context.Context, args struct{ Input registerInput }) (*userResolver, error) {
	u, err := r.h.Register(ctx, handler.RegisterInput{
		Name:     args.Input.Name,
		Email:    args.Input.Email,
		Password: args.Input.Password,
	})
	if err != nil {
		return nil, fail(ctx, err)
	}
	return newUser(u), nil
}

func (r *Resolver) Login(ctx context.Context, args struct{ Input loginInput }) (*authPayloadResolver, error) {
	p, err := r.h.Login(ctx, handler.LoginInput{Email: args.Input.Email, Password: args.Input.Password})
	if err != nil {
		return nil, fail(ctx, err)
	}
	return &authPayloadResolver{p: p}, nil
}

func (r *Resolver) UpdateMyProfile(ctx context.Context, args struct{ Input profileInput }) (*userResolver, error) {
	in := args.Input
	u, err := r.h.UpdateMyProfile(ctx, handler.ProfileInput{
		Name:     in.Name,
		Address:  in.Address,
		DOB:      in.DOB,
		ImageURL: in.ImageURL,
	})
	if err != nil {
		return nil, fail(ctx, err)
	}
	return newUser(u), nil
}

func (r *Resolver) CreateMeeting(ctx context.Context, args struct{ Input meetingInput }) (*meetingResolver, error) {
	in := args.Input
	ids := make([]string, len(in.AttendeeIDs))
	for i, id := range in.AttendeeIDs {
		ids[i] = string(id)
	}
	m, err := r.h.CreateMeeting(ctx, handler.MeetingInput{
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		AttendeeIDs: ids,
	})
	if err != nil {
		return nil, fail(ctx, err)
	}
	return &meetingResolver{m: m}, nil
}

func (r *Resolver) DeleteMeeting(ctx context.Context, args struct{ ID graphql.ID }) (bool, error) {
	ok, err := r.h.DeleteMeeting(ctx, string(args.ID))
	if err != nil {
		return false, fail(ctx, err)
	}
	return ok, nil
}
