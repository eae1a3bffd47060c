package client

import (
	"context"
	"strings"
)

const (
	authUserFields = `__typename id name email imageUrl`
	userFields     = `__typename id name email imageUrl address dob role createdAt updatedAt`
	meetingFields  = `__typename id title description startTime endTime createdAt updatedAt ` +
		`attendees { ` + userFields + ` } createdBy { ` + userFields + ` }`
)

var (
	userKeys    = strings.Fields(userFields)
	meetingKeys = []string{"__typename", "id", "title", "description", "startTime", "endTime",
		"createdAt", "updatedAt", "attendees", "createdBy"}
)

const (
	meQuery        = `query Me { me { ` + authUserFields + ` } }`
	myProfileQuery = `query MyProfile { myProfile { ` + userFields + ` } }`
	userQuery      = `query User($id: ID!) { user(id: $id) { ` + userFields + ` } }`
	usersQuery     = `query Users { users { ` + userFields + ` } }`
	meetingsQuery  = `query Meetings { meetings { ` + meetingFields + ` } }`
	meetingQuery   = `query Meeting($id: ID!) { meeting(id: $id) { ` + meetingFields + ` } }`

	registerMutation      = `mutation Register($input: RegisterInput!) { register(input: $input) { ` + authUserFields + ` } }`
	loginMutation         = `mutation Login($input: LoginInput!) { login(input: $input) { token user { ` + authUserFields + ` } } }`
	updateProfileMutation = `mutation UpdateMyProfile($input: UpdateProfileInput!) { updateMyProfile(input: $input) { ` + userFields + ` } }`
	createMeetingMutation = `mutation CreateMeeting($input: MeetingInput!) { createMeeting(input: $input) { ` + meetingFields + ` } }`
	deleteMeetingMutation = `mutation DeleteMeeting($id: ID!) { deleteMeeting(id: $id) }`
)

func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthUser, error) {
	var out struct{ Register AuthUser }
	if err := c.Do(ctx, registerMutation, map[string]any{"input": in}, &out); err != nil {
		return nil, err
	}
	return &out.Register, nil
}

func (c *Client) Login(ctx context.Context, in LoginInput) (*AuthPayload, error) {
	var out struct{ Login AuthPayload }
	if err := c.Do(ctx, loginMutation, map[string]any{"input": in}, &out); err != nil {
		return nil, err
	}
	return &out.Login, nil
}

// Me returns nil when the token is valid but the account is gone.
func (c *Client) Me(ctx context.Context) (*AuthUser, error) {
	var out struct{ Me *AuthUser }
	if err := c.Do(ctx, meQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Me, nil
}

func (c *Client) MyProfile(ctx context.Context) (*User, error) {
	var out struct{ MyProfile *User }
	if err := c.Do(ctx, myProfileQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.MyProfile, nil
}

// User is served from the cache under CacheFirst when the user is already known.
func (c *Client) User(ctx context.Context, id string) (*User, error) {
	var hit User
	if c.cached("User", id, userKeys, &hit) {
		return &hit, nil
	}
	var out struct{ User *User }
	if err := c.Do(ctx, userQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	var out struct{ Users []User }
	if err := c.Do(ctx, usersQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) Meetings(ctx context.Context) ([]Meeting, error) {
	var out struct{ Meetings []Meeting }
	if err := c.Do(ctx, meetingsQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Meetings, nil
}

func (c *Client) Meeting(ctx context.Context, id string) (*Meeting, error) {
	var hit Meeting
	if c.cached("Meeting", id, meetingKeys, &hit) {
		return &hit, nil
	}
	var out struct{ Meeting *Meeting }
	if err := c.Do(ctx, meetingQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	return out.Meeting, nil
}

func (c *Client) UpdateMyProfile(ctx context.Context, in ProfileInput) (*User, error) {
	var out struct{ UpdateMyProfile User }
	if err := c.Do(ctx, updateProfileMutation, map[string]any{"input": in}, &out); err != nil {
		return nil, err
	}
	return &out.UpdateMyProfile, nil
}

func (c *Client) CreateMeeting(ctx context.Context, in MeetingInput) (*Meeting, error) {
	if in.AttendeeIDs == nil {
		in.AttendeeIDs = []string{}
	}
	var out struct{ CreateMeeting Meeting }
	if err := c.Do(ctx, createMeetingMutation, map[string]any{"input": in}, &out); err != nil {
		return nil, err
	}
	return &out.CreateMeeting, nil
}

// DeleteMeeting removes the meeting from the cache once the server confirms.
func (c *Client) DeleteMeeting(ctx context.Context, id string) (bool, error) {
	var out struct{ DeleteMeeting bool }
	if err := c.Do(ctx, deleteMeetingMutation, map[string]any{"id": id}, &out); err != nil {
		return false, err
	}
	if out.DeleteMeeting && c.cache != nil {
		c.cache.Evict("Meeting", id)
	}
	return out.DeleteMeeting, nil
}
