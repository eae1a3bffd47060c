// Package memstore is an in-process Store used for development (memory://)
// and as the backing store in tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	byEmail  map[string]string
	meetings map[string]*model.Meeting
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]*model.User),
		byEmail:  make(map[string]string),
		meetings: make(map[string]*model.Meeting),
	}
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[strings.ToLower(u.Email)]; ok {
		return store.ErrDuplicateEmail
	}
	u.ID = uuid.NewString()
	c := cloneUser(u)
	s.users[u.ID] = c
	s.byEmail[strings.ToLower(u.Email)] = u.ID
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) UsersByIDs(_ context.Context, ids []string) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := s.users[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *cloneUser(u))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, id string, p model.ProfileUpdate) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	store.ApplyProfile(u, p)
	return cloneUser(u), nil
}

func (s *Store) CreateMeeting(_ context.Context, m *model.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	s.meetings[m.ID] = cloneMeeting(m)
	return nil
}

func (s *Store) MeetingByID(_ context.Context, id string) (*model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneMeeting(m), nil
}

func (s *Store) ListMeetings(_ context.Context, f model.MeetingFilter) ([]model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		if f.ParticipantID != "" && m.CreatedBy != f.ParticipantID && !slices.Contains(m.AttendeeIDs, f.ParticipantID) {
			continue
		}
		out = append(out, *cloneMeeting(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *Store) DeleteMeeting(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[id]; !ok {
		return false, nil
	}
	delete(s.meetings, id)
	return true, nil
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.ImageURL != nil {
		v := *u.ImageURL
		c.ImageURL = &v
	}
	if u.DOB != nil {
		d := *u.DOB
		c.DOB = &d
	}
	return &c
}

func cloneMeeting(m *model.Meeting) *model.Meeting {
	c := *m
	c.AttendeeIDs = slices.Clone(m.AttendeeIDs)
	return &c
}
