// Package session keeps the signed-in user's token and profile on disk so
// separate CLI invocations share one login. The file holds two keys, the
// token and the user record serialized as a JSON string.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"meeting-scheduler-api/internal/client"
)

const (
	TokenKey = "ms_token"
	UserKey  = "ms_user"
)

var ErrNoSession = errors.New("not logged in")

// Session is safe for concurrent use. Token and user are always replaced
// together, so readers see both or neither.
type Session struct {
	path string

	mu    sync.RWMutex
	token string
	user  *client.AuthUser
}

// Load hydrates a session from path. A missing file gives an empty session,
// and so does unreadable content; only I/O failures are returned.
func Load(path string) (*Session, error) {
	s := &Session{path: path}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	token, user, ok := decode(b)
	if !ok {
		log.Debug().Str("path", path).Msg("ignoring corrupt session file")
		return s, nil
	}
	s.token, s.user = token, user
	return s, nil
}

func decode(b []byte) (string, *client.AuthUser, bool) {
	var kv map[string]string
	if err := json.Unmarshal(b, &kv); err != nil {
		return "", nil, false
	}
	token, raw := kv[TokenKey], kv[UserKey]
	if token == "" || raw == "" {
		return "", nil, false
	}
	var u client.AuthUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		return "", nil, false
	}
	return token, &u, true
}

func (s *Session) Path() string { return s.path }

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *client.AuthUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// RequireUser is User for callers that cannot proceed anonymously.
func (s *Session) RequireUser() (*client.AuthUser, error) {
	if u := s.User(); u != nil {
		return u, nil
	}
	return nil, ErrNoSession
}

// Login persists token and user, then makes them visible in memory. If the
// write fails the previous session stays in effect on disk and in memory.
func (s *Session) Login(token string, user client.AuthUser) error {
	if token == "" || user.ID == "" {
		return errors.New("session: token and user id are required")
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(map[string]string{TokenKey: token, UserKey: string(rawUser)}, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.path, b); err != nil {
		return err
	}
	s.token, s.user = token, &user
	return nil
}

func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// writeAtomic replaces path via a temp file in the same directory.
func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session temp: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op after a successful rename

	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync session: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
