// Package session holds the client's credentials and current user between
// runs. A Session is created once at startup, loaded with Init, and cleared
// with Teardown on logout or when the backend rejects a refresh.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
)

const fileName = "session.json"

type state struct {
	Access  string             `json:"access"`
	Refresh string             `json:"refresh"`
	User    *models.PublicUser `json:"user,omitempty"`
}

// Session is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	dir       string
	st        state
	onExpired []func()
}

// New returns a session persisted under dir. An empty dir keeps it in memory only.
func New(dir string) *Session {
	return &Session{dir: dir}
}

// DefaultDir is ~/.soulchat/<profile>.
func DefaultDir(profile string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %w", err)
	}
	if profile == "" {
		profile = "default"
	}
	return filepath.Join(home, ".soulchat", profile), nil
}

func (s *Session) path() string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, fileName)
}

// Init reads persisted credentials. A missing file leaves the session logged out.
func (s *Session) Init() error {
	p := s.path()
	if p == "" {
		return nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read session: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode session %s: %w", p, err)
	}
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
	return nil
}

// Save writes the current credentials with owner-only permissions.
func (s *Session) Save() error {
	p := s.path()
	if p == "" {
		return nil
	}
	s.mu.RLock()
	data, err := json.Marshal(s.st)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(p, data, 0600)
}

// Teardown forgets the credentials in memory and on disk.
func (s *Session) Teardown() error {
	s.mu.Lock()
	s.st = state{}
	s.mu.Unlock()

	p := s.path()
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// OnExpired registers fn to run after Expire.
func (s *Session) OnExpired(fn func()) {
	s.mu.Lock()
	s.onExpired = append(s.onExpired, fn)
	s.mu.Unlock()
}

// Expire tears the session down and runs the expiry hooks.
func (s *Session) Expire() {
	_ = s.Teardown()
	s.mu.RLock()
	hooks := append([]func(){}, s.onExpired...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

func (s *Session) SetTokens(access, refresh string) {
	s.mu.Lock()
	s.st.Access, s.st.Refresh = access, refresh
	s.mu.Unlock()
}

func (s *Session) SetAccess(access string) {
	s.mu.Lock()
	s.st.Access = access
	s.mu.Unlock()
}

func (s *Session) SetUser(u *models.PublicUser) {
	s.mu.Lock()
	s.st.User = u
	s.mu.Unlock()
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Access
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Refresh
}

// User returns a copy of the logged-in user, or nil.
func (s *Session) User() *models.PublicUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.User == nil {
		return nil
	}
	u := *s.st.User
	return &u
}

// ProfileID is the chat identity of the logged-in user.
func (s *Session) ProfileID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.User == nil {
		return uuid.Nil
	}
	return s.st.User.ProfileID
}

func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Access != "" || s.st.Refresh != ""
}
