package opname

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrIncompleteSession is returned when a session is started without
// all three identifying fields.
var ErrIncompleteSession = errors.New("rack, user name and division are all required")

// Session identifies one stock-taking run. It lives on the operator's
// machine, not in the database; SessionStore persists it across
// restarts so an interrupted count can be resumed.
type Session struct {
	RackNo   string `json:"rackNo"`
	UserName string `json:"userName"`
	Division string `json:"division"`
	Active   bool   `json:"active"`
}

// Validate checks that the session carries every identifying field
func (s Session) Validate() error {
	if s.RackNo == "" || s.UserName == "" || s.Division == "" {
		return ErrIncompleteSession
	}
	return nil
}

// SessionStore persists the current session as a JSON file
type SessionStore struct {
	path string
}

// NewSessionStore returns a store backed by the given file path
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load reads the persisted session. A missing file yields a zero,
// inactive session and no error.
func (st *SessionStore) Load() (Session, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session file: %w", err)
	}
	return s, nil
}

// Save writes the session to disk
func (st *SessionStore) Save(s Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the persisted session
func (st *SessionStore) Clear() error {
	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
