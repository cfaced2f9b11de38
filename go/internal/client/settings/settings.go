package settings

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Theme selects the client colour scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid settings")

// Settings are the user preferences that survive restarts
type Settings struct {
	Theme     Theme  `yaml:"theme"`
	Sound     bool   `yaml:"sound"`
	Vibration bool   `yaml:"vibration"`
	ServerURL string `yaml:"server_url"`
	// UserID attributes taps to this installation; generated on first run
	UserID string `yaml:"user_id"`
	RoomID string `yaml:"room_id,omitempty"`
}

// Default returns the settings used before the user changes anything
func Default() Settings {
	return Settings{
		Theme:     ThemeDark,
		Sound:     true,
		Vibration: true,
		ServerURL: "http://localhost:8080",
	}
}

// Validate checks field values
func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("%w: unknown theme %q", ErrInvalid, s.Theme)
	}
	if s.ServerURL == "" {
		return fmt.Errorf("%w: server_url is required", ErrInvalid)
	}
	if s.UserID != "" {
		if _, err := uuid.Parse(s.UserID); err != nil {
			return fmt.Errorf("%w: user_id: %v", ErrInvalid, err)
		}
	}
	if s.RoomID != "" {
		if _, err := uuid.Parse(s.RoomID); err != nil {
			return fmt.Errorf("%w: room_id: %v", ErrInvalid, err)
		}
	}
	return nil
}

// RelayParams returns the query parameters identifying this client to the relay
func (s Settings) RelayParams() url.Values {
	params := url.Values{}
	if s.UserID != "" {
		params.Set("user_id", s.UserID)
	}
	if s.RoomID != "" {
		params.Set("room_id", s.RoomID)
	}
	return params
}

// DefaultPath is settings.yaml under the user config directory
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "muyu", "settings.yaml"), nil
}

// Store persists Settings as a YAML file
type Store struct {
	path string

	mu      sync.RWMutex
	current Settings
}

// Open loads the store at path. A missing file yields Default(); the file is
// written back whenever a user id had to be generated.
func Open(path string) (*Store, error) {
	s := &Store{path: path, current: Default()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		// Fields absent from the file keep their defaults
		if err := yaml.Unmarshal(data, &s.current); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	if err := s.current.Validate(); err != nil {
		return nil, err
	}

	if s.current.UserID == "" {
		s.current.UserID = uuid.NewString()
		if err := s.save(s.current); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the current settings
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies fn to a copy of the settings, validates and persists the
// result. The stored settings are unchanged when either step fails.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.current, err
	}
	if err := s.save(next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

func (s *Store) save(settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
