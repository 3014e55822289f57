package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings are the operator-adjustable preferences. They are persisted
// externally in a YAML file; the core only reads the current values at the
// start of each run.
type Settings struct {
	// UnfollowEnabled queues origin authors for unfollowing after a
	// successful deletion and runs the unfollow sweep after a completed run
	UnfollowEnabled bool `yaml:"unfollow_enabled"`
	// AutoPauseEnabled pauses the run automatically every Nth completed page
	AutoPauseEnabled bool `yaml:"auto_pause_enabled"`
	// LotteryQueryRetries bounds giveaway lookup retries, 0-5
	LotteryQueryRetries int `yaml:"lottery_query_retries"`
}

// DefaultSettings returns the settings used when no file exists yet
func DefaultSettings() Settings {
	return Settings{
		UnfollowEnabled:     false,
		AutoPauseEnabled:    false,
		LotteryQueryRetries: 2,
	}
}

// Validate validates the settings values
func (s Settings) Validate() error {
	if s.LotteryQueryRetries < 0 || s.LotteryQueryRetries > 5 {
		return fmt.Errorf("lottery_query_retries must be between 0 and 5, got %d", s.LotteryQueryRetries)
	}
	return nil
}

// SettingsStore loads and saves the operator settings file
type SettingsStore struct {
	path string
	mu   sync.Mutex
}

// NewSettingsStore creates a settings store backed by the given YAML file
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Load reads the current settings. A missing file yields the defaults.
func (s *SettingsStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("failed to read settings file %s: %w", s.path, err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings file %s: %w", s.path, err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Save validates and persists the settings
func (s *SettingsStore) Save(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file %s: %w", s.path, err)
	}
	return nil
}

// Credentials hold the remote session secrets. They can be invalidated
// externally at any time, so callers re-read them before every mutating call
// instead of caching them for the run.
type Credentials struct {
	// CSRFToken is sent with every delete and unfollow request
	CSRFToken string `yaml:"csrf_token"`
	// SessionCookie is attached to every remote request
	SessionCookie string `yaml:"session_cookie"`
}

// LoadCredentials reads the credentials file
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	if creds.CSRFToken == "" {
		return Credentials{}, fmt.Errorf("credentials file %s has no csrf_token", path)
	}
	return creds, nil
}
