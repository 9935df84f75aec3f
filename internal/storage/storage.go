package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	authorName     = "dekkonot"
	projectName    = "open-cloud-execute"
	configFileName = "config.json"
)

// Profile is the place a user last worked with, remembered between runs.
type Profile struct {
	PlaceID       string `json:"place_id"`
	UniverseID    string `json:"universe_id"`
	VersionNumber string `json:"version_number"`
}

// Store reads and writes the profile file inside a directory
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultDir returns the per-user config directory of the application
func DefaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, authorName, projectName), nil
}

// Path returns the location of the profile file
func (s *Store) Path() string {
	return filepath.Join(s.dir, configFileName)
}

// Load reads the profile. A missing file yields an empty profile.
func (s *Store) Load() (Profile, error) {
	var profile Profile

	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return profile, nil
	}
	if err != nil {
		return profile, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := json.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return profile, nil
}

// Save writes the profile, creating the directory if needed
func (s *Store) Save(profile Profile) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Update loads the profile, applies fn and saves the result
func (s *Store) Update(fn func(*Profile)) (Profile, error) {
	profile, err := s.Load()
	if err != nil {
		return profile, err
	}
	fn(&profile)
	return profile, s.Save(profile)
}
