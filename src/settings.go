package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"
)

const SETTINGS_PATH = "./spotideck_settings.json"

type Settings struct {
	InstallationID string `json:"installation_id,omitempty"`
	Theme          string `json:"theme,omitempty"`

	path string
}

// loadSettings reads runtime preferences, creating the file with a fresh
// installation ID on first boot.
func loadSettings(path string) (*Settings, error) {
	s := &Settings{path: path}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
	}

	if s.InstallationID == "" {
		s.InstallationID = uuid.New().String()
		logMsg(fmt.Sprintf("Generated new installation ID: %s", s.InstallationID))
		if err := s.save(); err != nil {
			logMsg(fmt.Sprintf("WARNING: Could not save settings: %v", err))
		}
	} else {
		logMsg(fmt.Sprintf("Loaded installation ID: %s", s.InstallationID))
	}

	if s.Theme != "" {
		logMsg(fmt.Sprintf("INFO: Restored theme: %s", s.Theme))
	}

	return s, nil
}

func (s *Settings) save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
