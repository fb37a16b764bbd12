package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	enginerrors "github.com/ducminhle1904/dca-ladder-backtest/internal/errors"
)

// Format is a settings file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath infers the encoding from a file extension, defaulting to YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// SettingsManager implements ConfigManager.
type SettingsManager struct {
	validator Validator
}

// NewSettingsManager creates a new settings manager
func NewSettingsManager() *SettingsManager {
	return &SettingsManager{validator: NewSettingsValidator()}
}

// LoadSettings implements ConfigManager.
func (m *SettingsManager) LoadSettings(path string) (*StrategySettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, enginerrors.NewIOError("config", "read", err).WithContext("file", path)
	}

	s, err := m.DecodeSettings(data, FormatFromPath(path))
	if err != nil {
		if ee, ok := enginerrors.AsEngineError(err); ok {
			ee.WithContext("file", path)
		}
		return nil, err
	}
	return s, nil
}

// DecodeSettings implements ConfigManager. Unknown keys are rejected.
func (m *SettingsManager) DecodeSettings(data []byte, format Format) (*StrategySettings, error) {
	s := NewDefaultSettings()

	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(s)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(s)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, enginerrors.WrapError(err, enginerrors.ErrorCategoryConfiguration, "config", "decode").
			WithContext("format", string(format))
	}

	if err := m.ValidateSettings(s); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidateSettings implements ConfigManager.
func (m *SettingsManager) ValidateSettings(s *StrategySettings) error {
	return m.validator.Validate(s)
}

// SaveSettings implements ConfigManager.
func (m *SettingsManager) SaveSettings(s *StrategySettings, path string) error {
	var (
		data []byte
		err  error
	)
	if FormatFromPath(path) == FormatJSON {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// LoadSettings reads and validates a settings file with the default manager.
func LoadSettings(path string) (*StrategySettings, error) {
	return NewSettingsManager().LoadSettings(path)
}
