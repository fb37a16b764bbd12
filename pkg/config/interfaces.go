// Package config loads, validates and saves the settings of a backtest run.
package config

// Validator validates strategy settings before a run starts.
type Validator interface {
	Validate(s *StrategySettings) error
}

// ConfigManager handles loading, validation and persistence of settings.
type ConfigManager interface {
	// LoadSettings reads a YAML or JSON settings file over the defaults and validates it.
	LoadSettings(path string) (*StrategySettings, error)

	// DecodeSettings reads settings in the given format from raw bytes.
	DecodeSettings(data []byte, format Format) (*StrategySettings, error)

	// ValidateSettings validates settings
	ValidateSettings(s *StrategySettings) error

	// SaveSettings writes settings to path in the format implied by its extension.
	SaveSettings(s *StrategySettings, path string) error
}
