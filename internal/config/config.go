package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Service ServiceConfig `json:"service"`
	Editor  EditorConfig  `json:"editor"`
	Output  OutputConfig  `json:"output"`
}

// ServiceConfig holds configuration for the external analysis and synthesis
// services
type ServiceConfig struct {
	Backend        string `json:"backend"` // "ollama" or "openai"
	URL            string `json:"url"`
	AnalysisModel  string `json:"analysis_model"`
	SynthesisModel string `json:"synthesis_model"`
	APIKeyEnv      string `json:"api_key_env"`
	SendMaxDim     int    `json:"send_max_dim"`
	SendQuality    int    `json:"send_quality"`
}

// EditorConfig holds configuration for region marking and calibration
type EditorConfig struct {
	MaxCustomHeightCm float64 `json:"max_custom_height_cm"`
}

// OutputConfig holds configuration for preview output
type OutputConfig struct {
	AspectRatio string `json:"aspect_ratio"`
	Resolution  string `json:"resolution"`
	Format      string `json:"format"`
	Quality     int    `json:"quality"`
	Dir         string `json:"dir"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Backend:        "openai",
			URL:            "http://localhost:8080",
			AnalysisModel:  "openbmb/minicpm-v4.5",
			SynthesisModel: "openbmb/minicpm-v4.5",
			APIKeyEnv:      "WALLPAPER_PLANNER_API_KEY",
			SendMaxDim:     1536,
			SendQuality:    85,
		},
		Editor: EditorConfig{
			MaxCustomHeightCm: 500,
		},
		Output: OutputConfig{
			AspectRatio: "16:9",
			Resolution:  "1080p",
			Format:      "png",
			Quality:     92,
			Dir:         "./out",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Service.Backend != "ollama" && c.Service.Backend != "openai" {
		return fmt.Errorf("service.backend must be 'ollama' or 'openai'")
	}

	if c.Service.AnalysisModel == "" {
		return fmt.Errorf("service.analysis_model cannot be empty")
	}

	if c.Service.SynthesisModel == "" {
		return fmt.Errorf("service.synthesis_model cannot be empty")
	}

	if c.Service.SendQuality < 1 || c.Service.SendQuality > 100 {
		return fmt.Errorf("service.send_quality must be between 1 and 100")
	}

	if c.Service.SendMaxDim < 0 {
		return fmt.Errorf("service.send_max_dim must not be negative")
	}

	if c.Editor.MaxCustomHeightCm <= 0 {
		return fmt.Errorf("editor.max_custom_height_cm must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// APIKey resolves the configured credential from the environment. Empty when
// no key is selected.
func (c *Config) APIKey() string {
	if c.Service.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Service.APIKeyEnv)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "wallpaper-planner", "config.json")
}
