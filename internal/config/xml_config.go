// Package config provides XML-based configuration management for air-gapped
// deployment of the upload portal.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"UploadPortal"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Upload endpoint configuration
	Endpoint EndpointConfig `xml:"Endpoint"`

	// Staging configuration
	Staging StagingConfig `xml:"Staging"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// EndpointConfig points at the external upload collaborator. UploadURL is
// the only place the destination is named; nothing is compiled in.
type EndpointConfig struct {
	UploadURL      string `xml:"UploadURL"`
	TimeoutSeconds int    `xml:"TimeoutSeconds"`
}

// StagingConfig contains staged-file storage and form lifecycle settings
type StagingConfig struct {
	Directory              string `xml:"Directory"`
	CategoryTablePath      string `xml:"CategoryTablePath"`
	MaxForms               int    `xml:"MaxForms"`
	FormTimeoutMinutes     int    `xml:"FormTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Endpoint: EndpointConfig{
			UploadURL:      "http://localhost:5000/upload",
			TimeoutSeconds: 120,
		},
		Staging: StagingConfig{
			Directory:              "./data/staging",
			CategoryTablePath:      "",
			MaxForms:               50,
			FormTimeoutMinutes:     30,
			CleanupIntervalMinutes: 5,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Upload Portal Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// UPLOAD_ENDPOINT_URL override
	if url := os.Getenv("UPLOAD_ENDPOINT_URL"); url != "" {
		c.Endpoint.UploadURL = url
	}

	// STAGING_DIR override
	if dir := os.Getenv("STAGING_DIR"); dir != "" {
		c.Staging.Directory = dir
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Staging.Directory) {
		c.Staging.Directory = filepath.Join(configDir, c.Staging.Directory)
	}
	if c.Staging.CategoryTablePath != "" && !filepath.IsAbs(c.Staging.CategoryTablePath) {
		c.Staging.CategoryTablePath = filepath.Join(configDir, c.Staging.CategoryTablePath)
	}
}

// GetStagingDir returns the absolute staging directory path
func (c *AppConfig) GetStagingDir() string {
	return c.Staging.Directory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	if err := os.MkdirAll(c.Staging.Directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Staging.Directory, err)
	}
	return nil
}
