// Package config reads and writes the vascular YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mchmarny/vascular/pkg/report"
	"github.com/mchmarny/vascular/pkg/score"
	"github.com/mchmarny/vascular/pkg/table"
	"gopkg.in/yaml.v3"
)

const (
	FileName = "config.yaml"
	EnvFile  = ".env"

	DefaultAssetsDir   = "assets"
	DefaultPort        = 8080
	DefaultMaxUploadMB = 32

	dirMode  = 0o700
	fileMode = 0o600
)

// Server configures the web UI.
type Server struct {
	Port        int   `yaml:"port"`
	MaxUploadMB int64 `yaml:"max_upload_mb"`
	OpenBrowser bool  `yaml:"open_browser"`
}

// Registry points at the artifact registry used by model fetch.
type Registry struct {
	URL string `yaml:"url,omitempty"`
}

// Config represents app config object.
type Config struct {
	Assets          string           `yaml:"assets"`
	DB              string           `yaml:"db,omitempty"`
	Precision       int              `yaml:"precision"`
	StrictFeatures  bool             `yaml:"strict_features"`
	SanitizeHeaders bool             `yaml:"sanitize_headers"`
	TargetColumn    string           `yaml:"target_column"`
	LabelColumn     string           `yaml:"label_column"`
	Thresholds      score.Thresholds `yaml:"thresholds"`
	ClassNames      map[int]string   `yaml:"class_names"`
	Server          Server           `yaml:"server"`
	Registry        Registry         `yaml:"registry"`
}

// Default returns the configuration written on first run.
func Default() *Config {
	names := make(map[int]string, len(report.DefaultClassNames))
	for k, v := range report.DefaultClassNames {
		names[k] = v
	}
	return &Config{
		Assets:          DefaultAssetsDir,
		Precision:       report.DefaultPrecision,
		SanitizeHeaders: true,
		TargetColumn:    table.DefaultTargetColumn,
		LabelColumn:     table.DefaultLabelColumn,
		Thresholds:      score.DefaultThresholds(),
		ClassNames:      names,
		Server: Server{
			Port:        DefaultPort,
			MaxUploadMB: DefaultMaxUploadMB,
			OpenBrowser: true,
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Precision < 0 || c.Precision > 15 {
		return fmt.Errorf("precision must be between 0 and 15, got %d", c.Precision)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.LabelColumn == "" {
		return errors.New("label_column required")
	}
	return nil
}

// ReportOptions returns the rendering options derived from the config.
func (c *Config) ReportOptions() report.Options {
	return report.Options{
		Precision:  c.Precision,
		Thresholds: c.Thresholds,
		ClassNames: c.ClassNames,
	}
}

// Save writes c to the config file in dirPath.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, FileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one with defaults.
// Keys absent from an existing file keep their default values.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if err := os.MkdirAll(dirPath, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
	}

	path := filepath.Join(dirPath, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	return Read(path)
}

// Read parses the config file at path over the defaults.
func Read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return c, nil
}

// LoadEnv loads variables from the given .env files into the process environment.
// Missing files are skipped and variables already set are not overridden.
func LoadEnv(paths ...string) error {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	slog.Debug("env loaded", "files", existing)
	return nil
}

// GetOrCreateHomeDir returns the named directory under the user home directory.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
