// Package config manages configuration for the ecowatch CLI.
// It uses Viper for unified configuration management from files and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/ecowatch/ecowatch/internal/constants"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the client configuration.
// It supports loading from YAML files and environment variables.
type Config struct {
	// APIEndpoint is the base URL of the ecowatch backend, e.g. https://api.ecowatch.example
	APIEndpoint string `mapstructure:"api_endpoint" yaml:"api_endpoint" validate:"omitempty,url"`
	// MobileSecret is the shared secret used to sign every request (HMAC-SHA256).
	MobileSecret string `mapstructure:"mobile_secret" yaml:"mobile_secret"`
	// LogLevel controls slog verbosity (DEBUG, INFO, WARN, ERROR).
	LogLevel string `mapstructure:"log_level"`
}

var validate = validator.New()

// Load loads the configuration using Viper.
// Loads from ~/.ecowatch/config.yaml; environment variables with the
// ECOWATCH_ prefix take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := loadConfigFile(v); err != nil {
		// Config file not found is acceptable; env vars may carry everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ECOWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadCLI loads configuration specifically for CLI usage.
// Returns an error if the config file doesn't exist.
func LoadCLI() (*Config, error) {
	v := viper.New()

	if err := loadConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Save saves the configuration to the user's home directory.
// Overwrites the existing config file if it exists.
func Save(config *Config) error {
	currentUser, err := user.Current()
	if err != nil {
		return fmt.Errorf("error getting current user: %w", err)
	}

	configDir := constants.ConfigDirPath(currentUser.HomeDir)

	if err = os.MkdirAll(configDir, constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configFilePath := filepath.Join(configDir, constants.ConfigFileName)

	v := viper.New()
	v.Set("api_endpoint", config.APIEndpoint)
	v.Set("mobile_secret", config.MobileSecret)
	v.Set("log_level", config.LogLevel)

	if err = v.WriteConfigAs(configFilePath); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	if err = os.Chmod(configFilePath, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("error setting config file permissions: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("error getting current user: %w", err)
	}

	configDir := constants.ConfigDirPath(currentUser.HomeDir)
	return filepath.Join(configDir, constants.ConfigFileName), nil
}

// GetLogLevel returns the slog.Level from the string configuration.
// Defaults to INFO if the level string is invalid.
func (c *Config) GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ChatSocketURL derives the violation chat WebSocket URL from the API
// endpoint. The socket scheme mirrors the HTTP scheme (wss for https).
// Returns an empty string if the endpoint cannot be parsed.
func (c *Config) ChatSocketURL(userID string) string {
	u, err := url.Parse(c.APIEndpoint)
	if err != nil || u.Host == "" {
		return ""
	}

	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}

	q := url.Values{}
	q.Set("user_id", userID)

	socket := url.URL{
		Scheme:   scheme,
		Host:     u.Host,
		Path:     constants.ChatSocketPath,
		RawQuery: q.Encode(),
	}
	return socket.String()
}

// Helper functions

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "INFO")
}

func loadConfigFile(v *viper.Viper) error {
	currentUser, err := user.Current()
	if err != nil {
		return fmt.Errorf("error getting current user: %w", err)
	}

	configDir := constants.ConfigDirPath(currentUser.HomeDir)
	configFile := filepath.Join(configDir, constants.ConfigFileName)

	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	if readErr := v.ReadInConfig(); readErr != nil {
		return readErr
	}

	return nil
}

func bindEnvVars(v *viper.Viper) {
	envVars := []string{
		"API_ENDPOINT",
		"MOBILE_SECRET",
		"LOG_LEVEL",
	}

	for _, envVar := range envVars {
		configKey := strings.ToLower(envVar)
		_ = v.BindEnv(configKey, "ECOWATCH_"+envVar)
	}
}
