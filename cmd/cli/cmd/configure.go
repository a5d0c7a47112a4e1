package cmd

import (
	"fmt"

	"github.com/ecowatch/ecowatch/internal/config"
	"github.com/ecowatch/ecowatch/internal/constants"
	"github.com/ecowatch/ecowatch/internal/output"

	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure local environment with the API endpoint and mobile secret",
	Long: fmt.Sprintf(`Configure the local environment with the backend endpoint and signing secret.
This creates or updates the configuration file at ~/%s/%s`, constants.ConfigDirName, constants.ConfigFileName),
	Run: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(_ *cobra.Command, _ []string) {
	service := NewConfigureService(NewOutputWrapper(), ConfigSaverFunc(config.Save))
	if err := service.Configure(); err != nil {
		output.Errorf(err.Error())
	}
}

// ConfigSaver defines an interface for saving configuration
type ConfigSaver interface {
	Save(*config.Config) error
}

// ConfigSaverFunc adapts a function to the ConfigSaver interface
type ConfigSaverFunc func(*config.Config) error

// Save executes the underlying function to persist configuration
func (f ConfigSaverFunc) Save(cfg *config.Config) error {
	return f(cfg)
}

// ConfigureService handles the interactive configuration flow
type ConfigureService struct {
	output OutputInterface
	saver  ConfigSaver
}

// NewConfigureService creates a new ConfigureService with the provided dependencies
func NewConfigureService(outputter OutputInterface, saver ConfigSaver) *ConfigureService {
	return &ConfigureService{output: outputter, saver: saver}
}

// Configure prompts for the endpoint and secret and saves them
func (s *ConfigureService) Configure() error {
	endpoint := s.output.Prompt("API endpoint (e.g. https://api.ecowatch.example)")
	if endpoint == "" {
		return fmt.Errorf("API endpoint is required")
	}
	secret := s.output.Prompt("Mobile signing secret")

	cfg := &config.Config{
		APIEndpoint:  endpoint,
		MobileSecret: secret,
		LogLevel:     "INFO",
	}
	if err := s.saver.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	s.output.Successf("Configuration saved")
	return nil
}
