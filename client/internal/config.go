package internal

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fleetlink/fleetlink/util"
)

const (
	// DefaultUpdateURL is the update service queried for new builds.
	DefaultUpdateURL = "https://pkgs.fleetlink.io/updates"

	// DefaultCheckInterval is how often the agent polls for a new build.
	DefaultCheckInterval = 30 * time.Minute
)

// ConfigInput carries values overriding the stored configuration,
// typically sourced from command-line flags.
type ConfigInput struct {
	ConfigPath string
	UpdateURL  *string
	TargetDir  *string
}

// Config holds the durable agent configuration.
type Config struct {
	// UpdateURL is the base URL of the remote update service.
	UpdateURL string

	// TargetDir is the installation directory an upgrade is written to.
	// It must never be the directory the agent is running from.
	TargetDir string

	// CheckIntervalMinutes is the update poll period; zero disables
	// periodic polling.
	CheckIntervalMinutes int
}

// CheckInterval returns the poll period as a duration.
func (config *Config) CheckInterval() time.Duration {
	return time.Duration(config.CheckIntervalMinutes) * time.Minute
}

// ReadConfig reads the config file and returns a Config. If the file
// does not exist a new one with default values is created.
func ReadConfig(configPath string) (*Config, error) {
	if configFileIsExists(configPath) {
		config := &Config{}
		if _, err := util.ReadJson(configPath, config); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		if config.apply(ConfigInput{}) {
			if err := WriteOutConfig(configPath, config); err != nil {
				return nil, err
			}
		}
		return config, nil
	}

	log.Infof("generating new config %s", configPath)
	config := &Config{
		CheckIntervalMinutes: int(DefaultCheckInterval / time.Minute),
	}
	config.apply(ConfigInput{})

	err := WriteOutConfig(configPath, config)
	return config, err
}

// UpdateOrCreateConfig reads the existing config or generates a new
// one, applying the given input on top.
func UpdateOrCreateConfig(input ConfigInput) (*Config, error) {
	config := &Config{}

	if configFileIsExists(input.ConfigPath) {
		if _, err := util.ReadJson(input.ConfigPath, config); err != nil {
			return nil, fmt.Errorf("read config %s: %w", input.ConfigPath, err)
		}
	}

	if config.apply(input) {
		if err := WriteOutConfig(input.ConfigPath, config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WriteOutConfig writes the prepared config to the given path.
func WriteOutConfig(path string, config *Config) error {
	return util.WriteJson(path, config)
}

func (config *Config) apply(input ConfigInput) (updated bool) {
	if input.UpdateURL != nil && *input.UpdateURL != config.UpdateURL {
		config.UpdateURL = *input.UpdateURL
		updated = true
	}
	if input.TargetDir != nil && *input.TargetDir != config.TargetDir {
		config.TargetDir = *input.TargetDir
		updated = true
	}

	if config.UpdateURL == "" {
		config.UpdateURL = DefaultUpdateURL
		updated = true
	}
	// a negative interval makes no sense; zero stays as "polling off"
	if config.CheckIntervalMinutes < 0 {
		config.CheckIntervalMinutes = 0
		updated = true
	}

	return updated
}

func configFileIsExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
