// Package cfg loads the service configuration from an optional YAML file,
// an optional .env file and the process environment.
package cfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"diagnosis-service/internal/common"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Host            string        `validate:"required"`
	Port            int           `validate:"min=1,max=65535"`
	ModelPath       string        `validate:"required"`
	LogLevel        string        `validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogFormat       string        `validate:"oneof=json console"`
	MetricsEnabled  bool
	StrictSex       bool
	MaxBodyBytes    int64         `validate:"min=1024,max=67108864"`
	ReadTimeout     time.Duration `validate:"required"`
	WriteTimeout    time.Duration `validate:"required"`
	ShutdownTimeout time.Duration `validate:"required"`
}

type ConfigFile struct {
	Server struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		MaxBodyBytes    int64  `yaml:"maxBodyBytes"`
		ReadTimeout     string `yaml:"readTimeout"`
		WriteTimeout    string `yaml:"writeTimeout"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Model struct {
		Path      string `yaml:"path"`
		StrictSex *bool  `yaml:"strictSex"`
	} `yaml:"model"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// executableDir is replaced in tests.
var executableDir = func() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

var validate = validator.New()

func Load() (Settings, error) {
	// A missing .env file is the common case
	_ = godotenv.Load()

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	metricsEnabled := true
	if config.Metrics.Enabled != nil {
		metricsEnabled = *config.Metrics.Enabled
	}
	strictSex := false
	if config.Model.StrictSex != nil {
		strictSex = *config.Model.StrictSex
	}

	settings := Settings{
		Host:            getEnvOrDefault(common.EnvHost, orString(config.Server.Host, common.DefaultHost)),
		Port:            getIntOrDefault(common.EnvPort, orInt(config.Server.Port, common.DefaultPort)),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, orString(config.Model.Path, common.DefaultModelFile)),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orString(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:       getEnvOrDefault(common.EnvLogFormat, orString(config.Logging.Format, common.DefaultLogFormat)),
		MetricsEnabled:  getBoolOrDefault(common.EnvMetricsEnabled, metricsEnabled),
		StrictSex:       getBoolOrDefault(common.EnvSexStrict, strictSex),
		MaxBodyBytes:    getInt64OrDefault(common.EnvMaxBodyBytes, orInt64(config.Server.MaxBodyBytes, common.DefaultMaxBodyBytes)),
		ReadTimeout:     getDurationOrDefault(common.EnvReadTimeout, parseDurationOr(config.Server.ReadTimeout, common.DefaultReadTimeoutSec*time.Second)),
		WriteTimeout:    getDurationOrDefault(common.EnvWriteTimeout, parseDurationOr(config.Server.WriteTimeout, common.DefaultWriteTimeoutSec*time.Second)),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, parseDurationOr(config.Server.ShutdownTimeout, common.DefaultShutdownSec*time.Second)),
	}

	return finalize(settings)
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Host:            getEnvOrDefault(common.EnvHost, common.DefaultHost),
		Port:            getIntOrDefault(common.EnvPort, common.DefaultPort),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, common.DefaultModelFile),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:       getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		MetricsEnabled:  getBoolOrDefault(common.EnvMetricsEnabled, true),
		StrictSex:       getBoolOrDefault(common.EnvSexStrict, false),
		MaxBodyBytes:    getInt64OrDefault(common.EnvMaxBodyBytes, common.DefaultMaxBodyBytes),
		ReadTimeout:     getDurationOrDefault(common.EnvReadTimeout, common.DefaultReadTimeoutSec*time.Second),
		WriteTimeout:    getDurationOrDefault(common.EnvWriteTimeout, common.DefaultWriteTimeoutSec*time.Second),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, common.DefaultShutdownSec*time.Second),
	}

	return finalize(settings)
}

func finalize(settings Settings) (Settings, error) {
	settings.LogLevel = strings.ToLower(settings.LogLevel)
	settings.LogFormat = strings.ToLower(settings.LogFormat)

	modelPath, err := resolveModelPath(settings.ModelPath)
	if err != nil {
		return Settings{}, err
	}
	settings.ModelPath = modelPath

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Addr returns the listen address in host:port form.
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// resolveModelPath anchors relative model paths at the directory holding
// the running binary, so the artifact travels with the installation.
func resolveModelPath(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return path, nil
	}
	dir, err := executableDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable directory: %w", err)
	}
	return filepath.Join(dir, path), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDurationOr(v string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultValue
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orInt64(v, def int64) int64 {
	if v != 0 {
		return v
	}
	return def
}

// validateSettings checks struct tags first, then the cross-field rules the
// tags cannot express.
func validateSettings(settings *Settings) error {
	if err := validate.Struct(settings); err != nil {
		return err
	}

	if settings.ReadTimeout < 100*time.Millisecond || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 100ms and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < 100*time.Millisecond || settings.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 100ms and 5m, got %v", settings.WriteTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 1m, got %v", settings.ShutdownTimeout)
	}

	return nil
}
