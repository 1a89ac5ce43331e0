package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/logger"
)

// Config holds deployer settings.
type Config struct {
	// DataRoot is the application data directory that holds the codepush tree.
	DataRoot string `yaml:"data_root"`
	// BundleDir holds the web assets shipped with the binary. Relative paths are resolved against DataRoot.
	BundleDir string `yaml:"bundle_dir"`
	// PublicKeyFile is an optional PEM file with the code-signing public key.
	PublicKeyFile string `yaml:"public_key_file,omitempty"`
	// HostStateFile stores pending and failed update flags. Relative paths are resolved against DataRoot.
	HostStateFile string `yaml:"host_state_file"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// MetricsFile is an optional Prometheus textfile written after every command.
	MetricsFile string `yaml:"metrics_file,omitempty"`
	// Install holds the default install options.
	Install codepush.InstallOptions `yaml:"install"`
}

const (
	// DefaultConfigFilename is the default filename for deployer settings.
	DefaultConfigFilename = "bundle-deployer.yaml"

	// DefaultDataRoot is the default application data directory.
	DefaultDataRoot = "."

	// DefaultBundleDir is the default directory of the bundled assets.
	DefaultBundleDir = "www"

	// DefaultHostStateFilename is the default filename for host state JSON.
	DefaultHostStateFilename = "bundle-deployer-host.json"

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownLogLevel is returned for a log level zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns settings with every default applied.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the install options and log level.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.DataRoot == "" {
		settings.DataRoot = DefaultDataRoot
	}

	if settings.BundleDir == "" {
		settings.BundleDir = DefaultBundleDir
	}

	if settings.HostStateFile == "" {
		settings.HostStateFile = DefaultHostStateFilename
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	settings.Install = settings.Install.WithDefaults(codepush.DefaultInstallOptions())

	if err := settings.Install.Validate(); err != nil {
		return fmt.Errorf("invalid install options: %w", err)
	}

	return nil
}

// BundlePath returns BundleDir resolved against DataRoot.
func (c *Config) BundlePath() string {
	return c.resolve(c.BundleDir)
}

// HostStatePath returns HostStateFile resolved against DataRoot.
func (c *Config) HostStatePath() string {
	return c.resolve(c.HostStateFile)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(c.DataRoot, path)
}
