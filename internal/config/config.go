package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up next to the executable.
const DefaultFileName = "config.toml"

// Duration wraps time.Duration to support unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Value == "" {
		d.Duration = 0
		return nil
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText implements encoding.TextUnmarshaler, which go-toml uses for strings.
func (d *Duration) UnmarshalText(text []byte) error {
	str := strings.TrimSpace(string(text))
	if str == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(str)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", str, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the root of the service configuration.
type Config struct {
	Server  ServerConfig            `toml:"server" yaml:"server"`
	Logging LoggingConfig           `toml:"logging" yaml:"logging"`
	Jenkins JenkinsConfig           `toml:"jenkins" yaml:"jenkins"`
	Folders map[string]FolderConfig `toml:"folders" yaml:"folders"`

	// Repos is the reduced repo -> branch -> job profile. Every repo lands in
	// the root folder.
	Repos map[string]RepoConfig `toml:"repos" yaml:"repos"`

	mapping *JobMapping
}

// ServerConfig controls the inbound HTTP listener.
type ServerConfig struct {
	Address      string   `toml:"address" yaml:"address"`
	EventHeader  string   `toml:"event_header" yaml:"event_header"`
	ReadTimeout  Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  Duration `toml:"idle_timeout" yaml:"idle_timeout"`
}

// LoggingConfig customises the slog setup.
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level"`
	Format     string `toml:"format" yaml:"format"`
	Directory  string `toml:"directory" yaml:"directory"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
}

// JenkinsConfig contains the CI server connection settings.
type JenkinsConfig struct {
	URL         string `toml:"url" yaml:"url"`
	Port        int    `toml:"port" yaml:"port"`
	API         string `toml:"api" yaml:"api"`
	APIEnv      string `toml:"api_env" yaml:"api_env"`
	Username    string `toml:"username" yaml:"username"`
	UsernameEnv string `toml:"username_env" yaml:"username_env"`

	// SkipTLSVerify accepts any server certificate. Off unless set.
	SkipTLSVerify bool     `toml:"skip_tls_verify" yaml:"skip_tls_verify"`
	Timeout       Duration `toml:"timeout" yaml:"timeout"`

	// StrictStatus reports non-2xx trigger responses as failures.
	StrictStatus bool `toml:"strict_status" yaml:"strict_status"`
}

// FolderConfig maps project names to their branch tables.
type FolderConfig map[string]ProjectConfig

// ProjectConfig maps branch names to the ordered jobs they trigger.
type ProjectConfig map[string][]string

// RepoConfig is a single repository of the flat profile.
type RepoConfig struct {
	BranchJobMapping map[string]string `toml:"branch_job_mapping" yaml:"branch_job_mapping"`
}

// DefaultPath returns DefaultFileName in the directory of the running executable.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), DefaultFileName), nil
}

// Load reads, validates and indexes configuration from the provided path.
func Load(path string) (*Config, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, unreadable(path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, unreadable(path, err)
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, err
	}
	// A relative log directory lives next to the config file.
	if dir := cfg.Logging.Directory; dir != "" && !filepath.IsAbs(dir) {
		cfg.Logging.Directory = filepath.Join(filepath.Dir(path), dir)
	}
	return cfg, nil
}

// Parse decodes data in the given format ("toml" or "yaml") and validates it.
func Parse(data []byte, format string) (*Config, error) {
	var cfg Config
	switch format {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&cfg); err != nil {
			return nil, malformed(format, err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, malformed(format, err)
		}
	default:
		return nil, malformed(format, errors.New("unsupported config format"))
	}

	cfg.applyDefaults()
	cfg.resolveCredentials()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.mapping = cfg.buildMapping()

	return &cfg, nil
}

// Mapping returns the immutable job mapping built at load time. It is nil
// for a Config that did not come from Load or Parse.
func (c *Config) Mapping() *JobMapping {
	return c.mapping
}

// BaseURL joins url and port the way trigger URLs expect them.
func (c *JenkinsConfig) BaseURL() string {
	return fmt.Sprintf("%s:%d", strings.TrimRight(c.URL, "/"), c.Port)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml", "":
		return "toml"
	default:
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "127.0.0.1:3000"
	}
	if c.Server.EventHeader == "" {
		c.Server.EventHeader = "X-GitHub-Event"
	}
	if c.Server.ReadTimeout.Duration == 0 {
		c.Server.ReadTimeout = Duration{Duration: 15 * time.Second}
	}
	if c.Server.WriteTimeout.Duration == 0 {
		c.Server.WriteTimeout = Duration{Duration: 60 * time.Second}
	}
	if c.Server.IdleTimeout.Duration == 0 {
		c.Server.IdleTimeout = Duration{Duration: 60 * time.Second}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.File == "" {
		c.Logging.File = "app.log"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 7
	}

	if c.Jenkins.Timeout.Duration == 0 {
		c.Jenkins.Timeout = Duration{Duration: 30 * time.Second}
	}
}

// resolveCredentials fills api and username from the environment when only
// the *_env variant is configured.
func (c *Config) resolveCredentials() {
	j := &c.Jenkins
	if strings.TrimSpace(j.API) == "" && j.APIEnv != "" {
		j.API = strings.TrimSpace(os.Getenv(j.APIEnv))
	}
	if strings.TrimSpace(j.Username) == "" && j.UsernameEnv != "" {
		j.Username = strings.TrimSpace(os.Getenv(j.UsernameEnv))
	}
}
