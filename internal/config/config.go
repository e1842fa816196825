package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultHostBaseURL        = "http://127.0.0.1:8321"
	defaultRequestTimeout     = "30s"
	defaultModelName          = "atlas-medium"
	defaultModelMaxTokens     = 4096
	defaultUploadSettleDelay  = "200ms"
	defaultUploadBaseDelay    = "250ms"
	defaultUploadMaxAttempts  = 4
	defaultAuditJournalName   = "audit.db"
	defaultTUITheme           = "dark"
	defaultTUIShowCountdown   = true
	defaultConfigRelativePath = ".config/reins/config.toml"
	defaultDataRelativePath   = ".reins"
	envHostBaseURL            = "REINS_HOST_BASE_URL"
	envHostAPIToken           = "REINS_HOST_API_TOKEN"
	envHostRequestTimeout     = "REINS_HOST_REQUEST_TIMEOUT"
	envModelName              = "REINS_MODEL_NAME"
	envModelMaxTokens         = "REINS_MODEL_MAX_TOKENS"
	envUploadSettleDelay      = "REINS_UPLOAD_SETTLE_DELAY"
	envUploadBaseDelay        = "REINS_UPLOAD_BASE_DELAY"
	envUploadMaxAttempts      = "REINS_UPLOAD_MAX_ATTEMPTS"
	envAuditJournalPath       = "REINS_AUDIT_JOURNAL_PATH"
	envTranscriptDir          = "REINS_TRANSCRIPT_DIR"
)

var (
	// ErrInvalidConfig indicates malformed configuration input.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the application configuration root.
type Config struct {
	Host       HostConfig       `toml:"host"`
	Model      ModelConfig      `toml:"model"`
	Upload     UploadConfig     `toml:"upload"`
	Audit      AuditConfig      `toml:"audit"`
	Transcript TranscriptConfig `toml:"transcript"`
	TUI        TUIConfig        `toml:"tui"`
}

// HostConfig configures the agent host endpoint.
type HostConfig struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	RequestTimeout string `toml:"request_timeout"`
}

// ModelConfig configures model parameters replayed on every exchange.
type ModelConfig struct {
	Name        string  `toml:"name"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// UploadConfig stores attachment stabilization knobs as config-friendly
// strings.
type UploadConfig struct {
	SettleDelay string `toml:"settle_delay"`
	BaseDelay   string `toml:"base_delay"`
	MaxAttempts int    `toml:"max_attempts"`
}

// AuditConfig configures the local decision journal.
type AuditConfig struct {
	JournalPath string `toml:"journal_path"`
}

// TranscriptConfig configures local conversation mirroring.
type TranscriptConfig struct {
	Dir string `toml:"dir"`
}

// TUIConfig configures terminal UI defaults.
type TUIConfig struct {
	Theme         string `toml:"theme"`
	ShowCountdown bool   `toml:"show_countdown"`
}

// LoadOptions controls config loading behavior.
type LoadOptions struct {
	Path string
}

// HostSettings is a validated host snapshot ready for client wiring.
type HostSettings struct {
	BaseURL        string
	APIToken       string
	RequestTimeout time.Duration
}

// UploadSettings is the parsed stabilization policy.
type UploadSettings struct {
	SettleDelay time.Duration
	BaseDelay   time.Duration
	MaxAttempts int
}

// Default returns application defaults.
func Default() Config {
	return Config{
		Host: HostConfig{
			BaseURL:        defaultHostBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Model: ModelConfig{
			Name:      defaultModelName,
			MaxTokens: defaultModelMaxTokens,
		},
		Upload: UploadConfig{
			SettleDelay: defaultUploadSettleDelay,
			BaseDelay:   defaultUploadBaseDelay,
			MaxAttempts: defaultUploadMaxAttempts,
		},
		Audit: AuditConfig{
			JournalPath: defaultAuditJournalPath(),
		},
		Transcript: TranscriptConfig{
			Dir: defaultTranscriptDir(),
		},
		TUI: TUIConfig{
			Theme:         defaultTUITheme,
			ShowCountdown: defaultTUIShowCountdown,
		},
	}
}

// Load reads the config file then applies environment variable overrides.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = defaultConfigPath()
	}

	if err := mergeConfigFile(&cfg, path); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// HostSettings returns validated host settings suitable for runtime wiring.
func (c Config) HostSettings() (HostSettings, error) {
	if strings.TrimSpace(c.Host.BaseURL) == "" {
		return HostSettings{}, fmt.Errorf("%w: host.base_url is required", ErrInvalidConfig)
	}
	timeout, err := time.ParseDuration(strings.TrimSpace(c.Host.RequestTimeout))
	if err != nil {
		return HostSettings{}, fmt.Errorf("%w: parse host request_timeout: %v", ErrInvalidConfig, err)
	}
	return HostSettings{
		BaseURL:        strings.TrimSpace(c.Host.BaseURL),
		APIToken:       strings.TrimSpace(c.Host.APIToken),
		RequestTimeout: timeout,
	}, nil
}

// UploadSettings returns the parsed attachment stabilization policy.
func (c Config) UploadSettings() (UploadSettings, error) {
	settle, err := time.ParseDuration(strings.TrimSpace(c.Upload.SettleDelay))
	if err != nil {
		return UploadSettings{}, fmt.Errorf("%w: parse upload settle_delay: %v", ErrInvalidConfig, err)
	}
	base, err := time.ParseDuration(strings.TrimSpace(c.Upload.BaseDelay))
	if err != nil {
		return UploadSettings{}, fmt.Errorf("%w: parse upload base_delay: %v", ErrInvalidConfig, err)
	}
	if c.Upload.MaxAttempts < 1 {
		return UploadSettings{}, fmt.Errorf("%w: upload max_attempts must be >= 1", ErrInvalidConfig)
	}
	return UploadSettings{
		SettleDelay: settle,
		BaseDelay:   base,
		MaxAttempts: c.Upload.MaxAttempts,
	}, nil
}

func mergeConfigFile(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if value, ok := os.LookupEnv(envHostBaseURL); ok && strings.TrimSpace(value) != "" {
		cfg.Host.BaseURL = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envHostAPIToken); ok {
		cfg.Host.APIToken = value
	}
	if value, ok := os.LookupEnv(envHostRequestTimeout); ok && strings.TrimSpace(value) != "" {
		cfg.Host.RequestTimeout = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envModelName); ok && strings.TrimSpace(value) != "" {
		cfg.Model.Name = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envModelMaxTokens); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envModelMaxTokens, err)
		}
		cfg.Model.MaxTokens = parsed
	}
	if value, ok := os.LookupEnv(envUploadSettleDelay); ok && strings.TrimSpace(value) != "" {
		cfg.Upload.SettleDelay = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envUploadBaseDelay); ok && strings.TrimSpace(value) != "" {
		cfg.Upload.BaseDelay = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envUploadMaxAttempts); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envUploadMaxAttempts, err)
		}
		cfg.Upload.MaxAttempts = parsed
	}
	if value, ok := os.LookupEnv(envAuditJournalPath); ok && strings.TrimSpace(value) != "" {
		cfg.Audit.JournalPath = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envTranscriptDir); ok && strings.TrimSpace(value) != "" {
		cfg.Transcript.Dir = strings.TrimSpace(value)
	}
	return nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Model.Name) == "" {
		return fmt.Errorf("%w: model.name is required", ErrInvalidConfig)
	}
	if cfg.Model.MaxTokens < 1 {
		return fmt.Errorf("%w: model.max_tokens must be >= 1", ErrInvalidConfig)
	}
	if _, err := cfg.HostSettings(); err != nil {
		return err
	}
	if _, err := cfg.UploadSettings(); err != nil {
		return err
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultConfigRelativePath)
}

func defaultAuditJournalPath() string {
	return filepath.Join(dataDir(), defaultAuditJournalName)
}

func defaultTranscriptDir() string {
	return filepath.Join(dataDir(), "transcripts")
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataRelativePath
	}
	return filepath.Join(home, defaultDataRelativePath)
}
