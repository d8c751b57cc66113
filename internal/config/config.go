package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultDataDir        = "data"
	defaultAPIBaseURL     = "http://localhost:8001"
	defaultRequestTimeout = 5 * time.Minute
	defaultInterJobDelay  = 500 * time.Millisecond
	defaultLogLevel       = "info"
)

// Credential cache backends.
const (
	StoreFile = "file"
	StoreBolt = "bolt"
)

// Handling of uploads that never received a response.
const (
	AmbiguousOptimistic = "optimistic"
	AmbiguousStrict     = "strict"
)

// FatalRule is a message pattern that aborts a batch when the remote reports it.
type FatalRule struct {
	Match   string `yaml:"match"`
	Pattern string `yaml:"pattern"`
}

// Config describes runtime configuration for the client and the local server.
type Config struct {
	Port               int           `yaml:"port" env:"SYNC2NOTION_PORT"`
	DataDir            string        `yaml:"data_dir" env:"SYNC2NOTION_DATA_DIR"`
	APIBaseURL         string        `yaml:"api_base_url" env:"SYNC2NOTION_API_URL"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	InterJobDelay      time.Duration `yaml:"inter_job_delay"`
	AllowedExtensions  []string      `yaml:"allowed_extensions"`
	ConfigStore        string        `yaml:"config_store"`
	AmbiguousTransport string        `yaml:"ambiguous_transport"`
	FatalRules         []FatalRule   `yaml:"fatal_rules"`
	LogLevel           string        `yaml:"log_level" env:"SYNC2NOTION_LOG_LEVEL"`
}

// DefaultExtensions lists the document types the conversion service accepts.
func DefaultExtensions() []string {
	return []string{
		".docx", ".doc", ".md", ".epub", ".html", ".htm", ".pdf",
		".pptx", ".xlsx", ".xls", ".csv", ".txt", ".json", ".xml",
	}
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Port:               defaultPort,
		DataDir:            defaultDataDir,
		APIBaseURL:         defaultAPIBaseURL,
		RequestTimeout:     defaultRequestTimeout,
		InterJobDelay:      defaultInterJobDelay,
		AllowedExtensions:  DefaultExtensions(),
		ConfigStore:        StoreFile,
		AmbiguousTransport: AmbiguousOptimistic,
		LogLevel:           defaultLogLevel,
	}
}

// Load reads YAML config from the provided path and applies SYNC2NOTION_*
// environment overrides. If the file does not exist or is empty, defaults
// are used with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is chosen by the operator
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) > 0 {
		if err := yaml.Unmarshal(fileData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return normalize(cfg)
}

func normalize(cfg Config) (Config, error) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return cfg, fmt.Errorf("invalid api_base_url %q: must start with http:// or https://", cfg.APIBaseURL)
	}
	if u, err := url.Parse(cfg.APIBaseURL); err != nil || u.Host == "" {
		return cfg, fmt.Errorf("invalid api_base_url %q: not an absolute URL", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.InterJobDelay < 0 {
		return cfg, fmt.Errorf("invalid inter_job_delay: %s (must be >= 0)", cfg.InterJobDelay)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	cfg.ConfigStore = strings.ToLower(strings.TrimSpace(cfg.ConfigStore))
	switch cfg.ConfigStore {
	case "":
		cfg.ConfigStore = StoreFile
	case StoreFile, StoreBolt:
	default:
		return cfg, fmt.Errorf("invalid config_store %q (want %s or %s)", cfg.ConfigStore, StoreFile, StoreBolt)
	}

	cfg.AmbiguousTransport = strings.ToLower(strings.TrimSpace(cfg.AmbiguousTransport))
	switch cfg.AmbiguousTransport {
	case "":
		cfg.AmbiguousTransport = AmbiguousOptimistic
	case AmbiguousOptimistic, AmbiguousStrict:
	default:
		return cfg, fmt.Errorf("invalid ambiguous_transport %q (want %s or %s)",
			cfg.AmbiguousTransport, AmbiguousOptimistic, AmbiguousStrict)
	}

	for i, rule := range cfg.FatalRules {
		if strings.TrimSpace(rule.Pattern) == "" {
			return cfg, fmt.Errorf("fatal_rules[%d]: empty pattern", i)
		}
	}

	cfg.AllowedExtensions = normalizeExtensions(cfg.AllowedExtensions)
	return cfg, nil
}

func normalizeExtensions(in []string) []string {
	if len(in) == 0 {
		return DefaultExtensions()
	}
	seen := make(map[string]struct{}, len(in))
	normalized := make([]string, 0, len(in))
	for _, ext := range in {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		normalized = append(normalized, e)
	}
	return normalized
}
