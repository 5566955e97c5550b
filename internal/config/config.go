package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration shared by codex and codexd.
type Config struct {
	Workspace string

	BaseURL               string
	InsecureSkipTLSVerify bool
	HTTPTimeout           time.Duration // 0 leaves requests unbounded

	LogLevel string

	HTTPAddr string
	APIKeys  map[string]struct{} // if empty, daemon auth is disabled

	ConfigPath string
}

type envConfig struct {
	Workspace             string        `env:"CODEX_WORKSPACE"`
	BaseURL               string        `env:"CODEX_BASE_URL"`
	InsecureSkipTLSVerify *bool         `env:"CODEX_INSECURE_SKIP_TLS_VERIFY"`
	HTTPTimeout           time.Duration `env:"CODEX_HTTP_TIMEOUT"`
	LogLevel              string        `env:"CODEX_LOG_LEVEL"`

	HTTPAddr   string `env:"CODEXD_HTTP_ADDR"`
	APIKeys    string `env:"CODEXD_API_KEYS"`
	ConfigPath string `env:"CODEXD_CONFIG_PATH"`
}

type fileConfig struct {
	BaseURL               string   `yaml:"base_url"`
	InsecureSkipTLSVerify *bool    `yaml:"insecure_skip_tls_verify"`
	HTTPTimeout           string   `yaml:"http_timeout"`
	LogLevel              string   `yaml:"log_level"`
	HTTPAddr              string   `yaml:"http_addr"`
	APIKeys               []string `yaml:"api_keys"`
}

const (
	DefaultHTTPAddr = "127.0.0.1:8765"

	defaultConfigFileName = "codexd.yaml"
	dotEnvFileName        = ".env"
)

type Options struct {
	// Lookuper overrides the process environment.
	Lookuper envconfig.Lookuper
	// DefaultLogLevel applies when no level is configured.
	DefaultLogLevel string
}

// Load resolves the configuration. Precedence, highest first: process
// environment, <workspace>/.env, the YAML file, built-in defaults. The YAML
// file is CODEXD_CONFIG_PATH, or codexd.yaml in the workspace if present.
func Load(ctx context.Context, opts Options) (Config, error) {
	lookuper := opts.Lookuper
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	var bootstrap envConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &bootstrap, Lookuper: lookuper}); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	workspace, err := resolveWorkspace(bootstrap.Workspace)
	if err != nil {
		return Config{}, err
	}

	dotenv, err := readDotEnv(filepath.Join(workspace, dotEnvFileName))
	if err != nil {
		return Config{}, err
	}
	if len(dotenv) > 0 {
		lookuper = envconfig.MultiLookuper(lookuper, envconfig.MapLookuper(dotenv))
	}

	var env envConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: lookuper}); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}

	cfg := Config{
		Workspace: workspace,
		HTTPAddr:  DefaultHTTPAddr,
		LogLevel:  opts.DefaultLogLevel,
	}

	cfg.ConfigPath = strings.TrimSpace(env.ConfigPath)
	if cfg.ConfigPath == "" {
		candidate := filepath.Join(workspace, defaultConfigFileName)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			cfg.ConfigPath = candidate
		}
	}
	file, err := loadFile(cfg.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	if err := applyFile(&cfg, file); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg, env)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveWorkspace(raw string) (string, error) {
	ws := strings.TrimSpace(raw)
	if ws == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve workspace: %w", err)
		}
		ws = wd
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return "", fmt.Errorf("resolve workspace %q: %w", ws, err)
	}
	return abs, nil
}

func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

func loadFile(path string) (fileConfig, error) {
	if strings.TrimSpace(path) == "" {
		return fileConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, file fileConfig) error {
	if v := strings.TrimSpace(file.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	if file.InsecureSkipTLSVerify != nil {
		cfg.InsecureSkipTLSVerify = *file.InsecureSkipTLSVerify
	}
	if v := strings.TrimSpace(file.HTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config http_timeout: %w", err)
		}
		cfg.HTTPTimeout = d
	}
	if v := strings.TrimSpace(file.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(file.HTTPAddr); v != "" {
		cfg.HTTPAddr = v
	}
	if len(file.APIKeys) > 0 {
		cfg.APIKeys = parseCSVSet(strings.Join(file.APIKeys, ","))
	}
	return nil
}

func applyEnv(cfg *Config, env envConfig) {
	if v := strings.TrimSpace(env.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	if env.InsecureSkipTLSVerify != nil {
		cfg.InsecureSkipTLSVerify = *env.InsecureSkipTLSVerify
	}
	if env.HTTPTimeout > 0 {
		cfg.HTTPTimeout = env.HTTPTimeout
	}
	if v := strings.TrimSpace(env.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(env.HTTPAddr); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(env.APIKeys); v != "" {
		cfg.APIKeys = parseCSVSet(v)
	}
}

func validate(cfg Config) error {
	if _, _, err := net.SplitHostPort(cfg.HTTPAddr); err != nil {
		return fmt.Errorf("CODEXD_HTTP_ADDR must be host:port: %w", err)
	}
	if cfg.HTTPTimeout < 0 {
		return errors.New("CODEX_HTTP_TIMEOUT must be >= 0")
	}
	if info, err := os.Stat(cfg.Workspace); err != nil || !info.IsDir() {
		return fmt.Errorf("workspace %q is not a directory", cfg.Workspace)
	}
	return nil
}

func parseCSVSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for part := range strings.SplitSeq(s, ",") {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		out[v] = struct{}{}
	}
	return out
}
