// Package config resolves runtime settings from three layers: a YAML
// config file, environment variables, and CLI flags, in ascending
// precedence. Every resolved value remembers where it came from so the
// config command can show provenance.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a setting plus its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-flag layer into resolution.
type ResolveOptions struct {
	ConfigPath string
	CLILLM     string
	CLIRules   string
	CLIDBPath  string
	CLITimeout string
	CLILog     string
}

// ResolvedConfig is the full resolved setting set.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	// LLM is a provider/model spec, e.g. "google/gemini-2.5-flash".
	// Empty means run deterministic-only.
	LLM ResolvedValue `json:"llm"`
	// RulesPath points to a YAML pattern-library override file.
	RulesPath ResolvedValue `json:"rules_path"`
	// DBPath is the run-archive SQLite database location.
	DBPath ResolvedValue `json:"db_path"`
	// AdapterTimeout is a Go duration string bounding each adapter call.
	AdapterTimeout ResolvedValue `json:"adapter_timeout"`
	// LogLevel is a zerolog level name.
	LogLevel ResolvedValue `json:"log_level"`

	// LLMKeys maps provider name to its resolved API key.
	LLMKeys map[string]ResolvedValue `json:"llm_keys,omitempty"`
}

type fileConfig struct {
	DBPath    string `yaml:"db_path"`
	RulesPath string `yaml:"rules_path"`
	LogLevel  string `yaml:"log_level"`
	LLM       struct {
		Model   string `yaml:"model"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"llm"`
}

// DefaultConfigPath is ~/.scribe/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scribe", "config.yaml")
}

// Resolve layers config file, environment, and CLI flags.
func Resolve(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		LLMKeys:    map[string]ResolvedValue{},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.RulesPath, cfg.RulesPath, SourceConfig, path)
		apply(&out.LogLevel, cfg.LogLevel, SourceConfig, path)
		apply(&out.LLM, cfg.LLM.Model, SourceConfig, path)
		apply(&out.AdapterTimeout, cfg.LLM.Timeout, SourceConfig, path)
		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			p := providerOf(cfg.LLM.Model)
			if p == "" {
				p = "default"
			}
			out.LLMKeys[p] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	applyEnv(&out.DBPath, "SCRIBE_DB")
	applyEnv(&out.RulesPath, "SCRIBE_RULES")
	applyEnv(&out.LogLevel, "SCRIBE_LOG")
	applyEnv(&out.LLM, "SCRIBE_LLM")
	applyEnv(&out.AdapterTimeout, "SCRIBE_LLM_TIMEOUT")

	for env, provider := range map[string]string{
		"OPENROUTER_API_KEY": "openrouter",
		"GEMINI_API_KEY":     "google",
		"GOOGLE_API_KEY":     "google",
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			out.LLMKeys[provider] = ResolvedValue{Value: v, Source: SourceEnv, From: env}
		}
	}

	apply(&out.LLM, opts.CLILLM, SourceCLI, "--llm")
	apply(&out.RulesPath, opts.CLIRules, SourceCLI, "--rules")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.AdapterTimeout, opts.CLITimeout, SourceCLI, "--timeout")
	apply(&out.LogLevel, opts.CLILog, SourceCLI, "--log")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.RulesPath.Value != "" {
		out.RulesPath.Value = expandUserPath(out.RulesPath.Value)
	}

	return out, nil
}

// Timeout parses the resolved adapter timeout, returning fallback when the
// value is unset or unparseable.
func (r ResolvedConfig) Timeout(fallback time.Duration) time.Duration {
	v := strings.TrimSpace(r.AdapterTimeout.Value)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// APIKeyForProvider returns the key for a "provider" or "provider/model"
// spec, falling back to a default-scoped key from the config file.
func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		return ResolvedValue{}
	}
	if v, ok := r.LLMKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if v, ok := r.LLMKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		return v[:idx]
	}
	return v
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
