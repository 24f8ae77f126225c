package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolvePrecedenceConfigEnvCLI(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `db_path: ~/.scribe/from-config.db
rules_path: ~/.scribe/rules.yaml
llm:
  model: openrouter/x-ai/grok-4.1-fast
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SCRIBE_DB", "~/from-env.db")
	t.Setenv("SCRIBE_LLM", "google/gemini-2.5-flash")

	resolved, err := Resolve(ResolveOptions{
		ConfigPath: cfgPath,
		CLILLM:     "openrouter/google/gemini-2.0-flash-001",
		CLIDBPath:  "~/from-cli.db",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if resolved.DBPath.Source != SourceCLI {
		t.Fatalf("expected DB path source cli, got %s", resolved.DBPath.Source)
	}
	if resolved.LLM.Source != SourceCLI {
		t.Fatalf("expected llm source cli, got %s", resolved.LLM.Source)
	}
	if resolved.RulesPath.Source != SourceConfig {
		t.Fatalf("expected rules path from config, got %s", resolved.RulesPath.Source)
	}
}

func TestResolveMissingConfigFile(t *testing.T) {
	t.Setenv("SCRIBE_LLM", "")
	resolved, err := Resolve(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	if err != nil {
		t.Fatalf("missing config file must not error: %v", err)
	}
	if resolved.LLM.Value != "" {
		t.Fatalf("expected empty llm, got %q", resolved.LLM.Value)
	}
}

func TestAPIKeyForProviderEnvOverridesConfig(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `llm:
  model: openrouter/x-ai/grok-4.1-fast
  api_key: config-key
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	resolved, err := Resolve(ResolveOptions{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	k := resolved.APIKeyForProvider("openrouter/some-model")
	if k.Value != "env-key" {
		t.Fatalf("expected env key, got %q", k.Value)
	}
	if k.Source != SourceEnv {
		t.Fatalf("expected source env, got %s", k.Source)
	}
}

func TestTimeoutParsing(t *testing.T) {
	r := ResolvedConfig{AdapterTimeout: ResolvedValue{Value: "90s"}}
	if d := r.Timeout(45 * time.Second); d != 90*time.Second {
		t.Fatalf("expected 90s, got %v", d)
	}

	r = ResolvedConfig{AdapterTimeout: ResolvedValue{Value: "bogus"}}
	if d := r.Timeout(45 * time.Second); d != 45*time.Second {
		t.Fatalf("expected fallback for bogus value, got %v", d)
	}

	r = ResolvedConfig{}
	if d := r.Timeout(45 * time.Second); d != 45*time.Second {
		t.Fatalf("expected fallback for empty value, got %v", d)
	}
}

func TestExpandUserPath(t *testing.T) {
	resolved, err := Resolve(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "none.yaml"),
		CLIDBPath:  "~/data/runs.db",
	})
	if err != nil {
		t.Fatal(err)
	}
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, "data", "runs.db")
	if resolved.DBPath.Value != want {
		t.Fatalf("expected %q, got %q", want, resolved.DBPath.Value)
	}
}
