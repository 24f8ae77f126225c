package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openchart/scribe/internal/config"
	"github.com/openchart/scribe/internal/extract"
	"github.com/openchart/scribe/internal/llm"
	"github.com/openchart/scribe/internal/mcp"
	"github.com/openchart/scribe/internal/pipeline"
	"github.com/openchart/scribe/internal/store"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "generate":
		if err := runGenerate(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "detect":
		if err := runDetect(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "runs":
		if err := runRuns(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := runConfig(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("scribe %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// cliFlags is the shared flag set parsed by every subcommand.
type cliFlags struct {
	configPath string
	llm        string
	rules      string
	db         string
	timeout    string
	logLevel   string
	save       bool
	noLLM      bool
	args       []string
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		takeValue := func(name string) (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			i++
			return args[i], nil
		}

		var err error
		switch arg {
		case "--config":
			f.configPath, err = takeValue(arg)
		case "--llm":
			f.llm, err = takeValue(arg)
		case "--rules":
			f.rules, err = takeValue(arg)
		case "--db":
			f.db, err = takeValue(arg)
		case "--timeout":
			f.timeout, err = takeValue(arg)
		case "--log":
			f.logLevel, err = takeValue(arg)
		case "--save":
			f.save = true
		case "--no-llm":
			f.noLLM = true
		default:
			if strings.HasPrefix(arg, "-") {
				return f, fmt.Errorf("unknown flag: %s", arg)
			}
			f.args = append(f.args, arg)
		}
		if err != nil {
			return f, err
		}
	}
	return f, nil
}

func resolve(f cliFlags) (config.ResolvedConfig, error) {
	return config.Resolve(config.ResolveOptions{
		ConfigPath: f.configPath,
		CLILLM:     f.llm,
		CLIRules:   f.rules,
		CLIDBPath:  f.db,
		CLITimeout: f.timeout,
		CLILog:     f.logLevel,
	})
}

func newLogger(rc config.ResolvedConfig) zerolog.Logger {
	level := zerolog.WarnLevel
	if v := strings.TrimSpace(rc.LogLevel.Value); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}
	// Logs go to stderr so stdout stays clean for JSON output and the
	// MCP stdio transport.
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// buildOrchestrator assembles the pipeline from resolved config. The
// returned provider name is empty when running deterministic-only.
func buildOrchestrator(f cliFlags, rc config.ResolvedConfig, log zerolog.Logger) (*pipeline.Orchestrator, error) {
	var provider llm.Provider
	if spec := strings.TrimSpace(rc.LLM.Value); spec != "" && !f.noLLM {
		cfg, err := llm.ParseLLMFlag(spec)
		if err != nil {
			return nil, err
		}
		if key := rc.APIKeyForProvider(cfg.Provider); key.Value != "" {
			cfg.APIKey = key.Value
		}
		p, err := llm.NewProvider(cfg)
		if err != nil {
			return nil, err
		}
		provider = llm.WithRetries(p, 3)
		log.Debug().Str("provider", p.Name()).Msg("llm provider configured")
	}

	var lib *extract.Library
	if path := strings.TrimSpace(rc.RulesPath.Value); path != "" {
		var err error
		lib, err = extract.LoadLibrary(path)
		if err != nil {
			return nil, fmt.Errorf("loading rules from %s: %w", path, err)
		}
	}

	return pipeline.New(pipeline.Config{
		Provider:       provider,
		Library:        lib,
		AdapterTimeout: rc.Timeout(pipeline.DefaultAdapterTimeout),
		Version:        version,
	}, log), nil
}

func readInput(args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", args[0], err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(b), nil
}

func runGenerate(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}
	log := newLogger(rc)

	text, err := readInput(f.args)
	if err != nil {
		return err
	}

	orch, err := buildOrchestrator(f, rc, log)
	if err != nil {
		return err
	}

	res, err := orch.Generate(context.Background(), text)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if f.save {
		archive, err := store.NewArchive(rc.DBPath.Value)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer archive.Close()

		id, err := archive.SaveRun(context.Background(), &store.Run{
			Approach:     res.Metadata.Approach,
			LLMProvider:  res.Metadata.LLMProvider,
			Valid:        res.Validation.IsValid,
			Completeness: res.Validation.Completeness,
			InputChars:   len(text),
			ResultJSON:   string(data),
		})
		if err != nil {
			return fmt.Errorf("archiving run: %w", err)
		}
		log.Info().Str("run_id", id).Msg("run archived")
	}

	fmt.Println(string(data))
	return nil
}

func runDetect(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}
	log := newLogger(rc)

	text, err := readInput(f.args)
	if err != nil {
		return err
	}

	orch, err := buildOrchestrator(f, rc, log)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(orch.Detect(text), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runRuns(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}

	archive, err := store.NewArchive(rc.DBPath.Value)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer archive.Close()

	ctx := context.Background()

	// "runs <id>" prints the stored result; bare "runs" lists recent ones.
	if len(f.args) > 0 {
		run, err := archive.GetRun(ctx, f.args[0])
		if err != nil {
			return fmt.Errorf("run %s: %w", f.args[0], err)
		}
		fmt.Println(run.ResultJSON)
		return nil
	}

	runs, err := archive.ListRuns(ctx, store.ListOpts{Limit: 20})
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}
	for _, r := range runs {
		validity := "invalid"
		if r.Valid {
			validity = "valid"
		}
		fmt.Printf("%s  %s  %-18s  %s  %.0f%%  %d chars\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Approach,
			validity, r.Completeness*100, r.InputChars)
	}
	return nil
}

func runConfig(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}

	// Keys are redacted; only provenance is shown.
	for p, v := range rc.LLMKeys {
		v.Value = "****"
		rc.LLMKeys[p] = v
	}

	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runMCP(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}
	log := newLogger(rc)

	orch, err := buildOrchestrator(f, rc, log)
	if err != nil {
		return err
	}

	archive, err := store.NewArchive(rc.DBPath.Value)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer archive.Close()

	srv := mcp.NewServer(mcp.ServerConfig{
		Orchestrator: orch,
		Archive:      archive,
		Version:      version,
	})

	log.Info().Str("version", version).Msg("starting MCP server on stdio")
	return mcpserver.ServeStdio(srv)
}

func printUsage() {
	fmt.Printf(`scribe %s — Hybrid discharge summary generator for clinical notes

Usage:
  scribe <command> [arguments]

Commands:
  generate [file]     Generate a structured discharge record from notes
                      (reads stdin when no file is given)
  detect [file]       Segment notes into typed categories without extraction
  runs [id]           List archived runs, or print one run by ID
  config              Show resolved configuration with provenance
  mcp                 Serve the pipeline over MCP stdio
  version             Print version

Flags:
  --config <path>     Config file (default: ~/.scribe/config.yaml)
  --llm <spec>        LLM provider/model, e.g. google/gemini-2.5-flash
  --no-llm            Force deterministic-only mode
  --rules <path>      YAML pattern-library override file
  --db <path>         Run archive database (default: ~/.scribe/scribe.db)
  --timeout <dur>     Per-adapter LLM timeout, e.g. 45s
  --log <level>       Log level: trace|debug|info|warn|error
  --save              Archive the generated run (generate only)
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
