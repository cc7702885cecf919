package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wardenlabs/warden/internal/audit"
	"github.com/wardenlabs/warden/internal/autonomy"
	"github.com/wardenlabs/warden/internal/config"
	"github.com/wardenlabs/warden/internal/policy"
	"github.com/wardenlabs/warden/internal/tools"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

// App holds the wired runtime components for one invocation.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Auto       *autonomy.Config
	Policy     *policy.Engine
	Trail      *audit.Store
	Registry   *tools.Registry
	Dispatcher *tools.Dispatcher
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := "warden.toml"
	var subCmd string
	var subCmdIdx int

	// First pass: find the config flag.
	skipNext := false
	for i := 1; i < len(os.Args); i++ {
		if skipNext {
			skipNext = false
			continue
		}
		arg := os.Args[i]
		if arg == "--config" || arg == "-config" {
			if i+1 < len(os.Args) {
				configPath = os.Args[i+1]
				skipNext = true
			}
		}
	}

	// Second pass: find the subcommand (first non-flag arg).
	skipNext = false
	for i := 1; i < len(os.Args); i++ {
		if skipNext {
			skipNext = false
			continue
		}
		arg := os.Args[i]
		if arg == "--config" || arg == "-config" {
			skipNext = true
			continue
		}
		if arg == "--version" || arg == "-version" {
			fmt.Printf("warden %s (built %s)\n", version, buildTime)
			return 0
		}
		if len(arg) > 0 && arg[0] != '-' {
			subCmd = arg
			subCmdIdx = i
			break
		}
	}

	switch subCmd {
	case "sandbox-exec":
		// Hidden helper: confines itself, then execs the command. Runs
		// before any config or component setup on purpose.
		return sandboxExec(os.Args[subCmdIdx+1:])
	case "init":
		return initCommand(configPath)
	case "version":
		fmt.Printf("warden %s (built %s)\n", version, buildTime)
		return 0
	case "call", "check", "verify":
	default:
		usage()
		return 2
	}

	app, err := setup(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Trail.Close()

	switch subCmd {
	case "call":
		return callCommand(app, os.Args[subCmdIdx+1:])
	case "check":
		return checkCommand(app, os.Args[subCmdIdx+1:])
	case "verify":
		return verifyCommand(app)
	}
	return 0
}

func usage() {
	fmt.Fprint(os.Stderr, `warden - safety core for autonomous agents

Usage:
  warden [--config warden.toml] <command>

Commands:
  call <tool>       run a tool; input is read from stdin
  check <command>   classify a shell command without running it
  verify            verify the audit trail of the current database
  init              write a default config file
  version           print the version
`)
}

// setup wires the runtime components from the configuration.
func setup(configPath string) (*App, error) {
	app := &App{}
	app.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(app.Logger)

	cfg, err := loadConfig(configPath, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app.Config = cfg

	app.Auto = cfg.AutonomyConfig()

	app.Policy = policy.NewEngine()
	if cfg.Policy.RuleFile != "" {
		if err := app.Policy.LoadFile(cfg.Policy.RuleFile); err != nil {
			return nil, fmt.Errorf("load policy rules: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Audit.DBPath), 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	trail, err := audit.Open(cfg.Audit.DBPath, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	app.Trail = trail
	if cfg.Audit.RetentionSchedule != "" && cfg.Audit.RetentionMaxAge > 0 {
		if err := trail.StartRetention(cfg.Audit.RetentionSchedule, time.Duration(cfg.Audit.RetentionMaxAge)); err != nil {
			return nil, fmt.Errorf("start retention: %w", err)
		}
	}

	root, err := filepath.Abs(cfg.Tools.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	app.Registry = tools.NewRegistry()
	ws := &tools.Workspace{Root: root, Auto: app.Auto, Logger: app.Logger}
	ws.RegisterAll(app.Registry)

	sh := &tools.ShellTool{
		Policy:           app.Policy,
		Auto:             app.Auto,
		Dir:              root,
		WritePaths:       append([]string{root}, cfg.Sandbox.WritePaths...),
		AllowUnsandboxed: cfg.Sandbox.AllowUnsandboxed,
		Logger:           app.Logger,
	}
	sh.Register(app.Registry)

	if cfg.Tools.ManifestPath != "" {
		n, err := tools.LoadManifest(cfg.Tools.ManifestPath, app.Registry, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("load tool manifest: %w", err)
		}
		app.Logger.Info("loaded plugin tools", "count", n)
	}

	app.Dispatcher = tools.NewDispatcher(app.Registry, app.Auto, app.Trail, nil, app.Logger)
	return app, nil
}

// loadConfig falls back to the defaults when no config file exists.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("no config file, using defaults", "path", path)
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func initCommand(configPath string) int {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", configPath)
		return 1
	}
	if err := config.Default().Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s\n", configPath)
	return 0
}

func callCommand(app *App, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: warden call <tool>  (input on stdin)")
		return 2
	}
	name := args[0]
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read stdin: %v\n", err)
		return 1
	}

	out, err := app.Dispatcher.Execute(context.Background(), name, string(input))
	if out != "" {
		fmt.Print(out)
		if !strings.HasSuffix(out, "\n") {
			fmt.Println()
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ref *tools.RefusalError
		if errors.As(err, &ref) {
			return 2
		}
		return 1
	}
	return 0
}

// checkCommand classifies a shell command through both gates without
// running it.
func checkCommand(app *App, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: warden check <command>")
		return 2
	}
	command := strings.Join(args, " ")

	decision, reason := app.Auto.CheckShell(command)
	fmt.Printf("autonomy (%s): %s - %s\n", app.Auto.Level, decision, reason)

	res := app.Policy.Evaluate(command)
	fmt.Printf("policy: %s - %s\n", res.Decision, res.Reason)

	switch {
	case decision == autonomy.ShellDeny || res.Decision == policy.Forbidden:
		return 2
	case decision == autonomy.ShellPrompt || res.Decision == policy.Prompt:
		return 1
	default:
		return 0
	}
}

// verifyCommand recomputes the hash chain of every session in the
// audit database.
func verifyCommand(app *App) int {
	ctx := context.Background()
	sessions, err := app.Trail.Sessions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(sessions) == 0 {
		fmt.Println("audit trail is empty")
		return 0
	}

	tampered := 0
	for _, id := range sessions {
		ok, err := app.Trail.VerifyChain(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if ok {
			fmt.Printf("session %s: ok\n", id)
		} else {
			fmt.Printf("session %s: TAMPERED\n", id)
			tampered++
		}
	}
	if tampered > 0 {
		return 2
	}
	return 0
}
