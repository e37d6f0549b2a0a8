package commands

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/luabind/cmd/luabind/internal/config"
	"github.com/haivivi/luabind/pkg/cli"
	"github.com/haivivi/luabind/pkg/kv"
	"github.com/haivivi/luabind/pkg/luabind"
	"github.com/haivivi/luabind/pkg/storage"
	"github.com/haivivi/luabind/pkg/tutorial"
)

var (
	// Global flags
	verbose    bool
	configPath string
	scriptsDir string
	traceSize  int
)

var rootCmd = &cobra.Command{
	Use:   "luabind",
	Short: "Bind host objects into embedded Lua scripts",
	Long: `luabind - run Lua scripts against host objects and functions.

The lessons walk through the binding layer one step at a time:
loading a script, calling script functions, exposing host functions,
wrapping host objects, sharing methods through fallback tables, and
calling functions in nested tables.

Scripts are looked up in --scripts (or scripts.dir), then the configured
S3 prefix, then the lessons embedded in the binary.

Configuration is read from the OS config directory:
  macOS:   ~/Library/Application Support/luabind/config.yaml
  Linux:   ~/.config/luabind/config.yaml
  Windows: %AppData%/luabind/config.yaml

Examples:
  # List and run lessons
  luabind lessons
  luabind lesson character
  luabind inherit --trace 32

  # Run a script and call one of its functions
  luabind run game.lua --call applyDamage --args args.yaml -o json`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $CONFIG_DIR/luabind/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&scriptsDir, "scripts", "", "directory searched for scripts before the built-in ones")
	rootCmd.PersistentFlags().IntVar(&traceSize, "trace", 0, "record the last N boundary crossings and print them")
}

// app is the per-invocation state shared by the subcommands.
type app struct {
	cfg     *config.Config
	console *cli.Console
	logger  *slog.Logger
	store   storage.FileStore
	kv      kv.Store
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	console := cli.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr())
	console.Verbose = verbose
	if cfg.Path != "" {
		console.Debugf("config: %s", cfg.Path)
	}

	store, err := cfg.FileStore(scriptsDir, tutorial.DefaultStore())
	if err != nil {
		return nil, err
	}
	kvs, err := cfg.OpenKV(logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, console: console, logger: logger, store: store, kv: kvs}, nil
}

func (a *app) Close() error {
	return a.kv.Close()
}

// interpreterOptions merges the config debug section with --trace.
func (a *app) interpreterOptions() []luabind.Option {
	opts := a.cfg.InterpreterOptions()
	if traceSize > 0 {
		opts = append(opts, luabind.WithTrace(traceSize))
	}
	return opts
}

// env returns the lesson environment for this invocation.
func (a *app) env() *tutorial.Env {
	env := &tutorial.Env{
		Store:   a.store,
		Console: a.console,
		Logger:  a.logger,
		KV:      a.kv,
		Options: a.interpreterOptions(),
	}
	if traceSize > 0 || a.cfg.Debug.Trace > 0 {
		env.AfterRun = a.printTrace
	}
	return env
}

// printTrace prints the interpreter's recorded crossings.
func (a *app) printTrace(in *luabind.Interpreter) {
	crossings := in.Trace()
	if len(crossings) == 0 {
		return
	}
	rows := make([][]string, len(crossings))
	for i, c := range crossings {
		status := "ok"
		if c.Err != nil {
			status = c.Err.Error()
		}
		rows[i] = []string{c.Dir.String(), c.Name, strconv.Itoa(c.Depth), strconv.Itoa(c.Args), status}
	}
	fmt.Fprintln(a.console.Out)
	a.console.Heading("trace")
	a.console.Table([]string{"DIRECTION", "NAME", "DEPTH", "ARGS", "STATUS"}, rows)
}
