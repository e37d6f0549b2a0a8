package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/luabind/pkg/cli"
	"github.com/haivivi/luabind/pkg/luabind"
	"github.com/haivivi/luabind/pkg/luabind/runtime"
	"github.com/haivivi/luabind/pkg/storage"
)

var (
	runCall   string
	runArgs   string
	runNret   int
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script with the host builtins",
	Long: `Load a script with the __builtin table and require available, then
optionally call one of its functions and print the results.

The script path is read from disk when it exists, otherwise it is looked
up like a lesson script (--scripts, S3, built-in). Modules loaded with
require are searched next to the script first.

The --args file holds the call arguments as a YAML or JSON list, or as
a mapping with an "args" list:

  args: [3, 4]

Examples:
  luabind run functions.lua --call multi --args args.yaml
  luabind run game.lua --call damage -o json --nret 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(runOutput)
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.runScript(cmd.Context(), args[0], format)
	},
}

func (a *app) runScript(ctx context.Context, script string, format cli.OutputFormat) error {
	src, modules, err := a.readScript(ctx, script)
	if err != nil {
		return err
	}

	opts := append([]luabind.Option{
		luabind.WithLogger(a.logger),
		luabind.WithStdout(a.console.Writer()),
	}, a.interpreterOptions()...)
	in, err := luabind.New(opts...)
	if err != nil {
		return err
	}
	defer in.Close()
	if traceSize > 0 || a.cfg.Debug.Trace > 0 {
		defer a.printTrace(in)
	}

	rt := runtime.New(in,
		runtime.WithContext(ctx),
		runtime.WithStore(modules),
		runtime.WithKV(a.kv),
		runtime.WithLogger(a.logger),
	)
	if err := rt.RegisterBuiltins(); err != nil {
		return err
	}

	start := time.Now()
	if err := in.LoadString(filepath.Base(script), string(src)); err != nil {
		return err
	}
	a.console.Debugf("loaded %s in %s", script, cli.FormatDuration(time.Since(start)))
	if runCall == "" {
		return nil
	}

	callArgs, err := a.callArgs()
	if err != nil {
		return err
	}
	nret := runNret
	if nret < 0 {
		nret = luabind.MultRet
	}

	start = time.Now()
	rets, err := in.Call(runCall, nret, callArgs...)
	if err != nil {
		return err
	}
	a.console.Debugf("%s returned %d values in %s", runCall, len(rets), cli.FormatDuration(time.Since(start)))

	results := make([]any, len(rets))
	for i, r := range rets {
		results[i] = r.GoValue()
	}
	return cli.Output(results, cli.OutputOptions{Format: format, Writer: a.console.Out})
}

// readScript returns the script source and the store require should use.
func (a *app) readScript(ctx context.Context, script string) ([]byte, storage.FileStore, error) {
	src, err := os.ReadFile(script)
	if err == nil {
		local, err := storage.NewLocal(filepath.Dir(script))
		if err != nil {
			return nil, nil, err
		}
		return src, storage.Chain{local, a.store}, nil
	}
	if !errors.Is(err, os.ErrNotExist) || filepath.IsAbs(script) {
		return nil, nil, err
	}
	src, err = storage.ReadFile(ctx, a.store, script)
	if err != nil {
		return nil, nil, fmt.Errorf("script %s: %w", script, err)
	}
	return src, a.store, nil
}

func (a *app) callArgs() ([]luabind.Value, error) {
	if runArgs == "" {
		return nil, nil
	}
	raw, err := cli.LoadCallArgs(runArgs)
	if err != nil {
		return nil, err
	}
	vals := make([]luabind.Value, len(raw))
	for i, x := range raw {
		if vals[i], err = luabind.FromGo(x); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
	}
	return vals, nil
}

func init() {
	runCmd.Flags().StringVar(&runCall, "call", "", "function to call after loading (dotted paths allowed)")
	runCmd.Flags().StringVar(&runArgs, "args", "", "YAML or JSON file with the call arguments")
	runCmd.Flags().IntVar(&runNret, "nret", -1, "number of results to keep (-1 keeps all)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "yaml", "output format: yaml, json, raw")
	rootCmd.AddCommand(runCmd)
}
