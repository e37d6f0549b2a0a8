package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/luabind/cmd/luabind/internal/build"
	"github.com/haivivi/luabind/cmd/luabind/internal/config"
	"github.com/haivivi/luabind/pkg/cli"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionFormat != "" {
			format, err := cli.ParseFormat(versionFormat)
			if err != nil {
				return err
			}
			return cli.Output(build.Current(), cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, build.String())
		if verbose {
			info := build.Current()
			fmt.Fprintf(out, "  go:     %s\n", info.Go)
			if path, err := config.DefaultPath(); err == nil {
				fmt.Fprintf(out, "  config: %s\n", path)
			} else {
				fmt.Fprintf(out, "  config: (unavailable: %v)\n", err)
			}
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "", "output format: yaml, json")
	rootCmd.AddCommand(versionCmd)
}
