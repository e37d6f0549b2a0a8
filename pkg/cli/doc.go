// Package cli holds the terminal plumbing shared by the luabind commands:
// result output (YAML, JSON, raw), argument files, a styled console for
// lesson text, and the per-user config location.
//
//	con := cli.NewConsole(os.Stdout, os.Stderr)
//	con.Heading("functions")
//	con.Result("add(3, 4)", 7)
//
//	cli.Output(results, cli.OutputOptions{Format: cli.FormatJSON})
package cli
