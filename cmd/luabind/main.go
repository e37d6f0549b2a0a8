// Package main is the entry point for the luabind CLI.
//
// Usage:
//
//	luabind [flags] <command> [args]
//
// Commands:
//
//	lessons    - List tutorial lessons
//	lesson     - Run a lesson by name (each lesson is also a command)
//	run        - Run a script with the host builtins and call a function
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/luabind/cmd/luabind/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
