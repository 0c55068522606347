// Command stategraph runs, validates and renders YAML graph definitions.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var version = "dev"

// errUsage marks errors that should be followed by the command's usage text.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "run":
		err = runCmd(rest, stdout, stderr)
	case "validate":
		err = validateCmd(rest, stdout, stderr)
	case "render":
		err = renderCmd(rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "stategraph %s\n", version)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printUsage(stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `stategraph - run graph workflows

Usage:
  stategraph <command> [options] <graph.yaml>

Commands:
  run       Execute a graph definition
  validate  Check that a graph definition compiles
  render    Print a graph as Mermaid or PlantUML
  version   Print version information
  help      Show this help message

Examples:
  stategraph run feedback.yaml --input '{"text":"great service"}'
  stategraph run feedback.yaml --mock "positive feedback" --stream
  stategraph render --format plantuml feedback.yaml

Run 'stategraph <command> --help' for more information on a command.
`)
}
