package main

import (
	"fmt"
	"os"
)

var commands = map[string]func([]string) error{
	"run":      runRun,
	"validate": runValidate,
	"show-env": runShowEnv,
	"gen-env":  runGenEnv,
}

func usage() {
	fmt.Fprintf(os.Stderr, `csmorcctl - DAG step orchestrator CLI

Usage:
  csmorcctl <command> [options]

Commands:
  run        Run a pipeline file to completion
  validate   Validate a pipeline file without running it
  show-env   List every environment variable a pipeline file declares
  gen-env    Write a dotenv template for a pipeline file's declared environment

Run 'csmorcctl <command> -h' for command-specific help.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err := fn(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
