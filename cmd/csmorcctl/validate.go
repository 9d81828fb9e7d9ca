package main

import (
	"flag"
	"fmt"

	"github.com/cosmotech/csm-orc/orchestrator"
)

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	yamlFile := fs.Bool("yaml", false, "Parse the pipeline file as YAML instead of JSON")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: csmorcctl validate [options] <pipeline-file>\n\nValidate a pipeline file without running it.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("pipeline file path is required")
	}

	opts := orchestrator.Options{
		Logger: newLogger(*logLevel),
		YAML:   *yamlFile,
	}
	if !orchestrator.Validate(fs.Arg(0), opts) {
		return fmt.Errorf("pipeline file is invalid")
	}
	fmt.Println("ok")
	return nil
}
