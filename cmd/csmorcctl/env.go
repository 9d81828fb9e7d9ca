package main

import (
	"flag"
	"fmt"

	"github.com/cosmotech/csm-orc/orchestrator"
)

func runShowEnv(args []string) error {
	fs := flag.NewFlagSet("show-env", flag.ExitOnError)
	yamlFile := fs.Bool("yaml", false, "Parse the pipeline file as YAML instead of JSON")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: csmorcctl show-env [options] <pipeline-file>\n\nList every environment variable a pipeline file declares.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("pipeline file path is required")
	}

	out, err := orchestrator.DisplayEnvironment(fs.Arg(0), orchestrator.Options{YAML: *yamlFile})
	if err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	fmt.Print(out)
	return nil
}

func runGenEnv(args []string) error {
	fs := flag.NewFlagSet("gen-env", flag.ExitOnError)
	yamlFile := fs.Bool("yaml", false, "Parse the pipeline file as YAML instead of JSON")
	out := fs.String("out", ".env", "Path to write the generated dotenv file to")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: csmorcctl gen-env [options] <pipeline-file>\n\nWrite a dotenv template for a pipeline file's declared environment.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("pipeline file path is required")
	}

	if err := orchestrator.GenerateEnvFile(fs.Arg(0), *out, orchestrator.Options{YAML: *yamlFile}); err != nil {
		return fmt.Errorf("writing env file: %w", err)
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}
