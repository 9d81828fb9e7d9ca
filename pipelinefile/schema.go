package pipelinefile

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/run_template_schema.json
var schemaDoc []byte

const schemaID = "https://cosmotech.github.io/csm-orc/run_template_schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaDoc))
		if err != nil {
			compileErr = fmt.Errorf("decoding embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaID, doc); err != nil {
			compileErr = fmt.Errorf("registering embedded schema: %w", err)
			return
		}
		sch, err := c.Compile(schemaID)
		if err != nil {
			compileErr = fmt.Errorf("compiling embedded schema: %w", err)
			return
		}
		compiled = sch
	})
	return compiled, compileErr
}

// validateAgainstSchema validates the decoded-to-any representation of a
// pipeline file against the embedded JSON Schema. Validation is mandatory:
// every load path goes through here before any step is constructed.
func validateAgainstSchema(instance any) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	return sch.Validate(instance)
}
