package scorer

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed outcome.schema.json
var outcomeSchemaJSON string

const outcomeSchemaURL = "outcome.schema.json"

// compileOutcomeSchema builds the validator applied to raw worker output.
func compileOutcomeSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(outcomeSchemaURL, strings.NewReader(outcomeSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add outcome schema: %w", err)
	}
	schema, err := compiler.Compile(outcomeSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile outcome schema: %w", err)
	}
	return schema, nil
}
