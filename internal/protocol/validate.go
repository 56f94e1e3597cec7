package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"slidebounty.ai/schemas"
)

// CompileSchema compiles one of the embedded message schemas.
func CompileSchema(name string) (*jsonschema.Schema, error) {
	f, err := schemas.FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	url := "mem:///schemas/" + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, f); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return c.Compile(url)
}

// ValidateRaw checks a raw JSON message against s.
func ValidateRaw(s *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
