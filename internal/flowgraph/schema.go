package flowgraph

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://ivr-designer.local/schema/nodes.schema.json"

//go:embed nodes.schema.json
var schemaJSON []byte

var (
	once    sync.Once
	schema  *jsonschema.Schema
	loadErr error
)

func load() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		loadErr = err
		return
	}
	schema, loadErr = c.Compile(schemaURL)
}

// ValidateDocument checks a submitted node array against the node-set
// schema. The error names the first offending location.
func ValidateDocument(raw json.RawMessage) error {
	once.Do(load)
	if loadErr != nil {
		return fmt.Errorf("load node schema: %w", loadErr)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("nodes: %w", err)
	}

	err := schema.Validate(doc)
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		return fmt.Errorf("nodes%s: %s", leaf.InstanceLocation, leaf.Message)
	}
	return err
}
