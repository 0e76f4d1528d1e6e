package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

type compiledSchema struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

// Prompt schemas are static per name, so each is compiled on first use and reused.
var compiled sync.Map // schema name -> *compiledSchema

func compile(schemaName string, schema map[string]any) (*jsonschema.Schema, error) {
	v, _ := compiled.LoadOrStore(schemaName, &compiledSchema{})
	cs := v.(*compiledSchema)
	cs.once.Do(func() {
		raw, err := json.Marshal(schema)
		if err != nil {
			cs.err = fmt.Errorf("encode schema %s: %w", schemaName, err)
			return
		}
		url := schemaName + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
			cs.err = fmt.Errorf("add schema resource %s: %w", schemaName, err)
			return
		}
		cs.schema, cs.err = compiler.Compile(url)
		if cs.err != nil {
			cs.err = fmt.Errorf("compile schema %s: %w", schemaName, cs.err)
		}
	})
	return cs.schema, cs.err
}

// Validate checks a model response against the named prompt schema. Violations are reported as
// *tree.SchemaError pointing at the deepest failing instance location.
func Validate(schemaName string, schema map[string]any, value any) error {
	s, err := compile(schemaName, schema)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return &tree.SchemaError{Schema: schemaName, Reason: err.Error()}
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &tree.SchemaError{Schema: schemaName, Reason: err.Error()}
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return &tree.SchemaError{Schema: schemaName, Reason: err.Error()}
		}
		for len(ve.Causes) > 0 {
			ve = ve.Causes[0]
		}
		return &tree.SchemaError{Schema: schemaName, Path: ve.InstanceLocation, Reason: ve.Message}
	}
	return nil
}
