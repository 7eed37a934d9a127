package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cubelife/internal/model"
)

//go:embed state.schema.json
var stateSchemaSource string

var ErrSchemaViolation = errors.New("state document violates schema")

var (
	stateSchemaOnce sync.Once
	stateSchema     *jsonschema.Schema
	stateSchemaErr  error
)

func compiledStateSchema() (*jsonschema.Schema, error) {
	stateSchemaOnce.Do(func() {
		stateSchema, stateSchemaErr = jsonschema.CompileString("state.schema.json", stateSchemaSource)
	})
	return stateSchema, stateSchemaErr
}

func EncodeState(doc model.StateDocument) ([]byte, error) {
	return json.Marshal(doc)
}

// DecodeState validates data against the state schema, then checks the
// document version before decoding it.
func DecodeState(data []byte) (model.StateDocument, error) {
	if err := ValidateState(data); err != nil {
		return model.StateDocument{}, err
	}
	var doc model.StateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.StateDocument{}, err
	}
	if err := model.CheckStateVersion(doc.Version); err != nil {
		return model.StateDocument{}, err
	}
	return doc, nil
}

func ValidateState(data []byte) error {
	schema, err := compiledStateSchema()
	if err != nil {
		return fmt.Errorf("compile state schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if err := schema.Validate(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}
