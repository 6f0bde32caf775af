package backend

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"manualsmap/internal/domain/entities"
)

// ValidationError lists why a car submission was rejected before it was sent.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid car submission: " + strings.Join(e.Problems, "; ")
}

// licenseStates are the accepted licenseState values. "ZR" is carried over
// from the backend's own list so that both sides agree.
var licenseStates = []string{
	"AL", "AK", "AZ", "ZR", "CA", "CO", "CT", "DE", "FL", "GA", "HI", "ID", "IL",
	"IN", "IA", "KS", "KY", "LA", "ME", "MD", "MA", "MI", "MN", "MS", "MO", "MT",
	"NE", "NV", "NH", "NJ", "NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI",
	"SC", "SD", "TN", "TX", "UT", "VT", "VA", "WA", "DC", "WV", "WI", "WY",
}

// LicenseStates returns the accepted licenseState values.
func LicenseStates() []string {
	return append([]string(nil), licenseStates...)
}

// DefaultCarSchema is the POST /cars schema used when the backend does not
// publish one.
func DefaultCarSchema() map[string]any {
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]any{
			"year":               map[string]any{"type": "number", "minimum": 1900, "maximum": 2100},
			"brand":              map[string]any{"type": "string", "minLength": 2},
			"model":              map[string]any{"type": "string", "minLength": 1},
			"trim":               map[string]any{"type": "string"},
			"color":              map[string]any{"type": "string"},
			"licenseState":       map[string]any{"type": "string", "enum": licenseStates},
			"licensePlate":       map[string]any{"type": "string", "minLength": 3},
			"latitude":           map[string]any{"type": "number", "minimum": -360, "maximum": 360},
			"longitude":          map[string]any{"type": "number", "minimum": -360, "maximum": 360},
			"recaptcha":          map[string]any{"type": "string"},
			"cloudinaryPublicId": map[string]any{"type": "string"},
		},
		"required": []string{
			"year", "brand", "model", "color", "licenseState",
			"licensePlate", "latitude", "longitude", "recaptcha",
		},
	}
}

// SchemaValidator checks car submissions against a JSON schema so that
// invalid ones never reach the backend.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles the built-in schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	return newSchemaValidator(gojsonschema.NewGoLoader(DefaultCarSchema()))
}

// NewSchemaValidatorFromJSON compiles a schema document.
func NewSchemaValidatorFromJSON(doc []byte) (*SchemaValidator, error) {
	return newSchemaValidator(gojsonschema.NewBytesLoader(doc))
}

// SchemaSource provides the backend's published schema.
type SchemaSource interface {
	CarSchema(ctx context.Context) ([]byte, error)
}

// LoadSchemaValidator compiles the schema published by the backend, falling
// back to the built-in one when it cannot be fetched or compiled.
func LoadSchemaValidator(ctx context.Context, src SchemaSource) (*SchemaValidator, error) {
	doc, err := src.CarSchema(ctx)
	if err == nil {
		v, compileErr := NewSchemaValidatorFromJSON(doc)
		if compileErr == nil {
			return v, nil
		}
		err = compileErr
	}
	log.Printf("[BACKEND] Using built-in car schema: %v", err)
	return NewSchemaValidator()
}

func newSchemaValidator(loader gojsonschema.JSONLoader) (*SchemaValidator, error) {
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("compile car schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate returns a *ValidationError describing every schema violation.
func (v *SchemaValidator) Validate(car entities.CarSubmission) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(car))
	if err != nil {
		return fmt.Errorf("validate car submission: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &ValidationError{Problems: problems}
}
