// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package schema derives JSON Schemas from Go types and validates JSON and
// YAML documents against them.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// CodeInvalid is the error code for documents that fail validation.
const CodeInvalid = "SCHEMA_VALIDATION_FAILED"

var printer = message.NewPrinter(language.English)

// Option configures a Validator.
type Option func(*Validator)

// WithTitle sets the schema title and description.
func WithTitle(title, description string) Option {
	return func(v *Validator) {
		v.title = title
		v.description = description
	}
}

// WithID sets the schema $id.
func WithID(id string) Option {
	return func(v *Validator) {
		v.id = id
	}
}

// Strict rejects properties the Go type does not declare.
func Strict() Option {
	return func(v *Validator) {
		v.strict = true
	}
}

// Validator validates documents against the schema reflected from a Go type.
// The schema is compiled once on first use.
type Validator struct {
	model       any
	id          string
	title       string
	description string
	strict      bool

	once     sync.Once
	compiled *jschema.Schema
	err      error
}

// New returns a Validator for the type of model, typically a pointer to a
// zero struct. Fields without omitempty are required.
func New(model any, opts ...Option) *Validator {
	v := &Validator{model: model}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Generate returns the indented JSON Schema document.
func (v *Validator) Generate() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: !v.strict,
	}
	s := r.Reflect(v.model)
	if v.id != "" {
		s.ID = jsonschema.ID(v.id)
	}
	s.Title = v.title
	s.Description = v.description

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

func (v *Validator) schema() (*jschema.Schema, error) {
	v.once.Do(func() {
		data, err := v.Generate()
		if err != nil {
			v.err = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			v.err = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		c.AssertFormat()
		if err := c.AddResource("schema.json", doc); err != nil {
			v.err = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
			return
		}
		v.compiled, err = c.Compile("schema.json")
		if err != nil {
			v.err = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
		}
	})
	return v.compiled, v.err
}

// Validate checks an already-decoded document (maps, slices and scalars).
func (v *Validator) Validate(doc any) error {
	s, err := v.schema()
	if err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return invalid(err)
	}
	return nil
}

// ValidateJSON decodes data as JSON and validates it.
func (v *Validator) ValidateJSON(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return oops.Code(CodeInvalid).With("violations", []string{"document is empty"}).Errorf("document is empty")
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return oops.Code(CodeInvalid).With("violations", []string{err.Error()}).Errorf("invalid JSON")
	}
	return v.Validate(doc)
}

// ValidateYAML decodes data as YAML and validates it.
func (v *Validator) ValidateYAML(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return oops.Code(CodeInvalid).With("violations", []string{"document is empty"}).Errorf("document is empty")
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code(CodeInvalid).With("violations", []string{err.Error()}).Errorf("invalid YAML")
	}
	return v.Validate(toJSONTypes(doc))
}

// Violations returns the individual problems recorded on a validation error.
func Violations(err error) []string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	list, _ := oopsErr.Context()["violations"].([]string)
	return list
}

func invalid(err error) error {
	var verr *jschema.ValidationError
	if !errors.As(err, &verr) {
		return oops.Code(CodeInvalid).Wrap(err)
	}
	violations := leaves(verr, nil)
	return oops.Code(CodeInvalid).
		With("violations", violations).
		Errorf("%s", strings.Join(violations, "; "))
}

// leaves flattens the cause tree into "location: message" lines.
func leaves(e *jschema.ValidationError, out []string) []string {
	if len(e.Causes) == 0 {
		loc := "/" + strings.Join(e.InstanceLocation, "/")
		return append(out, loc+": "+e.ErrorKind.LocalizedString(printer))
	}
	for _, c := range e.Causes {
		out = leaves(c, out)
	}
	return out
}

// toJSONTypes converts YAML-decoded values into the types the JSON schema
// validator accepts.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = toJSONTypes(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = toJSONTypes(item)
		}
		return result
	case string, int, int64, float64, bool, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var result any
			if err := json.Unmarshal(b, &result); err == nil {
				return result
			}
		}
		return val
	}
}
