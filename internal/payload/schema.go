package payload

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed tasks.schema.json
var embeddedSchema []byte

// EmbeddedSchemaURL is the resource name of the built-in schema.
const EmbeddedSchemaURL = "tasks.schema.json"

var defaultValidator = mustEmbeddedValidator()

// Validator checks decoded payloads against a JSON Schema.
type Validator struct {
	schema *jsonschema.Schema
	source string
}

// Source returns where the schema was loaded from.
func (v *Validator) Source() string {
	if v == nil {
		return ""
	}
	return v.source
}

// EmbeddedSchema returns a copy of the built-in schema document.
func EmbeddedSchema() []byte {
	out := make([]byte, len(embeddedSchema))
	copy(out, embeddedSchema)
	return out
}

// DefaultValidator returns the validator built from the embedded schema.
func DefaultValidator() *Validator {
	return defaultValidator
}

// LoadValidator compiles the schema at schemaPath. An empty path selects the
// embedded schema. If the file is missing or does not compile, the embedded
// schema is used and the problem is returned as a warning.
func LoadValidator(schemaPath string) (*Validator, []string) {
	if schemaPath == "" {
		return defaultValidator, nil
	}

	absPath, err := filepath.Abs(schemaPath)
	if err != nil {
		return defaultValidator, []string{fmt.Sprintf("invalid schema path: %v", err)}
	}

	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return defaultValidator, []string{fmt.Sprintf("schema file not found: %s", absPath)}
		}
		return defaultValidator, []string{fmt.Sprintf("failed to read schema file: %v", err)}
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	schema, err := compiler.Compile(absPath)
	if err != nil {
		return defaultValidator, []string{fmt.Sprintf("invalid schema file: %v", err)}
	}

	return &Validator{schema: schema, source: absPath}, nil
}

func mustEmbeddedValidator() *Validator {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(EmbeddedSchemaURL, bytes.NewReader(embeddedSchema)); err != nil {
		panic(fmt.Sprintf("payload: add embedded schema: %v", err))
	}
	schema, err := compiler.Compile(EmbeddedSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("payload: compile embedded schema: %v", err))
	}
	return &Validator{schema: schema, source: "embedded"}
}

func (v *Validator) validateSchema(doc interface{}) []error {
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []error{err}
	}

	var errs []error
	collectSchemaErrors(&errs, ve)
	return errs
}

func collectSchemaErrors(errs *[]error, err *jsonschema.ValidationError) {
	if err == nil {
		return
	}

	if len(err.Causes) == 0 {
		*errs = append(*errs, &ValidationError{
			Path: jsonPointerToPath(err.InstanceLocation),
			Err:  fmt.Errorf("%s", err.Message),
		})
		return
	}

	for _, cause := range err.Causes {
		collectSchemaErrors(errs, cause)
	}
}

// jsonPointerToPath turns "/1/title" into "[1].title".
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	var path string
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			path += fmt.Sprintf("[%d]", idx)
			continue
		}
		if path == "" {
			path = part
		} else {
			path += "." + part
		}
	}
	return path
}
