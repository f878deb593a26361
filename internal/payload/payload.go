// Package payload encodes and decodes the task list exchanged with a
// peripheral.
//
// The wire format is the UTF-8 encoding of a JSON array:
//
//	[{"title":"Buy milk","completed":false},{"title":"Walk dog","completed":true}]
//
// There is no length prefix and no chunking; the whole array must fit in a
// single characteristic value. A missing "completed" field decodes as false
// and unknown fields are ignored.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nibzard/tasksync/internal/todo"
)

// ErrMalformed is matched by every decode failure.
var ErrMalformed = errors.New("malformed payload")

// ValidationError represents a payload problem at a location.
type ValidationError struct {
	Path string // location such as "[1].title"; empty for the whole payload
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DecodeError collects every problem found in a payload.
type DecodeError struct {
	Errors []error
}

func (e *DecodeError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ErrMalformed.Error()
	case 1:
		return fmt.Sprintf("%s: %s", ErrMalformed, e.Errors[0])
	default:
		return fmt.Sprintf("%s: %s (and %d more)", ErrMalformed, e.Errors[0], len(e.Errors)-1)
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *DecodeError) Unwrap() []error {
	return e.Errors
}

// Is reports whether target is ErrMalformed.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformed
}

// utf8BOM is dropped from the start of a payload before parsing.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type wireTask struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Encode serializes tasks to the wire format. A nil or empty sequence
// encodes as "[]".
func Encode(tasks []todo.Task) ([]byte, error) {
	if err := todo.ValidateAll(tasks); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	wire := make([]wireTask, len(tasks))
	for i, task := range tasks {
		wire[i] = wireTask{Title: task.Title, Completed: task.Completed}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses and validates data with the embedded schema.
func Decode(data []byte) ([]todo.Task, error) {
	return defaultValidator.Decode(data)
}

// Decode parses data and validates it against the validator's schema and
// the structural rules. Nothing is returned unless the whole payload is valid.
func (v *Validator) Decode(data []byte) ([]todo.Task, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, &DecodeError{Errors: []error{
			&ValidationError{Err: errors.New("payload is not valid UTF-8")},
		}}
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DecodeError{Errors: []error{
			&ValidationError{Err: fmt.Errorf("parse payload: %w", err)},
		}}
	}

	var errs []error
	if v != nil && v.schema != nil {
		errs = append(errs, v.validateSchema(doc)...)
	}
	if len(errs) == 0 {
		errs = append(errs, validateMinimal(doc)...)
	}
	if len(errs) > 0 {
		return nil, &DecodeError{Errors: errs}
	}

	items := doc.([]interface{})
	tasks := make([]todo.Task, len(items))
	for i, item := range items {
		obj := item.(map[string]interface{})
		tasks[i].Title = obj["title"].(string)
		if completed, ok := obj["completed"].(bool); ok {
			tasks[i].Completed = completed
		}
	}
	return tasks, nil
}

// validateMinimal applies the rules every payload must meet regardless of
// the configured schema.
func validateMinimal(doc interface{}) []error {
	items, ok := doc.([]interface{})
	if !ok {
		return []error{&ValidationError{
			Err: fmt.Errorf("expected array, got %s", jsonType(doc)),
		}}
	}

	var errs []error
	for i, item := range items {
		path := fmt.Sprintf("[%d]", i)
		obj, ok := item.(map[string]interface{})
		if !ok {
			errs = append(errs, &ValidationError{
				Path: path,
				Err:  fmt.Errorf("expected object, got %s", jsonType(item)),
			})
			continue
		}

		rawTitle, ok := obj["title"]
		if !ok {
			errs = append(errs, &ValidationError{
				Path: path + ".title",
				Err:  errors.New("missing required field"),
			})
		} else if title, ok := rawTitle.(string); !ok {
			errs = append(errs, &ValidationError{
				Path: path + ".title",
				Err:  fmt.Errorf("expected string, got %s", jsonType(rawTitle)),
			})
		} else if strings.TrimSpace(title) == "" {
			errs = append(errs, &ValidationError{
				Path: path + ".title",
				Err:  todo.ErrEmptyTitle,
			})
		}

		if rawCompleted, ok := obj["completed"]; ok {
			if _, ok := rawCompleted.(bool); !ok {
				errs = append(errs, &ValidationError{
					Path: path + ".completed",
					Err:  fmt.Errorf("expected boolean, got %s", jsonType(rawCompleted)),
				})
			}
		}
	}
	return errs
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
