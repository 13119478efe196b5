package meta

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema wraps one JSON Schema document. Data holds the schema itself;
// Name labels the entity the schema belongs to and becomes the origin
// of emitted results.
//
// A Schema may be created without schema data (nil or empty). It then
// represents missing schema information: Check and every Validate call
// fail with a single fixed "missing schema information" error.
//
// Compilation is lazy and cached. Resolving nested references and
// definitions is expensive and a module's schema is stable within a
// session, so the compiled validator is built once on first use.
type Schema struct {
	Data map[string]any
	Name string

	validator *jsonschema.Schema
}

// NewSchema wraps the schema document data. Empty data is the
// terminal "unknown schema" state.
func NewSchema(data map[string]any, name string) *Schema {
	return &Schema{Data: data, Name: name}
}

// Check validates the schema document itself against the Draft 4
// meta-schema. On success the compiled validator is cached; a cached
// validator short-circuits subsequent calls. Meta-schema violations
// become one ValidationError each and no validator is cached.
func (s *Schema) Check() *ValidationResult {
	res := NewResult(s.Name)

	// The validator is assigned if and only if the schema itself
	// passed validation, so its presence short-circuits.
	if s.validator != nil {
		return res
	}

	if len(s.Data) == 0 {
		res.Fail("missing schema information")
		return res
	}

	raw, err := json.Marshal(s.Data)
	if err != nil {
		res.Fail(err.Error())
		return res
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft4
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		res.Fail(err.Error())
		return res
	}

	validator, err := compiler.Compile("schema.json")
	if err != nil {
		var serr *jsonschema.SchemaError
		var verr *jsonschema.ValidationError
		switch {
		case errors.As(err, &verr):
			addViolations(res, verr)
		case errors.As(err, &serr):
			if errors.As(serr.Err, &verr) {
				addViolations(res, verr)
			} else {
				res.Fail(serr.Err.Error())
			}
		default:
			res.Fail(err.Error())
		}
		return res
	}

	s.validator = validator
	return res
}

// Validate checks target against the schema. If the schema information
// itself is missing or malformed the Check result is returned
// unmodified; instances are never validated against a broken schema.
func (s *Schema) Validate(target any) *ValidationResult {
	res := s.Check()
	if !res.Valid() {
		return res
	}

	if err := s.validator.Validate(target); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			addViolations(res, verr)
		} else {
			res.Fail(err.Error())
		}
	}

	return res
}

// Valid reports whether the schema carries well-formed schema data.
func (s *Schema) Valid() bool {
	return s.Check().Valid()
}

// addViolations flattens the violation tree into res. The engine
// reports a hierarchy where inner causes carry the specific messages;
// only the leaves are converted.
func addViolations(res *ValidationResult, verr *jsonschema.ValidationError) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			addViolations(res, cause)
		}
		return
	}

	path := pointerPath(verr.InstanceLocation)

	// The engine aggregates all properties rejected by
	// "additionalProperties": false into one violation addressed at
	// the object. Split it into one error per property, addressed at
	// the property itself.
	if keyword(verr.KeywordLocation) == "additionalProperties" {
		if names := quotedNames(verr.Message); len(names) > 0 {
			for _, name := range names {
				err := NewValidationError("additional properties are not allowed")
				err.Path = append(append([]PathSegment{}, path...), Field(name))
				res.Add(err)
			}
			return
		}
	}

	err := NewValidationError(verr.Message)
	err.Path = path
	res.Add(err)
}

// pointerPath converts a JSON pointer into path segments. Segments
// that parse as non-negative integers address array elements.
func pointerPath(pointer string) []PathSegment {
	var path []PathSegment
	for _, part := range strings.Split(pointer, "/") {
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if i, err := strconv.Atoi(part); err == nil && i >= 0 {
			path = append(path, ArrayIndex(i))
		} else {
			path = append(path, Field(part))
		}
	}
	return path
}

func keyword(keywordLocation string) string {
	i := strings.LastIndexByte(keywordLocation, '/')
	return keywordLocation[i+1:]
}

// quotedNames extracts the quoted property names from an aggregated
// additionalProperties message.
func quotedNames(msg string) []string {
	var names []string
	for {
		start := strings.IndexAny(msg, `'"`)
		if start < 0 {
			return names
		}
		quote := msg[start]
		msg = msg[start+1:]
		end := strings.IndexByte(msg, quote)
		if end < 0 {
			return names
		}
		names = append(names, msg[:end])
		msg = msg[end+1:]
	}
}
