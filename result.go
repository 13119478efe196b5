package meta

import (
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
)

// Fixed report constants; stable so that a serialized result can be
// embedded alongside other pipeline-phase results.
const (
	FailedTitle   = "JSON Schema validation failed"
	FailedTypeURI = "https://osbuild.org/validation-error"
)

// ValidationResult is the outcome of one validation run: a
// deduplicating set of ValidationErrors. A result is valid exactly
// when it holds no errors. Iteration via Errors always yields
// ascending (identity, message) order regardless of insertion order.
//
// Stored errors may still be rebased after they were added, e.g. by
// Fail-then-Rebase call sites, so identity is judged whenever the set
// is observed, not when an error is inserted.
type ValidationResult struct {
	// Origin optionally labels the entity the result belongs to,
	// e.g. the schema or module name.
	Origin string

	errors []*ValidationError
}

// NewResult returns an empty, valid result labeled with origin.
func NewResult(origin string) *ValidationResult {
	return &ValidationResult{Origin: origin}
}

// Fail creates a new error with msg as message and an empty path,
// stores it and returns it so the caller can adjust the path.
func (r *ValidationResult) Fail(msg string) *ValidationError {
	err := NewValidationError(msg)
	r.Add(err)
	return err
}

// Add stores err; two logical errors with the same identity and
// message count as one when the result is observed, so adding the
// same error twice is a no-op. Returns the result for chaining.
func (r *ValidationResult) Add(err *ValidationError) *ValidationResult {
	r.errors = append(r.errors, err)
	return r
}

// Merge copies every error of other into r, prepending prefix to each
// copy's path. The originals in other are left untouched.
func (r *ValidationResult) Merge(other *ValidationResult, prefix ...PathSegment) {
	for _, err := range other.Errors() {
		c := err.clone()
		c.Rebase(prefix...)
		r.Add(c)
	}
}

// Valid reports whether the result holds zero errors.
func (r *ValidationResult) Valid() bool { return r.Len() == 0 }

// Len returns the number of distinct errors.
func (r *ValidationResult) Len() int { return len(r.Errors()) }

// Errors returns the distinct errors sorted ascending by (identity,
// message). Deduplication happens here, against the current identity
// of every stored error.
func (r *ValidationResult) Errors() []*ValidationError {
	errs := make([]*ValidationError, len(r.errors))
	copy(errs, r.errors)
	sort.Slice(errs, func(i, j int) bool { return errs[i].less(errs[j]) })

	distinct := errs[:0]
	for i, e := range errs {
		if i > 0 {
			prev := distinct[len(distinct)-1]
			if prev.ID() == e.ID() && prev.Message == e.Message {
				continue
			}
		}
		distinct = append(distinct, e)
	}
	return distinct
}

// ByID returns all errors whose identity equals id. ok is false when
// no error matches; a missing identity is an expected outcome, not a
// failure.
func (r *ValidationResult) ByID(id string) (matches []*ValidationError, ok bool) {
	for _, e := range r.Errors() {
		if e.ID() == id {
			matches = append(matches, e)
		}
	}
	return matches, len(matches) > 0
}

// AsMap represents the result as a generic map. A valid result is the
// empty map; otherwise the map carries the fixed `type` URI and
// `title`, `success: false` and the serialized error list.
func (r *ValidationResult) AsMap() map[string]any {
	errors := r.Errors()
	if len(errors) == 0 {
		return map[string]any{}
	}
	errs := make([]any, 0, len(errors))
	for _, e := range errors {
		path := make([]any, 0, len(e.Path))
		for _, p := range e.Path {
			if p.IsIndex() {
				path = append(path, p.Int())
			} else {
				path = append(path, p.Name())
			}
		}
		errs = append(errs, map[string]any{
			"message": e.Message,
			"path":    path,
		})
	}
	return map[string]any{
		"type":    FailedTypeURI,
		"title":   FailedTitle,
		"success": false,
		"errors":  errs,
	}
}

func (r *ValidationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.AsMap())
}

func (r *ValidationResult) String() string {
	return fmt.Sprintf("ValidationResult: %d error(s)", r.Len())
}
