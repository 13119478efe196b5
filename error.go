package meta

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// PathSegment is one step into a validated document: either an object
// field (string) or an array index (integer). Segments serialize to
// JSON as a string or a number, matching the report wire shape.
type PathSegment struct {
	name    string
	index   int
	indexed bool
}

// Field returns a segment addressing the object member name.
func Field(name string) PathSegment {
	return PathSegment{name: name}
}

// ArrayIndex returns a segment addressing the array element i.
func ArrayIndex(i int) PathSegment {
	return PathSegment{index: i, indexed: true}
}

// IsIndex reports whether the segment addresses an array element.
func (p PathSegment) IsIndex() bool { return p.indexed }

// Name returns the field name; empty for index segments.
func (p PathSegment) Name() string { return p.name }

// Int returns the array index; zero for field segments.
func (p PathSegment) Int() int { return p.index }

// token renders the segment in error-identity form: ".name" for fields
// (single-quoted when the name contains a space) and "[i]" for indexes.
func (p PathSegment) token() string {
	if p.indexed {
		return "[" + strconv.Itoa(p.index) + "]"
	}
	if strings.Contains(p.name, " ") {
		return ".'" + p.name + "'"
	}
	return "." + p.name
}

func (p PathSegment) MarshalJSON() ([]byte, error) {
	if p.indexed {
		return json.Marshal(p.index)
	}
	return json.Marshal(p.name)
}

// ValidationError describes a single failed validation. The Message is
// the human readable reason and Path points at the element of the
// validated document that caused it. Errors compare and sort by
// (identity, message), which makes them usable as set members.
type ValidationError struct {
	Message string
	Path    []PathSegment
}

// NewValidationError returns an error with the given message and an
// empty path, i.e. one that addresses the document root.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// ID returns the canonical identity of the error's path: "." for the
// document root, otherwise the concatenation of the segment tokens.
func (e *ValidationError) ID() string {
	if len(e.Path) == 0 {
		return "."
	}
	var b strings.Builder
	for _, p := range e.Path {
		b.WriteString(p.token())
	}
	return b.String()
}

// Rebase prepends prefix to the error's path. It is used when the
// result of a nested validation, e.g. a module's options, is folded
// into the report of the embedding document.
func (e *ValidationError) Rebase(prefix ...PathSegment) {
	if len(prefix) == 0 {
		return
	}
	path := make([]PathSegment, 0, len(prefix)+len(e.Path))
	path = append(path, prefix...)
	path = append(path, e.Path...)
	e.Path = path
}

// clone returns a deep copy; Merge rebases copies, never the originals.
func (e *ValidationError) clone() *ValidationError {
	c := &ValidationError{Message: e.Message}
	c.Path = append(c.Path, e.Path...)
	return c
}

func (e *ValidationError) less(other *ValidationError) bool {
	a, b := e.ID(), other.ID()
	if a != b {
		return a < b
	}
	return e.Message < other.Message
}

func (e *ValidationError) MarshalJSON() ([]byte, error) {
	path := e.Path
	if path == nil {
		path = []PathSegment{}
	}
	return json.Marshal(map[string]any{
		"message": e.Message,
		"path":    path,
	})
}

func (e *ValidationError) String() string {
	return "ValidationError: " + e.Message + " [" + e.ID() + "]"
}
