package meta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/osbuild/meta/internal/modfile"
)

// ErrUnsupportedClass indicates an operation was asked about a module
// class it does not support. This is a programming error, not a
// property of user-supplied data, and is therefore returned as an
// error instead of a result entry.
var ErrUnsupportedClass = errors.New("unsupported module class")

// ModuleClass enumerates the categories of pluggable pipeline modules
// plus the manifest document itself. Every schema-related operation
// dispatches exhaustively over it.
type ModuleClass int

const (
	ClassAssembler ModuleClass = iota
	ClassInput
	ClassSource
	ClassStage
	ClassManifest
)

// ParseModuleClass maps a class name like "Stage" to its ModuleClass.
func ParseModuleClass(name string) (ModuleClass, bool) {
	switch name {
	case "Assembler":
		return ClassAssembler, true
	case "Input":
		return ClassInput, true
	case "Source":
		return ClassSource, true
	case "Stage":
		return ClassStage, true
	case "Manifest":
		return ClassManifest, true
	}
	return 0, false
}

func (c ModuleClass) String() string {
	switch c {
	case ClassAssembler:
		return "Assembler"
	case ClassInput:
		return "Input"
	case ClassSource:
		return "Source"
	case ClassStage:
		return "Stage"
	case ClassManifest:
		return "Manifest"
	}
	return fmt.Sprintf("ModuleClass(%d)", int(c))
}

// directory returns the subdirectory holding the definition files of
// the class. The manifest is not an on-disk module and has none.
func (c ModuleClass) directory() (string, bool) {
	switch c {
	case ClassAssembler:
		return "assemblers", true
	case ClassInput:
		return "inputs", true
	case ClassSource:
		return "sources", true
	case ClassStage:
		return "stages", true
	}
	return "", false
}

// wrapsOptions reports whether synthesized schemas of the class wrap
// the option fragment in a name/options envelope.
func (c ModuleClass) wrapsOptions() bool {
	return c == ClassStage || c == ClassAssembler
}

// ModuleInfo is the statically extracted meta information about one
// pipeline module: its short description Desc, the longer Info text
// and the declared option schema fragment Opts. ModuleInfo does not
// cache itself; the Index does.
type ModuleInfo struct {
	Class ModuleClass
	Name  string
	Path  string

	Desc string
	Info string
	Opts map[string]any
}

// LoadModuleInfo statically reads the definition file of the module
// name of class klass below root. It returns (nil, nil) when no such
// file exists; a missing module is an expected outcome. The file is
// never executed, only its metadata block is read.
func LoadModuleInfo(root string, klass ModuleClass, name string) (*ModuleInfo, error) {
	dir, ok := klass.directory()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedClass, klass)
	}

	path := filepath.Join(root, dir, name)
	block, err := modfile.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("module %s/%s: %w", dir, name, err)
	}

	if block.Docstring == "" {
		return nil, fmt.Errorf("module %s/%s: missing documentation block", dir, name)
	}
	doc := strings.SplitN(block.Docstring, "\n", 2)

	// The fragment is raw schema-keyword text without enclosing
	// braces; an absent fragment yields the empty object.
	var opts map[string]any
	fragment := block.Constants["SCHEMA"]
	if err := json.Unmarshal([]byte("{"+fragment+"}"), &opts); err != nil {
		return nil, fmt.Errorf("module %s/%s: malformed schema fragment: %w", dir, name, err)
	}

	info := &ModuleInfo{
		Class: klass,
		Name:  name,
		Path:  path,
		Desc:  doc[0],
		Opts:  opts,
	}
	if len(doc) > 1 {
		info.Info = doc[1]
	}
	return info, nil
}

// GetSchema synthesizes the full schema for the module.
//
// Stages and assemblers are wrapped in an envelope requiring `name`,
// constrained to the module's own name, with the option fragment as
// the `options` object schema. Inputs and sources use the fragment
// directly as the schema body. A `definitions` node of the fragment is
// hoisted to the top level of the synthesized schema: the fragments
// are written as if they were the root node and so are the references
// within them.
func (mi *ModuleInfo) GetSchema() map[string]any {
	schema := map[string]any{
		"title":                fmt.Sprintf("Pipeline %s", mi.Class),
		"type":                 "object",
		"additionalProperties": false,
	}

	if mi.Class.wrapsOptions() {
		options := map[string]any{"type": "object"}
		for k, v := range mi.Opts {
			if k != "definitions" {
				options[k] = v
			}
		}
		schema["properties"] = map[string]any{
			"name":    map[string]any{"enum": []any{mi.Name}},
			"options": options,
		}
		schema["required"] = []any{"name"}
	} else {
		for k, v := range mi.Opts {
			schema[k] = v
		}
	}

	if definitions, ok := mi.Opts["definitions"]; ok {
		schema["definitions"] = definitions
	}

	return schema
}
