package meta_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/osbuild/meta"
)

// writeModule drops a module definition file into the class directory
// below root.
func writeModule(t *testing.T, root, dir, name, source string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, dir, name), []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
}

const stageSource = `#!/usr/bin/python3
"""
Do X

Longer text
"""

import sys

SCHEMA = """
"type": "object"
"""

def main():
    pass
`

func TestLoadModuleInfo_Stage(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "stages", "org.osbuild.x", stageSource)

	info, err := meta.LoadModuleInfo(root, meta.ClassStage, "org.osbuild.x")
	if err != nil {
		t.Fatal(err)
	}
	if info == nil {
		t.Fatalf("expected module info")
	}

	if info.Desc != "Do X" {
		t.Fatalf("short description: got %q, want %q", info.Desc, "Do X")
	}
	if strings.TrimSpace(info.Info) != "Longer text" {
		t.Fatalf("long description: got %q", info.Info)
	}
	if info.Opts["type"] != "object" {
		t.Fatalf("option fragment not extracted: %v", info.Opts)
	}

	schema := info.GetSchema()
	props := schema["properties"].(map[string]any)
	name := props["name"].(map[string]any)
	if enum := name["enum"].([]any); len(enum) != 1 || enum[0] != "org.osbuild.x" {
		t.Fatalf("name must be constrained to the module name: %v", enum)
	}
	options := props["options"].(map[string]any)
	if options["type"] != "object" {
		t.Fatalf("options must be an object schema: %v", options)
	}
	if required := schema["required"].([]any); required[0] != "name" {
		t.Fatalf("name must be required: %v", required)
	}
	if schema["additionalProperties"] != false {
		t.Fatalf("envelope must forbid additional properties")
	}
}

func TestLoadModuleInfo_Missing(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "stages"), 0o755); err != nil {
		t.Fatal(err)
	}

	info, err := meta.LoadModuleInfo(root, meta.ClassStage, "org.osbuild.nope")
	if err != nil {
		t.Fatalf("a missing module is not an error, got %v", err)
	}
	if info != nil {
		t.Fatalf("expected absent module info")
	}
}

func TestLoadModuleInfo_UnsupportedClass(t *testing.T) {
	_, err := meta.LoadModuleInfo(t.TempDir(), meta.ClassManifest, "x")
	if err == nil {
		t.Fatalf("manifest is not an on-disk module class")
	}
}

func TestLoadModuleInfo_NoDocumentation(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "stages", "org.osbuild.bare", "import sys\n")

	_, err := meta.LoadModuleInfo(root, meta.ClassStage, "org.osbuild.bare")
	if err == nil {
		t.Fatalf("module without documentation block must fail to load")
	}
}

const sourceSource = `"""
Fetch things

Downloads everything the pipeline references.
"""

SCHEMA = """
"additionalProperties": false,
"definitions": {
  "item": { "type": "string" }
},
"properties": {
  "items": {
    "type": "array",
    "items": { "$ref": "#/definitions/item" }
  }
}
"""
`

func TestGetSchema_DefinitionsHoisted(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "sources", "org.osbuild.files", sourceSource)

	info, err := meta.LoadModuleInfo(root, meta.ClassSource, "org.osbuild.files")
	if err != nil {
		t.Fatal(err)
	}
	schema := info.GetSchema()

	if _, ok := schema["definitions"]; !ok {
		t.Fatalf("definitions must be hoisted to the schema root")
	}
	// sources use the fragment directly, no name/options envelope
	if _, ok := schema["properties"].(map[string]any)["items"]; !ok {
		t.Fatalf("fragment not merged into the schema body: %v", schema)
	}
	if _, ok := schema["required"]; ok {
		t.Fatalf("sources must not require a name member")
	}

	// references resolve against the hoisted definitions
	s := meta.NewSchema(schema, "org.osbuild.files")
	if res := s.Validate(map[string]any{"items": []any{"a"}}); !res.Valid() {
		t.Fatalf("unexpected validation failure: %v", res.Errors())
	}
	if res := s.Validate(map[string]any{"items": []any{1}}); res.Valid() {
		t.Fatalf("reference constraint not applied")
	}
}

const defStageSource = `"""
Defs

Stage with a definitions node.
"""

SCHEMA = """
"additionalProperties": false,
"definitions": {
  "opt": { "type": "boolean" }
},
"properties": {
  "flag": { "$ref": "#/definitions/opt" }
}
"""
`

func TestGetSchema_StageDefinitionsNotNested(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "stages", "org.osbuild.defs", defStageSource)

	info, err := meta.LoadModuleInfo(root, meta.ClassStage, "org.osbuild.defs")
	if err != nil {
		t.Fatal(err)
	}
	schema := info.GetSchema()

	if _, ok := schema["definitions"]; !ok {
		t.Fatalf("definitions must be hoisted to the schema root")
	}
	options := schema["properties"].(map[string]any)["options"].(map[string]any)
	if _, ok := options["definitions"]; ok {
		t.Fatalf("definitions must be removed from the options schema")
	}

	// synthesis must not alias the extracted fragment
	if _, ok := info.Opts["definitions"]; !ok {
		t.Fatalf("synthesis modified the module's option fragment")
	}

	s := meta.NewSchema(schema, "org.osbuild.defs")
	res := s.Validate(map[string]any{
		"name":    "org.osbuild.defs",
		"options": map[string]any{"flag": "not a bool"},
	})
	if res.Valid() {
		t.Fatalf("reference constraint not applied through the envelope")
	}
}

func TestModuleClass_Strings(t *testing.T) {
	for _, name := range []string{"Assembler", "Input", "Source", "Stage", "Manifest"} {
		klass, ok := meta.ParseModuleClass(name)
		if !ok {
			t.Fatalf("failed to parse %q", name)
		}
		if klass.String() != name {
			t.Fatalf("round-trip mismatch: %q != %q", klass.String(), name)
		}
	}
	if _, ok := meta.ParseModuleClass("Pipeline"); ok {
		t.Fatalf("unknown class name must not parse")
	}
}
