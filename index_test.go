package meta_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/osbuild/meta"
	_ "github.com/osbuild/meta/formats"
)

func TestIndex_GetModuleInfoCachesAbsence(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "stages"), 0o755); err != nil {
		t.Fatal(err)
	}

	ix := meta.NewIndex(root)
	info, err := ix.GetModuleInfo(meta.ClassStage, "x")
	if err != nil || info != nil {
		t.Fatalf("expected absent module, got %v, %v", info, err)
	}

	// the absence is cached: even after the file appears, the same
	// index keeps serving the memoized answer
	writeModule(t, root, "stages", "x", stageSource)
	info, err = ix.GetModuleInfo(meta.ClassStage, "x")
	if err != nil || info != nil {
		t.Fatalf("second lookup must come from the cache, got %v, %v", info, err)
	}

	// a fresh index over the same root sees the module
	info, err = meta.NewIndex(root).GetModuleInfo(meta.ClassStage, "x")
	if err != nil || info == nil {
		t.Fatalf("fresh index must probe again, got %v, %v", info, err)
	}
}

func TestIndex_GetModuleInfoCachesHits(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "stages", "org.osbuild.x", stageSource)

	ix := meta.NewIndex(root)
	first, err := ix.GetModuleInfo(meta.ClassStage, "org.osbuild.x")
	if err != nil {
		t.Fatal(err)
	}
	second, err := ix.GetModuleInfo(meta.ClassStage, "org.osbuild.x")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("repeated lookups must return the same cached object")
	}
}

func TestIndex_GetSchemaManifestMissing(t *testing.T) {
	ix := meta.NewIndex(t.TempDir())

	schema, err := ix.GetSchema(meta.ClassManifest, "")
	if err != nil {
		t.Fatalf("a missing manifest schema file is not an error, got %v", err)
	}
	if schema.Valid() {
		t.Fatalf("schema without data must be falsy")
	}

	res := schema.Validate(map[string]any{"version": "1"})
	if res.Len() != 1 || res.Errors()[0].Message != "missing schema information" {
		t.Fatalf("unexpected result: %v", res.Errors())
	}
}

func TestIndex_GetSchemaManifest(t *testing.T) {
	root := t.TempDir()
	writeManifestSchema(t, root, `{
		"type": "object",
		"additionalProperties": false,
		"properties": { "pipeline": { "type": "object" } }
	}`)

	ix := meta.NewIndex(root)
	schema, err := ix.GetSchema(meta.ClassManifest, "")
	if err != nil {
		t.Fatal(err)
	}
	if !schema.Valid() {
		t.Fatalf("expected valid schema: %v", schema.Check().Errors())
	}
	if res := schema.Validate(map[string]any{"bogus": 1}); res.Valid() {
		t.Fatalf("manifest schema not applied")
	}

	again, err := ix.GetSchema(meta.ClassManifest, "")
	if err != nil {
		t.Fatal(err)
	}
	if schema != again {
		t.Fatalf("schemas must be cached per (class, name)")
	}
}

func TestIndex_GetSchemaModule(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "stages", "org.osbuild.x", stageSource)

	ix := meta.NewIndex(root)
	schema, err := ix.GetSchema(meta.ClassStage, "org.osbuild.x")
	if err != nil {
		t.Fatal(err)
	}
	res := schema.Validate(map[string]any{"name": "wrong-name"})
	if res.Valid() {
		t.Fatalf("name enum constraint not applied")
	}

	// unknown module: falsy schema, not an error
	schema, err = ix.GetSchema(meta.ClassStage, "org.osbuild.nope")
	if err != nil {
		t.Fatal(err)
	}
	if schema.Valid() {
		t.Fatalf("schema of an unknown module must be falsy")
	}
}

func TestIndex_GetSchemaUnknownClass(t *testing.T) {
	ix := meta.NewIndex(t.TempDir())
	_, err := ix.GetSchema(meta.ModuleClass(42), "")
	if !errors.Is(err, meta.ErrUnsupportedClass) {
		t.Fatalf("expected ErrUnsupportedClass, got %v", err)
	}
}

func TestIndex_ListModulesForClass(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "stages", "org.osbuild.a", stageSource)
	writeModule(t, root, "stages", "org.osbuild.b", stageSource)
	// directories are not modules
	if err := os.MkdirAll(filepath.Join(root, "stages", "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	ix := meta.NewIndex(root)
	modules, err := ix.ListModulesForClass(meta.ClassStage)
	if err != nil {
		t.Fatal(err)
	}
	if len(modules) != 2 {
		t.Fatalf("expected 2 modules, got %v", modules)
	}

	if _, err := ix.ListModulesForClass(meta.ClassManifest); !errors.Is(err, meta.ErrUnsupportedClass) {
		t.Fatalf("expected ErrUnsupportedClass, got %v", err)
	}
}

func TestIndex_DetectFormatInfo(t *testing.T) {
	ix := meta.NewIndex(t.TempDir())

	info, err := ix.DetectFormatInfo(map[string]any{"version": "2"})
	if err != nil {
		t.Fatal(err)
	}
	if info == nil || info.Version != "2" {
		t.Fatalf("expected the version 2 handler, got %v", info)
	}

	// no version field defaults to "1"
	info, err = ix.DetectFormatInfo(map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if info == nil || info.Version != "1" {
		t.Fatalf("expected the version 1 handler, got %v", info)
	}

	info, err = ix.DetectFormatInfo(map[string]any{"version": "9"})
	if err != nil {
		t.Fatal(err)
	}
	if info != nil {
		t.Fatalf("unknown version must detect nothing, got %v", info)
	}

	// an unquoted `version: 2` in a YAML manifest arrives as a
	// number; that matches no handler instead of defaulting to "1"
	info, err = ix.DetectFormatInfo(map[string]any{"version": float64(2)})
	if err != nil {
		t.Fatal(err)
	}
	if info != nil {
		t.Fatalf("non-string version must detect nothing, got %v", info)
	}
}

func TestIndex_GetFormatInfoMemoized(t *testing.T) {
	ix := meta.NewIndex(t.TempDir())

	first, err := ix.GetFormatInfo("osbuild.formats.v1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := ix.GetFormatInfo("osbuild.formats.v1")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("format info must be memoized")
	}

	if _, err := ix.GetFormatInfo("osbuild.formats.nope"); err == nil {
		t.Fatalf("unresolvable format must fail to load")
	}
}

func writeManifestSchema(t *testing.T, root, schema string) {
	t.Helper()
	dir := filepath.Join(root, "schemas")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "osbuild1.json"), []byte(schema), 0o644); err != nil {
		t.Fatal(err)
	}
}
