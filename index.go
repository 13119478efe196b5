package meta

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// manifestSchema is the on-disk schema document for whole manifest
// descriptions, relative to the index root.
const manifestSchema = "schemas/osbuild1.json"

type moduleKey struct {
	class ModuleClass
	name  string
}

// Index discovers modules and formats under one root path and hands
// out their meta information and schemas. It is the sole entry point
// for external callers.
//
// All lookups are memoized, including the absence of a module, so
// repeated queries never probe the filesystem twice. The caches never
// invalidate; the root is assumed static for the Index's lifetime and
// a fresh root requires a fresh Index. Like the rest of the package
// the Index is single-threaded; concurrent use without external
// synchronization is undefined.
type Index struct {
	path string

	moduleInfo map[moduleKey]*ModuleInfo
	formatInfo map[string]*FormatInfo
	schemata   map[moduleKey]*Schema
}

// NewIndex returns an Index over the module tree rooted at path.
func NewIndex(path string) *Index {
	return &Index{
		path:       path,
		moduleInfo: map[moduleKey]*ModuleInfo{},
		formatInfo: map[string]*FormatInfo{},
		schemata:   map[moduleKey]*Schema{},
	}
}

// Path returns the root path the Index was created with.
func (ix *Index) Path() string { return ix.path }

// ListFormats lists the fully qualified names of all known manifest
// description formats.
func (ix *Index) ListFormats() []string {
	return listFormatNames()
}

// GetFormatInfo returns the FormatInfo for the format called name.
func (ix *Index) GetFormatInfo(name string) (*FormatInfo, error) {
	if info, ok := ix.formatInfo[name]; ok {
		return info, nil
	}
	info, err := LoadFormatInfo(name)
	if err != nil {
		return nil, err
	}
	ix.formatInfo[name] = info
	return info, nil
}

// DetectFormatInfo returns the info of the first format, in
// enumeration order, whose version matches the `version` field of the
// manifest description data ("1" when absent), or nil when no format
// matches. Which handler wins when several share a version is
// deliberately just the enumeration order, not a cross-host contract.
func (ix *Index) DetectFormatInfo(data map[string]any) (*FormatInfo, error) {
	version := "1"
	if v, ok := data["version"]; ok {
		s, ok := v.(string)
		if !ok {
			// version tags are strings; a non-string value matches
			// no handler rather than falling back to the default
			return nil, nil
		}
		version = s
	}

	for _, name := range ix.ListFormats() {
		info, err := ix.GetFormatInfo(name)
		if err != nil {
			return nil, err
		}
		if info.Version == version {
			return info, nil
		}
	}
	return nil, nil
}

// ListModulesForClass lists all modules of the given class, i.e. the
// regular files in its subdirectory.
func (ix *Index) ListModulesForClass(klass ModuleClass) ([]string, error) {
	dir, ok := klass.directory()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedClass, klass)
	}

	entries, err := os.ReadDir(filepath.Join(ix.path, dir))
	if err != nil {
		return nil, err
	}

	var modules []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			modules = append(modules, entry.Name())
		}
	}
	return modules, nil
}

// GetModuleInfo returns the ModuleInfo for the given module, or nil
// when no such module exists. Both outcomes are cached, so known
// missing modules are not probed for again.
func (ix *Index) GetModuleInfo(klass ModuleClass, name string) (*ModuleInfo, error) {
	key := moduleKey{class: klass, name: name}
	if info, ok := ix.moduleInfo[key]; ok {
		return info, nil
	}

	info, err := LoadModuleInfo(ix.path, klass, name)
	if err != nil {
		return nil, err
	}
	ix.moduleInfo[key] = info
	return info, nil
}

// GetSchema returns the Schema for the entity identified by klass and
// name; name is ignored for the manifest. It always returns a Schema:
// when no schema information can be found, e.g. the module or the
// manifest schema file does not exist, the Schema has no data and any
// validation against it fails.
func (ix *Index) GetSchema(klass ModuleClass, name string) (*Schema, error) {
	key := moduleKey{class: klass, name: name}
	if schema, ok := ix.schemata[key]; ok {
		return schema, nil
	}

	var data map[string]any

	if klass == ClassManifest {
		raw, err := os.ReadFile(filepath.Join(ix.path, manifestSchema))
		if err == nil {
			if err := json.Unmarshal(raw, &data); err != nil {
				return nil, fmt.Errorf("manifest schema: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	} else if _, ok := klass.directory(); ok {
		info, err := ix.GetModuleInfo(klass, name)
		if err != nil {
			return nil, err
		}
		if info != nil {
			data = info.GetSchema()
		}
	} else {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedClass, klass)
	}

	label := name
	if label == "" {
		label = klass.String()
	}
	schema := NewSchema(data, label)
	ix.schemata[key] = schema
	return schema, nil
}
