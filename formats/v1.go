// Package formats contains the handlers for the supported manifest
// description formats. Handlers register themselves with the meta
// format registry at startup; importing this package is what makes
// them discoverable through an Index.
package formats

import (
	"github.com/osbuild/meta"
)

func init() {
	meta.RegisterFormat("osbuild.formats.v1", &formatV1{})
}

// formatV1 handles the original manifest description format: one
// `pipeline` object with optional nested build pipelines, a stage
// list, an optional assembler, and a `sources` map.
type formatV1 struct{}

func (f *formatV1) Version() string { return "1" }

func (f *formatV1) Docs() string {
	return "Version 1 of the manifest description format\n" +
		"\n" +
		"A single pipeline with an ordered list of stages, an\n" +
		"optional assembler and optional nested build pipelines,\n" +
		"together with the sources needed to run them."
}

// Validate checks the manifest description as a whole: the document
// against the manifest schema, then every stage, assembler and source
// against its module schema, with each nested result folded into the
// report at the location of the validated element.
func (f *formatV1) Validate(ix *meta.Index, manifest map[string]any) *meta.ValidationResult {
	schema, err := ix.GetSchema(meta.ClassManifest, "")
	if err != nil {
		res := meta.NewResult("Manifest")
		res.Fail(err.Error())
		return res
	}
	res := schema.Validate(manifest)

	if pipeline, ok := manifest["pipeline"].(map[string]any); ok {
		f.validatePipeline(ix, res, pipeline, meta.Field("pipeline"))
	}

	if sources, ok := manifest["sources"].(map[string]any); ok {
		for name, options := range sources {
			schema, err := ix.GetSchema(meta.ClassSource, name)
			if err != nil {
				res.Fail(err.Error())
				continue
			}
			res.Merge(schema.Validate(options), meta.Field("sources"), meta.Field(name))
		}
	}

	return res
}

func (f *formatV1) validatePipeline(ix *meta.Index, res *meta.ValidationResult, pipeline map[string]any, prefix ...meta.PathSegment) {
	if build, ok := pipeline["build"].(map[string]any); ok {
		if nested, ok := build["pipeline"].(map[string]any); ok {
			f.validatePipeline(ix, res, nested, extend(prefix, meta.Field("build"), meta.Field("pipeline"))...)
		}
	}

	if stages, ok := pipeline["stages"].([]any); ok {
		for i, s := range stages {
			stage, ok := s.(map[string]any)
			if !ok {
				// the manifest schema reports the shape violation
				continue
			}
			name, _ := stage["name"].(string)
			validateModule(ix, res, meta.ClassStage, name, stage,
				extend(prefix, meta.Field("stages"), meta.ArrayIndex(i))...)
		}
	}

	if assembler, ok := pipeline["assembler"].(map[string]any); ok {
		name, _ := assembler["name"].(string)
		validateModule(ix, res, meta.ClassAssembler, name, assembler,
			extend(prefix, meta.Field("assembler"))...)
	}
}

// validateModule folds the result of validating target against the
// module's schema into res at prefix.
func validateModule(ix *meta.Index, res *meta.ValidationResult, klass meta.ModuleClass, name string, target any, prefix ...meta.PathSegment) {
	schema, err := ix.GetSchema(klass, name)
	if err != nil {
		verr := res.Fail(err.Error())
		verr.Rebase(prefix...)
		return
	}
	res.Merge(schema.Validate(target), prefix...)
}

// extend returns prefix plus segs in a fresh slice; results of
// append on a shared prefix must never alias.
func extend(prefix []meta.PathSegment, segs ...meta.PathSegment) []meta.PathSegment {
	out := make([]meta.PathSegment, 0, len(prefix)+len(segs))
	out = append(out, prefix...)
	return append(out, segs...)
}
