package formats

import (
	"github.com/osbuild/meta"
)

func init() {
	meta.RegisterFormat("osbuild.formats.v2", &formatV2{})
}

// formatV2 handles the pipeline-list manifest description format:
// a `pipelines` array where each pipeline carries its own stage list
// and stages reference their module via `type`.
type formatV2 struct{}

func (f *formatV2) Version() string { return "2" }

func (f *formatV2) Docs() string {
	return "Version 2 of the manifest description format\n" +
		"\n" +
		"Multiple named pipelines, each with its own list of\n" +
		"stages; stages select their module via `type` and wire\n" +
		"content through typed inputs."
}

// Validate checks every stage's options against the schema of the
// module named by its `type`. The on-disk manifest schema targets the
// version 1 document layout, so only the module-level validation is
// composed here.
func (f *formatV2) Validate(ix *meta.Index, manifest map[string]any) *meta.ValidationResult {
	res := meta.NewResult("Manifest")

	if pipelines, ok := manifest["pipelines"].([]any); ok {
		for i, p := range pipelines {
			pipeline, ok := p.(map[string]any)
			if !ok {
				continue
			}
			f.validatePipeline(ix, res, pipeline,
				meta.Field("pipelines"), meta.ArrayIndex(i))
		}
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

func (f *formatV2) validatePipeline(ix *meta.Index, res *meta.ValidationResult, pipeline map[string]any, prefix ...meta.PathSegment) {
	stages, ok := pipeline["stages"].([]any)
	if !ok {
		return
	}
	for i, s := range stages {
		stage, ok := s.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := stage["type"].(string)

		// module schemas use the name/options envelope; map the
		// stage onto it so one synthesis rule serves both formats
		envelope := map[string]any{"name": typ}
		if options, ok := stage["options"]; ok {
			envelope["options"] = options
		}
		validateModule(ix, res, meta.ClassStage, typ, envelope,
			extend(prefix, meta.Field("stages"), meta.ArrayIndex(i))...)
	}
}
