package meta

// Package meta provides introspection and validation for osbuild
// manifest descriptions:
//
// - An Index over a root path that discovers stages, assemblers,
//   inputs and sources, and memoizes everything it hands out
// - Statically extracted ModuleInfo (documentation plus option schema
//   fragment) without ever executing a module
// - Schema, a lazy-compiling JSON Schema (Draft 4) wrapper
// - A stable error model via ValidationError/ValidationResult
//   (canonical path identity, deduplication, sorted iteration)
// - A FormatInfo registry for manifest description formats
//
// Design policy:
// - Keep only public APIs in the root package; put the module-file
//   reader under internal/.
// - Place format handlers under formats/ and the CLI under
//   cmd/osbuild-validate.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//  ix := meta.NewIndex(root)
//  schema, err := ix.GetSchema(meta.ClassStage, "org.osbuild.rpm")
//  res := schema.Validate(stage)
//  if !res.Valid() { report(res.AsMap()) }
