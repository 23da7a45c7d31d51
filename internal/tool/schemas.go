package tool

import (
	"embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed schemas/*.toml
var schemaFiles embed.FS

// schemaProperty is one argument a tool's JSON schema declares.
type schemaProperty struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// declaredSchema is the on-disk shape a built-in's description and JSON
// schema are generated from at package load time, instead of hand-written
// Go map literals — each built-in's schemas/<name>.toml is the single
// source of truth for what a model sees for that tool.
type declaredSchema struct {
	Description string           `toml:"description"`
	Required    []string         `toml:"required"`
	Properties  []schemaProperty `toml:"property"`
}

var builtinSchemas = mustLoadSchemas()

// mustLoadSchemas parses every embedded schemas/*.toml file once at init.
// A malformed or missing schema file is a build-time defect, not a runtime
// one, so it panics rather than threading an error through every Tool
// constructor.
func mustLoadSchemas() map[string]declaredSchema {
	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		panic(fmt.Sprintf("tool: reading embedded schemas directory: %v", err))
	}
	out := make(map[string]declaredSchema, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := schemaFiles.ReadFile("schemas/" + e.Name())
		if err != nil {
			panic(fmt.Sprintf("tool: reading schema %s: %v", e.Name(), err))
		}
		var s declaredSchema
		if err := toml.Unmarshal(data, &s); err != nil {
			panic(fmt.Sprintf("tool: parsing schema %s: %v", e.Name(), err))
		}
		out[strings.TrimSuffix(e.Name(), ".toml")] = s
	}
	return out
}

// schemaFor looks up a built-in's declared schema by tool name, panicking
// if none was embedded — every built-in registered in RegisterBuiltins must
// have a matching schemas/<name>.toml.
func schemaFor(name string) declaredSchema {
	s, ok := builtinSchemas[name]
	if !ok {
		panic(fmt.Sprintf("tool: no declared schema for %q", name))
	}
	return s
}

// jsonSchema renders a built-in's declared schema into the JSON-schema
// shape Tool.Schema returns to the model.
func jsonSchema(name string) map[string]any {
	s := schemaFor(name)
	props := make(map[string]any, len(s.Properties))
	for _, p := range s.Properties {
		props[p.Name] = map[string]any{"type": p.Type}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   append([]string(nil), s.Required...),
	}
}

// description returns a built-in's declared description.
func description(name string) string {
	return schemaFor(name).Description
}
