// Package learning extracts durable facts from a run — generated-code
// patterns, dead ends hit while fixing a gate failure — and carries them
// forward into a Briefing the next run seeds its planner with.
//
// Extraction is pattern-based, no LLM: grounded on a reference
// regex-extraction pass, adapted from Python/API-route patterns to the Go
// idioms this kernel actually generates (func/type declarations, struct
// fields, route registration).
package learning

import (
	"regexp"
)

// Category is a closed set of learning kinds, mirroring the source
// extractor's category list.
type Category string

const (
	CategoryType    Category = "type"
	CategoryAPI     Category = "api"
	CategoryPattern Category = "pattern"
	CategoryFix     Category = "fix"
	CategoryDeadEnd Category = "dead_end"
)

// Learning is one fact extracted from generated code or a fix attempt.
type Learning struct {
	Fact       string   `json:"fact"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	SourceFile string   `json:"source_file,omitempty"`
}

// DeadEnd records an approach that didn't work, so a later retry (or a
// future run seeded from this one's briefing) doesn't try it again.
type DeadEnd struct {
	Approach string `json:"approach"`
	Reason   string `json:"reason"`
	Gate     string `json:"gate,omitempty"`
}

var (
	reFuncDecl    = regexp.MustCompile(`func\s+(?:\([^)]*\)\s+)?(\w+)\s*\(`)
	reTypeDecl    = regexp.MustCompile(`type\s+(\w+)\s+(?:struct|interface)\b`)
	reStructField = regexp.MustCompile(`(?m)^\s+(\w+)\s+([\w.\[\]*]+)\s*` + "`" + `json:"([^"]+)"`)
	reRoute       = regexp.MustCompile(`\.(?:HandleFunc|Handle|GET|POST|PUT|DELETE|PATCH)\(\s*"([^"]+)"`)
	reImport      = regexp.MustCompile(`^\s*"([\w./-]+)"\s*$`)
)

// Extractor pulls Learnings out of generated source, with no model
// dependency — fast and deterministic, run after every GENERATE task.
type Extractor struct{}

// FromCode scans one file's content for types, API routes, and patterns.
func (Extractor) FromCode(content, sourceFile string) []Learning {
	var out []Learning

	for _, m := range reTypeDecl.FindAllStringSubmatch(content, -1) {
		out = append(out, Learning{
			Fact:       "type " + m[1] + " is defined in " + sourceFile,
			Category:   CategoryType,
			Confidence: 0.9,
			SourceFile: sourceFile,
		})
	}
	for _, m := range reStructField.FindAllStringSubmatch(content, -1) {
		out = append(out, Learning{
			Fact:       m[1] + " is " + m[2] + " (json \"" + m[3] + "\")",
			Category:   CategoryType,
			Confidence: 0.85,
			SourceFile: sourceFile,
		})
	}
	for _, m := range reRoute.FindAllStringSubmatch(content, -1) {
		out = append(out, Learning{
			Fact:       "route " + m[1] + " is registered in " + sourceFile,
			Category:   CategoryAPI,
			Confidence: 0.8,
			SourceFile: sourceFile,
		})
	}
	for _, m := range reFuncDecl.FindAllStringSubmatch(content, -1) {
		out = append(out, Learning{
			Fact:       "func " + m[1] + " is defined in " + sourceFile,
			Category:   CategoryPattern,
			Confidence: 0.6,
			SourceFile: sourceFile,
		})
	}
	return out
}

// FromFix records what resolved a gate failure, so the same fix can be
// tried first the next time the same gate fails on a similar task.
func (Extractor) FromFix(gate, whatFixedIt string) Learning {
	return Learning{
		Fact:       whatFixedIt,
		Category:   CategoryFix,
		Confidence: 0.75,
		SourceFile: gate,
	}
}
