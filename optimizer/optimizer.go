// Package optimizer implements the AST-to-AST optimization pipeline:
// constant folding, dead code elimination, data coalescing, opt-in filter
// inlining, and buffer estimation. Each pass is pure and stateless,
// mirroring the teacher's node-walking idiom (parser.Node family) rather
// than introducing a parallel AST.
package optimizer

import (
	"github.com/kida-ssg/kida/parser"
)

// Options configures which optional passes run.
type Options struct {
	// InlineFilters enables the filter-inlining pass. Off by default
	// because users may override built-in filters (spec 4.3 #4).
	InlineFilters bool
}

// Stats aggregates per-pass statistics (spec 4.3).
type Stats struct {
	ConstantsFolded  int
	NodesEliminated  int
	DataNodesMerged  int
	FiltersInlined   int
	EstimatedBytes   int
	OutputOperations int
}

// Optimize runs the full pipeline over tmpl and returns the rewritten
// AST along with aggregated statistics. The input AST is never mutated;
// every pass produces fresh nodes.
func Optimize(tmpl *parser.TemplateNode, opts Options) (*parser.TemplateNode, Stats) {
	var stats Stats

	folded, foldCount := FoldConstants(tmpl)
	stats.ConstantsFolded = foldCount

	eliminated, elimCount := EliminateDeadCode(folded)
	stats.NodesEliminated = elimCount

	coalesced, mergeCount := CoalesceData(eliminated)
	stats.DataNodesMerged = mergeCount

	result := coalesced
	if opts.InlineFilters {
		inlined, inlineCount := InlineFilters(result)
		result = inlined
		stats.FiltersInlined = inlineCount
	}

	bytes, opCount := EstimateBuffer(result)
	stats.EstimatedBytes = bytes
	stats.OutputOperations = opCount

	return result, stats
}
