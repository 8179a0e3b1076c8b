package optimizer

import "github.com/kida-ssg/kida/parser"

// inlinableFilters is the closed set of pure, parameterless filters eligible
// for direct method-call codegen instead of a registry lookup (spec 4.3 #4).
var inlinableFilters = map[string]bool{
	"upper": true, "lower": true, "strip": true, "lstrip": true,
	"rstrip": true, "title": true, "capitalize": true, "swapcase": true,
	"casefold": true, "isdigit": true, "isalpha": true,
}

// InlinedFilterNode replaces a registry-dispatched FilterNode for a closed
// set of pure, parameterless filters. It carries no parser.ExpressionNode()
// marker of its own identity beyond embedding the original node shape so
// the code generator can emit a direct method call.
type InlinedFilterNode struct {
	*parser.FilterNode
	Method string
}

// InlineFilters replaces eligible FilterNode occurrences with
// InlinedFilterNode wrappers. Disabled by default (spec 4.3 #4) because
// users may override built-in filters; callers opt in via
// optimizer.Options.InlineFilters.
func InlineFilters(tmpl *parser.TemplateNode) (*parser.TemplateNode, int) {
	count := 0
	out := *tmpl
	out.Children = inlineSlice(tmpl.Children, &count)
	return &out, count
}

func inlineSlice(nodes []parser.Node, count *int) []parser.Node {
	result := make([]parser.Node, len(nodes))
	for i, n := range nodes {
		result[i] = inlineNode(n, count)
	}
	return result
}

func inlineNode(node parser.Node, count *int) parser.Node {
	switch n := node.(type) {
	case *parser.VariableNode:
		out := *n
		if expr, ok := n.Expression.(parser.ExpressionNode); ok {
			out.Expression = inlineExpr(expr, count)
		}
		return &out
	case *parser.BlockNode:
		out := *n
		out.Body = inlineSlice(n.Body, count)
		return &out
	case *parser.IfNode:
		out := *n
		out.Body = inlineSlice(n.Body, count)
		out.Else = inlineSlice(n.Else, count)
		return &out
	case *parser.ForNode:
		out := *n
		out.Body = inlineSlice(n.Body, count)
		out.Else = inlineSlice(n.Else, count)
		return &out
	default:
		return node
	}
}

func inlineExpr(e parser.ExpressionNode, count *int) parser.ExpressionNode {
	filter, ok := e.(*parser.FilterNode)
	if !ok {
		return e
	}
	inner := inlineExpr(filter.Expression, count)
	nf := *filter
	nf.Expression = inner
	if len(filter.Arguments) == 0 && inlinableFilters[filter.FilterName] {
		*count++
		return &InlinedFilterNode{FilterNode: &nf, Method: filter.FilterName}
	}
	return &nf
}
