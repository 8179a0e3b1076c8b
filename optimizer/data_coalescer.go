package optimizer

import "github.com/kida-ssg/kida/parser"

// CoalesceData merges adjacent TextNode siblings within any container into
// a single TextNode, reducing output operations (spec 4.3 #3).
func CoalesceData(tmpl *parser.TemplateNode) (*parser.TemplateNode, int) {
	merged := 0
	out := *tmpl
	out.Children = coalesceSlice(tmpl.Children, &merged)
	return &out, merged
}

func coalesceSlice(nodes []parser.Node, merged *int) []parser.Node {
	result := make([]parser.Node, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, coalesceChildren(n, merged))
	}
	return mergeAdjacentText(result, merged)
}

func coalesceChildren(node parser.Node, merged *int) parser.Node {
	switch n := node.(type) {
	case *parser.BlockNode:
		out := *n
		out.Body = coalesceSlice(n.Body, merged)
		return &out
	case *parser.IfNode:
		out := *n
		out.Body = coalesceSlice(n.Body, merged)
		out.Else = coalesceSlice(n.Else, merged)
		newElifs := make([]*parser.IfNode, len(n.ElseIfs))
		for i, e := range n.ElseIfs {
			ce := coalesceChildren(e, merged).(*parser.IfNode)
			newElifs[i] = ce
		}
		out.ElseIfs = newElifs
		return &out
	case *parser.ForNode:
		out := *n
		out.Body = coalesceSlice(n.Body, merged)
		out.Else = coalesceSlice(n.Else, merged)
		return &out
	default:
		return node
	}
}

func mergeAdjacentText(nodes []parser.Node, merged *int) []parser.Node {
	result := make([]parser.Node, 0, len(nodes))
	for _, n := range nodes {
		if text, ok := n.(*parser.TextNode); ok && len(result) > 0 {
			if prev, ok := result[len(result)-1].(*parser.TextNode); ok {
				combined := *prev
				combined.Content = prev.Content + text.Content
				result[len(result)-1] = &combined
				*merged++
				continue
			}
		}
		result = append(result, n)
	}
	return result
}
