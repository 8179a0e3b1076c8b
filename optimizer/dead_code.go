package optimizer

import "github.com/kida-ssg/kida/parser"

type eliminator struct {
	count int
}

// EliminateDeadCode rewrites If nodes with a constant condition into their
// selected branch, and For nodes over an empty literal list into their
// empty body (or nothing), recursively (spec 4.3 #2).
func EliminateDeadCode(tmpl *parser.TemplateNode) (*parser.TemplateNode, int) {
	e := &eliminator{}
	out := *tmpl
	out.Children = e.rewriteSlice(tmpl.Children)
	return &out, e.count
}

func (e *eliminator) rewriteSlice(nodes []parser.Node) []parser.Node {
	result := make([]parser.Node, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, e.rewriteNode(n)...)
	}
	return result
}

// rewriteNode returns the replacement sequence for a single node: usually
// one node, but an eliminated If/For collapses to its surviving body
// (possibly empty).
func (e *eliminator) rewriteNode(node parser.Node) []parser.Node {
	switch n := node.(type) {
	case *parser.IfNode:
		if lit, ok := n.Condition.(*parser.LiteralNode); ok {
			e.count++
			if truthy(lit.Value) {
				return e.rewriteSlice(n.Body)
			}
			for _, elif := range n.ElseIfs {
				if elit, ok := elif.Condition.(*parser.LiteralNode); ok {
					if truthy(elit.Value) {
						return e.rewriteSlice(elif.Body)
					}
					continue
				}
				// Non-constant elif encountered: keep remaining chain as a
				// new If rooted at this elif.
				rest := *n
				rest.Condition = elif.Condition
				rest.Body = elif.Body
				rest.ElseIfs = n.ElseIfs[indexOf(n.ElseIfs, elif)+1:]
				rest.Else = n.Else
				return e.rewriteNode(&rest)
			}
			return e.rewriteSlice(n.Else)
		}
		out := *n
		out.Body = e.rewriteSlice(n.Body)
		out.Else = e.rewriteSlice(n.Else)
		newElifs := make([]*parser.IfNode, len(n.ElseIfs))
		for i, elif := range n.ElseIfs {
			r := e.rewriteNode(elif)
			if len(r) == 1 {
				if ei, ok := r[0].(*parser.IfNode); ok {
					newElifs[i] = ei
					continue
				}
			}
			newElifs[i] = elif
		}
		out.ElseIfs = newElifs
		return []parser.Node{&out}

	case *parser.ForNode:
		if isEmptyLiteralList(n.Iterable) {
			e.count++
			return e.rewriteSlice(n.Else)
		}
		out := *n
		out.Body = e.rewriteSlice(n.Body)
		out.Else = e.rewriteSlice(n.Else)
		return []parser.Node{&out}

	case *parser.BlockNode:
		out := *n
		out.Body = e.rewriteSlice(n.Body)
		return []parser.Node{&out}

	default:
		return []parser.Node{node}
	}
}

func indexOf(elifs []*parser.IfNode, target *parser.IfNode) int {
	for i, e := range elifs {
		if e == target {
			return i
		}
	}
	return len(elifs)
}

func isEmptyLiteralList(e parser.ExpressionNode) bool {
	list, ok := e.(*parser.ListNode)
	if !ok {
		return false
	}
	return len(list.Elements) == 0
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case nil:
		return false
	default:
		return true
	}
}
