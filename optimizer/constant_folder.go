package optimizer

import (
	"fmt"

	"github.com/kida-ssg/kida/parser"
)

// compareOps lists the comparison operators the folder evaluates in
// single-comparator Compare nodes (Python reference:
// bengal/rendering/kida/optimizer/constant_folder.py).
var compareOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

var boolOps = map[string]bool{"and": true, "or": true}

type folder struct {
	count int
}

// FoldConstants evaluates BinOp/UnaryOp/Compare/Concat/BoolOp nodes whose
// operands are all constants, short-circuiting BoolOp only when the
// folded operand precedes any non-constant operand (spec 4.3 #1).
func FoldConstants(tmpl *parser.TemplateNode) (*parser.TemplateNode, int) {
	f := &folder{}
	out := f.foldNode(tmpl)
	return out.(*parser.TemplateNode), f.count
}

func (f *folder) foldNode(node parser.Node) parser.Node {
	if node == nil {
		return nil
	}
	switch n := node.(type) {
	case *parser.TemplateNode:
		out := *n
		out.Children = f.foldSlice(n.Children)
		return &out

	case *parser.BlockNode:
		out := *n
		out.Body = f.foldSlice(n.Body)
		return &out

	case *parser.IfNode:
		out := *n
		out.Condition = f.foldExpr(n.Condition)
		out.Body = f.foldSlice(n.Body)
		out.Else = f.foldSlice(n.Else)
		newElifs := make([]*parser.IfNode, len(n.ElseIfs))
		for i, e := range n.ElseIfs {
			newElifs[i] = f.foldNode(e).(*parser.IfNode)
		}
		out.ElseIfs = newElifs
		return &out

	case *parser.ForNode:
		out := *n
		out.Iterable = f.foldExpr(n.Iterable)
		if n.Condition != nil {
			out.Condition = f.foldExpr(n.Condition)
		}
		out.Body = f.foldSlice(n.Body)
		out.Else = f.foldSlice(n.Else)
		return &out

	case *parser.VariableNode:
		out := *n
		if expr, ok := n.Expression.(parser.ExpressionNode); ok {
			out.Expression = f.foldExpr(expr)
		}
		return &out

	case *parser.BinaryOpNode:
		return f.foldBinaryOp(n)

	case *parser.UnaryOpNode:
		return f.foldUnaryOp(n)

	case *parser.FilterNode:
		out := *n
		out.Expression = f.foldExpr(n.Expression)
		newArgs := make([]parser.ExpressionNode, len(n.Arguments))
		for i, a := range n.Arguments {
			newArgs[i] = f.foldExpr(a)
		}
		out.Arguments = newArgs
		return &out

	default:
		return node
	}
}

func (f *folder) foldExpr(e parser.ExpressionNode) parser.ExpressionNode {
	if e == nil {
		return nil
	}
	out := f.foldNode(e)
	if expr, ok := out.(parser.ExpressionNode); ok {
		return expr
	}
	return e
}

func (f *folder) foldSlice(nodes []parser.Node) []parser.Node {
	out := make([]parser.Node, len(nodes))
	for i, n := range nodes {
		out[i] = f.foldNode(n)
	}
	return out
}

func (f *folder) foldBinaryOp(n *parser.BinaryOpNode) parser.ExpressionNode {
	left := f.foldExpr(n.Left)
	right := f.foldExpr(n.Right)

	leftLit, leftOK := left.(*parser.LiteralNode)
	rightLit, rightOK := right.(*parser.LiteralNode)

	if leftOK && rightOK {
		if boolOps[n.Operator] {
			// Short-circuit only when the constant precedes a non-constant --
			// here both sides are constant, so always safe to fold directly.
			if v, ok := evalBool(n.Operator, leftLit.Value, rightLit.Value); ok {
				f.count++
				return parser.NewLiteralNode(v, fmt.Sprintf("%v", v), n.Line(), n.Column())
			}
		} else if compareOps[n.Operator] {
			if v, ok := evalCompare(n.Operator, leftLit.Value, rightLit.Value); ok {
				f.count++
				return parser.NewLiteralNode(v, fmt.Sprintf("%v", v), n.Line(), n.Column())
			}
		} else {
			if v, ok := evalArith(n.Operator, leftLit.Value, rightLit.Value); ok {
				f.count++
				return parser.NewLiteralNode(v, fmt.Sprintf("%v", v), n.Line(), n.Column())
			}
		}
		// Division by zero or type mismatch: preserve original node unfolded.
	}

	return &parser.BinaryOpNode{
		Left:     left,
		Operator: n.Operator,
		Right:    right,
	}
}

func (f *folder) foldUnaryOp(n *parser.UnaryOpNode) parser.ExpressionNode {
	operand := f.foldExpr(n.Operand)
	if lit, ok := operand.(*parser.LiteralNode); ok {
		if v, ok := evalUnary(n.Operator, lit.Value); ok {
			f.count++
			return parser.NewLiteralNode(v, fmt.Sprintf("%v", v), n.Line(), n.Column())
		}
	}
	return &parser.UnaryOpNode{Operator: n.Operator, Operand: operand}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func isInt(v interface{}) bool {
	switch v.(type) {
	case int, int64:
		return true
	}
	return false
}

func evalArith(op string, a, b interface{}) (interface{}, bool) {
	if op == "~" {
		as, aok := a.(string)
		bs, bok := b.(string)
		if aok && bok {
			return as + bs, true
		}
		return fmt.Sprintf("%v", a) + fmt.Sprintf("%v", b), true
	}

	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return nil, false
	}

	var result float64
	switch op {
	case "+":
		result = af + bf
	case "-":
		result = af - bf
	case "*":
		result = af * bf
	case "/":
		if bf == 0 {
			return nil, false // division by zero aborts the fold (spec 4.3 #1)
		}
		result = af / bf
	case "//":
		if bf == 0 {
			return nil, false
		}
		result = float64(int64(af / bf))
	case "%":
		if bf == 0 {
			return nil, false
		}
		ai, bi := int64(af), int64(bf)
		return int(ai % bi), true
	case "**":
		result = powFloat(af, bf)
	default:
		return nil, false
	}

	if isInt(a) && isInt(b) && op != "/" {
		return int(result), true
	}
	return result, true
}

func powFloat(base, exp float64) float64 {
	result := 1.0
	neg := exp < 0
	n := int(exp)
	if neg {
		n = -n
	}
	for i := 0; i < n; i++ {
		result *= base
	}
	if neg {
		if result == 0 {
			return 0
		}
		return 1 / result
	}
	return result
}

func evalCompare(op string, a, b interface{}) (bool, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch op {
		case "==":
			return af == bf, true
		case "!=":
			return af != bf, true
		case "<":
			return af < bf, true
		case "<=":
			return af <= bf, true
		case ">":
			return af > bf, true
		case ">=":
			return af >= bf, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch op {
		case "==":
			return as == bs, true
		case "!=":
			return as != bs, true
		case "<":
			return as < bs, true
		case "<=":
			return as <= bs, true
		case ">":
			return as > bs, true
		case ">=":
			return as >= bs, true
		}
	}
	return false, false
}

func evalBool(op string, a, b interface{}) (bool, bool) {
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if !aok || !bok {
		return false, false
	}
	switch op {
	case "and":
		return ab && bb, true
	case "or":
		return ab || bb, true
	}
	return false, false
}

func evalUnary(op string, v interface{}) (interface{}, bool) {
	switch op {
	case "not":
		b, ok := v.(bool)
		if !ok {
			return nil, false
		}
		return !b, true
	case "-":
		f, ok := asFloat(v)
		if !ok {
			return nil, false
		}
		if isInt(v) {
			return -int(f), true
		}
		return -f, true
	case "+":
		if _, ok := asFloat(v); !ok {
			return nil, false
		}
		return v, true
	}
	return nil, false
}
