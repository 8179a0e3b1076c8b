// Package introspect analyzes a compiled template's blocks to classify
// their purity and cache scope, enabling the block cache and the rebuild
// decision engine to reuse site-scoped output across pages (spec 4.7).
package introspect

import (
	"sort"
	"sync"

	"github.com/kida-ssg/kida/parser"
)

// Scope classifies where a block's identifier references are rooted.
type Scope string

const (
	ScopeSite    Scope = "site"
	ScopePage    Scope = "page"
	ScopeNone    Scope = "none"
	ScopeUnknown Scope = "unknown"
)

// Purity classifies whether a block is free of side effects and
// non-deterministic inputs.
type Purity string

const (
	PurityPure    Purity = "pure"
	PurityImpure  Purity = "impure"
	PurityUnknown Purity = "unknown"
)

// BlockInfo is the per-block result of analysis.
type BlockInfo struct {
	Name         string
	Scope        Scope
	Purity       Purity
	Dependencies map[string]struct{}
}

// Metadata is the result of introspecting a single compiled template.
type Metadata struct {
	Extends string
	Blocks  map[string]*BlockInfo
}

// SortedBlockNames returns block names in deterministic order, useful for
// stable logging and test output.
func (m *Metadata) SortedBlockNames() []string {
	names := make([]string, 0, len(m.Blocks))
	for n := range m.Blocks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetCacheableBlocks returns only blocks whose scope is site or page and
// whose purity is pure (spec 4.7).
func (m *Metadata) GetCacheableBlocks() map[string]Scope {
	out := make(map[string]Scope)
	for name, info := range m.Blocks {
		if info.Purity == PurityPure && (info.Scope == ScopeSite || info.Scope == ScopePage) {
			out[name] = info.Scope
		}
	}
	return out
}

var (
	siteRootsMu sync.RWMutex
	// siteRoots is the closed allow-list of identifier roots considered
	// site-scoped. Extensible via RegisterSiteRoot without touching the
	// analysis algorithm (spec 9, Open Question: identifier attribution).
	siteRoots = map[string]bool{
		"site":   true,
		"config": true,
	}
	pageRoots = map[string]bool{
		"page":    true,
		"content": true,
		"toc":     true,
	}
	pureGlobals = map[string]bool{
		"range": true, "dict": true, "zip": true, "enumerate": true,
		"loop": true, "namespace": true,
	}
)

// RegisterSiteRoot extends the site-local identifier allow-list. Hosts use
// this to teach introspection about additional globals they register on
// the environment (spec 9).
func RegisterSiteRoot(name string) {
	siteRootsMu.Lock()
	defer siteRootsMu.Unlock()
	siteRoots[name] = true
}

// RegisterPageRoot extends the page-local identifier allow-list.
func RegisterPageRoot(name string) {
	siteRootsMu.Lock()
	defer siteRootsMu.Unlock()
	pageRoots[name] = true
}

func isSiteRoot(name string) bool {
	siteRootsMu.RLock()
	defer siteRootsMu.RUnlock()
	return siteRoots[name]
}

func isPageRoot(name string) bool {
	siteRootsMu.RLock()
	defer siteRootsMu.RUnlock()
	return pageRoots[name]
}

func isPureGlobal(name string) bool {
	siteRootsMu.RLock()
	defer siteRootsMu.RUnlock()
	return pureGlobals[name]
}

// Analyze walks each top-level block (and blocks nested under If/For at
// template scope) and returns per-block metadata. Analysis walks only the
// block's own AST; it never evaluates expressions.
func Analyze(tmpl *parser.TemplateNode) *Metadata {
	meta := &Metadata{Blocks: make(map[string]*BlockInfo)}
	if tmpl == nil {
		return meta
	}
	meta.Extends = findExtends(tmpl.Children)
	collectBlocks(tmpl.Children, meta)
	return meta
}

func findExtends(nodes []parser.Node) string {
	for _, n := range nodes {
		if ext, ok := n.(*parser.ExtendsNode); ok {
			if lit, ok := ext.Template.(*parser.LiteralNode); ok {
				if s, ok := lit.Value.(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

func collectBlocks(nodes []parser.Node, meta *Metadata) {
	for _, n := range nodes {
		switch b := n.(type) {
		case *parser.BlockNode:
			meta.Blocks[b.Name] = analyzeBlock(b)
			collectBlocks(b.Body, meta)
		case *parser.IfNode:
			collectBlocks(b.Body, meta)
			collectBlocks(b.Else, meta)
			for _, e := range b.ElseIfs {
				collectBlocks(e.Body, meta)
			}
		case *parser.ForNode:
			collectBlocks(b.Body, meta)
			collectBlocks(b.Else, meta)
		}
	}
}

func analyzeBlock(block *parser.BlockNode) *BlockInfo {
	a := &analyzer{deps: make(map[string]struct{})}
	a.walkSlice(block.Body)

	info := &BlockInfo{
		Name:         block.Name,
		Dependencies: a.deps,
	}

	if a.impure {
		info.Purity = PurityImpure
		info.Scope = ScopeNone
		return info
	}
	if len(a.deps) == 0 {
		info.Purity = PurityPure
		info.Scope = ScopeUnknown
		return info
	}

	allSite, allPage, anyUnknown := true, true, false
	anyPage := false
	for root := range a.deps {
		switch {
		case isSiteRoot(root) || isPureGlobal(root):
			allPage = false
		case isPageRoot(root):
			allSite = false
			anyPage = true
		default:
			allSite = false
			allPage = false
			anyUnknown = true
		}
	}

	info.Purity = PurityPure
	switch {
	case allSite && !anyUnknown:
		info.Scope = ScopeSite
	case anyPage || allPage:
		info.Scope = ScopePage
	default:
		info.Scope = ScopeUnknown
	}
	return info
}

// analyzer walks a block body collecting root identifiers and flagging
// impurity: any {% do %} (treated conservatively as a side effect),
// {% call %} block, {% include %}, or call to a function that is not a
// plain name in the pure allow-list.
type analyzer struct {
	deps   map[string]struct{}
	impure bool
}

func (a *analyzer) walkSlice(nodes []parser.Node) {
	for _, n := range nodes {
		a.walkNode(n)
	}
}

func (a *analyzer) walkNode(node parser.Node) {
	switch n := node.(type) {
	case *parser.VariableNode:
		if expr, ok := n.Expression.(parser.ExpressionNode); ok {
			a.walkExpr(expr)
		}
	case *parser.IfNode:
		a.walkExpr(n.Condition)
		a.walkSlice(n.Body)
		a.walkSlice(n.Else)
		for _, e := range n.ElseIfs {
			a.walkNode(e)
		}
	case *parser.ForNode:
		a.walkExpr(n.Iterable)
		if n.Condition != nil {
			a.walkExpr(n.Condition)
		}
		a.walkSlice(n.Body)
		a.walkSlice(n.Else)
	case *parser.SetNode:
		if n.Value != nil {
			a.walkExpr(n.Value)
		}
	case *parser.DoNode:
		// {% do %} is conservatively treated as a side effect (spec 4.7).
		a.impure = true
		a.walkExpr(n.Expression)
	case *parser.BlockNode:
		a.walkSlice(n.Body)
	case *parser.CallBlockNode:
		a.impure = true
		a.walkSlice(n.Body)
	case *parser.IncludeNode:
		a.impure = true
	case *parser.TextNode, *parser.RawNode, *parser.CommentNode:
		// no references
	default:
		if expr, ok := node.(parser.ExpressionNode); ok {
			a.walkExpr(expr)
		}
	}
}

func (a *analyzer) walkExpr(e parser.ExpressionNode) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *parser.IdentifierNode:
		a.recordRoot(n.Name)
	case *parser.AttributeNode:
		a.walkExpr(n.Object)
	case *parser.GetItemNode:
		a.walkExpr(n.Object)
		a.walkExpr(n.Key)
	case *parser.FilterNode:
		a.walkExpr(n.Expression)
		for _, arg := range n.Arguments {
			a.walkExpr(arg)
		}
		for _, arg := range n.NamedArgs {
			a.walkExpr(arg)
		}
	case *parser.TestNode:
		a.walkExpr(n.Expression)
	case *parser.BinaryOpNode:
		a.walkExpr(n.Left)
		a.walkExpr(n.Right)
	case *parser.UnaryOpNode:
		a.walkExpr(n.Operand)
	case *parser.ConditionalNode:
		a.walkExpr(n.Condition)
		a.walkExpr(n.TrueExpr)
		a.walkExpr(n.FalseExpr)
	case *parser.ListNode:
		for _, el := range n.Elements {
			a.walkExpr(el)
		}
	case *parser.CallNode:
		a.walkExpr(n.Function)
		if ident, ok := n.Function.(*parser.IdentifierNode); ok {
			if !isPureGlobal(ident.Name) {
				a.impure = true
			}
		} else {
			a.impure = true
		}
	case *parser.LiteralNode:
		// constants contribute no dependency
	}
}

func (a *analyzer) recordRoot(name string) {
	a.deps[name] = struct{}{}
}
