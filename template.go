package kida

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/kida-ssg/kida/introspect"
	"github.com/kida-ssg/kida/parser"
	"github.com/kida-ssg/kida/runtime"
)

type Template struct {
	name   string
	source string
	env    *Environment
	ast    parser.Node // Parsed AST; nil means RenderTo writes source unchanged

	// Cached inheritance check result (nil = not yet computed)
	hasInheritanceCache *bool
	cacheMu             sync.RWMutex // Protects hasInheritanceCache

	metaOnce sync.Once
	meta     *introspect.Metadata
}

func (t *Template) Render(context Context) (string, error) {
	var buf bytes.Buffer
	err := t.RenderTo(&buf, context)
	if err != nil {
		return "", err
	}
	output := buf.String()

	// Apply block trimming if enabled
	if t.env.trimBlocks || t.env.lstripBlocks {
		output = t.env.applyBlockTrimming(output)
	}

	return output, nil
}

// RenderBlock renders a single named block in isolation (spec 4.5, 4.8).
// It is used by site-scoped block warming and by the block change detector
// when re-hydrating caches.
func (t *Template) RenderBlock(name string, context Context) (string, error) {
	tn := t.GetASTAsTemplateNode()
	if tn == nil {
		return "", NewBlockNotFoundError(name, nil, t.name)
	}

	block := findBlockNode(tn, name)
	if block == nil {
		return "", NewBlockNotFoundError(name, blockNames(tn), t.name)
	}

	ctx := newContextWithEnv(t.env)
	if context != nil {
		for k, v := range context.All() {
			ctx.Set(k, v)
		}
	}

	evaluator := t.env.evaluatorPool.Get().(*runtime.DefaultEvaluator)
	defer t.env.evaluatorPool.Put(evaluator)
	evaluator.SetUndefinedBehavior(t.env.undefinedBehavior)
	evaluator.SetImportSystem(t.env.importSystem)

	var buf bytes.Buffer
	for _, child := range block.Body {
		result, err := evaluator.EvalNode(child, &TemplateContextAdapter{ctx: ctx, env: t.env})
		if err != nil {
			return "", err
		}
		buf.WriteString(renderResultToString(result))
	}
	return buf.String(), nil
}

func renderResultToString(result interface{}) string {
	if result == nil {
		return ""
	}
	if str, ok := result.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", result)
}

func findBlockNode(tn *parser.TemplateNode, name string) *parser.BlockNode {
	var found *parser.BlockNode
	var walk func(nodes []parser.Node)
	walk = func(nodes []parser.Node) {
		for _, n := range nodes {
			if found != nil {
				return
			}
			switch b := n.(type) {
			case *parser.BlockNode:
				if b.Name == name {
					found = b
					return
				}
				walk(b.Body)
			case *parser.IfNode:
				walk(b.Body)
				walk(b.Else)
			case *parser.ForNode:
				walk(b.Body)
			}
		}
	}
	walk(tn.Children)
	return found
}

func blockNames(tn *parser.TemplateNode) []string {
	var names []string
	var walk func(nodes []parser.Node)
	walk = func(nodes []parser.Node) {
		for _, n := range nodes {
			switch b := n.(type) {
			case *parser.BlockNode:
				names = append(names, b.Name)
				walk(b.Body)
			case *parser.IfNode:
				walk(b.Body)
				walk(b.Else)
			case *parser.ForNode:
				walk(b.Body)
			}
		}
	}
	walk(tn.Children)
	return names
}

// TemplateMetadata returns introspection metadata for this template,
// computing and memoizing it on first access (spec 4.7).
func (t *Template) TemplateMetadata() *introspect.Metadata {
	t.metaOnce.Do(func() {
		tn := t.GetASTAsTemplateNode()
		t.meta = introspect.Analyze(tn)
	})
	return t.meta
}

func (t *Template) RenderTo(w io.Writer, context Context) error {
	if t.ast == nil {
		// If no AST is available, just write the source as-is
		_, err := w.Write([]byte(t.source))
		return err
	}

	// Create context with environment
	ctx := newContextWithEnv(t.env)
	if context != nil {
		for k, v := range context.All() {
			ctx.Set(k, v)
		}
	}

	// Resolve inheritance at render-time if needed
	finalAST := t.ast
	if t.hasInheritanceDirectives() {
		// Use shared inheritance processor from environment (reuses cache)
		processor := t.env.getInheritanceProcessor()
		// Create context adapter for runtime package compatibility
		runtimeCtx := &TemplateContextAdapter{ctx: ctx, env: t.env}
		resolvedAST, err := processor.ResolveInheritance(&templateAdapter{template: t}, runtimeCtx)
		if err != nil {
			return fmt.Errorf("inheritance resolution error: %v", err)
		}
		finalAST = resolvedAST
	}

	// Get evaluator from pool (performance optimization)
	evaluator := t.env.evaluatorPool.Get().(*runtime.DefaultEvaluator)
	defer t.env.evaluatorPool.Put(evaluator)

	// Reset evaluator state for this render
	evaluator.SetUndefinedBehavior(t.env.undefinedBehavior)
	evaluator.SetImportSystem(t.env.importSystem)

	result, err := evaluator.EvalNode(finalAST, &TemplateContextAdapter{ctx: ctx, env: t.env})
	if err != nil {
		return err
	}

	// Convert result to string
	var resultStr string
	if str, ok := result.(string); ok {
		resultStr = str
	} else {
		resultStr = fmt.Sprintf("%v", result)
	}

	// Write the result
	_, err = w.Write([]byte(resultStr))
	return err
}

// TemplateContextAdapter adapts Context to runtime.Context interface
type TemplateContextAdapter struct {
	ctx Context
	env *Environment
}

// NewTemplateContextAdapter creates a new TemplateContextAdapter
func NewTemplateContextAdapter(ctx Context, env *Environment) *TemplateContextAdapter {
	return &TemplateContextAdapter{ctx: ctx, env: env}
}

func (a *TemplateContextAdapter) GetVariable(name string) (interface{}, bool) {
	return a.ctx.Get(name)
}

func (a *TemplateContextAdapter) SetVariable(name string, value interface{}) {
	a.ctx.Set(name, value)
}

func (a *TemplateContextAdapter) Clone() runtime.Context {
	return &TemplateContextAdapter{ctx: a.ctx.Clone(), env: a.env}
}

func (a *TemplateContextAdapter) All() map[string]interface{} {
	return a.ctx.All()
}

func (a *TemplateContextAdapter) ApplyFilter(name string, value interface{}, args ...interface{}) (interface{}, error) {
	return a.env.ApplyFilter(name, value, args...)
}

func (a *TemplateContextAdapter) ApplyTest(name string, value interface{}, args ...interface{}) (bool, error) {
	return a.env.ApplyTest(name, value, args...)
}

// IsAutoescapeEnabled returns the environment's autoescape setting
func (a *TemplateContextAdapter) IsAutoescapeEnabled() bool {
	return a.env.autoEscape
}

func (t *Template) Name() string {
	return t.name
}

func (t *Template) Source() string {
	return t.source
}

func (t *Template) AST() parser.Node {
	return t.ast
}

// GetASTAsTemplateNode returns the AST as a TemplateNode for inheritance processing
func (t *Template) GetASTAsTemplateNode() *parser.TemplateNode {
	if templateNode, ok := t.ast.(*parser.TemplateNode); ok {
		return templateNode
	}
	return nil
}

func (t *Template) SetAST(ast parser.Node) {
	t.ast = ast
	// Invalidate inheritance cache when AST changes
	t.cacheMu.Lock()
	t.hasInheritanceCache = nil
	t.cacheMu.Unlock()
}

// Release returns pooled AST nodes back to their pools for reuse.
// This should be called when a template is no longer needed and you want to
// reduce memory pressure. After calling Release(), the template should not
// be used for rendering.
//
// Note: This is optional - if not called, nodes will be garbage collected normally.
// Use this when you're done with a template and want to enable immediate node reuse.
func (t *Template) Release() {
	if t.ast != nil {
		parser.ReleaseAST(t.ast)
		t.ast = nil
	}
}

// hasInheritanceDirectives checks if template contains {% extends %} directives
// Result is cached after first computation to avoid AST traversal on every render
func (t *Template) hasInheritanceDirectives() bool {
	// First, try to read cached result with read lock
	t.cacheMu.RLock()
	if t.hasInheritanceCache != nil {
		result := *t.hasInheritanceCache
		t.cacheMu.RUnlock()
		return result
	}
	t.cacheMu.RUnlock()

	// Compute result (outside lock to avoid holding lock during traversal)
	result := t.hasInheritanceDirectivesInNode(t.ast)

	// Cache the result with write lock
	t.cacheMu.Lock()
	// Double-check in case another goroutine computed it
	if t.hasInheritanceCache == nil {
		t.hasInheritanceCache = &result
	} else {
		result = *t.hasInheritanceCache
	}
	t.cacheMu.Unlock()

	return result
}

// hasInheritanceDirectivesInNode recursively checks for inheritance directives
func (t *Template) hasInheritanceDirectivesInNode(node parser.Node) bool {
	if node == nil {
		return false
	}

	switch n := node.(type) {
	case *parser.TemplateNode:
		for _, child := range n.Children {
			if t.hasInheritanceDirectivesInNode(child) {
				return true
			}
		}

	case *parser.ExtendsNode:
		return true

	case *parser.SuperNode:
		return true

	case *parser.VariableNode:
		// Check if this is {{ super() }} wrapped in VariableNode
		if _, isSuperNode := n.Expression.(*parser.SuperNode); isSuperNode {
			return true
		}
		// Recursively check the expression
		if t.hasInheritanceDirectivesInNode(n.Expression) {
			return true
		}

	case *parser.BlockNode:
		for _, child := range n.Body {
			if t.hasInheritanceDirectivesInNode(child) {
				return true
			}
		}

	case *parser.ForNode:
		for _, child := range n.Body {
			if t.hasInheritanceDirectivesInNode(child) {
				return true
			}
		}

	case *parser.IfNode:
		for _, child := range n.Body {
			if t.hasInheritanceDirectivesInNode(child) {
				return true
			}
		}
		for _, child := range n.Else {
			if t.hasInheritanceDirectivesInNode(child) {
				return true
			}
		}
		for _, elseIf := range n.ElseIfs {
			if t.hasInheritanceDirectivesInNode(elseIf) {
				return true
			}
		}

	// Add more node types that might contain super() calls
	case parser.ExpressionNode:
		// Handle any other expression nodes generically
		// This catches cases where super() might be nested in other expressions
		if _, isSuperNode := n.(*parser.SuperNode); isSuperNode {
			return true
		}
	}
	return false
}

// environmentAdapter adapts Environment to runtime.EnvironmentInterface
type environmentAdapter struct {
	env *Environment
}

func (a *environmentAdapter) GetTemplate(name string) (runtime.TemplateInterface, error) {
	template, err := a.env.GetTemplate(name)
	if err != nil {
		return nil, err
	}
	return &templateAdapter{template: template}, nil
}

func (a *environmentAdapter) GetLoader() interface{} {
	return a.env.GetLoader()
}

// templateAdapter adapts Template to runtime.TemplateInterface
type templateAdapter struct {
	template *Template
}

func (a *templateAdapter) AST() *parser.TemplateNode {
	return a.template.GetASTAsTemplateNode()
}

func (a *templateAdapter) Name() string {
	return a.template.Name()
}
