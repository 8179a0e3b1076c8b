package incremental

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kida-ssg/kida/blockcache"
	"github.com/kida-ssg/kida/introspect"
	"github.com/kida-ssg/kida/lexer"
	"github.com/kida-ssg/kida/parser"
)

type fakeTemplate struct {
	ast  *parser.TemplateNode
	meta *introspect.Metadata
}

func (f *fakeTemplate) RenderBlock(name string, ctx blockcache.RenderContext) (string, error) {
	return "<rendered:" + name + ">", nil
}
func (f *fakeTemplate) TemplateMetadata() *introspect.Metadata        { return f.meta }
func (f *fakeTemplate) GetASTAsTemplateNode() *parser.TemplateNode { return f.ast }

type fakeEngine struct {
	templates map[string]*fakeTemplate
	paths     map[string]string
}

func (e *fakeEngine) GetTemplate(name string) (blockcache.Renderer, error) {
	t, ok := e.templates[name]
	if !ok {
		return nil, assertErr{name}
	}
	return t, nil
}

func (e *fakeEngine) ListTemplates() []string {
	names := make([]string, 0, len(e.templates))
	for n := range e.templates {
		names = append(names, n)
	}
	return names
}

func (e *fakeEngine) GetTemplatePath(name string) (string, bool) {
	p, ok := e.paths[name]
	return p, ok
}

type assertErr struct{ name string }

func (e assertErr) Error() string { return "no such template: " + e.name }

type fakeBuildCache struct {
	affected map[string][]string
}

func (b *fakeBuildCache) GetAffectedPages(templatePath string) []string {
	return b.affected[templatePath]
}

func parse(t *testing.T, source string) *parser.TemplateNode {
	t.Helper()
	l := lexer.NewLexer(source, nil)
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	p := parser.NewParser(tokens)
	ast, err := p.Parse()
	require.NoError(t, err)
	return ast
}

func newFakeTemplate(t *testing.T, source string) *fakeTemplate {
	ast := parse(t, source)
	return &fakeTemplate{ast: ast, meta: introspect.Analyze(ast)}
}

func TestDecideSiteScopedOnlySkipsPages(t *testing.T) {
	base := newFakeTemplate(t, `{% block nav %}{{ site.title }}{% end %}`)
	engine := &fakeEngine{templates: map[string]*fakeTemplate{"base.html": base}, paths: map[string]string{"base.html": "/templates/base.html"}}

	cache := blockcache.New()
	require.NoError(t, cache.UpdateBlockHashes(engine, "base.html"))

	changed := newFakeTemplate(t, `{% block nav %}{{ site.updated_title }}{% end %}`)
	engine.templates["base.html"] = changed

	detector := NewDetector(cache, nil)
	buildCache := &fakeBuildCache{affected: map[string][]string{}}
	decisionEngine := NewDecisionEngine(detector, cache, buildCache, engine, nil)

	decision := decisionEngine.Decide("base.html", "/templates/base.html")
	assert.True(t, decision.SkipAllPages)
	assert.True(t, decision.BlocksToRewarm["nav"])
	assert.Empty(t, decision.PagesToRebuild)
}

func TestDecidePageScopedTriggersRebuild(t *testing.T) {
	base := newFakeTemplate(t, `{% block content %}{{ page.title }}{% end %}`)
	engine := &fakeEngine{templates: map[string]*fakeTemplate{"page.html": base}, paths: map[string]string{"page.html": "/templates/page.html"}}

	cache := blockcache.New()
	require.NoError(t, cache.UpdateBlockHashes(engine, "page.html"))

	changed := newFakeTemplate(t, `{% block content %}{{ page.updated_title }}{% end %}`)
	engine.templates["page.html"] = changed

	detector := NewDetector(cache, nil)
	buildCache := &fakeBuildCache{affected: map[string][]string{"/templates/page.html": {"/out/a.html", "/out/b.html"}}}
	decisionEngine := NewDecisionEngine(detector, cache, buildCache, engine, nil)

	decision := decisionEngine.Decide("page.html", "/templates/page.html")
	assert.False(t, decision.SkipAllPages)
	assert.Len(t, decision.PagesToRebuild, 2)
}

func TestDecideNoChangeSkipsEverything(t *testing.T) {
	base := newFakeTemplate(t, `{% block nav %}{{ site.title }}{% end %}`)
	engine := &fakeEngine{templates: map[string]*fakeTemplate{"base.html": base}, paths: map[string]string{"base.html": "/templates/base.html"}}

	cache := blockcache.New()
	require.NoError(t, cache.UpdateBlockHashes(engine, "base.html"))

	detector := NewDetector(cache, nil)
	buildCache := &fakeBuildCache{affected: map[string][]string{}}
	decisionEngine := NewDecisionEngine(detector, cache, buildCache, engine, nil)

	decision := decisionEngine.Decide("base.html", "/templates/base.html")
	assert.True(t, decision.SkipAllPages)
	assert.Empty(t, decision.BlocksToRewarm)
}

func TestDecideChildOverrideForcesPageRebuild(t *testing.T) {
	base := newFakeTemplate(t, `{% block nav %}{{ site.title }}{% end %}`)
	child := newFakeTemplate(t, `{% extends "base.html" %}{% block nav %}override{% end %}`)
	engine := &fakeEngine{
		templates: map[string]*fakeTemplate{"base.html": base, "child.html": child},
		paths:     map[string]string{"base.html": "/templates/base.html", "child.html": "/templates/child.html"},
	}

	cache := blockcache.New()
	require.NoError(t, cache.UpdateBlockHashes(engine, "base.html"))

	changedBase := newFakeTemplate(t, `{% block nav %}{{ site.new_title }}{% end %}`)
	engine.templates["base.html"] = changedBase

	detector := NewDetector(cache, nil)
	buildCache := &fakeBuildCache{affected: map[string][]string{"/templates/child.html": {"/out/c.html"}}}
	decisionEngine := NewDecisionEngine(detector, cache, buildCache, engine, nil)

	decision := decisionEngine.Decide("base.html", "/templates/base.html")
	assert.False(t, decision.SkipAllPages)
	assert.Contains(t, decision.ChildTemplates, "child.html")
	assert.Contains(t, decision.PagesToRebuild, "/out/c.html")
}
