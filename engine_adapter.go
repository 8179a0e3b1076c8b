package kida

import (
	"github.com/kida-ssg/kida/blockcache"
	"github.com/kida-ssg/kida/incremental"
	"github.com/kida-ssg/kida/introspect"
	"github.com/kida-ssg/kida/parser"
)

// BlockEngine adapts an Environment to blockcache.Engine and
// incremental.TemplateEngine, the minimal surfaces those packages need
// without importing the root package (which would cycle back here).
type BlockEngine struct {
	env *Environment
}

// NewBlockEngine wraps env for use with blockcache.Cache and
// incremental.DecisionEngine.
func NewBlockEngine(env *Environment) *BlockEngine {
	return &BlockEngine{env: env}
}

func (b *BlockEngine) GetTemplate(name string) (blockcache.Renderer, error) {
	tmpl, err := b.env.GetTemplate(name)
	if err != nil {
		return nil, err
	}
	return &templateRenderer{tmpl: tmpl}, nil
}

func (b *BlockEngine) ListTemplates() []string {
	names, err := b.env.ListTemplates()
	if err != nil {
		return nil
	}
	return names
}

func (b *BlockEngine) GetTemplatePath(name string) (string, bool) {
	resolver, ok := b.env.GetLoader().(interface{ ResolveTemplateName(string) string })
	if !ok {
		return name, true
	}
	return resolver.ResolveTemplateName(name), true
}

// templateRenderer adapts *Template to blockcache.Renderer, converting
// between the root Context type and blockcache.RenderContext.
type templateRenderer struct {
	tmpl *Template
}

func (t *templateRenderer) RenderBlock(name string, ctx blockcache.RenderContext) (string, error) {
	return t.tmpl.RenderBlock(name, &renderContextAdapter{ctx})
}

func (t *templateRenderer) TemplateMetadata() *introspect.Metadata {
	return t.tmpl.TemplateMetadata()
}

func (t *templateRenderer) GetASTAsTemplateNode() *parser.TemplateNode {
	return t.tmpl.GetASTAsTemplateNode()
}

// renderContextAdapter lets a blockcache.RenderContext (e.g. a
// site-wide globals map) satisfy the root Context interface for
// RenderBlock, without pulling Push/Pop/Clone support it doesn't need.
type renderContextAdapter struct {
	inner blockcache.RenderContext
}

func (r *renderContextAdapter) Get(key string) (interface{}, bool) { return r.inner.Get(key) }
func (r *renderContextAdapter) Set(key string, value interface{})  { r.inner.Set(key, value) }
func (r *renderContextAdapter) All() map[string]interface{}        { return r.inner.All() }
func (r *renderContextAdapter) Push() Context                      { return r }
func (r *renderContextAdapter) Pop() Context                       { return r }
func (r *renderContextAdapter) GetEnv() *Environment                { return nil }
func (r *renderContextAdapter) Clone() Context                      { return r }

var _ incremental.TemplateEngine = (*BlockEngine)(nil)
