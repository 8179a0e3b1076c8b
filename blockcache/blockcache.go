// Package blockcache implements the hash-indexed store of rendered
// site-scoped template blocks used for incremental rebuilds (spec 4.8),
// grounded on bengal/rendering/block_cache.py.
package blockcache

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kida-ssg/kida/introspect"
	"github.com/kida-ssg/kida/parser"
)

// Renderer is the minimal contract the cache needs from a compiled
// template to warm and re-warm blocks, avoiding any import of the root
// kida package (which would create a cycle).
type Renderer interface {
	RenderBlock(name string, context RenderContext) (string, error)
	TemplateMetadata() *introspect.Metadata
	GetASTAsTemplateNode() *parser.TemplateNode
}

// RenderContext is the minimal context contract RenderBlock needs.
type RenderContext interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	All() map[string]interface{}
}

// Engine resolves a compiled template by name, analogous to
// Environment.GetTemplate in the root package.
type Engine interface {
	GetTemplate(name string) (Renderer, error)
}

// Cache is a concurrent-safe store of rendered site-scoped blocks plus
// their AST fingerprints, keyed by "template:block" (spec 3, 4.8).
type Cache struct {
	logger *zap.Logger

	siteBlocksMu sync.RWMutex
	siteBlocks   map[string]string // "template:block" -> rendered HTML

	hashesMu     sync.RWMutex
	blockHashes  map[string]string // "template:block" -> 16-char fingerprint

	cacheableMu sync.RWMutex
	cacheable   map[string]map[string]introspect.Scope // template -> block -> scope

	statsMu sync.Mutex
	stats   Stats

	hits    prometheus.Counter
	misses  prometheus.Counter
	rewarms prometheus.Counter
}

// Stats tracks cache activity for observability (spec 4.8).
type Stats struct {
	Hits        int
	Misses      int
	Warmed      int
	Rewarmed    int
	SitesBlocks int
}

// Option configures a Cache at construction.
type Option func(*Cache)

// WithLogger attaches a zap logger for cache diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New creates an empty block cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		logger:      zap.NewNop(),
		siteBlocks:  make(map[string]string),
		blockHashes: make(map[string]string),
		cacheable:   make(map[string]map[string]introspect.Scope),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kida_block_cache_hits_total",
			Help: "Number of block cache hits.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kida_block_cache_misses_total",
			Help: "Number of block cache misses.",
		}),
		rewarms: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kida_block_cache_rewarms_total",
			Help: "Number of block rewarm operations.",
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collectors returns the cache's prometheus collectors so a host process
// can register them without the core depending on an HTTP exporter.
func (c *Cache) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.hits, c.misses, c.rewarms}
}

func key(template, block string) string {
	return template + ":" + block
}

// AnalyzeTemplate memoizes get_cacheable_blocks for a template (spec 4.8).
func (c *Cache) AnalyzeTemplate(engine Engine, templateName string) (map[string]introspect.Scope, error) {
	c.cacheableMu.RLock()
	if scopes, ok := c.cacheable[templateName]; ok {
		c.cacheableMu.RUnlock()
		return scopes, nil
	}
	c.cacheableMu.RUnlock()

	tmpl, err := engine.GetTemplate(templateName)
	if err != nil {
		return nil, fmt.Errorf("analyze template %q: %w", templateName, err)
	}
	meta := tmpl.TemplateMetadata()
	scopes := meta.GetCacheableBlocks()

	c.cacheableMu.Lock()
	c.cacheable[templateName] = scopes
	c.cacheableMu.Unlock()

	return scopes, nil
}

// WarmSiteBlocks renders every site-scoped block not already cached and
// stores it, returning the count warmed (spec 4.8).
func (c *Cache) WarmSiteBlocks(engine Engine, templateName string, siteContext RenderContext) (int, error) {
	scopes, err := c.AnalyzeTemplate(engine, templateName)
	if err != nil {
		return 0, err
	}

	tmpl, err := engine.GetTemplate(templateName)
	if err != nil {
		return 0, err
	}

	warmed := 0
	for blockName, scope := range scopes {
		if scope != introspect.ScopeSite {
			continue
		}
		k := key(templateName, blockName)
		c.siteBlocksMu.RLock()
		_, exists := c.siteBlocks[k]
		c.siteBlocksMu.RUnlock()
		if exists {
			continue
		}

		html, err := tmpl.RenderBlock(blockName, siteContext)
		if err != nil {
			c.logger.Warn("warm site block failed", zap.String("template", templateName), zap.String("block", blockName), zap.Error(err))
			continue
		}
		c.Set(templateName, blockName, html, scope)
		warmed++
	}

	c.statsMu.Lock()
	c.stats.Warmed += warmed
	c.statsMu.Unlock()

	c.logger.Debug("warmed site blocks", zap.String("template", templateName), zap.Int("count", warmed))
	return warmed, nil
}

// Get returns a cached block's HTML, if present.
func (c *Cache) Get(templateName, blockName string) (string, bool) {
	c.siteBlocksMu.RLock()
	html, ok := c.siteBlocks[key(templateName, blockName)]
	c.siteBlocksMu.RUnlock()

	c.statsMu.Lock()
	if ok {
		c.stats.Hits++
		c.hits.Inc()
	} else {
		c.stats.Misses++
		c.misses.Inc()
	}
	c.statsMu.Unlock()

	return html, ok
}

// Set stores a rendered block's HTML under the given scope.
func (c *Cache) Set(templateName, blockName, html string, scope introspect.Scope) {
	c.siteBlocksMu.Lock()
	c.siteBlocks[key(templateName, blockName)] = html
	c.siteBlocksMu.Unlock()

	c.cacheableMu.Lock()
	if c.cacheable[templateName] == nil {
		c.cacheable[templateName] = make(map[string]introspect.Scope)
	}
	c.cacheable[templateName][blockName] = scope
	c.cacheableMu.Unlock()
}

// Clear empties the rendered-block store. When preserveHashes is true,
// block_hashes survive for the next incremental run (spec 3, 4.8).
func (c *Cache) Clear(preserveHashes bool) {
	c.siteBlocksMu.Lock()
	c.siteBlocks = make(map[string]string)
	c.siteBlocksMu.Unlock()

	if !preserveHashes {
		c.hashesMu.Lock()
		c.blockHashes = make(map[string]string)
		c.hashesMu.Unlock()
	}

	c.statsMu.Lock()
	c.stats = Stats{}
	c.statsMu.Unlock()
}

// GetStats returns a snapshot of cache statistics.
func (c *Cache) GetStats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.siteBlocksMu.RLock()
	defer c.siteBlocksMu.RUnlock()
	s := c.stats
	s.SitesBlocks = len(c.siteBlocks)
	return s
}

// IsCacheable reports whether a block is eligible for caching.
func (c *Cache) IsCacheable(templateName, blockName string) bool {
	c.cacheableMu.RLock()
	defer c.cacheableMu.RUnlock()
	scopes, ok := c.cacheable[templateName]
	if !ok {
		return false
	}
	_, ok = scopes[blockName]
	return ok
}

// ComputeBlockHashes walks the template's AST and returns a 16-char
// fingerprint per block, derived from a canonical depth-first
// serialization of node types, Data text, and referenced identifier
// names (never line/column) (spec 4.8).
func (c *Cache) ComputeBlockHashes(engine Engine, templateName string) (map[string]string, error) {
	tmpl, err := engine.GetTemplate(templateName)
	if err != nil {
		return nil, fmt.Errorf("compute block hashes %q: %w", templateName, err)
	}
	tn := tmpl.GetASTAsTemplateNode()
	if tn == nil {
		return map[string]string{}, nil
	}

	hashes := make(map[string]string)
	for _, blockName := range collectBlockNames(tn.Children) {
		block := findBlock(tn.Children, blockName)
		if block == nil {
			continue
		}
		hashes[blockName] = fingerprint(block)
	}
	return hashes, nil
}

func fingerprint(block *parser.BlockNode) string {
	var parts []string
	var visit func(n parser.Node)
	visit = func(n parser.Node) {
		if n == nil {
			return
		}
		parts = append(parts, nodeTypeTag(n))
		switch v := n.(type) {
		case *parser.TextNode:
			parts = append(parts, v.Content)
		case *parser.IdentifierNode:
			parts = append(parts, v.Name)
		case *parser.LiteralNode:
			parts = append(parts, fmt.Sprintf("%v", v.Value))
		case *parser.BlockNode:
			for _, c := range v.Body {
				visit(c)
			}
		case *parser.IfNode:
			visit(v.Condition)
			for _, c := range v.Body {
				visit(c)
			}
			for _, e := range v.ElseIfs {
				visit(e)
			}
			for _, c := range v.Else {
				visit(c)
			}
		case *parser.ForNode:
			visit(v.Iterable)
			for _, c := range v.Body {
				visit(c)
			}
			for _, c := range v.Else {
				visit(c)
			}
		case *parser.VariableNode:
			visit(v.Expression)
		case *parser.AttributeNode:
			visit(v.Object)
			parts = append(parts, v.Attribute)
		case *parser.FilterNode:
			visit(v.Expression)
			parts = append(parts, v.FilterName)
			for _, a := range v.Arguments {
				visit(a)
			}
		}
	}
	visit(block)

	content := ""
	for i, p := range parts {
		if i > 0 {
			content += "|"
		}
		content += p
	}
	sum := xxhash.Sum64String(content)
	return fmt.Sprintf("%016x", sum)[:16]
}

func nodeTypeTag(n parser.Node) string {
	return fmt.Sprintf("%T", n)
}

// DetectChangedBlocks compares current fingerprints to stored ones and
// returns blocks whose fingerprints differ, updating the stored map
// atomically per block (spec 4.8, 4.9).
func (c *Cache) DetectChangedBlocks(engine Engine, templateName string) (map[string]bool, error) {
	current, err := c.ComputeBlockHashes(engine, templateName)
	if err != nil {
		return nil, err
	}

	changed := make(map[string]bool)
	c.hashesMu.Lock()
	defer c.hashesMu.Unlock()
	for blockName, currentHash := range current {
		k := key(templateName, blockName)
		if c.blockHashes[k] != currentHash {
			changed[blockName] = true
			c.blockHashes[k] = currentHash
		}
	}
	return changed, nil
}

// UpdateBlockHashes populates the stored fingerprint map without
// reporting which blocks changed (spec 4.8).
func (c *Cache) UpdateBlockHashes(engine Engine, templateName string) error {
	current, err := c.ComputeBlockHashes(engine, templateName)
	if err != nil {
		return err
	}
	c.hashesMu.Lock()
	defer c.hashesMu.Unlock()
	for blockName, h := range current {
		c.blockHashes[key(templateName, blockName)] = h
	}
	return nil
}

// BlockHashesSnapshot returns a copy of the persisted fingerprint map for
// serialization into the surrounding build cache (spec 6).
func (c *Cache) BlockHashesSnapshot() map[string]string {
	c.hashesMu.RLock()
	defer c.hashesMu.RUnlock()
	out := make(map[string]string, len(c.blockHashes))
	for k, v := range c.blockHashes {
		out[k] = v
	}
	return out
}

// LoadBlockHashes restores a persisted fingerprint map (spec 6).
func (c *Cache) LoadBlockHashes(hashes map[string]string) {
	c.hashesMu.Lock()
	defer c.hashesMu.Unlock()
	c.blockHashes = make(map[string]string, len(hashes))
	for k, v := range hashes {
		c.blockHashes[k] = v
	}
}

func collectBlockNames(nodes []parser.Node) []string {
	var names []string
	var walk func([]parser.Node)
	walk = func(ns []parser.Node) {
		for _, n := range ns {
			switch b := n.(type) {
			case *parser.BlockNode:
				names = append(names, b.Name)
				walk(b.Body)
			case *parser.IfNode:
				walk(b.Body)
				walk(b.Else)
				for _, e := range b.ElseIfs {
					walk(e.Body)
				}
			case *parser.ForNode:
				walk(b.Body)
				walk(b.Else)
			}
		}
	}
	walk(nodes)
	return names
}

func findBlock(nodes []parser.Node, name string) *parser.BlockNode {
	var found *parser.BlockNode
	var walk func([]parser.Node)
	walk = func(ns []parser.Node) {
		for _, n := range ns {
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
				for _, e := range b.ElseIfs {
					walk(e.Body)
				}
			case *parser.ForNode:
				walk(b.Body)
				walk(b.Else)
			}
		}
	}
	walk(nodes)
	return found
}
