package incremental

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kida-ssg/kida/blockcache"
)

// BuildCache resolves which pages depend on a template path, supplied by
// the host site builder (spec 4.9).
type BuildCache interface {
	GetAffectedPages(templatePath string) []string
}

// TemplateEngine is the introspection surface the decision engine needs
// beyond blockcache.Engine: enumerating loaded templates and resolving a
// template name to its source file path.
type TemplateEngine interface {
	blockcache.Engine
	ListTemplates() []string
	GetTemplatePath(name string) (string, bool)
}

// RebuildDecision is the outcome of evaluating a single template change
// (spec 4.9).
type RebuildDecision struct {
	BlocksToRewarm map[string]bool
	PagesToRebuild map[string]bool
	SkipAllPages   bool
	Reason         string
	ChildTemplates map[string]bool
}

func newDecision() RebuildDecision {
	return RebuildDecision{
		BlocksToRewarm: map[string]bool{},
		PagesToRebuild: map[string]bool{},
		ChildTemplates: map[string]bool{},
	}
}

// DecisionEngine decides whether a template change requires page
// rebuilds or can be satisfied by re-warming site-scoped blocks alone.
type DecisionEngine struct {
	detector   *Detector
	cache      *blockcache.Cache
	buildCache BuildCache
	engine     TemplateEngine
	logger     *zap.Logger

	mu                sync.Mutex
	inheritanceCache map[string]map[string]bool
}

// NewDecisionEngine wires the detector, block cache, build cache, and
// template engine needed to evaluate rebuild decisions.
func NewDecisionEngine(detector *Detector, cache *blockcache.Cache, buildCache BuildCache, engine TemplateEngine, logger *zap.Logger) *DecisionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionEngine{
		detector:         detector,
		cache:            cache,
		buildCache:       buildCache,
		engine:           engine,
		logger:           logger,
		inheritanceCache: make(map[string]map[string]bool),
	}
}

// Decide evaluates a template change and returns what must be rebuilt
// (spec 4.9). On any analysis failure it falls back to the conservative
// file-level result: rebuild every page the build cache attributes to
// templatePath.
func (e *DecisionEngine) Decide(templateName, templatePath string) RebuildDecision {
	changes, err := e.detector.DetectAndClassify(e.engine, templateName)
	if err != nil {
		return e.conservativeFallback(templateName, templatePath, err)
	}

	children := e.childTemplates(templateName)

	if changes.IsEmpty() {
		e.logger.Debug("rebuild_decision_no_changes", zap.String("template", templateName))
		d := newDecision()
		d.SkipAllPages = true
		d.Reason = "no block content changed"
		return d
	}

	if changes.OnlySiteScoped() {
		overrides := e.childOverrides(children, changes.SiteScoped)
		if len(overrides) > 0 {
			affected := e.affectedPagesFromTemplates(overrides)
			e.logger.Debug("rebuild_decision_child_overrides",
				zap.String("template", templateName), zap.Int("affected_pages", len(affected)))
			d := newDecision()
			d.BlocksToRewarm = changes.SiteScoped
			d.PagesToRebuild = affected
			d.Reason = fmt.Sprintf("child templates override changed blocks: %v", sortedKeys(overrides))
			d.ChildTemplates = overrides
			return d
		}

		e.logger.Info("rebuild_decision_site_scoped_only",
			zap.String("template", templateName), zap.Int("blocks", len(changes.SiteScoped)))
		d := newDecision()
		d.BlocksToRewarm = changes.SiteScoped
		d.SkipAllPages = true
		d.Reason = fmt.Sprintf("only site-scoped blocks changed: %v", sortedKeys(changes.SiteScoped))
		return d
	}

	affected := e.affectedPages(templatePath)
	e.logger.Debug("rebuild_decision_page_scoped",
		zap.String("template", templateName),
		zap.Int("page_scoped", len(changes.PageScoped)),
		zap.Int("unknown_scoped", len(changes.UnknownScoped)),
		zap.Int("affected_pages", len(affected)))

	d := newDecision()
	d.BlocksToRewarm = changes.SiteScoped
	d.PagesToRebuild = affected
	d.Reason = fmt.Sprintf("page-scoped blocks changed: %v", sortedKeys(union(changes.PageScoped, changes.UnknownScoped)))
	d.ChildTemplates = children
	return d
}

// conservativeFallback is used when introspection fails for any reason:
// treat the change as file-level and rebuild everything the build cache
// attributes to templatePath (spec 4.9 edge case).
func (e *DecisionEngine) conservativeFallback(templateName, templatePath string, cause error) RebuildDecision {
	e.logger.Warn("rebuild_decision_fallback",
		zap.String("template", templateName), zap.Error(cause))
	d := newDecision()
	d.PagesToRebuild = toSet(e.buildCache.GetAffectedPages(templatePath))
	d.Reason = fmt.Sprintf("block-level analysis failed, falling back to file-level: %v", cause)
	return d
}

func (e *DecisionEngine) childTemplates(parentName string) map[string]bool {
	e.mu.Lock()
	if cached, ok := e.inheritanceCache[parentName]; ok {
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	children := map[string]bool{}
	for _, name := range e.engine.ListTemplates() {
		renderer, err := e.engine.GetTemplate(name)
		if err != nil {
			continue
		}
		meta := renderer.TemplateMetadata()
		if meta != nil && meta.Extends == parentName {
			children[name] = true
		}
	}

	e.mu.Lock()
	e.inheritanceCache[parentName] = children
	e.mu.Unlock()
	return children
}

func (e *DecisionEngine) childOverrides(children, changedBlocks map[string]bool) map[string]bool {
	overriding := map[string]bool{}
	for child := range children {
		renderer, err := e.engine.GetTemplate(child)
		if err != nil {
			// Cannot analyze: assume it might override (conservative).
			overriding[child] = true
			continue
		}
		meta := renderer.TemplateMetadata()
		if meta == nil {
			overriding[child] = true
			continue
		}
		for block := range meta.Blocks {
			if changedBlocks[block] {
				overriding[child] = true
				break
			}
		}
	}
	return overriding
}

func (e *DecisionEngine) affectedPagesFromTemplates(templateNames map[string]bool) map[string]bool {
	affected := map[string]bool{}
	for name := range templateNames {
		path, ok := e.engine.GetTemplatePath(name)
		if !ok {
			continue
		}
		for _, p := range e.buildCache.GetAffectedPages(path) {
			affected[p] = true
		}
	}
	return affected
}

func (e *DecisionEngine) affectedPages(templatePath string) map[string]bool {
	return toSet(e.buildCache.GetAffectedPages(templatePath))
}

// ClearInheritanceCache drops cached parent/child relationships. Call at
// the start of a new build so inheritance changes are picked up.
func (e *DecisionEngine) ClearInheritanceCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inheritanceCache = make(map[string]map[string]bool)
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
