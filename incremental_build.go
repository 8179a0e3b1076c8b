package kida

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kida-ssg/kida/blockcache"
	"github.com/kida-ssg/kida/incremental"
	"github.com/kida-ssg/kida/introspect"
)

// IncrementalBuilder ties an Environment to a block cache and a rebuild
// decision engine, giving a site builder a single entry point for
// block-level change detection across a template watch cycle.
type IncrementalBuilder struct {
	Engine   *BlockEngine
	Cache    *blockcache.Cache
	Decision *incremental.DecisionEngine
	Watcher  *incremental.Watcher
}

// IncrementalBuilderOption configures NewIncrementalBuilder.
type IncrementalBuilderOption func(*incrementalBuilderConfig)

type incrementalBuilderConfig struct {
	logger     *zap.Logger
	fs         afero.Fs
	dirs       []string
	fileExt    string
	buildCache incremental.BuildCache
	fileCache  incremental.FileCache
	pathToName incremental.PathToName
}

// WithBuildLogger sets the zap logger shared by the block cache, the
// decision engine, and the watcher.
func WithBuildLogger(logger *zap.Logger) IncrementalBuilderOption {
	return func(c *incrementalBuilderConfig) { c.logger = logger }
}

// WithWatchDirs configures the template directories and filesystem the
// watcher scans for changed files. fs defaults to the OS filesystem.
func WithWatchDirs(fs afero.Fs, fileExt string, dirs ...string) IncrementalBuilderOption {
	return func(c *incrementalBuilderConfig) {
		c.fs = fs
		c.fileExt = fileExt
		c.dirs = dirs
	}
}

// WithBuildCache supplies the host's file-level affected-pages index,
// used when a template change can't be classified at block granularity
// (analysis failure) or when it's page/unknown scoped.
func WithBuildCache(bc incremental.BuildCache) IncrementalBuilderOption {
	return func(c *incrementalBuilderConfig) { c.buildCache = bc }
}

// WithFileCache supplies the host's file-level change tracker, consulted
// by the watcher before block-level analysis runs at all.
func WithFileCache(fc incremental.FileCache) IncrementalBuilderOption {
	return func(c *incrementalBuilderConfig) { c.fileCache = fc }
}

// WithPathToName supplies the function mapping a watched file path to
// the template name the Environment knows it by.
func WithPathToName(fn incremental.PathToName) IncrementalBuilderOption {
	return func(c *incrementalBuilderConfig) { c.pathToName = fn }
}

// NewIncrementalBuilder wires env's compiled templates to a block cache
// and rebuild decision engine. The returned Watcher is nil unless
// WithWatchDirs, WithFileCache, and WithPathToName are all supplied.
func NewIncrementalBuilder(env *Environment, opts ...IncrementalBuilderOption) *IncrementalBuilder {
	cfg := &incrementalBuilderConfig{logger: zap.NewNop(), fs: afero.NewOsFs(), fileExt: ".html"}
	for _, opt := range opts {
		opt(cfg)
	}

	blockEngine := NewBlockEngine(env)
	cache := blockcache.New(blockcache.WithLogger(cfg.logger))
	detector := incremental.NewDetector(cache, cfg.logger)

	buildCache := cfg.buildCache
	if buildCache == nil {
		buildCache = noopBuildCache{}
	}
	decisionEngine := incremental.NewDecisionEngine(detector, cache, buildCache, blockEngine, cfg.logger)

	ib := &IncrementalBuilder{
		Engine:   blockEngine,
		Cache:    cache,
		Decision: decisionEngine,
	}

	if cfg.fileCache != nil && cfg.pathToName != nil && len(cfg.dirs) > 0 {
		ib.Watcher = incremental.NewWatcher(cfg.fs, cfg.dirs, cfg.fileExt, cfg.fileCache, cfg.pathToName,
			incremental.WithDecisionEngine(decisionEngine),
			incremental.WithLogger(cfg.logger),
			incremental.WithRewarmFunc(func(templateName string, blocks map[string]bool) error {
				renderer, err := blockEngine.GetTemplate(templateName)
				if err != nil {
					return err
				}
				scopes, err := cache.AnalyzeTemplate(blockEngine, templateName)
				if err != nil {
					return err
				}
				for block := range blocks {
					html, err := renderer.RenderBlock(block, emptyRenderContext{})
					if err != nil {
						return err
					}
					scope := scopes[block]
					if scope == "" {
						scope = introspect.ScopeUnknown
					}
					cache.Set(templateName, block, html, scope)
				}
				return nil
			}),
		)
	}

	return ib
}

// noopBuildCache is used when the host doesn't supply a file-level
// affected-pages index; conservative fallbacks then report no pages,
// leaving full-rebuild decisions to the host's own safety net.
type noopBuildCache struct{}

func (noopBuildCache) GetAffectedPages(templatePath string) []string { return nil }

// emptyRenderContext is the rendering context used to warm blocks that
// only reference site-scoped data; site globals are expected to already
// be registered on the Environment via AddGlobal.
type emptyRenderContext struct{}

func (emptyRenderContext) Get(key string) (interface{}, bool) { return nil, false }
func (emptyRenderContext) Set(key string, value interface{})  {}
func (emptyRenderContext) All() map[string]interface{}        { return nil }
