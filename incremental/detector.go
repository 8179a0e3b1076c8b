// Package incremental classifies block-level template changes and
// decides what a site builder must rebuild, grounded on
// bengal/orchestration/incremental/{block_detector,rebuild_decision,template_detector}.py.
package incremental

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kida-ssg/kida/blockcache"
	"github.com/kida-ssg/kida/introspect"
)

// BlockChangeSet classifies changed blocks by cache scope.
type BlockChangeSet struct {
	SiteScoped    map[string]bool
	PageScoped    map[string]bool
	UnknownScoped map[string]bool
}

// IsEmpty reports whether no blocks changed.
func (s BlockChangeSet) IsEmpty() bool {
	return len(s.SiteScoped) == 0 && len(s.PageScoped) == 0 && len(s.UnknownScoped) == 0
}

// OnlySiteScoped reports whether only site-scoped blocks changed.
func (s BlockChangeSet) OnlySiteScoped() bool {
	return len(s.SiteScoped) > 0 && len(s.PageScoped) == 0 && len(s.UnknownScoped) == 0
}

func emptyChangeSet() BlockChangeSet {
	return BlockChangeSet{
		SiteScoped:    map[string]bool{},
		PageScoped:    map[string]bool{},
		UnknownScoped: map[string]bool{},
	}
}

// Detector classifies blocks changed in a template by cache scope,
// using a Cache for hash tracking and introspection metadata for scope.
type Detector struct {
	cache  *blockcache.Cache
	logger *zap.Logger
}

// NewDetector builds a change detector backed by cache.
func NewDetector(cache *blockcache.Cache, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{cache: cache, logger: logger}
}

// DetectAndClassify detects changed blocks in templateName and groups
// them by cache scope (spec 4.9).
func (d *Detector) DetectAndClassify(engine blockcache.Engine, templateName string) (BlockChangeSet, error) {
	changed, err := d.cache.DetectChangedBlocks(engine, templateName)
	if err != nil {
		return emptyChangeSet(), fmt.Errorf("detect and classify %q: %w", templateName, err)
	}
	if len(changed) == 0 {
		return emptyChangeSet(), nil
	}

	cacheable, err := d.cache.AnalyzeTemplate(engine, templateName)
	if err != nil {
		return emptyChangeSet(), err
	}

	result := emptyChangeSet()
	for blockName := range changed {
		scope, ok := cacheable[blockName]
		if !ok {
			result.UnknownScoped[blockName] = true
			continue
		}
		switch scope {
		case introspect.ScopeSite:
			result.SiteScoped[blockName] = true
		case introspect.ScopePage:
			result.PageScoped[blockName] = true
		default:
			result.UnknownScoped[blockName] = true
		}
	}

	d.logger.Debug("block_change_classification",
		zap.String("template", templateName),
		zap.Int("site_scoped", len(result.SiteScoped)),
		zap.Int("page_scoped", len(result.PageScoped)),
		zap.Int("unknown_scoped", len(result.UnknownScoped)),
	)

	return result, nil
}
