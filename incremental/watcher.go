package incremental

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// parallelThreshold is the file count above which template scanning
// switches from sequential to a worker pool, grounded on
// template_detector.py's should_parallelize/IO_BOUND heuristic.
const parallelThreshold = 16

// FileCache reports whether a template file changed since the last
// build and records it as checked, supplied by the host build cache.
type FileCache interface {
	IsChanged(path string) (bool, error)
	UpdateFile(path string) error
	GetAffectedPages(path string) []string
}

// PathToName resolves a template file path to the template name
// registered with the engine (relative to a template root directory).
type PathToName func(path string) (string, bool)

// WatchResult summarizes the outcome of one change-detection pass.
type WatchResult struct {
	ChangedTemplates []string
	PagesToRebuild   map[string]bool
	BlocksRewarmed   int
	PagesSkipped     int
}

func newWatchResult() WatchResult {
	return WatchResult{PagesToRebuild: map[string]bool{}}
}

// Watcher scans one or more template directories through an afero
// filesystem and, where block-level detection is available, skips page
// rebuilds for templates whose only changes were to site-scoped blocks
// (spec 4.10).
type Watcher struct {
	fs        afero.Fs
	dirs      []string
	fileExt   string
	fileCache FileCache
	decision  *DecisionEngine
	pathName  PathToName
	logger    *zap.Logger

	rewarmFn func(templateName string, blocks map[string]bool) error
}

// WatcherOption configures a Watcher at construction.
type WatcherOption func(*Watcher)

// WithDecisionEngine enables block-level detection. Without one, the
// watcher always falls back to file-level rebuilds.
func WithDecisionEngine(d *DecisionEngine) WatcherOption {
	return func(w *Watcher) { w.decision = d }
}

// WithRewarmFunc sets the callback used to re-warm site-scoped blocks
// after a skip-page decision.
func WithRewarmFunc(fn func(templateName string, blocks map[string]bool) error) WatcherOption {
	return func(w *Watcher) { w.rewarmFn = fn }
}

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher builds a template change watcher rooted at dirs, resolving
// a changed file's template name via pathName.
func NewWatcher(fs afero.Fs, dirs []string, fileExt string, fileCache FileCache, pathName PathToName, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		fs:        fs,
		dirs:      dirs,
		fileExt:   fileExt,
		fileCache: fileCache,
		pathName:  pathName,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Check walks the watched directories, classifies every changed
// template, and returns the pages that must be rebuilt (spec 4.10).
func (w *Watcher) Check() (WatchResult, error) {
	files, err := w.collectTemplateFiles()
	if err != nil {
		return WatchResult{}, err
	}

	result := newWatchResult()
	if len(files) == 0 {
		return result, nil
	}

	if len(files) <= parallelThreshold {
		w.checkSequential(files, &result)
	} else {
		w.checkParallel(files, &result)
	}
	return result, nil
}

func (w *Watcher) collectTemplateFiles() ([]string, error) {
	var files []string
	for _, dir := range w.dirs {
		exists, err := afero.DirExists(w.fs, dir)
		if err != nil || !exists {
			continue
		}
		err = afero.Walk(w.fs, dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if strings.HasSuffix(path, w.fileExt) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (w *Watcher) checkSequential(files []string, result *WatchResult) {
	for _, file := range files {
		w.checkOne(file, result)
	}
}

func (w *Watcher) checkParallel(files []string, result *WatchResult) {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				var local WatchResult
				local.PagesToRebuild = map[string]bool{}
				w.checkOne(file, &local)

				mu.Lock()
				result.ChangedTemplates = append(result.ChangedTemplates, local.ChangedTemplates...)
				for p := range local.PagesToRebuild {
					result.PagesToRebuild[p] = true
				}
				result.BlocksRewarmed += local.BlocksRewarmed
				result.PagesSkipped += local.PagesSkipped
				mu.Unlock()
			}
		}()
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)
	wg.Wait()
}

func (w *Watcher) checkOne(file string, result *WatchResult) {
	changed, err := w.fileCache.IsChanged(file)
	if err != nil || !changed {
		return
	}

	templateName, ok := w.pathName(file)

	if ok && w.decision != nil {
		decision := w.decision.Decide(templateName, file)

		if decision.SkipAllPages {
			w.rewarmBlocks(templateName, decision.BlocksToRewarm)
			result.BlocksRewarmed += len(decision.BlocksToRewarm)
			result.PagesSkipped += len(w.fileCache.GetAffectedPages(file))
			w.logger.Info("template_change_block_level",
				zap.String("template", filepath.Base(file)),
				zap.Int("blocks_rewarmed", len(decision.BlocksToRewarm)),
				zap.String("reason", decision.Reason))
			_ = w.fileCache.UpdateFile(file)
			result.ChangedTemplates = append(result.ChangedTemplates, templateName)
			return
		}

		for p := range decision.PagesToRebuild {
			result.PagesToRebuild[p] = true
		}
		if len(decision.BlocksToRewarm) > 0 {
			w.rewarmBlocks(templateName, decision.BlocksToRewarm)
			result.BlocksRewarmed += len(decision.BlocksToRewarm)
		}
	} else {
		for _, p := range w.fileCache.GetAffectedPages(file) {
			result.PagesToRebuild[p] = true
		}
	}

	if ok {
		result.ChangedTemplates = append(result.ChangedTemplates, templateName)
	}
}

// debounceWindow coalesces the burst of fsnotify events a single save
// typically produces (editors often write+chmod+rename) into one Check.
const debounceWindow = 100 * time.Millisecond

// Watch starts an fsnotify-backed live watch of the Watcher's directories
// and runs Check whenever the filesystem settles after a change. The core
// only exposes this hook; the surrounding site builder owns the loop that
// consumes the returned channel and decides what to do with each result.
// Watch requires the watched directories to exist on the real OS
// filesystem — fsnotify cannot observe an in-memory afero.Fs.
func (w *Watcher) Watch(ctx context.Context) (<-chan WatchResult, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range w.dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info == nil || !info.IsDir() {
				return nil
			}
			return fsw.Add(path)
		})
		if err != nil {
			w.logger.Warn("watch_add_dir_failed", zap.String("dir", dir), zap.Error(err))
		}
	}

	results := make(chan WatchResult)

	go func() {
		defer fsw.Close()
		defer close(results)

		var timer *time.Timer
		pending := false

		fire := func() {
			pending = false
			result, err := w.Check()
			if err != nil {
				w.logger.Warn("watch_check_failed", zap.Error(err))
				return
			}
			if len(result.ChangedTemplates) == 0 {
				return
			}
			select {
			case results <- result:
			case <-ctx.Done():
			}
		}

		for {
			var timerC <-chan time.Time
			if timer != nil {
				timerC = timer.C
			}

			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, w.fileExt) {
					continue
				}
				pending = true
				if timer == nil {
					timer = time.NewTimer(debounceWindow)
				} else {
					timer.Reset(debounceWindow)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch_error", zap.Error(err))
			case <-timerC:
				if pending {
					fire()
				}
			}
		}
	}()

	return results, nil
}

func (w *Watcher) rewarmBlocks(templateName string, blocks map[string]bool) {
	if w.rewarmFn == nil || len(blocks) == 0 {
		return
	}
	if err := w.rewarmFn(templateName, blocks); err != nil {
		w.logger.Warn("block_rewarm_failed", zap.String("template", templateName), zap.Error(err))
	}
}
