package kida

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kida-ssg/kida/lexer"
)

// bytecodeFormatVersion changes whenever the shape of cacheEntry changes,
// so stale entries from a previous build of this module are discarded
// rather than gob-decoded into the wrong shape.
const bytecodeFormatVersion = "kida-bc-v1"

// BytecodeCache maps a (template name, source) pair to its tokenized form,
// so a host process can skip the lexer across restarts (spec §4.6, §6).
// It caches the token stream rather than the parsed AST: every AST node's
// source position lives in an unexported baseNode field (parser/ast.go),
// which a generic encoder like gob silently drops from a value it didn't
// construct via the node's own constructor — reloading a gob-decoded AST
// would report every error at line 0. lexer.Token carries Line/Column as
// plain exported fields, so caching tokens and re-running the (cheap,
// allocation-light) parser on a hit preserves exact error positions while
// still skipping the more expensive regex-driven lexing pass. Corrupted or
// format-stale entries are treated as misses, not surfaced as errors.
type BytecodeCache interface {
	Get(templateName, source string) ([]*lexer.Token, bool)
	Put(templateName, source string, tokens []*lexer.Token) error
}

// cacheEntry is the on-disk payload: a header a reader can sanity-check
// before trusting the token bytes that follow it.
type cacheEntry struct {
	FormatVersion string
	HostVersion   string
	TemplateName  string
	SourceHash    string
	Tokens        []lexer.Token
}

// FileBytecodeCache is a filesystem-backed BytecodeCache keyed by a
// sanitized template name plus a short xxhash of the source, consistent
// with the pack's hashing convention for cache keys (see DESIGN.md
// Ambient stack). Writes go through a temp file and afero.Fs.Rename so a
// reader never observes a partially written entry.
type FileBytecodeCache struct {
	fs     afero.Fs
	dir    string
	logger *zap.Logger
}

// NewFileBytecodeCache creates a bytecode cache rooted at dir on fs,
// defaulting to the OS filesystem when fs is nil. dir is created lazily
// on first Put.
func NewFileBytecodeCache(fs afero.Fs, dir string) *FileBytecodeCache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileBytecodeCache{fs: fs, dir: dir, logger: zap.NewNop()}
}

// WithBytecodeCacheLogger attaches a zap logger for eviction/corruption
// diagnostics.
func (c *FileBytecodeCache) WithBytecodeCacheLogger(logger *zap.Logger) *FileBytecodeCache {
	if logger != nil {
		c.logger = logger
	}
	return c
}

func sanitizeTemplateName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", string(filepath.Separator), "_")
	return replacer.Replace(name)
}

func (c *FileBytecodeCache) sourceHash(source string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(source))
}

func (c *FileBytecodeCache) entryPath(templateName, source string) string {
	fileName := fmt.Sprintf("%s.%s.kbc", sanitizeTemplateName(templateName), c.sourceHash(source))
	return filepath.Join(c.dir, fileName)
}

// Get returns the cached tokens for (templateName, source), discarding and
// reporting a miss for any entry that fails to decode or whose header
// doesn't match the current format/host version — spec's "corrupted
// cache entries must be discarded, not surfaced".
func (c *FileBytecodeCache) Get(templateName, source string) ([]*lexer.Token, bool) {
	path := c.entryPath(templateName, source)

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.discard(path, "read_failed", err)
		return nil, false
	}

	var entry cacheEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		c.discard(path, "decode_failed", err)
		return nil, false
	}

	expectedHash := c.sourceHash(source)
	if entry.FormatVersion != bytecodeFormatVersion || entry.HostVersion != runtime.Version() ||
		entry.TemplateName != templateName || entry.SourceHash != expectedHash {
		c.discard(path, "stale_header", nil)
		return nil, false
	}

	tokens := make([]*lexer.Token, len(entry.Tokens))
	for i := range entry.Tokens {
		t := entry.Tokens[i]
		tokens[i] = &t
	}
	return tokens, true
}

// Put persists tokens for (templateName, source) using a temp-file-then-
// rename write so a concurrent reader never sees a half-written file.
func (c *FileBytecodeCache) Put(templateName, source string, tokens []*lexer.Token) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating bytecode cache dir %q: %w", c.dir, err)
	}

	flat := make([]lexer.Token, len(tokens))
	for i, t := range tokens {
		flat[i] = *t
	}

	entry := cacheEntry{
		FormatVersion: bytecodeFormatVersion,
		HostVersion:   runtime.Version(),
		TemplateName:  templateName,
		SourceHash:    c.sourceHash(source),
		Tokens:        flat,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&entry); err != nil {
		return fmt.Errorf("encoding bytecode cache entry for %q: %w", templateName, err)
	}

	finalPath := c.entryPath(templateName, source)
	tmpPath := finalPath + ".tmp"

	if err := afero.WriteFile(c.fs, tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing bytecode cache temp file for %q: %w", templateName, err)
	}
	if err := c.fs.Rename(tmpPath, finalPath); err != nil {
		_ = c.fs.Remove(tmpPath)
		return fmt.Errorf("renaming bytecode cache entry for %q: %w", templateName, err)
	}
	return nil
}

func (c *FileBytecodeCache) discard(path, reason string, err error) {
	c.logger.Warn("bytecode_cache_entry_discarded",
		zap.String("path", path), zap.String("reason", reason), zap.Error(err))
	_ = c.fs.Remove(path)
}
