package lint

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"sqlbridge/internal/diag"
	"sqlbridge/internal/runner"
)

// maxCacheEntries bounds the on-disk cache; the oldest entries are evicted
// past this point.
const maxCacheEntries = 512

// Cache remembers lint results keyed by document content and linter
// configuration, so re-opening an unchanged file skips a process spawn.
// The cache persists between sessions as a msgpack file under the user
// cache directory.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]cacheEntry
}

type cacheEntry struct {
	Diagnostics []diag.Diagnostic `msgpack:"diagnostics"`
	Stamp       time.Time         `msgpack:"stamp"`
}

// OpenCache loads the persistent cache, creating an empty one when the file
// is missing or unreadable. A corrupt cache file is discarded, never fatal.
func OpenCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]cacheEntry)}
	raw, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var entries map[string]cacheEntry
	if err := msgpack.Unmarshal(raw, &entries); err != nil {
		return c
	}
	c.entries = entries
	return c
}

// DefaultCachePath places the cache under the user cache directory; empty
// when the platform offers none.
func DefaultCachePath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "sqlbridge", "results.msgpack")
}

// Get returns the cached diagnostics for key.
func (c *Cache) Get(key string) ([]diag.Diagnostic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry.Diagnostics, true
}

// Put stores diagnostics for key and persists the cache best-effort.
func (c *Cache) Put(key string, diags []diag.Diagnostic) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{Diagnostics: diags, Stamp: time.Now()}
	c.evictLocked()
	raw, err := msgpack.Marshal(c.entries)
	path := c.path
	c.mu.Unlock()
	if err != nil || path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(path, raw, 0o644)
}

func (c *Cache) evictLocked() {
	if len(c.entries) <= maxCacheEntries {
		return
	}
	type aged struct {
		key   string
		stamp time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, stamp: e.Stamp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].stamp.Before(all[j].stamp) })
	for _, a := range all[:len(all)-maxCacheEntries] {
		delete(c.entries, a.key)
	}
}

// cacheKey hashes the document content together with everything that
// changes the answer: the exact invocation (command, arguments including
// the resolved config file) and the severity floor applied afterwards.
func cacheKey(opts runner.Options, minSeverity diag.Severity, text string) string {
	h := sha256.New()
	h.Write([]byte(opts.Command))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(opts.Args, "\x00")))
	h.Write([]byte{0, byte(minSeverity), 0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
