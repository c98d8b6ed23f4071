package mcpserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erraggy/oasengine/engine"
	"github.com/erraggy/oasengine/parser"
)

// contractInput is how a tool receives a contract. Exactly one of File or
// Content must be set.
type contractInput struct {
	File    string `json:"file,omitempty"    jsonschema:"Path to an OpenAPI 3.x contract on disk"`
	Content string `json:"content,omitempty" jsonschema:"Inline contract content (JSON or YAML)"`
}

// cacheEntry holds a compiled engine with LRU ordering and TTL expiry.
type cacheEntry struct {
	engine    *engine.Engine
	insertAt  time.Time
	expiresAt time.Time
}

// engineCacheStore caches compiled engines for the session. File inputs are
// keyed by (absolutePath, modTime), content inputs by a SHA-256 hash.
type engineCacheStore struct {
	mu             sync.Mutex
	entries        map[string]*cacheEntry
	maxSize        int
	sweeperStarted atomic.Bool
}

var engineCache = &engineCacheStore{
	entries: make(map[string]*cacheEntry),
	maxSize: cfg.CacheMaxSize,
}

// get returns a cached engine or nil. Expired entries are lazily removed.
func (c *engineCacheStore) get(key string) *engine.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil
	}
	e.insertAt = time.Now()
	return e.engine
}

// put stores an engine, evicting the least recently used entry at capacity.
func (c *engineCacheStore) put(key string, eng *engine.Engine, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry := &cacheEntry{engine: eng, insertAt: now, expiresAt: now.Add(ttl)}
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.insertAt.Before(oldest) {
				oldestKey, oldest = k, e.insertAt
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = entry
}

func (c *engineCacheStore) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// startSweeper removes expired entries every interval until ctx is done.
// Only the first call starts a sweeper.
func (c *engineCacheStore) startSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || !c.sweeperStarted.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.sweeperStarted.Store(false)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// reset clears all cached entries. Used in tests.
func (c *engineCacheStore) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

func (c *engineCacheStore) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (in contractInput) cacheKey() string {
	switch {
	case in.File != "":
		abs, err := filepath.Abs(in.File)
		if err != nil {
			return ""
		}
		info, err := os.Stat(abs)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("file:%s:%d", abs, info.ModTime().UnixNano())
	case in.Content != "":
		h := sha256.Sum256([]byte(in.Content))
		return "content:" + hex.EncodeToString(h[:])
	}
	return ""
}

// resolve returns the compiled engine for the input, compiling it on a
// cache miss.
func (in contractInput) resolve() (*engine.Engine, error) {
	if (in.File == "") == (in.Content == "") {
		return nil, fmt.Errorf("exactly one of file or content must be provided")
	}
	if int64(len(in.Content)) > cfg.MaxInlineSize {
		return nil, fmt.Errorf("inline content size %d bytes exceeds maximum %d bytes; use file input instead, or set OASENGINE_MAX_INLINE_SIZE to increase",
			len(in.Content), cfg.MaxInlineSize)
	}

	var key string
	ttl := cfg.CacheContentTTL
	if cfg.CacheEnabled {
		key = in.cacheKey()
		if in.File != "" {
			ttl = cfg.CacheFileTTL
		}
		if key != "" {
			if eng := engineCache.get(key); eng != nil {
				return eng, nil
			}
		}
	}

	var (
		doc *parser.Document
		err error
	)
	if in.File != "" {
		doc, err = parser.ParseFile(in.File)
	} else {
		doc, err = parser.ParseWithOptions(parser.WithBytes([]byte(in.Content)), parser.WithSourceName("content"))
	}
	if err != nil {
		return nil, err
	}
	eng, err := compileSimulated(doc)
	if err != nil {
		return nil, err
	}
	if key != "" {
		engineCache.put(key, eng, ttl)
	}
	return eng, nil
}
