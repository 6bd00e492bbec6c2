package runtime

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/opal-lang/pseudo/runtime/executor"
)

// DefaultCacheSize is the number of validated sources an Engine keeps.
const DefaultCacheSize = 128

// Engine validates and runs programs, caching validation by source
// content. An Engine is safe for concurrent use; parsed programs are
// shared read-only between runs.
type Engine struct {
	logger *slog.Logger
	cache  *validationCache
}

// EngineOpt configures an Engine.
type EngineOpt func(*Engine)

// WithCacheSize bounds the validation cache. Zero disables caching.
func WithCacheSize(n int) EngineOpt {
	return func(e *Engine) {
		if n <= 0 {
			e.cache = nil
			return
		}
		e.cache = newValidationCache(n)
	}
}

// WithEngineLogger sets the logger used for engine and parser events.
func WithEngineLogger(logger *slog.Logger) EngineOpt {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOpt) *Engine {
	e := &Engine{cache: newValidationCache(DefaultCacheSize)}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Validate is Validate with caching.
func (e *Engine) Validate(source string) *ValidationResult {
	return e.validate(source).clone()
}

// Execute is Execute with caching. config.Logger defaults to the engine's.
func (e *Engine) Execute(ctx context.Context, source string, config executor.Config) (*executor.ExecutionResult, error) {
	if config.Logger == nil {
		config.Logger = e.logger
	}
	return run(ctx, e.validate(source), config)
}

// CacheLen reports how many sources are cached.
func (e *Engine) CacheLen() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.len()
}

func (e *Engine) validate(source string) *ValidationResult {
	if e.cache == nil {
		return analyze(source, e.logger)
	}
	key := hashSource(source)
	if v, ok := e.cache.get(key); ok {
		e.logger.Debug("validation cache hit", "key", key[:12])
		return v
	}
	v := analyze(source, e.logger)
	e.cache.put(key, v)
	return v
}

// validationCache maps source digests to validation results.
type validationCache struct {
	mu      sync.RWMutex
	cache   map[string]*ValidationResult
	maxSize int
}

func newValidationCache(maxSize int) *validationCache {
	return &validationCache{
		cache:   make(map[string]*ValidationResult),
		maxSize: maxSize,
	}
}

func (c *validationCache) get(key string) (*ValidationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.cache[key]
	return v, ok
}

func (c *validationCache) put(key string, v *ValidationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple eviction: if cache full, clear it
	if len(c.cache) >= c.maxSize {
		c.cache = make(map[string]*ValidationResult)
	}
	c.cache[key] = v
}

func (c *validationCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// hashSource returns the hex BLAKE2b-256 digest of source.
func hashSource(source string) string {
	sum := blake2b.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
