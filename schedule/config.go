package schedule

import (
	"io"
	"log/slog"
	"time"
)

// EngineConfig holds configuration options for the schedule engine
type EngineConfig struct {
	// Logger receives diagnostics such as skipped time specs. Discarded when nil.
	Logger *slog.Logger

	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig
}

// DefaultEngineConfig caches generated schedules for a short while, which suits
// request handlers that render the same patient's calendar repeatedly.
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,
}

// HighTrafficConfig keeps more entries around for longer
var HighTrafficConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
}

// NewEngineWithConfig creates a new schedule engine with custom configuration
func NewEngineWithConfig(config EngineConfig) *Engine {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var cache *GenerationCache
	if config.CacheEnabled {
		cache = NewGenerationCache(config.CacheConfig)
	}

	return &Engine{
		cache:  cache,
		config: config,
		logger: config.Logger,
	}
}
