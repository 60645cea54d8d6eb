package isolate

// Option configures the Engine at creation time.
type Option func(*engineConfig)

type engineConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       bool
	memoryLimitPages uint32 // each page is 64KB; 0 = wazero default
}

func defaultEngineConfig() engineConfig {
	return engineConfig{}
}

// WithDiskCache enables a persistent compilation cache so the QuickJS module
// compiles once across process restarts. Optionally provide a directory;
// otherwise XDG_CACHE_HOME/tana-edge or ~/.cache/tana-edge is used.
func WithDiskCache(dir ...string) Option {
	return func(c *engineConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the QuickJS module at Engine creation instead of on
// the first invocation.
func WithPrecompile() Option {
	return func(c *engineConfig) {
		c.precompile = true
	}
}

// WithMemoryLimit caps the memory available to an isolate, in 64KB pages.
func WithMemoryLimit(pages uint32) Option {
	return func(c *engineConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit16MB  uint32 = 256
	MemoryLimit64MB  uint32 = 1024
	MemoryLimit256MB uint32 = 4096
)
