package isolate

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	quickjswasi "github.com/paralin/go-quickjs-wasi"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/tana-dev/tana-edge/capability"
)

//go:embed stdlib.js
var stdlib string

// Result holds the output of one isolate run.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error
}

// Engine owns the wazero runtime and the compiled QuickJS module. Each Run
// instantiates a fresh module, so no engine state survives from one invocation
// to the next.
type Engine struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled wazero.CompiledModule
	mu       sync.Mutex
	closed   bool
}

// NewEngine creates an Engine. The QuickJS module is compiled on first use
// unless precompiled via options.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error
	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	e := &Engine{runtime: rt, cache: cache}

	if cfg.precompile {
		if _, err := e.getCompiled(ctx); err != nil {
			e.Close()
			return nil, err
		}
	}

	return e, nil
}

// Run executes program in a fresh isolate. The guest bootstrap is prepended,
// so by the time program runs, the tana module namespace exists and the
// ambient engine globals are gone. Host calls made by the guest dispatch
// through registry.
func (e *Engine) Run(ctx context.Context, program string, registry *capability.Registry) Result {
	start := time.Now()

	compiled, err := e.getCompiled(ctx)
	if err != nil {
		return Result{Err: err, Duration: time.Since(start)}
	}

	var stdout bytes.Buffer
	stdinReader, stdinWriter := io.Pipe()
	protocol := newProtocolHandler(ctx, registry, stdinWriter)

	full := stdlib + "\n" + program

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(protocol).
		WithStdin(stdinReader).
		WithArgs("qjs", "--std", "-e", full).
		WithName("")

	errCh := make(chan error, 1)
	go func() {
		_, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		stdinWriter.Close()
		errCh <- err
	}()

	err = <-errCh
	protocol.close()

	result := Result{
		Stdout:   stdout.String(),
		Stderr:   protocol.Stderr(),
		Duration: time.Since(start),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Err = fmt.Errorf("timeout after %v", result.Duration.Round(time.Millisecond))
		} else {
			result.Err = fmt.Errorf("execution failed: %w", err)
		}
	}

	return result
}

func (e *Engine) getCompiled(ctx context.Context) (wazero.CompiledModule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.compiled != nil {
		return e.compiled, nil
	}

	compiled, err := e.runtime.CompileModule(ctx, quickjswasi.QuickJSWASM)
	if err != nil {
		return nil, fmt.Errorf("compile quickjs: %w", err)
	}
	e.compiled = compiled
	return compiled, nil
}

// Close releases all resources held by the Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "tana-edge")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "tana-edge")
	}
	return filepath.Join(os.TempDir(), "tana-edge-cache")
}
