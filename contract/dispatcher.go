package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tana-dev/tana-edge/capability"
	"github.com/tana-dev/tana-edge/isolate"
)

// Runner executes one program in a fresh isolate.
type Runner interface {
	Run(ctx context.Context, program string, registry *capability.Registry) isolate.Result
}

// Dispatcher drives the per-invocation lifecycle: locate contract source,
// compile if needed, rewrite module imports, invoke the method's entry point
// in a fresh isolate, and extract the structured result.
type Dispatcher struct {
	root     string
	runner   Runner
	registry *capability.Registry
	compiler Compiler
	log      *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithCompiler replaces the default TypeScript compiler.
func WithCompiler(c Compiler) Option {
	return func(d *Dispatcher) { d.compiler = c }
}

// NewDispatcher creates a Dispatcher serving contracts from root.
func NewDispatcher(root string, runner Runner, registry *capability.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		root:     root,
		runner:   runner,
		registry: registry,
		compiler: TypeScriptCompiler{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invocation identifies one contract execution.
type Invocation struct {
	ContractID string
	Method     string // "get" or "post"
	Request    Request
	Body       json.RawMessage // parsed JSON body, POST only
}

// Outcome carries the contract's structured result plus anything the isolate
// wrote outside the capability protocol.
type Outcome struct {
	Response Response
	Output   string
	Duration time.Duration
}

// Invoke runs one contract invocation. Errors are fatal for this invocation
// only; shared services are never left mid-mutation because they only change
// through their own atomic operations.
func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation) (*Outcome, error) {
	method := strings.ToLower(inv.Method)
	if method != "get" && method != "post" {
		return nil, fmt.Errorf("unsupported method: %s", inv.Method)
	}

	source, precompiled, path, err := d.load(inv.ContractID, method)
	if err != nil {
		return nil, err
	}
	d.log.Debug("contract loaded",
		zap.String("contract", inv.ContractID),
		zap.String("path", path),
		zap.Bool("precompiled", precompiled))

	src := RewriteModules(source)
	if !precompiled {
		src, err = d.compiler.Compile(src, filepath.Base(path))
		if err != nil {
			return nil, err
		}
	}

	reqJSON, err := json.Marshal(inv.Request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body := inv.Body
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}

	program := src + "\n" + buildHarness(method, string(reqJSON), string(body))

	res := d.runner.Run(ctx, program, d.registry)
	if res.Err != nil {
		return nil, fmt.Errorf("Failed to execute contract: %w", res.Err)
	}

	payload, rest, ok := isolate.SplitResult(res.Stdout)
	if !ok {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = "no result produced"
		}
		return nil, fmt.Errorf("Failed to get result: %s", msg)
	}

	var resp Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("Failed to parse result: %w", err)
	}
	if resp.Status == 0 {
		resp.Status = 200
	}

	return &Outcome{
		Response: resp,
		Output:   rest + res.Stderr,
		Duration: res.Duration,
	}, nil
}

// Exec runs a standalone script with the full module namespace but no entry
// dispatch. The script may use top-level await; its output is returned as-is.
func (d *Dispatcher) Exec(ctx context.Context, source string, precompiled bool) (string, error) {
	src := RewriteModules(source)
	if !precompiled {
		var err error
		src, err = d.compiler.Compile(src, "script")
		if err != nil {
			return "", err
		}
	}

	program := "(async function() {\n'use strict';\n" + src + "\n})();"

	res := d.runner.Run(ctx, program, d.registry)
	output := res.Stdout + res.Stderr
	if res.Err != nil {
		return output, fmt.Errorf("Failed to execute script: %w", res.Err)
	}
	return output, nil
}

// load finds contract source at {root}/{id}/{method}.{js|ts}, preferring the
// precompiled .js form.
func (d *Dispatcher) load(contractID, method string) (source string, precompiled bool, path string, err error) {
	dir := filepath.Join(d.root, contractID)
	jsPath := filepath.Join(dir, method+".js")
	tsPath := filepath.Join(dir, method+".ts")

	switch {
	case fileExists(jsPath):
		path, precompiled = jsPath, true
	case fileExists(tsPath):
		path, precompiled = tsPath, false
	default:
		return "", false, "", fmt.Errorf("Contract not found: %s", filepath.Join(dir, method))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, "", fmt.Errorf("Failed to read contract: %v", err)
	}
	return string(data), precompiled, path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// buildHarness wraps entry-point dispatch around the contract body. Dispatch
// is strict about the method: a contract without the matching export yields
// the fixed 500 result, not a fallback to the other entry point. The emit
// happens after the await completes, so the result can never be an unresolved
// promise.
func buildHarness(method, reqJSON, bodyJSON string) string {
	var entry, invoke string
	if method == "post" {
		entry = "Post"
		invoke = fmt.Sprintf("await Post(__req, %s)", bodyJSON)
	} else {
		entry = "Get"
		invoke = "await Get(__req)"
	}

	return fmt.Sprintf(`
;(async () => {
  let __result;
  try {
    const __req = new (__tanaImport("tana/net").Request)(%s);
    if (typeof %s === "function") {
      __result = %s;
      if (__result === undefined || __result === null) {
        __result = { status: 500, body: { error: "No result returned" } };
      }
    } else {
      __result = { status: 500, body: { error: "No Get or Post function exported" } };
    }
  } catch (e) {
    __result = { status: 500, body: { error: String((e && e.message) || e) } };
  }
  __tanaEmit(__result);
})();
`, reqJSON, entry, invoke)
}
