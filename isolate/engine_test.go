package isolate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tana-dev/tana-edge/capability"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(WithDiskCache(t.TempDir()))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineEmitsResult(t *testing.T) {
	e := newTestEngine(t)

	res := e.Run(context.Background(), `__tanaEmit({ status: 200, body: { ok: true } });`, capability.NewRegistry())
	if res.Err != nil {
		t.Fatalf("run: %v\nstderr: %s", res.Err, res.Stderr)
	}

	payload, _, ok := SplitResult(res.Stdout)
	if !ok {
		t.Fatalf("no result marker in stdout: %q", res.Stdout)
	}
	if !strings.Contains(payload, `"status":200`) {
		t.Errorf("payload = %q", payload)
	}
}

func TestEngineHostCall(t *testing.T) {
	e := newTestEngine(t)

	registry := capability.NewRegistry()
	registry.Register("sum", func(ctx context.Context, args map[string]any) (any, error) {
		total := 0.0
		for _, n := range args["nums"].([]any) {
			total += n.(float64)
		}
		return total, nil
	})

	program := `
const { sum } = __tanaImport('tana/core');
__tanaEmit({ total: sum([1, 2, 3]) });
`
	res := e.Run(context.Background(), program, registry)
	if res.Err != nil {
		t.Fatalf("run: %v\nstderr: %s", res.Err, res.Stderr)
	}

	payload, _, ok := SplitResult(res.Stdout)
	if !ok {
		t.Fatalf("no result marker in stdout: %q", res.Stdout)
	}
	if !strings.Contains(payload, `"total":6`) {
		t.Errorf("payload = %q", payload)
	}
}

func TestEngineFetchHelper(t *testing.T) {
	e := newTestEngine(t)

	registry := capability.NewRegistry()
	registry.Register("fetch", func(ctx context.Context, args map[string]any) (any, error) {
		return `{"n": 7}`, nil
	})

	program := `
const { fetch } = __tanaImport('tana/utils');
(async () => {
  const resp = await fetch("https://tana.dev/x");
  const parsed = await resp.json();
  __tanaEmit({ n: parsed.n, shape: Object.keys(resp).sort() });
})();
`
	res := e.Run(context.Background(), program, registry)
	if res.Err != nil {
		t.Fatalf("run: %v\nstderr: %s", res.Err, res.Stderr)
	}

	payload, _, ok := SplitResult(res.Stdout)
	if !ok {
		t.Fatalf("no result marker in stdout: %q", res.Stdout)
	}
	if !strings.Contains(payload, `"n":7`) {
		t.Errorf("payload = %q", payload)
	}
	if !strings.Contains(payload, `"shape":["json","text"]`) {
		t.Errorf("payload = %q, want bare {text, json} response shape", payload)
	}
}

func TestEngineSandboxGlobalsRemoved(t *testing.T) {
	e := newTestEngine(t)

	program := `__tanaEmit({ std: typeof std, os: typeof os, args: typeof scriptArgs });`
	res := e.Run(context.Background(), program, capability.NewRegistry())
	if res.Err != nil {
		t.Fatalf("run: %v\nstderr: %s", res.Err, res.Stderr)
	}

	payload, _, ok := SplitResult(res.Stdout)
	if !ok {
		t.Fatalf("no result marker in stdout: %q", res.Stdout)
	}
	for _, want := range []string{`"std":"undefined"`, `"os":"undefined"`, `"args":"undefined"`} {
		if !strings.Contains(payload, want) {
			t.Errorf("payload = %q, missing %s", payload, want)
		}
	}
}

func TestEngineTimeout(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	res := e.Run(ctx, `for (;;) {}`, capability.NewRegistry())
	if res.Err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(res.Err.Error(), "timeout") {
		t.Errorf("err = %v", res.Err)
	}
}

func TestEngineFreshIsolatePerRun(t *testing.T) {
	e := newTestEngine(t)
	registry := capability.NewRegistry()

	res := e.Run(context.Background(), `globalThis.leak = 1; __tanaEmit({});`, registry)
	if res.Err != nil {
		t.Fatalf("first run: %v", res.Err)
	}

	res = e.Run(context.Background(), `__tanaEmit({ leaked: typeof leak });`, registry)
	if res.Err != nil {
		t.Fatalf("second run: %v", res.Err)
	}
	payload, _, _ := SplitResult(res.Stdout)
	if !strings.Contains(payload, `"leaked":"undefined"`) {
		t.Errorf("state leaked between runs: %q", payload)
	}
}
