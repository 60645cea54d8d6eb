package contract

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Compiler translates contract source into the engine's executable form. The
// dispatcher treats it as an opaque collaborator; failures are fatal for the
// current invocation only.
type Compiler interface {
	Compile(source, name string) (string, error)
}

// TypeScriptCompiler transpiles TypeScript with esbuild, targeting the same
// language level the in-isolate pipeline used before it (ES2020).
type TypeScriptCompiler struct{}

func (TypeScriptCompiler) Compile(source, name string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderTS,
		Target:     api.ES2020,
		Sourcefile: name,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, m := range result.Errors {
			msgs[i] = m.Text
		}
		return "", fmt.Errorf("Failed to compile %s: %s", name, strings.Join(msgs, "; "))
	}
	return string(result.Code), nil
}
