package contract

import (
	"regexp"
	"strings"
)

// There is no real module linkage inside an isolate, so tana imports are
// rewritten into destructuring calls against the __tanaImport shim and export
// keywords are stripped. The rewrite is line-by-line and applies equally to
// precompiled and source forms.
var (
	importPattern = regexp.MustCompile(`^\s*import\s+\{([^}]+)\}\s+from\s+["'](tana/[^"']+)["'];?\s*$`)
	exportPattern = regexp.MustCompile(`^(\s*)export\s+`)
)

// RewriteModules prepares contract source for execution. Lines matching
// neither pattern pass through unchanged.
func RewriteModules(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		if m := importPattern.FindStringSubmatch(line); m != nil {
			names := strings.TrimSpace(m[1])
			spec := strings.TrimSpace(m[2])
			lines[i] = "const {" + names + "} = __tanaImport('" + spec + "');"
			continue
		}
		lines[i] = exportPattern.ReplaceAllString(line, "$1")
	}
	return strings.Join(lines, "\n")
}
