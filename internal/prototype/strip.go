// Package prototype turns LLM-generated component code into a previewable page.
//
// Generated code is trusted as-is: it is never executed on the server. The server
// only rewrites and syntax-checks it; execution happens in the browser inside an
// iframe sandboxed with allow-scripts and no same-origin access.
package prototype

import (
	"regexp"
	"strings"
)

var (
	openFence       = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	importLine      = regexp.MustCompile(`^\s*import\s`)
	importFrom      = regexp.MustCompile(`\sfrom\s+['"][^'"]+['"]\s*;?\s*$|^\s*import\s+['"][^'"]+['"]\s*;?\s*$`)
	exportDefaultID = regexp.MustCompile(`^\s*export\s+default\s+[A-Za-z_$][\w$]*\s*;?\s*$`)
	exportList      = regexp.MustCompile(`^\s*export\s*\{[^}]*\}\s*;?\s*$`)
	exportDefault   = regexp.MustCompile(`^(\s*)export\s+default\s+`)
	exportNamed     = regexp.MustCompile(`^(\s*)export\s+((?:async\s+)?function|const|let|var|class)\b`)
)

// TrimFences removes a surrounding markdown code fence and outer whitespace.
func TrimFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = openFence.ReplaceAllString(s, "")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Strip drops module syntax the browser-side evaluator cannot handle: code fences,
// import statements (including multi-line ones), export-default re-exports and
// export lists.
// "export default function App" keeps its declaration.
func Strip(code string) string {
	lines := strings.Split(TrimFences(code), "\n")
	out := make([]string, 0, len(lines))

	inImport := false
	for _, line := range lines {
		if inImport {
			if importFrom.MatchString(line) || strings.HasSuffix(strings.TrimSpace(line), ";") {
				inImport = false
			}
			continue
		}
		if importLine.MatchString(line) {
			if !importFrom.MatchString(line) && !strings.HasSuffix(strings.TrimSpace(line), ";") {
				inImport = true
			}
			continue
		}
		if exportDefaultID.MatchString(line) || exportList.MatchString(line) {
			continue
		}
		line = exportDefault.ReplaceAllString(line, "$1")
		line = exportNamed.ReplaceAllString(line, "$1$2")
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// IsHTMLDocument reports whether content is a complete HTML page rather than component code.
func IsHTMLDocument(content string) bool {
	head := strings.ToLower(strings.TrimSpace(TrimFences(content)))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
