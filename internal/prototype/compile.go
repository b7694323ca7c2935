package prototype

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// FactoryName is the global the compiled module assigns its component factory to.
const FactoryName = "__genesisFactory"

// Hooks bound into the component's scope, in factory argument order.
var Hooks = []string{"useState", "useEffect", "useRef", "useMemo", "useCallback"}

const wrapperHeaderLines = 1

// EvaluationError describes code that could not be turned into a component.
type EvaluationError struct {
	Message string
	Line    int
	Column  int
}

func (e *EvaluationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return e.Message
}

// Wrap places the stripped component body in a factory that receives React and
// the hooks and returns App.
func Wrap(body string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "var %s = function (React, %s) {\n", FactoryName, strings.Join(Hooks, ", "))
	sb.WriteString(body)
	sb.WriteString("\nif (typeof App === \"undefined\") { throw new Error(\"component App is not defined\"); }\n")
	sb.WriteString("return App;\n};\n")
	return sb.String()
}

// Compile strips, wraps and JSX-transforms code into plain JavaScript defining
// FactoryName. Syntax errors come back as *EvaluationError.
func Compile(code string) (string, error) {
	body := Strip(code)
	if body == "" {
		return "", &EvaluationError{Message: "no component code"}
	}

	result := api.Transform(Wrap(body), api.TransformOptions{
		Loader:      api.LoaderJSX,
		JSXFactory:  "React.createElement",
		JSXFragment: "React.Fragment",
		Target:      api.ES2018,
		Sourcefile:  "App.jsx",
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		evalErr := &EvaluationError{Message: msg.Text}
		if msg.Location != nil {
			evalErr.Line = max(msg.Location.Line-wrapperHeaderLines, 1)
			evalErr.Column = msg.Location.Column
		}
		return "", evalErr
	}
	return string(result.Code), nil
}
