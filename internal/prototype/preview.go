package prototype

import (
	"bytes"
	"errors"
	"html/template"
	"strings"

	"github.com/aicoe-genesis/genesis-backend/internal/projects/domain"
)

const (
	ViewLive   = "live"
	ViewSource = "source"
)

// React UMD builds loaded inside the sandboxed frame.
const (
	reactURL    = "https://unpkg.com/react@18.3.1/umd/react.production.min.js"
	reactDOMURL = "https://unpkg.com/react-dom@18.3.1/umd/react-dom.production.min.js"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; font-family: system-ui, sans-serif; }
.frame { border: 0; width: 100%; height: 100vh; display: block; }
.doc { max-width: 860px; margin: 0 auto; padding: 24px; line-height: 1.55; }
.error { margin: 24px; padding: 16px; border: 1px solid #e5484d; border-radius: 6px; background: #fff1f1; color: #a1191c; }
.error pre { white-space: pre-wrap; }
.source { padding: 16px; overflow: auto; }
</style>
</head>
<body>
{{- if .Error}}
<div class="error"><strong>Preview failed</strong><pre>{{.Error}}</pre></div>
{{- end}}
{{- if .Frame}}
<iframe class="frame" sandbox="allow-scripts" referrerpolicy="no-referrer" srcdoc="{{.Frame}}"></iframe>
{{- end}}
{{- if .Body}}
<div class="{{.BodyClass}}">{{.Body}}</div>
{{- end}}
</body>
</html>
`))

var frameTmpl = template.Must(template.New("frame").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { margin: 0; }
#genesis-error { display: none; margin: 24px; padding: 16px; border: 1px solid #e5484d; border-radius: 6px; background: #fff1f1; color: #a1191c; font-family: system-ui, sans-serif; white-space: pre-wrap; }
</style>
<script src="{{.React}}"></script>
<script src="{{.ReactDOM}}"></script>
</head>
<body>
<div id="root"></div>
<div id="genesis-error"></div>
<script>
function showError(msg) {
  var el = document.getElementById("genesis-error");
  el.textContent = "Preview failed\n" + msg;
  el.style.display = "block";
}
window.addEventListener("error", function (e) { showError(String(e.message)); });
</script>
<script>{{.Code}}</script>
<script>
(function () {
  try {
    var App = {{.Factory}}(React, {{.HookArgs}});
    class Boundary extends React.Component {
      constructor(props) { super(props); this.state = { error: null }; }
      static getDerivedStateFromError(error) { return { error: error }; }
      componentDidCatch(error) { showError(String(error && error.message || error)); }
      render() { return this.state.error ? null : this.props.children; }
    }
    ReactDOM.createRoot(document.getElementById("root"))
      .render(React.createElement(Boundary, null, React.createElement(App)));
  } catch (err) {
    showError(String(err && err.message || err));
  }
})();
</script>
</body>
</html>
`))

type page struct {
	Title     string
	Error     string
	Frame     string
	Body      template.HTML
	BodyClass string
}

type frame struct {
	React    string
	ReactDOM string
	Code     template.JS
	Factory  template.JS
	HookArgs template.JS
}

// Render builds the preview page for an artifact. Compile errors are rendered into
// the page as an error panel; the returned error is only for template failures.
func Render(a *domain.Artifact, view string) ([]byte, error) {
	p := page{Title: a.ArtifactType + " preview"}

	switch {
	case view == ViewSource:
		lang := "markdown"
		if a.ArtifactType == domain.ArtifactPrototype {
			lang = "jsx"
			if IsHTMLDocument(a.Content) {
				lang = "html"
			}
		}
		src, err := Highlight(a.Content, lang)
		if err != nil {
			return nil, err
		}
		p.Body = template.HTML(src)
		p.BodyClass = "source"

	case a.ArtifactType != domain.ArtifactPrototype:
		doc, err := RenderMarkdown(a.Content)
		if err != nil {
			return nil, err
		}
		p.Body = template.HTML(doc)
		p.BodyClass = "doc"

	case IsHTMLDocument(a.Content):
		p.Frame = TrimFences(a.Content)

	default:
		doc, err := componentFrame(a.Content)
		if err != nil {
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				return nil, err
			}
			p.Error = evalErr.Error()
			break
		}
		p.Frame = doc
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func componentFrame(code string) (string, error) {
	compiled, err := Compile(code)
	if err != nil {
		return "", err
	}

	args := make([]string, len(Hooks))
	for i, h := range Hooks {
		args[i] = "React." + h
	}

	var buf bytes.Buffer
	err = frameTmpl.Execute(&buf, frame{
		React:    reactURL,
		ReactDOM: reactDOMURL,
		// a "</script" inside a string literal would end the element early
		Code:     template.JS(strings.ReplaceAll(compiled, "</script", "<\\/script")),
		Factory:  template.JS(FactoryName),
		HookArgs: template.JS(strings.Join(args, ", ")),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
