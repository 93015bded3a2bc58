package main

import (
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

type indexEntry struct {
	Name    string
	Href    string
	Size    int64
	ModTime time.Time
}

type indexData struct {
	Captures    []indexEntry
	Unsupported []string
}

type detailData struct {
	Name     string
	FuncName string
	Stats    template.HTML
	Callers  template.HTML
	Callees  template.HTML
}

var tmplFuncs = template.FuncMap{
	"fmtSize": func(n int64) string {
		if n <= 0 {
			return ""
		}
		return humanize.Bytes(uint64(n))
	},
	"fmtAge": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return humanize.Time(t)
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(tmplFuncs).Parse(`<!DOCTYPE html>
<html>
<head><title>Profile Results Index</title></head>
<body>
<h1>Profile Statistics:</h1>
{{if .Captures}}<h3>Loaded captures:</h3>
<pre>{{range .Captures}}<a href="{{.Href}}">{{.Name}}</a>    {{fmtSize .Size}}    {{fmtAge .ModTime}}
{{end}}</pre>
{{end}}{{if .Unsupported}}<h3>Unsupported files:</h3>
<pre>{{range .Unsupported}}{{.}}
{{end}}</pre>
{{end}}</body>
</html>
`))

var detailTmpl = template.Must(template.New("detail").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Name}} | Profile Results</title></head>
<body>
<p><a href="/">all captures</a></p>
<pre>{{.Stats}}</pre>
{{if .FuncName}}<h2>Called By:</h2>
<pre>{{.Callers}}</pre>
<h2>Called:</h2>
<pre>{{.Callees}}</pre>
{{end}}</body>
</html>
`))

func renderIndex(w http.ResponseWriter, data indexData) { render(w, indexTmpl, data) }

func renderDetail(w http.ResponseWriter, data detailData) { render(w, detailTmpl, data) }

func render(w http.ResponseWriter, t *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
