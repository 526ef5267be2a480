// Package report renders comparison answers and run history.
package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	"text/template"

	"github.com/FranksOps/pricewise/internal/analyzer"
	"gopkg.in/yaml.v3"
)

// Output formats understood by WriteAnswer.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatHTML = "html"
	FormatYAML = "yaml"
)

// WriteAnswer renders ans in the named format.
func WriteAnswer(w io.Writer, format string, ans *analyzer.FinalAnswer) error {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return WriteJSON(w, ans)
	case FormatText:
		return WriteText(w, ans)
	case FormatHTML:
		return WriteHTML(w, ans)
	case FormatYAML, "yml":
		return WriteYAML(w, ans)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// WriteJSON writes the answer in its API shape.
func WriteJSON(w io.Writer, ans *analyzer.FinalAnswer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ans); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteYAML writes the answer with the same field names as WriteJSON.
func WriteYAML(w io.Writer, ans *analyzer.FinalAnswer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ans); err != nil {
		return fmt.Errorf("report: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("report: encode yaml: %w", err)
	}
	return nil
}

func usd(v any) string {
	switch p := v.(type) {
	case float64:
		return analyzer.FormatUSD(p)
	case *float64:
		if p == nil {
			return "n/a"
		}
		return analyzer.FormatUSD(*p)
	default:
		return fmt.Sprint(v)
	}
}

func prices(ps []float64) string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = analyzer.FormatUSD(p)
	}
	return strings.Join(out, ", ")
}

var funcs = map[string]any{
	"usd":    usd,
	"prices": prices,
	"inc":    func(i int) int { return i + 1 },
}

const textTmpl = `{{.Description}}

Predicted price:  {{.PredictedPrice}}
Market price:     {{.MarketPrice}}
{{- with .Statistics}}{{if .HasData}}
Market range:     {{usd .Min}} - {{usd .Max}} across {{.SourceCount}} source(s)
{{- end}}{{end}}
{{- with .Comparison}}
Difference:       {{usd .Delta}} ({{.Assessment}})
{{- end}}

Sources:
{{- range $i, $s := .Sources}}
  {{inc $i}}. {{if $s.Title}}{{$s.Title}}{{else}}{{$s.URL}}{{end}}
     {{$s.URL}}
     prices: {{prices $s.Prices}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable answer.
func WriteText(w io.Writer, ans *analyzer.FinalAnswer) error {
	t, err := template.New("textAnswer").Funcs(funcs).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}
	if err := t.Execute(w, ans); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Price Comparison</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  .within_range { color: green; }
  .outside_range { color: #c60; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Price Comparison</h1>
  <p>{{.Description}}</p>

  <div class="stat-card">
    <div>Predicted Price</div>
    <div class="stat-val">{{.PredictedPrice}}</div>
  </div>
  <div class="stat-card">
    <div>Market Price</div>
    <div class="stat-val">{{.MarketPrice}}</div>
  </div>
  {{- with .Statistics}}{{if .HasData}}
  <div class="stat-card">
    <div>Market Range</div>
    <div class="stat-val">{{usd .Min}} - {{usd .Max}}</div>
  </div>
  {{- end}}{{end}}
  {{- with .Comparison}}
  <div class="stat-card">
    <div>Assessment</div>
    <div class="stat-val {{.Assessment}}">{{.Assessment}}</div>
  </div>
  {{- end}}

  <h3>Sources</h3>
  <table>
    <tr><th>Source</th><th>Prices</th></tr>
    {{- range .Sources}}
    <tr><td><a href="{{.URL}}">{{if .Title}}{{.Title}}{{else}}{{.URL}}{{end}}</a></td><td>{{prices .Prices}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// WriteHTML writes a standalone HTML page. Titles and URLs come from
// fetched pages and are escaped.
func WriteHTML(w io.Writer, ans *analyzer.FinalAnswer) error {
	t, err := htmltemplate.New("htmlAnswer").Funcs(funcs).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}
	if err := t.Execute(w, ans); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
