// Package embed generates the script tag an operator pastes into a
// customer site to activate the widget.
package embed

import "strings"

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&#39;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeAttr HTML-escapes a value for use inside a double-quoted
// attribute.
func EscapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// Options describes one embed snippet. APIBase must not carry a trailing
// slash; WorkflowKey is the slug the widget will request sessions with.
type Options struct {
	APIBase     string
	WorkflowKey string
	Title       string
	Position    string // "left" or "right"
	Primary     string // button color
	Theme       string
	Accent      string
	Radius      string
	Density     string
	Greeting    string
}

// Snippet renders the single <script> tag. Every attribute value is
// HTML-attribute-escaped.
func Snippet(opts Options) string {
	attrs := []string{
		`src="` + EscapeAttr(opts.APIBase) + `/embed.js"`,
		`data-api-base="` + EscapeAttr(opts.APIBase) + `"`,
		`data-workflow="` + EscapeAttr(opts.WorkflowKey) + `"`,
		`data-title="` + EscapeAttr(opts.Title) + `"`,
		`data-position="` + EscapeAttr(opts.Position) + `"`,
		`data-primary="` + EscapeAttr(opts.Primary) + `"`,
		`data-theme="` + EscapeAttr(opts.Theme) + `"`,
		`data-accent="` + EscapeAttr(opts.Accent) + `"`,
		`data-radius="` + EscapeAttr(opts.Radius) + `"`,
		`data-density="` + EscapeAttr(opts.Density) + `"`,
	}
	if opts.Greeting != "" {
		attrs = append(attrs, `data-greeting="`+EscapeAttr(opts.Greeting)+`"`)
	}
	return "<script " + strings.Join(attrs, " ") + "></script>"
}
