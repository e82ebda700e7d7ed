package share

import (
	_ "embed"
	"html/template"
)

//go:embed page.html.tmpl
var pageSource string

// PageTemplateName is the name the router renders for the public share page.
const PageTemplateName = "share_page"

// PageTemplate returns the parsed template for the public share page.
func PageTemplate() *template.Template {
	return template.Must(template.New(PageTemplateName).Parse(pageSource))
}
