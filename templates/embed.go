package templates

import "embed"

//go:embed email/*.tmpl
var EmailTemplateFS embed.FS
