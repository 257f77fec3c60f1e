// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// ClassifySystemPrompt is the system instruction for single-image classification.
//
//go:embed prompts/classify-system.txt
var ClassifySystemPrompt string

//go:embed prompts/classify.txt
var classifyTemplate string

//go:embed prompts/detect.txt
var detectTemplate string

// template.Must panics on malformed templates at startup rather than at call time.
var (
	classifyPromptTmpl = template.Must(template.New("classify").Parse(classifyTemplate))
	detectPromptTmpl   = template.Must(template.New("detect").Parse(detectTemplate))
)

// PromptData holds the dynamic data injected into prompt templates.
type PromptData struct {
	// Labels is the model vocabulary the answer must be drawn from.
	Labels []string
}

// RenderClassifyPrompt renders the top-1 classification prompt for labels.
func RenderClassifyPrompt(labels []string) string {
	return renderTemplate(classifyPromptTmpl, labels)
}

// RenderDetectPrompt renders the bounding-box detection prompt for labels.
func RenderDetectPrompt(labels []string) string {
	return renderTemplate(detectPromptTmpl, labels)
}

func renderTemplate(tmpl *template.Template, labels []string) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, PromptData{Labels: labels})
	return buf.String()
}
