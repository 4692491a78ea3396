package openai

import (
	_ "embed"
	"fmt"
	"strings"

	"voice-intake/internal/forms"
	"voice-intake/internal/lang"
	"voice-intake/internal/llm"
)

var (
	//go:embed prompts/extract.txt
	extractTemplate string
	//go:embed prompts/interpret.txt
	interpretTemplate string
)

// Message represents an OpenAI chat message.
type Message struct {
	Role    string
	Content string
}

// SystemPrompt is shared by every provider that reuses these prompts.
const SystemPrompt = "You are a legal intake assistant. Respond with JSON only. No markdown. Output must match the requested keys exactly."

// BuildExtractPrompt creates the chat messages for intent and field extraction.
func BuildExtractPrompt(catalog *forms.Catalog, req llm.ExtractionRequest) []Message {
	hint := strings.TrimSpace(req.LanguageHint)
	if hint == "" {
		hint = "auto"
	}
	developer := strings.NewReplacer(
		"{{CATALOG}}", describeCatalog(catalog),
		"{{LANGUAGE_HINT}}", hint,
		"{{LANGUAGES}}", strings.Join(lang.Supported(), ", "),
	).Replace(extractTemplate)

	return []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "developer", Content: developer},
		{Role: "user", Content: fmt.Sprintf("Transcript:\n%s", req.Transcript)},
	}
}

// BuildInterpretPrompt creates the chat messages for a single-field answer.
func BuildInterpretPrompt(req llm.InterpretRequest) []Message {
	developer := strings.NewReplacer(
		"{{FIELD_NAME}}", req.FieldName,
		"{{FIELD_HINT}}", req.FieldHint,
		"{{LANGUAGE}}", lang.Name(req.Language),
	).Replace(interpretTemplate)

	return []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "developer", Content: developer},
		{Role: "user", Content: fmt.Sprintf("Answer:\n%s", req.Transcript)},
	}
}

func describeCatalog(catalog *forms.Catalog) string {
	if catalog == nil {
		return "(none)"
	}
	var b strings.Builder
	for _, doc := range catalog.List() {
		fmt.Fprintf(&b, "%s (%s):\n", doc.ID, doc.Title)
		for _, f := range doc.Fields {
			mark := ""
			if f.Required {
				mark = "*"
			}
			fmt.Fprintf(&b, "  - %s%s: %s\n", f.Name, mark, f.Help)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
