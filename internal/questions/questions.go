// Package questions holds the local multilingual question bank used when the
// extraction service does not supply a localized question for a field.
package questions

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"voice-intake/internal/forms"
	"voice-intake/internal/lang"
)

//go:embed questions.yaml
var embedded []byte

const defaultGeneric = "Please provide your {field}"

// Source records where a resolved prompt came from.
type Source string

const (
	SourceService Source = "service"
	SourceBank    Source = "bank"
	SourceGeneric Source = "generic"
)

// Prompt is the question text shown for one missing field.
type Prompt struct {
	Field  string `json:"field"`
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Bank is an immutable (field, language) -> prompt table. Safe for concurrent use.
type Bank struct {
	generic string
	retry   map[string]string
	rows    map[string]map[string]string
}

type bankFile struct {
	Generic     string                       `yaml:"generic"`
	RetryPrefix map[string]string            `yaml:"retry_prefix"`
	Questions   map[string]map[string]string `yaml:"questions"`
}

// Default returns the bank compiled into the binary.
func Default() *Bank {
	b, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("questions: embedded bank: %v", err))
	}
	return b
}

// Load reads a YAML bank from path.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return Parse(data)
}

// Parse builds a bank from YAML. Language keys are normalized; blank prompts are skipped.
func Parse(data []byte) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if len(f.Questions) == 0 {
		return nil, errors.New("question bank has no questions")
	}
	b := &Bank{
		generic: strings.TrimSpace(f.Generic),
		retry:   map[string]string{},
		rows:    make(map[string]map[string]string, len(f.Questions)),
	}
	if b.generic == "" {
		b.generic = defaultGeneric
	}
	for code, text := range f.RetryPrefix {
		if lang.IsSupported(code) && strings.TrimSpace(text) != "" {
			b.retry[lang.Normalize(code)] = strings.TrimSpace(text)
		}
	}
	for field, byLang := range f.Questions {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		row := map[string]string{}
		for code, text := range byLang {
			if !lang.IsSupported(code) {
				return nil, fmt.Errorf("question bank: field %q: unsupported language %q", field, code)
			}
			if t := strings.TrimSpace(text); t != "" {
				row[lang.Normalize(code)] = t
			}
		}
		if len(row) > 0 {
			b.rows[field] = row
		}
	}
	return b, nil
}

// Lookup returns the bank prompt for field in exactly language. A missing row is
// left to the generic template.
func (b *Bank) Lookup(field, language string) (string, bool) {
	row, ok := b.rows[strings.TrimSpace(field)]
	if !ok {
		return "", false
	}
	text, ok := row[lang.Normalize(language)]
	return text, ok
}

// Generic renders the fallback template for field.
func (b *Bank) Generic(field string) string {
	return strings.ReplaceAll(b.generic, "{field}", forms.HumanizeField(field))
}

// Resolve picks the prompt for missing[index]: the service question at index if present,
// then the bank row for (field, language), then the generic template.
func (b *Bank) Resolve(suggested []string, index int, field, language string) Prompt {
	if index >= 0 && index < len(suggested) {
		if text := strings.TrimSpace(suggested[index]); text != "" {
			return Prompt{Field: field, Text: text, Source: SourceService}
		}
	}
	if text, ok := b.Lookup(field, language); ok {
		return Prompt{Field: field, Text: text, Source: SourceBank}
	}
	return Prompt{Field: field, Text: b.Generic(field), Source: SourceGeneric}
}

// Retry prefixes prompt with the localized "did not understand" notice.
func (b *Bank) Retry(prompt, language string) string {
	prefix, ok := b.retry[lang.Normalize(language)]
	if !ok {
		prefix, ok = b.retry[lang.Default]
	}
	if !ok || strings.HasPrefix(prompt, prefix) {
		return prompt
	}
	return prefix + " " + prompt
}

// Fields lists every field with at least one row, sorted.
func (b *Bank) Fields() []string {
	out := make([]string, 0, len(b.rows))
	for f := range b.rows {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Languages lists every language that appears in any row, sorted.
func (b *Bank) Languages() []string {
	seen := map[string]struct{}{}
	for _, row := range b.rows {
		for code := range row {
			seen[code] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Rows returns a copy of the per-language prompts for field.
func (b *Bank) Rows(field string) map[string]string {
	row := b.rows[strings.TrimSpace(field)]
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
