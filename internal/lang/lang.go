// Package lang normalizes spoken-language codes shared by prompts, speech and the inference clients.
package lang

import "strings"

// Default is used whenever a code is missing, "auto", or unsupported.
const Default = "en"

var names = map[string]string{
	"en": "English",
	"hi": "Hindi (हिन्दी)",
	"te": "Telugu (తెలుగు)",
	"ta": "Tamil (தமிழ்)",
	"bn": "Bengali (বাংলা)",
	"gu": "Gujarati (ગુજરાતી)",
	"kn": "Kannada (ಕನ್ನಡ)",
	"ml": "Malayalam (മലയാളം)",
	"pa": "Punjabi (ਪੰਜਾਬੀ)",
	"mr": "Marathi (मराठी)",
}

// Supported lists the language codes the intake flow speaks, in display order.
func Supported() []string {
	return []string{"en", "hi", "te", "ta", "bn", "gu", "kn", "ml", "pa", "mr"}
}

// Normalize maps a BCP-47 style tag ("hi-IN", "HI") to a supported base code.
func Normalize(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(c, "-_"); i > 0 {
		c = c[:i]
	}
	if _, ok := names[c]; ok {
		return c
	}
	return Default
}

// IsSupported reports whether code (after normalization of region suffixes) is a supported language.
func IsSupported(code string) bool {
	c := strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(c, "-_"); i > 0 {
		c = c[:i]
	}
	_, ok := names[c]
	return ok
}

// Name returns a human-readable language name for prompts.
func Name(code string) string {
	return names[Normalize(code)]
}

// TTSLocale maps a language code to the locale used for speech synthesis.
func TTSLocale(code string) string {
	c := Normalize(code)
	if c == "en" {
		return "en-US"
	}
	return c + "-IN"
}
