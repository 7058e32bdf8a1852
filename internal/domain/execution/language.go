package execution

import (
	"fmt"
	"strings"
)

// Language identifies the source language of a submission.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageRust       Language = "rust"
	LanguageKotlin     Language = "kotlin"
	LanguageSwift      Language = "swift"
)

var languageAliases = map[string]Language{
	"javascript": LanguageJavaScript,
	"js":         LanguageJavaScript,
	"python":     LanguagePython,
	"py":         LanguagePython,
	"python3":    LanguagePython,
	"rust":       LanguageRust,
	"rs":         LanguageRust,
	"kotlin":     LanguageKotlin,
	"kt":         LanguageKotlin,
	"swift":      LanguageSwift,
}

// Languages lists every supported language in a stable order.
func Languages() []Language {
	return []Language{LanguageJavaScript, LanguagePython, LanguageRust, LanguageKotlin, LanguageSwift}
}

// ParseLanguage resolves a user supplied language name. Matching is case-insensitive
// and accepts common short aliases.
func ParseLanguage(raw string) (Language, error) {
	lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unsupported language: %s", raw)
	}
	return lang, nil
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	for _, known := range Languages() {
		if l == known {
			return true
		}
	}
	return false
}
