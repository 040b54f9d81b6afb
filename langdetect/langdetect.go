// Package langdetect detects the language of transcript text and maps
// locale codes to display names. The supported set mirrors the
// languages the backend accepts for conferences.
package langdetect

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// supported maps locale codes to lingua languages, in menu order.
var supported = []struct {
	code   string
	lingua lingua.Language
}{
	{"en", lingua.English},
	{"es", lingua.Spanish},
	{"fr", lingua.French},
	{"de", lingua.German},
	{"zh", lingua.Chinese},
	{"ar", lingua.Arabic},
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Model loading is expensive; build once on first use.
func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		langs := make([]lingua.Language, 0, len(supported))
		for _, s := range supported {
			langs = append(langs, s.lingua)
		}
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(langs...).
			Build()
	})
	return detector
}

// Detect returns the locale code and display name for the text's
// language, or ("auto", "Unknown") when detection fails.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "auto", "Unknown"
	}

	detected, ok := getDetector().DetectLanguageOf(text)
	if !ok {
		return "auto", "Unknown"
	}

	iso := strings.ToLower(detected.IsoCode639_1().String())
	for _, s := range supported {
		if s.code == iso {
			return s.code, DisplayName(s.code)
		}
	}
	return "auto", "Unknown"
}

// Supported returns the supported locale codes in menu order.
func Supported() []string {
	codes := make([]string, 0, len(supported))
	for _, s := range supported {
		codes = append(codes, s.code)
	}
	return codes
}

// DisplayName returns the English display name for a locale code.
func DisplayName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return display.English.Languages().Name(tag)
}

// Validate checks that a locale code parses and is supported.
func Validate(code string) error {
	if _, err := language.Parse(code); err != nil {
		return fmt.Errorf("invalid language code %q: %w", code, err)
	}
	for _, s := range supported {
		if s.code == code {
			return nil
		}
	}
	return fmt.Errorf("unsupported language %q (supported: %s)", code, strings.Join(Supported(), ", "))
}
