// Package language holds the supported language registry, script analysis
// and language identification used for automatic switching.
package language

import (
	"errors"
	"fmt"
	"sort"
)

const (
	English    = "en"
	Hindi      = "hi"
	CodeSwitch = "hi-en"
	Unknown    = "unknown"
)

// ErrInvalidLanguage is returned for codes missing from the registry.
var ErrInvalidLanguage = errors.New("unsupported language")

// Language describes one selectable transcription language.
type Language struct {
	Code string
	Name string
	// WhisperCode is passed to the recognizer; empty means auto-detect.
	WhisperCode string
	// Model is the recognizer model size hint, e.g. "base.en".
	Model string
}

// Registry is the read-only set of supported languages.
type Registry struct {
	langs map[string]Language
}

// NewRegistry returns the registry for a deployment profile. Constrained
// deployments get the smaller model hints.
func NewRegistry(constrained bool) *Registry {
	size := "base"
	if constrained {
		size = "tiny"
	}
	langs := []Language{
		{Code: English, Name: "English", WhisperCode: "en", Model: size + ".en"},
		{Code: Hindi, Name: "Hindi", WhisperCode: "hi", Model: size},
		{Code: CodeSwitch, Name: "Hindi-English (Code-switching)", WhisperCode: "", Model: size},
	}
	r := &Registry{langs: make(map[string]Language, len(langs))}
	for _, l := range langs {
		r.langs[l.Code] = l
	}
	return r
}

// Lookup returns the language for code or ErrInvalidLanguage.
func (r *Registry) Lookup(code string) (Language, error) {
	l, ok := r.langs[code]
	if !ok {
		return Language{}, fmt.Errorf("%w: %q", ErrInvalidLanguage, code)
	}
	return l, nil
}

// Supported reports whether code is a registry key.
func (r *Registry) Supported(code string) bool {
	_, ok := r.langs[code]
	return ok
}

// Codes lists the registry keys in sorted order.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.langs))
	for c := range r.langs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// IsSingle reports whether code is a supported language other than code-switching.
func (r *Registry) IsSingle(code string) bool {
	return code != CodeSwitch && r.Supported(code)
}
