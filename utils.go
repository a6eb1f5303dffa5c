package undot

import (
	"fmt"
	"strings"
	"unicode"
)

// ConfigError is returned by the loading layer around the undotter.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new config error with the standard prefix.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf("[undot] %s", message)}
}

// wrapConfigError is NewConfigError with a cause.
func wrapConfigError(err error, format string, args ...any) *ConfigError {
	e := NewConfigError(fmt.Sprintf(format, args...))
	e.Err = err
	return e
}

// CamelToUpperSnake converts a camelCase path segment to the
// UPPER_SNAKE_CASE form used in environment variable names. Underscores and
// spaces separate words; an acronym ends where a capitalised word begins,
// so "HTTPServer" becomes "HTTP_SERVER". Input that is already upper snake
// case comes back unchanged.
func CamelToUpperSnake(input string) string {
	return strings.ToUpper(strings.Join(splitWords(input), "_"))
}

func splitWords(s string) []string {
	runes := []rune(s)
	var words []string
	start := -1
	flush := func(end int) {
		if start >= 0 {
			words = append(words, string(runes[start:end]))
			start = -1
		}
	}
	for i, r := range runes {
		if r == '_' || r == ' ' {
			flush(i)
			continue
		}
		if start >= 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush(i)
			}
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(runes))
	return words
}

// CoerceBoolean reports whether value spells true ("true" or "1", any case).
func CoerceBoolean(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1":
		return true
	}
	return false
}
