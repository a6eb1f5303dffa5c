package undot

import (
	"context"
	"encoding/json"
	"os"
	"slices"
	"strconv"
	"strings"
)

// envPathSeparator separates path segments in environment variable names:
// APP_DATABASE__MAX_CONNS addresses database.maxConns.
const envPathSeparator = "__"

type envProvider struct {
	prefix string
	hints  *SchemaHints
	env    map[string]string
}

// EnvOption is a functional option for EnvProvider.
type EnvOption func(*envProvider)

// WithEnvPrefix sets the env var prefix that is stripped from names.
func WithEnvPrefix(prefix string) EnvOption {
	return func(p *envProvider) { p.prefix = prefix }
}

// WithSchemaHints restricts the provider to the hinted paths and enables
// type coercion.
func WithSchemaHints(hints *SchemaHints) EnvOption {
	return func(p *envProvider) { p.hints = hints }
}

// WithEnvironment replaces the process environment (for testing).
func WithEnvironment(env map[string]string) EnvOption {
	return func(p *envProvider) { p.env = env }
}

// EnvProvider builds a config layer from environment variables.
//
// With schema hints, every hinted path such as "database.maxConns" is read
// from PREFIX + "DATABASE__MAX_CONNS" and coerced to the hinted type.
// Without hints, every variable starting with the (non-empty) prefix is
// taken as a string: the remainder is lower-cased and "__" becomes ".",
// producing dotted keys. Variables are visited in sorted order.
func EnvProvider(opts ...EnvOption) Provider {
	p := &envProvider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *envProvider) Load(context.Context) (*Container, error) {
	env := p.env
	if env == nil {
		env = osEnvMap()
	}
	if p.hints != nil {
		return p.loadHinted(env), nil
	}
	return p.loadPrefixed(env), nil
}

func (p *envProvider) loadHinted(env map[string]string) *Container {
	result := New()
	for _, path := range p.hints.Paths {
		raw, ok := env[p.prefix+EnvVarName(path)]
		if !ok {
			continue
		}
		result.Set(KeyOf(path), coerceEnvValue(raw, p.hints.Types[path]))
	}
	return result
}

func (p *envProvider) loadPrefixed(env map[string]string) *Container {
	result := New()
	if p.prefix == "" {
		return result
	}
	names := make([]string, 0, len(env))
	for name := range env {
		if strings.HasPrefix(name, p.prefix) && len(name) > len(p.prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		path := strings.ToLower(strings.ReplaceAll(name[len(p.prefix):], envPathSeparator, Delimiter))
		result.Set(KeyOf(path), ScalarValue(env[name]))
	}
	return result
}

// EnvVarName converts a dotted config path into the env var name that
// addresses it, without prefix: "database.maxConns" -> "DATABASE__MAX_CONNS".
func EnvVarName(path string) string {
	segments := strings.Split(path, Delimiter)
	for i, s := range segments {
		segments[i] = CamelToUpperSnake(s)
	}
	return strings.Join(segments, envPathSeparator)
}

// coerceEnvValue converts a raw env var according to a schema type hint.
// Values that do not parse are kept as strings.
func coerceEnvValue(raw, typ string) Value {
	switch typ {
	case "boolean":
		return ScalarValue(CoerceBoolean(raw))
	case "integer", "number":
		if !strings.Contains(raw, ".") {
			if n, err := strconv.Atoi(raw); err == nil {
				return ScalarValue(n)
			}
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return ScalarValue(f)
		}
	case "json", "object", "array":
		if c, err := ParseJSON([]byte(raw)); err == nil {
			return NestedValue(c)
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			return ScalarValue(parsed)
		}
	}
	return ScalarValue(raw)
}

// osEnvMap converts os.Environ() to a map.
func osEnvMap() map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		if name, value, ok := strings.Cut(e, "="); ok {
			result[name] = value
		}
	}
	return result
}
