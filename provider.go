package undot

import (
	"context"
	"log/slog"
)

// Provider supplies one layer of configuration.
type Provider interface {
	Load(ctx context.Context) (*Container, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (*Container, error)

// Load calls f(ctx).
func (f ProviderFunc) Load(ctx context.Context) (*Container, error) {
	return f(ctx)
}

// StaticProvider returns a provider serving a copy of c on every load.
func StaticProvider(c *Container) Provider {
	return ProviderFunc(func(context.Context) (*Container, error) {
		return c.Clone(), nil
	})
}

type optionalProvider struct {
	Provider
}

// Optional marks a provider whose failures are logged and skipped by the
// Aggregator instead of failing the whole load.
func Optional(p Provider) Provider {
	return optionalProvider{Provider: p}
}

func isOptional(p Provider) bool {
	_, ok := p.(optionalProvider)
	return ok
}

// loadLayer runs one provider, turning failures of optional providers into
// an empty layer.
func loadLayer(ctx context.Context, p Provider, logger *slog.Logger) (*Container, error) {
	c, err := p.Load(ctx)
	if err != nil {
		if isOptional(p) {
			logger.Warn("Skipping optional config provider", slog.Any("error", err))
			return New(), nil
		}
		return nil, err
	}
	if c == nil {
		return New(), nil
	}
	return c, nil
}
