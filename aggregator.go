package undot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCacheTTL = 24 * time.Hour

// Aggregator merges configuration layers and post-processes the result
// before caching it.
//
// Providers are loaded concurrently but merged in declaration order, later
// layers taking precedence (see Merge). The merged config then runs
// through the post-processors, by default a single Undotter, and is cached
// for the configured TTL.
//
// Thread-safe via sync.Mutex. Lazy initialization loads all providers on
// first access.
type Aggregator struct {
	mu          sync.Mutex
	initialized bool
	config      *Container
	expiresAt   time.Time
	fingerprint uint64

	providers      []Provider
	postProcessors []PostProcessor
	cacheTTL       time.Duration
	logger         *slog.Logger
}

// AggregatorOption is a functional option for Aggregator.
type AggregatorOption func(*Aggregator)

// WithProviders appends configuration layers, lowest precedence first.
func WithProviders(providers ...Provider) AggregatorOption {
	return func(a *Aggregator) { a.providers = append(a.providers, providers...) }
}

// WithPostProcessors replaces the default post-processor chain.
// Include Undotter{} to keep dotted keys expanded.
func WithPostProcessors(pp ...PostProcessor) AggregatorOption {
	return func(a *Aggregator) { a.postProcessors = pp }
}

// WithCacheTTL sets how long a merged config is served before reloading.
func WithCacheTTL(ttl time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.cacheTTL = ttl }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = logger }
}

// NewAggregator creates a new aggregator with functional options.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		postProcessors: []PostProcessor{Undotter{}},
		cacheTTL:       defaultCacheTTL,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) initialize(ctx context.Context) error {
	if a.initialized && time.Now().Before(a.expiresAt) {
		return nil
	}

	layers := make([]*Container, len(a.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range a.providers {
		g.Go(func() error {
			c, err := loadLayer(gctx, p, a.logger)
			if err != nil {
				return fmt.Errorf("load config layer %d: %w", i, err)
			}
			layers[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	merged := New()
	for _, layer := range layers {
		merged = Merge(merged, layer)
	}

	for _, pp := range a.postProcessors {
		processed, err := pp.Process(merged)
		if err != nil {
			return fmt.Errorf("post-process config: %w", err)
		}
		merged = processed
	}

	// Leaves are opaque, so a config holding NaN or a func still loads; it
	// just has no fingerprint.
	fp, err := merged.Fingerprint()
	if err != nil {
		a.logger.Warn("Could not fingerprint config", slog.String("error", err.Error()))
		fp = 0
	}
	if a.fingerprint != 0 && fp != 0 && fp != a.fingerprint {
		a.logger.Info("Config changed",
			slog.String("previous", fmt.Sprintf("%016x", a.fingerprint)),
			slog.String("current", fmt.Sprintf("%016x", fp)))
	}
	a.logger.Debug("Loaded config",
		slog.Int("layers", len(layers)),
		slog.Int("keys", merged.Len()),
		slog.String("fingerprint", fmt.Sprintf("%016x", fp)))

	a.config = merged
	a.fingerprint = fp
	a.expiresAt = time.Now().Add(a.cacheTTL)
	a.initialized = true
	return nil
}

// Config returns a copy of the merged, post-processed config.
func (a *Aggregator) Config(ctx context.Context) (*Container, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.initialize(ctx); err != nil {
		return nil, err
	}
	return a.config.Clone(), nil
}

// Get looks up a dotted path in the merged config.
func (a *Aggregator) Get(ctx context.Context, path string) (Value, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.initialize(ctx); err != nil {
		return Value{}, false, err
	}
	v, ok := a.config.Lookup(path)
	return v.clone(), ok, nil
}

// Fingerprint returns the hash of the current merged config, or 0 when a
// leaf has no JSON form.
func (a *Aggregator) Fingerprint(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.initialize(ctx); err != nil {
		return 0, err
	}
	return a.fingerprint, nil
}

// Invalidate drops the cached config; the next access reloads every layer.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = false
	a.config = nil
}

// DefaultProviders returns the usual layer stack for env, lowest
// precedence first:
//
//  1. Layered config files (see LayeredFileProviders), optional
//  2. Remote API when UNDOT_CONFIG_API_URL, UNDOT_CONFIG_API_KEY and
//     UNDOT_CONFIG_ORG_ID are all set, optional
//  3. Environment variables, which always win
//
// Optional layers that fail are logged and skipped by the Aggregator.
func DefaultProviders(env map[string]string, envOpts ...EnvOption) []Provider {
	files, err := LayeredFileProvidersFromEnv(env)
	var providers []Provider
	if err != nil {
		providers = append(providers, Optional(ProviderFunc(func(context.Context) (*Container, error) {
			return nil, err
		})))
	} else {
		for _, p := range files {
			providers = append(providers, Optional(p))
		}
	}

	apiKey, baseURL, orgID := env["UNDOT_CONFIG_API_KEY"], env["UNDOT_CONFIG_API_URL"], env["UNDOT_CONFIG_ORG_ID"]
	if apiKey != "" && baseURL != "" && orgID != "" {
		client := NewConfigClient(baseURL, apiKey, orgID)
		providers = append(providers, Optional(client.Provider(configEnvName(env))))
	}

	envOpts = append([]EnvOption{WithEnvironment(env)}, envOpts...)
	return append(providers, EnvProvider(envOpts...))
}
