package undot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/buger/jsonparser"
)

// ConfigClient reads configuration values from a remote config server.
// Responses are decoded in document order so dotted keys keep their
// precedence when the values are undotted.
//
// Defaults for empty constructor arguments:
//
//	UNDOT_CONFIG_API_URL  base URL of the config API
//	UNDOT_CONFIG_API_KEY  bearer token
//	UNDOT_CONFIG_ORG_ID   organization ID
//	UNDOT_CONFIG_ENV      default environment name (e.g. "production")
type ConfigClient struct {
	baseURL            string
	orgID              string
	defaultEnvironment string
	client             *http.Client
	cache              map[string]Value
	mu                 sync.RWMutex
}

// NewConfigClient builds a client for the config API. Empty arguments fall
// back to the UNDOT_CONFIG_* variables listed on ConfigClient.
func NewConfigClient(baseURL, apiKey, orgID string) *ConfigClient {
	if baseURL == "" {
		baseURL = os.Getenv("UNDOT_CONFIG_API_URL")
	}
	if apiKey == "" {
		apiKey = os.Getenv("UNDOT_CONFIG_API_KEY")
	}
	if orgID == "" {
		orgID = os.Getenv("UNDOT_CONFIG_ORG_ID")
	}

	return &ConfigClient{
		baseURL:            strings.TrimRight(baseURL, "/"),
		orgID:              orgID,
		defaultEnvironment: coalesceStr(os.Getenv("UNDOT_CONFIG_ENV"), "development"),
		client: &http.Client{
			Transport: &authTransport{
				apiKey: apiKey,
				base:   http.DefaultTransport,
			},
		},
		cache: make(map[string]Value),
	}
}

type authTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(req)
}

func (c *ConfigClient) resolveEnv(environment string) string {
	return coalesceStr(environment, c.defaultEnvironment)
}

// fetch GETs u and returns the raw JSON found under field.
func (c *ConfigClient) fetch(ctx context.Context, u, field string) ([]byte, jsonparser.ValueType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, jsonparser.NotExist, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, jsonparser.NotExist, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, jsonparser.NotExist, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, jsonparser.NotExist, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	raw, dataType, _, err := jsonparser.Get(body, field)
	if err != nil {
		return nil, jsonparser.NotExist, fmt.Errorf("decode %q: %w", field, err)
	}
	return raw, dataType, nil
}

// GetValue fetches the value stored under key. An empty environment means
// the client default. Values are cached per environment and key until
// InvalidateCache; callers always receive their own copy.
func (c *ConfigClient) GetValue(ctx context.Context, key, environment string) (Value, error) {
	env := c.resolveEnv(environment)
	cacheKey := env + ":" + key

	c.mu.RLock()
	if val, ok := c.cache[cacheKey]; ok {
		c.mu.RUnlock()
		return val.clone(), nil
	}
	c.mu.RUnlock()

	u := fmt.Sprintf("%s/organizations/%s/config/values/%s?environment=%s",
		c.baseURL, c.orgID, url.PathEscape(key), url.QueryEscape(env))

	raw, dataType, err := c.fetch(ctx, u, "value")
	if err != nil {
		return Value{}, fmt.Errorf("config get value: %w", err)
	}
	val, err := jsonValue(raw, dataType)
	if err != nil {
		return Value{}, fmt.Errorf("config get value decode: %w", err)
	}

	c.mu.Lock()
	c.cache[cacheKey] = val
	c.mu.Unlock()

	return val.clone(), nil
}

// GetAllValues fetches every value of environment, keeping the order the
// server sent them so later dotted keys still win once undotted. Each
// top-level entry also refreshes the GetValue cache.
func (c *ConfigClient) GetAllValues(ctx context.Context, environment string) (*Container, error) {
	env := c.resolveEnv(environment)

	u := fmt.Sprintf("%s/organizations/%s/config/values?environment=%s",
		c.baseURL, c.orgID, url.QueryEscape(env))

	raw, dataType, err := c.fetch(ctx, u, "values")
	if err != nil {
		return nil, fmt.Errorf("config get all values: %w", err)
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("config get all values decode: values is %v, want object", dataType)
	}
	val, err := jsonValue(raw, dataType)
	if err != nil {
		return nil, fmt.Errorf("config get all values decode: %w", err)
	}

	c.mu.Lock()
	for key, value := range val.nested.All() {
		c.cache[env+":"+key.String()] = value.clone()
	}
	c.mu.Unlock()

	return val.nested, nil
}

// Provider returns a Provider loading all values of environment.
func (c *ConfigClient) Provider(environment string) Provider {
	return ProviderFunc(func(ctx context.Context) (*Container, error) {
		return c.GetAllValues(ctx, environment)
	})
}

// InvalidateCache drops every cached value.
func (c *ConfigClient) InvalidateCache() {
	c.mu.Lock()
	c.cache = make(map[string]Value)
	c.mu.Unlock()
}

// Close closes idle connections.
func (c *ConfigClient) Close() {
	c.client.CloseIdleConnections()
}
