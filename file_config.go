package undot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNoDefaultFile is returned when the config directory lacks the
// required default layer.
var ErrNoDefaultFile = errors.New("required default config file not found")

var (
	configDirCache   string
	configDirCacheAt time.Time
	configDirCacheMu sync.Mutex
	configDirTTL     = time.Hour
)

// configDirCandidates are the directory names searched for in the working
// directory and its parents.
var configDirCandidates = []string{".undot-config", "undot-config"}

// configExtensions are tried in order for every layer stem.
var configExtensions = []string{".json", ".yaml", ".yml"}

// ResetConfigDirCache clears the config directory cache (for testing).
func ResetConfigDirCache() {
	configDirCacheMu.Lock()
	configDirCache = ""
	configDirCacheMu.Unlock()
}

// FindConfigDirectory finds the directory holding the layered config files.
//
// Search order:
//  1. UNDOT_CONFIG_DIR env var
//  2. CWD/.undot-config or CWD/undot-config
//  3. Walk up the directory tree (UNDOT_CONFIG_LEVELS_UP_LIMIT, default 5)
func FindConfigDirectory(ignoreCache bool) (string, error) {
	return findConfigDirectoryWithEnv(ignoreCache, osEnvMap())
}

func findConfigDirectoryWithEnv(ignoreCache bool, env map[string]string) (string, error) {
	if dir := env["UNDOT_CONFIG_DIR"]; dir != "" {
		if isDir(dir) {
			return dir, nil
		}
		return "", NewConfigError(fmt.Sprintf("directory in UNDOT_CONFIG_DIR does not exist: %s", dir))
	}

	if !ignoreCache {
		if dir, ok := cachedConfigDir(); ok {
			return dir, nil
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", wrapConfigError(err, "failed to get working directory")
	}

	levelsUp := 5
	if v := env["UNDOT_CONFIG_LEVELS_UP_LIMIT"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			levelsUp = n
		}
	}

	searchDir := cwd
	for level := 0; level <= levelsUp; level++ {
		for _, c := range configDirCandidates {
			dir := filepath.Join(searchDir, c)
			if isDir(dir) {
				storeConfigDir(dir)
				return dir, nil
			}
		}
		parent := filepath.Dir(searchDir)
		if parent == searchDir {
			break // reached root
		}
		searchDir = parent
	}

	return "", NewConfigError(fmt.Sprintf("could not find config directory, searched %d levels up from %s", levelsUp, cwd))
}

func cachedConfigDir() (string, bool) {
	configDirCacheMu.Lock()
	defer configDirCacheMu.Unlock()
	if configDirCache == "" || time.Since(configDirCacheAt) >= configDirTTL {
		return "", false
	}
	if !isDir(configDirCache) {
		configDirCache = ""
		return "", false
	}
	return configDirCache, true
}

func storeConfigDir(dir string) {
	configDirCacheMu.Lock()
	configDirCache = dir
	configDirCacheAt = time.Now()
	configDirCacheMu.Unlock()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileProvider loads a single JSON (.json) or YAML (.yaml, .yml) file.
// A missing file is an error.
func FileProvider(path string) Provider {
	return ProviderFunc(func(context.Context) (*Container, error) {
		return readConfigFile(path)
	})
}

func readConfigFile(path string) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapConfigError(err, "error reading %s", path)
	}

	var c *Container
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		c, err = ParseJSON(data)
	case ".yaml", ".yml":
		c, err = ParseYAML(data)
	default:
		return nil, NewConfigError(fmt.Sprintf("unsupported config file extension %q: %s", ext, path))
	}
	if err != nil {
		return nil, wrapConfigError(err, "error parsing %s", path)
	}
	return c, nil
}

// LayeredFileProviders resolves the layered config files for the process
// environment. See LayeredFileProvidersFromEnv for the layer order.
func LayeredFileProviders() ([]Provider, error) {
	return LayeredFileProvidersFromEnv(osEnvMap())
}

// LayeredFileProvidersFromEnv returns one provider per existing layer of the
// config directory found for env, in merge order:
//  1. default (REQUIRED)
//  2. local (if IS_LOCAL is truthy)
//  3. {env}
//  4. {env}.{provider}
//  5. {env}.{provider}.{region}
//  6. built-in keys (ENV, IS_LOCAL, REGION, CLOUD_PROVIDER)
//
// Each layer may be a .json, .yaml or .yml file; the first existing
// extension wins.
func LayeredFileProvidersFromEnv(env map[string]string) ([]Provider, error) {
	configDir, err := findConfigDirectoryWithEnv(false, env)
	if err != nil {
		return nil, err
	}

	stems := []string{"default"}
	if CoerceBoolean(env["IS_LOCAL"]) {
		stems = append(stems, "local")
	}
	stems = append(stems, DetectCloudRegionFromEnv(env).layerNames(configEnvName(env))...)

	var providers []Provider
	for _, stem := range stems {
		path, ok := findLayerFile(configDir, stem)
		if !ok {
			if stem == "default" {
				return nil, wrapConfigError(ErrNoDefaultFile, "no default.json or default.yaml in %s", configDir)
			}
			continue
		}
		providers = append(providers, FileProvider(path))
	}
	return append(providers, BuiltinsProvider(env)), nil
}

func findLayerFile(dir, stem string) (string, bool) {
	for _, ext := range configExtensions {
		path := filepath.Join(dir, stem+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// BuiltinsProvider supplies the built-in keys derived from env: ENV,
// IS_LOCAL, REGION and CLOUD_PROVIDER.
func BuiltinsProvider(env map[string]string) Provider {
	return ProviderFunc(func(context.Context) (*Container, error) {
		region := DetectCloudRegionFromEnv(env)
		return Of(
			"ENV", configEnvName(env),
			"IS_LOCAL", CoerceBoolean(env["IS_LOCAL"]),
			"REGION", region.Region,
			"CLOUD_PROVIDER", region.Provider,
		), nil
	})
}

// configEnvName returns UNDOT_CONFIG_ENV, defaulting to "development".
func configEnvName(env map[string]string) string {
	return coalesceStr(env["UNDOT_CONFIG_ENV"], "development")
}

// FindAndProcessFileConfig loads the layered config files of the process
// environment, merges them and expands dotted keys.
func FindAndProcessFileConfig(ctx context.Context) (*Container, error) {
	return findAndProcessFileConfigWithEnv(ctx, osEnvMap())
}

func findAndProcessFileConfigWithEnv(ctx context.Context, env map[string]string) (*Container, error) {
	providers, err := LayeredFileProvidersFromEnv(env)
	if err != nil {
		return nil, err
	}
	return NewAggregator(WithProviders(providers...)).Config(ctx)
}
