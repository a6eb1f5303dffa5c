package undot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newConfigDir(t *testing.T) string {
	t.Helper()
	configDir := filepath.Join(t.TempDir(), ".undot-config")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	return configDir
}

func realPath(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

func TestFindConfigDirectoryWithEnv_ViaEnvVar(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "my-config")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	env := map[string]string{"UNDOT_CONFIG_DIR": configDir}
	result, err := findConfigDirectoryWithEnv(false, env)
	require.NoError(t, err)
	assert.Equal(t, configDir, result)
}

func TestFindConfigDirectoryWithEnv_EnvVarNotExist(t *testing.T) {
	env := map[string]string{"UNDOT_CONFIG_DIR": "/nonexistent/path"}
	_, err := findConfigDirectoryWithEnv(false, env)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestFindConfigDirectoryWithEnv_WalksUp(t *testing.T) {
	root := t.TempDir()
	configDir := filepath.Join(root, "undot-config")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.MkdirAll(nested, 0o755))

	t.Chdir(nested)
	ResetConfigDirCache()
	t.Cleanup(ResetConfigDirCache)

	result, err := findConfigDirectoryWithEnv(true, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, realPath(t, configDir), realPath(t, result))

	// Served from the cache on the next lookup.
	cached, ok := cachedConfigDir()
	assert.True(t, ok)
	assert.Equal(t, result, cached)
}

func TestFindConfigDirectoryWithEnv_RespectsLevelsUpLimit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".undot-config"), 0o755))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	t.Chdir(nested)
	ResetConfigDirCache()
	t.Cleanup(ResetConfigDirCache)

	_, err := findConfigDirectoryWithEnv(true, map[string]string{"UNDOT_CONFIG_LEVELS_UP_LIMIT": "1"})
	assert.Error(t, err)

	_, err = findConfigDirectoryWithEnv(true, map[string]string{"UNDOT_CONFIG_LEVELS_UP_LIMIT": "3"})
	assert.NoError(t, err)
}

func TestFindAndProcessFileConfigWithEnv_LoadsDefault(t *testing.T) {
	configDir := newConfigDir(t)
	writeFile(t, configDir, "default.json", `{"database": {"host": "localhost"}, "database.port": 5432}`)

	env := map[string]string{"UNDOT_CONFIG_DIR": configDir}
	result, err := findAndProcessFileConfigWithEnv(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, "localhost", lookupScalar(t, result, "database.host"))
	assert.Equal(t, int64(5432), lookupScalar(t, result, "database.port"))
	assertNoDottedKeys(t, result)
}

func TestFindAndProcessFileConfigWithEnv_RaisesWithoutDefault(t *testing.T) {
	configDir := newConfigDir(t)
	writeFile(t, configDir, "production.json", `{"a": 1}`)

	env := map[string]string{"UNDOT_CONFIG_DIR": configDir, "UNDOT_CONFIG_ENV": "production"}
	_, err := findAndProcessFileConfigWithEnv(context.Background(), env)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDefaultFile))

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestFindAndProcessFileConfigWithEnv_MergesLayers(t *testing.T) {
	configDir := newConfigDir(t)
	writeFile(t, configDir, "default.yaml", `
database:
  host: localhost
  pool:
    size: 5
    idle: 1
features:
  - auth
`)
	writeFile(t, configDir, "production.yaml", `
database.host: prod-db
features:
  - billing
`)
	writeFile(t, configDir, "production.aws.yml", `
database.pool:
  size: 20
`)
	writeFile(t, configDir, "production.aws.us-east-1.json", `{"database": {"pool.idle": 4}}`)

	env := map[string]string{
		"UNDOT_CONFIG_DIR": configDir,
		"UNDOT_CONFIG_ENV": "production",
		"AWS_REGION":       "us-east-1",
	}
	result, err := findAndProcessFileConfigWithEnv(context.Background(), env)
	require.NoError(t, err)

	db := mustLookup(t, result, "database").Nested()
	assertContainer(t, Of("host", "prod-db", "pool", Of("size", 20, "idle", int64(4))), db)
	assert.Equal(t, []any{"auth", "billing"}, mustLookup(t, result, "features").Nested().ToAny())

	assert.Equal(t, "production", lookupScalar(t, result, "ENV"))
	assert.Equal(t, false, lookupScalar(t, result, "IS_LOCAL"))
	assert.Equal(t, "us-east-1", lookupScalar(t, result, "REGION"))
	assert.Equal(t, "aws", lookupScalar(t, result, "CLOUD_PROVIDER"))
}

func TestFindAndProcessFileConfigWithEnv_LocalLayer(t *testing.T) {
	configDir := newConfigDir(t)
	writeFile(t, configDir, "default.json", `{"apiUrl": "https://api.example.com", "debug": false}`)
	writeFile(t, configDir, "local.json", `{"apiUrl": "http://localhost:3000"}`)
	writeFile(t, configDir, "development.json", `{"debug": true}`)

	env := map[string]string{"UNDOT_CONFIG_DIR": configDir}
	result, err := findAndProcessFileConfigWithEnv(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", lookupScalar(t, result, "apiUrl"))
	assert.Equal(t, true, lookupScalar(t, result, "debug"))
	assert.Equal(t, "development", lookupScalar(t, result, "ENV"))

	env["IS_LOCAL"] = "true"
	result, err = findAndProcessFileConfigWithEnv(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", lookupScalar(t, result, "apiUrl"))
	assert.Equal(t, true, lookupScalar(t, result, "IS_LOCAL"))
}

func TestLayeredFileProvidersFromEnv_PrefersJSON(t *testing.T) {
	configDir := newConfigDir(t)
	writeFile(t, configDir, "default.json", `{"source": "json"}`)
	writeFile(t, configDir, "default.yaml", "source: yaml\n")

	providers, err := LayeredFileProvidersFromEnv(map[string]string{"UNDOT_CONFIG_DIR": configDir})
	require.NoError(t, err)
	// default + builtins
	require.Len(t, providers, 2)

	c, err := providers[0].Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "json", lookupScalar(t, c, "source"))
}

func TestFileProvider_Errors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	_, err := FileProvider(filepath.Join(dir, "missing.json")).Load(ctx)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = FileProvider(writeFile(t, dir, "config.toml", "a = 1")).Load(ctx)
	assert.ErrorContains(t, err, "unsupported config file extension")

	_, err = FileProvider(writeFile(t, dir, "broken.json", `{"a": `)).Load(ctx)
	assert.ErrorContains(t, err, "error parsing")

	_, err = FileProvider(writeFile(t, dir, "scalar.yaml", "hello")).Load(ctx)
	assert.Error(t, err)
}

func TestFileProvider_KeepsDottedKeys(t *testing.T) {
	dir := t.TempDir()
	c, err := FileProvider(writeFile(t, dir, "flat.yml", "a.b: 1\na:\n  c: 2\n")).Load(context.Background())
	require.NoError(t, err)
	assertContainer(t, Of("a.b", 1, "a", Of("c", 2)), c)
}
