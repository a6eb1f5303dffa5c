package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnviron(t *testing.T, env map[string]string) {
	t.Helper()
	orig := osEnviron
	osEnviron = func() map[string]string { return env }
	t.Cleanup(func() { osEnviron = orig })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(context.Background(), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_MergesFilesInOrder(t *testing.T) {
	withEnviron(t, map[string]string{})
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{"db": {"host": "localhost", "port": 5432}}`)
	override := writeFile(t, dir, "override.yaml", "db.host: prod\n")

	out, err := execute(t, base, override)
	require.NoError(t, err)
	assert.Equal(t, `{
  "db": {
    "host": "prod",
    "port": 5432
  }
}
`, out)
}

func TestRun_YAMLOutput(t *testing.T) {
	withEnviron(t, map[string]string{})
	dir := t.TempDir()
	f := writeFile(t, dir, "c.json", `{"z.y": 1, "a": [1, 2]}`)

	out, err := execute(t, "-o", "yaml", f)
	require.NoError(t, err)
	assert.Equal(t, "z:\n  y: 1\na:\n  - 1\n  - 2\n", out)
}

func TestRun_RawKeepsDottedKeys(t *testing.T) {
	withEnviron(t, map[string]string{})
	dir := t.TempDir()
	f := writeFile(t, dir, "c.json", `{"a.b": 1}`)

	out, err := execute(t, "--raw", f)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a.b\": 1\n}\n", out)
}

func TestRun_GetPath(t *testing.T) {
	withEnviron(t, map[string]string{})
	dir := t.TempDir()
	f := writeFile(t, dir, "c.json", `{"db.pool.size": 5, "db.host": "x"}`)

	out, err := execute(t, "--get", "db.pool", f)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"size\": 5\n}\n", out)

	out, err = execute(t, "--get", "db.host", "-o", "yaml", f)
	require.NoError(t, err)
	assert.Equal(t, "x\n", out)

	_, err = execute(t, "--get", "db.missing", f)
	assert.ErrorContains(t, err, `path "db.missing" not found`)
}

func TestRun_LayeredDirectory(t *testing.T) {
	withEnviron(t, map[string]string{"APP_DB__PORT": "6543"})
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", "db:\n  host: localhost\n")
	writeFile(t, dir, "staging.yaml", "db.host: staging-db\n")

	out, err := execute(t, "--dir", dir, "--env", "staging", "--env-prefix", "APP_", "--get", "db")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"host\": \"staging-db\",\n  \"port\": \"6543\"\n}\n", out)

	out, err = execute(t, "--dir", dir, "--env", "staging", "--get", "ENV")
	require.NoError(t, err)
	assert.Equal(t, "\"staging\"\n", out)
}

func TestRun_Errors(t *testing.T) {
	withEnviron(t, map[string]string{})
	dir := t.TempDir()
	f := writeFile(t, dir, "c.json", `{}`)

	_, err := execute(t, "-o", "toml", f)
	assert.ErrorContains(t, err, "unsupported output format")

	_, err = execute(t, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = execute(t, "--dir", dir)
	assert.ErrorContains(t, err, "required default config file not found")
}
