package undot

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCamelToUpperSnake(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"apiUrl", "API_URL"},
		{"maxConns", "MAX_CONNS"},
		{"poolSize", "POOL_SIZE"},
		{"database", "DATABASE"},
		{"readReplicaHost", "READ_REPLICA_HOST"},
		{"enableNewUI", "ENABLE_NEW_UI"},
		// Already UPPER_SNAKE_CASE
		{"API_URL", "API_URL"},
		{"DATABASE", "DATABASE"},
		// Acronym handling
		{"apiURL", "API_URL"},
		{"HTTPServer", "HTTP_SERVER"},
		// Separators
		{"api_url", "API_URL"},
		{"read replica", "READ_REPLICA"},
		{"v2Host", "V2_HOST"},
		// Edge cases
		{"", ""},
		{"a", "A"},
		{"v2", "V2"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, CamelToUpperSnake(tt.input))
		})
	}
}

func TestCoerceBoolean(t *testing.T) {
	assert.True(t, CoerceBoolean("true"))
	assert.True(t, CoerceBoolean("TRUE"))
	assert.True(t, CoerceBoolean("1"))
	assert.False(t, CoerceBoolean("false"))
	assert.False(t, CoerceBoolean("0"))
	assert.False(t, CoerceBoolean(""))
	assert.False(t, CoerceBoolean("yes"))
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("test error")
	assert.Equal(t, "[undot] test error", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestConfigError_Wraps(t *testing.T) {
	err := wrapConfigError(fs.ErrNotExist, "read %s", "default.yaml")
	assert.Equal(t, "[undot] read default.yaml: file does not exist", err.Error())
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	var cfgErr *ConfigError
	assert.True(t, errors.As(error(err), &cfgErr))
}
