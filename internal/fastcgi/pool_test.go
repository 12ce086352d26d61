package fastcgi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Property 3 (override layering): defaults, static config, and per-request
// overrides merge right-biased.
func TestAssembleParamsLayering(t *testing.T) {
	p := &Pool{
		scriptPath: "/var/www/script.php",
		staticEnv: map[string]string{
			"SERVER_PORT": "8080", // overrides the essential default
			"APP_ENV":     "production",
		},
	}

	overrides := map[string]string{
		"APP_ENV":   "staging", // overrides the static config value
		"X_REQUEST": "abc123",
	}

	params := p.assembleParams([]byte("hello"), overrides)

	assert.Equal(t, "5", params["CONTENT_LENGTH"])
	assert.Equal(t, "", params["QUERY_STRING"])
	assert.Equal(t, "127.0.0.1", params["REMOTE_ADDR"])
	assert.Equal(t, "POST", params["REQUEST_METHOD"])
	assert.Equal(t, "/var/www/script.php", params["SCRIPT_FILENAME"])
	assert.Equal(t, "/", params["SCRIPT_NAME"])
	assert.Equal(t, "localhost", params["SERVER_NAME"])
	assert.Equal(t, "fcgiq", params["SERVER_SOFTWARE"])

	// static config wins over essential default
	assert.Equal(t, "8080", params["SERVER_PORT"])
	// per-request override wins over static config
	assert.Equal(t, "staging", params["APP_ENV"])
	assert.Equal(t, "abc123", params["X_REQUEST"])
}

func TestAssembleParamsNoStaticEnvOrOverrides(t *testing.T) {
	p := &Pool{scriptPath: "/script"}
	params := p.assembleParams(nil, nil)
	assert.Equal(t, "0", params["CONTENT_LENGTH"])
	assert.Equal(t, "443", params["SERVER_PORT"])
}
