package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromYAMLDefaultsLogLevel(t *testing.T) {
	raw := []byte(`
fastcgi:
  address: 127.0.0.1
  port: 9000
  script_path: /var/www/handler.php
  max_parallel_requests: 10
queue:
  sqs:
    queue_url: https://sqs.us-east-1.amazonaws.com/123456789012/my-queue
    visibility_timeout: 30
`)

	cfg, err := FromYAML(raw)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1", cfg.FastCGI.Address)
	assert.Equal(t, uint16(9000), cfg.FastCGI.Port)
}

func TestFromYAMLMissingRequiredField(t *testing.T) {
	raw := []byte(`
fastcgi:
  address: 127.0.0.1
  port: 9000
  script_path: /var/www/handler.php
  max_parallel_requests: 10
queue:
  sqs:
    visibility_timeout: 30
`)

	_, err := FromYAML(raw)
	require.Error(t, err)
}

func TestFromYAMLInvalidLogLevel(t *testing.T) {
	raw := []byte(`
fastcgi:
  address: 127.0.0.1
  port: 9000
  script_path: /var/www/handler.php
  max_parallel_requests: 10
queue:
  sqs:
    queue_url: https://sqs.us-east-1.amazonaws.com/123456789012/my-queue
    visibility_timeout: 30
log_level: verbose
`)

	_, err := FromYAML(raw)
	require.Error(t, err)
}

func TestFromYAMLFieldMappings(t *testing.T) {
	raw := []byte(`
fastcgi:
  address: 127.0.0.1
  port: 9000
  script_path: /var/www/handler.php
  max_parallel_requests: 10
queue:
  sqs:
    queue_url: https://sqs.us-east-1.amazonaws.com/123456789012/my-queue
    visibility_timeout: 30
field_mappings:
  HTTP_X_USER_ID:
    source: BODY_JSON
    field: user_id
  HTTP_X_TRACE_ID:
    source: METADATA
    field: trace_id
`)

	cfg, err := FromYAML(raw)
	require.NoError(t, err)
	require.Len(t, cfg.FieldMappings, 2)
	assert.Equal(t, "user_id", cfg.FieldMappings["HTTP_X_USER_ID"].Field)
}
