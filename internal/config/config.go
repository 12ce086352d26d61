// Package config loads the dispatcher's own YAML configuration file,
// covering the FastCGI pool, the queue to poll, and the field mappings that
// derive per-request CGI environment overrides.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/glennschmidt/fcgiq/internal/fieldmap"
)

// Config is the top-level dispatcher configuration.
type Config struct {
	FastCGI       FastCGI                   `yaml:"fastcgi" validate:"required"`
	Queue         Queue                     `yaml:"queue" validate:"required"`
	FieldMappings fieldmap.FieldMappings    `yaml:"field_mappings" validate:"dive"`
	LogLevel      string                    `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`
}

// FastCGI configures the pool of FastCGI workers the dispatcher talks to.
type FastCGI struct {
	Address             string            `yaml:"address" validate:"required"`
	Port                uint16            `yaml:"port" validate:"required"`
	ScriptPath          string            `yaml:"script_path" validate:"required"`
	MaxParallelRequests uint32            `yaml:"max_parallel_requests" validate:"required,min=1"`
	CGIEnvironment      map[string]string `yaml:"cgi_environment"`
}

// Queue configures the message source.
type Queue struct {
	Sqs Sqs `yaml:"sqs" validate:"required"`
}

// Sqs configures the AWS SQS queue. Setting APIEndpointURL points the
// dispatcher at the local reference queue service (its own REST API, not the
// SQS wire protocol) instead of real AWS.
type Sqs struct {
	APIEndpointURL    string `yaml:"api_endpoint_url"`
	QueueURL          string `yaml:"queue_url" validate:"required"`
	VisibilityTimeout int32  `yaml:"visibility_timeout" validate:"required,min=1"`
}

// Load reads and validates a Config from a YAML file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromYAML(raw)
}

// FromYAML parses and validates a Config from raw YAML bytes.
func FromYAML(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
