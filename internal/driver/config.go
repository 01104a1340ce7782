package driver

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultNamespace        = "benqbang.0"
	defaultPollIntervalMs   = 5000
	defaultResultDelayMs    = 1000
	defaultRequestTimeoutMs = 5000
	defaultRetryAttempts    = 2
	defaultMaxBackoffMs     = 60000
)

type Config struct {
	Server           string `json:"server"`
	Namespace        string `json:"namespace"`
	PollIntervalMs   int    `json:"poll_interval_ms"`
	ResultDelayMs    int    `json:"result_delay_ms"`
	RequestTimeoutMs int    `json:"request_timeout_ms"`
	RetryAttempts    int    `json:"retry_attempts"`
	MaxBackoffMs     int    `json:"max_backoff_ms"`

	PublisherDir string `json:"publisher_dir"`

	MQTTEnable   bool   `json:"mqtt_enable"`
	MQTTBroker   string `json:"mqtt_broker"`
	MQTTClientID string `json:"mqtt_client_id"`
	MQTTUsername string `json:"mqtt_username"`
	MQTTPassword string `json:"mqtt_password"`
	MQTTTopic    string `json:"mqtt_topic"`

	DynamoDBEnable bool   `json:"dynamodb_enable"`
	DynamoDBTable  string `json:"dynamodb_table"`

	HealthAddr string `json:"health_addr"`
	HTTPAddr   string `json:"http_addr"`
}

// ApplyEnv lets the environment override deployment specific settings.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("BENQ_SERVER")); v != "" {
		c.Server = v
	}
	if v := strings.TrimSpace(getenv("DYNAMODB_STATE_TABLE")); v != "" {
		c.DynamoDBTable = v
	}
	if v := strings.TrimSpace(getenv("HEALTH_GRPC_ADDR")); v != "" {
		c.HealthAddr = v
	}
}

func (c *Config) ApplyDefaults() {
	c.Server = strings.TrimSpace(c.Server)
	if strings.TrimSpace(c.Namespace) == "" {
		c.Namespace = defaultNamespace
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = defaultPollIntervalMs
	}
	if c.ResultDelayMs <= 0 {
		c.ResultDelayMs = defaultResultDelayMs
	}
	if c.RequestTimeoutMs <= 0 {
		c.RequestTimeoutMs = defaultRequestTimeoutMs
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.MaxBackoffMs <= 0 {
		c.MaxBackoffMs = defaultMaxBackoffMs
	}
	// Backoff never waits less than a regular poll.
	if c.MaxBackoffMs < c.PollIntervalMs {
		c.MaxBackoffMs = c.PollIntervalMs
	}
	if c.MQTTTopic == "" {
		c.MQTTTopic = "iobroker"
	}
	if c.MQTTClientID == "" {
		c.MQTTClientID = strings.ReplaceAll(c.Namespace, ".", "-")
	}
}

func (c Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("config.server is required")
	}
	if c.MQTTEnable && strings.TrimSpace(c.MQTTBroker) == "" {
		return fmt.Errorf("config.mqtt_broker is required when mqtt_enable is set")
	}
	if c.DynamoDBEnable && strings.TrimSpace(c.DynamoDBTable) == "" {
		return fmt.Errorf("config.dynamodb_table (or DYNAMODB_STATE_TABLE) is required when dynamodb_enable is set")
	}
	return nil
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) ResultDelay() time.Duration {
	return time.Duration(c.ResultDelayMs) * time.Millisecond
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}
