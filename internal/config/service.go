package config

import "time"

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	// WebhookSecret is the shared secret the provider signs payloads with.
	WebhookSecret string `yaml:"webhook_secret"`
	// SignatureTolerance is the allowed clock skew on signed timestamps.
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
	// ProcessTimeout bounds the processing of a single event.
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	// SuspensionGracePeriod is how long a suspended subscription may sit
	// before it shows up on the overdue list. Policy for what happens then
	// is an operator decision, not the engine's.
	SuspensionGracePeriod time.Duration `yaml:"suspension_grace_period"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type AuthConfig struct {
	// JWTSecret signs operator tokens for the internal endpoints.
	JWTSecret string `yaml:"jwt_secret"`
}

type NotifyConfig struct {
	// RedisAddr enables the Redis pub/sub sink when set. Empty means
	// notifications are logged only.
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Channel       string        `yaml:"channel"`
	QueueSize     int           `yaml:"queue_size"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "billing-reconciler"
	}
	if c.Service.SignatureTolerance <= 0 {
		c.Service.SignatureTolerance = 5 * time.Minute
	}
	if c.Service.ProcessTimeout <= 0 {
		c.Service.ProcessTimeout = 10 * time.Second
	}
	if c.Service.SuspensionGracePeriod <= 0 {
		c.Service.SuspensionGracePeriod = 720 * time.Hour
	}
	if c.Notify.Channel == "" {
		c.Notify.Channel = "billing.notifications"
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = 1024
	}
	if c.Notify.MaxAttempts <= 0 {
		c.Notify.MaxAttempts = 5
	}
	if c.Notify.BaseBackoff <= 0 {
		c.Notify.BaseBackoff = time.Second
	}
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
}
