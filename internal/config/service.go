package config

type ServiceConfig struct {
	Name        string        `yaml:"name"`
	Environment string        `yaml:"environment"`
	Version     string        `yaml:"version"`
	ClientURL   string        `yaml:"client_url"`
	JWTSecret   string        `yaml:"jwt_secret"`
	Gateway     GatewayConfig `yaml:"gateway"`
	Redis       RedisConfig   `yaml:"redis"`
}

// GatewayConfig holds the payment gateway credentials. Any of these may be
// empty in the file; absence is reported as a gateway configuration error
// when a payment operation actually needs them, not at startup.
type GatewayConfig struct {
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	ClientVersion string `yaml:"client_version"`
	// Environment selects the gateway host: "sandbox" or "production".
	Environment string `yaml:"environment"`
	// WebhookUsername/WebhookPassword authenticate inbound webhook and
	// callback notifications.
	WebhookUsername string `yaml:"webhook_username"`
	WebhookPassword string `yaml:"webhook_password"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}
