package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken      string `envconfig:"BOT_TOKEN" required:"true"`
	SettingsPath  string `envconfig:"SETTINGS_PATH" default:"./data/dus_signin_configs.json"`
	DBPath        string `envconfig:"DB_PATH" default:"./data/checkin_history.db"`
	PortalBaseURL string `envconfig:"PORTAL_BASE_URL" default:"http://k8n.cn"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"` // healthz
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
