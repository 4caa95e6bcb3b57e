package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Brands   BrandConfig    `yaml:"brands" mapstructure:"brands"`
	Slack    SlackConfig    `yaml:"slack" mapstructure:"slack"`
	Stripe   StripeConfig   `yaml:"stripe" mapstructure:"stripe"`
	Calendly CalendlyConfig `yaml:"calendly" mapstructure:"calendly"`
	Parcel   ParcelConfig   `yaml:"parcel" mapstructure:"parcel"`
	CRM      CRMConfig      `yaml:"crm" mapstructure:"crm"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	CookieDomain   string   `yaml:"cookie_domain" mapstructure:"cookie_domain"`
	CookieSecure   bool     `yaml:"cookie_secure" mapstructure:"cookie_secure"`
}

// BrandConfig maps the secondary marketing hostname onto the shared route tree.
type BrandConfig struct {
	PrimaryHost   string `yaml:"primary_host" mapstructure:"primary_host"`
	SecondaryHost string `yaml:"secondary_host" mapstructure:"secondary_host"`
	RoutePrefix   string `yaml:"route_prefix" mapstructure:"route_prefix"`
}

// SlackConfig holds the incoming-webhook settings for internal notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Channel    string `yaml:"channel" mapstructure:"channel"`
}

// StripeConfig holds Stripe Checkout settings. Prices maps a selling option
// name to the Stripe Price ID of its listing package.
type StripeConfig struct {
	SecretKey  string            `yaml:"secret_key" mapstructure:"secret_key"`
	SuccessURL string            `yaml:"success_url" mapstructure:"success_url"`
	CancelURL  string            `yaml:"cancel_url" mapstructure:"cancel_url"`
	Prices     map[string]string `yaml:"prices" mapstructure:"prices"`
}

// CalendlyConfig holds Calendly API and webhook settings.
type CalendlyConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	WebhookSecret string `yaml:"webhook_secret" mapstructure:"webhook_secret"`
}

// ParcelConfig configures the parcel-lookup proxy.
type ParcelConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// CRMConfig holds the Notion lead-database settings.
type CRMConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ACCESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "directlist.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cookie_secure", true)
	v.SetDefault("brands.primary_host", "accessrealty.com")
	v.SetDefault("brands.secondary_host", "directlist.com")
	v.SetDefault("brands.route_prefix", "/directlist")
	v.SetDefault("stripe.success_url", "https://accessrealty.com/checkout/success")
	v.SetDefault("stripe.cancel_url", "https://accessrealty.com/checkout/cancelled")
	v.SetDefault("parcel.base_url", "https://parcels.accessrealty.com")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
