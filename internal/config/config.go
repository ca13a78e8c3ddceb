// Package config loads service settings from the environment, an optional
// .env file and an optional config.yaml.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Addr        string        `mapstructure:"addr"`
	AppBaseURL  string        `mapstructure:"app_base_url"`
	Env         string        `mapstructure:"env"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	DatabaseURL string        `mapstructure:"database_url"`

	Flow     Flow     `mapstructure:"flow"`
	Admin    Admin    `mapstructure:"admin"`
	Woo      Woo      `mapstructure:"woo"`
	GraphQL  string   `mapstructure:"graphql_endpoint"`
	Quotes   Quotes   `mapstructure:"quotes"`
	SMTP     SMTP     `mapstructure:"smtp"`
	Cart     Cart     `mapstructure:"cart"`
	Temporal Temporal `mapstructure:"temporal"`
}

type Flow struct {
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

type Admin struct {
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

type Woo struct {
	Base   string `mapstructure:"base"`
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`
}

type Quotes struct {
	Backend  string `mapstructure:"backend"`  // file | sqlite
	Path     string `mapstructure:"path"`     // JSON file or SQLite database
	Delivery string `mapstructure:"delivery"` // direct | temporal
}

type SMTP struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	AdminEmail string `mapstructure:"admin_email"`
}

type Cart struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type Temporal struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"hostport"`
	Namespace string `mapstructure:"namespace"`
}

func (c *Config) Production() bool { return c.Env == "production" }

// env lists, per key, the variables consulted in order.
var env = map[string][]string{
	"addr":                 {"ADDR"},
	"app_base_url":         {"APP_BASE_URL"},
	"env":                  {"APP_ENV", "NODE_ENV"},
	"http_timeout":         {"HTTP_TIMEOUT"},
	"database_url":         {"DATABASE_URL"},
	"flow.api_key":         {"FLOW_API_KEY"},
	"flow.secret_key":      {"FLOW_SECRET_KEY"},
	"flow.base_url":        {"FLOW_BASE_URL"},
	"admin.user":           {"ADMIN_USER"},
	"admin.password":       {"ADMIN_PASSWORD"},
	"admin.session_secret": {"ADMIN_SESSION_SECRET", "SESSION_SECRET"},
	"admin.session_ttl":    {"ADMIN_SESSION_TTL"},
	"woo.base":             {"WC_BASE", "WC_URL", "NEXT_PUBLIC_WC_BASE"},
	"woo.key":              {"WC_KEY"},
	"woo.secret":           {"WC_SECRET"},
	"graphql_endpoint":     {"WP_GRAPHQL_ENDPOINT", "NEXT_PUBLIC_WP_GRAPHQL_ENDPOINT"},
	"quotes.backend":       {"QUOTES_BACKEND"},
	"quotes.path":          {"QUOTES_PATH"},
	"quotes.delivery":      {"QUOTES_DELIVERY"},
	"smtp.host":            {"SMTP_HOST"},
	"smtp.port":            {"SMTP_PORT"},
	"smtp.user":            {"SMTP_USER"},
	"smtp.password":        {"SMTP_PASS"},
	"smtp.admin_email":     {"ADMIN_EMAIL"},
	"cart.redis_addr":      {"CART_REDIS_ADDR"},
	"cart.ttl":             {"CART_TTL"},
	"temporal.enabled":     {"TEMPORAL_ENABLED"},
	"temporal.hostport":    {"TEMPORAL_HOSTPORT"},
	"temporal.namespace":   {"TEMPORAL_NAMESPACE"},
}

func defaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("env", "development")
	v.SetDefault("http_timeout", 15*time.Second)
	v.SetDefault("admin.session_ttl", 7*24*time.Hour)
	v.SetDefault("quotes.backend", "file")
	v.SetDefault("quotes.path", "data/cotizaciones.json")
	v.SetDefault("quotes.delivery", "direct")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("cart.ttl", 30*24*time.Hour)
	v.SetDefault("temporal.hostport", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
}

// Load reads .env (if present), then config.yaml from the working directory
// or the path in CONFIG_FILE, then the environment, which wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	defaults(v)
	for key, names := range env {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, err
		}
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Quotes.Delivery == "temporal" {
		cfg.Temporal.Enabled = true
	}
	return cfg, nil
}
