// Package config handles loading and validating tokentap configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for tokentap.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Proxy   ProxyConfig   `koanf:"proxy"`
	Mongo   MongoConfig   `koanf:"mongo"`
	Catalog CatalogConfig `koanf:"catalog"`
	Admin   AdminConfig   `koanf:"admin"`
	Debug   bool          `koanf:"debug"`
}

// ServerConfig holds the dashboard/query HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ProxyConfig holds the capture proxy listener settings. Mode selects how
// traffic reaches tokentap ("mitm" via an external addon runtime, or
// "direct" reverse-proxying); NetworkMode selects the bind scope
// ("local" = loopback only, "network" = all interfaces).
type ProxyConfig struct {
	Port        int    `koanf:"port"`
	Mode        string `koanf:"mode"`
	NetworkMode string `koanf:"network_mode"`
}

// BindAddr returns the listen address the configured network mode implies.
func (p ProxyConfig) BindAddr() string {
	if p.NetworkMode == "network" {
		return fmt.Sprintf("0.0.0.0:%d", p.Port)
	}
	return fmt.Sprintf("127.0.0.1:%d", p.Port)
}

// MongoConfig holds the event store connection settings.
type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

// CatalogConfig points at the provider catalog's override file and, if
// configured, a local tokenizer vocabulary for token estimation.
type CatalogConfig struct {
	OverridePath   string `koanf:"override_path"`
	TokenizerVocab string `koanf:"tokenizer_vocab"`
}

// AdminConfig controls where the admin token is persisted.
type AdminConfig struct {
	TokenFile string `koanf:"token_file"`
}

// envAliases maps the documented flat TOKENTAP_* variable names onto
// their nested koanf keys. Anything not listed here falls through to
// the generic underscore-to-dot transform (TOKENTAP_SERVER_PORT ->
// server.port).
var envAliases = map[string]string{
	"MONGO_URI":      "mongo.uri",
	"MONGO_DB":       "mongo.database",
	"WEB_PORT":       "server.port",
	"PROXY_PORT":     "proxy.port",
	"NETWORK_MODE":   "proxy.network_mode",
	"DEBUG":          "debug",
	"TOKENIZER_PATH": "catalog.tokenizer_vocab",
	"PROVIDERS_FILE": "catalog.override_path",
}

// Load reads configuration from a YAML file (skipped if absent — env
// vars alone are enough to run), layers environment variable overrides
// on top, and returns a fully populated Config.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	_ = godotenv.Load()

	// "." tells koanf how to separate nested keys internally (e.g.
	// "server.port").
	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Any env var starting with "TOKENTAP_" can override a config value:
	//   TOKENTAP_MONGO_URI -> mongo.uri
	if err := k.Load(env.Provider("TOKENTAP_", ".", func(s string) string {
		name := strings.TrimPrefix(s, "TOKENTAP_")
		if key, ok := envAliases[name]; ok {
			return key
		}
		return strings.ReplaceAll(strings.ToLower(name), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandVar(&cfg.Mongo.URI)
	expandVar(&cfg.Catalog.OverridePath)
	expandVar(&cfg.Admin.TokenFile)

	applyDefaults(&cfg)

	if cfg.Proxy.NetworkMode != "local" && cfg.Proxy.NetworkMode != "network" {
		return nil, fmt.Errorf("invalid proxy.network_mode %q: want \"local\" or \"network\"", cfg.Proxy.NetworkMode)
	}

	return &cfg, nil
}

// expandVar resolves a "${VAR_NAME}" placeholder against the process
// environment, in place.
func expandVar(s *string) {
	if strings.HasPrefix(*s, "${") && strings.HasSuffix(*s, "}") {
		envVar := (*s)[2 : len(*s)-1]
		*s = os.Getenv(envVar)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4040
	}
	if cfg.Proxy.Port == 0 {
		cfg.Proxy.Port = 8080
	}
	if cfg.Proxy.Mode == "" {
		cfg.Proxy.Mode = "direct"
	}
	if cfg.Proxy.NetworkMode == "" {
		cfg.Proxy.NetworkMode = "local"
	}
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "tokentap"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if home, err := os.UserHomeDir(); err == nil {
		if cfg.Catalog.OverridePath == "" {
			cfg.Catalog.OverridePath = filepath.Join(home, ".tokentap", "providers.json")
		}
		if cfg.Admin.TokenFile == "" {
			cfg.Admin.TokenFile = filepath.Join(home, ".tokentap", "admin_token")
		}
	}
}
