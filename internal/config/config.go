// Package config loads the itpbot configuration from a YAML file and ITPBOT_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/itpbot/internal/logging"
	"github.com/aretw0/itpbot/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment overrides. ITPBOT_SESSION_TTL sets session.ttl.
const EnvPrefix = "ITPBOT_"

// Config is the complete runtime configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Channel ChannelConfig `mapstructure:"channel"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Input   InputConfig   `mapstructure:"input"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SessionConfig struct {
	// Backend is memory, redis or file.
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Dir     string        `mapstructure:"dir"`
	// EncryptionKey is a hex encoded AES-256 key. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`
	HashKeys      bool   `mapstructure:"hash_keys"`
	HashSalt      string `mapstructure:"hash_salt"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type CatalogConfig struct {
	// Backend is memory or sqlite.
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	// Seed loads the bundled vehicle fixture at startup.
	Seed bool `mapstructure:"seed"`
}

type ChannelConfig struct {
	// Kind is none, webhook or nats.
	Kind       string `mapstructure:"kind"`
	WebhookURL string `mapstructure:"webhook_url"`
	Token      string `mapstructure:"token"`
}

type NATSConfig struct {
	URL             string `mapstructure:"url"`
	OutboundSubject string `mapstructure:"outbound_subject"`
	InboundSubject  string `mapstructure:"inbound_subject"`
	Queue           string `mapstructure:"queue"`
}

type WebhookConfig struct {
	// Rate is the sustained number of messages per second accepted from one sender.
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
	// Secret enables signature verification of inbound webhook requests.
	Secret string `mapstructure:"secret"`
}

type InputConfig struct {
	MaxSize int `mapstructure:"max_size"`
}

func defaults() map[string]any {
	return map[string]any{
		"http":    map[string]any{"addr": ":8080"},
		"log":     map[string]any{"level": "info", "format": "text"},
		"session": map[string]any{"backend": "memory", "ttl": "24h", "dir": ".itpbot/sessions"},
		"redis":   map[string]any{"addr": "localhost:6379", "db": 0, "prefix": "itpbot:session:"},
		"catalog": map[string]any{"backend": "memory", "path": "itpbot.db", "seed": true},
		"channel": map[string]any{"kind": "none"},
		"nats": map[string]any{
			"url":              "nats://127.0.0.1:4222",
			"outbound_subject": "itpbot.outbound",
			"inbound_subject":  "itpbot.inbound",
			"queue":            "itpbot",
		},
		"webhook": map[string]any{"rate": 1, "burst": 5},
		"input":   map[string]any{"max_size": 4096},
	}
}

// Default returns the configuration used without a file or environment.
func Default() *Config {
	cfg, err := decode(defaults())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the optional YAML file at path and applies the environment overrides.
// environ is in os.Environ form; pass nil to use the process environment.
func Load(path string, environ []string) (*Config, error) {
	raw := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		merge(raw, file)
	}

	if environ == nil {
		environ = os.Environ()
	}
	merge(raw, fromEnv(environ))

	cfg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromEnv turns ITPBOT_SECTION_KEY=value into {section: {key: value}}.
func fromEnv(environ []string) map[string]any {
	out := map[string]any{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
		if !ok || section == "" || key == "" {
			continue
		}
		sub, _ := out[section].(map[string]any)
		if sub == nil {
			sub = map[string]any{}
			out[section] = sub
		}
		sub[key] = value
	}
	return out
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		srcMap, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		dstMap, ok := dst[k].(map[string]any)
		if !ok {
			dstMap = map[string]any{}
			dst[k] = dstMap
		}
		merge(dstMap, srcMap)
	}
}

func decode(raw map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks enumerations and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	switch c.Session.Backend {
	case "memory", "redis", "file":
	default:
		errs = append(errs, fmt.Errorf("session.backend must be memory, redis or file, got %q", c.Session.Backend))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, errors.New("session.ttl cannot be negative"))
	}
	if c.Session.EncryptionKey != "" {
		if _, err := middleware.ParseHexKey(c.Session.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("session.encryption_key: %w", err))
		}
	}
	if c.Session.HashKeys && c.Session.HashSalt == "" {
		errs = append(errs, errors.New("session.hash_salt is required when session.hash_keys is set"))
	}

	switch c.Catalog.Backend {
	case "memory":
	case "sqlite":
		if c.Catalog.Path == "" {
			errs = append(errs, errors.New("catalog.path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("catalog.backend must be memory or sqlite, got %q", c.Catalog.Backend))
	}

	switch c.Channel.Kind {
	case "none", "nats":
	case "webhook":
		if c.Channel.WebhookURL == "" {
			errs = append(errs, errors.New("channel.webhook_url is required for the webhook channel"))
		}
	default:
		errs = append(errs, fmt.Errorf("channel.kind must be none, webhook or nats, got %q", c.Channel.Kind))
	}

	if c.Webhook.Rate <= 0 || c.Webhook.Burst <= 0 {
		errs = append(errs, errors.New("webhook.rate and webhook.burst must be positive"))
	}
	if c.Input.MaxSize <= 0 {
		errs = append(errs, errors.New("input.max_size must be positive"))
	}

	return errors.Join(errs...)
}
