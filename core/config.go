package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	ProcessModeQueue  = "queue"
	ProcessModeInline = "inline"
)

const (
	EnvironmentProduction = "production"
	EnvironmentSandbox    = "sandbox"
)

const envPrefix = "RELAY_"

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Environment string         `koanf:"environment" mapstructure:"environment"`
	Secret      string         `koanf:"secret" mapstructure:"secret"`
	APIKey      string         `koanf:"api_key" mapstructure:"api_key"`
	Market      string         `koanf:"market" mapstructure:"market"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	Provider    ProviderConfig `koanf:"provider" mapstructure:"provider"`
	Notify      NotifyConfig   `koanf:"notify" mapstructure:"notify"`
	Queue       QueueConfig    `koanf:"queue" mapstructure:"queue"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
}

type WebhookConfig struct {
	ListenAddr  string `koanf:"listen_addr" mapstructure:"listen_addr"`
	Path        string `koanf:"path" mapstructure:"path"`
	ProcessMode string `koanf:"process_mode" mapstructure:"process_mode"`
	CallbackURL string `koanf:"callback_url" mapstructure:"callback_url"`
}

type ProviderConfig struct {
	BaseURL      string        `koanf:"base_url" mapstructure:"base_url"`
	FetchTimeout time.Duration `koanf:"fetch_timeout" mapstructure:"fetch_timeout"`
	ReplayWindow time.Duration `koanf:"replay_window" mapstructure:"replay_window"`
}

type NotifyConfig struct {
	ChatWebhookURL string        `koanf:"chat_webhook_url" mapstructure:"chat_webhook_url"`
	Timeout        time.Duration `koanf:"timeout" mapstructure:"timeout"`
	Timezone       string        `koanf:"timezone" mapstructure:"timezone"`
}

type QueueConfig struct {
	MaxAttempts     int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	RetryDelay      time.Duration `koanf:"retry_delay" mapstructure:"retry_delay"`
	DeadLetterOnMax bool          `koanf:"dead_letter_on_max" mapstructure:"dead_letter_on_max"`
}

type DatabaseConfig struct {
	Enabled bool   `koanf:"enabled" mapstructure:"enabled"`
	Driver  string `koanf:"driver" mapstructure:"driver"`
	DSN     string `koanf:"dsn" mapstructure:"dsn"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "delivery-relay",
		Environment: EnvironmentSandbox,
		Market:      "MY",
		Webhook: WebhookConfig{
			ListenAddr:  ":8080",
			Path:        "/delivery-webhook",
			ProcessMode: ProcessModeQueue,
		},
		Provider: ProviderConfig{
			FetchTimeout: 15 * time.Second,
			ReplayWindow: 5 * time.Minute,
		},
		Notify: NotifyConfig{
			Timeout:  10 * time.Second,
			Timezone: "Asia/Kuala_Lumpur",
		},
		Queue: QueueConfig{
			MaxAttempts:     8,
			RetryDelay:      5 * time.Second,
			DeadLetterOnMax: true,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
		},
	}
}

// Validate enforces the fatal startup conditions. Missing signing material
// is a configuration error: no request can be authenticated without it.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return NewConfigurationError("core: service_name is required")
	}
	if strings.TrimSpace(c.Secret) == "" {
		return NewConfigurationError("core: webhook signing secret is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return NewConfigurationError("core: provider api key is required")
	}
	switch strings.TrimSpace(c.Webhook.ProcessMode) {
	case ProcessModeQueue, ProcessModeInline:
	default:
		return NewConfigurationError(
			fmt.Sprintf("core: unsupported process_mode %q", c.Webhook.ProcessMode),
		)
	}
	switch strings.TrimSpace(c.Environment) {
	case EnvironmentProduction, EnvironmentSandbox:
	default:
		return NewConfigurationError(
			fmt.Sprintf("core: unsupported environment %q", c.Environment),
		)
	}
	if !strings.HasPrefix(strings.TrimSpace(c.Webhook.Path), "/") {
		return NewConfigurationError("core: webhook path must start with /")
	}
	return nil
}

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// EnvRawConfigLoader reads RELAY_* environment variables into a nested
// raw config map: RELAY_WEBHOOK_PROCESS_MODE -> webhook.process_mode.
type EnvRawConfigLoader struct{}

func (EnvRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("core: load environment config: %w", err)
	}
	return k.Raw(), nil
}

// StaticRawConfigLoader serves a fixed raw map, mostly for tests and
// single-binary wiring.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(l.Values, "."), nil); err != nil {
		return nil, fmt.Errorf("core: load static config: %w", err)
	}
	return k.Raw(), nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// GoOptionsResolver merges defaults < loaded < runtime as option layers
// before the final cfgx build.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(key, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			layer[key] = value
		}
	}
	setString("service_name", cfg.ServiceName)
	setString("environment", cfg.Environment)
	setString("secret", cfg.Secret)
	setString("api_key", cfg.APIKey)
	setString("market", cfg.Market)

	webhook := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Webhook.ListenAddr) != "" {
		webhook["listen_addr"] = cfg.Webhook.ListenAddr
	}
	if includeZero || strings.TrimSpace(cfg.Webhook.Path) != "" {
		webhook["path"] = cfg.Webhook.Path
	}
	if includeZero || strings.TrimSpace(cfg.Webhook.ProcessMode) != "" {
		webhook["process_mode"] = cfg.Webhook.ProcessMode
	}
	if includeZero || strings.TrimSpace(cfg.Webhook.CallbackURL) != "" {
		webhook["callback_url"] = cfg.Webhook.CallbackURL
	}
	if len(webhook) > 0 {
		layer["webhook"] = webhook
	}

	provider := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Provider.BaseURL) != "" {
		provider["base_url"] = cfg.Provider.BaseURL
	}
	if includeZero || cfg.Provider.FetchTimeout > 0 {
		provider["fetch_timeout"] = cfg.Provider.FetchTimeout
	}
	if includeZero || cfg.Provider.ReplayWindow > 0 {
		provider["replay_window"] = cfg.Provider.ReplayWindow
	}
	if len(provider) > 0 {
		layer["provider"] = provider
	}

	notify := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Notify.ChatWebhookURL) != "" {
		notify["chat_webhook_url"] = cfg.Notify.ChatWebhookURL
	}
	if includeZero || cfg.Notify.Timeout > 0 {
		notify["timeout"] = cfg.Notify.Timeout
	}
	if includeZero || strings.TrimSpace(cfg.Notify.Timezone) != "" {
		notify["timezone"] = cfg.Notify.Timezone
	}
	if len(notify) > 0 {
		layer["notify"] = notify
	}

	queue := map[string]any{}
	if includeZero || cfg.Queue.MaxAttempts > 0 {
		queue["max_attempts"] = cfg.Queue.MaxAttempts
	}
	if includeZero || cfg.Queue.RetryDelay > 0 {
		queue["retry_delay"] = cfg.Queue.RetryDelay
	}
	if includeZero || cfg.Queue.DeadLetterOnMax {
		queue["dead_letter_on_max"] = cfg.Queue.DeadLetterOnMax
	}
	if len(queue) > 0 {
		layer["queue"] = queue
	}

	database := map[string]any{}
	if includeZero || cfg.Database.Enabled {
		database["enabled"] = cfg.Database.Enabled
	}
	if includeZero || strings.TrimSpace(cfg.Database.Driver) != "" {
		database["driver"] = cfg.Database.Driver
	}
	if includeZero || strings.TrimSpace(cfg.Database.DSN) != "" {
		database["dsn"] = cfg.Database.DSN
	}
	if len(database) > 0 {
		layer["database"] = database
	}

	return layer
}
