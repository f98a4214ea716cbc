package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/icodeforyou/ews-go/ews"
	"github.com/icodeforyou/ews-go/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfigEws struct {
	ApiKey   string `mapstructure:"api_key"`
	Endpoint *string
	// Request timeout in seconds, default: 10
	TimeoutSeconds *int `mapstructure:"timeout_seconds"`
}

func (e AppConfigEws) GetEndpoint() string {
	if e.Endpoint == nil || *e.Endpoint == "" {
		return ews.DataEndpoint
	}
	return *e.Endpoint
}

func (e AppConfigEws) GetTimeout() time.Duration {
	if e.TimeoutSeconds == nil || *e.TimeoutSeconds <= 0 {
		return ews.DefaultTimeout
	}
	return time.Duration(*e.TimeoutSeconds) * time.Second
}

type AppConfigSchedule struct {
	// Cron spec for refreshing prices, default: "5 * * * *"
	FetchAt *string `mapstructure:"fetch_at"`
	// Cron spec for publishing the current price, default: "@hourly"
	PublishAt *string `mapstructure:"publish_at"`
}

func (s AppConfigSchedule) GetFetchAt() string {
	if s.FetchAt == nil {
		return "5 * * * *"
	}
	return *s.FetchAt
}

func (s AppConfigSchedule) GetPublishAt() string {
	if s.PublishAt == nil {
		return "@hourly"
	}
	return *s.PublishAt
}

type AppConfigMqtt struct {
	Host     string // MQTT is disabled when empty
	Port     int16
	Username string
	Password string
	Topic    *string
	ClientId *string `mapstructure:"client_id"`
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Host != ""
}

func (m AppConfigMqtt) GetTopic() string {
	if m.Topic == nil {
		return "ews/price"
	}
	return *m.Topic
}

func (m AppConfigMqtt) GetClientId() string {
	if m.ClientId == nil {
		return ews.ProjectName
	}
	return *m.ClientId
}

type AppConfigApi struct {
	// Listen address of the status server (/metrics, /api, /ws), e.g. ":9120".
	// Disabled when empty.
	Address string
	// Seconds between current price checks pushed to websocket clients, default: 10
	PushIntervalSeconds *int `mapstructure:"push_interval_seconds"`
}

func (a AppConfigApi) GetPushInterval() time.Duration {
	if a.PushIntervalSeconds == nil || *a.PushIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(*a.PushIntervalSeconds) * time.Second
}

type AppConfigDisplay struct {
	// Timezone for printed times and for "today", default: "Europe/Berlin"
	Timezone *string `mapstructure:"timezone"`
}

func (d AppConfigDisplay) GetTimezone() string {
	if d.Timezone == nil {
		return "Europe/Berlin"
	}
	return *d.Timezone
}

type AppConfigLogging struct {
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
	// Path of a JSON log file, no file logging when empty
	File string
	// Min log level for the log file, default: "INFO"
	FileLevel *string `mapstructure:"file_level"`
	// Size in megabytes before the log file is rotated, default: 5
	FileMaxSizeMb *int `mapstructure:"file_max_size_mb"`
	// Number of rotated log files to keep, default: 2
	FileMaxBackups *int `mapstructure:"file_max_backups"`
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

func (l AppConfigLogging) GetFileLevel() slog.Level {
	return logging.LevelFromString(l.FileLevel)
}

func (l AppConfigLogging) GetFileMaxSizeMb() int {
	if l.FileMaxSizeMb == nil {
		return 5
	}
	return *l.FileMaxSizeMb
}

func (l AppConfigLogging) GetFileMaxBackups() int {
	if l.FileMaxBackups == nil {
		return 2
	}
	return *l.FileMaxBackups
}

func (l AppConfigLogging) FileOptions() logging.FileOptions {
	return logging.FileOptions{
		Path:       l.File,
		Level:      l.GetFileLevel(),
		MaxSizeMb:  l.GetFileMaxSizeMb(),
		MaxBackups: l.GetFileMaxBackups(),
	}
}

type AppConfig struct {
	Ews      AppConfigEws
	Schedule AppConfigSchedule `mapstructure:"schedule"`
	Mqtt     AppConfigMqtt     `mapstructure:"mqtt"`
	Api      AppConfigApi      `mapstructure:"api"`
	Display  AppConfigDisplay  `mapstructure:"display"`
	Logging  AppConfigLogging  `mapstructure:"logging"`
}

func (c *AppConfig) ClientOptions() []ews.Option {
	return []ews.Option{
		ews.WithEndpoint(c.Ews.GetEndpoint()),
		ews.WithTimeout(c.Ews.GetTimeout()),
	}
}

// envKeys can be set from the environment even when the config file does not
// name them, e.g. MQTT_HOST for mqtt.host.
var envKeys = []string{
	"ews.api_key", "ews.endpoint", "ews.timeout_seconds",
	"schedule.fetch_at", "schedule.publish_at",
	"mqtt.host", "mqtt.port", "mqtt.username", "mqtt.password", "mqtt.topic", "mqtt.client_id",
	"api.address", "api.push_interval_seconds",
	"display.timezone",
	"logging.console_level", "logging.file", "logging.file_level",
	"logging.file_max_size_mb", "logging.file_max_backups",
}

// Load reads the config file and overlays environment variables, e.g.
// EWS_API_KEY for ews.api_key. A .env file in the working directory is
// loaded first if present.
func Load(path string) (*AppConfig, error) {
	return load(viper.GetViper(), path)
}

func load(v *viper.Viper, path string) (*AppConfig, error) {
	_ = godotenv.Load()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// AutomaticEnv only applies to keys viper already knows about
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("unable to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*AppConfig, error) {
	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	return &c, nil
}

// Watch calls onChange with the reloaded config each time the config file
// changes on disk. Changes that fail to unmarshal are logged and skipped.
func Watch(onChange func(*AppConfig)) {
	watch(viper.GetViper(), onChange)
}

func watch(v *viper.Viper, onChange func(*AppConfig)) {
	logger := slog.Default().With("module", "config")
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		c, err := unmarshal(v)
		if err != nil {
			logger.Error("failed to reload config", slog.Any("error", err))
			return
		}
		onChange(c)
	})
	v.WatchConfig()
}
