// Package config loads service settings from configs/config.yml and TOUCH_* env vars.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every env override: controller.host -> TOUCH_CONTROLLER_HOST.
const EnvPrefix = "TOUCH"

type Config struct {
	Port       string           `mapstructure:"port"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Controller ControllerConfig `mapstructure:"controller"`
	Auth       AuthConfig       `mapstructure:"auth"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

type DBConfig struct {
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"` // 0 keeps events forever
}

// ControllerConfig describes the device and its timing quirks.
type ControllerConfig struct {
	Name          string        `mapstructure:"name"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ConnectSettle time.Duration `mapstructure:"connect_settle"`
	ReadSettle    time.Duration `mapstructure:"read_settle"`
	CommandSettle time.Duration `mapstructure:"command_settle"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	IOTimeout     time.Duration `mapstructure:"io_timeout"`
	ReadBuffer    int           `mapstructure:"read_buffer"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"` // tcp://host:1883
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos"`
}

var (
	errNoHost       = errors.New("controller.host is required")
	errBadPort      = errors.New("controller.port must be in 1..65535")
	errBadInterval  = errors.New("controller.poll_interval must be positive")
	errNoBroker     = errors.New("mqtt.broker is required when mqtt is enabled")
	errBadQoS       = errors.New("mqtt.qos must be 0, 1 or 2")
	errNoSigningKey = errors.New("auth.signing_key is required")
	errWeakKey      = errors.New("auth.signing_key is a placeholder")
)

// placeholderKeys are values copied from sample configs that must never sign tokens.
var placeholderKeys = []string{"change-me", "changeme", "secret"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("db.path", "touch.db")
	v.SetDefault("db.retention", "720h")

	v.SetDefault("controller.name", "Rinnai Touch Thermostat")
	v.SetDefault("controller.host", "")
	v.SetDefault("controller.port", 27847)
	v.SetDefault("controller.poll_interval", "10s")
	v.SetDefault("controller.connect_settle", "1s")
	v.SetDefault("controller.read_settle", "1s")
	v.SetDefault("controller.command_settle", "2s")
	v.SetDefault("controller.dial_timeout", "5s")
	v.SetDefault("controller.io_timeout", "5s")
	v.SetDefault("controller.read_buffer", 4096)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", "12h")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "touch-thermostat")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "touch")
	v.SetDefault("mqtt.qos", 0)
}

// Load reads path, or configs/config.yml when path is empty. A missing
// default file is fine: defaults and env vars still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// ValidateController checks what every command needs to reach the device.
func (c *Config) ValidateController() error {
	if strings.TrimSpace(c.Controller.Host) == "" {
		return errNoHost
	}
	if c.Controller.Port < 1 || c.Controller.Port > 65535 {
		return fmt.Errorf("%w: got %d", errBadPort, c.Controller.Port)
	}
	return nil
}

// Validate checks the settings `serve` needs.
func (c *Config) Validate() error {
	if err := c.ValidateController(); err != nil {
		return err
	}
	if c.Controller.PollInterval <= 0 {
		return errBadInterval
	}
	if c.Auth.SigningKey == "" {
		return errNoSigningKey
	}
	if slices.Contains(placeholderKeys, strings.ToLower(strings.TrimSpace(c.Auth.SigningKey))) {
		return errWeakKey
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errNoBroker
		}
		if c.MQTT.QoS > 2 {
			return errBadQoS
		}
	}
	return nil
}
