package server

import (
	"time"

	"github.com/spf13/viper"
)

// Config carries every operational tunable. Values come from the
// environment (PLAYDECK_ prefix) with an optional config file on top.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	MaxRooms        int           `mapstructure:"max_rooms"`
	RoomIdleTimeout time.Duration `mapstructure:"room_idle_timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	MessageRate     float64       `mapstructure:"message_rate"`
	MessageBurst    int           `mapstructure:"message_burst"`
	Debug           bool          `mapstructure:"debug"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		MaxRooms:        100,
		RoomIdleTimeout: 10 * time.Minute,
		SweepInterval:   30 * time.Second,
		MessageRate:     60,
		MessageBurst:    120,
	}
}

// LoadConfig reads configuration from playdeck.yaml (if present) and
// the environment. Missing files are fine; defaults cover everything.
func LoadConfig() (Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("listen_addr", defaults.ListenAddr)
	v.SetDefault("max_rooms", defaults.MaxRooms)
	v.SetDefault("room_idle_timeout", defaults.RoomIdleTimeout)
	v.SetDefault("sweep_interval", defaults.SweepInterval)
	v.SetDefault("message_rate", defaults.MessageRate)
	v.SetDefault("message_burst", defaults.MessageBurst)
	v.SetDefault("debug", false)

	v.SetConfigName("playdeck")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("playdeck")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
