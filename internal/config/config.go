package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string  `yaml:"log-level" env-default:"info"`
	HTTPPort   string  `yaml:"http-port" env-default:"9090"`
	SocketPort string  `yaml:"socket-port" env-default:"8080"`
	Redis      Redis   `yaml:"redis"`
	Payment    Payment `yaml:"payment"`
	Game       Game    `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

type Payment struct {
	BaseURL      string        `yaml:"base-url" env-default:""`
	PollInterval time.Duration `yaml:"poll-interval" env-default:"30s"`
}

type Game struct {
	TurnTimeout   time.Duration `yaml:"turn-timeout" env-default:"15s"`
	GraceWindow   time.Duration `yaml:"grace-window" env-default:"30s"`
	RematchWindow time.Duration `yaml:"rematch-window" env-default:"60s"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
