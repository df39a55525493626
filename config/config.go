package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mode selects how the managed server's host is reached.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeSSH   Mode = "ssh"
)

type Config struct {
	Log       Logger    `mapstructure:"logger"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Server    Profile   `mapstructure:"server"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Scheduler struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	ExecTimeout  time.Duration `mapstructure:"exec_timeout"`
	DataDir      string        `mapstructure:"data_dir"`
}

// Profile describes how to reach the managed server. It is a comparable
// value type: the scheduler reloads it between ticks and rebuilds its
// executor only when the value changed.
type Profile struct {
	Mode       Mode   `mapstructure:"mode"`
	Container  string `mapstructure:"container"`
	DockerPath string `mapstructure:"docker_path"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	KeyFile    string `mapstructure:"key_file"`
}

func (p Profile) Validate() error {
	if p.Container == "" {
		return fmt.Errorf("server.container is required")
	}
	switch p.Mode {
	case ModeLocal:
		return nil
	case ModeSSH:
		if p.Host == "" {
			return fmt.Errorf("server.host is required for ssh mode")
		}
		if p.User == "" {
			return fmt.Errorf("server.user is required for ssh mode")
		}
		if p.KeyFile == "" {
			return fmt.Errorf("server.key_file is required for ssh mode")
		}
		return nil
	default:
		return fmt.Errorf("unknown server.mode %q", p.Mode)
	}
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("scheduler.tick_interval", time.Minute)
	v.SetDefault("scheduler.exec_timeout", 30*time.Second)
	v.SetDefault("scheduler.data_dir", "./data")
	v.SetDefault("server.mode", string(ModeLocal))
	v.SetDefault("server.docker_path", "docker")
	v.SetDefault("server.port", 22)

	return v
}

// Load reads config.yaml from the working directory, falling back to
// defaults and environment variables when the file is absent.
func Load() (*Config, error) {
	return LoadDir(".")
}

// LoadDir is Load with an explicit directory to search.
func LoadDir(dir string) (*Config, error) {
	v := newViper(dir)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadProfile re-reads the configuration and returns the validated
// connection profile. The scheduler calls this at most once per tick so
// profile edits take effect without a restart.
func LoadProfile() (Profile, error) {
	return LoadProfileDir(".")
}

// LoadProfileDir is LoadProfile with an explicit directory to search.
func LoadProfileDir(dir string) (Profile, error) {
	cfg, err := LoadDir(dir)
	if err != nil {
		return Profile{}, err
	}
	if err := cfg.Server.Validate(); err != nil {
		return Profile{}, err
	}
	return cfg.Server, nil
}
