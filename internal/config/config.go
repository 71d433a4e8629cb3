package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Name         string `mapstructure:"name"`
	WorkspaceDir string `mapstructure:"workspace_dir"`
	LocalDir     string `mapstructure:"local_dir"`
	Entrypoint   string `mapstructure:"entrypoint"`
	ImageFile    string `mapstructure:"image_file"`
}

type SandboxConfig struct {
	Backend      string        `mapstructure:"backend"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DockerBinary string        `mapstructure:"docker_binary"`
	Network      bool          `mapstructure:"network"`
	Memory       string        `mapstructure:"memory"`
}

type ScheduleConfig struct {
	Hour      int           `mapstructure:"hour"`
	Minute    int           `mapstructure:"minute"`
	Timezone  string        `mapstructure:"timezone"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type ServerConfig struct {
	StatusAddr string `mapstructure:"status_addr"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
}

// Load reads dailyrun.yaml from path, or from . and $HOME/.dailyrun when
// path is empty. A missing file in the search path is not an error.
// DAILYRUN_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dailyrun")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.dailyrun")
	}

	v.SetDefault("app.name", "scheduled_analytics")
	v.SetDefault("app.workspace_dir", "/workspace")
	v.SetDefault("app.local_dir", ".")
	v.SetDefault("app.entrypoint", "app.py")
	v.SetDefault("app.image_file", "")
	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.timeout", 24*time.Hour)
	v.SetDefault("sandbox.docker_binary", "docker")
	v.SetDefault("sandbox.network", true)
	v.SetDefault("sandbox.memory", "")
	v.SetDefault("schedule.hour", 6)
	v.SetDefault("schedule.minute", 0)
	v.SetDefault("schedule.timezone", "Asia/Shanghai")
	v.SetDefault("schedule.heartbeat", time.Hour)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".dailyrun", "dailyrun.db"))
	v.SetDefault("server.status_addr", "")

	v.SetEnvPrefix("DAILYRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand ${VAR} references in path-like values
	cfg.App.LocalDir = expandEnv(cfg.App.LocalDir)
	cfg.App.ImageFile = expandEnv(cfg.App.ImageFile)
	cfg.Storage.DBPath = expandEnv(cfg.Storage.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the launcher and trigger depend on.
func (c *Config) Validate() error {
	switch {
	case c.App.Name == "":
		return fmt.Errorf("app.name must not be empty")
	case !strings.HasPrefix(c.App.WorkspaceDir, "/"):
		return fmt.Errorf("app.workspace_dir must be absolute, got %q", c.App.WorkspaceDir)
	case c.App.Entrypoint == "":
		return fmt.Errorf("app.entrypoint must not be empty")
	case c.Sandbox.Timeout <= 0:
		return fmt.Errorf("sandbox.timeout must be positive, got %s", c.Sandbox.Timeout)
	case c.Schedule.Hour < 0 || c.Schedule.Hour > 23:
		return fmt.Errorf("schedule.hour must be in [0, 23], got %d", c.Schedule.Hour)
	case c.Schedule.Minute < 0 || c.Schedule.Minute > 59:
		return fmt.Errorf("schedule.minute must be in [0, 59], got %d", c.Schedule.Minute)
	case c.Schedule.Timezone == "":
		return fmt.Errorf("schedule.timezone must not be empty")
	case c.Schedule.Heartbeat <= 0:
		return fmt.Errorf("schedule.heartbeat must be positive, got %s", c.Schedule.Heartbeat)
	}
	return nil
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
