package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	UploadPath string        `mapstructure:"upload_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	PythonBin string `mapstructure:"python_bin"`
	ScriptDir string `mapstructure:"script_dir"`

	PipelineWorkers int    `mapstructure:"pipeline_workers"`
	Fanout          string `mapstructure:"fanout"`

	RoomRetention   time.Duration `mapstructure:"room_retention"`
	SingleRetention time.Duration `mapstructure:"single_retention"`

	AudioRateLimit    int           `mapstructure:"audio_rate_limit"`
	AudioRateInterval time.Duration `mapstructure:"audio_rate_interval"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("static_path", "./public")
	v.SetDefault("upload_path", "./uploads")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("python_bin", "python")
	v.SetDefault("script_dir", "./python")
	v.SetDefault("pipeline_workers", 4)
	v.SetDefault("fanout", "shared")
	v.SetDefault("room_retention", "60s")
	v.SetDefault("single_retention", "30s")
	v.SetDefault("audio_rate_limit", 10)
	v.SetDefault("audio_rate_interval", "10s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}
