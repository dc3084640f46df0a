package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App    `json:"app"    toml:"app"`
		Stream `json:"stream" toml:"stream"`
		HTTP   `json:"http"   toml:"http"`
		Log    `json:"logger" toml:"logger"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME" env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"    env-default:"false"`
	}

	Stream struct {
		WebsocketURL     string `json:"websocket_url"      toml:"websocket_url"      env:"STREAM_WS_URL"             env-default:"ws://localhost:8080/ws"`
		APIBaseURL       string `json:"api_base_url"       toml:"api_base_url"       env:"STREAM_API_BASE_URL"       env-default:"http://localhost:8080"`
		ReconnectDelayMS int    `json:"reconnect_delay_ms" toml:"reconnect_delay_ms" env:"STREAM_RECONNECT_DELAY_MS" env-default:"5000"`
		RequestTimeout   int    `json:"request_timeout"    toml:"request_timeout"    env:"STREAM_REQUEST_TIMEOUT"    env-default:"10"`
	}

	HTTP struct {
		Port string `json:"port" toml:"port" env:"HTTP_PORT" env-default:"8080"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}
)

// ReconnectDelay returns the reconnect delay as a duration.
func (s Stream) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelayMS) * time.Millisecond
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	return cfg, nil
}
