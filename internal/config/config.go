// Package config содержит логику чтения конфигурации сервиса homefood.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// stringOption связывает поле конфигурации с флагом командной строки.
// Значение поля на момент вызова parseOptions считается пришедшим из
// окружения и имеет приоритет над флагом.
type stringOption struct {
	dst      *string
	flagName string
	def      string
	usage    string
}

func parseOptions(opts []stringOption) {
	fromEnv := make([]string, len(opts))
	for i, o := range opts {
		fromEnv[i] = *o.dst
	}

	for _, o := range opts {
		flag.StringVar(o.dst, o.flagName, o.def, o.usage)
	}

	flag.Parse()

	for i, o := range opts {
		if fromEnv[i] != "" {
			*o.dst = fromEnv[i]
		}
	}
}

// Config содержит параметры конфигурации API-сервера homefood.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
}

// Parse считывает конфигурацию сервера из переменных окружения и флагов
// командной строки.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	parseOptions([]stringOption{
		{&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server"},
		{&cfg.DatabaseURI, "d", "", "database URI"},
	})

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// BoardConfig содержит параметры конфигурации панели мейкера.
type BoardConfig struct {
	ServerAddress string `env:"SERVER_ADDRESS"`
	MakerID       string `env:"MAKER_ID"`
}

// ParseBoard считывает конфигурацию панели мейкера. Идентификатор мейкера
// обязателен: без него панели нечего отслеживать.
func ParseBoard() (*BoardConfig, error) {
	cfg := &BoardConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	parseOptions([]stringOption{
		{&cfg.ServerAddress, "s", "localhost:8080", "homefood server address"},
		{&cfg.MakerID, "m", "", "maker id to watch"},
	})

	if cfg.MakerID == "" {
		return nil, fmt.Errorf("maker id is required")
	}

	return cfg, nil
}
