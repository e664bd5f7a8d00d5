package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Load reads the yaml file at path (optional) and overlays environment
// variables. A .env file in the working directory is loaded first when present.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg AppConfig
	if strings.TrimSpace(path) != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.DBDriver)) {
	case "postgres":
		if strings.TrimSpace(c.DBURL) == "" {
			return errors.New("db_url is required for postgres")
		}
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			return errors.New("db_path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	for _, raw := range c.Auth.APIKeys {
		if _, _, ok := strings.Cut(strings.TrimSpace(raw), ":"); !ok {
			return fmt.Errorf("api key entry must be key:role")
		}
	}
	return nil
}
