// Package config loads pokenav settings from defaults, an optional YAML file
// and POKENAV_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override. Nested keys use a double
// underscore: POKENAV_SERVER__ADDR sets server.addr.
const EnvPrefix = "POKENAV_"

type Config struct {
	SiteDir string       `yaml:"site_dir" koanf:"site_dir"`
	DataURL string       `yaml:"data_url" koanf:"data_url"`
	Header  HeaderConfig `yaml:"header" koanf:"header"`
	Index   IndexConfig  `yaml:"index" koanf:"index"`
	Search  SearchConfig `yaml:"search" koanf:"search"`
	Server  ServerConfig `yaml:"server" koanf:"server"`
	Log     LogConfig    `yaml:"log" koanf:"log"`
}

type HeaderConfig struct {
	Fragment string `yaml:"fragment" koanf:"fragment"`
	Height   int    `yaml:"height" koanf:"height"`
	Margin   int    `yaml:"margin" koanf:"margin"`
	Brand    string `yaml:"brand" koanf:"brand"`
}

type IndexConfig struct {
	Resource string `yaml:"resource" koanf:"resource"`
}

type SearchConfig struct {
	Debounce   time.Duration `yaml:"debounce" koanf:"debounce"`
	Limit      int           `yaml:"limit" koanf:"limit"`
	DetailPage string        `yaml:"detail_page" koanf:"detail_page"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" koanf:"addr"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" koanf:"fetch_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SiteDir: "site",
		Header: HeaderConfig{
			Fragment: "header.html",
			Height:   64,
			Margin:   8,
			Brand:    "Pokédex",
		},
		Index: IndexConfig{
			Resource: "data/pokedex.json",
		},
		Search: SearchConfig{
			Debounce:   120 * time.Millisecond,
			Limit:      15,
			DetailPage: "pokemon.html",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			FetchTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from DefaultConfig, the YAML file at path (skipped
// when absent) and POKENAV_* variables, later sources winning.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := loadFile(k, path); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config env %s*: %w", EnvPrefix, err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	switch _, err := os.Stat(path); {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return fmt.Errorf("config %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// envKey maps POKENAV_SEARCH__DETAIL_PAGE to search.detail_page.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes c as YAML, replacing path atomically.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save config %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save config %s: %w", path, err)
	}
	return nil
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validFormats = map[string]bool{"text": true, "json": true}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.SiteDir == "" && c.DataURL == "" {
		return fmt.Errorf("site_dir or data_url is required")
	}
	if c.DataURL != "" && !strings.HasPrefix(c.DataURL, "http://") && !strings.HasPrefix(c.DataURL, "https://") {
		return fmt.Errorf("invalid data_url %q: must be http or https", c.DataURL)
	}
	if c.Header.Fragment == "" {
		return fmt.Errorf("header.fragment is required")
	}
	if c.Header.Height <= 0 {
		return fmt.Errorf("header.height must be positive")
	}
	if c.Header.Margin < 0 {
		return fmt.Errorf("header.margin must be non-negative")
	}
	if c.Index.Resource == "" {
		return fmt.Errorf("index.resource is required")
	}
	if c.Search.Debounce <= 0 {
		return fmt.Errorf("search.debounce must be positive")
	}
	if c.Search.Limit <= 0 || c.Search.Limit > 15 {
		return fmt.Errorf("search.limit must be between 1 and 15")
	}
	if c.Search.DetailPage == "" {
		return fmt.Errorf("search.detail_page is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	return nil
}
