// # internal/config/config.go
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	SourcePaths []string `toml:"source_paths"`
	Exclude     Exclude  `toml:"exclude"`
	Check       Check    `toml:"check"`
	Codegen     Codegen  `toml:"codegen"`
	Cache       Cache    `toml:"cache"`
	Watch       Watch    `toml:"watch"`
	Output      Output   `toml:"output"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Check struct {
	// MaxIterations bounds the semantic analysis fixpoint per SCC.
	MaxIterations int `toml:"max_iterations"`
}

type Codegen struct {
	Enabled bool   `toml:"enabled"`
	OutDir  string `toml:"out_dir"`
}

type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// RechecksPerSecond bounds recheck churn when many files change at once.
	RechecksPerSecond float64 `toml:"rechecks_per_second"`
}

type Output struct {
	DOT string `toml:"dot"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if len(cfg.SourcePaths) == 0 {
		cfg.SourcePaths = []string{"."}
	}
	if cfg.Check.MaxIterations == 0 {
		cfg.Check.MaxIterations = 10
	}
	if cfg.Codegen.OutDir == "" {
		cfg.Codegen.OutDir = "build"
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = ".pyrite/cache.db"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RechecksPerSecond == 0 {
		cfg.Watch.RechecksPerSecond = 4
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "__pycache__", ".pyrite"}
	}
}
