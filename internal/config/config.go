package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version int    `toml:"version"`
	Project string `toml:"project"`

	Paths   Paths   `toml:"paths"`
	Check   Check   `toml:"check"`
	Store   Store   `toml:"store"`
	Watch   Watch   `toml:"watch"`
	Output  Output  `toml:"output"`
	History History `toml:"history"`
	Metrics Metrics `toml:"metrics"`
}

type Paths struct {
	// ProjectRoot anchors canonicalization for the candidate batch.
	ProjectRoot string `toml:"project_root"`
	// StoreRoot is the working copy of the destination store.
	StoreRoot string `toml:"store_root"`
}

type Check struct {
	Workers             int     `toml:"workers"`
	FoldCase            bool    `toml:"fold_case"`
	HeavyRefThreshold   int     `toml:"heavy_ref_threshold"`
	StoreReadsPerSecond float64 `toml:"store_reads_per_second"`
}

type Store struct {
	Exclude []string `toml:"exclude"`
}

type Watch struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
	Exclude  []string      `toml:"exclude"`
}

type Output struct {
	Dir     string   `toml:"dir"`
	Formats []string `toml:"formats"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	// fold_case defaults to true; absent booleans decode as false.
	if !md.IsDefined("check", "fold_case") {
		cfg.Check.FoldCase = true
	}
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a usable config when no file is present. projectRoot and
// storeRoot still have to come from flags.
func Default() *Config {
	cfg := &Config{}
	cfg.Check.FoldCase = true
	cfg.applyDefaults(".")
	return cfg
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Check.Workers < 0 {
		c.Check.Workers = 0
	}
	if c.Check.HeavyRefThreshold == 0 {
		c.Check.HeavyRefThreshold = 15
	}
	if len(c.Store.Exclude) == 0 {
		c.Store.Exclude = []string{".git", ".svn", "Library", "Temp"}
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
	if len(c.Watch.Exclude) == 0 {
		c.Watch.Exclude = []string{"*.meta.tmp", "*~"}
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "reports"
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{"markdown"}
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(baseDir, ".assetgate", "history.db")
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = "127.0.0.1:9174"
	}
}

var knownFormats = map[string]bool{
	"markdown": true,
	"tsv":      true,
	"json":     true,
}

func (c *Config) Validate() error {
	if c.Paths.ProjectRoot != "" {
		if info, err := os.Stat(c.Paths.ProjectRoot); err != nil || !info.IsDir() {
			return fmt.Errorf("project_root %q is not a directory", c.Paths.ProjectRoot)
		}
	}
	for _, f := range c.Output.Formats {
		if !knownFormats[f] {
			return fmt.Errorf("unknown output format %q", f)
		}
	}
	if c.Check.StoreReadsPerSecond < 0 {
		return fmt.Errorf("store_reads_per_second must not be negative")
	}
	return nil
}
