// Package config resolves the store root and reads the optional config.yaml
// kept inside it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/tasklist/internal/kv"
	"github.com/amirbrooks/tasklist/internal/tasklist"
)

const (
	// FileName is the config file inside the store root.
	FileName = "config.yaml"

	EnvRoot    = "TASKLIST_ROOT"
	EnvBackend = "TASKLIST_BACKEND"
	EnvDSN     = "TASKLIST_DSN"
	EnvKey     = "TASKLIST_KEY"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Backend      string `yaml:"backend"`
	Key          string `yaml:"key"`
	DSN          string `yaml:"dsn,omitempty"`
	ExportDir    string `yaml:"export_dir,omitempty"`
	ConfirmClear *bool  `yaml:"confirm_clear,omitempty"`

	// Root is where the config was loaded from; never written.
	Root string `yaml:"-"`
}

func Default() Config {
	return Config{Backend: kv.BackendFile, Key: tasklist.DefaultKey}
}

// DefaultRoot returns TASKLIST_ROOT, else ~/.tasklist, else .tasklist.
func DefaultRoot() string {
	if env := os.Getenv(EnvRoot); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	if home != "" {
		return filepath.Join(home, ".tasklist")
	}
	return ".tasklist"
}

func Path(root string) string {
	return filepath.Join(ExpandHome(root), FileName)
}

// Load reads <root>/config.yaml over the defaults and then applies env
// overrides. A missing file is not an error.
func Load(root string) (Config, error) {
	cfg, err := LoadFile(root)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile is Load without env overrides or validation.
func LoadFile(root string) (Config, error) {
	root = ExpandHome(root)
	cfg := Default()
	cfg.Root = root
	b, err := os.ReadFile(Path(root))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, FileName, err)
		}
		cfg.normalize()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		c.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDSN)); v != "" {
		c.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvKey)); v != "" {
		c.Key = v
	}
}

func (c *Config) normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = kv.BackendFile
	}
	c.Key = strings.TrimSpace(c.Key)
	if c.Key == "" {
		c.Key = tasklist.DefaultKey
	}
}

func (c Config) Validate() error {
	for _, b := range kv.Backends {
		if c.Backend == b {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown backend %q (want %s)", ErrInvalid, c.Backend, strings.Join(kv.Backends, "|"))
}

// ExportPath is ExportDir or <root>/exports.
func (c Config) ExportPath() string {
	if strings.TrimSpace(c.ExportDir) != "" {
		return ExpandHome(c.ExportDir)
	}
	return filepath.Join(c.Root, "exports")
}

// ShouldConfirmClear defaults to true when unset.
func (c Config) ShouldConfirmClear() bool {
	return c.ConfirmClear == nil || *c.ConfirmClear
}

// Save writes the config to <root>/config.yaml.
func Save(root string, cfg Config) error {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return kv.WriteFileAtomic(Path(root), b, 0o644)
}

// Init creates root and writes a default config.yaml unless one exists.
// It reports whether a file was written.
func Init(root string) (bool, error) {
	root = ExpandHome(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return false, err
	}
	if _, err := os.Stat(Path(root)); err == nil {
		return false, nil
	}
	return true, Save(root, Default())
}

// Keys lists the keys accepted by Set, sorted.
func Keys() []string {
	return []string{"backend", "confirm_clear", "dsn", "export_dir", "key"}
}

// Set assigns a single key from its string form.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "backend":
		c.Backend = strings.ToLower(value)
		return c.Validate()
	case "key":
		if value == "" {
			return fmt.Errorf("%w: key cannot be empty", ErrInvalid)
		}
		c.Key = value
	case "dsn":
		c.DSN = value
	case "export_dir":
		c.ExportDir = value
	case "confirm_clear":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: confirm_clear expects true|false", ErrInvalid)
		}
		c.ConfirmClear = &b
	default:
		return fmt.Errorf("%w: unknown key %q (want %s)", ErrInvalid, key, strings.Join(Keys(), "|"))
	}
	return nil
}

func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
