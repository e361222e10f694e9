package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/modi-labs/modi/internal/branding"
)

const (
	fileType = "json"

	// keyDelimiter replaces viper's "." so project IDs containing dots stay flat.
	keyDelimiter = "::"

	// Settings keys understood by Get/Set.
	KeyCachePath = "cache.path"
	KeyPython    = "python"
	KeyIndex     = "index"
	KeyLogLevel  = "log_level"
	KeyRemote    = "remote"

	defaultPython   = "python3"
	defaultLogLevel = "info"
)

// ErrBootstrap is returned when the config file cannot be created, read or written.
var ErrBootstrap = errors.New("config bootstrap failure")

// ErrUnknownKey is returned by Set and Get for keys outside the settings set.
var ErrUnknownKey = errors.New("unknown config key")

// Config is the on-disk shape of ~/.modi.json.
type Config struct {
	Cache    Cache              `json:"cache"`
	Projects map[string]Project `json:"projects"`
	Remote   string             `json:"remote,omitempty"`
	Auth     *Auth              `json:"auth,omitempty"`
	Python   string             `json:"python,omitempty"`
	Index    string             `json:"index,omitempty"`
	LogLevel string             `json:"log_level,omitempty"`
}

// Cache locates the global package cache.
type Cache struct {
	Path string `json:"path"`
}

// Project is a registry entry keyed by project ID.
type Project struct {
	Name         string   `json:"name"`
	Directory    string   `json:"directory"`
	Dependencies []string `json:"dependencies"`
	Description  string   `json:"description"`
	Type         string   `json:"pkg_type,omitempty"`
}

// Auth holds credentials for the remote publish service.
type Auth struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Store owns one loaded config file. It is created once per invocation and
// passed explicitly; there is no package-level instance.
type Store struct {
	path         string
	v            *viper.Viper
	cfg          *Config
	bootstrapped bool
}

// DefaultPath returns the config file path: $MODI_CONFIG, else ~/.modi.json.
func DefaultPath() (string, error) {
	if v := os.Getenv(branding.EnvVar("CONFIG")); v != "" {
		return v, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, branding.ConfigFile()), nil
}

// Open loads the config at path, bootstrapping it first if it does not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.bootstrap(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrBootstrap, path, err)
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// bootstrap creates the cache directory and writes a skeleton config.
func (s *Store) bootstrap() error {
	cachePath := filepath.Join(filepath.Dir(s.path), branding.CacheDir())
	if err := os.MkdirAll(cachePath, 0755); err != nil {
		return fmt.Errorf("%w: creating cache directory %s: %w", ErrBootstrap, cachePath, err)
	}

	s.cfg = &Config{
		Cache:    Cache{Path: cachePath},
		Projects: map[string]Project{},
	}
	if err := s.Save(); err != nil {
		return err
	}

	s.bootstrapped = true

	return nil
}

// load reads the file once: typed data via encoding/json, effective scalar
// settings via viper so environment overrides apply.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrBootstrap, s.path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("%w: parsing %s: %w", ErrBootstrap, s.path, err)
	}
	if cfg.Projects == nil {
		cfg.Projects = map[string]Project{}
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigType(fileType)
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()
	v.SetDefault(KeyPython, defaultPython)
	v.SetDefault(KeyIndex, branding.IndexURL())
	v.SetDefault(KeyLogLevel, defaultLogLevel)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: loading %s: %w", ErrBootstrap, s.path, err)
	}

	s.v = v
	s.cfg = &cfg

	return nil
}

// Save writes the config atomically (temp file + rename).
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling config: %w", ErrBootstrap, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating config directory %s: %w", ErrBootstrap, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".modi-config-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp config: %w", ErrBootstrap, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing temp config: %w", ErrBootstrap, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing temp config: %w", ErrBootstrap, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing %s: %w", ErrBootstrap, s.path, err)
	}

	return nil
}

// Path returns the config file location.
func (s *Store) Path() string { return s.path }

// Bootstrapped reports whether this Open created the config file.
func (s *Store) Bootstrapped() bool { return s.bootstrapped }

// Config returns the loaded config. Callers mutate it and then call Save.
func (s *Store) Config() *Config { return s.cfg }

// CachePath returns the effective global cache path.
func (s *Store) CachePath() string {
	if s.v != nil {
		if p := s.v.GetString(viperKey(KeyCachePath)); p != "" {
			return p
		}
	}
	return s.cfg.Cache.Path
}

// Python returns the interpreter used to drive pip and setup.py.
func (s *Store) Python() string { return s.v.GetString(KeyPython) }

// IndexURL returns the package index base URL.
func (s *Store) IndexURL() string { return s.v.GetString(KeyIndex) }

// LogLevel returns the configured log level name.
func (s *Store) LogLevel() string { return s.v.GetString(KeyLogLevel) }

// Get returns the effective value of a settings key.
func (s *Store) Get(key string) (string, error) {
	switch key {
	case KeyCachePath:
		return s.CachePath(), nil
	case KeyPython, KeyIndex, KeyLogLevel, KeyRemote:
		return s.v.GetString(key), nil
	default:
		return "", fmt.Errorf("%w %q (known: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
}

// Set updates a settings key and persists the file.
func (s *Store) Set(key, value string) error {
	switch key {
	case KeyCachePath:
		s.cfg.Cache.Path = value
	case KeyPython:
		s.cfg.Python = value
	case KeyIndex:
		s.cfg.Index = value
	case KeyLogLevel:
		s.cfg.LogLevel = value
	case KeyRemote:
		s.cfg.Remote = value
	default:
		return fmt.Errorf("%w %q (known: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}

	s.v.Set(viperKey(key), value)

	return s.Save()
}

// Keys lists the settings keys accepted by Get and Set.
func Keys() []string {
	keys := []string{KeyCachePath, KeyPython, KeyIndex, KeyLogLevel, KeyRemote}
	sort.Strings(keys)
	return keys
}

func viperKey(key string) string {
	return strings.ReplaceAll(key, ".", keyDelimiter)
}
