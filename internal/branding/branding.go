// Package branding provides compile-time identity values for the CLI.
//
// The values live in branding.yaml next to this file and are baked into the
// binary with //go:embed, so a fork only has to edit the YAML.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName     string `yaml:"cli_name"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	ConfigFile  string `yaml:"config_file"`
	CacheDir    string `yaml:"cache_dir"`
	EnvPrefix   string `yaml:"env_prefix"`
	GoModule    string `yaml:"go_module"`
	EntryScript string `yaml:"entry_script"`
	StagingDir  string `yaml:"staging_dir"`
	IndexURL    string `yaml:"index_url"`
}

func load() {
	once.Do(func() {
		// Set hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:     "modi",
			DisplayName: "Modi",
			Description: "Local package staging for Python projects",
			ConfigFile:  ".modi.json",
			CacheDir:    ".modi_cache",
			EnvPrefix:   "MODI",
			GoModule:    "github.com/modi-labs/modi",
			EntryScript: "modi.py",
			StagingDir:  ".modi-staging",
			IndexURL:    "https://pypi.org",
		}
		// Overlay with embedded YAML values.
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "modi").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name (e.g., "Modi").
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// ConfigFile returns the config file name under $HOME (e.g., ".modi.json").
func ConfigFile() string { load(); return defaults.ConfigFile }

// CacheDir returns the default global cache directory name under $HOME.
func CacheDir() string { load(); return defaults.CacheDir }

// EnvPrefix returns the environment variable prefix (e.g., "MODI").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// EntryScript returns the file name of the runtime shim that Python sources
// import (e.g., "modi.py").
func EntryScript() string { load(); return defaults.EntryScript }

// StagingDir returns the hidden directory name used as the installer prefix.
func StagingDir() string { load(); return defaults.StagingDir }

// IndexURL returns the default package index base URL.
func IndexURL() string { load(); return defaults.IndexURL }

// ImportName returns the Python module name of the entry script ("modi").
func ImportName() string {
	load()
	return strings.TrimSuffix(defaults.EntryScript, ".py")
}

// EnvVar returns a fully qualified env var name, e.g., EnvVar("CONFIG") → "MODI_CONFIG".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
