// Package config manages the process-wide modi config file (~/.modi.json):
// the global cache location, the project registry, and optional remote
// settings. The file is bootstrapped on first use and rewritten after every
// mutation. Scalar settings are resolved through viper so MODI_* environment
// variables override the file.
package config
