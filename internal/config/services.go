package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dogma165/push-notification/internal/webpush"
)

// ServicesConfig is the delivery-service rule file: which endpoint prefixes
// belong to which legacy service, and the API keys for services that require
// authorization. Keeping the table in configuration means a new legacy
// service is a data change, not a code change.
type ServicesConfig struct {
	Services []webpush.ServiceRule `yaml:"services"`
	APIKeys  map[string]string     `yaml:"api_keys"`
}

// LoadServices reads a ServicesConfig from the YAML file at path. An empty
// path returns the built-in defaults (the legacy GCM rule, no keys).
func LoadServices(path string) (*ServicesConfig, error) {
	if path == "" {
		return &ServicesConfig{Services: webpush.DefaultRules(), APIKeys: map[string]string{}}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("reading services file %q: %w", path, err)
	}

	var c ServicesConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing services file %q: %w", path, err)
	}
	if c.Services == nil {
		c.Services = webpush.DefaultRules()
	}
	if c.APIKeys == nil {
		c.APIKeys = map[string]string{}
	}
	return &c, nil
}
