// Package config loads the registry configuration: database paths per
// system, SNOMED container paths, default versions and the external
// packages contributing additional factories. The descriptor is plain
// JSON; a .env file alongside it may supply environment overrides
// referenced with ${VAR} expansion, convenient for local DSNs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// RegistryConfig enumerates everything the provider registry needs at
// startup.
type RegistryConfig struct {
	// SnomedContainers lists SNOMED container paths, possibly multiple
	// editions.
	SnomedContainers []string `json:"snomed"`
	// Databases maps system URI to a database DSN.
	Databases map[string]string `json:"databases"`
	// DefaultVersions maps system URI to the version used when a request
	// names none.
	DefaultVersions map[string]string `json:"defaultVersions"`
	// ExternalPackages is the ordered list of external package names
	// contributing additional factories.
	ExternalPackages []string `json:"externalPackages"`
	// HGVSEndpoint is the remote validator URL for the HGVS provider.
	HGVSEndpoint string `json:"hgvsEndpoint"`
}

// Load reads a registry configuration from path. A .env file in the same
// directory, if present, is loaded first and ${VAR} references in string
// values expand against the environment.
func Load(path string) (*RegistryConfig, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", envPath, err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.expand()
	return &cfg, nil
}

func (c *RegistryConfig) expand() {
	for i, p := range c.SnomedContainers {
		c.SnomedContainers[i] = os.ExpandEnv(p)
	}
	for k, v := range c.Databases {
		c.Databases[k] = os.ExpandEnv(v)
	}
	c.HGVSEndpoint = os.ExpandEnv(c.HGVSEndpoint)
}
