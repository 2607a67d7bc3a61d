// Package config loads the optional declarative backend configuration file.
package config

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/forgearmory/armory/pkg/types"
)

// File is the declarative configuration for the gateway: a set of backends to
// register at startup. Backends that already exist are left untouched.
type File struct {
	Backends []types.CreateBackendInput `yaml:"backends"`
}

// Load reads and parses a config file from the given filesystem.
func Load(fs afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for i := range f.Backends {
		if f.Backends[i].Name == "" {
			return nil, fmt.Errorf("config file %s: backend %d has no name", path, i)
		}
		if f.Backends[i].URL == "" {
			return nil, fmt.Errorf("config file %s: backend '%s' has no url", path, f.Backends[i].Name)
		}
	}
	return &f, nil
}
