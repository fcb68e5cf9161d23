package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/tidalfs/objstore/backend"
)

const defaultProfileName = "default"

// configFile is the on-disk shape of ~/.config/ostor/config.yml: named profiles of connection settings.
type configFile struct {
	Profiles map[string]profile `yaml:"profiles"`
}

type profile struct {
	AccessKeyID        string `yaml:"access_key_id"`
	SecretAccessKey    string `yaml:"secret_access_key"`
	Endpoint           string `yaml:"endpoint"`
	Region             string `yaml:"region"`
	ProxyURL           string `yaml:"proxy_url"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`

	// Timeout is a Go duration string, eg. "30s".
	Timeout string `yaml:"timeout"`
}

// loadProfile reads the named profile from the YAML config at path, with "~" expanded to the home
// directory. The default profile tolerates a missing file or entry and yields zero options; a profile asked
// for by name has to exist.
func loadProfile(path, name string) (profile, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return profile{}, err
	}

	raw, err := os.ReadFile(expanded) //nolint:gosec // configured path
	if os.IsNotExist(err) {
		if name != defaultProfileName {
			return profile{}, fmt.Errorf("profile %q: config file %s does not exist", name, path)
		}
		return profile{}, nil
	}
	if err != nil {
		return profile{}, err
	}

	var cfg configFile
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return profile{}, fmt.Errorf("parse %s: %w", path, err)
	}

	prof, ok := cfg.Profiles[name]
	if !ok {
		if name != defaultProfileName {
			return profile{}, fmt.Errorf("profile %q not found in %s", name, path)
		}
		return profile{}, nil
	}
	return prof, nil
}

func (p profile) backendOptions() (backend.Options, error) {
	opts := backend.Options{
		AccessKeyID:        p.AccessKeyID,
		SecretAccessKey:    p.SecretAccessKey,
		Endpoint:           p.Endpoint,
		Region:             p.Region,
		ProxyURL:           p.ProxyURL,
		InsecureSkipVerify: p.InsecureSkipVerify,
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return backend.Options{}, fmt.Errorf("profile timeout: %w", err)
		}
		opts.Timeout = d
	}
	return opts, nil
}
