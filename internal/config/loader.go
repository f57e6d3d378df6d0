package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/sitecrawl/internal/politeness"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sitecrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads site configurations from a YAML file.
// A missing file yields ErrConfigNotFound; whether that matters depends on
// whether the user named the file explicitly.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if err := checkSite("defaults", cf.Defaults); err != nil {
		return nil, err
	}
	for host, site := range cf.Sites {
		if err := checkSite(host, site); err != nil {
			return nil, err
		}
	}
	return &cf, nil
}

// checkSite rejects settings that could never be applied.
func checkSite(name string, site SiteConfig) error {
	if site.RobotsMode != "" {
		if _, err := politeness.ParseMode(site.RobotsMode); err != nil {
			return fmt.Errorf("%s: %w", name, ErrInvalidRobotsMode)
		}
	}
	if site.Delay < 0 {
		return fmt.Errorf("%s: %w", name, ErrInvalidDelay)
	}
	if site.MaxPages < 0 {
		return fmt.Errorf("%s: %w", name, ErrInvalidMaxPages)
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, when given
//  2. .sitecrawl in the current directory
//  3. .sitecrawl in the user's home directory
//  4. config.yaml in the XDG config directory
//
// It returns the path of the first existing file, or "" if none exists.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
