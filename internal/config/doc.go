// Package config provides the configuration of a sitecrawl run: crawl
// limits, politeness settings, output destinations and report preferences,
// plus the optional YAML file holding per-site settings.
package config
