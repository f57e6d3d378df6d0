package config

import (
	"maps"
	"time"
)

// SiteConfig holds settings for one site, keyed by host in the
// configuration file.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the User-Agent header and robots agent name.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Delay overrides the minimum spacing between requests, e.g. "2s".
	Delay time.Duration `yaml:"delay,omitempty"`

	// MaxPages overrides the page budget. Zero keeps the global value.
	MaxPages int `yaml:"maxPages,omitempty"`

	// RobotsMode overrides the robots mode ("lenient" or "strict").
	RobotsMode string `yaml:"robotsMode,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// ContentSelectors are CSS selectors for the main content region,
	// tried before the built-in region detection.
	ContentSelectors []string `yaml:"contentSelectors,omitempty"`
}

// File represents the structure of the .sitecrawl configuration file.
type File struct {
	// Sites maps hosts (e.g. "docs.example.org") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden per site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for host: the defaults overridden by
// the host's own entry. The returned value shares nothing with cf.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Delay != 0 {
		result.Delay = site.Delay
	}
	if site.MaxPages != 0 {
		result.MaxPages = site.MaxPages
	}
	if site.RobotsMode != "" {
		result.RobotsMode = site.RobotsMode
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	if len(site.ContentSelectors) > 0 {
		result.ContentSelectors = site.ContentSelectors
	}
	return result
}
