package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/politeness"
)

// TestNewConfig documents the defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 15 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 15*time.Second {
			t.Errorf("expected Timeout to be 15s, got %v", cfg.Timeout)
		}
	})

	t.Run("default MaxPages is unbounded", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 0 {
			t.Errorf("expected MaxPages to be 0, got %d", cfg.MaxPages)
		}
	})

	t.Run("default politeness", func(t *testing.T) {
		t.Parallel()
		if cfg.Delay != time.Second {
			t.Errorf("expected Delay to be 1s, got %v", cfg.Delay)
		}
		if cfg.JitterMin != 500*time.Millisecond || cfg.JitterMax != time.Second {
			t.Errorf("expected jitter 0.5s-1s, got %v-%v", cfg.JitterMin, cfg.JitterMax)
		}
		if cfg.RobotsMode != "lenient" {
			t.Errorf("expected RobotsMode lenient, got %q", cfg.RobotsMode)
		}
	})

	t.Run("default workers and outputs", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers != 1 {
			t.Errorf("expected Workers to be 1, got %d", cfg.Workers)
		}
		if cfg.OutputDir != "scraped_content" {
			t.Errorf("expected OutputDir scraped_content, got %q", cfg.OutputDir)
		}
		if !cfg.SaveToDB || cfg.DBDir != XDGDataDir() {
			t.Errorf("expected the database in %q, got %q (save=%v)", XDGDataDir(), cfg.DBDir, cfg.SaveToDB)
		}
	})

	t.Run("default UserAgent names the project", func(t *testing.T) {
		t.Parallel()
		if !strings.Contains(cfg.UserAgent, "sitecrawl") {
			t.Errorf("unexpected UserAgent %q", cfg.UserAgent)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Seed = "https://example.org/"
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "valid config", modify: func(*Config) {}, want: nil},
		{name: "no seed", modify: func(c *Config) { c.Seed = "" }, want: ErrNoSeed},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, want: ErrInvalidTimeout},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, want: ErrInvalidWorkers},
		{name: "negative max pages", modify: func(c *Config) { c.MaxPages = -1 }, want: ErrInvalidMaxPages},
		{name: "both report formats", modify: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, want: ErrConflictingReportFormats},
		{name: "negative delay", modify: func(c *Config) { c.Delay = -time.Second }, want: ErrInvalidDelay},
		{name: "zero delay is allowed", modify: func(c *Config) { c.Delay = 0 }, want: nil},
		{name: "jitter min above max", modify: func(c *Config) { c.JitterMin = 2 * time.Second }, want: ErrInvalidJitter},
		{name: "negative jitter", modify: func(c *Config) { c.JitterMin = -time.Second }, want: ErrInvalidJitter},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "unknown robots mode", modify: func(c *Config) { c.RobotsMode = "sometimes" }, want: ErrInvalidRobotsMode},
		{name: "strict robots mode", modify: func(c *Config) { c.RobotsMode = "strict" }, want: nil},
		{
			name: "no output at all",
			modify: func(c *Config) {
				c.OutputDir = ""
				c.JSONFile = ""
				c.SaveToDB = false
			},
			want: ErrNoOutput,
		},
		{
			name: "html without output directory",
			modify: func(c *Config) {
				c.OutputDir = ""
				c.SaveHTML = true
			},
			want: ErrHTMLWithoutOutputDir,
		},
		{
			name: "json file only",
			modify: func(c *Config) {
				c.OutputDir = ""
				c.SaveToDB = false
				c.JSONFile = "records.json"
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigMode(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if cfg.Mode() != politeness.ModeLenient {
		t.Errorf("Mode() = %q, want lenient", cfg.Mode())
	}
	cfg.RobotsMode = "STRICT"
	if cfg.Mode() != politeness.ModeStrict {
		t.Errorf("Mode() = %q, want strict", cfg.Mode())
	}
	cfg.RobotsMode = "bogus"
	if cfg.Mode() != politeness.ModeLenient {
		t.Errorf("Mode() = %q, want the lenient fallback", cfg.Mode())
	}
}

func TestConfigApplySite(t *testing.T) {
	t.Parallel()

	site := SiteConfig{
		Cookie:           "sid=1",
		Headers:          map[string]string{"X-Test": "yes"},
		UserAgent:        "custom-agent",
		Delay:            3 * time.Second,
		MaxPages:         50,
		RobotsMode:       "strict",
		IgnorePatterns:   []string{"/admin/*"},
		FollowPatterns:   []string{"/docs/*"},
		ContentSelectors: []string{"div.doc"},
	}

	t.Run("site values fill the config", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplySite(site, nil)

		if cfg.UserAgent != "custom-agent" || cfg.Delay != 3*time.Second || cfg.MaxPages != 50 || cfg.RobotsMode != "strict" {
			t.Errorf("scalar settings not applied: %+v", cfg)
		}
		if cfg.Cookie != "sid=1" || cfg.Headers["X-Test"] != "yes" {
			t.Errorf("request settings not applied: %+v", cfg)
		}
		if len(cfg.IgnorePatterns) != 1 || len(cfg.FollowPatterns) != 1 || len(cfg.ContentSelectors) != 1 {
			t.Errorf("patterns not applied: %+v", cfg)
		}
	})

	t.Run("explicit flags win", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Delay = 5 * time.Second
		cfg.MaxPages = 7
		explicit := func(option string) bool {
			return option == OptionDelay || option == OptionMaxPages
		}
		cfg.ApplySite(site, explicit)

		if cfg.Delay != 5*time.Second || cfg.MaxPages != 7 {
			t.Errorf("explicit values overwritten: delay=%v max=%d", cfg.Delay, cfg.MaxPages)
		}
		if cfg.UserAgent != "custom-agent" {
			t.Errorf("non-explicit user agent not applied: %q", cfg.UserAgent)
		}
	})

	t.Run("empty site changes nothing", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		before := *cfg
		cfg.ApplySite(SiteConfig{}, nil)
		if cfg.UserAgent != before.UserAgent || cfg.Delay != before.Delay || cfg.Headers != nil {
			t.Errorf("config changed: %+v", cfg)
		}
	})
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Cookie:     "default=1",
			Headers:    map[string]string{"Accept-Language": "en"},
			Delay:      2 * time.Second,
			RobotsMode: "lenient",
		},
		Sites: map[string]SiteConfig{
			"docs.example.org": {
				Headers:          map[string]string{"Authorization": "Bearer x"},
				Delay:            5 * time.Second,
				ContentSelectors: []string{"article.doc"},
			},
		},
	}

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("other.example.org")
		if got.Cookie != "default=1" || got.Delay != 2*time.Second {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("docs.example.org")
		if got.Delay != 5*time.Second {
			t.Errorf("Delay = %v, want 5s", got.Delay)
		}
		if got.Cookie != "default=1" {
			t.Errorf("Cookie = %q, want the default", got.Cookie)
		}
		if got.Headers["Accept-Language"] != "en" || got.Headers["Authorization"] != "Bearer x" {
			t.Errorf("Headers = %v, want both maps merged", got.Headers)
		}
		if len(got.ContentSelectors) != 1 {
			t.Errorf("ContentSelectors = %v", got.ContentSelectors)
		}
	})

	t.Run("defaults are not modified", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetSiteConfig("docs.example.org")
		if _, ok := cf.Defaults.Headers["Authorization"]; ok {
			t.Error("merging leaked site headers into the defaults")
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".sitecrawl")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("loads defaults and sites", func(t *testing.T) {
		t.Parallel()

		path := write(t, `
defaults:
  delay: 2s
  robotsMode: strict
  headers:
    Accept-Language: en
sites:
  example.org:
    cookie: "sid=abc"
    maxPages: 25
    ignorePatterns:
      - "/admin/*"
    contentSelectors:
      - "div.content"
`)
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		if cf.Defaults.Delay != 2*time.Second || cf.Defaults.RobotsMode != "strict" {
			t.Errorf("defaults = %+v", cf.Defaults)
		}
		site := cf.GetSiteConfig("example.org")
		if site.Cookie != "sid=abc" || site.MaxPages != 25 || site.IgnorePatterns[0] != "/admin/*" {
			t.Errorf("site = %+v", site)
		}
		if site.ContentSelectors[0] != "div.content" {
			t.Errorf("ContentSelectors = %v", site.ContentSelectors)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile(write(t, ""))
		if err != nil {
			t.Fatal(err)
		}
		if cf.Sites == nil {
			t.Error("Sites should be initialized")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(write(t, "sites: [unclosed")); err == nil {
			t.Error("expected a parse error")
		}
	})

	t.Run("invalid robots mode", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(write(t, "sites:\n  example.org:\n    robotsMode: maybe\n"))
		if !errors.Is(err, ErrInvalidRobotsMode) {
			t.Errorf("expected ErrInvalidRobotsMode, got %v", err)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path that exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("defaults: {}\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("FindConfigFile() = %q, want empty", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		if filepath.Base(dir) != AppName {
			t.Errorf("%s dir %q does not end in %q", name, dir, AppName)
		}
	}
}
