package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/politeness"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// DefaultTimeout bounds one HTTP request.
	DefaultTimeout = fetch.DefaultTimeout

	// DefaultMaxPages of 0 crawls the whole site.
	DefaultMaxPages = 0

	// DefaultWorkers of 1 gives a strictly sequential breadth-first crawl.
	DefaultWorkers = 1

	// DefaultDelay is the minimum spacing between two requests to the site.
	DefaultDelay = politeness.DefaultDelay

	// DefaultJitterMin and DefaultJitterMax bound the random pause added to
	// the delay before every request.
	DefaultJitterMin = politeness.DefaultJitterMin
	DefaultJitterMax = politeness.DefaultJitterMax

	// DefaultRobotsMode fails open when robots.txt cannot be retrieved.
	DefaultRobotsMode = string(politeness.ModeLenient)

	// DefaultUserAgent identifies sitecrawl in HTTP requests.
	DefaultUserAgent = fetch.DefaultUserAgent

	// DefaultMaxBodySize limits the response body size to read.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize

	// DefaultOutputDir receives one text file per record.
	DefaultOutputDir = "scraped_content"
)

// Config holds all options of one crawl run. It is populated from CLI
// flags and the optional configuration file, then passed down explicitly.
type Config struct {
	// Seed is the URL the crawl starts from. Its host bounds the crawl.
	Seed string

	// Timeout is the timeout of each HTTP request.
	Timeout time.Duration

	// MaxPages is the page budget: the number of successfully fetched
	// resources after which the crawl stops. 0 means unbounded.
	MaxPages int

	// Workers is the number of concurrent fetch/extract workers.
	Workers int

	// Delay is the minimum spacing between requests to the site. A larger
	// robots.txt Crawl-delay takes precedence.
	Delay time.Duration

	// JitterMin and JitterMax bound the random pause added before each request.
	JitterMin time.Duration
	JitterMax time.Duration

	// RobotsMode is "lenient" (crawl everything when robots.txt is
	// unavailable) or "strict" (abort instead).
	RobotsMode string

	// UserAgent is the User-Agent header sent with every request and the
	// agent name matched against robots.txt groups.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// Cookie and Headers are sent with every request.
	Cookie  string
	Headers map[string]string

	// IgnorePatterns and FollowPatterns restrict which URL paths are crawled.
	IgnorePatterns []string
	FollowPatterns []string

	// ContentSelectors are CSS selectors tried first to find the main
	// content region of HTML pages.
	ContentSelectors []string

	// OutputDir receives one text file per record. Empty disables file output.
	OutputDir string

	// SaveHTML also stores the markup of every HTML page under OutputDir/html.
	SaveHTML bool

	// JSONFile receives all records as one JSON array. Empty disables it.
	JSONFile string

	// DBDir is the directory of the SQLite run history.
	DBDir string

	// SaveToDB stores the run and its records in the database.
	SaveToDB bool

	// SkipReachabilityCheck disables the TCP probe of the seed host.
	SkipReachabilityCheck bool

	// Verbose enables debug logging and detailed reports.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// JSONReport and MarkdownReport select the report format. They are
	// mutually exclusive; the default is plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is where the report is written instead of stdout.
	ReportFile string

	// ConfigFilePath is the path to the configuration file. If empty,
	// .sitecrawl is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, if any.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		MaxPages:    DefaultMaxPages,
		Workers:     DefaultWorkers,
		Delay:       DefaultDelay,
		JitterMin:   DefaultJitterMin,
		JitterMax:   DefaultJitterMax,
		RobotsMode:  DefaultRobotsMode,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		OutputDir:   DefaultOutputDir,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
// On Linux: ~/.config/sitecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Seed == "" {
		return ErrNoSeed
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.JitterMin < 0 || c.JitterMax < c.JitterMin {
		return ErrInvalidJitter
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if _, err := politeness.ParseMode(c.RobotsMode); err != nil {
		return ErrInvalidRobotsMode
	}
	if c.OutputDir == "" && c.JSONFile == "" && !c.SaveToDB {
		return ErrNoOutput
	}
	if c.SaveHTML && c.OutputDir == "" {
		return ErrHTMLWithoutOutputDir
	}
	return nil
}

// HTMLDir returns the directory for page markup, empty when SaveHTML is off.
func (c *Config) HTMLDir() string {
	if !c.SaveHTML || c.OutputDir == "" {
		return ""
	}
	return filepath.Join(c.OutputDir, "html")
}

// Mode returns the parsed robots mode. It falls back to lenient for an
// invalid value; Validate reports that case.
func (c *Config) Mode() politeness.Mode {
	mode, err := politeness.ParseMode(c.RobotsMode)
	if err != nil {
		return politeness.ModeLenient
	}
	return mode
}

// Site option names accepted by ApplySite's explicit callback. They match
// the CLI flag names.
const (
	OptionUserAgent  = "user-agent"
	OptionDelay      = "delay"
	OptionMaxPages   = "max-pages"
	OptionRobotsMode = "robots-mode"
)

// ApplySite merges site settings into c. Settings named by explicit (a
// CLI flag set by the user) are left alone; cookie, headers, patterns and
// selectors are always taken from the site when present.
func (c *Config) ApplySite(site SiteConfig, explicit func(option string) bool) {
	if explicit == nil {
		explicit = func(string) bool { return false }
	}

	if site.UserAgent != "" && !explicit(OptionUserAgent) {
		c.UserAgent = site.UserAgent
	}
	if site.Delay > 0 && !explicit(OptionDelay) {
		c.Delay = site.Delay
	}
	if site.MaxPages > 0 && !explicit(OptionMaxPages) {
		c.MaxPages = site.MaxPages
	}
	if site.RobotsMode != "" && !explicit(OptionRobotsMode) {
		c.RobotsMode = site.RobotsMode
	}
	if site.Cookie != "" {
		c.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			c.Headers[k] = v
		}
	}
	if len(site.IgnorePatterns) > 0 {
		c.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		c.FollowPatterns = site.FollowPatterns
	}
	if len(site.ContentSelectors) > 0 {
		c.ContentSelectors = site.ContentSelectors
	}
}
