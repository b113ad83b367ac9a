package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the review extractor
type Config struct {
	// Browser provisioning
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Session lifecycle
	Session SessionConfig `yaml:"session" json:"session"`

	// Humanization timing and jitter
	Timing TimingConfig `yaml:"timing" json:"timing"`

	// Scrape behaviour
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// BrowserConfig holds browser provisioning configuration
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	ExecPath          string        `yaml:"exec_path" json:"exec_path"`
	NoSandbox         bool          `yaml:"no_sandbox" json:"no_sandbox"`
	UserAgents        []string      `yaml:"user_agents" json:"user_agents"`
	MinWidth          int           `yaml:"min_width" json:"min_width"`
	MaxWidth          int           `yaml:"max_width" json:"max_width"`
	MinHeight         int           `yaml:"min_height" json:"min_height"`
	MaxHeight         int           `yaml:"max_height" json:"max_height"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	HeaderTimeout     time.Duration `yaml:"header_timeout" json:"header_timeout"`
	LocateTimeout     time.Duration `yaml:"locate_timeout" json:"locate_timeout"`
}

// SessionConfig holds session rotation and cleanup configuration
type SessionConfig struct {
	MaxExtractions  int           `yaml:"max_extractions" json:"max_extractions"`
	ProfileRoot     string        `yaml:"profile_root" json:"profile_root"`
	CleanupAttempts int           `yaml:"cleanup_attempts" json:"cleanup_attempts"`
	CleanupDelay    time.Duration `yaml:"cleanup_delay" json:"cleanup_delay"`
	// LaunchAttempts bounds browser start-up attempts per provisioning
	LaunchAttempts int           `yaml:"launch_attempts" json:"launch_attempts"`
	LaunchBackoff  time.Duration `yaml:"launch_backoff" json:"launch_backoff"`
}

// Range is a closed duration interval a delay is drawn from
type Range struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// TimingConfig holds the humanization policy parameters
type TimingConfig struct {
	Jitter       bool  `yaml:"jitter" json:"jitter"`
	Seed         int64 `yaml:"seed" json:"seed"`
	Think        Range `yaml:"think" json:"think"`
	Settle       Range `yaml:"settle" json:"settle"`
	RetrySettle  Range `yaml:"retry_settle" json:"retry_settle"`
	Rotation     Range `yaml:"rotation" json:"rotation"`
	Cooldown     Range `yaml:"cooldown" json:"cooldown"`
	LazyLoad     Range `yaml:"lazy_load" json:"lazy_load"`
	ScrollSettle Range `yaml:"scroll_settle" json:"scroll_settle"`
	Action       Range `yaml:"action" json:"action"`
	Fidget       Range `yaml:"fidget" json:"fidget"`
	Reading      Range `yaml:"reading" json:"reading"`
	ExpandWait   Range `yaml:"expand_wait" json:"expand_wait"`

	FidgetChance  float64 `yaml:"fidget_chance" json:"fidget_chance"`
	FidgetPixels  int     `yaml:"fidget_pixels" json:"fidget_pixels"`
	ReadingChance float64 `yaml:"reading_chance" json:"reading_chance"`
	ReadingMinPx  int     `yaml:"reading_min_px" json:"reading_min_px"`
	ReadingMaxPx  int     `yaml:"reading_max_px" json:"reading_max_px"`
	AnchorMin     float64 `yaml:"anchor_min" json:"anchor_min"`
	AnchorMax     float64 `yaml:"anchor_max" json:"anchor_max"`
}

// ScrapeConfig holds scrape behaviour configuration
type ScrapeConfig struct {
	Mode                string        `yaml:"mode" json:"mode"`
	URLTemplate         string        `yaml:"url_template" json:"url_template"`
	MaxScrollIterations int           `yaml:"max_scroll_iterations" json:"max_scroll_iterations"`
	Workers             int           `yaml:"workers" json:"workers"`
	RequestsPerMinute   int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig holds output configuration
type OutputConfig struct {
	Directory    string `yaml:"directory" json:"directory"`
	Pretty       bool   `yaml:"pretty" json:"pretty"`
	SkipExisting bool   `yaml:"skip_existing" json:"skip_existing"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// MetricsConfig holds metrics exposition configuration
type MetricsConfig struct {
	Address string `yaml:"address" json:"address"`
}

// DefaultUserAgents is the identity pool used when none is configured
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// DefaultURLTemplate maps a business id to its reviews view
const DefaultURLTemplate = "https://yandex.ru/maps/org/%d/reviews/"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          true,
			NoSandbox:         true,
			UserAgents:        append([]string(nil), DefaultUserAgents...),
			MinWidth:          1200,
			MaxWidth:          1920,
			MinHeight:         800,
			MaxHeight:         1080,
			NavigationTimeout: 45 * time.Second,
			HeaderTimeout:     10 * time.Second,
			LocateTimeout:     2 * time.Second,
		},
		Session: SessionConfig{
			MaxExtractions:  8,
			ProfileRoot:     "",
			CleanupAttempts: 5,
			CleanupDelay:    200 * time.Millisecond,
			LaunchAttempts:  3,
			LaunchBackoff:   2 * time.Second,
		},
		Timing: TimingConfig{
			Jitter:        true,
			Think:         Range{300 * time.Millisecond, 1200 * time.Millisecond},
			Settle:        Range{2 * time.Second, 3 * time.Second},
			RetrySettle:   Range{3 * time.Second, 3 * time.Second},
			Rotation:      Range{1 * time.Second, 2 * time.Second},
			Cooldown:      Range{5 * time.Second, 10 * time.Second},
			LazyLoad:      Range{1 * time.Second, 1 * time.Second},
			ScrollSettle:  Range{300 * time.Millisecond, 600 * time.Millisecond},
			Action:        Range{100 * time.Millisecond, 300 * time.Millisecond},
			Fidget:        Range{200 * time.Millisecond, 400 * time.Millisecond},
			Reading:       Range{300 * time.Millisecond, 800 * time.Millisecond},
			ExpandWait:    Range{100 * time.Millisecond, 100 * time.Millisecond},
			FidgetChance:  0.2,
			FidgetPixels:  100,
			ReadingChance: 0.6,
			ReadingMinPx:  200,
			ReadingMaxPx:  800,
			AnchorMin:     0.2,
			AnchorMax:     0.5,
		},
		Scrape: ScrapeConfig{
			Mode:                "all",
			URLTemplate:         DefaultURLTemplate,
			MaxScrollIterations: 2000,
			Workers:             1,
			RequestsPerMinute:   6,
			Timeout:             10 * time.Minute,
		},
		Output: OutputConfig{
			Directory:    "",
			Pretty:       true,
			SkipExisting: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Browser
	if headless := os.Getenv("YAREVIEWS_HEADLESS"); headless != "" {
		c.Browser.Headless = parseBool(headless)
	}
	if execPath := os.Getenv("YAREVIEWS_CHROME_PATH"); execPath != "" {
		c.Browser.ExecPath = execPath
	}
	if ua := os.Getenv("YAREVIEWS_USER_AGENTS"); ua != "" {
		var agents []string
		for _, a := range strings.Split(ua, "|") {
			if a = strings.TrimSpace(a); a != "" {
				agents = append(agents, a)
			}
		}
		if len(agents) > 0 {
			c.Browser.UserAgents = agents
		}
	}

	// Session rotation threshold
	if maxPer := os.Getenv("YAREVIEWS_MAX_PER_SESSION"); maxPer != "" {
		val, err := strconv.Atoi(maxPer)
		if err != nil {
			return fmt.Errorf("invalid YAREVIEWS_MAX_PER_SESSION: %w", err)
		}
		c.Session.MaxExtractions = val
	}
	if root := os.Getenv("YAREVIEWS_PROFILE_ROOT"); root != "" {
		c.Session.ProfileRoot = root
	}
	if attempts := os.Getenv("YAREVIEWS_LAUNCH_ATTEMPTS"); attempts != "" {
		val, err := strconv.Atoi(attempts)
		if err != nil {
			return fmt.Errorf("invalid YAREVIEWS_LAUNCH_ATTEMPTS: %w", err)
		}
		c.Session.LaunchAttempts = val
	}

	// Jitter
	if jitter := os.Getenv("YAREVIEWS_JITTER"); jitter != "" {
		c.Timing.Jitter = parseBool(jitter)
	}

	// Scrape
	if mode := os.Getenv("YAREVIEWS_MODE"); mode != "" {
		c.Scrape.Mode = mode
	}
	if workers := os.Getenv("YAREVIEWS_WORKERS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Scrape.Workers = val
		}
	}
	if rpm := os.Getenv("YAREVIEWS_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.Scrape.RequestsPerMinute = val
		}
	}

	// Output directory
	if outputDir := os.Getenv("YAREVIEWS_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}

	// Logging level
	if logLevel := os.Getenv("YAREVIEWS_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("YAREVIEWS_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	if addr := os.Getenv("YAREVIEWS_METRICS_ADDR"); addr != "" {
		c.Metrics.Address = addr
	}

	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".yareviews.yaml",
		".yareviews.yml",
		filepath.Join(home, ".config", "yareviews", "config.yaml"),
		filepath.Join(home, ".config", "yareviews", "config.yml"),
		filepath.Join(home, ".yareviews.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Browser
	if len(c.Browser.UserAgents) == 0 {
		errs = append(errs, errors.New("at least one user agent is required"))
	}
	if c.Browser.MinWidth <= 0 || c.Browser.MaxWidth < c.Browser.MinWidth {
		errs = append(errs, errors.New("invalid viewport width bounds"))
	}
	if c.Browser.MinHeight <= 0 || c.Browser.MaxHeight < c.Browser.MinHeight {
		errs = append(errs, errors.New("invalid viewport height bounds"))
	}
	if c.Browser.HeaderTimeout <= 0 || c.Browser.LocateTimeout <= 0 {
		errs = append(errs, errors.New("header and locate timeouts must be positive"))
	}

	// Session
	if c.Session.MaxExtractions <= 0 {
		errs = append(errs, errors.New("max extractions per session must be positive"))
	}
	if c.Session.CleanupAttempts <= 0 {
		errs = append(errs, errors.New("cleanup attempts must be positive"))
	}
	if c.Session.LaunchAttempts <= 0 {
		errs = append(errs, errors.New("launch attempts must be positive"))
	}
	if c.Session.LaunchBackoff < 0 {
		errs = append(errs, errors.New("launch backoff must not be negative"))
	}

	// Timing
	for name, r := range c.Timing.ranges() {
		if r.Min < 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("invalid timing range %q", name))
		}
	}
	if c.Timing.FidgetChance < 0 || c.Timing.FidgetChance > 1 {
		errs = append(errs, errors.New("fidget chance must be within [0,1]"))
	}
	if c.Timing.ReadingChance < 0 || c.Timing.ReadingChance > 1 {
		errs = append(errs, errors.New("reading chance must be within [0,1]"))
	}
	if c.Timing.AnchorMin < 0 || c.Timing.AnchorMax > 1 || c.Timing.AnchorMax < c.Timing.AnchorMin {
		errs = append(errs, errors.New("viewport anchor bounds must satisfy 0 <= min <= max <= 1"))
	}

	// Scrape
	validModes := map[string]bool{"all": true, "info": true, "reviews": true}
	if !validModes[strings.ToLower(c.Scrape.Mode)] {
		errs = append(errs, errors.New("invalid scrape mode"))
	}
	if !strings.Contains(c.Scrape.URLTemplate, "%d") {
		errs = append(errs, errors.New("url template must contain %d"))
	}
	if c.Scrape.MaxScrollIterations <= 0 {
		errs = append(errs, errors.New("max scroll iterations must be positive"))
	}
	if c.Scrape.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Scrape.Workers > 8 {
		errs = append(errs, errors.New("workers should not exceed 8"))
	}
	if c.Scrape.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func (t TimingConfig) ranges() map[string]Range {
	return map[string]Range{
		"think":         t.Think,
		"settle":        t.Settle,
		"retry_settle":  t.RetrySettle,
		"rotation":      t.Rotation,
		"cooldown":      t.Cooldown,
		"lazy_load":     t.LazyLoad,
		"scroll_settle": t.ScrollSettle,
		"action":        t.Action,
		"fidget":        t.Fidget,
		"reading":       t.Reading,
		"expand_wait":   t.ExpandWait,
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if mode, ok := flags["mode"].(string); ok && mode != "" {
		c.Scrape.Mode = mode
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Scrape.Workers = workers
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.Scrape.RequestsPerMinute = rpm
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.Scrape.Timeout = timeout
	}
	if maxPer, ok := flags["max-per-session"].(int); ok && maxPer > 0 {
		c.Session.MaxExtractions = maxPer
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if execPath, ok := flags["chrome-path"].(string); ok && execPath != "" {
		c.Browser.ExecPath = execPath
	}
	if noJitter, ok := flags["no-jitter"].(bool); ok && noJitter {
		c.Timing.Jitter = false
	}
	if skip, ok := flags["skip-existing"].(bool); ok {
		c.Output.SkipExisting = skip
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Address = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".yareviews.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
