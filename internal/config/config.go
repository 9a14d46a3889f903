package config

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures all tunable settings for the webpanel daemon.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
	Screen  ScreenConfig  `yaml:"screen"`
	Upload  UploadConfig  `yaml:"upload"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
	// Local control API port. 0 disables the control server.
	ControlPort int `yaml:"control_port"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Required when launch is empty.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command to start Chrome (e.g., ["chrome", "--kiosk"]).
	Launch []string `yaml:"launch"`
	// Headless controls whether Chrome runs in headless mode (default: false, this is a display surface).
	Headless *bool `yaml:"headless"`
	// Default navigation timeout (e.g., "15s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Viewport width for the screen (default: 390).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height for the screen (default: 844).
	ViewportHeight int `yaml:"viewport_height"`
	// Identity string presented to the loaded page instead of the engine default.
	UserAgent string `yaml:"user_agent"`
}

// ScreenConfig describes the one screen this daemon displays.
type ScreenConfig struct {
	// Base URL the screen loads. Query parameters are appended to whatever it carries.
	BaseURL string `yaml:"base_url"`
	// Fixed extra query parameters injected into the base URL.
	Params map[string]string `yaml:"params"`
	// Device model reported to the page. Defaults to GOOS/GOARCH.
	DeviceModel string `yaml:"device_model"`
	// App version reported to the page. Defaults to server.version.
	AppVersion string `yaml:"app_version"`
	// How often to sample on-screen keyboard geometry (e.g., "250ms").
	KeyboardPollInterval string `yaml:"keyboard_poll_interval"`
}

// UploadConfig configures the photo library backing the upload bridge.
type UploadConfig struct {
	// Directory scanned for pickable photos.
	PhotoDir string `yaml:"photo_dir"`
	// Accepted file extensions (without dot). Empty uses a sane image set.
	Extensions []string `yaml:"extensions"`
}

// DefaultUserAgent mimics a common mobile browser so the page cannot key off
// the embedded engine's native identity.
const DefaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:        "webpanel",
			Version:     "0.1.0",
			LogFile:     "webpanel.log",
			ControlPort: 8711,
		},
		Browser: BrowserConfig{
			DefaultNavigationTimeout: "15s",
			ViewportWidth:            390,
			ViewportHeight:           844,
			UserAgent:                DefaultUserAgent,
		},
		Screen: ScreenConfig{
			Params:               map[string]string{},
			KeyboardPollInterval: "250ms",
		},
		Upload: UploadConfig{
			PhotoDir: "photos",
		},
	}
}

// Load reads YAML config from disk, overlays defaults, then environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv overlays WEBPANEL_* environment variables (populated from .env by
// the entrypoint) on top of whatever the YAML provided.
func (c *Config) applyEnv() {
	if v := os.Getenv("WEBPANEL_BASE_URL"); v != "" {
		c.Screen.BaseURL = v
	}
	if v := os.Getenv("WEBPANEL_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("WEBPANEL_PHOTO_DIR"); v != "" {
		c.Upload.PhotoDir = v
	}
	if v := os.Getenv("WEBPANEL_CONTROL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.ControlPort = port
		}
	}
}

// Validate ensures required fields exist so the daemon can start deterministically.
// Malformed base URLs are deliberately not rejected here: the screen renders a
// fallback state for those instead of refusing to start.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if strings.TrimSpace(c.Screen.BaseURL) == "" {
		return errors.New("screen.base_url is required")
	}
	if c.Browser.DebuggerURL == "" && len(c.Browser.Launch) == 0 {
		return errors.New("browser.debugger_url or browser.launch must be provided")
	}
	return nil
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	if b.DefaultNavigationTimeout == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(b.DefaultNavigationTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// IsHeadless returns whether Chrome should run headless (default: false).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return false
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 390
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 844
	}
	return b.ViewportHeight
}

// GetUserAgent returns the identity string with the spoofed default.
func (b BrowserConfig) GetUserAgent() string {
	if b.UserAgent == "" {
		return DefaultUserAgent
	}
	return b.UserAgent
}

// PollInterval returns the parsed keyboard poll interval with a sane default.
func (s ScreenConfig) PollInterval() time.Duration {
	if s.KeyboardPollInterval == "" {
		return 250 * time.Millisecond
	}
	d, err := time.ParseDuration(s.KeyboardPollInterval)
	if err != nil {
		return 250 * time.Millisecond
	}
	return d
}

// GetDeviceModel returns the configured device model or a host-derived default.
func (s ScreenConfig) GetDeviceModel() string {
	if s.DeviceModel != "" {
		return s.DeviceModel
	}
	return runtime.GOOS + "/" + runtime.GOARCH
}

// GetAppVersion resolves the reported app version, falling back to the server version.
func (s ScreenConfig) GetAppVersion(serverVersion string) string {
	if s.AppVersion != "" {
		return s.AppVersion
	}
	return serverVersion
}

// ControlAddr returns the listen address for the control API.
func (s ServerConfig) ControlAddr() string {
	return ":" + strconv.Itoa(s.ControlPort)
}
