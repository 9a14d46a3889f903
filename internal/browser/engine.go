package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"webpanel/internal/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Engine owns the Chrome instance backing the screen. It either attaches to
// an existing debugger endpoint or launches Chrome itself.
type Engine struct {
	cfg        config.BrowserConfig
	browser    *rod.Browser
	controlURL string
}

func NewEngine(cfg config.BrowserConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Start connects to an existing Chrome or launches a new one using Rod's launcher.
func (e *Engine) Start(ctx context.Context) error {
	if e.browser != nil {
		if _, err := e.browser.Version(); err == nil {
			return nil
		}
		log.Printf("stale browser connection detected, reconnecting...")
		_ = e.browser.Close()
		e.browser = nil
		e.controlURL = ""
	}

	controlURL := e.cfg.DebuggerURL
	if controlURL == "" && len(e.cfg.Launch) > 0 {
		bin := e.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(e.cfg.IsHeadless())
		for _, rawFlag := range e.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			// Fallback: let Rod pick the port and defaults.
			fallback := launcher.New().Bin(bin).Headless(e.cfg.IsHeadless())
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			controlURL = alt
		} else {
			controlURL = url
		}
	}

	if controlURL == "" {
		return errors.New("no debugger_url or launch command provided")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	e.browser = browser
	e.controlURL = controlURL
	log.Printf("browser connected at %s", controlURL)
	return nil
}

// ControlURL returns the WebSocket debugger URL for the connected browser.
func (e *Engine) ControlURL() string {
	return e.controlURL
}

// NewPage opens a blank page in an incognito context with the configured
// viewport. The caller owns the page lifecycle.
func (e *Engine) NewPage(ctx context.Context) (*rod.Page, error) {
	if e.browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := e.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             e.cfg.GetViewportWidth(),
		Height:            e.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            true,
	}).Call(page.Context(ctx)); err != nil {
		log.Printf("warning: failed to set viewport: %v", err)
	}

	return page, nil
}

// Close shuts down the underlying browser.
func (e *Engine) Close() error {
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	e.controlURL = ""
	log.Printf("browser shutdown complete")
	return err
}
