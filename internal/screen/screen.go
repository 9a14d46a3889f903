// Package screen owns the lifecycle of one displayed web screen: it composes
// the target URL, validates configuration, and wires the browser page to the
// navigation observer, upload bridge, and keyboard monitor.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"webpanel/internal/browser"
	"webpanel/internal/keyboard"
	"webpanel/internal/picker"
	"webpanel/internal/upload"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// Query parameter names injected alongside the configured extras.
const (
	paramDeviceModel = "device_model"
	paramAppVersion  = "app_version"
)

// minViewportHeight keeps the layout usable when the keyboard inset would
// otherwise consume the whole screen.
const minViewportHeight = 120

// Screen states reported through Status.
const (
	StateFallback = "fallback"
	StateCreated  = "created"
	StateShown    = "shown"
)

// ErrNotShown is returned for operations that need a live browser control.
var ErrNotShown = errors.New("screen not shown")

// Options carries everything a screen resolves at construction time.
type Options struct {
	BaseURL     string
	Params      map[string]string
	DeviceModel string
	AppVersion  string

	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	KeyboardPoll      time.Duration
}

// Status is the screen's externally visible state.
type Status struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Target   string `json:"target,omitempty"`
	Fallback string `json:"fallback,omitempty"`
	Retried  bool   `json:"redirect_retried"`
}

// Screen is one browser-control instance showing the composed URL.
type Screen struct {
	id     string
	opts   Options
	target string
	// fallback is non-empty when the configured base URL is invalid; such a
	// screen never creates a browser control.
	fallback string
	picker   picker.Picker
	sink     EventSink

	mu        sync.Mutex
	page      *rod.Page
	observer  *loadObserver
	bridge    *upload.Bridge
	kbMonitor *keyboard.Monitor
	kbRelease func()
	kbCancel  context.CancelFunc
	shown     bool
}

// New builds a screen from its options. The parameter map is composed once
// here and is immutable afterwards; an invalid base URL yields a screen in
// fallback state instead of an error.
func New(opts Options, pk picker.Picker, sink EventSink) *Screen {
	s := &Screen{
		id:     uuid.NewString(),
		opts:   opts,
		picker: pk,
		sink:   sink,
	}

	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		s.fallback = fmt.Sprintf("cannot display screen: invalid address %q", opts.BaseURL)
		s.emit(EventFallback, s.fallback)
		return s
	}

	params := make(map[string]string, len(opts.Params)+2)
	for k, v := range opts.Params {
		params[k] = v
	}
	params[paramDeviceModel] = opts.DeviceModel
	params[paramAppVersion] = opts.AppVersion

	s.target = ComposeURL(opts.BaseURL, params)
	return s
}

// ID returns the screen's instance identifier.
func (s *Screen) ID() string { return s.id }

// Target returns the composed URL, empty in fallback state.
func (s *Screen) Target() string { return s.target }

// Fallback returns the fallback message, empty for a valid screen.
func (s *Screen) Fallback() string { return s.fallback }

// Status snapshots the screen's visible state.
func (s *Screen) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{ID: s.id, Target: s.target, Fallback: s.fallback}
	switch {
	case s.fallback != "":
		st.State = StateFallback
	case s.shown:
		st.State = StateShown
	default:
		st.State = StateCreated
	}
	if s.observer != nil {
		st.Retried = s.observer.Retried()
	}
	return st
}

// Show creates the browser control and performs the initial load. A screen in
// fallback state shows nothing. Load failures are reported through the event
// feed and returned; they are not fatal to the screen.
func (s *Screen) Show(ctx context.Context, engine *browser.Engine) error {
	if s.fallback != "" {
		return nil
	}

	page, err := engine.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("create browser control: %w", err)
	}

	if s.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.opts.UserAgent}); err != nil {
			log.Printf("[screen:%s] warning: user agent override failed: %v", s.id, err)
		}
	}

	s.mu.Lock()
	s.page = page
	s.observer = newLoadObserver(s.navigate, s.report)
	s.bridge = upload.NewBridge(s.picker, s.respondDialog, s.deliverUpload, s.report)
	s.kbMonitor = keyboard.NewPageMonitor(page, s.opts.KeyboardPoll)
	s.shown = true
	s.mu.Unlock()

	s.watchDialogs(ctx)
	s.watchKeyboard(ctx)

	s.emit(EventLoadStarted, s.target)
	if err := s.observer.Load(); err != nil {
		return err
	}
	s.emit(EventLoadComplete, s.target)
	return nil
}

// Reload re-runs the load through the observer, keeping the one-shot retry
// semantics intact.
func (s *Screen) Reload() error {
	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer == nil {
		return ErrNotShown
	}

	s.emit(EventLoadStarted, s.target)
	if err := observer.Load(); err != nil {
		return err
	}
	s.emit(EventLoadComplete, s.target)
	return nil
}

// Close stops the keyboard poller, releases its subscription, and closes the
// browser control.
func (s *Screen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kbCancel != nil {
		s.kbCancel()
		s.kbCancel = nil
	}
	if s.kbRelease != nil {
		s.kbRelease()
		s.kbRelease = nil
	}
	if s.page == nil {
		return nil
	}
	err := s.page.Close()
	s.page = nil
	s.shown = false
	return err
}

// navigate performs one load of the composed URL and waits for it to settle.
func (s *Screen) navigate() error {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page == nil {
		return ErrNotShown
	}

	timed := page.Timeout(s.opts.NavigationTimeout)
	if err := timed.Navigate(s.target); err != nil {
		return err
	}
	return timed.WaitLoad()
}

// watchDialogs forwards JavaScript dialog events to the upload bridge.
func (s *Screen) watchDialogs(ctx context.Context) {
	s.mu.Lock()
	page := s.page
	bridge := s.bridge
	s.mu.Unlock()

	wait := page.Context(ctx).EachEvent(func(ev *proto.PageJavascriptDialogOpening) {
		if err := bridge.HandleDialog(ctx, string(ev.Type), ev.Message); err != nil {
			log.Printf("[screen:%s] dialog handling error: %v", s.id, err)
		}
	})
	go wait()
}

// watchKeyboard subscribes to keyboard geometry and shrinks the viewport by
// the inset while the keyboard is visible.
func (s *Screen) watchKeyboard(ctx context.Context) {
	s.mu.Lock()
	monitor := s.kbMonitor
	s.mu.Unlock()

	// The poller gets its own cancel so Close can stop it before the Show
	// context ends.
	runCtx, cancel := context.WithCancel(ctx)
	events, release := monitor.Subscribe()
	s.mu.Lock()
	s.kbRelease = release
	s.kbCancel = cancel
	s.mu.Unlock()

	go monitor.Run(runCtx)
	go func() {
		for ev := range events {
			s.applyKeyboardInset(ctx, ev)
		}
	}()
}

func (s *Screen) applyKeyboardInset(ctx context.Context, ev keyboard.Event) {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page == nil {
		return
	}

	height := s.opts.ViewportHeight - int(ev.Height)
	if height < minViewportHeight {
		height = minViewportHeight
	}
	err := proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.ViewportWidth,
		Height:            height,
		DeviceScaleFactor: 1.0,
		Mobile:            true,
	}.Call(page.Context(ctx))
	if err != nil {
		log.Printf("[screen:%s] keyboard layout update failed: %v", s.id, err)
		return
	}
	s.emit(EventKeyboardChanged, fmt.Sprintf("inset=%d visible=%v", int(ev.Height), ev.Visible))
}

// respondDialog acknowledges the currently open JavaScript dialog.
func (s *Screen) respondDialog(accept bool) error {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page == nil {
		return ErrNotShown
	}
	return proto.PageHandleJavaScriptDialog{Accept: accept}.Call(page)
}

// deliverUpload hands the picked location back into the page context.
func (s *Screen) deliverUpload(ctx context.Context, location string) error {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page == nil {
		return ErrNotShown
	}

	_, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		(location) => {
			if (typeof window.onFileUpload === 'function') {
				window.onFileUpload(location);
				return true;
			}
			document.dispatchEvent(new CustomEvent('file-upload', { detail: { url: location } }));
			return false;
		}
		`,
		JSArgs:       []interface{}{location},
		ByValue:      true,
		AwaitPromise: true,
	})
	return err
}

// report adapts the observer/bridge callback shape onto the event feed.
func (s *Screen) report(kind, detail string) {
	s.emit(kind, detail)
}

func (s *Screen) emit(kind, detail string) {
	if s.sink == nil {
		return
	}
	s.sink.Publish(Event{Type: kind, ScreenID: s.id, Detail: detail, Time: time.Now()})
}
