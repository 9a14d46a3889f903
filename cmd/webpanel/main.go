package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webpanel/internal/browser"
	"webpanel/internal/config"
	"webpanel/internal/control"
	"webpanel/internal/picker"
	"webpanel/internal/screen"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the webpanel config file")
	controlPort := flag.Int("control-port", 0, "Optional control API port override (falls back to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *controlPort != 0 {
		cfg.Server.ControlPort = *controlPort
	}

	if cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		}
	}

	engine := browser.NewEngine(cfg.Browser)
	if err := engine.Start(ctx); err != nil {
		log.Fatalf("failed to start browser engine: %v", err)
	}
	defer engine.Close()

	hub := control.NewHub()
	library := picker.NewPhotoLibrary(cfg.Upload.PhotoDir, cfg.Upload.Extensions)

	scr := screen.New(screen.Options{
		BaseURL:           cfg.Screen.BaseURL,
		Params:            cfg.Screen.Params,
		DeviceModel:       cfg.Screen.GetDeviceModel(),
		AppVersion:        cfg.Screen.GetAppVersion(cfg.Server.Version),
		UserAgent:         cfg.Browser.GetUserAgent(),
		ViewportWidth:     cfg.Browser.GetViewportWidth(),
		ViewportHeight:    cfg.Browser.GetViewportHeight(),
		NavigationTimeout: cfg.Browser.NavigationTimeout(),
		KeyboardPoll:      cfg.Screen.PollInterval(),
	}, library, hub)
	defer scr.Close()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Server.ControlPort > 0 {
		handler := control.NewHandler(scr, hub)
		srv := control.NewServer(cfg.Server.ControlAddr(), handler.SetupRoutes())

		g.Go(func() error {
			log.Printf("control API listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		if msg := scr.Fallback(); msg != "" {
			log.Printf("screen in fallback state: %s", msg)
			<-ctx.Done()
			return nil
		}
		if err := scr.Show(ctx, engine); err != nil {
			// Load failures are observed, not fatal; the screen stays up for
			// control-initiated reloads.
			log.Printf("screen load failed: %v", err)
		}
		<-ctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("webpanel exited with error: %v", err)
	}
}
