package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/haukened/auto-hosts/internal/hosts/common/clock"
	"github.com/haukened/auto-hosts/internal/hosts/common/log"
	"github.com/haukened/auto-hosts/internal/hosts/config"
	"github.com/haukened/auto-hosts/internal/hosts/gateways/ssid"
	"github.com/haukened/auto-hosts/internal/hosts/gateways/watcher"
	"github.com/haukened/auto-hosts/internal/hosts/infra/metrics"
	"github.com/haukened/auto-hosts/internal/hosts/repos/history"
	"github.com/haukened/auto-hosts/internal/hosts/repos/hostsfile"
	"github.com/haukened/auto-hosts/internal/hosts/repos/settings"
	"github.com/haukened/auto-hosts/internal/hosts/services/scheduler"
	"github.com/haukened/auto-hosts/internal/hosts/services/updater"
)

const (
	// Version information
	version = "1.0.0"
	appName = "auto-hostsd"
)

// Seams for tests.
var (
	executablePath = os.Executable
	newSSIDSource  = func() (updater.SSIDSource, error) { return ssid.New() }
)

// Application holds all the components of the updater
type Application struct {
	config   *config.AppConfig
	settings *settings.Store
	history  *history.Store
	metrics  *metrics.Recorder
	updater  *updater.Updater
	logger   log.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads process settings and anchors relative paths next to the executable.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	exe, err := executablePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	cfg.ResolvePaths(filepath.Dir(exe))
	return cfg, nil
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig, src updater.SSIDSource) (*Application, error) {
	logger := log.GetLogger()

	store, err := settings.New(cfg.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings store: %w", err)
	}
	created, err := store.EnsureDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to create default config: %w", err)
	}
	if created {
		log.Info(map[string]any{"config_file": store.Path()}, "Created default config file")
	}

	hist, err := history.New(cfg.HistoryFile, cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	recorder := metrics.NewRecorder(nil)

	upd := updater.New(updater.Options{
		SSID:      src,
		Settings:  store,
		OpenHosts: func(path string) updater.HostsFile { return hostsfile.New(path) },
		History:   hist,
		Metrics:   recorder,
		Clock:     clock.RealClock{},
		Logger:    logger,
	})

	return &Application{
		config:   cfg,
		settings: store,
		history:  hist,
		metrics:  recorder,
		updater:  upd,
		logger:   logger,
	}, nil
}

// Run drives update cycles until ctx is canceled. It fails only if a supporting
// component (the metrics endpoint) fails.
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info(map[string]any{
		"version":      version,
		"interval":     app.config.Interval.String(),
		"config_file":  app.config.ConfigFile,
		"history_file": app.config.HistoryFile,
		"watch":        app.config.Watch,
		"metrics_addr": app.config.MetricsAddr,
	}, "Starting auto-hosts updater")

	var (
		wg      sync.WaitGroup
		trigger <-chan struct{}
		errCh   = make(chan error, 1)
	)

	if app.config.Watch {
		w, err := watcher.New(app.watchedFiles(), watcher.Options{Logger: app.logger})
		if err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "File watcher disabled")
		} else {
			trigger = w.C()
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = w.Run(ctx)
			}()
		}
	}

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.metrics.Serve(ctx, app.config.MetricsAddr, app.logger); err != nil {
				errCh <- fmt.Errorf("metrics endpoint: %w", err)
				cancel()
			}
		}()
	}

	sched, err := scheduler.New(app.config.Interval, app.updater.Tick,
		scheduler.WithTrigger(trigger),
		scheduler.WithLogger(app.logger),
	)
	if err != nil {
		return err
	}

	err = sched.Run(ctx)
	cancel()
	wg.Wait()

	select {
	case serveErr := <-errCh:
		return serveErr
	default:
	}
	if errors.Is(err, context.Canceled) {
		log.Info(nil, "auto-hosts updater stopped gracefully")
		return nil
	}
	return err
}

// watchedFiles returns config.toml plus the hosts file it names, when readable.
func (app *Application) watchedFiles() []string {
	files := []string{app.settings.Path()}
	if st, err := app.settings.Load(); err == nil {
		files = append(files, st.HostsPath)
	}
	return files
}
