// Package launcher registers the binary with the OS service manager so it starts at login,
// and runs the update loop under that manager's control.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kardianos/service"

	"github.com/haukened/auto-hosts/internal/hosts/common/log"
)

const stopTimeout = 10 * time.Second

// RunFunc is the long-running work. It must return once ctx is canceled.
type RunFunc func(ctx context.Context) error

// Options describes the service registration.
type Options struct {
	Name        string
	DisplayName string
	Description string
	// Arguments are passed to the executable when the service manager starts it.
	Arguments []string
	Logger    log.Logger
}

// Launcher wraps a kardianos service.
type Launcher struct {
	svc service.Service
	prg *program
}

// New prepares a per-user service that runs run until stopped.
func New(run RunFunc, opts Options) (*Launcher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	cfg := &service.Config{
		Name:        opts.Name,
		DisplayName: opts.DisplayName,
		Description: opts.Description,
		Executable:  exe,
		Arguments:   opts.Arguments,
		Option: service.KeyValue{
			"UserService": true,
			"RunAtLoad":   true,
			"KeepAlive":   false,
		},
	}

	prg := newProgram(run, logger)
	svc, err := service.New(prg, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return &Launcher{svc: svc, prg: prg}, nil
}

// Install registers the service to start at login.
func (l *Launcher) Install() error {
	return l.svc.Install()
}

// Uninstall removes the registration.
func (l *Launcher) Uninstall() error {
	return l.svc.Uninstall()
}

// Status reports the service manager's view as a display string.
func (l *Launcher) Status() (string, error) {
	st, err := l.svc.Status()
	if err != nil {
		if errors.Is(err, service.ErrNotInstalled) {
			return "Not installed", nil
		}
		return "Unknown", err
	}
	switch st {
	case service.StatusRunning:
		return "Running", nil
	case service.StatusStopped:
		return "Stopped", nil
	case service.StatusUnknown:
		return "Unknown", nil
	default:
		return fmt.Sprintf("Status(%d)", int(st)), nil
	}
}

// Platform names the service backend, e.g. "linux-systemd" or "darwin-launchd".
func (l *Launcher) Platform() string {
	return l.svc.Platform()
}

// Run blocks until the service manager, or an interrupt when run from a terminal, stops
// the service. It returns the error of the RunFunc if it failed on its own.
func (l *Launcher) Run() error {
	if err := l.svc.Run(); err != nil {
		return err
	}
	return l.prg.err()
}

// program adapts a RunFunc to service.Interface.
type program struct {
	run    RunFunc
	logger log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	runErr error

	// exit ends the process when the loop fails on its own.
	exit func(code int)
}

func newProgram(run RunFunc, logger log.Logger) *program {
	return &program{run: run, logger: logger, exit: exitProcess}
}

func exitProcess(code int) {
	log.Sync()
	os.Exit(code)
}

// Start must not block.
func (p *program) Start(service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return errors.New("already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info(map[string]any{"interactive": service.Interactive()}, "Starting auto-hosts")

	go func() {
		defer close(p.done)
		err := p.run(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Error(map[string]any{"error": err.Error()}, "Update loop exited")
		p.mu.Lock()
		p.runErr = err
		p.mu.Unlock()
		p.exit(1)
	}()
	return nil
}

// Stop cancels the loop and waits for it, bounded by stopTimeout.
func (p *program) Stop(service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	p.logger.Info(nil, "Stopping auto-hosts")
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
		return fmt.Errorf("update loop did not stop within %s", stopTimeout)
	}
}

func (p *program) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runErr
}
