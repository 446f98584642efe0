// Package engine ties the swarm together for a windowed program: it owns the window, the active
// pipeline and its frame scheduler, and rebuilds them whenever new settings arrive.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-swarm/engine/control"
	"github.com/Carmen-Shannon/oxy-swarm/engine/profiler"
	"github.com/Carmen-Shannon/oxy-swarm/engine/scheduler"
	"github.com/Carmen-Shannon/oxy-swarm/engine/swarm"
	"github.com/Carmen-Shannon/oxy-swarm/engine/window"
	"go.uber.org/zap"
)

// WindowFactory opens a window for a client API.
type WindowFactory func(api window.ClientAPI, options ...window.WindowBuilderOption) (window.Window, error)

// ErrQuit is returned by Apply after Quit.
var ErrQuit = errors.New("engine quit")

// engine implements the Engine interface.
// Everything except Quit and the accessors runs on the thread that calls Run.
type engine struct {
	mu sync.Mutex

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	logger   *zap.Logger
	profiler *profiler.Profiler
	mailbox  *control.Mailbox

	newWindow       WindowFactory
	windowOptions   []window.WindowBuilderOption
	pipelineOptions []swarm.PipelineBuilderOption
	keyBindings     bool

	window    window.Window
	pipeline  swarm.Pipeline
	scheduler scheduler.FrameScheduler
	settings  control.Settings
}

// Engine is the main entry point for a windowed swarm.
// It applies settings by rebuilding the pipeline and runs the window message loop.
type Engine interface {
	// Window returns the window the active pipeline draws into.
	//
	// Returns:
	//   - window.Window: the window, nil before the first Apply
	Window() window.Window

	// Pipeline returns the active pipeline.
	//
	// Returns:
	//   - swarm.Pipeline: the pipeline, nil if none is running
	Pipeline() swarm.Pipeline

	// Scheduler returns the scheduler of the active pipeline.
	//
	// Returns:
	//   - scheduler.FrameScheduler: the scheduler, nil if none is running
	Scheduler() scheduler.FrameScheduler

	// Settings returns the settings of the active pipeline.
	//
	// Returns:
	//   - control.Settings: the settings
	Settings() control.Settings

	// Mailbox returns the mailbox Run drains. Post settings to it from any goroutine.
	//
	// Returns:
	//   - *control.Mailbox: the mailbox
	Mailbox() *control.Mailbox

	// Profiler returns the profiler shared by every pipeline the engine builds.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// Apply replaces the active pipeline. The old scheduler is stopped and the old pipeline
	// disposed; a new pipeline is built on a window of the right client API and initialized.
	// On success the old window is closed if it was replaced and the new scheduler started.
	// On failure nothing is left running and the error is returned. Must be called on the Run thread.
	//
	// Parameters:
	//   - s: the new settings
	//
	// Returns:
	//   - error: an error wrapping control.ErrInvalidSettings, or the initialization error
	Apply(s control.Settings) error

	// Run drains the mailbox and runs the window message loop until the window closes or Quit
	// is called, then tears everything down. It blocks.
	//
	// Returns:
	//   - error: nil
	Run() error

	// Quit signals Run to return.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// No window is opened until the first Apply.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		quitChannel: make(chan struct{}),
		logger:      zap.NewNop(),
		mailbox:     control.NewMailbox(),
		newWindow:   openWindow,
		keyBindings: true,
		settings:    control.DefaultSettings(),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}
	return e
}

func openWindow(api window.ClientAPI, options ...window.WindowBuilderOption) (window.Window, error) {
	return window.NewWindow(append(options, window.WithClientAPI(api))...)
}

func (e *engine) Window() window.Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window
}

func (e *engine) Pipeline() swarm.Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline
}

func (e *engine) Scheduler() scheduler.FrameScheduler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler
}

func (e *engine) Settings() control.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

func (e *engine) Mailbox() *control.Mailbox {
	return e.mailbox
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Apply(s control.Settings) error {
	select {
	case <-e.quitChannel:
		return ErrQuit
	default:
	}

	cfg, err := s.Config()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scheduler != nil {
		e.scheduler.Stop()
		e.scheduler = nil
	}
	if e.pipeline != nil {
		e.pipeline.Dispose()
		e.pipeline = nil
	}

	old := e.window
	w := old
	api := window.ClientAPIFor(cfg.Model)
	if w == nil || w.ClientAPI() != api {
		if w, err = e.newWindow(api, e.windowOptions...); err != nil {
			return err
		}
		e.bindKeys(w)
	}

	opts := append([]swarm.PipelineBuilderOption{
		swarm.WithLogger(e.logger),
		swarm.WithProfiler(e.profiler),
	}, e.pipelineOptions...)
	p := swarm.NewPipeline(cfg, w, opts...)
	start := time.Now()
	if err := p.Init(context.Background()); err != nil {
		p.Dispose()
		if w != old {
			if old != nil {
				_ = w.Close()
			} else {
				e.window = w
			}
		}
		return err
	}

	if w != old && old != nil {
		if err := old.Close(); err != nil {
			e.logger.Warn("closing previous window", zap.Error(err))
		}
	}
	e.window = w
	e.pipeline = p
	e.settings = s
	e.scheduler = scheduler.NewFrameScheduler(w, p, scheduler.WithLogger(e.logger))
	if err := e.scheduler.Start(); err != nil {
		return err
	}

	e.logger.Info("settings applied",
		zap.Stringer("model", cfg.Model),
		zap.Stringer("style", cfg.Style),
		zap.Uint32("particles", cfg.ParticleCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// bindKeys posts key-driven settings changes to the mailbox.
func (e *engine) bindKeys(w window.Window) {
	if !e.keyBindings {
		return
	}
	w.SetKeyDownCallback(func(keyCode uint32) {
		if next, ok := control.ApplyKey(e.Settings(), keyCode); ok {
			e.mailbox.Post(next)
		}
	})
}

func (e *engine) Run() error {
	defer e.shutdown()

	for {
		select {
		case <-e.quitChannel:
			return nil
		default:
		}

		if s, ok := e.mailbox.Drain(); ok {
			if err := e.Apply(s); err != nil && !errors.Is(err, ErrQuit) {
				e.logger.Error("settings not applied", zap.Error(err))
			}
		}

		w := e.Window()
		if w == nil {
			select {
			case <-e.quitChannel:
				return nil
			case <-e.mailbox.Notify():
			}
			continue
		}
		if !w.Poll() {
			return nil
		}
		e.reapFailed()
	}
}

// reapFailed disposes a pipeline whose scheduler stopped on a frame error. Nothing is retried;
// the next settings change builds a new pipeline.
func (e *engine) reapFailed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scheduler == nil || e.scheduler.Err() == nil {
		return
	}
	e.logger.Error("pipeline stopped", zap.Error(e.scheduler.Err()))
	e.scheduler = nil
	if e.pipeline != nil {
		e.pipeline.Dispose()
		e.pipeline = nil
	}
}

// shutdown stops the scheduler, disposes the pipeline and closes the window, in that order.
func (e *engine) shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scheduler != nil {
		e.scheduler.Stop()
		e.scheduler = nil
	}
	if e.pipeline != nil {
		e.pipeline.Dispose()
		e.pipeline = nil
	}
	if e.window != nil {
		_ = e.window.Close()
		e.window = nil
	}
}

// Quit signals Run to return.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}
