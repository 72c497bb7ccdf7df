package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/event"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
	"github.com/Carmen-Shannon/oxy-lpv/engine/profiler"
	"github.com/Carmen-Shannon/oxy-lpv/engine/scene"
)

// engine implements the Engine interface.
// Coordinates the tick and render goroutines of a headless frame loop.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	mu         sync.RWMutex
	scenes     map[int]scene.Scene
	events     *event.Queue
	queue      *framegraph.Queue
	semaphores []framegraph.Semaphore
	frames     atomic.Uint64
	logger     *slog.Logger

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	watchCancel   context.CancelFunc
	pendingConfig *gi.Config // latest reloaded config, applied before the next scene update
}

// Engine is the main entry point for the engine.
// It orchestrates the tick loop and the render loop of every registered scene.
type Engine interface {
	// Events returns the queue whose pre-render and post-render events the engine runs
	// each frame. Render components post deferred work, such as graph rebuilds, to it.
	//
	// Returns:
	//   - *event.Queue: the event queue
	Events() *event.Queue

	// Queue returns the submission queue every scene renders into.
	//
	// Returns:
	//   - *framegraph.Queue: the queue
	Queue() *framegraph.Queue

	// Profiler returns the engine profiler.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// RenderContext returns a context wired to the engine's events, profiler and logger.
	//
	// Parameters:
	//   - backend: the GPU backend
	//   - cfg: the GI configuration
	//
	// Returns:
	//   - lpv.RenderContext: the context
	RenderContext(backend lpv.Backend, cfg gi.Config) lpv.RenderContext

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are rendered in ascending key order during the render loop.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	// Returns nil if no scene exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// RenderFrame renders one frame synchronously: every active scene is updated, the
	// pre-render events run, every active scene renders in ascending key order chained by
	// semaphores, then the post-render events run. A scene whose frame fails is retried
	// once with global illumination disabled.
	//
	// Parameters:
	//   - deltaTime: elapsed time in seconds
	//
	// Returns:
	//   - error: the joined errors of scenes that failed even without global illumination
	RenderFrame(deltaTime float32) error

	// Frames returns the number of frames rendered.
	Frames() uint64

	// Semaphores returns the semaphores signaled by the last frame.
	Semaphores() []framegraph.Semaphore

	// WatchConfig reloads a GI configuration file on every write and applies its indirect
	// attenuation to every scene at the start of the next frame, before the scenes update.
	// Settings that shape the volumes need the scenes to be rebuilt and are only logged.
	//
	// Parameters:
	//   - path: the TOML file
	//
	// Returns:
	//   - error: if the watch could not start
	WatchConfig(path string) error

	// Run starts the tick and render loops and blocks until Quit.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		scenes:           make(map[int]scene.Scene),
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
		events:           event.NewQueue(),
		queue:            framegraph.NewQueue("graphics"),
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

func (e *engine) Events() *event.Queue {
	return e.events
}

func (e *engine) Queue() *framegraph.Queue {
	return e.queue
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) RenderContext(backend lpv.Backend, cfg gi.Config) lpv.RenderContext {
	return lpv.RenderContext{
		Backend:  backend,
		Events:   e.events,
		Profiler: e.profiler,
		Executor: framegraph.NewPoolExecutor(cfg.Workers),
		Config:   cfg,
		Logger:   e.logger,
	}
}

// log returns the engine logger, or the package logger when none is set.
func (e *engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return common.Logger()
}

func (e *engine) Run() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.handle()
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		e.mu.Lock()
		if e.watchCancel != nil {
			e.watchCancel()
			e.watchCancel = nil
		}
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.log().Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if err := e.RenderFrame(dt); err != nil {
				e.log().Error("frame failed", "frame", e.frames.Load(), "error", err)
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

func (e *engine) RenderFrame(deltaTime float32) error {
	if cfg, ok := e.takeConfig(); ok {
		e.applyConfig(cfg)
	}
	active := e.activeScenes()

	var errs []error
	failed := make(map[scene.Scene]bool)
	for _, s := range active {
		if err := s.Update(deltaTime); err != nil {
			if err = e.retryWithoutGI(s, err); err != nil {
				errs = append(errs, err)
				failed[s] = true
			}
		}
	}

	e.events.Process(event.TypePreRender)

	e.mu.RLock()
	toWait := e.semaphores
	e.mu.RUnlock()
	for _, s := range active {
		if failed[s] {
			continue
		}
		sems, err := s.Render(toWait, e.queue)
		if err != nil {
			if err = e.retryWithoutGI(s, err); err == nil {
				sems, err = s.Render(toWait, e.queue)
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
		}
		toWait = sems
	}

	e.events.Process(event.TypePostRender)

	e.mu.Lock()
	e.semaphores = toWait
	e.mu.Unlock()
	e.frames.Add(1)
	return errors.Join(errs...)
}

// retryWithoutGI logs a scene failure and updates the scene again with global illumination
// disabled. GI is re-enabled on the next frame through the deferred post-render event.
func (e *engine) retryWithoutGI(s scene.Scene, cause error) error {
	if !s.GlobalIllumination() {
		return fmt.Errorf("scene %s: %w", s.Name(), cause)
	}
	e.log().Warn("disabling global illumination for the frame", "scene", s.Name(), "error", cause)
	s.SetGlobalIllumination(false)
	e.events.Post(event.NewFunctorEvent(event.TypePostRender, func() {
		s.SetGlobalIllumination(true)
	}))
	if err := s.Update(0); err != nil {
		return fmt.Errorf("scene %s: %w", s.Name(), err)
	}
	return nil
}

// activeScenes returns the active scenes in ascending key order.
func (e *engine) activeScenes() []scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []scene.Scene
	for _, k := range slices.Sorted(maps.Keys(e.scenes)) {
		if s := e.scenes[k]; s.Active() {
			out = append(out, s)
		}
	}
	return out
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}

func (e *engine) Semaphores() []framegraph.Semaphore {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.semaphores)
}

func (e *engine) WatchConfig(path string) error {
	ctx, cancel := context.WithCancel(context.Background())
	configs, err := gi.WatchConfig(ctx, path)
	if err != nil {
		cancel()
		return err
	}

	e.mu.Lock()
	if e.watchCancel != nil {
		e.watchCancel()
	}
	e.watchCancel = cancel
	e.mu.Unlock()

	go func() {
		for cfg := range configs {
			e.queueConfig(cfg)
		}
	}()
	return nil
}

// queueConfig replaces the pending configuration. Only the latest reload is applied.
func (e *engine) queueConfig(cfg gi.Config) {
	e.mu.Lock()
	e.pendingConfig = &cfg
	e.mu.Unlock()
}

func (e *engine) takeConfig() (gi.Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingConfig == nil {
		return gi.Config{}, false
	}
	cfg := *e.pendingConfig
	e.pendingConfig = nil
	return cfg, true
}

// applyConfig pushes the live-tunable settings of cfg to every scene.
func (e *engine) applyConfig(cfg gi.Config) {
	for _, s := range e.Scenes() {
		s.SetIndirectAttenuation(cfg.IndirectAttenuation)
	}
	e.log().Info("gi config reloaded", "indirect_attenuation", cfg.IndirectAttenuation,
		"grid_size", cfg.GridSize, "cascades", cfg.Cascades)
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.scenes)
}
