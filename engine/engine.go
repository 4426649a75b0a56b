package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	cfg          *config.Config
	configPath   string
	gameInstance *Game
	isRunning    bool

	events   *core.EventBus
	input    *core.Input
	platform *platform.Platform
	assets   *assets.AssetManager
	device   *vulkan.Device
	renderer *renderer.Renderer
	scene    *scene.Scene
	watcher  *config.Watcher

	clock      *core.Clock
	metrics    *core.Metrics
	lastTime   float64
	transforms []math.Mat4
}

// New wires the engine around cfg. configPath is watched for sampling
// changes, an empty path disables the watcher.
func New(cfg *config.Config, configPath string, g *Game) (*Engine, error) {
	if cfg == nil || g == nil {
		return nil, errors.New("engine needs a config and a game")
	}
	if g.FnInitialize == nil || g.FnUpdate == nil {
		return nil, errors.New("game must provide initialize and update functions")
	}
	events := core.NewEventBus()
	input := core.NewInput(events)
	return &Engine{
		currentStage: EngineStageUninitialized,
		cfg:          cfg,
		configPath:   configPath,
		gameInstance: g,
		events:       events,
		input:        input,
		platform:     platform.New(events, input),
		assets:       assets.NewAssetManager(),
		scene:        scene.New(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

func (e *Engine) Initialize(ctx context.Context) error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EventApplicationQuit, e, e.onEvent)
	e.events.Register(core.EventKeyPressed, e, e.onKey)
	e.events.Register(core.EventResized, e, e.onResized)

	bundle, err := e.assets.LoadBundle(ctx, e.cfg.Assets.Model, e.cfg.Assets.VertexShader, e.cfg.Assets.FragmentShader)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	mesh, err := e.gameInstance.FnInitialize(e.scene, bundle.Model)
	if err != nil {
		return fmt.Errorf("initialize game: %w", err)
	}
	if mesh.Batches.Len() != e.scene.Len() {
		return fmt.Errorf("mesh has %d batches for %d entities", mesh.Batches.Len(), e.scene.Len())
	}

	if err := e.platform.Startup(e.cfg.Window); err != nil {
		return err
	}

	e.device, err = vulkan.NewDevice(e.platform, vulkan.Options{
		AppName:    e.cfg.Window.Title,
		Validation: e.cfg.Renderer.Validation,
	})
	if err != nil {
		return core.Fatal("create device", err)
	}

	opts := renderer.DefaultOptions()
	opts.Multisample = e.cfg.Renderer.MSAA
	opts.Samples = e.cfg.Renderer.Samples
	opts.ClearColor = e.cfg.Renderer.ClearColor
	if e.cfg.Renderer.FenceTimeout.Duration > 0 {
		opts.FenceTimeout = e.cfg.Renderer.FenceTimeout.Duration
	}
	if n := mesh.Batches.Len(); n > opts.MaxInstances {
		opts.MaxInstances = n
	}

	e.renderer = renderer.New(e.device, opts, bundle.Shaders)
	if err := e.renderer.Initialize(); err != nil {
		return err
	}
	if err := e.renderer.LoadMesh(mesh); err != nil {
		return err
	}

	if e.configPath != "" {
		w, err := config.NewWatcher(e.configPath, e.cfg)
		if err != nil {
			core.LogWarn("config watcher disabled: %s", err.Error())
		} else {
			e.watcher = w
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives frames until the window closes, a quit event fires or ctx is
// cancelled. Any returned error is fatal.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return errors.New("engine is not initialized")
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		select {
		case <-ctx.Done():
			core.LogInfo("shutdown requested: %s", ctx.Err())
			return nil
		default:
		}

		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			break
		}
		e.applyConfigChanges()

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.gameInstance.FnUpdate(e.scene, e.input, delta); err != nil {
			return fmt.Errorf("game update: %w", err)
		}
		e.scene.Update(delta)

		if e.renderer.AspectChanged() {
			extent := e.renderer.Extent()
			core.LogDebug("aspect changed to %dx%d", extent.Width, extent.Height)
			if e.gameInstance.FnOnResize != nil {
				if err := e.gameInstance.FnOnResize(extent.Width, extent.Height); err != nil {
					return fmt.Errorf("game resize: %w", err)
				}
			}
		}

		e.transforms = e.scene.Transforms(e.transforms)
		uniform := e.scene.Uniform(e.renderer.Extent().Aspect())
		if err := e.renderer.DrawFrame(e.transforms, uniform); err != nil {
			return fmt.Errorf("draw frame: %w", err)
		}

		e.clock.Update()
		if e.metrics.Update(e.clock.Elapsed() - currentTime) {
			stats := e.renderer.Stats()
			core.LogDebug("%.0f fps, %.2f ms/frame, %d submitted, %d skipped, %d rebuilds",
				e.metrics.FPS(), e.metrics.FrameTime(), stats.FramesSubmitted, stats.FramesSkipped, stats.Rebuilds)
		}

		// input state rolls over last so this frame's transitions were seen
		e.input.Update()
		e.lastTime = currentTime
	}
	return nil
}

// Shutdown releases everything in reverse creation order. It is safe to
// call after a failed Initialize.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error

	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
		e.watcher = nil
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		e.renderer = nil
	}
	if e.device != nil {
		e.device.Destroy()
		e.device = nil
	}
	e.platform.Shutdown()
	e.events.Clear()

	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

func (e *Engine) applyConfigChanges() {
	if e.watcher == nil {
		return
	}
	select {
	case change, ok := <-e.watcher.Changes():
		if ok {
			e.renderer.SetMultisample(change.Enabled, change.Samples)
		}
	default:
	}
}

func (e *Engine) onEvent(code core.EventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EventApplicationQuit {
		core.LogInfo("EventApplicationQuit received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.EventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if e.renderer == nil {
		return false
	}
	switch core.KeyCode(data.Data.U16[0]) {
	case core.KeyEscape:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EventApplicationQuit, e, core.EventContext{})
		return true
	case core.KeyM:
		enabled, _ := e.renderer.Multisample()
		e.renderer.SetMultisample(!enabled, 0)
		return true
	}
	return false
}

func (e *Engine) onResized(code core.EventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if e.renderer == nil {
		return false
	}
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == 0 || height == 0 {
		core.LogDebug("window minimized, frames are skipped until it is restored")
	} else {
		core.LogDebug("window resize: %d, %d", width, height)
	}
	e.renderer.Resized(width, height)
	return true
}
