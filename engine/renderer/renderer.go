// Package renderer drives frames through a gpu.Device: a ring of frames in
// flight, a staging pipeline that hands per-frame data from the transfer
// queue to the graphics queue, and a state machine that rebuilds the
// swapchain when the surface changes.
package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type Options struct {
	Multisample bool
	Samples     int
	// FenceTimeout bounds every fence and acquire wait. Exceeding it is
	// fatal.
	FenceTimeout time.Duration
	ClearColor   [4]float32
	// MaxInstances sizes the per-frame transform buffers.
	MaxInstances int
}

func DefaultOptions() Options {
	return Options{
		Samples:      4,
		FenceTimeout: gpu.InfiniteTimeout,
		ClearColor:   [4]float32{0.02, 0.02, 0.03, 1},
		MaxInstances: 64,
	}
}

// Shaders holds SPIR-V bytecode for both pipeline stages.
type Shaders struct {
	Vertex   []byte
	Fragment []byte
}

type Stats struct {
	FramesSubmitted uint64
	FramesSkipped   uint64
	Rebuilds        uint64
}

type Renderer struct {
	device  gpu.Device
	opts    Options
	shaders Shaders

	ring        frameRing
	descriptors gpu.DescriptorPool
	targets     *renderTargets
	pipeline    gpu.Pipeline
	mesh        *meshBuffers

	state         SurfaceState
	surfaceStale  bool
	samples       int
	aspectChanged bool
	stats         Stats
}

func New(device gpu.Device, opts Options, shaders Shaders) *Renderer {
	if opts.MaxInstances <= 0 {
		opts.MaxInstances = DefaultOptions().MaxInstances
	}
	if opts.FenceTimeout <= 0 {
		opts.FenceTimeout = gpu.InfiniteTimeout
	}
	return &Renderer{
		device:  device,
		opts:    opts,
		shaders: shaders,
		ring:    frameRing{device: device},
	}
}

// Initialize creates the per-slot buffers and, if the surface has an area,
// the swapchain and everything that depends on it. With a zero sized
// surface the renderer starts in PendingResize.
func (r *Renderer) Initialize() error {
	pool, err := r.device.CreateDescriptorPool(FramesInFlight)
	if err != nil {
		return core.Fatal("create descriptor pool", err)
	}
	r.descriptors = pool

	if err := r.ring.createFrameResources(pool, r.opts.MaxInstances); err != nil {
		return err
	}

	extent, err := r.device.SurfaceExtent()
	if err != nil {
		return core.Fatal("query surface extent", err)
	}
	if extent.IsZero() {
		r.state = PendingResize
		r.surfaceStale = true
		return nil
	}
	if err := r.buildSurface(extent, r.resolveSamples()); err != nil {
		return err
	}
	core.LogInfo("renderer initialized at %dx%d, %d samples, %d frames in flight", extent.Width, extent.Height, r.samples, FramesInFlight)
	return nil
}

// LoadMesh validates mesh and uploads its vertex, normal and index data to
// device-local buffers, blocking until the copies complete. A previously
// loaded mesh is released once the device is idle.
func (r *Renderer) LoadMesh(mesh *Mesh) error {
	if err := mesh.Validate(); err != nil {
		return err
	}
	if mesh.Batches.Len() > r.opts.MaxInstances {
		return fmt.Errorf("%w: %d batches, capacity %d", core.ErrTooManyInstances, mesh.Batches.Len(), r.opts.MaxInstances)
	}

	if r.mesh != nil {
		if err := r.device.WaitIdle(); err != nil {
			return core.Fatal("wait device idle", err)
		}
		r.mesh.destroy()
		r.mesh = nil
	}

	positions := encode(mesh.Positions)
	normals := encode(mesh.Normals)
	indices := encode(mesh.Indices)

	mb := &meshBuffers{indexCount: uint32(len(mesh.Indices)), batches: mesh.Batches}
	var err error
	if mb.vertices, err = createBuffer(r.device, uint64(len(positions)), gpu.BufferUsageVertex|gpu.BufferUsageTransferDst, gpu.MemoryDeviceLocal); err != nil {
		return err
	}
	if mb.normals, err = createBuffer(r.device, uint64(len(normals)), gpu.BufferUsageVertex|gpu.BufferUsageTransferDst, gpu.MemoryDeviceLocal); err != nil {
		mb.destroy()
		return err
	}
	if mb.indices, err = createBuffer(r.device, uint64(len(indices)), gpu.BufferUsageIndex|gpu.BufferUsageTransferDst, gpu.MemoryDeviceLocal); err != nil {
		mb.destroy()
		return err
	}

	uploads := []struct {
		dst  gpu.Buffer
		data []byte
	}{
		{mb.vertices, positions},
		{mb.normals, normals},
		{mb.indices, indices},
	}
	for _, u := range uploads {
		if err := r.uploadOnce(u.dst, u.data); err != nil {
			mb.destroy()
			return err
		}
	}

	r.mesh = mb
	core.LogDebug("mesh loaded: %d vertices, %d indices, %d batches", len(mesh.Positions), len(mesh.Indices), mesh.Batches.Len())
	return nil
}

// DrawFrame renders one frame. transforms holds one matrix per batch.
// Stale swapchains and minimized windows are handled internally and never
// reported as errors. Any error returned is fatal.
func (r *Renderer) DrawFrame(transforms []math.Mat4, uniform UniformData) error {
	if r.mesh == nil {
		return errors.New("draw frame: no mesh loaded")
	}
	if len(transforms) < r.mesh.batches.Len() {
		return fmt.Errorf("draw frame: %d transforms for %d batches", len(transforms), r.mesh.batches.Len())
	}
	if len(transforms) > r.opts.MaxInstances {
		return fmt.Errorf("draw frame: %w: %d > %d", core.ErrTooManyInstances, len(transforms), r.opts.MaxInstances)
	}

	if r.state != Stable {
		rebuilt, err := r.tickPending()
		if err != nil {
			return err
		}
		if !rebuilt {
			r.stats.FramesSkipped++
		}
		// the first frame after a rebuild starts on the next tick
		return nil
	}

	slot := r.ring.slot()
	if err := slot.drawingFinished.Wait(r.opts.FenceTimeout); err != nil {
		return core.Fatal("wait drawing fence", err)
	}

	imageIndex, status, err := r.targets.swapchain.AcquireNextImage(r.opts.FenceTimeout, slot.imageAcquired)
	if err != nil {
		return core.Fatal("acquire swapchain image", err)
	}
	if status != gpu.StatusOptimal {
		r.requestRebuild(fmt.Errorf("%w: acquire reported %s", core.ErrSwapchainStale, status))
		return nil
	}

	// only reset once work is certain to be submitted with this fence
	if err := slot.drawingFinished.Reset(); err != nil {
		return core.Fatal("reset drawing fence", err)
	}

	if err := r.uploadFrame(slot, transforms, &uniform); err != nil {
		return err
	}
	if err := r.recordGraphics(slot, imageIndex); err != nil {
		return err
	}
	if r.device.QueueFamilies().PresentIsSeparate() {
		if err := r.recordPresent(slot, imageIndex); err != nil {
			return err
		}
	}

	wait, err := r.submitFrame(slot)
	if err != nil {
		return err
	}

	status, err = r.targets.swapchain.Present(wait, imageIndex)
	if err != nil {
		return core.Fatal("present", err)
	}
	r.ring.advance()
	r.stats.FramesSubmitted++

	if status != gpu.StatusOptimal {
		r.requestRebuild(fmt.Errorf("%w: present reported %s", core.ErrSwapchainStale, status))
	}
	return nil
}

// Resized is called when the platform reports a new framebuffer size. The
// size itself is re-read from the surface when the rebuild runs.
func (r *Renderer) Resized(width, height uint32) {
	r.requestRebuild(fmt.Errorf("framebuffer resized to %dx%d", width, height))
}

// SetMultisample changes the sample configuration. The pipeline and render
// targets are rebuilt on the next frame when the effective sample count
// differs from the one in use. A change reverted before that frame cancels
// the rebuild unless the surface itself is stale.
func (r *Renderer) SetMultisample(enabled bool, samples int) {
	r.opts.Multisample = enabled
	if samples > 0 {
		r.opts.Samples = samples
	}
	switch next := r.resolveSamples(); {
	case next != r.samples:
		core.LogInfo("multisampling changed from %d to %d samples", r.samples, next)
		r.pend(fmt.Errorf("sample count changed to %d", next))
	case r.state == PendingResize && !r.surfaceStale:
		core.LogDebug("sample count back to %d, rebuild cancelled", next)
		r.state = Stable
	}
}

func (r *Renderer) Multisample() (bool, int) {
	return r.opts.Multisample, r.samples
}

// AspectChanged reports whether the swapchain was rebuilt since the last
// call.
func (r *Renderer) AspectChanged() bool {
	changed := r.aspectChanged
	r.aspectChanged = false
	return changed
}

// Extent is the current swapchain extent, zero before the first build.
func (r *Renderer) Extent() gpu.Extent {
	if r.targets == nil {
		return gpu.Extent{}
	}
	return r.targets.swapchain.Extent()
}

func (r *Renderer) State() SurfaceState {
	return r.state
}

func (r *Renderer) Stats() Stats {
	return r.stats
}

// Shutdown waits for the device and releases everything the renderer
// created. The device itself belongs to the caller.
func (r *Renderer) Shutdown() error {
	err := r.device.WaitIdle()
	if err != nil {
		err = core.Fatal("wait device idle", err)
	}

	r.ring.freeCommandBuffers()
	r.ring.destroySyncObjects()
	if r.mesh != nil {
		r.mesh.destroy()
		r.mesh = nil
	}
	if r.pipeline != nil {
		r.pipeline.Destroy()
		r.pipeline = nil
	}
	if r.targets != nil {
		r.targets.destroy()
		r.targets = nil
	}
	r.ring.destroyFrameResources()
	if r.descriptors != nil {
		r.descriptors.Destroy()
		r.descriptors = nil
	}
	return err
}
