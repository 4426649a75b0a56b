package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// SurfaceState tracks whether the swapchain matches the surface.
type SurfaceState int

const (
	Stable SurfaceState = iota
	PendingResize
	Rebuilding
)

func (s SurfaceState) String() string {
	switch s {
	case Stable:
		return "stable"
	case PendingResize:
		return "pending-resize"
	case Rebuilding:
		return "rebuilding"
	default:
		return fmt.Sprintf("SurfaceState(%d)", int(s))
	}
}

// requestRebuild marks the surface stale and moves the renderer to
// PendingResize. The rebuild itself happens on the next DrawFrame.
func (r *Renderer) requestRebuild(reason error) {
	r.surfaceStale = true
	r.pend(reason)
}

func (r *Renderer) pend(reason error) {
	if r.state == Stable {
		core.LogDebug("swapchain rebuild requested: %v", reason)
	}
	r.state = PendingResize
}

// tickPending runs one frame tick in PendingResize. It returns true once
// the surface has been rebuilt. A degenerate surface leaves the state
// untouched and the frame is skipped.
func (r *Renderer) tickPending() (bool, error) {
	extent, err := r.device.SurfaceExtent()
	if err != nil {
		return false, core.Fatal("query surface extent", err)
	}
	if extent.IsZero() {
		core.LogDebug("surface extent is %dx%d, skipping frame", extent.Width, extent.Height)
		return false, nil
	}

	r.state = Rebuilding
	if err := r.rebuild(extent); err != nil {
		return false, err
	}
	r.state = Stable
	r.surfaceStale = false
	return true, nil
}

// rebuild tears down everything that depends on the surface or the sample
// count and builds it again. Nothing is destroyed before the device is
// idle, so no frame in flight can still reference it.
func (r *Renderer) rebuild(extent gpu.Extent) error {
	if err := r.device.WaitIdle(); err != nil {
		return core.Fatal("wait device idle", err)
	}

	r.ring.freeCommandBuffers()
	r.ring.destroySyncObjects()
	if r.targets != nil {
		r.targets.destroy()
		r.targets = nil
	}

	samples := r.resolveSamples()
	if r.pipeline != nil && samples != r.samples {
		// the sample count is baked into the pipeline
		r.pipeline.Destroy()
		r.pipeline = nil
	}

	if err := r.buildSurface(extent, samples); err != nil {
		return err
	}
	r.stats.Rebuilds++
	core.LogDebug("swapchain rebuilt at %dx%d with %d samples", r.targets.swapchain.Extent().Width, r.targets.swapchain.Extent().Height, samples)
	return nil
}

// buildSurface creates the render targets, the pipeline when missing, the
// command buffers and the sync objects, in that order.
func (r *Renderer) buildSurface(extent gpu.Extent, samples int) error {
	targets, err := createTargets(r.device, extent, samples)
	if err != nil {
		return err
	}
	r.targets = targets
	r.samples = samples

	if r.pipeline == nil {
		if err := r.createPipeline(); err != nil {
			return err
		}
	}
	if err := r.ring.allocateCommandBuffers(); err != nil {
		return err
	}
	if err := r.ring.createSyncObjects(); err != nil {
		return err
	}
	r.aspectChanged = true
	return nil
}

func (r *Renderer) createPipeline() error {
	p, err := r.device.CreatePipeline(gpu.PipelineDesc{
		RenderPass:     r.targets.renderPass,
		Descriptors:    r.descriptors,
		VertexShader:   r.shaders.Vertex,
		FragmentShader: r.shaders.Fragment,
		Bindings: []gpu.VertexBinding{
			{Binding: 0, Location: 0, Stride: 12},
			{Binding: 1, Location: 1, Stride: 12},
		},
		Samples: r.samples,
	})
	if err != nil {
		return core.Fatal("create graphics pipeline", err)
	}
	r.pipeline = p
	return nil
}

func (r *Renderer) resolveSamples() int {
	if !r.opts.Multisample {
		return 1
	}
	return r.device.SupportedSamples(r.opts.Samples)
}
