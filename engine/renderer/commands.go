package renderer

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// recordGraphics records the frame's render pass into the slot's graphics
// command buffer. The transform buffer is acquired from the transfer family
// before anything reads it.
func (r *Renderer) recordGraphics(slot *frameSlot, imageIndex uint32) error {
	cb := slot.graphics
	if err := cb.Begin(true); err != nil {
		return core.Fatal("begin graphics command buffer", err)
	}

	src, dst := r.ownershipFamilies()
	acquire := gpu.BufferBarrier{
		Buffer:    slot.transforms.device,
		SrcAccess: gpu.AccessTransferWrite,
		DstAccess: gpu.AccessShaderRead,
		SrcFamily: src,
		DstFamily: dst,
		Size:      gpu.WholeSize,
	}
	srcStage := gpu.StageTransfer
	if src != dst {
		// the release on the transfer queue already made the write available
		acquire.SrcAccess = gpu.AccessNone
		srcStage = gpu.StageTopOfPipe
	}
	cb.PipelineBarrier(srcStage, gpu.StageVertexInput|gpu.StageVertexShader, []gpu.BufferBarrier{acquire}, nil)

	t := r.targets
	extent := t.swapchain.Extent()
	cb.BeginRenderPass(t.renderPass, t.framebuffers[imageIndex], extent, r.clearValues())
	cb.BindPipeline(r.pipeline)
	cb.SetViewport(extent)
	cb.SetScissor(extent)
	cb.BindVertexBuffers(0, r.mesh.vertices, r.mesh.normals)
	cb.BindIndexBuffer(r.mesh.indices)
	cb.BindDescriptorSet(r.pipeline, slot.descriptor)

	batches := r.mesh.batches
	for i := 0; i < batches.Len(); i++ {
		cb.DrawIndexed(batches.IndexCount(i, r.mesh.indexCount), 1, batches.IndexOffsets[i], batches.VertexOffsets[i], uint32(i))
	}
	cb.EndRenderPass()

	families := r.device.QueueFamilies()
	if families.PresentIsSeparate() {
		cb.PipelineBarrier(gpu.StageColorAttachmentOutput, gpu.StageBottomOfPipe, nil, []gpu.ImageBarrier{{
			Image:     t.swapchain.Images()[imageIndex],
			SrcAccess: gpu.AccessColorAttachmentWrite,
			DstAccess: gpu.AccessNone,
			OldLayout: gpu.LayoutPresentSrc,
			NewLayout: gpu.LayoutPresentSrc,
			SrcFamily: families.Graphics,
			DstFamily: families.Present,
		}})
	}

	if err := cb.End(); err != nil {
		return core.Fatal("end graphics command buffer", err)
	}
	return nil
}

// recordPresent records the present-queue half of the swapchain image
// handoff. Only used when the present family differs from graphics.
func (r *Renderer) recordPresent(slot *frameSlot, imageIndex uint32) error {
	families := r.device.QueueFamilies()
	cb := slot.present
	if err := cb.Begin(true); err != nil {
		return core.Fatal("begin present command buffer", err)
	}
	cb.PipelineBarrier(gpu.StageTopOfPipe, gpu.StageBottomOfPipe, nil, []gpu.ImageBarrier{{
		Image:     r.targets.swapchain.Images()[imageIndex],
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessNone,
		OldLayout: gpu.LayoutPresentSrc,
		NewLayout: gpu.LayoutPresentSrc,
		SrcFamily: families.Graphics,
		DstFamily: families.Present,
	}})
	if err := cb.End(); err != nil {
		return core.Fatal("end present command buffer", err)
	}
	return nil
}

// clearValues follows the attachment order of the render pass: the
// multisampled color, depth, then the resolve target.
func (r *Renderer) clearValues() []gpu.ClearValue {
	c := r.opts.ClearColor
	color := gpu.ClearColor(c[0], c[1], c[2], c[3])
	depth := gpu.ClearDepthStencil(1, 0)
	if r.targets.samples > 1 {
		return []gpu.ClearValue{color, depth, color}
	}
	return []gpu.ClearValue{color, depth}
}

// submitFrame submits the recorded graphics work and, with a separate
// present family, the present-queue acquire. The drawing-finished fence
// goes on the last submission so that both command buffers are covered
// before the slot is reused. It returns the semaphore presentation waits on.
func (r *Renderer) submitFrame(slot *frameSlot) (gpu.Semaphore, error) {
	separate := r.device.QueueFamilies().PresentIsSeparate()

	graphics := gpu.SubmitInfo{
		Commands: []gpu.CommandBuffer{slot.graphics},
		Waits: []gpu.SemaphoreWait{
			{Semaphore: slot.imageAcquired, Stage: gpu.StageColorAttachmentOutput},
			{Semaphore: slot.transferFinished, Stage: gpu.StageVertexInput | gpu.StageVertexShader},
		},
		Signals: []gpu.Semaphore{slot.renderFinished},
	}
	if !separate {
		graphics.Fence = slot.drawingFinished
	}
	if err := r.device.Submit(gpu.QueueGraphics, graphics); err != nil {
		return nil, core.Fatal("submit graphics", err)
	}
	if !separate {
		return slot.renderFinished, nil
	}

	err := r.device.Submit(gpu.QueuePresent, gpu.SubmitInfo{
		Commands: []gpu.CommandBuffer{slot.present},
		Waits:    []gpu.SemaphoreWait{{Semaphore: slot.renderFinished, Stage: gpu.StageAllCommands}},
		Signals:  []gpu.Semaphore{slot.presentReady},
		Fence:    slot.drawingFinished,
	})
	if err != nil {
		return nil, core.Fatal("submit present", err)
	}
	return slot.presentReady, nil
}
