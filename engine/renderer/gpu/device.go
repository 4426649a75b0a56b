package gpu

import "time"

type Semaphore interface {
	Destroy()
}

type Fence interface {
	// Wait blocks until the fence is signaled. It returns core.ErrFenceTimeout
	// when timeout passes first.
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

type Buffer interface {
	Size() uint64
	// Write copies data into the buffer's persistent host mapping.
	Write(offset uint64, data []byte) error
	// Flush makes host writes visible to the device on non-coherent memory.
	Flush() error
	Destroy()
}

type Image interface {
	Extent() Extent
	Format() Format
	Destroy()
}

type RenderPass interface {
	Destroy()
}

type Framebuffer interface {
	Destroy()
}

type Pipeline interface {
	Destroy()
}

// DescriptorSet binds one uniform buffer (binding 0) and one storage
// buffer (binding 1) for the vertex and fragment stages.
type DescriptorSet interface {
	Write(uniform Buffer, storage Buffer)
}

type DescriptorPool interface {
	Sets() []DescriptorSet
	Destroy()
}

type CommandBuffer interface {
	Begin(oneTime bool) error
	End() error
	Reset() error
	PipelineBarrier(src, dst PipelineStage, buffers []BufferBarrier, images []ImageBarrier)
	CopyBuffer(src, dst Buffer, region BufferCopy)
	BeginRenderPass(rp RenderPass, fb Framebuffer, area Extent, clears []ClearValue)
	EndRenderPass()
	BindPipeline(p Pipeline)
	SetViewport(e Extent)
	SetScissor(e Extent)
	BindVertexBuffers(first uint32, buffers ...Buffer)
	// BindIndexBuffer binds b as 16-bit indices.
	BindIndexBuffer(b Buffer)
	BindDescriptorSet(p Pipeline, set DescriptorSet)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	Free()
}

type Swapchain interface {
	Extent() Extent
	Format() Format
	Images() []Image
	// AcquireNextImage signals signal once the returned image is ready.
	// Staleness is reported through the status, never as an error.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (uint32, SwapchainStatus, error)
	Present(wait Semaphore, index uint32) (SwapchainStatus, error)
	Destroy()
}

// Device owns the queues and creates every GPU object the frame engine
// uses. Objects are single-owner handles released through Destroy.
type Device interface {
	QueueFamilies() QueueFamilies
	DepthFormat() Format
	// SupportedSamples returns the highest supported sample count that does
	// not exceed requested.
	SupportedSamples(requested int) int
	// SurfaceExtent is the current size of the presentation surface.
	SurfaceExtent() (Extent, error)

	CreateSwapchain(extent Extent) (Swapchain, error)
	CreateImage(desc ImageDesc) (Image, error)
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	CreateFramebuffer(rp RenderPass, attachments []Image, extent Extent) (Framebuffer, error)
	CreateDescriptorPool(count int) (DescriptorPool, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateBuffer(size uint64, usage BufferUsage, memory MemoryProperty) (Buffer, error)
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	AllocateCommandBuffer(queue QueueType) (CommandBuffer, error)

	Submit(queue QueueType, info SubmitInfo) error
	WaitIdle() error
	Destroy()
}
