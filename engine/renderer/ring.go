package renderer

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// FramesInFlight is the number of frame slots the CPU may run ahead of the
// GPU.
const FramesInFlight = 2

// bufferPair is a device-local buffer fed through a persistently mapped
// staging buffer.
type bufferPair struct {
	device  gpu.Buffer
	staging gpu.Buffer
}

func (p *bufferPair) destroy() {
	if p.staging != nil {
		p.staging.Destroy()
		p.staging = nil
	}
	if p.device != nil {
		p.device.Destroy()
		p.device = nil
	}
}

// frameSlot owns everything one frame in flight touches. A slot is only
// re-recorded once its drawing-finished fence has signaled.
type frameSlot struct {
	graphics gpu.CommandBuffer
	transfer gpu.CommandBuffer
	present  gpu.CommandBuffer

	imageAcquired    gpu.Semaphore
	renderFinished   gpu.Semaphore
	transferFinished gpu.Semaphore
	// presentReady chains the present-queue ownership acquire to
	// presentation. Nil when graphics and present share a family.
	presentReady gpu.Semaphore

	drawingFinished gpu.Fence
	transferDone    gpu.Fence

	transforms bufferPair
	uniform    gpu.Buffer
	descriptor gpu.DescriptorSet
}

type frameRing struct {
	device  gpu.Device
	slots   [FramesInFlight]frameSlot
	current int
}

func (ring *frameRing) slot() *frameSlot {
	return &ring.slots[ring.current]
}

func (ring *frameRing) advance() {
	ring.current = (ring.current + 1) % FramesInFlight
}

// createFrameResources allocates the per-slot buffers that survive swapchain
// rebuilds: transform staging and storage, the uniform buffer and the
// descriptor set pointing at both.
func (ring *frameRing) createFrameResources(pool gpu.DescriptorPool, maxInstances int) (err error) {
	defer func() {
		if err != nil {
			ring.destroyFrameResources()
		}
	}()

	sets := pool.Sets()
	size := uint64(maxInstances) * transformSize
	for i := range ring.slots {
		s := &ring.slots[i]
		if s.transforms.staging, err = createBuffer(ring.device, size, gpu.BufferUsageTransferSrc, gpu.MemoryHostVisible); err != nil {
			return err
		}
		if s.transforms.device, err = createBuffer(ring.device, size, gpu.BufferUsageTransferDst|gpu.BufferUsageStorage, gpu.MemoryDeviceLocal); err != nil {
			return err
		}
		if s.uniform, err = createBuffer(ring.device, UniformSize, gpu.BufferUsageUniform, gpu.MemoryHostVisible|gpu.MemoryHostCoherent); err != nil {
			return err
		}
		s.descriptor = sets[i]
		s.descriptor.Write(s.uniform, s.transforms.device)
	}
	return nil
}

func (ring *frameRing) destroyFrameResources() {
	for i := range ring.slots {
		s := &ring.slots[i]
		s.transforms.destroy()
		if s.uniform != nil {
			s.uniform.Destroy()
			s.uniform = nil
		}
		s.descriptor = nil
	}
}

// createSyncObjects creates the semaphores and fences of every slot. Fences
// start signaled so the first wait on each slot returns immediately. Any
// failure releases what was already created and is fatal.
func (ring *frameRing) createSyncObjects() (err error) {
	defer func() {
		if err != nil {
			ring.destroySyncObjects()
		}
	}()

	separatePresent := ring.device.QueueFamilies().PresentIsSeparate()
	for i := range ring.slots {
		s := &ring.slots[i]
		for _, sem := range []*gpu.Semaphore{&s.imageAcquired, &s.renderFinished, &s.transferFinished} {
			if *sem, err = ring.device.CreateSemaphore(); err != nil {
				return core.Fatal("create semaphore", err)
			}
		}
		if separatePresent {
			if s.presentReady, err = ring.device.CreateSemaphore(); err != nil {
				return core.Fatal("create semaphore", err)
			}
		}
		if s.drawingFinished, err = ring.device.CreateFence(true); err != nil {
			return core.Fatal("create drawing fence", err)
		}
		if s.transferDone, err = ring.device.CreateFence(true); err != nil {
			return core.Fatal("create transfer fence", err)
		}
	}
	return nil
}

// destroySyncObjects must only run once the device is idle.
func (ring *frameRing) destroySyncObjects() {
	for i := range ring.slots {
		s := &ring.slots[i]
		for _, sem := range []*gpu.Semaphore{&s.imageAcquired, &s.renderFinished, &s.transferFinished, &s.presentReady} {
			if *sem != nil {
				(*sem).Destroy()
				*sem = nil
			}
		}
		for _, f := range []*gpu.Fence{&s.drawingFinished, &s.transferDone} {
			if *f != nil {
				(*f).Destroy()
				*f = nil
			}
		}
	}
}

func (ring *frameRing) allocateCommandBuffers() (err error) {
	defer func() {
		if err != nil {
			ring.freeCommandBuffers()
		}
	}()

	for i := range ring.slots {
		s := &ring.slots[i]
		if s.graphics, err = ring.device.AllocateCommandBuffer(gpu.QueueGraphics); err != nil {
			return core.Fatal("allocate graphics command buffer", err)
		}
		if s.transfer, err = ring.device.AllocateCommandBuffer(gpu.QueueTransfer); err != nil {
			return core.Fatal("allocate transfer command buffer", err)
		}
		if s.present, err = ring.device.AllocateCommandBuffer(gpu.QueuePresent); err != nil {
			return core.Fatal("allocate present command buffer", err)
		}
	}
	return nil
}

func (ring *frameRing) freeCommandBuffers() {
	for i := range ring.slots {
		s := &ring.slots[i]
		for _, cb := range []*gpu.CommandBuffer{&s.graphics, &s.transfer, &s.present} {
			if *cb != nil {
				(*cb).Free()
				*cb = nil
			}
		}
	}
}
