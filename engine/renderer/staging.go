package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// createBuffer allocates a buffer with backing memory. A missing memory
// type is a configuration error and therefore fatal like any other
// allocation failure.
func createBuffer(device gpu.Device, size uint64, usage gpu.BufferUsage, memory gpu.MemoryProperty) (gpu.Buffer, error) {
	b, err := device.CreateBuffer(size, usage, memory)
	if err != nil {
		return nil, core.Fatal(fmt.Sprintf("create buffer of %d bytes", size), err)
	}
	return b, nil
}

// uploadOnce copies data into dst through a temporary staging buffer and
// blocks until the transfer queue is done with it. No ownership transfer is
// recorded: load-time buffers are freshly written and the caller's next
// submission happens after the fence wait.
func (r *Renderer) uploadOnce(dst gpu.Buffer, data []byte) error {
	size := uint64(len(data))
	staging, err := createBuffer(r.device, size, gpu.BufferUsageTransferSrc, gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
	if err != nil {
		return err
	}
	defer staging.Destroy()

	if err := staging.Write(0, data); err != nil {
		return core.Fatal("write staging buffer", err)
	}

	cb, err := r.device.AllocateCommandBuffer(gpu.QueueTransfer)
	if err != nil {
		return core.Fatal("allocate upload command buffer", err)
	}
	defer cb.Free()

	fence, err := r.device.CreateFence(false)
	if err != nil {
		return core.Fatal("create upload fence", err)
	}
	defer fence.Destroy()

	if err := cb.Begin(true); err != nil {
		return core.Fatal("begin upload command buffer", err)
	}
	cb.CopyBuffer(staging, dst, gpu.BufferCopy{Size: size})
	if err := cb.End(); err != nil {
		return core.Fatal("end upload command buffer", err)
	}

	if err := r.device.Submit(gpu.QueueTransfer, gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}, Fence: fence}); err != nil {
		return core.Fatal("submit upload", err)
	}
	if err := fence.Wait(r.opts.FenceTimeout); err != nil {
		return core.Fatal("wait upload fence", err)
	}
	return nil
}

// ownershipFamilies returns the source and destination families for a
// transfer to graphics handoff. Both are ignored when one family does both.
func (r *Renderer) ownershipFamilies() (uint32, uint32) {
	families := r.device.QueueFamilies()
	if !families.TransferIsSeparate() {
		return gpu.QueueFamilyIgnored, gpu.QueueFamilyIgnored
	}
	return families.Transfer, families.Graphics
}

// uploadFrame pushes this frame's transforms through the slot's staging
// buffer on the transfer queue and writes the uniform block. The transfer
// signals the slot's transfer-finished semaphore, which the graphics
// submission waits on.
func (r *Renderer) uploadFrame(slot *frameSlot, transforms []math.Mat4, uniform *UniformData) error {
	if err := slot.transferDone.Wait(r.opts.FenceTimeout); err != nil {
		return core.Fatal("wait transfer fence", err)
	}
	if err := slot.transferDone.Reset(); err != nil {
		return core.Fatal("reset transfer fence", err)
	}

	data := transformBytes(transforms)
	size := uint64(len(data))
	if err := slot.transforms.staging.Write(0, data); err != nil {
		return core.Fatal("write transform staging", err)
	}
	// staging memory is host visible but not necessarily coherent
	if err := slot.transforms.staging.Flush(); err != nil {
		return core.Fatal("flush transform staging", err)
	}

	cb := slot.transfer
	if err := cb.Begin(true); err != nil {
		return core.Fatal("begin transfer command buffer", err)
	}
	cb.PipelineBarrier(gpu.StageHost, gpu.StageTransfer, []gpu.BufferBarrier{{
		Buffer:    slot.transforms.staging,
		SrcAccess: gpu.AccessHostWrite,
		DstAccess: gpu.AccessTransferRead,
		SrcFamily: gpu.QueueFamilyIgnored,
		DstFamily: gpu.QueueFamilyIgnored,
		Size:      size,
	}}, nil)
	cb.CopyBuffer(slot.transforms.staging, slot.transforms.device, gpu.BufferCopy{Size: size})

	if src, dst := r.ownershipFamilies(); src != dst {
		// release half of the transfer to graphics handoff
		cb.PipelineBarrier(gpu.StageTransfer, gpu.StageBottomOfPipe, []gpu.BufferBarrier{{
			Buffer:    slot.transforms.device,
			SrcAccess: gpu.AccessTransferWrite,
			DstAccess: gpu.AccessNone,
			SrcFamily: src,
			DstFamily: dst,
			Size:      gpu.WholeSize,
		}}, nil)
	}
	if err := cb.End(); err != nil {
		return core.Fatal("end transfer command buffer", err)
	}

	err := r.device.Submit(gpu.QueueTransfer, gpu.SubmitInfo{
		Commands: []gpu.CommandBuffer{cb},
		Signals:  []gpu.Semaphore{slot.transferFinished},
		Fence:    slot.transferDone,
	})
	if err != nil {
		return core.Fatal("submit transfer", err)
	}

	if err := slot.uniform.Write(0, uniform.Bytes()); err != nil {
		return core.Fatal("write uniform buffer", err)
	}
	return nil
}
