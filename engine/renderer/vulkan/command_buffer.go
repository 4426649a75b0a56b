package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type commandBuffer struct {
	device *Device
	pool   vk.CommandPool
	handle vk.CommandBuffer
	state  VulkanCommandBufferState
}

// AllocateCommandBuffer allocates a primary buffer from the pool of the
// queue's family, so it may only be submitted there.
func (d *Device) AllocateCommandBuffer(queue gpu.QueueType) (gpu.CommandBuffer, error) {
	pool := d.commandPools[d.familyOf(queue)]
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.logical, &allocateInfo, handles); res != vk.Success {
		return nil, resultError("vkAllocateCommandBuffers", res)
	}
	return &commandBuffer{
		device: d,
		pool:   pool,
		handle: handles[0],
		state:  COMMAND_BUFFER_STATE_READY,
	}, nil
}

func (c *commandBuffer) Begin(oneTime bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTime {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(c.handle, &beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res)
	}
	c.state = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (c *commandBuffer) End() error {
	if c.state == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return fmt.Errorf("command buffer ended inside a render pass")
	}
	if res := vk.EndCommandBuffer(c.handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}
	c.state = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (c *commandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(c.handle, 0); res != vk.Success {
		return resultError("vkResetCommandBuffer", res)
	}
	c.state = COMMAND_BUFFER_STATE_READY
	return nil
}

func (c *commandBuffer) PipelineBarrier(src, dst gpu.PipelineStage, buffers []gpu.BufferBarrier, images []gpu.ImageBarrier) {
	var bufferBarriers []vk.BufferMemoryBarrier
	for _, b := range buffers {
		size := vk.DeviceSize(b.Size)
		if b.Size == gpu.WholeSize {
			size = vk.DeviceSize(vk.WholeSize)
		}
		bufferBarriers = append(bufferBarriers, vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vkAccess(b.SrcAccess),
			DstAccessMask:       vkAccess(b.DstAccess),
			SrcQueueFamilyIndex: b.SrcFamily,
			DstQueueFamilyIndex: b.DstFamily,
			Buffer:              b.Buffer.(*VulkanBuffer).Handle,
			Offset:              vk.DeviceSize(b.Offset),
			Size:                size,
		})
	}

	var imageBarriers []vk.ImageMemoryBarrier
	for _, img := range images {
		imageBarriers = append(imageBarriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vkAccess(img.SrcAccess),
			DstAccessMask:       vkAccess(img.DstAccess),
			OldLayout:           vkLayout(img.OldLayout),
			NewLayout:           vkLayout(img.NewLayout),
			SrcQueueFamilyIndex: img.SrcFamily,
			DstQueueFamilyIndex: img.DstFamily,
			Image:               img.Image.(*VulkanImage).Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		})
	}

	vk.CmdPipelineBarrier(c.handle, vkStage(src), vkStage(dst), 0,
		0, nil,
		uint32(len(bufferBarriers)), bufferBarriers,
		uint32(len(imageBarriers)), imageBarriers)
}

func (c *commandBuffer) CopyBuffer(src, dst gpu.Buffer, region gpu.BufferCopy) {
	vk.CmdCopyBuffer(c.handle, src.(*VulkanBuffer).Handle, dst.(*VulkanBuffer).Handle, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(region.SrcOffset),
		DstOffset: vk.DeviceSize(region.DstOffset),
		Size:      vk.DeviceSize(region.Size),
	}})
}

func (c *commandBuffer) BeginRenderPass(rp gpu.RenderPass, fb gpu.Framebuffer, area gpu.Extent, clears []gpu.ClearValue) {
	clearValues := make([]vk.ClearValue, len(clears))
	for i, cv := range clears {
		if cv.IsDepth {
			clearValues[i].SetDepthStencil(cv.Depth, cv.Stencil)
		} else {
			clearValues[i].SetColor(cv.Color[:])
		}
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.(*VulkanRenderPass).Handle,
		Framebuffer: fb.(*VulkanFramebuffer).Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: area.Width, Height: area.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(c.handle, &beginInfo, vk.SubpassContentsInline)
	c.state = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (c *commandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
	c.state = COMMAND_BUFFER_STATE_RECORDING
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, p.(*VulkanPipeline).Handle)
}

// SetViewport covers the whole extent. The projection already flips Y.
func (c *commandBuffer) SetViewport(e gpu.Extent) {
	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(e.Width),
		Height:   float32(e.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{viewport})
}

func (c *commandBuffer) SetScissor(e gpu.Extent) {
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: e.Width, Height: e.Height},
	}
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{scissor})
}

func (c *commandBuffer) BindVertexBuffers(first uint32, buffers ...gpu.Buffer) {
	handles := make([]vk.Buffer, len(buffers))
	offsets := make([]vk.DeviceSize, len(buffers))
	for i, b := range buffers {
		handles[i] = b.(*VulkanBuffer).Handle
	}
	vk.CmdBindVertexBuffers(c.handle, first, uint32(len(handles)), handles, offsets)
}

func (c *commandBuffer) BindIndexBuffer(b gpu.Buffer) {
	vk.CmdBindIndexBuffer(c.handle, b.(*VulkanBuffer).Handle, 0, vk.IndexTypeUint16)
}

func (c *commandBuffer) BindDescriptorSet(p gpu.Pipeline, set gpu.DescriptorSet) {
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, p.(*VulkanPipeline).PipelineLayout,
		0, 1, []vk.DescriptorSet{set.(*VulkanDescriptorSet).Handle}, 0, nil)
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *commandBuffer) Free() {
	if c.handle == nil {
		return
	}
	if c.state == COMMAND_BUFFER_STATE_SUBMITTED {
		core.LogDebug("freeing a submitted command buffer, callers must have waited on its fence")
	}
	vk.FreeCommandBuffers(c.device.logical, c.pool, 1, []vk.CommandBuffer{c.handle})
	c.handle = nil
	c.state = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}
