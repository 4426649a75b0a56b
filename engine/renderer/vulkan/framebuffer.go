package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type VulkanFramebuffer struct {
	device      *Device
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
}

func (d *Device) CreateFramebuffer(rp gpu.RenderPass, attachments []gpu.Image, extent gpu.Extent) (gpu.Framebuffer, error) {
	renderpass := rp.(*VulkanRenderPass)
	if len(attachments) != renderpass.AttachmentCount {
		return nil, fmt.Errorf("framebuffer has %d attachments, render pass expects %d", len(attachments), renderpass.AttachmentCount)
	}

	fb := &VulkanFramebuffer{
		device:      d,
		Attachments: make([]vk.ImageView, len(attachments)),
	}
	for i, a := range attachments {
		fb.Attachments[i] = a.(*VulkanImage).View
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(fb.Attachments)),
		PAttachments:    fb.Attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	if res := vk.CreateFramebuffer(d.logical, &framebufferCreateInfo, d.allocator, &fb.Handle); res != vk.Success {
		return nil, resultError("vkCreateFramebuffer", res)
	}
	return fb, nil
}

func (vfb *VulkanFramebuffer) Destroy() {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(vfb.device.logical, vfb.Handle, vfb.device.allocator)
		vfb.Handle = nil
	}
	vfb.Attachments = nil
}
