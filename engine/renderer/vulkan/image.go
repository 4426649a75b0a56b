package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type VulkanImage struct {
	device  *Device
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	extent  gpu.Extent
	format  gpu.Format
	samples int
	// swapchain images are owned by their swapchain, only the view is ours
	owned bool
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	var usage vk.ImageUsageFlags
	if desc.Usage&gpu.ImageUsageColorAttachment != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if desc.Usage&gpu.ImageUsageDepthAttachment != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}
	if desc.Usage&gpu.ImageUsageTransient != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageTransientAttachmentBit)
	}

	img := &VulkanImage{
		device:  d,
		extent:  desc.Extent,
		format:  desc.Format,
		samples: desc.Samples,
		owned:   true,
	}

	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vkFormat(desc.Format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vkSamples(desc.Samples),
	}
	if res := vk.CreateImage(d.logical, &imageInfo, d.allocator, &img.Handle); res != vk.Success {
		return nil, resultError("vkCreateImage", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logical, img.Handle, &requirements)
	requirements.Deref()

	memoryIndex, err := d.FindMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	if res := vk.AllocateMemory(d.logical, &allocInfo, d.allocator, &img.Memory); res != vk.Success {
		img.Destroy()
		return nil, resultError("vkAllocateMemory", res)
	}
	if res := vk.BindImageMemory(d.logical, img.Handle, img.Memory, 0); res != vk.Success {
		img.Destroy()
		return nil, resultError("vkBindImageMemory", res)
	}

	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if isDepthFormat(desc.Format) {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if desc.Format.HasStencil() {
			aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
	}
	view, err := d.createImageView(img.Handle, imageInfo.Format, aspect)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.View = view
	return img, nil
}

func (d *Device) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.logical, &viewInfo, d.allocator, &view); res != vk.Success {
		return nil, resultError("vkCreateImageView", res)
	}
	return view, nil
}

func (img *VulkanImage) Extent() gpu.Extent {
	return img.extent
}

func (img *VulkanImage) Format() gpu.Format {
	return img.format
}

// Destroy is a no-op for swapchain images, their swapchain releases them.
func (img *VulkanImage) Destroy() {
	if !img.owned {
		return
	}
	img.release()
}

func (img *VulkanImage) release() {
	d := img.device
	if img.View != nil {
		vk.DestroyImageView(d.logical, img.View, d.allocator)
		img.View = nil
	}
	if !img.owned {
		return
	}
	if img.Handle != vk.NullImage {
		vk.DestroyImage(d.logical, img.Handle, d.allocator)
		img.Handle = vk.NullImage
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.logical, img.Memory, d.allocator)
		img.Memory = vk.NullDeviceMemory
	}
}
