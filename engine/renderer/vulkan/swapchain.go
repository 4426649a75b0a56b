package vulkan

import (
	"fmt"
	stdmath "math"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type VulkanSwapchain struct {
	device      *Device
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	extent      gpu.Extent
	images      []*VulkanImage
}

// CreateSwapchain builds a swapchain for the current surface. Images are
// exclusive to one family, graphics and present hand them over with
// ownership barriers when their families differ.
func (d *Device) CreateSwapchain(extent gpu.Extent) (gpu.Swapchain, error) {
	support, err := DeviceQuerySwapchainSupport(d.physical, d.surface)
	if err != nil {
		return nil, err
	}
	if len(support.Formats) == 0 {
		return nil, fmt.Errorf("surface reports no formats")
	}

	swapchain := &VulkanSwapchain{device: d}

	// Choose a swap surface format.
	swapchain.ImageFormat = support.Formats[0]
	for _, format := range support.Formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			break
		}
	}

	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	caps := support.Capabilities
	swapchainExtent := vk.Extent2D{Width: extent.Width, Height: extent.Height}
	if caps.CurrentExtent.Width != stdmath.MaxUint32 {
		swapchainExtent = caps.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	swapchainExtent.Width = math.Clamp(swapchainExtent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	swapchainExtent.Height = math.Clamp(swapchainExtent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if res := vk.CreateSwapchain(d.logical, &swapchainCreateInfo, d.allocator, &swapchain.Handle); res != vk.Success {
		return nil, resultError("vkCreateSwapchainKHR", res)
	}
	swapchain.extent = gpu.Extent{Width: swapchainExtent.Width, Height: swapchainExtent.Height}

	var count uint32
	if res := vk.GetSwapchainImages(d.logical, swapchain.Handle, &count, nil); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}
	handles := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(d.logical, swapchain.Handle, &count, handles); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}

	format := gpuFormat(swapchain.ImageFormat.Format)
	for _, handle := range handles {
		view, err := d.createImageView(handle, swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			swapchain.Destroy()
			return nil, err
		}
		swapchain.images = append(swapchain.images, &VulkanImage{
			device:  d,
			Handle:  handle,
			View:    view,
			extent:  swapchain.extent,
			format:  format,
			samples: 1,
		})
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.",
		swapchainExtent.Width, swapchainExtent.Height, len(handles), presentMode)
	return swapchain, nil
}

func (vs *VulkanSwapchain) Extent() gpu.Extent {
	return vs.extent
}

func (vs *VulkanSwapchain) Format() gpu.Format {
	return gpuFormat(vs.ImageFormat.Format)
}

func (vs *VulkanSwapchain) Images() []gpu.Image {
	out := make([]gpu.Image, len(vs.images))
	for i, img := range vs.images {
		out[i] = img
	}
	return out
}

func (vs *VulkanSwapchain) AcquireNextImage(timeout time.Duration, signal gpu.Semaphore) (uint32, gpu.SwapchainStatus, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(vs.device.logical, vs.Handle, timeoutNanos(timeout),
		signal.(*semaphore).handle, vk.NullFence, &imageIndex)

	status, err := swapchainStatus("vkAcquireNextImageKHR", result)
	if err != nil || status == gpu.StatusOutOfDate {
		return 0, status, err
	}
	return imageIndex, status, nil
}

func (vs *VulkanSwapchain) Present(wait gpu.Semaphore, index uint32) (gpu.SwapchainStatus, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(*semaphore).handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{index},
	}

	d := vs.device
	var status gpu.SwapchainStatus
	err := d.locks.SafeQueueCall(d.families.Present, func() error {
		var err error
		status, err = swapchainStatus("vkQueuePresentKHR", vk.QueuePresent(d.queues[gpu.QueuePresent], &presentInfo))
		return err
	})
	if err != nil {
		return gpu.StatusOptimal, fmt.Errorf("present on %s queue: %w", gpu.QueuePresent, err)
	}
	return status, nil
}

// swapchainStatus separates staleness, which callers recover from by
// rebuilding, from real failures of acquire and present.
func swapchainStatus(call string, result vk.Result) (gpu.SwapchainStatus, error) {
	switch result {
	case vk.Success:
		return gpu.StatusOptimal, nil
	case vk.Suboptimal:
		return gpu.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return gpu.StatusOutOfDate, nil
	default:
		return gpu.StatusOptimal, resultError(call, result)
	}
}

// Destroy releases the image views and the swapchain, which owns the images.
func (vs *VulkanSwapchain) Destroy() {
	for _, img := range vs.images {
		img.release()
	}
	vs.images = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(vs.device.logical, vs.Handle, vs.device.allocator)
		vs.Handle = vk.NullSwapchain
	}
}
