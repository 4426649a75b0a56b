// Package vulkan implements gpu.Device on top of goki/vulkan.
package vulkan

import (
	"fmt"
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Window is what the device needs from the platform layer to reach the
// loader and create a presentation surface.
type Window interface {
	RequiredInstanceExtensions() []string
	InstanceProcAddr() unsafe.Pointer
	CreateWindowSurface(instance interface{}) (uintptr, error)
	FramebufferSize() (uint32, uint32)
}

type Options struct {
	AppName    string
	Validation bool
}

// Device owns the instance, surface and logical device. All gpu objects are
// created through it.
type Device struct {
	window    Window
	allocator *vk.AllocationCallbacks

	instance       vk.Instance
	debugMessenger vk.DebugReportCallback
	surface        vk.Surface

	physical   vk.PhysicalDevice
	logical    vk.Device
	properties vk.PhysicalDeviceProperties
	memory     vk.PhysicalDeviceMemoryProperties

	families gpu.QueueFamilies
	queues   [3]vk.Queue
	// one pool per distinct family
	commandPools map[uint32]vk.CommandPool

	depthFormat vk.Format
	locks       *VulkanLockPool
}

var _ gpu.Device = (*Device)(nil)

func (d *Device) QueueFamilies() gpu.QueueFamilies {
	return d.families
}

func (d *Device) DepthFormat() gpu.Format {
	return gpuFormat(d.depthFormat)
}

func (d *Device) familyOf(queue gpu.QueueType) uint32 {
	switch queue {
	case gpu.QueueTransfer:
		return d.families.Transfer
	case gpu.QueuePresent:
		return d.families.Present
	default:
		return d.families.Graphics
	}
}

// SupportedSamples clamps requested to the highest count usable for both
// color and depth attachments.
func (d *Device) SupportedSamples(requested int) int {
	limits := d.properties.Limits
	counts := uint32(limits.FramebufferColorSampleCounts) & uint32(limits.FramebufferDepthSampleCounts)
	for n := 64; n > 1; n >>= 1 {
		if n <= requested && counts&uint32(n) != 0 {
			return n
		}
	}
	return 1
}

func (d *Device) SurfaceExtent() (gpu.Extent, error) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, d.surface, &caps); res != vk.Success {
		return gpu.Extent{}, resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return gpu.Extent{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}, nil
	}
	w, h := d.window.FramebufferSize()
	return gpu.Extent{Width: w, Height: h}, nil
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// carries every flag in propertyFlags.
func (d *Device) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && d.memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	core.LogWarn("Unable to find suitable memory type! filter=%#x flags=%#x", typeFilter, uint32(propertyFlags))
	return 0, core.ErrNoMemoryType
}

func (d *Device) Submit(queue gpu.QueueType, info gpu.SubmitInfo) error {
	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}

	commands := make([]vk.CommandBuffer, len(info.Commands))
	for i, c := range info.Commands {
		cb := c.(*commandBuffer)
		commands[i] = cb.handle
	}
	submitInfo.CommandBufferCount = uint32(len(commands))
	submitInfo.PCommandBuffers = commands

	if len(info.Waits) > 0 {
		waits := make([]vk.Semaphore, len(info.Waits))
		stages := make([]vk.PipelineStageFlags, len(info.Waits))
		for i, w := range info.Waits {
			waits[i] = w.Semaphore.(*semaphore).handle
			stages[i] = vkStage(w.Stage)
		}
		submitInfo.WaitSemaphoreCount = uint32(len(waits))
		submitInfo.PWaitSemaphores = waits
		submitInfo.PWaitDstStageMask = stages
	}

	if len(info.Signals) > 0 {
		signals := make([]vk.Semaphore, len(info.Signals))
		for i, s := range info.Signals {
			signals[i] = s.(*semaphore).handle
		}
		submitInfo.SignalSemaphoreCount = uint32(len(signals))
		submitInfo.PSignalSemaphores = signals
	}

	fence := vk.NullFence
	if info.Fence != nil {
		fence = info.Fence.(*VulkanFence).Handle
	}

	err := d.locks.SafeQueueCall(d.familyOf(queue), func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(d.queues[queue], 1, []vk.SubmitInfo{submitInfo}, fence))
	})
	if err != nil {
		return fmt.Errorf("submit on %s queue: %w", queue, err)
	}
	for _, c := range info.Commands {
		c.(*commandBuffer).state = COMMAND_BUFFER_STATE_SUBMITTED
	}
	return nil
}

func (d *Device) WaitIdle() error {
	return d.locks.SafeAllQueues(func() error {
		return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.logical))
	})
}

// Destroy releases the device, surface and instance. Every object created
// through the device must already be destroyed.
func (d *Device) Destroy() {
	if d.logical != nil {
		vk.DeviceWaitIdle(d.logical)
	}
	DeviceDestroy(d)

	core.LogDebug("Destroying Vulkan surface...")
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, d.allocator)
		d.surface = vk.NullSurface
	}

	if d.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(d.instance, d.debugMessenger, d.allocator)
		d.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	if d.instance != nil {
		vk.DestroyInstance(d.instance, d.allocator)
		d.instance = nil
	}
}
