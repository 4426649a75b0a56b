package vulkan

import (
	"errors"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	TransferFamilyIndex int32
}

func (q VulkanPhysicalDeviceQueueFamilyInfo) complete() bool {
	return q.GraphicsFamilyIndex >= 0 && q.PresentFamilyIndex >= 0 && q.TransferFamilyIndex >= 0
}

// DeviceCreate selects a physical device and opens a logical device with one
// queue per distinct family and a resettable command pool for each.
func DeviceCreate(d *Device) error {
	if err := SelectPhysicalDevice(d); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{d.families.Graphics}
	if d.families.Present != d.families.Graphics {
		indices = append(indices, d.families.Present)
	}
	if d.families.Transfer != d.families.Graphics && d.families.Transfer != d.families.Present {
		indices = append(indices, d.families.Transfer)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	portable, err := hasDeviceExtension(d.physical, portabilitySubsetExtension)
	if err != nil {
		return err
	}
	if portable {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if res := vk.CreateDevice(d.physical, &deviceCreateInfo, d.allocator, &logical); res != vk.Success {
		return resultError("vkCreateDevice", res)
	}
	d.logical = logical
	core.LogInfo("Logical device created.")

	for _, queue := range []gpu.QueueType{gpu.QueueGraphics, gpu.QueueTransfer, gpu.QueuePresent} {
		var q vk.Queue
		vk.GetDeviceQueue(d.logical, d.familyOf(queue), 0, &q)
		d.queues[queue] = q
	}
	core.LogInfo("Queues obtained.")

	for _, index := range indices {
		d.locks.SetQueueFamily(index)

		poolCreateInfo := vk.CommandPoolCreateInfo{
			SType:            vk.StructureTypeCommandPoolCreateInfo,
			QueueFamilyIndex: index,
			Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		}
		var pool vk.CommandPool
		if res := vk.CreateCommandPool(d.logical, &poolCreateInfo, d.allocator, &pool); res != vk.Success {
			return resultError("vkCreateCommandPool", res)
		}
		d.commandPools[index] = pool
	}
	core.LogInfo("Command pools created for %d queue families.", len(indices))

	if !DeviceDetectDepthFormat(d) {
		return errors.New("failed to find a supported depth format")
	}
	return nil
}

func DeviceDestroy(d *Device) {
	if d.logical == nil {
		return
	}

	core.LogInfo("Destroying command pools...")
	for family, pool := range d.commandPools {
		vk.DestroyCommandPool(d.logical, pool, d.allocator)
		delete(d.commandPools, family)
	}

	core.LogInfo("Destroying logical device...")
	d.queues = [3]vk.Queue{}
	vk.DestroyDevice(d.logical, d.allocator)
	d.logical = nil

	// Physical devices are not destroyed.
	d.physical = nil
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	var info VulkanSwapchainSupportInfo

	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &info.Capabilities); res != vk.Success {
		return info, resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return info, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	if formatCount != 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, info.Formats); res != vk.Success {
			return info, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil); res != vk.Success {
		return info, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	if modeCount != 0 {
		info.PresentModes = make([]vk.PresentMode, modeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, info.PresentModes); res != vk.Success {
			return info, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
	}
	return info, nil
}

func DeviceDetectDepthFormat(d *Device) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.physical, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			d.depthFormat = candidate
			return true
		}
	}
	d.depthFormat = vk.FormatUndefined
	return false
}

// SelectPhysicalDevice picks the first device that meets the queue, surface
// and extension requirements, preferring discrete GPUs.
func SelectPhysicalDevice(d *Device) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(d.instance, &physicalDeviceCount, nil); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(d.instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}

	var fallback *candidateDevice
	for _, physical := range physicalDevices {
		c, ok := evaluateDevice(physical, d.surface)
		if !ok {
			continue
		}
		if c.properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			fallback = c
			break
		}
		if fallback == nil {
			fallback = c
		}
	}
	if fallback == nil {
		return errors.New("no physical devices were found which meet the requirements")
	}

	d.physical = fallback.physical
	d.properties = fallback.properties
	d.memory = fallback.memory
	d.families = gpu.QueueFamilies{
		Graphics: uint32(fallback.queues.GraphicsFamilyIndex),
		Transfer: uint32(fallback.queues.TransferFamilyIndex),
		Present:  uint32(fallback.queues.PresentFamilyIndex),
	}
	logDevice(fallback)
	return nil
}

type candidateDevice struct {
	physical   vk.PhysicalDevice
	properties vk.PhysicalDeviceProperties
	memory     vk.PhysicalDeviceMemoryProperties
	queues     VulkanPhysicalDeviceQueueFamilyInfo
}

func evaluateDevice(physical vk.PhysicalDevice, surface vk.Surface) (*candidateDevice, bool) {
	c := &candidateDevice{physical: physical}
	vk.GetPhysicalDeviceProperties(physical, &c.properties)
	c.properties.Deref()
	c.properties.Limits.Deref()
	vk.GetPhysicalDeviceMemoryProperties(physical, &c.memory)
	c.memory.Deref()
	name := vk.ToString(c.properties.DeviceName[:])

	queues, err := findQueueFamilies(physical, surface)
	if err != nil || !queues.complete() {
		core.LogInfo("Device '%s' does not meet queue requirements, skipping.", name)
		return nil, false
	}
	c.queues = queues

	support, err := DeviceQuerySwapchainSupport(physical, surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present on '%s', skipping device.", name)
		return nil, false
	}

	ok, err := hasDeviceExtension(physical, vk.KhrSwapchainExtensionName)
	if err != nil || !ok {
		core.LogInfo("Required extension not found: '%s', skipping '%s'.", vk.KhrSwapchainExtensionName, name)
		return nil, false
	}
	return c, true
}

// findQueueFamilies prefers a present-capable graphics family and a transfer
// family with the fewest other capabilities, which is most likely a
// dedicated DMA queue.
func findQueueFamilies(physical vk.PhysicalDevice, surface vk.Surface) (VulkanPhysicalDeviceQueueFamilyInfo, error) {
	info := VulkanPhysicalDeviceQueueFamilyInfo{-1, -1, -1}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &queueFamilyCount, queueFamilies)

	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := queueFamilies[i].QueueFlags
		currentTransferScore := 0

		graphics := flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		if graphics {
			currentTransferScore++
		}
		if flags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			currentTransferScore++
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(physical, uint32(i), surface, &supportsPresent); res != vk.Success {
			return info, resultError("vkGetPhysicalDeviceSurfaceSupportKHR", res)
		}
		present := supportsPresent == vk.True

		if graphics && (info.GraphicsFamilyIndex < 0 || (present && info.PresentFamilyIndex != info.GraphicsFamilyIndex)) {
			info.GraphicsFamilyIndex = int32(i)
			if present {
				info.PresentFamilyIndex = int32(i)
			}
		}
		if present && info.PresentFamilyIndex < 0 {
			info.PresentFamilyIndex = int32(i)
		}

		// Graphics and compute families carry transfer implicitly.
		transfer := graphics || flags&vk.QueueFlags(vk.QueueComputeBit) != 0 || flags&vk.QueueFlags(vk.QueueTransferBit) != 0
		if transfer && currentTransferScore < minTransferScore {
			minTransferScore = currentTransferScore
			info.TransferFamilyIndex = int32(i)
		}
	}
	return info, nil
}

func hasDeviceExtension(physical vk.PhysicalDevice, name string) (bool, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(physical, "", &count, nil); res != vk.Success {
		return false, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	if count == 0 {
		return false, nil
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(physical, "", &count, available); res != vk.Success {
		return false, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].ExtensionName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

func logDevice(c *candidateDevice) {
	core.LogInfo("Selected device: '%s'.", vk.ToString(c.properties.DeviceName[:]))
	switch c.properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(c.properties.DriverVersion).Major(),
		vk.Version(c.properties.DriverVersion).Minor(),
		vk.Version(c.properties.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(c.properties.ApiVersion).Major(),
		vk.Version(c.properties.ApiVersion).Minor(),
		vk.Version(c.properties.ApiVersion).Patch(),
	)

	for j := uint32(0); j < c.memory.MemoryHeapCount; j++ {
		c.memory.MemoryHeaps[j].Deref()
		memorySizeGib := float64(c.memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if c.memory.MemoryHeaps[j].Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}

	core.LogDebug("Graphics Family Index: %d", c.queues.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", c.queues.PresentFamilyIndex)
	core.LogDebug("Transfer Family Index: %d", c.queues.TransferFamilyIndex)
}
