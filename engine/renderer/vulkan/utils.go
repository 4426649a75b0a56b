package vulkan

import (
	"fmt"
	"math"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// VulkanResultString names a result code the way the Vulkan registry does.
// With getExtended the registry's short description is appended.
func VulkanResultString(result vk.Result, getExtended bool) string {
	name, desc := resultText(result)
	if !getExtended || desc == "" {
		return name
	}
	return name + " " + desc
}

func resultText(result vk.Result) (string, string) {
	// From: https://www.khronos.org/registry/vulkan/specs/1.3-extensions/man/html/VkResult.html
	switch result {
	case vk.Success:
		return "VK_SUCCESS", "Command successfully completed"
	case vk.NotReady:
		return "VK_NOT_READY", "A fence or query has not yet completed"
	case vk.Timeout:
		return "VK_TIMEOUT", "A wait operation has not completed in the specified time"
	case vk.Incomplete:
		return "VK_INCOMPLETE", "A return array was too small for the result"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR", "A swapchain no longer matches the surface properties exactly"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed."
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed."
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed."
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost."
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed."
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded."
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported."
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported."
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver."
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created."
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device."
	case vk.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL", "A pool allocation has failed due to fragmentation."
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR", "A surface is no longer available."
	case vk.ErrorNativeWindowInUse:
		return "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "The requested window is already in use."
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR", "The surface changed and the swapchain must be recreated."
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY", "A pool memory allocation has failed."
	case vk.ErrorUnknown:
		return "VK_ERROR_UNKNOWN", "An unknown error has occurred."
	default:
		return fmt.Sprintf("VkResult(%d)", int32(result)), ""
	}
}

// resultError turns a failed call into an error naming the call.
func resultError(call string, result vk.Result) error {
	if result == vk.Success {
		return nil
	}
	return fmt.Errorf("%s failed with %s", call, VulkanResultString(result, true))
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

func timeoutNanos(d time.Duration) uint64 {
	if d < 0 || d >= gpu.InfiniteTimeout {
		return math.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

func vkFormat(f gpu.Format) vk.Format {
	switch f {
	case gpu.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.FormatB8G8R8A8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case gpu.FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.FormatD32Sfloat:
		return vk.FormatD32Sfloat
	case gpu.FormatD32SfloatS8Uint:
		return vk.FormatD32SfloatS8Uint
	case gpu.FormatD24UnormS8Uint:
		return vk.FormatD24UnormS8Uint
	default:
		return vk.FormatUndefined
	}
}

func gpuFormat(f vk.Format) gpu.Format {
	switch f {
	case vk.FormatB8g8r8a8Unorm:
		return gpu.FormatB8G8R8A8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return gpu.FormatB8G8R8A8Srgb
	case vk.FormatR8g8b8a8Unorm:
		return gpu.FormatR8G8B8A8Unorm
	case vk.FormatD32Sfloat:
		return gpu.FormatD32Sfloat
	case vk.FormatD32SfloatS8Uint:
		return gpu.FormatD32SfloatS8Uint
	case vk.FormatD24UnormS8Uint:
		return gpu.FormatD24UnormS8Uint
	default:
		return gpu.FormatUndefined
	}
}

func isDepthFormat(f gpu.Format) bool {
	return f == gpu.FormatD32Sfloat || f.HasStencil()
}

var bufferUsageBits = map[gpu.BufferUsage]vk.BufferUsageFlagBits{
	gpu.BufferUsageTransferSrc: vk.BufferUsageTransferSrcBit,
	gpu.BufferUsageTransferDst: vk.BufferUsageTransferDstBit,
	gpu.BufferUsageVertex:      vk.BufferUsageVertexBufferBit,
	gpu.BufferUsageIndex:       vk.BufferUsageIndexBufferBit,
	gpu.BufferUsageUniform:     vk.BufferUsageUniformBufferBit,
	gpu.BufferUsageStorage:     vk.BufferUsageStorageBufferBit,
}

func vkBufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlags
	for bit, vkBit := range bufferUsageBits {
		if u&bit != 0 {
			flags |= vk.BufferUsageFlags(vkBit)
		}
	}
	return flags
}

var memoryPropertyBits = map[gpu.MemoryProperty]vk.MemoryPropertyFlagBits{
	gpu.MemoryDeviceLocal:  vk.MemoryPropertyDeviceLocalBit,
	gpu.MemoryHostVisible:  vk.MemoryPropertyHostVisibleBit,
	gpu.MemoryHostCoherent: vk.MemoryPropertyHostCoherentBit,
}

func vkMemoryProperty(m gpu.MemoryProperty) vk.MemoryPropertyFlags {
	var flags vk.MemoryPropertyFlags
	for bit, vkBit := range memoryPropertyBits {
		if m&bit != 0 {
			flags |= vk.MemoryPropertyFlags(vkBit)
		}
	}
	return flags
}

var stageBits = map[gpu.PipelineStage]vk.PipelineStageFlagBits{
	gpu.StageTopOfPipe:             vk.PipelineStageTopOfPipeBit,
	gpu.StageHost:                  vk.PipelineStageHostBit,
	gpu.StageTransfer:              vk.PipelineStageTransferBit,
	gpu.StageVertexInput:           vk.PipelineStageVertexInputBit,
	gpu.StageVertexShader:          vk.PipelineStageVertexShaderBit,
	gpu.StageFragmentShader:        vk.PipelineStageFragmentShaderBit,
	gpu.StageEarlyFragmentTests:    vk.PipelineStageEarlyFragmentTestsBit,
	gpu.StageColorAttachmentOutput: vk.PipelineStageColorAttachmentOutputBit,
	gpu.StageBottomOfPipe:          vk.PipelineStageBottomOfPipeBit,
	gpu.StageAllCommands:           vk.PipelineStageAllCommandsBit,
}

func vkStage(s gpu.PipelineStage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlags
	for bit, vkBit := range stageBits {
		if s&bit != 0 {
			flags |= vk.PipelineStageFlags(vkBit)
		}
	}
	return flags
}

var accessBits = map[gpu.Access]vk.AccessFlagBits{
	gpu.AccessHostWrite:            vk.AccessHostWriteBit,
	gpu.AccessTransferRead:         vk.AccessTransferReadBit,
	gpu.AccessTransferWrite:        vk.AccessTransferWriteBit,
	gpu.AccessVertexAttributeRead:  vk.AccessVertexAttributeReadBit,
	gpu.AccessIndexRead:            vk.AccessIndexReadBit,
	gpu.AccessUniformRead:          vk.AccessUniformReadBit,
	gpu.AccessShaderRead:           vk.AccessShaderReadBit,
	gpu.AccessColorAttachmentWrite: vk.AccessColorAttachmentWriteBit,
	gpu.AccessMemoryRead:           vk.AccessMemoryReadBit,
}

func vkAccess(a gpu.Access) vk.AccessFlags {
	var flags vk.AccessFlags
	for bit, vkBit := range accessBits {
		if a&bit != 0 {
			flags |= vk.AccessFlags(vkBit)
		}
	}
	return flags
}

func vkLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case gpu.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

// vkSamples maps a sample count to its flag bit. The bit values equal the
// counts they stand for.
func vkSamples(n int) vk.SampleCountFlagBits {
	if n <= 1 {
		return vk.SampleCount1Bit
	}
	return vk.SampleCountFlagBits(n)
}
