package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

var errNotMapped = errors.New("buffer memory is not host visible")

type VulkanBuffer struct {
	device   *Device
	Handle   vk.Buffer
	Memory   vk.DeviceMemory
	size     uint64
	coherent bool
	// persistent mapping, nil for device-local memory
	mapped unsafe.Pointer
}

// CreateBuffer allocates a buffer with its own memory. Host-visible memory
// stays mapped for the buffer's lifetime. Vertex and index buffers are
// shared concurrently between the transfer and graphics families when those
// differ. Every other buffer is exclusive and crosses families through
// explicit ownership barriers.
func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage, memory gpu.MemoryProperty) (gpu.Buffer, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vkBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if d.families.TransferIsSeparate() && usage&(gpu.BufferUsageVertex|gpu.BufferUsageIndex) != 0 {
		bufferInfo.SharingMode = vk.SharingModeConcurrent
		bufferInfo.QueueFamilyIndexCount = 2
		bufferInfo.PQueueFamilyIndices = []uint32{d.families.Graphics, d.families.Transfer}
	}

	b := &VulkanBuffer{
		device:   d,
		size:     size,
		coherent: memory&gpu.MemoryHostCoherent != 0,
	}
	if res := vk.CreateBuffer(d.logical, &bufferInfo, d.allocator, &b.Handle); res != vk.Success {
		return nil, resultError("vkCreateBuffer", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logical, b.Handle, &requirements)
	requirements.Deref()

	memoryIndex, err := d.FindMemoryIndex(requirements.MemoryTypeBits, vkMemoryProperty(memory))
	if err != nil {
		b.Destroy()
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	if res := vk.AllocateMemory(d.logical, &allocInfo, d.allocator, &b.Memory); res != vk.Success {
		b.Destroy()
		return nil, resultError("vkAllocateMemory", res)
	}
	if res := vk.BindBufferMemory(d.logical, b.Handle, b.Memory, 0); res != vk.Success {
		b.Destroy()
		return nil, resultError("vkBindBufferMemory", res)
	}

	if memory&gpu.MemoryHostVisible != 0 {
		if res := vk.MapMemory(d.logical, b.Memory, 0, vk.DeviceSize(vk.WholeSize), 0, &b.mapped); res != vk.Success {
			b.Destroy()
			return nil, resultError("vkMapMemory", res)
		}
	}

	core.LogDebug("buffer created: %d bytes, usage %#x, memory %#x", size, uint32(usage), uint32(memory))
	return b, nil
}

func (b *VulkanBuffer) Size() uint64 {
	return b.size
}

func (b *VulkanBuffer) Write(offset uint64, data []byte) error {
	if b.mapped == nil {
		return errNotMapped
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write of %d bytes at %d overflows %d byte buffer", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
	return nil
}

func (b *VulkanBuffer) Flush() error {
	if b.mapped == nil {
		return errNotMapped
	}
	if b.coherent {
		return nil
	}
	memoryRange := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: b.Memory,
		Offset: 0,
		Size:   vk.DeviceSize(vk.WholeSize),
	}
	return resultError("vkFlushMappedMemoryRanges",
		vk.FlushMappedMemoryRanges(b.device.logical, 1, []vk.MappedMemoryRange{memoryRange}))
}

func (b *VulkanBuffer) Destroy() {
	d := b.device
	if b.mapped != nil {
		vk.UnmapMemory(d.logical, b.Memory)
		b.mapped = nil
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(d.logical, b.Handle, d.allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.logical, b.Memory, d.allocator)
		b.Memory = vk.NullDeviceMemory
	}
}
