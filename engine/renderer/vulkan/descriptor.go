package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const (
	uniformBinding = 0
	storageBinding = 1
)

// VulkanDescriptorPool owns the set layout shared by the pipeline and one
// descriptor set per frame slot.
type VulkanDescriptorPool struct {
	device *Device
	Handle vk.DescriptorPool
	Layout vk.DescriptorSetLayout
	sets   []*VulkanDescriptorSet
}

type VulkanDescriptorSet struct {
	device *Device
	Handle vk.DescriptorSet
}

func (d *Device) CreateDescriptorPool(count int) (gpu.DescriptorPool, error) {
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         uniformBinding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      stages,
		},
		{
			Binding:         storageBinding,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	pool := &VulkanDescriptorPool{device: d}
	if res := vk.CreateDescriptorSetLayout(d.logical, &layoutInfo, d.allocator, &pool.Layout); res != vk.Success {
		return nil, resultError("vkCreateDescriptorSetLayout", res)
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(count),
		PoolSizeCount: 2,
		PPoolSizes: []vk.DescriptorPoolSize{
			{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: uint32(count)},
			{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: uint32(count)},
		},
	}
	if res := vk.CreateDescriptorPool(d.logical, &poolInfo, d.allocator, &pool.Handle); res != vk.Success {
		pool.Destroy()
		return nil, resultError("vkCreateDescriptorPool", res)
	}

	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = pool.Layout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.Handle,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}
	handles := make([]vk.DescriptorSet, count)
	if res := vk.AllocateDescriptorSets(d.logical, &allocInfo, &handles[0]); res != vk.Success {
		pool.Destroy()
		return nil, resultError("vkAllocateDescriptorSets", res)
	}
	for _, h := range handles {
		pool.sets = append(pool.sets, &VulkanDescriptorSet{device: d, Handle: h})
	}
	return pool, nil
}

func (p *VulkanDescriptorPool) Sets() []gpu.DescriptorSet {
	out := make([]gpu.DescriptorSet, len(p.sets))
	for i, s := range p.sets {
		out[i] = s
	}
	return out
}

// Destroy frees the pool, which releases its sets, and the layout.
func (p *VulkanDescriptorPool) Destroy() {
	d := p.device
	if p.Handle != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(d.logical, p.Handle, d.allocator)
		p.Handle = vk.NullDescriptorPool
	}
	if p.Layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(d.logical, p.Layout, d.allocator)
		p.Layout = vk.NullDescriptorSetLayout
	}
	p.sets = nil
}

func (s *VulkanDescriptorSet) Write(uniform gpu.Buffer, storage gpu.Buffer) {
	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.Handle,
			DstBinding:      uniformBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: uniform.(*VulkanBuffer).Handle,
				Range:  vk.DeviceSize(vk.WholeSize),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.Handle,
			DstBinding:      storageBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: storage.(*VulkanBuffer).Handle,
				Range:  vk.DeviceSize(vk.WholeSize),
			}},
		},
	}
	vk.UpdateDescriptorSets(s.device.logical, uint32(len(writes)), writes, 0, nil)
}
