package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
)

const spirvMagic = 0x07230203

// VulkanShaderStage is a compiled module plus the stage info that plugs it
// into a pipeline.
type VulkanShaderStage struct {
	Handle                vk.ShaderModule
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func NewShaderModule(d *Device, code []byte, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	words, err := repackUint32(code)
	if err != nil {
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}

	s := &VulkanShaderStage{}
	if res := vk.CreateShaderModule(d.logical, &createInfo, d.allocator, &s.Handle); res != vk.Success {
		return nil, resultError("vkCreateShaderModule", res)
	}

	s.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: s.Handle,
		PName:  VulkanSafeString("main"),
	}
	return s, nil
}

func (s *VulkanShaderStage) Destroy(d *Device) {
	if s.Handle != nil {
		vk.DestroyShaderModule(d.logical, s.Handle, d.allocator)
		s.Handle = nil
	}
}

// repackUint32 turns SPIR-V bytes into the word slice Vulkan consumes.
func repackUint32(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("spir-v size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("bad spir-v magic %#x", words[0])
	}
	return words, nil
}
