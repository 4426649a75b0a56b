package vulkan

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func TestRepackUint32(t *testing.T) {
	valid := make([]byte, 8)
	binary.LittleEndian.PutUint32(valid, spirvMagic)
	binary.LittleEndian.PutUint32(valid[4:], 0x00010300)

	badMagic := make([]byte, 4)
	binary.LittleEndian.PutUint32(badMagic, 0xdeadbeef)

	tests := []struct {
		name    string
		code    []byte
		words   int
		wantErr bool
	}{
		{"valid", valid, 2, false},
		{"empty", nil, 0, true},
		{"unaligned", valid[:6], 0, true},
		{"bad magic", badMagic, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, err := repackUint32(tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(words) != tt.words {
				t.Fatalf("got %d words, want %d", len(words), tt.words)
			}
		})
	}
}

func TestTimeoutNanos(t *testing.T) {
	if got := timeoutNanos(time.Second); got != uint64(time.Second) {
		t.Fatalf("timeoutNanos(1s) = %d", got)
	}
	if got := timeoutNanos(gpu.InfiniteTimeout); got != math.MaxUint64 {
		t.Fatalf("infinite timeout = %d, want MaxUint64", got)
	}
	if got := timeoutNanos(-1); got != math.MaxUint64 {
		t.Fatalf("negative timeout = %d, want MaxUint64", got)
	}
}

func TestFlagMapping(t *testing.T) {
	usage := vkBufferUsage(gpu.BufferUsageTransferDst | gpu.BufferUsageStorage)
	if want := vk.BufferUsageFlags(vk.BufferUsageTransferDstBit | vk.BufferUsageStorageBufferBit); usage != want {
		t.Fatalf("buffer usage = %#x, want %#x", usage, want)
	}

	stage := vkStage(gpu.StageVertexInput | gpu.StageVertexShader)
	if want := vk.PipelineStageFlags(vk.PipelineStageVertexInputBit | vk.PipelineStageVertexShaderBit); stage != want {
		t.Fatalf("stage = %#x, want %#x", stage, want)
	}

	if got := vkAccess(gpu.AccessNone); got != 0 {
		t.Fatalf("no access mapped to %#x", got)
	}

	memory := vkMemoryProperty(gpu.MemoryHostVisible | gpu.MemoryHostCoherent)
	if want := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit); memory != want {
		t.Fatalf("memory = %#x, want %#x", memory, want)
	}
}

func TestSamplesAndLayout(t *testing.T) {
	for _, n := range []int{0, 1} {
		if vkSamples(n) != vk.SampleCount1Bit {
			t.Fatalf("vkSamples(%d) != 1 bit", n)
		}
	}
	if vkSamples(4) != vk.SampleCount4Bit {
		t.Fatal("vkSamples(4) != 4 bit")
	}
	if vkLayout(gpu.LayoutPresentSrc) != vk.ImageLayoutPresentSrc {
		t.Fatal("present layout mismatch")
	}
}

func TestResultError(t *testing.T) {
	if err := resultError("vkQueueSubmit", vk.Success); err != nil {
		t.Fatalf("success produced %v", err)
	}
	if err := resultError("vkQueueSubmit", vk.ErrorDeviceLost); err == nil {
		t.Fatal("device lost produced no error")
	}
}

func TestExternalDependencyOrdersAttachmentWrites(t *testing.T) {
	dep := externalDependency()
	if dep.SrcSubpass != vk.SubpassExternal || dep.DstSubpass != 0 {
		t.Fatalf("subpasses = %d -> %d", dep.SrcSubpass, dep.DstSubpass)
	}

	stages := []vk.PipelineStageFlagBits{
		vk.PipelineStageColorAttachmentOutputBit,
		vk.PipelineStageEarlyFragmentTestsBit,
		vk.PipelineStageLateFragmentTestsBit,
	}
	for _, stage := range stages {
		if dep.SrcStageMask&vk.PipelineStageFlags(stage) == 0 {
			t.Errorf("source stages %#x miss %#x", dep.SrcStageMask, stage)
		}
		if dep.DstStageMask&vk.PipelineStageFlags(stage) == 0 {
			t.Errorf("destination stages %#x miss %#x", dep.DstStageMask, stage)
		}
	}

	writes := vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit)
	if dep.SrcAccessMask&writes != writes {
		t.Errorf("source access %#x does not cover the previous frame's attachment writes", dep.SrcAccessMask)
	}
	if dep.DstAccessMask&writes != writes {
		t.Errorf("destination access %#x does not cover attachment writes", dep.DstAccessMask)
	}
}

func TestSwapchainStatus(t *testing.T) {
	tests := []struct {
		result  vk.Result
		want    gpu.SwapchainStatus
		wantErr bool
	}{
		{vk.Success, gpu.StatusOptimal, false},
		{vk.Suboptimal, gpu.StatusSuboptimal, false},
		{vk.ErrorOutOfDate, gpu.StatusOutOfDate, false},
		{vk.ErrorDeviceLost, gpu.StatusOptimal, true},
	}
	for _, tt := range tests {
		status, err := swapchainStatus("vkQueuePresentKHR", tt.result)
		if (err != nil) != tt.wantErr {
			t.Errorf("result %d: err = %v, wantErr %v", tt.result, err, tt.wantErr)
		}
		if status != tt.want {
			t.Errorf("result %d: status = %s, want %s", tt.result, status, tt.want)
		}
	}
}
