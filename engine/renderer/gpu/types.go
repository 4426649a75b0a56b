// Package gpu describes the device, queue and swapchain surface the frame
// engine drives. The Vulkan backend implements it for real hardware and
// gputest implements it as a recording fake.
package gpu

import "time"

type QueueType int

const (
	QueueGraphics QueueType = iota
	QueueTransfer
	QueuePresent
)

func (q QueueType) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueTransfer:
		return "transfer"
	case QueuePresent:
		return "present"
	default:
		return "unknown"
	}
}

// QueueFamilyIgnored leaves a barrier without an ownership transfer.
const QueueFamilyIgnored = ^uint32(0)

// WholeSize covers a buffer from the given offset to its end.
const WholeSize = ^uint64(0)

// InfiniteTimeout blocks until the wait completes.
const InfiniteTimeout = time.Duration(1<<63 - 1)

type QueueFamilies struct {
	Graphics uint32
	Transfer uint32
	Present  uint32
}

func (q QueueFamilies) TransferIsSeparate() bool {
	return q.Transfer != q.Graphics
}

func (q QueueFamilies) PresentIsSeparate() bool {
	return q.Present != q.Graphics
}

type Extent struct {
	Width  uint32
	Height uint32
}

// IsZero reports a degenerate surface, e.g. a minimized window.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) Aspect() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

type Format int

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR8G8B8A8Unorm
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
)

type MemoryProperty uint32

const (
	MemoryDeviceLocal MemoryProperty = 1 << iota
	MemoryHostVisible
	MemoryHostCoherent
)

type ImageUsage uint32

const (
	ImageUsageColorAttachment ImageUsage = 1 << iota
	ImageUsageDepthAttachment
	ImageUsageTransient
)

type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageHost
	StageTransfer
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageEarlyFragmentTests
	StageColorAttachmentOutput
	StageBottomOfPipe
	StageAllCommands
)

type Access uint32

const (
	AccessNone Access = 0
)

const (
	AccessHostWrite Access = 1 << iota
	AccessTransferRead
	AccessTransferWrite
	AccessVertexAttributeRead
	AccessIndexRead
	AccessUniformRead
	AccessShaderRead
	AccessColorAttachmentWrite
	AccessMemoryRead
)

type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutColorAttachment
	LayoutPresentSrc
)

// SwapchainStatus is the transient outcome of acquire and present. Anything
// other than StatusOptimal asks for a swapchain rebuild.
type SwapchainStatus int

const (
	StatusOptimal SwapchainStatus = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s SwapchainStatus) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out-of-date"
	default:
		return "unknown"
	}
}

type BufferBarrier struct {
	Buffer    Buffer
	SrcAccess Access
	DstAccess Access
	SrcFamily uint32
	DstFamily uint32
	Offset    uint64
	Size      uint64
}

type ImageBarrier struct {
	Image     Image
	SrcAccess Access
	DstAccess Access
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcFamily uint32
	DstFamily uint32
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
	IsDepth bool
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepthStencil(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil, IsDepth: true}
}

type SemaphoreWait struct {
	Semaphore Semaphore
	Stage     PipelineStage
}

type SubmitInfo struct {
	Commands []CommandBuffer
	Waits    []SemaphoreWait
	Signals  []Semaphore
	// Fence is optional and signaled once every command completed.
	Fence Fence
}

type ImageDesc struct {
	Extent  Extent
	Format  Format
	Samples int
	Usage   ImageUsage
}

// RenderPassDesc describes the single subpass used for drawing. With
// Samples > 1 the color attachment is multisampled and resolved into the
// swapchain image.
type RenderPassDesc struct {
	ColorFormat Format
	DepthFormat Format
	Samples     int
}

// VertexBinding is one tightly packed vec3 attribute stream.
type VertexBinding struct {
	Binding  uint32
	Location uint32
	Stride   uint32
}

type PipelineDesc struct {
	RenderPass     RenderPass
	Descriptors    DescriptorPool
	VertexShader   []byte
	FragmentShader []byte
	Bindings       []VertexBinding
	Samples        int
}
