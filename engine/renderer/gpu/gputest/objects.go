package gputest

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type Op string

const (
	OpPipelineBarrier   Op = "pipeline-barrier"
	OpCopyBuffer        Op = "copy-buffer"
	OpBeginRenderPass   Op = "begin-render-pass"
	OpEndRenderPass     Op = "end-render-pass"
	OpBindPipeline      Op = "bind-pipeline"
	OpSetViewport       Op = "set-viewport"
	OpSetScissor        Op = "set-scissor"
	OpBindVertexBuffers Op = "bind-vertex-buffers"
	OpBindIndexBuffer   Op = "bind-index-buffer"
	OpBindDescriptorSet Op = "bind-descriptor-set"
	OpDrawIndexed       Op = "draw-indexed"
)

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op Op

	SrcStage       gpu.PipelineStage
	DstStage       gpu.PipelineStage
	BufferBarriers []gpu.BufferBarrier
	ImageBarriers  []gpu.ImageBarrier

	Src    gpu.Buffer
	Dst    gpu.Buffer
	Region gpu.BufferCopy

	RenderPass  gpu.RenderPass
	Framebuffer gpu.Framebuffer
	Extent      gpu.Extent
	Clears      []gpu.ClearValue

	Pipeline     gpu.Pipeline
	FirstBinding uint32
	Buffers      []gpu.Buffer
	Set          gpu.DescriptorSet

	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

func (c Command) String() string {
	switch c.Op {
	case OpDrawIndexed:
		return fmt.Sprintf("%s count=%d first=%d vertexOffset=%d instance=%d", c.Op, c.IndexCount, c.FirstIndex, c.VertexOffset, c.FirstInstance)
	case OpPipelineBarrier:
		return fmt.Sprintf("%s buffers=%d images=%d", c.Op, len(c.BufferBarriers), len(c.ImageBarriers))
	default:
		return string(c.Op)
	}
}

type CommandBuffer struct {
	object
	Queue     gpu.QueueType
	recording bool
	commands  []Command
}

// Commands returns what was recorded since the last Begin.
func (cb *CommandBuffer) Commands() []Command {
	cb.d.mu.Lock()
	defer cb.d.mu.Unlock()
	return append([]Command(nil), cb.commands...)
}

func (cb *CommandBuffer) pendingUse() bool {
	return cb.d.inFlight(func(p *pendingSubmission) bool {
		for _, c := range p.info.Commands {
			if c == gpu.CommandBuffer(cb) {
				return true
			}
		}
		return false
	})
}

func (cb *CommandBuffer) Begin(oneTime bool) error {
	cb.d.mu.Lock()
	defer cb.d.mu.Unlock()
	if cb.pendingUse() {
		cb.d.violate("command buffer %d re-recorded while pending", cb.id)
	}
	if cb.recording {
		return fmt.Errorf("gputest: command buffer %d already recording", cb.id)
	}
	cb.recording = true
	cb.commands = nil
	return nil
}

func (cb *CommandBuffer) End() error {
	cb.d.mu.Lock()
	defer cb.d.mu.Unlock()
	if !cb.recording {
		return fmt.Errorf("gputest: command buffer %d not recording", cb.id)
	}
	cb.recording = false
	return nil
}

func (cb *CommandBuffer) Reset() error {
	cb.d.mu.Lock()
	defer cb.d.mu.Unlock()
	if cb.pendingUse() {
		cb.d.violate("command buffer %d reset while pending", cb.id)
	}
	cb.recording = false
	cb.commands = nil
	return nil
}

func (cb *CommandBuffer) record(c Command) {
	cb.d.mu.Lock()
	defer cb.d.mu.Unlock()
	if !cb.recording {
		cb.d.violate("%s recorded outside Begin/End on command buffer %d", c.Op, cb.id)
	}
	cb.commands = append(cb.commands, c)
}

func (cb *CommandBuffer) PipelineBarrier(src, dst gpu.PipelineStage, buffers []gpu.BufferBarrier, images []gpu.ImageBarrier) {
	cb.record(Command{
		Op:             OpPipelineBarrier,
		SrcStage:       src,
		DstStage:       dst,
		BufferBarriers: append([]gpu.BufferBarrier(nil), buffers...),
		ImageBarriers:  append([]gpu.ImageBarrier(nil), images...),
	})
}

func (cb *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, region gpu.BufferCopy) {
	cb.record(Command{Op: OpCopyBuffer, Src: src, Dst: dst, Region: region})
}

func (cb *CommandBuffer) BeginRenderPass(rp gpu.RenderPass, fb gpu.Framebuffer, area gpu.Extent, clears []gpu.ClearValue) {
	cb.record(Command{Op: OpBeginRenderPass, RenderPass: rp, Framebuffer: fb, Extent: area, Clears: append([]gpu.ClearValue(nil), clears...)})
}

func (cb *CommandBuffer) EndRenderPass() {
	cb.record(Command{Op: OpEndRenderPass})
}

func (cb *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	cb.record(Command{Op: OpBindPipeline, Pipeline: p})
}

func (cb *CommandBuffer) SetViewport(e gpu.Extent) {
	cb.record(Command{Op: OpSetViewport, Extent: e})
}

func (cb *CommandBuffer) SetScissor(e gpu.Extent) {
	cb.record(Command{Op: OpSetScissor, Extent: e})
}

func (cb *CommandBuffer) BindVertexBuffers(first uint32, buffers ...gpu.Buffer) {
	cb.record(Command{Op: OpBindVertexBuffers, FirstBinding: first, Buffers: append([]gpu.Buffer(nil), buffers...)})
}

func (cb *CommandBuffer) BindIndexBuffer(b gpu.Buffer) {
	cb.record(Command{Op: OpBindIndexBuffer, Buffers: []gpu.Buffer{b}})
}

func (cb *CommandBuffer) BindDescriptorSet(p gpu.Pipeline, set gpu.DescriptorSet) {
	cb.record(Command{Op: OpBindDescriptorSet, Pipeline: p, Set: set})
}

func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb.record(Command{
		Op:            OpDrawIndexed,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
		FirstInstance: firstInstance,
	})
}

func (cb *CommandBuffer) Free() {
	cb.d.mu.Lock()
	defer cb.d.mu.Unlock()
	if cb.pendingUse() {
		cb.d.violate("command buffer %d freed while pending", cb.id)
	}
	cb.release()
}

type Semaphore struct {
	object
}

func (s *Semaphore) Destroy() {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	busy := s.d.inFlight(func(p *pendingSubmission) bool {
		for _, w := range p.info.Waits {
			if w.Semaphore == gpu.Semaphore(s) {
				return true
			}
		}
		for _, sig := range p.info.Signals {
			if sig == gpu.Semaphore(s) {
				return true
			}
		}
		return false
	})
	if busy {
		s.d.violate("semaphore %d destroyed while in use", s.id)
	}
	s.release()
}

type Fence struct {
	object
	signaled bool
	done     chan struct{}
}

// signal must be called with the device lock held.
func (f *Fence) signal() {
	if f.signaled {
		return
	}
	f.signaled = true
	close(f.done)
}

func (f *Fence) pendingUse() bool {
	return f.d.inFlight(func(p *pendingSubmission) bool {
		return p.info.Fence == gpu.Fence(f)
	})
}

func (f *Fence) Signaled() bool {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	return f.signaled
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.d.mu.Lock()
	done := f.done
	f.d.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return core.ErrFenceTimeout
	}
}

func (f *Fence) Reset() error {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	if f.pendingUse() {
		f.d.violate("fence %d reset while pending", f.id)
	}
	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
	return nil
}

func (f *Fence) Destroy() {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	if f.pendingUse() {
		f.d.violate("fence %d destroyed while pending", f.id)
	}
	f.release()
}

type Buffer struct {
	object
	data    []byte
	usage   gpu.BufferUsage
	memory  gpu.MemoryProperty
	flushes int
}

func (b *Buffer) Size() uint64 { return uint64(len(b.data)) }

func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

func (b *Buffer) Memory() gpu.MemoryProperty { return b.memory }

func (b *Buffer) Write(offset uint64, data []byte) error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	if b.memory&gpu.MemoryHostVisible == 0 {
		return errNotMapped
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("gputest: write of %d bytes at %d overflows buffer of %d", len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *Buffer) Flush() error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.flushes++
	return nil
}

// Bytes returns a copy of the buffer contents as the device sees them.
func (b *Buffer) Bytes() []byte {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	return append([]byte(nil), b.data...)
}

func (b *Buffer) Flushes() int {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	return b.flushes
}

func (b *Buffer) Destroy() {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	busy := b.d.inFlight(func(p *pendingSubmission) bool {
		for _, c := range p.commands {
			if c.Src == gpu.Buffer(b) || c.Dst == gpu.Buffer(b) {
				return true
			}
			for _, used := range c.Buffers {
				if used == gpu.Buffer(b) {
					return true
				}
			}
		}
		return false
	})
	if busy {
		b.d.violate("buffer %d destroyed while in use", b.id)
	}
	b.release()
}

type Image struct {
	object
	extent  gpu.Extent
	format  gpu.Format
	samples int
}

func (i *Image) Extent() gpu.Extent { return i.extent }

func (i *Image) Format() gpu.Format { return i.format }

func (i *Image) Samples() int { return i.samples }

// Destroy releases the image. Swapchain images are owned by their
// swapchain and ignore it.
func (i *Image) Destroy() {
	if i.d == nil {
		return
	}
	i.d.mu.Lock()
	defer i.d.mu.Unlock()
	i.release()
}

type Swapchain struct {
	object
	extent gpu.Extent
	images []gpu.Image
	next   uint32
}

func (s *Swapchain) Extent() gpu.Extent { return s.extent }

func (s *Swapchain) Format() gpu.Format { return gpu.FormatB8G8R8A8Unorm }

func (s *Swapchain) Images() []gpu.Image { return s.images }

func (s *Swapchain) AcquireNextImage(timeout time.Duration, signal gpu.Semaphore) (uint32, gpu.SwapchainStatus, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.destroyed {
		return 0, gpu.StatusOptimal, fmt.Errorf("gputest: acquire on destroyed swapchain %d", s.id)
	}
	status := s.d.nextAcquire
	s.d.nextAcquire = gpu.StatusOptimal
	s.d.events = append(s.d.events, "acquire "+status.String())
	if status == gpu.StatusOutOfDate {
		return 0, status, nil
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, status, nil
}

func (s *Swapchain) Present(wait gpu.Semaphore, index uint32) (gpu.SwapchainStatus, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if int(index) >= len(s.images) {
		return gpu.StatusOptimal, fmt.Errorf("gputest: present of image %d out of range", index)
	}
	status := s.d.nextPresent
	s.d.nextPresent = gpu.StatusOptimal
	s.d.events = append(s.d.events, "present "+status.String())
	return status, nil
}

func (s *Swapchain) Destroy() {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.release()
}

type RenderPass struct {
	object
	Desc gpu.RenderPassDesc
}

func (r *RenderPass) Destroy() {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.release()
}

type Framebuffer struct {
	object
	Attachments []gpu.Image
}

func (f *Framebuffer) Destroy() {
	f.d.mu.Lock()
	defer f.d.mu.Unlock()
	f.release()
}

type Pipeline struct {
	object
	Desc gpu.PipelineDesc
}

func (p *Pipeline) Destroy() {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	p.release()
}

type DescriptorPool struct {
	object
	sets []gpu.DescriptorSet
}

func (p *DescriptorPool) Sets() []gpu.DescriptorSet { return p.sets }

func (p *DescriptorPool) Destroy() {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	p.release()
}

type DescriptorSet struct {
	Uniform gpu.Buffer
	Storage gpu.Buffer
}

func (s *DescriptorSet) Write(uniform, storage gpu.Buffer) {
	s.Uniform = uniform
	s.Storage = storage
}
