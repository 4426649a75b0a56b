// Package gputest provides an in-memory gpu.Device that records every
// command and submission. Tests drive fence completion manually to observe
// how many frames are in flight.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const swapchainImageCount = 3

// Submission is a snapshot of one queue submission.
type Submission struct {
	Queue    gpu.QueueType
	Commands []Command
	Waits    []gpu.SemaphoreWait
	Signals  []gpu.Semaphore
	Fence    gpu.Fence
}

type pendingSubmission struct {
	queue    gpu.QueueType
	info     gpu.SubmitInfo
	commands []Command
}

type Device struct {
	mu sync.Mutex

	families   gpu.QueueFamilies
	surface    gpu.Extent
	maxSamples int
	manual     bool

	nextAcquire gpu.SwapchainStatus
	nextPresent gpu.SwapchainStatus

	nextID      int
	live        map[string]int
	events      []string
	violations  []string
	submissions []Submission
	pending     []*pendingSubmission

	pipelines  []gpu.PipelineDesc
	swapchains int

	attempts map[string]int
	failures map[string]failure
}

type failure struct {
	nth int
	err error
}

// ErrOutOfMemory is the default error of an injected creation failure.
var ErrOutOfMemory = errors.New("gputest: out of device memory")

// NewDevice creates a fake device exposing the given queue families and a
// surface of the given size.
func NewDevice(families gpu.QueueFamilies, surface gpu.Extent) *Device {
	return &Device{
		families:   families,
		surface:    surface,
		maxSamples: 8,
		live:       map[string]int{},
		attempts:   map[string]int{},
		failures:   map[string]failure{},
	}
}

// FailCreate makes the nth creation of kind, counted from the device's
// creation, fail with err, or ErrOutOfMemory when err is nil. Kinds are the
// names Live accepts: "buffer", "semaphore", "fence", "commandbuffer",
// "image", "renderpass", "framebuffer", "descriptorpool", "pipeline" and
// "swapchain".
func (d *Device) FailCreate(kind string, nth int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = ErrOutOfMemory
	}
	d.failures[kind] = failure{nth: nth, err: err}
}

// injected counts a creation attempt and returns the failure armed for it.
// Must be called with the device lock held.
func (d *Device) injected(kind string) error {
	d.attempts[kind]++
	f, ok := d.failures[kind]
	if !ok || f.nth != d.attempts[kind] {
		return nil
	}
	delete(d.failures, kind)
	return fmt.Errorf("create %s #%d: %w", kind, f.nth, f.err)
}

// SetManualCompletion holds submissions until CompleteFrame or WaitIdle.
// By default every submission completes as soon as it is submitted.
func (d *Device) SetManualCompletion(manual bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.manual = manual
}

func (d *Device) SetSurfaceExtent(e gpu.Extent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.surface = e
}

func (d *Device) SetMaxSamples(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxSamples = n
}

// FailNextAcquire makes the next AcquireNextImage report status.
func (d *Device) FailNextAcquire(status gpu.SwapchainStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextAcquire = status
}

// FailNextPresent makes the next Present report status.
func (d *Device) FailNextPresent(status gpu.SwapchainStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextPresent = status
}

// CompleteFrame retires pending submissions in order up to and including
// the first fenced submission on the graphics or present queue. It returns
// false when nothing was pending.
func (d *Device) CompleteFrame() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return false
	}
	n := 0
	for n < len(d.pending) {
		p := d.pending[n]
		n++
		if p.queue != gpu.QueueTransfer && p.info.Fence != nil {
			break
		}
	}
	done := d.pending[:n]
	d.pending = append([]*pendingSubmission(nil), d.pending[n:]...)
	for _, p := range done {
		d.retire(p)
	}
	return true
}

func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Submission(nil), d.submissions...)
}

func (d *Device) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// Violations lists every API misuse the fake detected.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// ClearLog forgets recorded submissions and events.
func (d *Device) ClearLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = nil
	d.events = nil
}

// Live returns the number of objects of the given kind not yet destroyed.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[kind]
}

// Leaks returns every kind with live objects.
func (d *Device) Leaks() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := map[string]int{}
	for k, v := range d.live {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

func (d *Device) Pipelines() []gpu.PipelineDesc {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.PipelineDesc(nil), d.pipelines...)
}

func (d *Device) SwapchainsCreated() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swapchains
}

func (d *Device) QueueFamilies() gpu.QueueFamilies { return d.families }

func (d *Device) DepthFormat() gpu.Format { return gpu.FormatD32Sfloat }

func (d *Device) SupportedSamples(requested int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 1
	for n*2 <= requested && n*2 <= d.maxSamples {
		n *= 2
	}
	return n
}

func (d *Device) SurfaceExtent() (gpu.Extent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surface, nil
}

func (d *Device) CreateSwapchain(extent gpu.Extent) (gpu.Swapchain, error) {
	if extent.IsZero() {
		return nil, errors.New("gputest: swapchain extent must be non-zero")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("swapchain"); err != nil {
		return nil, err
	}
	sc := &Swapchain{object: d.newObject("swapchain"), extent: extent}
	for i := 0; i < swapchainImageCount; i++ {
		sc.images = append(sc.images, &Image{extent: extent, format: gpu.FormatB8G8R8A8Unorm})
	}
	d.swapchains++
	d.events = append(d.events, fmt.Sprintf("create swapchain %dx%d", extent.Width, extent.Height))
	return sc, nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("image"); err != nil {
		return nil, err
	}
	return &Image{object: d.newObject("image"), extent: desc.Extent, format: desc.Format, samples: desc.Samples}, nil
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("renderpass"); err != nil {
		return nil, err
	}
	return &RenderPass{object: d.newObject("renderpass"), Desc: desc}, nil
}

func (d *Device) CreateFramebuffer(rp gpu.RenderPass, attachments []gpu.Image, extent gpu.Extent) (gpu.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("framebuffer"); err != nil {
		return nil, err
	}
	return &Framebuffer{object: d.newObject("framebuffer"), Attachments: attachments}, nil
}

func (d *Device) CreateDescriptorPool(count int) (gpu.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("descriptorpool"); err != nil {
		return nil, err
	}
	pool := &DescriptorPool{object: d.newObject("descriptorpool")}
	for i := 0; i < count; i++ {
		pool.sets = append(pool.sets, &DescriptorSet{})
	}
	return pool, nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if len(desc.VertexShader) == 0 || len(desc.FragmentShader) == 0 {
		return nil, errors.New("gputest: pipeline requires both shader stages")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("pipeline"); err != nil {
		return nil, err
	}
	d.pipelines = append(d.pipelines, desc)
	d.events = append(d.events, fmt.Sprintf("create pipeline samples=%d", desc.Samples))
	return &Pipeline{object: d.newObject("pipeline"), Desc: desc}, nil
}

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage, memory gpu.MemoryProperty) (gpu.Buffer, error) {
	if size == 0 {
		return nil, errors.New("gputest: buffer size must be non-zero")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("buffer"); err != nil {
		return nil, err
	}
	return &Buffer{object: d.newObject("buffer"), data: make([]byte, size), usage: usage, memory: memory}, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("semaphore"); err != nil {
		return nil, err
	}
	return &Semaphore{object: d.newObject("semaphore")}, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("fence"); err != nil {
		return nil, err
	}
	f := &Fence{object: d.newObject("fence"), done: make(chan struct{})}
	if signaled {
		f.signal()
	}
	return f, nil
}

func (d *Device) AllocateCommandBuffer(queue gpu.QueueType) (gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.injected("commandbuffer"); err != nil {
		return nil, err
	}
	return &CommandBuffer{object: d.newObject("commandbuffer"), Queue: queue}, nil
}

func (d *Device) Submit(queue gpu.QueueType, info gpu.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := info.Fence.(*Fence); ok && f.signaled {
		d.violate("submit on %s queue with signaled fence %d", queue, f.id)
	}
	var cmds []Command
	for _, c := range info.Commands {
		cb := c.(*CommandBuffer)
		if cb.recording {
			d.violate("submit of command buffer %d still recording", cb.id)
		}
		if cb.Queue != queue {
			d.violate("command buffer %d allocated for %s submitted to %s", cb.id, cb.Queue, queue)
		}
		cmds = append(cmds, cb.commands...)
	}
	p := &pendingSubmission{queue: queue, info: info, commands: cmds}
	d.submissions = append(d.submissions, Submission{
		Queue:    queue,
		Commands: cmds,
		Waits:    append([]gpu.SemaphoreWait(nil), info.Waits...),
		Signals:  append([]gpu.Semaphore(nil), info.Signals...),
		Fence:    info.Fence,
	})
	d.events = append(d.events, "submit "+queue.String())
	if d.manual {
		d.pending = append(d.pending, p)
		return nil
	}
	d.retire(p)
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pending {
		d.retire(p)
	}
	d.pending = nil
	d.events = append(d.events, "wait-idle")
	return nil
}

func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, "destroy device")
}

// retire executes the recorded copies and signals the fence.
func (d *Device) retire(p *pendingSubmission) {
	for _, c := range p.commands {
		if c.Op != OpCopyBuffer {
			continue
		}
		src, dst := c.Src.(*Buffer), c.Dst.(*Buffer)
		r := c.Region
		if r.SrcOffset+r.Size > uint64(len(src.data)) || r.DstOffset+r.Size > uint64(len(dst.data)) {
			d.violate("copy region out of range")
			continue
		}
		copy(dst.data[r.DstOffset:r.DstOffset+r.Size], src.data[r.SrcOffset:r.SrcOffset+r.Size])
	}
	if f, ok := p.info.Fence.(*Fence); ok {
		f.signal()
	}
}

func (d *Device) newObject(kind string) object {
	d.nextID++
	d.live[kind]++
	return object{d: d, id: d.nextID, kind: kind}
}

func (d *Device) violate(format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

// inFlight reports whether a pending submission references the object.
func (d *Device) inFlight(match func(p *pendingSubmission) bool) bool {
	for _, p := range d.pending {
		if match(p) {
			return true
		}
	}
	return false
}

type object struct {
	d         *Device
	id        int
	kind      string
	destroyed bool
}

// release must be called with the device lock held.
func (o *object) release() {
	if o.destroyed {
		o.d.violate("%s %d destroyed twice", o.kind, o.id)
		return
	}
	o.destroyed = true
	o.d.live[o.kind]--
	o.d.events = append(o.d.events, "destroy "+o.kind)
}

var _ gpu.Device = (*Device)(nil)

// errNotMapped is returned when writing device-local memory from the host.
var errNotMapped = errors.New("gputest: buffer is not host visible")
