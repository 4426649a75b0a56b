package renderer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
)

var (
	unifiedFamilies  = gpu.QueueFamilies{Graphics: 0, Transfer: 0, Present: 0}
	separateFamilies = gpu.QueueFamilies{Graphics: 0, Transfer: 1, Present: 2}
)

var cubeIndices = []uint16{
	0, 1, 2, 2, 3, 0,
	4, 5, 6, 6, 7, 4,
	0, 4, 7, 7, 3, 0,
	1, 5, 6, 6, 2, 1,
	3, 2, 6, 6, 7, 3,
	0, 1, 5, 5, 4, 0,
}

func cubeMesh() *Mesh {
	positions := []math.Vec3{
		{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
		{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
	}
	return &Mesh{
		Positions: positions,
		Normals:   math.GenerateNormals(positions, cubeIndices),
		Indices:   append([]uint16(nil), cubeIndices...),
		Batches:   SingleBatch(),
	}
}

// twoCubes stacks two cubes in one set of buffers, one batch each.
func twoCubes() *Mesh {
	a, b := cubeMesh(), cubeMesh()
	m := &Mesh{
		Positions: append(a.Positions, b.Positions...),
		Normals:   append(a.Normals, b.Normals...),
		Indices:   append(a.Indices, b.Indices...),
	}
	m.Batches.Add(0, 0)
	m.Batches.Add(8, 36)
	return m
}

func testShaders() Shaders {
	return Shaders{Vertex: []byte{0x03, 0x02, 0x23, 0x07}, Fragment: []byte{0x03, 0x02, 0x23, 0x07}}
}

func newTestRenderer(t *testing.T, families gpu.QueueFamilies, opts Options, mesh *Mesh) (*Renderer, *gputest.Device) {
	t.Helper()
	dev := gputest.NewDevice(families, gpu.Extent{Width: 800, Height: 600})
	r := New(dev, opts, testShaders())
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if mesh != nil {
		if err := r.LoadMesh(mesh); err != nil {
			t.Fatalf("LoadMesh: %v", err)
		}
	}
	dev.ClearLog()
	return r, dev
}

func identities(n int) []math.Mat4 {
	out := make([]math.Mat4, n)
	for i := range out {
		out[i] = math.NewMat4Identity()
	}
	return out
}

func drawFrames(t *testing.T, r *Renderer, n, instances int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := r.DrawFrame(identities(instances), UniformData{}); err != nil {
			t.Fatalf("DrawFrame %d: %v", i, err)
		}
	}
}

func submissionsOn(subs []gputest.Submission, q gpu.QueueType) []gputest.Submission {
	var out []gputest.Submission
	for _, s := range subs {
		if s.Queue == q {
			out = append(out, s)
		}
	}
	return out
}

func draws(cmds []gputest.Command) []gputest.Command {
	var out []gputest.Command
	for _, c := range cmds {
		if c.Op == gputest.OpDrawIndexed {
			out = append(out, c)
		}
	}
	return out
}

func checkNoViolations(t *testing.T, dev *gputest.Device) {
	t.Helper()
	for _, v := range dev.Violations() {
		t.Errorf("violation: %s", v)
	}
}

func TestDrawBatchesValidate(t *testing.T) {
	tests := []struct {
		name    string
		batches DrawBatches
		total   uint32
		counts  []uint32
		wantErr bool
	}{
		{name: "single", batches: SingleBatch(), total: 36, counts: []uint32{36}},
		{name: "two equal", batches: DrawBatches{VertexOffsets: []int32{0, 8}, IndexOffsets: []uint32{0, 36}}, total: 72, counts: []uint32{36, 36}},
		{name: "uneven", batches: DrawBatches{VertexOffsets: []int32{0, 0, 4}, IndexOffsets: []uint32{0, 6, 6}}, total: 12, counts: []uint32{6, 0, 6}},
		{name: "empty", batches: DrawBatches{}, total: 36, wantErr: true},
		{name: "length mismatch", batches: DrawBatches{VertexOffsets: []int32{0}, IndexOffsets: []uint32{0, 3}}, total: 6, wantErr: true},
		{name: "decreasing", batches: DrawBatches{VertexOffsets: []int32{0, 0}, IndexOffsets: []uint32{12, 6}}, total: 18, wantErr: true},
		{name: "last batch empty", batches: DrawBatches{VertexOffsets: []int32{0, 0}, IndexOffsets: []uint32{0, 36}}, total: 36, wantErr: true},
		{name: "negative vertex offset", batches: DrawBatches{VertexOffsets: []int32{-1}, IndexOffsets: []uint32{0}}, total: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.batches.Validate(tt.total)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidBatches) {
					t.Fatalf("Validate = %v, want ErrInvalidBatches", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			for i, want := range tt.counts {
				if got := tt.batches.IndexCount(i, tt.total); got != want {
					t.Errorf("IndexCount(%d) = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestMeshValidate(t *testing.T) {
	m := cubeMesh()
	m.Indices[5] = 8
	if err := m.Validate(); err == nil {
		t.Fatal("expected out of range index to fail")
	}

	m = twoCubes()
	m.Batches.VertexOffsets[1] = 9
	if err := m.Validate(); err == nil {
		t.Fatal("expected vertex offset past the end to fail")
	}

	m = cubeMesh()
	m.Normals = m.Normals[:4]
	if err := m.Validate(); err == nil {
		t.Fatal("expected normal count mismatch to fail")
	}
}

func TestSingleBatchDrawsWholeMesh(t *testing.T) {
	r, dev := newTestRenderer(t, unifiedFamilies, DefaultOptions(), cubeMesh())
	drawFrames(t, r, 1, 1)

	graphics := submissionsOn(dev.Submissions(), gpu.QueueGraphics)
	if len(graphics) != 1 {
		t.Fatalf("graphics submissions = %d, want 1", len(graphics))
	}
	d := draws(graphics[0].Commands)
	if len(d) != 1 {
		t.Fatalf("draw calls = %d, want 1", len(d))
	}
	if d[0].IndexCount != 36 || d[0].FirstIndex != 0 || d[0].VertexOffset != 0 || d[0].FirstInstance != 0 {
		t.Errorf("draw = %s", d[0])
	}
	checkNoViolations(t, dev)
}

func TestBatchesSelectTheirInstance(t *testing.T) {
	r, dev := newTestRenderer(t, unifiedFamilies, DefaultOptions(), twoCubes())
	drawFrames(t, r, 1, 2)

	d := draws(submissionsOn(dev.Submissions(), gpu.QueueGraphics)[0].Commands)
	if len(d) != 2 {
		t.Fatalf("draw calls = %d, want 2", len(d))
	}
	want := []struct {
		count, first uint32
		vertex       int32
	}{
		{36, 0, 0},
		{36, 36, 8},
	}
	for i, w := range want {
		if d[i].IndexCount != w.count || d[i].FirstIndex != w.first || d[i].VertexOffset != w.vertex || d[i].FirstInstance != uint32(i) {
			t.Errorf("draw %d = %s", i, d[i])
		}
	}
}

func TestLoadMeshUploadsDeviceLocalBuffers(t *testing.T) {
	mesh := cubeMesh()
	r, dev := newTestRenderer(t, separateFamilies, DefaultOptions(), mesh)

	got := r.mesh.vertices.(*gputest.Buffer)
	if got.Memory()&gpu.MemoryDeviceLocal == 0 {
		t.Errorf("vertex buffer memory = %v, want device local", got.Memory())
	}
	if !bytes.Equal(got.Bytes(), encode(mesh.Positions)) {
		t.Error("vertex buffer contents differ from positions")
	}
	if !bytes.Equal(r.mesh.indices.(*gputest.Buffer).Bytes(), encode(mesh.Indices)) {
		t.Error("index buffer contents differ from indices")
	}
	// staging buffers, fences and command buffers of the uploads are gone
	if n := dev.Live("buffer"); n != 3+3*FramesInFlight {
		t.Errorf("live buffers = %d, want %d", n, 3+3*FramesInFlight)
	}
	if n := dev.Live("fence"); n != 2*FramesInFlight {
		t.Errorf("live fences = %d, want %d", n, 2*FramesInFlight)
	}
	if n := dev.Live("commandbuffer"); n != 3*FramesInFlight {
		t.Errorf("live command buffers = %d, want %d", n, 3*FramesInFlight)
	}
}

func TestTransformsReachDeviceBuffer(t *testing.T) {
	r, _ := newTestRenderer(t, separateFamilies, DefaultOptions(), twoCubes())
	transforms := []math.Mat4{
		math.NewMat4Translation(math.NewVec3(1, 2, 3)),
		math.NewMat4Scale(math.NewVec3(2, 2, 2)),
	}
	if err := r.DrawFrame(transforms, UniformData{}); err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}

	slot := &r.ring.slots[0]
	want := transformBytes(transforms)
	got := slot.transforms.device.(*gputest.Buffer).Bytes()
	if !bytes.Equal(got[:len(want)], want) {
		t.Error("device transform buffer does not hold the uploaded matrices")
	}
	if n := slot.transforms.staging.(*gputest.Buffer).Flushes(); n != 1 {
		t.Errorf("staging flushes = %d, want 1", n)
	}
}

func TestOwnershipAcquireBeforeVertexReads(t *testing.T) {
	tests := []struct {
		name     string
		families gpu.QueueFamilies
		src, dst uint32
	}{
		{name: "separate families", families: separateFamilies, src: 1, dst: 0},
		{name: "shared family", families: unifiedFamilies, src: gpu.QueueFamilyIgnored, dst: gpu.QueueFamilyIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dev := newTestRenderer(t, tt.families, DefaultOptions(), cubeMesh())
			drawFrames(t, r, 3, 1)

			subs := dev.Submissions()
			transfers := submissionsOn(subs, gpu.QueueTransfer)
			graphics := submissionsOn(subs, gpu.QueueGraphics)
			if len(transfers) != 3 || len(graphics) != 3 {
				t.Fatalf("submissions: %d transfer, %d graphics", len(transfers), len(graphics))
			}

			for frame, g := range graphics {
				storage := r.ring.slots[frame%FramesInFlight].transforms.device
				acquired := -1
				for i, c := range g.Commands {
					if c.Op == gputest.OpPipelineBarrier {
						for _, b := range c.BufferBarriers {
							if b.Buffer == storage && b.SrcFamily == tt.src && b.DstFamily == tt.dst {
								acquired = i
								if c.DstStage&gpu.StageVertexInput == 0 {
									t.Errorf("frame %d: acquire dst stage %v lacks vertex input", frame, c.DstStage)
								}
							}
						}
					}
					if c.Op == gputest.OpBeginRenderPass || c.Op == gputest.OpBindDescriptorSet || c.Op == gputest.OpDrawIndexed {
						if acquired < 0 {
							t.Fatalf("frame %d: %s recorded before the transform acquire barrier", frame, c.Op)
						}
					}
				}
				if acquired < 0 {
					t.Fatalf("frame %d: no acquire barrier on the transform buffer", frame)
				}

				waitsTransfer := false
				for _, w := range g.Waits {
					if w.Semaphore == r.ring.slots[frame%FramesInFlight].transferFinished {
						waitsTransfer = true
					}
				}
				if !waitsTransfer {
					t.Errorf("frame %d: graphics submission does not wait on transfer-finished", frame)
				}
			}

			if tt.families.TransferIsSeparate() {
				cmds := transfers[0].Commands
				last := cmds[len(cmds)-1]
				if last.Op != gputest.OpPipelineBarrier || len(last.BufferBarriers) != 1 || last.BufferBarriers[0].SrcFamily != 1 || last.BufferBarriers[0].DstFamily != 0 {
					t.Errorf("transfer command buffer does not end with a release barrier: %s", last)
				}
				if cmds[0].Op != gputest.OpPipelineBarrier || cmds[0].SrcStage != gpu.StageHost {
					t.Errorf("transfer command buffer does not start with a host write barrier: %s", cmds[0])
				}
			}
			checkNoViolations(t, dev)
		})
	}
}

func TestPresentQueueHandoff(t *testing.T) {
	r, dev := newTestRenderer(t, separateFamilies, DefaultOptions(), cubeMesh())
	drawFrames(t, r, 1, 1)

	subs := dev.Submissions()
	present := submissionsOn(subs, gpu.QueuePresent)
	if len(present) != 1 {
		t.Fatalf("present submissions = %d, want 1", len(present))
	}
	slot := &r.ring.slots[0]
	if present[0].Fence != slot.drawingFinished {
		t.Error("present submission does not carry the drawing fence")
	}
	if len(present[0].Waits) != 1 || present[0].Waits[0].Semaphore != slot.renderFinished {
		t.Error("present submission does not wait on render-finished")
	}
	if g := submissionsOn(subs, gpu.QueueGraphics)[0]; g.Fence != nil {
		t.Error("graphics submission carries a fence although present follows it")
	}

	events := dev.Events()
	if !strings.HasPrefix(events[len(events)-1], "present") {
		t.Errorf("last event = %q, want present", events[len(events)-1])
	}
	checkNoViolations(t, dev)
}

func TestRingBoundsFramesInFlight(t *testing.T) {
	for _, families := range []gpu.QueueFamilies{unifiedFamilies, separateFamilies} {
		r, dev := newTestRenderer(t, families, DefaultOptions(), cubeMesh())
		dev.SetManualCompletion(true)

		drawFrames(t, r, FramesInFlight, 1)

		done := make(chan error, 1)
		go func() {
			done <- r.DrawFrame(identities(1), UniformData{})
		}()

		select {
		case err := <-done:
			t.Fatalf("frame %d was not blocked by the ring (err=%v)", FramesInFlight+1, err)
		case <-time.After(50 * time.Millisecond):
		}

		if !dev.CompleteFrame() {
			t.Fatal("nothing was pending")
		}
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("DrawFrame: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("frame did not resume after the oldest frame completed")
		}

		if got := r.Stats().FramesSubmitted; got != FramesInFlight+1 {
			t.Errorf("frames submitted = %d, want %d", got, FramesInFlight+1)
		}
		dev.WaitIdle()
		checkNoViolations(t, dev)
	}
}

func TestFenceTimeoutIsFatal(t *testing.T) {
	opts := DefaultOptions()
	opts.FenceTimeout = 20 * time.Millisecond
	r, dev := newTestRenderer(t, unifiedFamilies, opts, cubeMesh())
	dev.SetManualCompletion(true)

	drawFrames(t, r, FramesInFlight, 1)
	err := r.DrawFrame(identities(1), UniformData{})
	if !core.IsFatal(err) || !errors.Is(err, core.ErrFenceTimeout) {
		t.Fatalf("DrawFrame = %v, want fatal fence timeout", err)
	}
}

func TestResizeIsIdempotent(t *testing.T) {
	r, dev := newTestRenderer(t, unifiedFamilies, DefaultOptions(), cubeMesh())
	drawFrames(t, r, 1, 1)
	before := dev.Leaks()

	const n = 5
	for i := 0; i < n; i++ {
		r.Resized(800, 600)
		if r.State() != PendingResize {
			t.Fatalf("state after Resized = %s", r.State())
		}
		drawFrames(t, r, 2, 1)
	}

	if r.State() != Stable {
		t.Fatalf("state = %s, want stable", r.State())
	}
	if got := r.Stats().Rebuilds; got != n {
		t.Errorf("rebuilds = %d, want %d", got, n)
	}
	after := dev.Leaks()
	for kind, count := range before {
		if after[kind] != count {
			t.Errorf("live %s = %d, want %d", kind, after[kind], count)
		}
	}
	if dev.Live("swapchain") != 1 || dev.Live("renderpass") != 1 {
		t.Errorf("live swapchains %d, render passes %d", dev.Live("swapchain"), dev.Live("renderpass"))
	}
	if !r.AspectChanged() || r.AspectChanged() {
		t.Error("AspectChanged should report once after a rebuild")
	}
	checkNoViolations(t, dev)
}

func TestDegenerateExtentSkipsFrames(t *testing.T) {
	r, dev := newTestRenderer(t, unifiedFamilies, DefaultOptions(), cubeMesh())
	dev.SetSurfaceExtent(gpu.Extent{})
	r.Resized(0, 0)

	drawFrames(t, r, 3, 1)
	if n := len(dev.Submissions()); n != 0 {
		t.Fatalf("submissions while minimized = %d, want 0", n)
	}
	if r.State() != PendingResize {
		t.Fatalf("state = %s, want pending-resize", r.State())
	}
	if got := r.Stats().FramesSkipped; got != 3 {
		t.Errorf("frames skipped = %d, want 3", got)
	}

	dev.SetSurfaceExtent(gpu.Extent{Width: 1024, Height: 768})
	drawFrames(t, r, 1, 1)
	if got := r.Stats().Rebuilds; got != 1 {
		t.Fatalf("rebuilds = %d, want 1", got)
	}
	drawFrames(t, r, 2, 1)

	created := 0
	for _, e := range dev.Events() {
		if strings.HasPrefix(e, "create swapchain") {
			created++
		}
	}
	if created != 1 {
		t.Errorf("swapchains created after restore = %d, want 1", created)
	}
	if got := r.Extent(); got != (gpu.Extent{Width: 1024, Height: 768}) {
		t.Errorf("extent = %+v", got)
	}
	if got := len(submissionsOn(dev.Submissions(), gpu.QueueGraphics)); got != 2 {
		t.Errorf("graphics submissions = %d, want 2", got)
	}
}

func TestResizeWaitsForFramesInFlight(t *testing.T) {
	r, dev := newTestRenderer(t, separateFamilies, DefaultOptions(), cubeMesh())
	dev.SetManualCompletion(true)
	drawFrames(t, r, FramesInFlight, 1)
	if dev.Pending() == 0 {
		t.Fatal("expected frames in flight")
	}

	dev.ClearLog()
	r.Resized(640, 480)
	drawFrames(t, r, 1, 1)

	events := dev.Events()
	idle, firstDestroy := -1, -1
	for i, e := range events {
		if e == "wait-idle" && idle < 0 {
			idle = i
		}
		if (e == "destroy semaphore" || e == "destroy fence") && firstDestroy < 0 {
			firstDestroy = i
		}
	}
	if idle < 0 || firstDestroy < 0 || idle > firstDestroy {
		t.Fatalf("wait-idle at %d, first sync destroy at %d", idle, firstDestroy)
	}
	if dev.Pending() != 0 {
		t.Errorf("pending after rebuild = %d", dev.Pending())
	}
	checkNoViolations(t, dev)
}

func TestStaleSwapchainTriggersRebuild(t *testing.T) {
	r, dev := newTestRenderer(t, unifiedFamilies, DefaultOptions(), cubeMesh())

	dev.FailNextAcquire(gpu.StatusOutOfDate)
	drawFrames(t, r, 1, 1)
	if r.State() != PendingResize {
		t.Fatalf("state after stale acquire = %s", r.State())
	}
	if r.Stats().FramesSubmitted != 0 || len(dev.Submissions()) != 0 {
		t.Fatal("a stale acquire must not submit work")
	}
	if !r.ring.slot().drawingFinished.(*gputest.Fence).Signaled() {
		t.Fatal("drawing fence was reset although nothing was submitted")
	}

	drawFrames(t, r, 1, 1)
	if r.State() != Stable {
		t.Fatalf("state after rebuild = %s", r.State())
	}

	dev.FailNextPresent(gpu.StatusSuboptimal)
	drawFrames(t, r, 1, 1)
	if r.State() != PendingResize {
		t.Fatalf("state after suboptimal present = %s", r.State())
	}
	if r.Stats().FramesSubmitted != 1 {
		t.Errorf("frames submitted = %d, want 1", r.Stats().FramesSubmitted)
	}
	checkNoViolations(t, dev)
}

func TestMultisampleChangeRebuildsPipeline(t *testing.T) {
	opts := DefaultOptions()
	opts.Multisample = false
	r, dev := newTestRenderer(t, unifiedFamilies, opts, cubeMesh())
	if p := dev.Pipelines(); len(p) != 1 || p[0].Samples != 1 {
		t.Fatalf("initial pipelines = %+v", p)
	}

	r.SetMultisample(true, 4)
	if r.State() != PendingResize {
		t.Fatalf("state = %s, want pending-resize", r.State())
	}
	drawFrames(t, r, 2, 1)

	p := dev.Pipelines()
	if len(p) != 2 || p[1].Samples != 4 {
		t.Fatalf("pipelines = %d, last samples = %d", len(p), p[len(p)-1].Samples)
	}
	if dev.Live("pipeline") != 1 {
		t.Errorf("live pipelines = %d, want 1", dev.Live("pipeline"))
	}
	if dev.Live("image") != 2 {
		t.Errorf("live images = %d, want depth and color", dev.Live("image"))
	}

	var begin *gputest.Command
	for _, c := range submissionsOn(dev.Submissions(), gpu.QueueGraphics)[0].Commands {
		if c.Op == gputest.OpBeginRenderPass {
			c := c
			begin = &c
		}
	}
	if begin == nil || len(begin.Clears) != 3 || !begin.Clears[1].IsDepth {
		t.Fatalf("clear values = %+v", begin)
	}

	// same effective sample count is a no-op
	r.SetMultisample(true, 4)
	if r.State() != Stable {
		t.Errorf("state = %s, want stable", r.State())
	}

	// capped by the device
	dev.SetMaxSamples(2)
	r.SetMultisample(true, 8)
	drawFrames(t, r, 1, 1)
	if _, samples := r.Multisample(); samples != 2 {
		t.Errorf("samples = %d, want 2", samples)
	}
}

func TestInitializeWithMinimizedWindow(t *testing.T) {
	dev := gputest.NewDevice(unifiedFamilies, gpu.Extent{})
	r := New(dev, DefaultOptions(), testShaders())
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if r.State() != PendingResize {
		t.Fatalf("state = %s", r.State())
	}
	if err := r.LoadMesh(cubeMesh()); err != nil {
		t.Fatalf("LoadMesh: %v", err)
	}
	drawFrames(t, r, 1, 1)

	dev.SetSurfaceExtent(gpu.Extent{Width: 320, Height: 200})
	drawFrames(t, r, 2, 1)
	if r.Stats().FramesSubmitted != 1 {
		t.Errorf("frames submitted = %d, want 1", r.Stats().FramesSubmitted)
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	r, dev := newTestRenderer(t, separateFamilies, DefaultOptions(), twoCubes())
	dev.SetManualCompletion(true)
	drawFrames(t, r, 2, 2)

	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Errorf("leaked objects: %v", leaks)
	}
	checkNoViolations(t, dev)
}

func TestUniformLayout(t *testing.T) {
	u := UniformData{
		Model:         math.NewMat4Translation(math.NewVec3(7, 0, 0)),
		LightPosition: math.NewVec4(1, 2, 3, 1),
		ViewPosition:  math.NewVec4(4, 5, 6, 1),
	}
	b := u.Bytes()
	if len(b) != UniformSize || UniformSize != 288 {
		t.Fatalf("uniform size = %d", len(b))
	}
	offsets := []struct {
		name   string
		offset int
		want   float32
	}{
		{"model translation x", 48, 7},
		{"light x", 256, 1},
		{"light z", 264, 3},
		{"view x", 272, 4},
	}
	for _, o := range offsets {
		if got := readFloat(b[o.offset:]); got != o.want {
			t.Errorf("%s at %d = %v, want %v", o.name, o.offset, got, o.want)
		}
	}
}

func TestInitializeCreationFailuresAreFatal(t *testing.T) {
	tests := []struct {
		name     string
		families gpu.QueueFamilies
		kind     string
		nth      int
		// kind that must have no live objects right after the failure
		released string
	}{
		{"descriptor pool", unifiedFamilies, "descriptorpool", 1, "descriptorpool"},
		{"second slot storage buffer", unifiedFamilies, "buffer", 5, "buffer"},
		{"swapchain", unifiedFamilies, "swapchain", 1, "swapchain"},
		{"depth image", unifiedFamilies, "image", 1, "swapchain"},
		{"last framebuffer", unifiedFamilies, "framebuffer", 3, "framebuffer"},
		{"pipeline", unifiedFamilies, "pipeline", 1, "pipeline"},
		{"present command buffer", separateFamilies, "commandbuffer", 6, "commandbuffer"},
		{"second slot semaphore", unifiedFamilies, "semaphore", 5, "semaphore"},
		{"present ready semaphore", separateFamilies, "semaphore", 8, "semaphore"},
		{"second slot drawing fence", unifiedFamilies, "fence", 3, "fence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.NewDevice(tt.families, gpu.Extent{Width: 800, Height: 600})
			dev.FailCreate(tt.kind, tt.nth, nil)
			r := New(dev, DefaultOptions(), testShaders())

			err := r.Initialize()
			if !core.IsFatal(err) || !errors.Is(err, gputest.ErrOutOfMemory) {
				t.Fatalf("Initialize = %v, want fatal out of memory", err)
			}
			if n := dev.Live(tt.released); n != 0 {
				t.Errorf("live %s after failure = %d, want 0", tt.released, n)
			}

			if err := r.Shutdown(); err != nil {
				t.Fatalf("Shutdown: %v", err)
			}
			if leaks := dev.Leaks(); len(leaks) != 0 {
				t.Errorf("leaked objects: %v", leaks)
			}
			checkNoViolations(t, dev)
		})
	}
}

func TestLoadMeshCreationFailuresAreFatal(t *testing.T) {
	// Initialize creates three buffers per frame slot. LoadMesh then creates
	// vertices, normals, indices and one staging buffer per upload.
	const frameBuffers = 3 * FramesInFlight
	tests := []struct {
		name string
		kind string
		nth  int
		err  error
	}{
		{"no memory type for vertices", "buffer", frameBuffers + 1, core.ErrNoMemoryType},
		{"normals", "buffer", frameBuffers + 2, nil},
		{"first staging buffer", "buffer", frameBuffers + 4, nil},
		{"last staging buffer", "buffer", frameBuffers + 6, nil},
		{"upload command buffer", "commandbuffer", 3*FramesInFlight + 2, nil},
		{"upload fence", "fence", 2*FramesInFlight + 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dev := newTestRenderer(t, unifiedFamilies, DefaultOptions(), nil)
			liveBuffers := dev.Live("buffer")
			liveCommands := dev.Live("commandbuffer")
			liveFences := dev.Live("fence")
			dev.FailCreate(tt.kind, tt.nth, tt.err)

			err := r.LoadMesh(cubeMesh())
			want := tt.err
			if want == nil {
				want = gputest.ErrOutOfMemory
			}
			if !core.IsFatal(err) || !errors.Is(err, want) {
				t.Fatalf("LoadMesh = %v, want fatal %v", err, want)
			}
			if got := dev.Live("buffer"); got != liveBuffers {
				t.Errorf("live buffers = %d, want %d", got, liveBuffers)
			}
			if got := dev.Live("commandbuffer"); got != liveCommands {
				t.Errorf("live command buffers = %d, want %d", got, liveCommands)
			}
			if got := dev.Live("fence"); got != liveFences {
				t.Errorf("live fences = %d, want %d", got, liveFences)
			}

			if err := r.Shutdown(); err != nil {
				t.Fatalf("Shutdown: %v", err)
			}
			if leaks := dev.Leaks(); len(leaks) != 0 {
				t.Errorf("leaked objects: %v", leaks)
			}
			checkNoViolations(t, dev)
		})
	}
}

func TestRebuildCreationFailureIsFatal(t *testing.T) {
	r, dev := newTestRenderer(t, unifiedFamilies, DefaultOptions(), cubeMesh())
	drawFrames(t, r, 1, 1)

	// two fences per slot at Initialize and one per mesh upload come first,
	// then the rebuild recreates the slot fences. Fail the second slot's
	// drawing fence.
	const initialFences = 2*FramesInFlight + 3
	dev.FailCreate("fence", initialFences+3, nil)
	r.Resized(640, 480)
	err := r.DrawFrame(identities(1), UniformData{})
	if !core.IsFatal(err) || !errors.Is(err, gputest.ErrOutOfMemory) {
		t.Fatalf("DrawFrame = %v, want fatal out of memory", err)
	}
	if n := dev.Live("fence") + dev.Live("semaphore"); n != 0 {
		t.Errorf("live sync objects after failed rebuild = %d, want 0", n)
	}

	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Errorf("leaked objects: %v", leaks)
	}
	checkNoViolations(t, dev)
}

func TestMultisampleToggleBackCancelsRebuild(t *testing.T) {
	opts := DefaultOptions()
	opts.Multisample = false
	r, dev := newTestRenderer(t, unifiedFamilies, opts, cubeMesh())

	r.SetMultisample(true, 4)
	r.SetMultisample(false, 0)
	if r.State() != Stable {
		t.Fatalf("state = %s, want stable", r.State())
	}
	drawFrames(t, r, 2, 1)
	if got := r.Stats().Rebuilds; got != 0 {
		t.Errorf("rebuilds = %d, want 0", got)
	}
	if n := len(dev.Pipelines()); n != 1 {
		t.Errorf("pipelines created = %d, want 1", n)
	}

	// a stale surface still needs its rebuild
	r.Resized(640, 480)
	r.SetMultisample(true, 4)
	r.SetMultisample(false, 0)
	if r.State() != PendingResize {
		t.Fatalf("state = %s, want pending-resize", r.State())
	}
	drawFrames(t, r, 1, 1)
	if got := r.Stats().Rebuilds; got != 1 {
		t.Errorf("rebuilds = %d, want 1", got)
	}
	checkNoViolations(t, dev)
}
