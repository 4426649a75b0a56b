package renderer

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// renderTargets is everything sized to the surface: the swapchain, the
// shared depth image, the optional multisampled color image, the render
// pass and one framebuffer per swapchain image. It is built and torn down
// as a unit.
type renderTargets struct {
	swapchain    gpu.Swapchain
	depth        gpu.Image
	color        gpu.Image
	renderPass   gpu.RenderPass
	framebuffers []gpu.Framebuffer
	samples      int
}

func createTargets(device gpu.Device, extent gpu.Extent, samples int) (t *renderTargets, err error) {
	t = &renderTargets{samples: samples}
	defer func() {
		if err != nil {
			t.destroy()
			t = nil
		}
	}()

	if t.swapchain, err = device.CreateSwapchain(extent); err != nil {
		return t, core.Fatal("create swapchain", err)
	}
	// the surface may clamp the requested extent
	extent = t.swapchain.Extent()

	t.depth, err = device.CreateImage(gpu.ImageDesc{
		Extent:  extent,
		Format:  device.DepthFormat(),
		Samples: samples,
		Usage:   gpu.ImageUsageDepthAttachment,
	})
	if err != nil {
		return t, core.Fatal("create depth image", err)
	}
	if samples > 1 {
		t.color, err = device.CreateImage(gpu.ImageDesc{
			Extent:  extent,
			Format:  t.swapchain.Format(),
			Samples: samples,
			Usage:   gpu.ImageUsageColorAttachment | gpu.ImageUsageTransient,
		})
		if err != nil {
			return t, core.Fatal("create multisample color image", err)
		}
	}

	t.renderPass, err = device.CreateRenderPass(gpu.RenderPassDesc{
		ColorFormat: t.swapchain.Format(),
		DepthFormat: device.DepthFormat(),
		Samples:     samples,
	})
	if err != nil {
		return t, core.Fatal("create render pass", err)
	}

	for _, image := range t.swapchain.Images() {
		attachments := []gpu.Image{image, t.depth}
		if samples > 1 {
			attachments = []gpu.Image{t.color, t.depth, image}
		}
		fb, err := device.CreateFramebuffer(t.renderPass, attachments, extent)
		if err != nil {
			return t, core.Fatal("create framebuffer", err)
		}
		t.framebuffers = append(t.framebuffers, fb)
	}
	return t, nil
}

// destroy releases the targets in dependency order. The device must be
// idle.
func (t *renderTargets) destroy() {
	for _, fb := range t.framebuffers {
		fb.Destroy()
	}
	t.framebuffers = nil
	if t.renderPass != nil {
		t.renderPass.Destroy()
		t.renderPass = nil
	}
	if t.color != nil {
		t.color.Destroy()
		t.color = nil
	}
	if t.depth != nil {
		t.depth.Destroy()
		t.depth = nil
	}
	if t.swapchain != nil {
		t.swapchain.Destroy()
		t.swapchain = nil
	}
}
