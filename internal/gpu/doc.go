//go:build !nogpu

// Package gpu submits quad draw commands to a WebGPU device through the
// gogpu/wgpu HAL.
//
// A Renderer owns one render pipeline per variant, created lazily from the
// WGSL sources of package shader. Each frame it builds the uniform buffers,
// the vertex buffer and the bind groups the commands need, records every
// draw into a single render pass in submission order, submits once and
// waits on a fence.
//
// Two targets are supported:
//
//   - Offscreen: the renderer owns a color texture and reads the frame back
//     into an *image.RGBA (Render).
//   - Surface: the caller provides a texture view, e.g. the current swapchain
//     image of a host window (RenderToSurface). No readback occurs.
//
// The device comes either from a host application (NewFromProvider) or from
// a standalone Vulkan adapter (Open).
package gpu
