//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quad"
)

// drawRecord is one draw call, ready to be recorded into the render pass.
type drawRecord struct {
	pipeline hal.RenderPipeline
	uniform  hal.BindGroup
	texture  hal.BindGroup
	offset   uint64
	count    uint32
}

// frameResources holds the per-frame GPU resources of one submission: one
// vertex buffer shared by every draw, one uniform buffer and bind group per
// globals generation, and one texture bind group per distinct binding run.
type frameResources struct {
	vertBuf     hal.Buffer
	uniformBufs []hal.Buffer
	bindGroups  []hal.BindGroup
	draws       []drawRecord
}

func (r *frameResources) destroy(device hal.Device) {
	for i := len(r.bindGroups) - 1; i >= 0; i-- {
		device.DestroyBindGroup(r.bindGroups[i])
	}
	r.bindGroups = nil
	for _, b := range r.uniformBufs {
		device.DestroyBuffer(b)
	}
	r.uniformBufs = nil
	if r.vertBuf != nil {
		device.DestroyBuffer(r.vertBuf)
		r.vertBuf = nil
	}
}

// validateCommand checks that cmd is consistent with the layout of its
// variant before any GPU object is created for it.
func validateCommand(cmd *quad.DrawCommand) error {
	if !cmd.Variant.Valid() {
		return fmt.Errorf("%w: %s", quad.ErrUnknownVariant, cmd.Variant)
	}
	l := cmd.Variant.Layout()
	if len(cmd.Uniform) < l.UniformSize {
		return fmt.Errorf("%w: %s globals need %d bytes, got %d",
			quad.ErrLayoutMismatch, cmd.Variant, l.UniformSize, len(cmd.Uniform))
	}
	if cmd.VertexCount == 0 {
		return fmt.Errorf("%w: %s", quad.ErrEmptyShape, cmd.Variant)
	}
	if len(cmd.Vertices) < int(cmd.VertexCount)*l.VertexStride {
		return fmt.Errorf("%w: %d bytes for %d vertices of %s",
			quad.ErrAttributeMismatch, len(cmd.Vertices), cmd.VertexCount, cmd.Variant)
	}
	if l.Textured && (cmd.Texture == nil || cmd.Texture.Texture == nil || cmd.Texture.Sampler == nil) {
		return fmt.Errorf("%w: %s", quad.ErrUnboundResource, cmd.Variant)
	}
	return nil
}

// buildResources validates cmds and creates the buffers and bind groups the
// frame needs. On error every resource created so far is released.
func (r *Renderer) buildResources(cmds []quad.DrawCommand) (*frameResources, error) {
	res := &frameResources{draws: make([]drawRecord, 0, len(cmds))}

	var vertexBytes int
	for i := range cmds {
		cmd := &cmds[i]
		if err := validateCommand(cmd); err != nil {
			return nil, fmt.Errorf("draw %d (%s): %w", cmd.Seq, cmd.Variant, err)
		}
		if err := r.ensurePipeline(cmd.Variant); err != nil {
			return nil, err
		}
		vertexBytes += int(cmd.VertexCount) * cmd.Variant.Layout().VertexStride
	}

	vertexData := make([]byte, 0, vertexBytes)
	var (
		uniforms    [quad.VariantCount]hal.BindGroup
		uploaded    [quad.VariantCount]bool
		lastBinding *quad.TextureBinding
		lastGroup   hal.BindGroup
	)
	for i := range cmds {
		cmd := &cmds[i]
		p := r.pipelines[cmd.Variant]
		stride := cmd.Variant.Layout().VertexStride

		if cmd.UploadUniform || !uploaded[cmd.Variant] {
			bg, err := r.createUniformGroup(res, p, cmd.Uniform[:cmd.Variant.Layout().UniformSize])
			if err != nil {
				res.destroy(r.device)
				return nil, fmt.Errorf("draw %d (%s): %w", cmd.Seq, cmd.Variant, err)
			}
			uniforms[cmd.Variant] = bg
			uploaded[cmd.Variant] = true
		}

		rec := drawRecord{
			pipeline: p.pipeline,
			uniform:  uniforms[cmd.Variant],
			offset:   uint64(len(vertexData)),
			count:    cmd.VertexCount,
		}

		if cmd.Variant.Layout().Textured {
			if lastBinding == nil || *lastBinding != *cmd.Texture {
				bg, err := r.createTextureGroup(res, p, cmd.Texture)
				if err != nil {
					res.destroy(r.device)
					return nil, fmt.Errorf("draw %d (%s): %w", cmd.Seq, cmd.Variant, err)
				}
				lastBinding, lastGroup = cmd.Texture, bg
			}
			rec.texture = lastGroup
		}

		vertexData = append(vertexData, cmd.Vertices[:int(cmd.VertexCount)*stride]...)
		res.draws = append(res.draws, rec)
	}

	if len(vertexData) > 0 {
		vertBuf, err := r.createAndUploadBuffer("quad_vertices", vertexData,
			gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
		if err != nil {
			res.destroy(r.device)
			return nil, err
		}
		res.vertBuf = vertBuf
	}
	return res, nil
}

// createUniformGroup uploads one globals generation and binds it at group 0.
func (r *Renderer) createUniformGroup(res *frameResources, p *variantPipeline, data []byte) (hal.BindGroup, error) {
	buf, err := r.createAndUploadBuffer("quad_globals", data,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	res.uniformBufs = append(res.uniformBufs, buf)

	bg, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "quad_globals_bind",
		Layout: p.uniformLayout(),
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: buf.NativeHandle(), Offset: 0, Size: uint64(len(data)),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create globals bind group: %w", err)
	}
	res.bindGroups = append(res.bindGroups, bg)
	return bg, nil
}

// createTextureGroup binds a texture view and sampler at group 1.
func (r *Renderer) createTextureGroup(res *frameResources, p *variantPipeline, b *quad.TextureBinding) (hal.BindGroup, error) {
	view, sampler, err := r.textures.resolve(r.device, r.queue, b)
	if err != nil {
		return nil, err
	}
	bg, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "quad_texture_bind",
		Layout: p.textureLayout(),
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{
				TextureView: view.NativeHandle(),
			}},
			{Binding: 1, Resource: gputypes.SamplerBinding{
				Sampler: nativeHandle(sampler),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create texture bind group: %w", err)
	}
	res.bindGroups = append(res.bindGroups, bg)
	return bg, nil
}

// createAndUploadBuffer creates a GPU buffer and uploads data.
func (r *Renderer) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	r.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// recordDraws records every draw into rp in submission order.
func (r *frameResources) recordDraws(rp hal.RenderPassEncoder) {
	for _, d := range r.draws {
		rp.SetPipeline(d.pipeline)
		rp.SetBindGroup(0, d.uniform, nil)
		if d.texture != nil {
			rp.SetBindGroup(1, d.texture, nil)
		}
		rp.SetVertexBuffer(0, r.vertBuf, d.offset)
		rp.Draw(d.count, 1, 0, 0)
	}
}
