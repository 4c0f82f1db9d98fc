//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quad"
	"github.com/gogpu/quad/shader"
)

// variantPipeline holds the GPU objects of one variant: shader module, bind
// group layouts (group 0 globals, group 1 texture for TexturedQuad), pipeline
// layout and render pipeline.
type variantPipeline struct {
	device  hal.Device
	variant quad.Variant
	format  gputypes.TextureFormat
	spirv   bool

	shader     hal.ShaderModule
	groups     []hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
}

func newVariantPipeline(device hal.Device, v quad.Variant, format gputypes.TextureFormat, spirv bool) *variantPipeline {
	return &variantPipeline{
		device:  device,
		variant: v,
		format:  format,
		spirv:   spirv,
	}
}

// ensurePipeline creates the shader, layouts and render pipeline if they
// don't already exist.
func (p *variantPipeline) ensurePipeline() error {
	if p.pipeline != nil {
		return nil
	}
	return p.createPipeline()
}

// uniformLayout returns the group 0 layout.
func (p *variantPipeline) uniformLayout() hal.BindGroupLayout {
	return p.groups[0]
}

// textureLayout returns the group 1 layout, or nil for flat variants.
func (p *variantPipeline) textureLayout() hal.BindGroupLayout {
	if len(p.groups) < 2 {
		return nil
	}
	return p.groups[1]
}

func (p *variantPipeline) createPipeline() error {
	label := shader.Label(p.variant)

	source, err := p.shaderSource()
	if err != nil {
		return err
	}
	module, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: source,
	})
	if err != nil {
		return fmt.Errorf("compile %s shader: %w", label, err)
	}
	p.shader = module

	for group, entries := range bindGroupLayoutEntries(p.variant) {
		layout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s_group%d_layout", label, group),
			Entries: entries,
		})
		if err != nil {
			p.destroyPipeline()
			return fmt.Errorf("create %s group %d layout: %w", label, group, err)
		}
		p.groups = append(p.groups, layout)
	}

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipe_layout",
		BindGroupLayouts: p.groups,
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create %s pipeline layout: %w", label, err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label + "_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: shader.VertexEntryPoint,
			Buffers:    vertexLayout(p.variant),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: shader.FragmentEntryPoint,
			Targets:    colorTargets(p.format),
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create %s pipeline: %w", label, err)
	}
	p.pipeline = pipeline

	slogger().Debug("gpu: pipeline created", "variant", p.variant, "format", p.format, "spirv", p.spirv)
	return nil
}

// shaderSource returns the WGSL source of the variant, or SPIR-V compiled by
// naga when the renderer was configured for it.
func (p *variantPipeline) shaderSource() (hal.ShaderSource, error) {
	if p.spirv {
		words, err := shader.Compile(p.variant)
		if err != nil {
			return hal.ShaderSource{}, err
		}
		return hal.ShaderSource{SPIRV: words}, nil
	}
	src, err := shader.Source(p.variant)
	if err != nil {
		return hal.ShaderSource{}, err
	}
	return hal.ShaderSource{WGSL: src}, nil
}

// destroyPipeline releases all pipeline resources in reverse creation order.
func (p *variantPipeline) destroyPipeline() {
	if p.device == nil {
		return
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	for i := len(p.groups) - 1; i >= 0; i-- {
		p.device.DestroyBindGroupLayout(p.groups[i])
	}
	p.groups = nil
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// bindGroupLayoutEntries converts the binding contract of v into layout
// entries, one slice per bind group.
func bindGroupLayoutEntries(v quad.Variant) [][]gputypes.BindGroupLayoutEntry {
	var groups [][]gputypes.BindGroupLayoutEntry
	for _, b := range shader.Bindings(v) {
		for int(b.Group) >= len(groups) {
			groups = append(groups, nil)
		}
		entry := gputypes.BindGroupLayoutEntry{Binding: b.Binding}
		switch b.Kind {
		case shader.BindingUniform:
			entry.Visibility = gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
			entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
		case shader.BindingTexture:
			entry.Visibility = gputypes.ShaderStageFragment
			entry.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case shader.BindingSampler:
			entry.Visibility = gputypes.ShaderStageFragment
			entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
		}
		groups[b.Group] = append(groups[b.Group], entry)
	}
	return groups
}

// vertexLayout returns the vertex buffer layout of v. The attribute order
// matches quad.Stream.Bytes: position, then uv for textured variants, then
// color for variants with per-vertex color.
func vertexLayout(v quad.Variant) []gputypes.VertexBufferLayout {
	l := v.Layout()
	attrs := []gputypes.VertexAttribute{
		{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
	}
	offset := uint64(8)
	if l.Attrs.Has(quad.AttrUV) {
		attrs = append(attrs, gputypes.VertexAttribute{
			Format: gputypes.VertexFormatFloat32x2, Offset: offset, ShaderLocation: uint32(len(attrs)), //nolint:gosec // at most 3 attributes
		})
		offset += 8
	}
	if l.Attrs.Has(quad.AttrColor) {
		attrs = append(attrs, gputypes.VertexAttribute{
			Format: gputypes.VertexFormatFloat32x4, Offset: offset, ShaderLocation: uint32(len(attrs)), //nolint:gosec // at most 3 attributes
		})
	}
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: uint64(l.VertexStride), //nolint:gosec // stride is a small constant
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  attrs,
		},
	}
}

// colorTargets is the single color target of every pipeline. Fragments are
// premultiplied and composite source-over: src + dst*(1-src.a).
func colorTargets(format gputypes.TextureFormat) []gputypes.ColorTargetState {
	premulBlend := gputypes.BlendStatePremultiplied()
	return []gputypes.ColorTargetState{{
		Format:    format,
		Blend:     &premulBlend,
		WriteMask: gputypes.ColorWriteMaskAll,
	}}
}
