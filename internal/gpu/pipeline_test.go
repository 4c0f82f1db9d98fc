//go:build !nogpu

package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/quad"
)

func TestVertexLayoutMatchesStream(t *testing.T) {
	tests := []struct {
		variant quad.Variant
		stride  uint64
		formats []gputypes.VertexFormat
		offsets []uint64
	}{
		{quad.FlatTriangle, 8, []gputypes.VertexFormat{gputypes.VertexFormatFloat32x2}, []uint64{0}},
		{quad.FlatQuad2D, 24, []gputypes.VertexFormat{gputypes.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x4}, []uint64{0, 8}},
		{quad.FlatQuad3DView, 8, []gputypes.VertexFormat{gputypes.VertexFormatFloat32x2}, []uint64{0}},
		{quad.TexturedQuad, 32, []gputypes.VertexFormat{
			gputypes.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x4,
		}, []uint64{0, 8, 16}},
	}
	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			layouts := vertexLayout(tt.variant)
			if len(layouts) != 1 {
				t.Fatalf("buffers = %d, want 1", len(layouts))
			}
			l := layouts[0]
			if l.ArrayStride != tt.stride {
				t.Errorf("stride = %d, want %d", l.ArrayStride, tt.stride)
			}
			if l.ArrayStride != uint64(tt.variant.Layout().VertexStride) {
				t.Errorf("stride %d disagrees with quad layout %d", l.ArrayStride, tt.variant.Layout().VertexStride)
			}
			if len(l.Attributes) != len(tt.formats) {
				t.Fatalf("attributes = %d, want %d", len(l.Attributes), len(tt.formats))
			}
			for i, a := range l.Attributes {
				if a.Format != tt.formats[i] || a.Offset != tt.offsets[i] || a.ShaderLocation != uint32(i) {
					t.Errorf("attribute %d = {%v, %d, %d}, want {%v, %d, %d}",
						i, a.Format, a.Offset, a.ShaderLocation, tt.formats[i], tt.offsets[i], i)
				}
			}
		})
	}
}

func TestBindGroupLayoutEntries(t *testing.T) {
	flat := bindGroupLayoutEntries(quad.FlatQuad2D)
	if len(flat) != 1 || len(flat[0]) != 1 {
		t.Fatalf("flat groups = %v, want one uniform entry", flat)
	}
	if flat[0][0].Buffer == nil || flat[0][0].Buffer.Type != gputypes.BufferBindingTypeUniform {
		t.Error("group 0 binding 0 should be a uniform buffer")
	}

	textured := bindGroupLayoutEntries(quad.TexturedQuad)
	if len(textured) != 2 || len(textured[1]) != 2 {
		t.Fatalf("textured groups = %d, want 2 with 2 entries in group 1", len(textured))
	}
	if textured[1][0].Binding != 0 || textured[1][0].Texture == nil {
		t.Error("group 1 binding 0 should be a texture")
	}
	if textured[1][1].Binding != 1 || textured[1][1].Sampler == nil {
		t.Error("group 1 binding 1 should be a sampler")
	}
}

func TestColorTargetsBlendPremultiplied(t *testing.T) {
	targets := colorTargets(gputypes.TextureFormatBGRA8Unorm)
	if len(targets) != 1 {
		t.Fatalf("got %d color targets, want 1", len(targets))
	}
	tgt := targets[0]
	if tgt.Format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("format = %v, want BGRA8Unorm", tgt.Format)
	}
	if tgt.Blend == nil {
		t.Fatal("color target has no blend state, fragments would overwrite the target")
	}
	if *tgt.Blend != gputypes.BlendStatePremultiplied() {
		t.Errorf("blend = %+v, want premultiplied source-over", *tgt.Blend)
	}
}

func TestVariantPipelineLifecycle(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	for _, v := range quad.Variants() {
		t.Run(v.String(), func(t *testing.T) {
			p := newVariantPipeline(device, v, gputypes.TextureFormatRGBA8Unorm, false)
			if err := p.ensurePipeline(); err != nil {
				t.Fatalf("ensurePipeline failed: %v", err)
			}
			first := p.pipeline
			if err := p.ensurePipeline(); err != nil {
				t.Fatalf("second ensurePipeline failed: %v", err)
			}
			if p.pipeline != first {
				t.Error("ensurePipeline recreated an existing pipeline")
			}

			wantGroups := 1
			if v.Layout().Textured {
				wantGroups = 2
			}
			if len(p.groups) != wantGroups {
				t.Errorf("groups = %d, want %d", len(p.groups), wantGroups)
			}
			if (p.textureLayout() != nil) != v.Layout().Textured {
				t.Errorf("textureLayout presence = %v, want %v", p.textureLayout() != nil, v.Layout().Textured)
			}

			p.destroyPipeline()
			p.destroyPipeline()
			if p.pipeline != nil || p.pipeLayout != nil || p.groups != nil || p.shader != nil {
				t.Error("destroyPipeline left resources behind")
			}
		})
	}
}

func TestVariantPipelineNilDevice(t *testing.T) {
	p := newVariantPipeline(nil, quad.FlatTriangle, gputypes.TextureFormatRGBA8Unorm, false)
	p.destroyPipeline()
}
