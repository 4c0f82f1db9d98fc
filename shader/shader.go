// Package shader holds the WGSL sources of the pipeline variants and their
// binding contract.
//
// Every module exposes exactly one vertex entry point (vs_main) and one
// fragment entry point (fs_main). Group 0 binding 0 is the globals uniform.
// TexturedQuad additionally declares its texture at group 1 binding 0 and
// its sampler at group 1 binding 1.
package shader

import (
	"cmp"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/quad"
)

//go:embed wgsl/flat_triangle.wgsl
var flatTriangleSource string

//go:embed wgsl/flat_quad_2d.wgsl
var flatQuad2DSource string

//go:embed wgsl/flat_quad_3d_view.wgsl
var flatQuad3DViewSource string

//go:embed wgsl/textured_quad.wgsl
var texturedQuadSource string

// Entry point names shared by all modules.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// ErrContract is returned when a shader source does not declare the entry
// points or bindings its variant requires.
var ErrContract = errors.New("shader: binding contract violated")

// Source returns the WGSL source of v.
func Source(v quad.Variant) (string, error) {
	switch v {
	case quad.FlatTriangle:
		return flatTriangleSource, nil
	case quad.FlatQuad2D:
		return flatQuad2DSource, nil
	case quad.FlatQuad3DView:
		return flatQuad3DViewSource, nil
	case quad.TexturedQuad:
		return texturedQuadSource, nil
	default:
		return "", fmt.Errorf("shader: %w: %s", quad.ErrUnknownVariant, v)
	}
}

// Label returns a debug label for GPU objects of v, e.g. "quad_textured_quad".
func Label(v quad.Variant) string {
	switch v {
	case quad.FlatTriangle:
		return "quad_flat_triangle"
	case quad.FlatQuad2D:
		return "quad_flat_quad_2d"
	case quad.FlatQuad3DView:
		return "quad_flat_quad_3d_view"
	case quad.TexturedQuad:
		return "quad_textured_quad"
	default:
		return "quad_unknown"
	}
}

// Compile translates the WGSL source of v to SPIR-V words with naga.
func Compile(v quad.Variant) ([]uint32, error) {
	src, err := Source(v)
	if err != nil {
		return nil, err
	}
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("shader: compile %s: %w", Label(v), err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("shader: compile %s: SPIR-V length %d is not word aligned", Label(v), len(spirvBytes))
	}

	// SPIR-V is a stream of little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// BindingKind is the resource type of a binding slot.
type BindingKind uint8

// Binding kinds.
const (
	BindingUniform BindingKind = iota
	BindingTexture
	BindingSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingUniform:
		return "uniform"
	case BindingTexture:
		return "texture"
	case BindingSampler:
		return "sampler"
	default:
		return "BindingKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Binding is one resource slot a module declares.
type Binding struct {
	Group   uint32
	Binding uint32
	Kind    BindingKind
}

// Bindings returns the resource slots v declares, ordered by group then
// binding. The GPU renderer builds its bind group layouts from this list.
func Bindings(v quad.Variant) []Binding {
	b := []Binding{{Group: 0, Binding: 0, Kind: BindingUniform}}
	if v.Layout().Textured {
		b = append(b,
			Binding{Group: 1, Binding: 0, Kind: BindingTexture},
			Binding{Group: 1, Binding: 1, Kind: BindingSampler},
		)
	}
	return b
}

// CheckContract verifies that the source of v declares exactly one vertex
// and one fragment entry point with the shared names, and exactly the
// bindings listed by Bindings(v). The source is parsed and lowered with naga,
// so comments and unused text never count as declarations.
func CheckContract(v quad.Variant) error {
	src, err := Source(v)
	if err != nil {
		return err
	}
	return checkSource(v, src)
}

func checkSource(v quad.Variant, src string) error {
	ast, err := naga.Parse(src)
	if err != nil {
		return fmt.Errorf("shader: parse %s: %w", Label(v), err)
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return fmt.Errorf("shader: lower %s: %w", Label(v), err)
	}

	if err := checkEntry(v, module, ir.StageVertex, VertexEntryPoint); err != nil {
		return err
	}
	if err := checkEntry(v, module, ir.StageFragment, FragmentEntryPoint); err != nil {
		return err
	}

	got, err := moduleBindings(v, module)
	if err != nil {
		return err
	}
	want := Bindings(v)
	if len(got) != len(want) {
		return fmt.Errorf("%w: %s declares %d bindings, want %d", ErrContract, Label(v), len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			return fmt.Errorf("%w: %s binding %d is %s at @group(%d) @binding(%d), want %s at @group(%d) @binding(%d)",
				ErrContract, Label(v), i, got[i].Kind, got[i].Group, got[i].Binding, want[i].Kind, want[i].Group, want[i].Binding)
		}
	}
	return nil
}

func checkEntry(v quad.Variant, m *ir.Module, stage ir.ShaderStage, name string) error {
	var names []string
	for _, ep := range m.EntryPoints {
		if ep.Stage == stage {
			names = append(names, ep.Name)
		}
	}
	if len(names) != 1 {
		return fmt.Errorf("%w: %s has %d %s entry points, want 1", ErrContract, Label(v), len(names), name)
	}
	if names[0] != name {
		return fmt.Errorf("%w: %s entry point is %q, want %q", ErrContract, Label(v), names[0], name)
	}
	return nil
}

// moduleBindings lists the resource globals of m ordered by group then
// binding.
func moduleBindings(v quad.Variant, m *ir.Module) ([]Binding, error) {
	var out []Binding
	for _, g := range m.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		kind, ok := globalKind(m, g)
		if !ok {
			return nil, fmt.Errorf("%w: %s global %q at @group(%d) @binding(%d) is not a uniform, texture or sampler",
				ErrContract, Label(v), g.Name, g.Binding.Group, g.Binding.Binding)
		}
		out = append(out, Binding{Group: g.Binding.Group, Binding: g.Binding.Binding, Kind: kind})
	}
	slices.SortFunc(out, func(a, b Binding) int {
		if c := cmp.Compare(a.Group, b.Group); c != 0 {
			return c
		}
		return cmp.Compare(a.Binding, b.Binding)
	})
	return out, nil
}

func globalKind(m *ir.Module, g ir.GlobalVariable) (BindingKind, bool) {
	if g.Space == ir.SpaceUniform {
		return BindingUniform, true
	}
	if int(g.Type) >= len(m.Types) {
		return 0, false
	}
	switch m.Types[g.Type].Inner.(type) {
	case ir.SamplerType:
		return BindingSampler, true
	case ir.ImageType:
		return BindingTexture, true
	default:
		return 0, false
	}
}
