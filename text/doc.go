// Package text shapes strings into glyph runs and turns them into
// TexturedQuad geometry.
//
// Shaping uses go-text/typesetting (HarfBuzz), outlines come from
// golang.org/x/image/font/sfnt and are rasterized with
// golang.org/x/image/vector into a gray atlas.Atlas:
//
//	f, _ := text.ParseFont(goregular.TTF)
//	run, _ := text.NewShaper().Shape(f, "Hello", 24)
//
//	a := atlas.New(atlas.Config{Kind: atlas.KindGray})
//	var b quad.StreamBuilder
//	_ = b.BeginShape(quad.TexturedQuad)
//	_ = run.Quads(&b, a, quad.Vec2{X: 10, Y: 40}, quad.White)
//	s, _ := b.Finish()
//
//	_ = frame.BindTexture(a.Binding(quad.FilterLinear))
//	_ = frame.Draw(quad.TexturedQuad, s)
package text
