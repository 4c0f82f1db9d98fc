// Package atlas packs glyph masks and small images into a single texture
// for TexturedQuad draws.
//
// An Atlas hands out a Region per Key and converts it to texture
// coordinates with UV:
//
//	a := atlas.New(atlas.Config{Kind: atlas.KindGray})
//	r, err := a.Insert(atlas.Key{Source: 1, ID: 42, Size: 16}, mask)
//	if err != nil {
//		return err
//	}
//	_ = b.PushQuad(dst, tint, a.UV(r))
//	f.BindTexture(a.Binding(quad.FilterLinear))
//
// Regions are packed with a shelf Allocator and never move, so a UV stays
// valid for the lifetime of the atlas or until Clear.
package atlas
