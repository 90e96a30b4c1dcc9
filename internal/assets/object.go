package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sort"
)

type Shape string

const (
	ShapeCubeAll      Shape = "cube_all"
	ShapeCubeSided    Shape = "cube_sided"
	ShapeCubeColumn   Shape = "cube_column"
	ShapeItemHandheld Shape = "item_handheld"
)

var shapeFaces = map[string]struct {
	shape Shape
	faces []string
}{
	ParentCubeAll:    {ShapeCubeAll, []string{"all"}},
	ParentCube:       {ShapeCubeSided, []string{"up", "north", "west", "east", "south"}},
	ParentCubeColumn: {ShapeCubeColumn, []string{"end", "side"}},
	ParentHandheld:   {ShapeItemHandheld, []string{"layer0"}},
}

// ObjectAsset is a render-ready block or item: its shape and one image blob
// per required face.
type ObjectAsset struct {
	Name  string
	Shape Shape
	Faces map[string][]byte
}

// Top is the face seen from above in the world view.
func (a *ObjectAsset) Top() []byte {
	switch a.Shape {
	case ShapeCubeAll:
		return a.Faces["all"]
	case ShapeCubeSided:
		return a.Faces["up"]
	case ShapeCubeColumn:
		return a.Faces["end"]
	}
	return a.Faces["layer0"]
}

// IconFaces returns the top, left and right faces used for the isometric icon.
func (a *ObjectAsset) IconFaces() (top, left, right []byte) {
	switch a.Shape {
	case ShapeCubeSided:
		return a.Faces["up"], a.Faces["west"], a.Faces["south"]
	case ShapeCubeColumn:
		return a.Faces["end"], a.Faces["side"], a.Faces["side"]
	case ShapeCubeAll:
		all := a.Faces["all"]
		return all, all, all
	}
	return nil, nil, nil
}

// Materialize loads every face a model requires through the loader.
func Materialize(ctx context.Context, l *Loader, store Store, name string, m Model) (*ObjectAsset, error) {
	sf, ok := shapeFaces[m.Parent]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported parent %q", name, m.Parent)
	}
	a := &ObjectAsset{Name: name, Shape: sf.shape, Faces: make(map[string][]byte, len(sf.faces))}
	for _, face := range sf.faces {
		ref, ok := m.Textures[face]
		if !ok {
			return nil, fmt.Errorf("%s: %s model has no %q texture", name, m.Parent, face)
		}
		a.Faces[face], _ = l.Load(ctx, store, ref)
	}
	return a, nil
}

// Decode parses a PNG blob, substituting the placeholder for undecodable data.
func Decode(blob []byte) image.Image {
	img, err := png.Decode(bytes.NewReader(blob))
	if err != nil {
		return placeholderImage()
	}
	return img
}

func sortedNames(m map[string]*ObjectAsset) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
