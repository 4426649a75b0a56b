package assets

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// maxPartVertices is the most vertices a part can address with 16-bit
// indices.
const maxPartVertices = 1 << 16

// Part is one indexed triangle list. Indices are relative to the part's
// own vertices.
type Part struct {
	Name      string
	Positions []math.Vec3
	Normals   []math.Vec3
	Indices   []uint16
}

type Model struct {
	Name  string
	Parts []Part
}

// ModelLoader imports every triangle primitive of a glTF or GLB file as a
// part.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string) (*Resource, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}

	model := &Model{Name: filepath.Base(path)}
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			part, err := readPrimitive(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("%s: mesh %d primitive %d: %w", path, mi, pi, err)
			}
			part.Name = fmt.Sprintf("%s_p%d", gm.Name, pi)
			model.Parts = append(model.Parts, part)
		}
	}
	if len(model.Parts) == 0 {
		return nil, fmt.Errorf("%s: no mesh primitives", path)
	}

	return &Resource{
		Name:     model.Name,
		FullPath: path,
		Type:     ResourceTypeModel,
		Data:     model,
	}, nil
}

func readPrimitive(doc *gltf.Document, prim *gltf.Primitive) (Part, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return Part{}, fmt.Errorf("unsupported primitive mode %d", prim.Mode)
	}
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return Part{}, errors.New("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return Part{}, fmt.Errorf("positions: %w", err)
	}
	if len(positions) > maxPartVertices {
		return Part{}, fmt.Errorf("%d vertices do not fit 16-bit indices", len(positions))
	}

	part := Part{Positions: make([]math.Vec3, len(positions))}
	for i, p := range positions {
		part.Positions[i] = math.NewVec3(p[0], p[1], p[2])
	}

	if prim.Indices != nil {
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return Part{}, fmt.Errorf("indices: %w", err)
		}
		part.Indices = make([]uint16, len(indices))
		for i, idx := range indices {
			if int(idx) >= len(positions) {
				return Part{}, fmt.Errorf("index %d out of range of %d vertices", idx, len(positions))
			}
			part.Indices[i] = uint16(idx)
		}
	} else {
		part.Indices = make([]uint16, len(positions))
		for i := range part.Indices {
			part.Indices[i] = uint16(i)
		}
	}

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if err != nil {
			return Part{}, fmt.Errorf("normals: %w", err)
		}
		if len(normals) == len(positions) {
			part.Normals = make([]math.Vec3, len(normals))
			for i, n := range normals {
				part.Normals[i] = math.NewVec3(n[0], n[1], n[2])
			}
		}
	}
	if part.Normals == nil {
		part.Normals = math.GenerateNormals(part.Positions, part.Indices)
	}
	return part, nil
}

// BuildMesh lays out instances copies of every part back to back. Each copy
// of each part becomes one draw batch, ordered instance by instance.
func BuildMesh(model *Model, instances int) (*renderer.Mesh, error) {
	if model == nil || len(model.Parts) == 0 {
		return nil, errors.New("model has no parts")
	}
	if instances <= 0 {
		return nil, fmt.Errorf("instance count %d must be positive", instances)
	}

	mesh := &renderer.Mesh{}
	for n := 0; n < instances; n++ {
		for _, part := range model.Parts {
			if len(part.Indices) == 0 {
				return nil, fmt.Errorf("part %q has no indices", part.Name)
			}
			mesh.Batches.Add(int32(len(mesh.Positions)), uint32(len(mesh.Indices)))
			mesh.Positions = append(mesh.Positions, part.Positions...)
			mesh.Normals = append(mesh.Normals, part.Normals...)
			mesh.Indices = append(mesh.Indices, part.Indices...)
		}
	}
	return mesh, mesh.Validate()
}
