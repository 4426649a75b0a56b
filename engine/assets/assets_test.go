package assets

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeSPIRV(t *testing.T, dir, name string, words ...uint32) string {
	t.Helper()
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCube(t *testing.T) {
	cube := Cube()
	if len(cube.Parts) != 1 {
		t.Fatalf("cube has %d parts, want 1", len(cube.Parts))
	}
	p := cube.Parts[0]
	if len(p.Positions) != 24 || len(p.Normals) != 24 || len(p.Indices) != 36 {
		t.Fatalf("cube has %d positions, %d normals, %d indices", len(p.Positions), len(p.Normals), len(p.Indices))
	}
	// every face normal points away from the center
	for i, n := range p.Normals {
		if n.Dot(p.Positions[i]) <= 0 {
			t.Fatalf("normal %v at vertex %v points inward", n, p.Positions[i])
		}
	}
}

func TestBuildMesh(t *testing.T) {
	model := Cube()
	model.Parts = append(model.Parts, Part{
		Name:      "tri",
		Positions: model.Parts[0].Positions[:3],
		Normals:   model.Parts[0].Normals[:3],
		Indices:   []uint16{0, 1, 2},
	})

	mesh, err := BuildMesh(model, 2)
	if err != nil {
		t.Fatalf("BuildMesh: %v", err)
	}

	wantVertex := []int32{0, 24, 27, 51}
	wantIndex := []uint32{0, 36, 39, 75}
	if mesh.Batches.Len() != 4 {
		t.Fatalf("%d batches, want 4", mesh.Batches.Len())
	}
	for i := range wantVertex {
		if mesh.Batches.VertexOffsets[i] != wantVertex[i] || mesh.Batches.IndexOffsets[i] != wantIndex[i] {
			t.Errorf("batch %d = (%d, %d), want (%d, %d)", i,
				mesh.Batches.VertexOffsets[i], mesh.Batches.IndexOffsets[i], wantVertex[i], wantIndex[i])
		}
	}
	total := uint32(len(mesh.Indices))
	if total != 78 {
		t.Fatalf("%d indices, want 78", total)
	}
	if got := mesh.Batches.IndexCount(3, total); got != 3 {
		t.Fatalf("last batch draws %d indices, want 3", got)
	}
}

func TestBuildMeshRejectsBadInput(t *testing.T) {
	tests := []struct {
		name      string
		model     *Model
		instances int
	}{
		{"nil model", nil, 1},
		{"no parts", &Model{}, 1},
		{"zero instances", Cube(), 0},
		{"empty part", &Model{Parts: []Part{{Name: "empty"}}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildMesh(tt.model, tt.instances); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestShaderLoader(t *testing.T) {
	dir := t.TempDir()
	good := writeSPIRV(t, dir, "good.spv", spirvMagic, 0x00010000, 0, 1, 0)
	bad := writeSPIRV(t, dir, "bad.spv", 0xdeadbeef)
	short := filepath.Join(dir, "short.spv")
	if err := os.WriteFile(short, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	sl := &ShaderLoader{}
	res, err := sl.Load(good)
	if err != nil {
		t.Fatalf("Load(good): %v", err)
	}
	if res.Type != ResourceTypeShader || res.DataSize != 20 || len(res.Data.([]byte)) != 20 {
		t.Fatalf("unexpected resource %+v", res)
	}
	for _, p := range []string{bad, short, filepath.Join(dir, "missing.spv")} {
		if _, err := sl.Load(p); err == nil {
			t.Errorf("Load(%s) should fail", filepath.Base(p))
		}
	}
}

func TestLoadBundle(t *testing.T) {
	dir := t.TempDir()
	vert := writeSPIRV(t, dir, "mesh.vert.spv", spirvMagic, 1)
	frag := writeSPIRV(t, dir, "mesh.frag.spv", spirvMagic, 2)

	am := NewAssetManager()
	b, err := am.LoadBundle(context.Background(), "", vert, frag)
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if b.Model.Name != "cube" {
		t.Errorf("default model = %q, want cube", b.Model.Name)
	}
	if binary.LittleEndian.Uint32(b.Shaders.Vertex[4:]) != 1 || binary.LittleEndian.Uint32(b.Shaders.Fragment[4:]) != 2 {
		t.Error("shader stages were swapped")
	}
	if _, ok := am.Info(vert); !ok {
		t.Error("loaded shader missing from the asset index")
	}

	if _, err := am.LoadBundle(context.Background(), "", frag, filepath.Join(dir, "missing.spv")); err == nil {
		t.Error("a missing shader must fail the bundle")
	}
	if _, err := am.LoadBundle(context.Background(), "model.obj", vert, frag); err == nil {
		t.Error("a non glTF model path must be rejected")
	}
}
