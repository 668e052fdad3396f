package voxelrender

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func testRegistry() *VoxelRegistry {
	reg := NewVoxelRegistry()
	reg.Register(OpaqueVoxelName, false)
	reg.Register(TransparentVoxelName, true)
	return reg
}

func flatGenerator(t *testing.T, reg *VoxelRegistry) GeneratorFunc {
	t.Helper()
	return func(pos Position) ([]VoxelID, Meta, error) {
		return FlatWorldType{}.Generate(pos, reg)
	}
}

func TestMap_GetOrInsertGeneratesOnce(t *testing.T) {
	m := NewMap(1, testCodec(t))
	reg := testRegistry()

	var calls atomic.Int32
	gen := func(pos Position) ([]VoxelID, Meta, error) {
		calls.Add(1)
		return FlatWorldType{}.Generate(pos, reg)
	}

	first, err := m.GetOrInsert(Position{}, gen)
	if err != nil {
		t.Fatalf("GetOrInsert failed: %v", err)
	}
	second, err := m.GetOrInsert(Position{}, gen)
	if err != nil {
		t.Fatalf("GetOrInsert failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected the same chunk back")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected one generation, got %d", calls.Load())
	}
}

func TestMap_GetOrInsertConcurrent(t *testing.T) {
	m := NewMap(1, testCodec(t))
	reg := testRegistry()

	var calls atomic.Int32
	gen := func(pos Position) ([]VoxelID, Meta, error) {
		calls.Add(1)
		return FlatWorldType{}.Generate(pos, reg)
	}

	var wg sync.WaitGroup
	chunks := make([]*Chunk, 16)
	for i := range chunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chunk, err := m.GetOrInsert(Position{}, gen)
			if err != nil {
				t.Errorf("GetOrInsert failed: %v", err)
				return
			}
			chunks[i] = chunk
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("Expected a single generation under concurrency, got %d", calls.Load())
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i] != chunks[0] {
			t.Fatalf("Goroutine %d got a different chunk", i)
		}
	}
}

func TestMap_InsertKeepsFirst(t *testing.T) {
	m := NewMap(1, testCodec(t))
	a := NewChunk(make([]VoxelID, VoxelsInChunk), NewMeta(), testCodec(t))
	b := NewChunk(make([]VoxelID, VoxelsInChunk), NewMeta(), testCodec(t))

	if got := m.Insert(Position{}, a); got != a {
		t.Fatalf("Expected the inserted chunk back")
	}
	if got := m.Insert(Position{}, b); got != a {
		t.Errorf("Expected the first chunk to win")
	}
}

func TestMap_VoxelAtAmbientForMissingChunk(t *testing.T) {
	m := NewMap(1, testCodec(t))

	voxel, err := m.VoxelAt(Position{X: 100, Y: 100, Z: 100})
	if err != nil {
		t.Fatalf("VoxelAt failed: %v", err)
	}
	if voxel != AmbientVoxel {
		t.Errorf("Expected the ambient voxel, got %d", voxel)
	}
}

func TestMap_VoxelAtNegativeCoordinates(t *testing.T) {
	m := NewMap(1, testCodec(t))
	reg := testRegistry()
	opaque, _ := reg.KeyFromName(OpaqueVoxelName)

	if _, err := m.GetOrInsert(Position{Y: -1}, flatGenerator(t, reg)); err != nil {
		t.Fatalf("GetOrInsert failed: %v", err)
	}

	voxel, err := m.VoxelAt(Position{X: -1, Y: -1, Z: -1})
	if err != nil {
		t.Fatalf("VoxelAt failed: %v", err)
	}
	if voxel != opaque {
		t.Errorf("Expected the underground to be opaque, got %d", voxel)
	}
}

func TestFlatWorldType_AboveGround(t *testing.T) {
	reg := testRegistry()
	transparent, _ := reg.KeyFromName(TransparentVoxelName)

	voxels, meta, err := FlatWorldType{}.Generate(Position{Y: 1}, reg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for i, v := range voxels {
		if v != transparent {
			t.Fatalf("Voxel %d is %d, want transparent", i, v)
		}
	}
	if !meta.IsVisible() {
		t.Errorf("Expected sky chunks visible")
	}
	if meta.Transparency() != 63 {
		t.Errorf("Expected transparency 63, got %d", meta.Transparency())
	}
	if meta.VisibleCount() != 0 {
		t.Errorf("Expected no visible voxels, got %d", meta.VisibleCount())
	}
}

func TestFlatWorldType_BelowGround(t *testing.T) {
	reg := testRegistry()
	opaque, _ := reg.KeyFromName(OpaqueVoxelName)

	voxels, meta, err := FlatWorldType{}.Generate(Position{Y: -1}, reg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for i, v := range voxels {
		if v != opaque {
			t.Fatalf("Voxel %d is %d, want opaque", i, v)
		}
	}
	if meta.IsVisible() {
		t.Errorf("Expected underground chunks hidden")
	}
}

func TestFlatWorldType_GroundLayer(t *testing.T) {
	reg := testRegistry()
	opaque, _ := reg.KeyFromName(OpaqueVoxelName)
	transparent, _ := reg.KeyFromName(TransparentVoxelName)

	voxels, meta, err := FlatWorldType{}.Generate(Position{}, reg)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for i, v := range voxels {
		_, y, _ := IdxToPos(i)
		if y == 0 && v != opaque {
			t.Fatalf("Floor voxel %d is %d, want opaque", i, v)
		}
		if y > 0 && v != transparent {
			t.Fatalf("Air voxel %d is %d, want transparent", i, v)
		}
	}
	if !meta.IsVisible() {
		t.Errorf("Expected the ground chunk visible")
	}
	if meta.Transparency() != 31 {
		t.Errorf("Expected transparency 31, got %d", meta.Transparency())
	}
	if meta.VisibleCount() != ChunkEdge*ChunkEdge {
		t.Errorf("Expected %d visible floor voxels, got %d", ChunkEdge*ChunkEdge, meta.VisibleCount())
	}
}

func TestWorldTypeRegistry(t *testing.T) {
	reg := NewWorldTypeRegistry()

	id := reg.Register(FlatWorldType{})
	if id != 1 {
		t.Errorf("Expected first world type id 1, got %d", id)
	}

	wt, err := reg.WorldType(id)
	if err != nil {
		t.Fatalf("WorldType failed: %v", err)
	}
	if wt.Name() != "FlatWorldType" {
		t.Errorf("Expected FlatWorldType, got %q", wt.Name())
	}

	if _, err := reg.WorldType(99); !errors.Is(err, ErrUnknownWorldType) {
		t.Errorf("Expected ErrUnknownWorldType, got %v", err)
	}
}
