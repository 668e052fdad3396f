package voxelrender

import (
	"testing"
)

func TestCalcVoxelIdx_RoundTrip(t *testing.T) {
	for idx := 0; idx < VoxelsInChunk; idx++ {
		x, y, z := IdxToPos(idx)
		if got := CalcVoxelIdx(x, y, z); got != idx {
			t.Fatalf("Index %d round-tripped to %d via (%d, %d, %d)", idx, got, x, y, z)
		}
	}
}

func TestCalcVoxelIdx_Layout(t *testing.T) {
	// x is the fastest axis, then z, then y.
	if got := CalcVoxelIdx(1, 0, 0); got != 1 {
		t.Errorf("Expected x stride 1, got %d", got)
	}
	if got := CalcVoxelIdx(0, 0, 1); got != ChunkEdge {
		t.Errorf("Expected z stride %d, got %d", ChunkEdge, got)
	}
	if got := CalcVoxelIdx(0, 1, 0); got != ChunkEdge*ChunkEdge {
		t.Errorf("Expected y stride %d, got %d", ChunkEdge*ChunkEdge, got)
	}
}

func TestCalcVoxelIdx_OutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected a panic for out-of-range coordinates")
		}
	}()
	CalcVoxelIdx(ChunkEdge, 0, 0)
}

func TestPosition_Neighbor(t *testing.T) {
	origin := Position{}
	for _, dir := range AllDirections {
		n := origin.Neighbor(dir)
		if n == origin {
			t.Errorf("Neighbor in direction %v did not move", dir)
		}
		back := n.Neighbor(dir.Reverse())
		if back != origin {
			t.Errorf("Reverse of %v did not return to origin, got %v", dir, back)
		}
	}
}

func TestExtent_ChunkKeys(t *testing.T) {
	e := Extent{
		Min:   Position{X: -ChunkEdge, Y: 0, Z: -ChunkEdge},
		Shape: Position{X: 3 * ChunkEdge, Y: ChunkEdge, Z: 3 * ChunkEdge},
	}

	var keys []Position
	for key := range e.ChunkKeys() {
		keys = append(keys, key)
	}
	if len(keys) != 9 {
		t.Fatalf("Expected 9 chunk keys, got %d", len(keys))
	}
	for _, key := range keys {
		if key.X < -1 || key.X > 1 || key.Y != 0 || key.Z < -1 || key.Z > 1 {
			t.Errorf("Key %v outside the extent", key)
		}
	}
}

func TestExtent_ChunkKeysRestartable(t *testing.T) {
	e := Extent{Min: Position{}, Shape: ChunkShape}
	seq := e.ChunkKeys()

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 1 || second != 1 {
		t.Errorf("Expected the sequence to be restartable, got %d then %d", first, second)
	}
}

func TestExtent_ChunkKeysEarlyStop(t *testing.T) {
	e := Extent{
		Min:   Position{},
		Shape: Position{X: 2 * ChunkEdge, Y: 2 * ChunkEdge, Z: 2 * ChunkEdge},
	}
	count := 0
	for range e.ChunkKeys() {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Errorf("Expected iteration to stop at 3, got %d", count)
	}
}

func TestExtent_ContainsChunk(t *testing.T) {
	e := Extent{
		Min:   Position{X: -ChunkEdge, Y: -ChunkEdge, Z: -ChunkEdge},
		Shape: Position{X: 3 * ChunkEdge, Y: 3 * ChunkEdge, Z: 3 * ChunkEdge},
	}
	if !e.ContainsChunk(Position{}) {
		t.Errorf("Expected origin chunk inside extent")
	}
	if e.ContainsChunk(Position{X: 2}) {
		t.Errorf("Expected chunk (2,0,0) outside extent")
	}
}

func TestFloorDiv(t *testing.T) {
	cases := []struct {
		a, b, want int32
	}{
		{0, 16, 0},
		{15, 16, 0},
		{16, 16, 1},
		{-1, 16, -1},
		{-16, 16, -1},
		{-17, 16, -2},
	}
	for _, c := range cases {
		if got := floorDiv(c.a, c.b); got != c.want {
			t.Errorf("floorDiv(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCalcCenterPoint(t *testing.T) {
	cases := []struct {
		key  Position
		want [3]float32
	}{
		// The origin chunk spans world [-16, 16) on every axis.
		{Position{}, [3]float32{0, 0, 0}},
		{Position{X: 1}, [3]float32{32, 0, 0}},
		{Position{Y: -1}, [3]float32{0, -32, 0}},
	}
	for _, c := range cases {
		center := CalcCenterPoint(c.key)
		for i := 0; i < 3; i++ {
			if center[i] != c.want[i] {
				t.Fatalf("Expected chunk %v center %v, got %v", c.key, c.want, center)
			}
		}
	}
}

func TestCalcRadius(t *testing.T) {
	// Half the world-space cube diagonal: 16 * sqrt(3).
	want := float32(ChunkEdge) * VoxelSize / 2 * 1.732051
	if got := CalcRadius(); got != want {
		t.Errorf("Expected chunk cull radius %v, got %v", want, got)
	}
	if got := CalcRadius(); got <= ChunkEdge*VoxelSize/2 {
		t.Errorf("Cull radius %v must exceed the half-edge", got)
	}
}
