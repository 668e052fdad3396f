package voxelrender

import (
	"fmt"
	"iter"

	"github.com/go-gl/mathgl/mgl32"
)

// Position is a chunk key in chunk space. Multiply by ChunkEdge to get
// the voxel-space minimum corner of the chunk.
type Position struct {
	X, Y, Z int32
}

func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

func (p Position) Scale(s int32) Position {
	return Position{X: p.X * s, Y: p.Y * s, Z: p.Z * s}
}

// VoxelMin is the voxel-space minimum corner of the chunk at p.
func (p Position) VoxelMin() Position {
	return p.Scale(ChunkEdge)
}

func (p Position) F32() mgl32.Vec3 {
	return mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)}
}

func (p Position) Neighbor(dir Direction) Position {
	return p.Add(dir.Normal())
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

type Direction uint8

const (
	East Direction = iota
	West
	Up
	Down
	North
	South
)

var AllDirections = [6]Direction{East, West, Up, Down, North, South}

var directionNormals = [6]Position{
	East:  {X: 1},
	West:  {X: -1},
	Up:    {Y: 1},
	Down:  {Y: -1},
	North: {Z: 1},
	South: {Z: -1},
}

func (d Direction) Normal() Position {
	return directionNormals[d]
}

func (d Direction) Reverse() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case Up:
		return Down
	default:
		return Up
	}
}

// CalcVoxelIdx maps local voxel coordinates to the flat chunk index.
// Layout is x fastest, then z, then y.
func CalcVoxelIdx(x, y, z int32) int {
	if x < 0 || x >= ChunkEdge || y < 0 || y >= ChunkEdge || z < 0 || z >= ChunkEdge {
		panic(fmt.Sprintf("voxel index out of range: (%d, %d, %d)", x, y, z))
	}
	return int(x) + int(z)*ChunkEdge + int(y)*ChunkEdge*ChunkEdge
}

// IdxToPos is the inverse of CalcVoxelIdx.
func IdxToPos(idx int) (x, y, z int32) {
	if idx < 0 || idx >= VoxelsInChunk {
		panic(fmt.Sprintf("voxel index out of range: %d", idx))
	}
	x = int32(idx % ChunkEdge)
	z = int32((idx / ChunkEdge) % ChunkEdge)
	y = int32(idx / (ChunkEdge * ChunkEdge))
	return x, y, z
}

// Extent is an axis-aligned box in voxel space. Min and Shape are
// chunk-aligned for extents produced by ticket propagation.
type Extent struct {
	Min   Position
	Shape Position
}

func (e Extent) Contains(p Position) bool {
	return p.X >= e.Min.X && p.X < e.Min.X+e.Shape.X &&
		p.Y >= e.Min.Y && p.Y < e.Min.Y+e.Shape.Y &&
		p.Z >= e.Min.Z && p.Z < e.Min.Z+e.Shape.Z
}

// ContainsChunk reports whether the chunk at key lies inside the extent.
func (e Extent) ContainsChunk(key Position) bool {
	return e.Contains(key.VoxelMin())
}

// ChunkKeys iterates the chunk keys covered by the extent in row-major
// order, y outermost. The sequence is restartable.
func (e Extent) ChunkKeys() iter.Seq[Position] {
	min := Position{
		X: floorDiv(e.Min.X, ChunkEdge),
		Y: floorDiv(e.Min.Y, ChunkEdge),
		Z: floorDiv(e.Min.Z, ChunkEdge),
	}
	max := Position{
		X: ceilDiv(e.Min.X+e.Shape.X, ChunkEdge),
		Y: ceilDiv(e.Min.Y+e.Shape.Y, ChunkEdge),
		Z: ceilDiv(e.Min.Z+e.Shape.Z, ChunkEdge),
	}
	return func(yield func(Position) bool) {
		for y := min.Y; y < max.Y; y++ {
			for z := min.Z; z < max.Z; z++ {
				for x := min.X; x < max.X; x++ {
					if !yield(Position{X: x, Y: y, Z: z}) {
						return
					}
				}
			}
		}
	}
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int32) int32 {
	return -floorDiv(-a, b)
}

// CalcCenterPoint is the world-space center of the chunk at key, in the
// same shifted frame instance positions are uploaded in. The half-edge
// offset is in world units, so it carries the voxel scale.
func CalcCenterPoint(key Position) mgl32.Vec3 {
	half := float32(ChunkEdge) * VoxelSize / 2
	center := key.VoxelMin().F32().Mul(VoxelSize).Sub(renderShift)
	return center.Add(mgl32.Vec3{half, half, half})
}

// CalcRadius is the radius of the sphere enclosing a chunk's bounding
// cube, used for chunk culling.
func CalcRadius() float32 {
	return float32(ChunkEdge) * VoxelSize / 2 * 1.732051
}
