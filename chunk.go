package voxelrender

import (
	"fmt"
	"math/bits"
	"sync"
)

const (
	ChunkEdge     = 16
	VoxelsInChunk = ChunkEdge * ChunkEdge * ChunkEdge
)

// ChunkShape is the chunk extent in voxels along each axis.
var ChunkShape = Position{X: ChunkEdge, Y: ChunkEdge, Z: ChunkEdge}

// Meta is the render bookkeeping of a chunk. The visibility byte packs
// the face transparency value in bits 0-5 and the visible flag in bit 6.
type Meta struct {
	visibility      uint8
	voxelVisibility [VoxelsInChunk / 64]uint64
	renderOffset    uint32
	hasOffset       bool
	renderEmpty     bool
	renderAmount    uint16
}

func NewMeta() Meta {
	return Meta{}
}

// SetTransparency stores the per-face transparency bits. Values of 64
// and above would clobber the visible flag.
func (m *Meta) SetTransparency(value uint8) {
	if value >= 64 {
		panic(fmt.Sprintf("transparency value out of range: %d", value))
	}
	m.visibility = (m.visibility &^ 0b0011_1111) | value
}

func (m *Meta) Transparency() uint8 {
	return m.visibility & 0b0011_1111
}

func (m *Meta) SetVisible(value bool) {
	if value {
		m.visibility |= 1 << 6
	} else {
		m.visibility &^= 1 << 6
	}
}

func (m *Meta) IsVisible() bool {
	return m.visibility&(1<<6) != 0
}

// VoxelSetRange sets the voxel visibility bits in [start, end).
func (m *Meta) VoxelSetRange(start, end int, value bool) {
	if start < 0 || end > VoxelsInChunk || start > end {
		panic(fmt.Sprintf("voxel range out of bounds: [%d, %d)", start, end))
	}
	for i := start; i < end; i++ {
		if value {
			m.voxelVisibility[i/64] |= 1 << (i % 64)
		} else {
			m.voxelVisibility[i/64] &^= 1 << (i % 64)
		}
	}
}

// VoxelIsVisible reports the visibility bit of the voxel at the local
// position.
func (m *Meta) VoxelIsVisible(x, y, z int32) bool {
	idx := CalcVoxelIdx(x, y, z)
	return m.voxelVisibility[idx/64]&(1<<(idx%64)) != 0
}

// VisibleCount is the number of set voxel visibility bits.
func (m *Meta) VisibleCount() int {
	count := 0
	for _, w := range m.voxelVisibility {
		count += bits.OnesCount64(w)
	}
	return count
}

// Chunk holds the voxel payload of one chunk key plus its render state.
// The payload lives zstd-compressed at rest and is decoded on demand.
// Render span reads and writes go through the mutex so a span is never
// observed half-updated.
type Chunk struct {
	mu         sync.Mutex
	codec      *Codec
	compressed []byte
	voxels     []VoxelID
	meta       Meta
	lastSeen   uint64
}

func NewChunk(voxels []VoxelID, meta Meta, codec *Codec) *Chunk {
	if len(voxels) != VoxelsInChunk {
		panic(fmt.Sprintf("chunk payload has %d voxels, want %d", len(voxels), VoxelsInChunk))
	}
	return &Chunk{
		codec:  codec,
		voxels: voxels,
		meta:   meta,
	}
}

// Voxels returns the decoded voxel payload, decompressing it first if
// the chunk was released.
func (c *Chunk) Voxels() ([]VoxelID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.voxels == nil {
		voxels, err := c.codec.Decode(c.compressed)
		if err != nil {
			return nil, err
		}
		c.voxels = voxels
	}
	return c.voxels, nil
}

// Release compresses the voxel payload and drops the decoded copy.
func (c *Chunk) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.voxels == nil {
		return nil
	}
	compressed, err := c.codec.Encode(c.voxels)
	if err != nil {
		return err
	}
	c.compressed = compressed
	c.voxels = nil
	return nil
}

func (c *Chunk) Meta() *Meta {
	return &c.meta
}

func (c *Chunk) IsVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.IsVisible()
}

// SetRenderSpan records where in the instance buffer this chunk's
// instances live.
func (c *Chunk) SetRenderSpan(offset uint32, amount uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta.renderOffset = offset
	c.meta.hasOffset = true
	c.meta.renderAmount = amount
}

// RenderSpan returns the chunk's instance buffer span. ok is false when
// the chunk has not been uploaded.
func (c *Chunk) RenderSpan() (offset uint32, amount uint16, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.meta.hasOffset {
		return 0, 0, false
	}
	return c.meta.renderOffset, c.meta.renderAmount, true
}

func (c *Chunk) ClearRenderSpan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta.hasOffset = false
	c.meta.renderOffset = 0
	c.meta.renderAmount = 0
	c.meta.renderEmpty = false
}

// MarkRenderEmpty records that the chunk produced no instances so the
// upload pass stops reconsidering it.
func (c *Chunk) MarkRenderEmpty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta.renderEmpty = true
}

// NeedsUpload reports whether the chunk is visible and has neither an
// instance buffer span nor an empty-upload mark.
func (c *Chunk) NeedsUpload() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.IsVisible() && !c.meta.hasOffset && !c.meta.renderEmpty
}

func (c *Chunk) Touch(tick uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = tick
}

func (c *Chunk) LastSeen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// RenderInstances builds the instance list for the chunk at key: one
// instance per voxel that has its visibility bit set and holds a
// non-transparent voxel type.
func (c *Chunk) RenderInstances(key Position, reg *VoxelRegistry) ([]Instance, error) {
	voxels, err := c.Voxels()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	min := key.VoxelMin()
	instances := make([]Instance, 0, c.meta.VisibleCount())
	for wordIdx, word := range c.meta.voxelVisibility {
		for ; word != 0; word &= word - 1 {
			idx := wordIdx*64 + bits.TrailingZeros64(word)
			transparent, err := reg.IsTransparent(voxels[idx])
			if err != nil {
				return nil, err
			}
			if transparent {
				continue
			}
			x, y, z := IdxToPos(idx)
			instances = append(instances, Instance{
				Position: CalcVoxelWorldPos(min.Add(Position{X: x, Y: y, Z: z})),
				Rotation: VoxelRotation(),
			})
		}
	}
	return instances, nil
}
