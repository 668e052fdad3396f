package voxelrender

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

type WorldTypeID uint32

var ErrUnknownWorldType = errors.New("unknown world type")

// WorldType generates the voxel payload and metadata of a single chunk.
// Implementations must be safe for concurrent use; the generation
// worker calls Generate from its own goroutine.
type WorldType interface {
	Name() string
	Generate(pos Position, reg *VoxelRegistry) ([]VoxelID, Meta, error)
}

// WorldTypeRegistry maps world type ids to generators. Ids are handed
// out from 1.
type WorldTypeRegistry struct {
	mu      sync.RWMutex
	types   map[WorldTypeID]WorldType
	nextKey WorldTypeID
}

func NewWorldTypeRegistry() *WorldTypeRegistry {
	return &WorldTypeRegistry{
		types:   make(map[WorldTypeID]WorldType),
		nextKey: 1,
	}
}

func (r *WorldTypeRegistry) Register(wt WorldType) WorldTypeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextKey
	r.nextKey++
	r.types[id] = wt
	return id
}

func (r *WorldTypeRegistry) WorldType(id WorldTypeID) (WorldType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wt, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownWorldType, id)
	}
	return wt, nil
}

// Map is the chunk store of one world. Chunks are keyed by chunk
// position; GetOrInsert guarantees each key is generated exactly once
// even under concurrent callers.
type Map struct {
	mu     sync.RWMutex
	chunks map[Position]*Chunk
	typeId WorldTypeID
	codec  *Codec
	group  singleflight.Group
}

func NewMap(typeId WorldTypeID, codec *Codec) *Map {
	return &Map{
		chunks: make(map[Position]*Chunk),
		typeId: typeId,
		codec:  codec,
	}
}

func (m *Map) TypeId() WorldTypeID { return m.typeId }

func (m *Map) Get(pos Position) (*Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunk, ok := m.chunks[pos]
	return chunk, ok
}

func (m *Map) Exists(pos Position) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chunks[pos]
	return ok
}

func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// GeneratorFunc produces the payload for a missing chunk.
type GeneratorFunc func(pos Position) ([]VoxelID, Meta, error)

// GetOrInsert returns the chunk at pos, generating and storing it if
// absent. Concurrent calls for the same key share a single generation.
func (m *Map) GetOrInsert(pos Position, gen GeneratorFunc) (*Chunk, error) {
	if chunk, ok := m.Get(pos); ok {
		return chunk, nil
	}
	v, err, _ := m.group.Do(pos.String(), func() (any, error) {
		if chunk, ok := m.Get(pos); ok {
			return chunk, nil
		}
		voxels, meta, err := gen(pos)
		if err != nil {
			return nil, fmt.Errorf("generating chunk %v: %w", pos, err)
		}
		chunk := NewChunk(voxels, meta, m.codec)
		m.mu.Lock()
		m.chunks[pos] = chunk
		m.mu.Unlock()
		return chunk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Chunk), nil
}

// Insert stores an externally generated chunk, keeping any chunk that
// arrived first.
func (m *Map) Insert(pos Position, chunk *Chunk) *Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.chunks[pos]; ok {
		return existing
	}
	m.chunks[pos] = chunk
	return chunk
}

// Remove drops the chunk at pos and returns it.
func (m *Map) Remove(pos Position) (*Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.chunks[pos]
	if ok {
		delete(m.chunks, pos)
	}
	return chunk, ok
}

// VoxelAt returns the voxel at the global voxel position, or the
// ambient voxel when the chunk is missing.
func (m *Map) VoxelAt(pos Position) (VoxelID, error) {
	key := Position{
		X: floorDiv(pos.X, ChunkEdge),
		Y: floorDiv(pos.Y, ChunkEdge),
		Z: floorDiv(pos.Z, ChunkEdge),
	}
	chunk, ok := m.Get(key)
	if !ok {
		return AmbientVoxel, nil
	}
	voxels, err := chunk.Voxels()
	if err != nil {
		return AmbientVoxel, err
	}
	local := pos.Sub(key.VoxelMin())
	return voxels[CalcVoxelIdx(local.X, local.Y, local.Z)], nil
}

// Keys returns a snapshot of the stored chunk keys.
func (m *Map) Keys() []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]Position, 0, len(m.chunks))
	for k := range m.chunks {
		keys = append(keys, k)
	}
	return keys
}

// WorldComponent attaches a chunk map to a world entity.
type WorldComponent struct {
	Map *Map
}

// ActiveWorld marks the world that streaming and rendering operate on.
type ActiveWorld struct{}

// FlatWorldType generates an infinite flat world: solid ground below
// y=0, a single opaque floor layer at y=0 and empty sky above.
type FlatWorldType struct{}

func (FlatWorldType) Name() string { return "FlatWorldType" }

func (FlatWorldType) Generate(pos Position, reg *VoxelRegistry) ([]VoxelID, Meta, error) {
	transparent, err := reg.KeyFromName(TransparentVoxelName)
	if err != nil {
		return nil, Meta{}, err
	}
	opaque, err := reg.KeyFromName(OpaqueVoxelName)
	if err != nil {
		return nil, Meta{}, err
	}
	voxels := make([]VoxelID, VoxelsInChunk)
	meta := NewMeta()
	switch {
	case pos.Y > 0:
		for i := range voxels {
			voxels[i] = transparent
		}
		meta.SetVisible(true)
		meta.SetTransparency(63)
	case pos.Y < 0:
		for i := range voxels {
			voxels[i] = opaque
		}
	default:
		for i := range voxels {
			if _, y, _ := IdxToPos(i); y == 0 {
				voxels[i] = opaque
			} else {
				voxels[i] = transparent
			}
		}
		meta.SetVisible(true)
		meta.SetTransparency(31)
		meta.VoxelSetRange(0, ChunkEdge*ChunkEdge, true)
	}
	return voxels, meta, nil
}

// WorldModule installs the world type registry and spawns the active
// world entity.
type WorldModule struct {
	Type WorldType
}

func (m WorldModule) Install(app *App, cmd *Commands) {
	reg := NewWorldTypeRegistry()
	wt := m.Type
	if wt == nil {
		wt = FlatWorldType{}
	}
	typeId := reg.Register(wt)
	cmd.AddResources(reg)

	codec, err := NewCodec()
	if err != nil {
		panic(err)
	}
	cmd.AddEntity(
		WorldComponent{Map: NewMap(typeId, codec)},
		ActiveWorld{},
	)
}
