package voxelrender

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// VoxelID identifies a registered voxel type. AmbientVoxel is never
// registered and always treated as transparent.
type VoxelID uint16

const (
	AmbientVoxel VoxelID = 0

	OpaqueVoxelName      = "opaque"
	TransparentVoxelName = "transparent"

	// VoxelSize is the world-space edge length of a single voxel.
	VoxelSize float32 = 2.0
)

// renderShift moves uploaded geometry so the seed chunk straddles the
// origin instead of starting at it.
var renderShift = mgl32.Vec3{ChunkEdge, ChunkEdge, ChunkEdge}

var ErrUnknownVoxel = errors.New("unknown voxel type")

type voxelAttributes struct {
	transparent bool
}

// VoxelRegistry maps voxel type names to ids. Ids are handed out from 1;
// every registration gets a fresh id with its own attributes, but the
// name-to-id mapping is first-wins, so name lookups keep resolving to
// the earliest registration.
type VoxelRegistry struct {
	mu         sync.RWMutex
	attributes map[VoxelID]voxelAttributes
	names      map[VoxelID]string
	keys       map[string]VoxelID
	nextKey    VoxelID
}

func NewVoxelRegistry() *VoxelRegistry {
	return &VoxelRegistry{
		attributes: make(map[VoxelID]voxelAttributes),
		names:      make(map[VoxelID]string),
		keys:       make(map[string]VoxelID),
		nextKey:    1,
	}
}

func (r *VoxelRegistry) Register(name string, transparent bool) VoxelID {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.nextKey
	r.nextKey++
	r.attributes[key] = voxelAttributes{transparent: transparent}
	r.names[key] = name
	if _, ok := r.keys[name]; !ok {
		r.keys[name] = key
	}
	return key
}

func (r *VoxelRegistry) IsTransparent(key VoxelID) (bool, error) {
	if key == AmbientVoxel {
		return true, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	attr, ok := r.attributes[key]
	if !ok {
		return false, fmt.Errorf("%w: id %d", ErrUnknownVoxel, key)
	}
	return attr.transparent, nil
}

func (r *VoxelRegistry) KeyFromName(name string) (VoxelID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVoxel, name)
	}
	return key, nil
}

func (r *VoxelRegistry) Name(key VoxelID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[key]
	if !ok {
		return "", fmt.Errorf("%w: id %d", ErrUnknownVoxel, key)
	}
	return name, nil
}

// CalcVoxelWorldPos converts a global voxel position to the world-space
// translation of its rendered instance.
func CalcVoxelWorldPos(pos Position) mgl32.Vec3 {
	return pos.F32().Mul(VoxelSize).Sub(renderShift)
}

// VoxelRotation is the orientation of every voxel instance.
func VoxelRotation() mgl32.Quat {
	return mgl32.QuatIdent()
}

// VoxelRegistryModule installs a registry with the two builtin voxel
// types already registered.
type VoxelRegistryModule struct{}

func (m VoxelRegistryModule) Install(app *App, cmd *Commands) {
	reg := NewVoxelRegistry()
	reg.Register(OpaqueVoxelName, false)
	reg.Register(TransparentVoxelName, true)
	cmd.AddResources(reg)
}
