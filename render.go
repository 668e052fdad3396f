package voxelrender

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Instance is one voxel cube to draw.
type Instance struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

// InstanceRaw is the gpu layout of an instance, a single model matrix.
type InstanceRaw struct {
	Model mgl32.Mat4
}

const instanceRawSize = uint64(unsafe.Sizeof(InstanceRaw{}))

func (i Instance) Raw() InstanceRaw {
	return InstanceRaw{
		Model: i.Rotation.Mat4().Mul4(mgl32.Translate3D(
			i.Position.X(), i.Position.Y(), i.Position.Z(),
		)),
	}
}

// UploadSink receives chunk instance data at an instance offset into
// the shared instance buffer.
type UploadSink interface {
	UploadInstances(instances []Instance, instanceOffset uint64) error
}

// DrawSink draws a contiguous instance span.
type DrawSink interface {
	DrawChunk(offset, amount uint32)
}

// ChunkRenderState bundles the gpu-facing sinks the streaming systems
// write to.
type ChunkRenderState struct {
	Uploader UploadSink
	Drawer   DrawSink
}

// InstanceBuffer is the wgpu-backed upload sink. It owns one storage
// buffer sized for every slot the offset controller can hand out.
type InstanceBuffer struct {
	buffer *wgpu.Buffer
	queue  *wgpu.Queue
	slots  uint64
	stride uint64
}

func NewInstanceBuffer(device *wgpu.Device, queue *wgpu.Queue, slots, multiplier uint32) (*InstanceBuffer, error) {
	size := uint64(slots) * uint64(multiplier) * instanceRawSize
	buffer, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "chunkInstances",
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating instance buffer: %w", err)
	}
	return &InstanceBuffer{
		buffer: buffer,
		queue:  queue,
		slots:  uint64(slots),
		stride: uint64(multiplier),
	}, nil
}

func (b *InstanceBuffer) Buffer() *wgpu.Buffer { return b.buffer }

func (b *InstanceBuffer) UploadInstances(instances []Instance, instanceOffset uint64) error {
	if len(instances) == 0 {
		return nil
	}
	if instanceOffset+uint64(len(instances)) > b.slots*b.stride {
		return fmt.Errorf("instance upload at %d overruns buffer of %d instances", instanceOffset, b.slots*b.stride)
	}
	raw := make([]InstanceRaw, len(instances))
	for i, inst := range instances {
		raw[i] = inst.Raw()
	}
	return b.queue.WriteBuffer(b.buffer, instanceOffset*instanceRawSize, wgpu.ToBytes(raw))
}

func (b *InstanceBuffer) Release() {
	b.buffer.Release()
}

// chunkRenderPassSystem runs every frame and draws each uploaded chunk
// whose bounding cube intersects the view frustum.
func chunkRenderPassSystem(cmd *Commands, camera *Camera, renderState *ChunkRenderState) {
	query := MakeQuery3[WorldComponent, ActiveWorld, Ticket](cmd)
	query.Map(func(_ EntityId, world *WorldComponent, _ *ActiveWorld, ticket *Ticket) bool {
		for key := range ticket.Extent().ChunkKeys() {
			chunk, ok := world.Map.Get(key)
			if !ok || !chunk.IsVisible() {
				continue
			}
			offset, amount, ok := chunk.RenderSpan()
			if !ok || amount == 0 {
				continue
			}
			if !camera.CubeInView(CalcCenterPoint(key), ChunkEdge*VoxelSize) {
				continue
			}
			renderState.Drawer.DrawChunk(offset, uint32(amount))
		}
		return true
	})
}
