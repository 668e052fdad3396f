package voxelrender

import (
	"fmt"
	"math"
)

// Ticket keeps a growing cube of chunks around its seed position
// loaded. The area starts as the seed chunk and expands by one chunk of
// radius per tick until it reaches the maximum radius, so a fresh world
// streams in from the middle out. When the ticket's ttl runs out the
// ticket is removed and a new one is seeded on the next tick.
type Ticket struct {
	ttl       uint32
	extent    Extent
	maxRadius int32
	curRadius int32
	seed      Position
}

func NewTicket(ttl uint32, maxRadius int32, pos Position) Ticket {
	if maxRadius%2 == 0 {
		panic(fmt.Sprintf("ticket radius must be odd, got %d", maxRadius))
	}
	return Ticket{
		ttl:       ttl,
		extent:    Extent{Min: pos.VoxelMin(), Shape: ChunkShape},
		maxRadius: maxRadius,
		curRadius: 0,
		seed:      pos,
	}
}

// Propagate grows the loaded area by one chunk of radius, up to the
// maximum.
func (t *Ticket) Propagate() {
	if t.curRadius >= t.maxRadius {
		return
	}
	t.curRadius++
	r := t.curRadius
	min := t.seed.Sub(Position{X: r - 1, Y: r - 1, Z: r - 1})
	side := ChunkEdge * (r*2 - 1)
	t.extent = Extent{
		Min:   min.VoxelMin(),
		Shape: Position{X: side, Y: side, Z: side},
	}
}

func (t *Ticket) DonePropagating() bool {
	return t.curRadius == t.maxRadius
}

func (t *Ticket) Extent() Extent { return t.extent }

func (t *Ticket) Seed() Position { return t.seed }

func (t *Ticket) TTL() uint32 { return t.ttl }

// decay burns one tick of lifetime and reports whether the ticket has
// expired.
func (t *Ticket) decay() bool {
	if t.ttl > 0 {
		t.ttl--
	}
	return t.ttl == 0
}

// ticketAddSystem seeds a ticket on every active world that has none.
func ticketAddSystem(cmd *Commands, clock *Clock, cfg *Config) {
	if !clock.DoTick() {
		return
	}
	log := cmd.Logger()
	query := MakeQuery2[WorldComponent, ActiveWorld](cmd)
	query.Map(func(eid EntityId, _ *WorldComponent, _ *ActiveWorld) bool {
		if cmd.HasComponent(eid, Ticket{}) {
			return true
		}
		ticket := NewTicket(cfg.TicketTTL, int32(cfg.RenderRadius), Position{})
		log.Debugf("seeding ticket on world %d: %+v", eid, ticket)
		cmd.AddComponents(eid, ticket)
		return true
	})
}

// ticketUpdateSystem ages tickets, grows the ones still propagating and
// makes sure every chunk inside a ticket's extent exists.
func ticketUpdateSystem(
	cmd *Commands,
	clock *Clock,
	cfg *Config,
	typeReg *WorldTypeRegistry,
	voxReg *VoxelRegistry,
	worker *GenWorker,
) {
	if !clock.DoTick() {
		return
	}
	log := cmd.Logger()
	if cfg.AsyncGeneration {
		applyGenResults(cmd, worker, log)
	}
	query := MakeQuery3[WorldComponent, ActiveWorld, Ticket](cmd)
	query.Map(func(eid EntityId, world *WorldComponent, _ *ActiveWorld, ticket *Ticket) bool {
		if ticket.decay() {
			log.Debugf("ticket on world %d expired", eid)
			cmd.RemoveComponents(eid, Ticket{})
			return true
		}
		if ticket.DonePropagating() {
			return true
		}
		ticket.Propagate()
		log.Debugf("ticket on world %d grew to radius %d", eid, ticket.curRadius)

		wt, err := typeReg.WorldType(world.Map.TypeId())
		if err != nil {
			log.Errorf("world %d: %v", eid, err)
			return true
		}
		for key := range ticket.Extent().ChunkKeys() {
			if cfg.AsyncGeneration {
				if !world.Map.Exists(key) {
					worker.Submit(GenRequest{
						Priority: chebyshevDist(key, ticket.Seed()),
						World:    eid,
						Pos:      key,
						Type:     wt,
					})
				}
				continue
			}
			if _, err := world.Map.GetOrInsert(key, func(pos Position) ([]VoxelID, Meta, error) {
				return wt.Generate(pos, voxReg)
			}); err != nil {
				log.Errorf("world %d chunk %v: %v", eid, key, err)
			}
		}
		return true
	})
}

func applyGenResults(cmd *Commands, worker *GenWorker, log Logger) {
	query := MakeQuery1[WorldComponent](cmd)
	for _, res := range worker.Drain() {
		if res.Err != nil {
			log.Errorf("generating chunk %v: %v", res.Pos, res.Err)
			continue
		}
		query.Map(func(eid EntityId, world *WorldComponent) bool {
			if eid != res.World {
				return true
			}
			world.Map.Insert(res.Pos, res.Chunk)
			return false
		})
	}
}

func chebyshevDist(a, b Position) int32 {
	d := a.Sub(b)
	return max(abs32(d.X), abs32(d.Y), abs32(d.Z))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// ticketRenderSystem uploads instance data for chunks inside ticket
// extents that have not reached the gpu yet. Instances are computed
// before a buffer slot is fetched, so chunks that render nothing never
// consume one. At most cfg.UploadBudget chunks are uploaded per tick.
func ticketRenderSystem(
	cmd *Commands,
	clock *Clock,
	cfg *Config,
	voxReg *VoxelRegistry,
	offsets *OffsetController,
	renderState *ChunkRenderState,
) {
	if !clock.DoTick() {
		return
	}
	log := cmd.Logger()
	query := MakeQuery3[WorldComponent, ActiveWorld, Ticket](cmd)
	query.Map(func(eid EntityId, world *WorldComponent, _ *ActiveWorld, ticket *Ticket) bool {
		cnt := 0
		for key := range ticket.Extent().ChunkKeys() {
			chunk, ok := world.Map.Get(key)
			if !ok || !chunk.NeedsUpload() {
				continue
			}
			instances, err := chunk.RenderInstances(key, voxReg)
			if err != nil {
				log.Errorf("chunk %v instances: %v", key, err)
				continue
			}
			if len(instances) == 0 {
				chunk.MarkRenderEmpty()
				continue
			}
			if len(instances) > math.MaxUint16 {
				log.Errorf("chunk %v has %d instances, want at most %d", key, len(instances), math.MaxUint16)
				continue
			}
			offset, ok := offsets.FetchOffset()
			if !ok {
				log.Warnf("instance buffer full, deferring chunk %v", key)
				return false
			}
			if err := renderState.Uploader.UploadInstances(instances, uint64(offset)); err != nil {
				log.Errorf("uploading chunk %v: %v", key, err)
				if rerr := offsets.ReturnOffset(offset); rerr != nil {
					log.Errorf("returning offset %d: %v", offset, rerr)
				}
				continue
			}
			chunk.SetRenderSpan(offset, uint16(len(instances)))
			cnt++
			if cnt == cfg.UploadBudget {
				break
			}
		}
		return true
	})
}

// chunkEvictionSystem stamps chunks covered by a ticket and drops
// chunks no ticket has covered for EvictAfterTicks ticks, returning
// their buffer slots.
func chunkEvictionSystem(cmd *Commands, clock *Clock, cfg *Config, offsets *OffsetController) {
	if !clock.DoTick() {
		return
	}
	log := cmd.Logger()
	tick := clock.Tick()
	query := MakeQuery2[WorldComponent, ActiveWorld](cmd)
	ticketQuery := MakeQuery3[WorldComponent, ActiveWorld, Ticket](cmd)
	ticketQuery.Map(func(eid EntityId, world *WorldComponent, _ *ActiveWorld, ticket *Ticket) bool {
		for key := range ticket.Extent().ChunkKeys() {
			if chunk, ok := world.Map.Get(key); ok {
				chunk.Touch(tick)
			}
		}
		return true
	})
	query.Map(func(eid EntityId, world *WorldComponent, _ *ActiveWorld) bool {
		for _, key := range world.Map.Keys() {
			chunk, ok := world.Map.Get(key)
			if !ok {
				continue
			}
			last := chunk.LastSeen()
			if last == 0 || tick-last <= cfg.EvictAfterTicks {
				continue
			}
			if offset, _, hasSpan := chunk.RenderSpan(); hasSpan {
				if err := offsets.ReturnOffset(offset); err != nil {
					log.Errorf("evicting chunk %v: %v", key, err)
				}
			}
			world.Map.Remove(key)
			log.Debugf("evicted chunk %v from world %d", key, eid)
		}
		return true
	})
}
