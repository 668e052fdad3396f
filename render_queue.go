package voxelrender

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var ErrQueueExhausted = errors.New("render queue buffer exhausted")

// ChunkId identifies a chunk's instance list inside the render queue.
type ChunkId = uuid.UUID

type span struct {
	id     ChunkId
	amount uint32
}

// bufferEntity is one contiguous sub-region of the shared instance
// buffer. Spans occupy it back to back; total is their sum and never
// exceeds capacity.
type bufferEntity struct {
	offset   uint32
	capacity uint32
	total    uint32
	spans    []span
}

func (e *bufferEntity) remaining() uint32 {
	return e.capacity - e.total
}

type queueCommandKind int

const (
	commandInsert queueCommandKind = iota
	commandUpdate
)

type queueCommand struct {
	kind      queueCommandKind
	id        ChunkId
	instances []Instance
}

// RenderQueue bin-packs variable-size per-chunk instance lists into
// shared buffer regions instead of giving every chunk a whole slot.
// Inserts and updates are queued and applied in submission order by
// ProcessQueue. The queue keeps each chunk's last submitted instance
// list so a region can be repacked when an occupant changes size.
type RenderQueue struct {
	mu       sync.Mutex
	alloc    *OffsetController
	sink     UploadSink
	capacity uint32

	entities []*bufferEntity
	byChunk  map[ChunkId]int
	cache    map[ChunkId][]Instance
	pending  []queueCommand
	notFull  int
}

func NewRenderQueue(alloc *OffsetController, sink UploadSink) *RenderQueue {
	return &RenderQueue{
		alloc:    alloc,
		sink:     sink,
		capacity: alloc.Multiplier(),
		byChunk:  make(map[ChunkId]int),
		cache:    make(map[ChunkId][]Instance),
	}
}

// AddChunk assigns a fresh chunk id and queues an insert. The id is
// returned immediately; the instances reach the buffer on the next
// ProcessQueue.
func (q *RenderQueue) AddChunk(instances []Instance) (ChunkId, error) {
	if uint32(len(instances)) > q.capacity {
		return uuid.Nil, fmt.Errorf("chunk of %d instances exceeds entity capacity %d", len(instances), q.capacity)
	}
	id := uuid.New()
	q.mu.Lock()
	q.pending = append(q.pending, queueCommand{kind: commandInsert, id: id, instances: instances})
	q.mu.Unlock()
	return id, nil
}

// UpdateChunk queues a replacement instance list for the chunk. An
// update for an untracked chunk behaves like an insert.
func (q *RenderQueue) UpdateChunk(id ChunkId, instances []Instance) error {
	if uint32(len(instances)) > q.capacity {
		return fmt.Errorf("chunk of %d instances exceeds entity capacity %d", len(instances), q.capacity)
	}
	q.mu.Lock()
	q.pending = append(q.pending, queueCommand{kind: commandUpdate, id: id, instances: instances})
	q.mu.Unlock()
	return nil
}

// InQueue reports whether the chunk currently occupies an entity.
func (q *RenderQueue) InQueue(id ChunkId) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byChunk[id]
	return ok
}

// ChunkSpan returns the chunk's instance offset and amount in the
// shared buffer.
func (q *RenderQueue) ChunkSpan(id ChunkId) (offset, amount uint32, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx, ok := q.byChunk[id]
	if !ok {
		return 0, 0, false
	}
	entity := q.entities[idx]
	offset = entity.offset
	for _, s := range entity.spans {
		if s.id == id {
			return offset, s.amount, true
		}
		offset += s.amount
	}
	return 0, 0, false
}

// ProcessQueue applies the pending commands in submission order. When a
// new entity cannot be allocated the remaining commands stay queued and
// ErrQueueExhausted is returned; the caller retries on a later tick.
func (q *RenderQueue) ProcessQueue() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) > 0 {
		cmd := q.pending[0]
		var err error
		switch cmd.kind {
		case commandInsert:
			err = q.insert(cmd.id, cmd.instances)
		case commandUpdate:
			err = q.update(cmd.id, cmd.instances)
		}
		if err != nil {
			return err
		}
		q.pending = q.pending[1:]
	}
	q.rescanNotFull()
	return nil
}

// insert places the chunk at the tail of the first entity with room,
// scanning from the last known not-full index so full entities are not
// revisited on every call.
func (q *RenderQueue) insert(id ChunkId, instances []Instance) error {
	need := uint32(len(instances))
	var target *bufferEntity
	targetIdx := -1
	for i := q.notFull; i < len(q.entities); i++ {
		if q.entities[i].remaining() >= need {
			target = q.entities[i]
			targetIdx = i
			break
		}
	}
	if target == nil {
		offset, ok := q.alloc.FetchOffset()
		if !ok {
			return ErrQueueExhausted
		}
		target = &bufferEntity{offset: offset, capacity: q.capacity}
		q.entities = append(q.entities, target)
		targetIdx = len(q.entities) - 1
	}
	if err := q.sink.UploadInstances(instances, uint64(target.offset+target.total)); err != nil {
		return fmt.Errorf("uploading chunk %s: %w", id, err)
	}
	target.spans = append(target.spans, span{id: id, amount: need})
	target.total += need
	q.byChunk[id] = targetIdx
	q.cache[id] = instances
	return nil
}

func (q *RenderQueue) update(id ChunkId, instances []Instance) error {
	idx, ok := q.byChunk[id]
	if !ok {
		return q.insert(id, instances)
	}
	entity := q.entities[idx]
	if len(entity.spans) == 1 {
		// Sole occupant: rewrite the region in place.
		if err := q.sink.UploadInstances(instances, uint64(entity.offset)); err != nil {
			return fmt.Errorf("uploading chunk %s: %w", id, err)
		}
		need := uint32(len(instances))
		entity.spans[0].amount = need
		entity.total = need
		q.cache[id] = instances
		return nil
	}
	// Shared entity: evict the chunk's span, close the gap by
	// re-uploading the trailing spans, then insert the new list as if
	// fresh.
	if err := q.evict(entity, id); err != nil {
		return err
	}
	delete(q.byChunk, id)
	delete(q.cache, id)
	if idx < q.notFull {
		q.notFull = idx
	}
	return q.insert(id, instances)
}

// evict removes the chunk's span from the entity and shifts the spans
// behind it left, re-uploading their cached instances at the new
// positions.
func (q *RenderQueue) evict(entity *bufferEntity, id ChunkId) error {
	spanIdx := -1
	tailOffset := entity.offset
	for i, s := range entity.spans {
		if s.id == id {
			spanIdx = i
			break
		}
		tailOffset += s.amount
	}
	if spanIdx < 0 {
		return fmt.Errorf("chunk %s not found in its entity", id)
	}
	removed := entity.spans[spanIdx].amount
	tail := entity.spans[spanIdx+1:]
	for _, s := range tail {
		cached, ok := q.cache[s.id]
		if !ok {
			return fmt.Errorf("no cached instances for chunk %s", s.id)
		}
		if err := q.sink.UploadInstances(cached, uint64(tailOffset)); err != nil {
			return fmt.Errorf("repacking chunk %s: %w", s.id, err)
		}
		tailOffset += s.amount
	}
	entity.spans = append(entity.spans[:spanIdx], tail...)
	entity.total -= removed
	return nil
}

// RemoveChunk drops the chunk from its entity, repacking the region.
// The command queue is not involved; removal is immediate.
func (q *RenderQueue) RemoveChunk(id ChunkId) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx, ok := q.byChunk[id]
	if !ok {
		return nil
	}
	if err := q.evict(q.entities[idx], id); err != nil {
		return err
	}
	delete(q.byChunk, id)
	delete(q.cache, id)
	if idx < q.notFull {
		q.notFull = idx
	}
	q.rescanNotFull()
	return nil
}

// rescanNotFull advances the not-full pointer past exhausted entities.
// It only moves forward; paths that free space in an earlier entity
// lower the pointer themselves before rescanning.
func (q *RenderQueue) rescanNotFull() {
	for i := q.notFull; i < len(q.entities); i++ {
		if q.entities[i].remaining() > 0 {
			q.notFull = i
			return
		}
	}
	q.notFull = len(q.entities)
}
