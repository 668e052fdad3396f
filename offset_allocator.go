package voxelrender

import (
	"errors"
	"fmt"
	"sync"
)

var ErrOffsetAlreadyFree = errors.New("offset already returned")

// OffsetController hands out slots in a fixed-capacity instance buffer.
// An offset is a slot index; multiply by the multiplier to get the
// instance index the slot starts at.
type OffsetController struct {
	mu         sync.Mutex
	offsets    []uint32
	multiplier uint32
}

func NewOffsetController(amount, multiplier uint32) *OffsetController {
	offsets := make([]uint32, 0, amount)
	for i := uint32(0); i < amount; i++ {
		offsets = append(offsets, i)
	}
	return &OffsetController{
		offsets:    offsets,
		multiplier: multiplier,
	}
}

// NewChunkOffsetController sizes a controller for the working set of a
// ticket with the given radius, one slot per chunk with room for a full
// chunk of instances.
func NewChunkOffsetController(renderRadius uint32) *OffsetController {
	side := renderRadius*2 + 1
	return NewOffsetController(side*side*side, VoxelsInChunk)
}

func (oc *OffsetController) Multiplier() uint32 {
	return oc.multiplier
}

// FetchOffset pops a free slot and returns its instance offset. ok is
// false when the buffer is full.
func (oc *OffsetController) FetchOffset() (uint32, bool) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if len(oc.offsets) == 0 {
		return 0, false
	}
	slot := oc.offsets[len(oc.offsets)-1]
	oc.offsets = oc.offsets[:len(oc.offsets)-1]
	return slot * oc.multiplier, true
}

// ReturnOffset pushes the slot holding the instance offset back onto
// the free list. Returning a slot that is already free is an error.
func (oc *OffsetController) ReturnOffset(offset uint32) error {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	slot := offset / oc.multiplier
	for _, free := range oc.offsets {
		if free == slot {
			return fmt.Errorf("%w: %d", ErrOffsetAlreadyFree, offset)
		}
	}
	oc.offsets = append(oc.offsets, slot)
	return nil
}

// Free is the number of slots currently available.
func (oc *OffsetController) Free() int {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return len(oc.offsets)
}
