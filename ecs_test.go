package voxelrender

import (
	"reflect"
	"testing"
)

type posComp struct {
	x, y, z int32
}

type tagComp struct{}

func TestEcs_MakeEcs(t *testing.T) {
	ecs := MakeEcs()

	if len(ecs.archetypes) != 0 {
		t.Errorf("Expected archetypes to be empty, got %v", ecs.archetypes)
	}
	if len(ecs.entityIndex) != 0 {
		t.Errorf("Expected entityIndex to be empty, got %v", ecs.entityIndex)
	}
	if ecs.entityIdCounter != 0 {
		t.Errorf("Expected entityIdCounter to be 0, got %v", ecs.entityIdCounter)
	}
}

func TestEcs_AddEntity(t *testing.T) {
	ecs := MakeEcs()

	eid1 := ecs.addEntity()
	if _, ok := ecs.entityIndex[eid1]; !ok {
		t.Errorf("Expected entityId %v to be in entityIndex", eid1)
	}

	eid2 := ecs.addEntity(posComp{x: 1})
	if _, ok := ecs.entityIndex[eid2]; !ok {
		t.Errorf("Expected entityId %v to be in entityIndex", eid2)
	}

	if ecs.entityIndex[eid1] == ecs.entityIndex[eid2] {
		t.Errorf("Entities with different components ended up in the same Archetype")
	}
}

func TestEcs_AddComponents(t *testing.T) {
	ecs := MakeEcs()

	eid := ecs.addEntity(posComp{x: 3})
	before := ecs.entityIndex[eid]

	ecs.addComponents(eid, tagComp{})
	after := ecs.entityIndex[eid]
	if before == after {
		t.Errorf("Expected entity to move to a new archetype")
	}
	if !ecs.hasComponent(eid, reflect.TypeOf(tagComp{})) {
		t.Errorf("Expected entity to carry tagComp")
	}
	if !ecs.hasComponent(eid, reflect.TypeOf(posComp{})) {
		t.Errorf("Expected entity to keep posComp")
	}
}

func TestEcs_RemoveComponents(t *testing.T) {
	ecs := MakeEcs()

	eid := ecs.addEntity(posComp{x: 3}, tagComp{})
	ecs.removeComponents(eid, tagComp{})

	if ecs.hasComponent(eid, reflect.TypeOf(tagComp{})) {
		t.Errorf("Expected tagComp to be removed")
	}
	if !ecs.hasComponent(eid, reflect.TypeOf(posComp{})) {
		t.Errorf("Expected posComp to survive")
	}
}

func TestEcs_RemoveEntity(t *testing.T) {
	ecs := MakeEcs()

	eid1 := ecs.addEntity(posComp{x: 1})
	eid2 := ecs.addEntity(posComp{x: 2})
	ecs.removeEntity(eid1)

	if _, ok := ecs.entityIndex[eid1]; ok {
		t.Errorf("Expected entity %v to be gone", eid1)
	}
	if _, ok := ecs.entityIndex[eid2]; !ok {
		t.Errorf("Expected entity %v to remain", eid2)
	}

	// eid2 took eid1's row via swap-remove; its component must be intact.
	arch := ecs.archetypes[ecs.entityIndex[eid2]]
	row := arch.entities[eid2]
	cid, _ := ecs.lookupComponentId(reflect.TypeOf(posComp{}))
	col := arch.columns[cid].([]posComp)
	if col[row].x != 2 {
		t.Errorf("Expected surviving entity to keep x=2, got %v", col[row].x)
	}
}

func TestEcs_DuplicateComponentPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected a panic for duplicate components")
		}
	}()
	ecs := MakeEcs()
	ecs.addEntity(posComp{x: 1}, posComp{x: 2})
}
