package voxelrender

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"reflect"
	"slices"
	"sync"
)

type EntityId uint64
type archetypeId uint64
type componentId uint32

// Ecs is archetype-based storage: every unique component-set gets one
// archetype holding a dense column per component type. Entities move between
// archetypes when components are added or removed.
type Ecs struct {
	archetypes  map[archetypeId]*archetype
	entityIndex map[EntityId]archetypeId

	idLock          sync.Mutex
	entityIdCounter EntityId

	componentIdCounter componentId
	componentTypeIds   map[reflect.Type]componentId
}

type archetype struct {
	key      []componentId // sorted
	entities map[EntityId]int
	order    []EntityId          // row -> entity
	columns  map[componentId]any // componentId -> []T
	types    map[componentId]reflect.Type
}

func MakeEcs() Ecs {
	return Ecs{
		archetypes:       make(map[archetypeId]*archetype),
		entityIndex:      make(map[EntityId]archetypeId),
		componentTypeIds: make(map[reflect.Type]componentId),
	}
}

func (ecs *Ecs) nextEntityId() EntityId {
	ecs.idLock.Lock()
	defer ecs.idLock.Unlock()
	ecs.entityIdCounter++
	return ecs.entityIdCounter
}

func (ecs *Ecs) componentIdOf(t reflect.Type) componentId {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if id, ok := ecs.componentTypeIds[t]; ok {
		return id
	}
	ecs.componentIdCounter++
	ecs.componentTypeIds[t] = ecs.componentIdCounter
	return ecs.componentIdCounter
}

// lookupComponentId resolves without registering; the second result reports
// whether the type has ever been stored.
func (ecs *Ecs) lookupComponentId(t reflect.Type) (componentId, bool) {
	id, ok := ecs.componentTypeIds[t]
	return id, ok
}

func hashArchetypeKey(key []componentId) archetypeId {
	h := fnv.New64a()
	var buf [4]byte
	for _, id := range key {
		binary.LittleEndian.PutUint32(buf[:], uint32(id))
		h.Write(buf[:])
	}
	return archetypeId(h.Sum64())
}

// deref unwraps pointer components so both addEntity(C{}) and addEntity(&C{})
// store a value column.
func deref(component any) reflect.Value {
	v := reflect.ValueOf(component)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return v
}

func (ecs *Ecs) archetypeFor(key []componentId, types map[componentId]reflect.Type) *archetype {
	id := hashArchetypeKey(key)
	if arch, ok := ecs.archetypes[id]; ok {
		return arch
	}
	arch := &archetype{
		key:      key,
		entities: make(map[EntityId]int),
		columns:  make(map[componentId]any),
		types:    make(map[componentId]reflect.Type),
	}
	for _, cid := range key {
		t := types[cid]
		arch.types[cid] = t
		arch.columns[cid] = reflect.MakeSlice(reflect.SliceOf(t), 0, 0).Interface()
	}
	ecs.archetypes[id] = arch
	return arch
}

func (arch *archetype) appendRow(eid EntityId, values map[componentId]reflect.Value) {
	row := len(arch.order)
	arch.order = append(arch.order, eid)
	arch.entities[eid] = row
	for _, cid := range arch.key {
		col := reflect.ValueOf(arch.columns[cid])
		col = reflect.Append(col, values[cid])
		arch.columns[cid] = col.Interface()
	}
}

// removeRow swap-removes; the moved entity takes the vacated row.
func (arch *archetype) removeRow(eid EntityId) map[componentId]reflect.Value {
	row, ok := arch.entities[eid]
	if !ok {
		return nil
	}
	last := len(arch.order) - 1
	values := make(map[componentId]reflect.Value, len(arch.key))
	for _, cid := range arch.key {
		col := reflect.ValueOf(arch.columns[cid])
		values[cid] = reflect.ValueOf(col.Index(row).Interface())
		if row != last {
			col.Index(row).Set(col.Index(last))
		}
		arch.columns[cid] = col.Slice(0, last).Interface()
	}
	if row != last {
		moved := arch.order[last]
		arch.order[row] = moved
		arch.entities[moved] = row
	}
	arch.order = arch.order[:last]
	delete(arch.entities, eid)
	return values
}

func (ecs *Ecs) addEntity(components ...any) EntityId {
	eid := ecs.nextEntityId()
	ecs.insertEntity(eid, components...)
	return eid
}

func (ecs *Ecs) insertEntity(eid EntityId, components ...any) {
	values := make(map[componentId]reflect.Value, len(components))
	types := make(map[componentId]reflect.Type, len(components))
	key := make([]componentId, 0, len(components))
	for _, c := range components {
		v := deref(c)
		cid := ecs.componentIdOf(v.Type())
		if _, dup := values[cid]; dup {
			panic(fmt.Sprintf("duplicate component %v on entity %v", v.Type(), eid))
		}
		values[cid] = v
		types[cid] = v.Type()
		key = append(key, cid)
	}
	slices.Sort(key)

	arch := ecs.archetypeFor(key, types)
	arch.appendRow(eid, values)
	ecs.entityIndex[eid] = hashArchetypeKey(key)
}

func (ecs *Ecs) removeEntity(eid EntityId) {
	archId, ok := ecs.entityIndex[eid]
	if !ok {
		return
	}
	ecs.archetypes[archId].removeRow(eid)
	delete(ecs.entityIndex, eid)
}

func (ecs *Ecs) addComponents(eid EntityId, components ...any) {
	archId, ok := ecs.entityIndex[eid]
	if !ok {
		panic(fmt.Sprintf("entity %v does not exist", eid))
	}
	old := ecs.archetypes[archId]
	values := old.removeRow(eid)
	types := make(map[componentId]reflect.Type, len(values)+len(components))
	for cid := range values {
		types[cid] = old.types[cid]
	}
	for _, c := range components {
		v := deref(c)
		cid := ecs.componentIdOf(v.Type())
		values[cid] = v
		types[cid] = v.Type()
	}
	key := make([]componentId, 0, len(values))
	for cid := range values {
		key = append(key, cid)
	}
	slices.Sort(key)

	arch := ecs.archetypeFor(key, types)
	arch.appendRow(eid, values)
	ecs.entityIndex[eid] = hashArchetypeKey(key)
}

func (ecs *Ecs) removeComponents(eid EntityId, components ...any) {
	archId, ok := ecs.entityIndex[eid]
	if !ok {
		return
	}
	old := ecs.archetypes[archId]
	values := old.removeRow(eid)
	for _, c := range components {
		v := deref(c)
		if cid, known := ecs.lookupComponentId(v.Type()); known {
			delete(values, cid)
		}
	}
	types := make(map[componentId]reflect.Type, len(values))
	key := make([]componentId, 0, len(values))
	for cid := range values {
		types[cid] = old.types[cid]
		key = append(key, cid)
	}
	slices.Sort(key)

	arch := ecs.archetypeFor(key, types)
	arch.appendRow(eid, values)
	ecs.entityIndex[eid] = hashArchetypeKey(key)
}

func (ecs *Ecs) hasComponent(eid EntityId, t reflect.Type) bool {
	archId, ok := ecs.entityIndex[eid]
	if !ok {
		return false
	}
	cid, known := ecs.lookupComponentId(t)
	if !known {
		return false
	}
	_, ok = ecs.archetypes[archId].columns[cid]
	return ok
}
