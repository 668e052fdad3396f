package voxelrender

import (
	"reflect"
)

// Queries iterate every archetype carrying the requested component columns.
// An optional component is requested by passing its zero value to Map; the
// callback then receives nil for entities that lack it.
type Query1[A any] struct{ ecs *Ecs }
type Query2[A, B any] struct{ ecs *Ecs }
type Query3[A, B, C any] struct{ ecs *Ecs }
type Query4[A, B, C, D any] struct{ ecs *Ecs }

func MakeQuery1[A any](cmd *Commands) Query1[A]             { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B]       { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] { return Query3[A, B, C]{ecs: cmd.app.ecs} }
func MakeQuery4[A, B, C, D any](cmd *Commands) Query4[A, B, C, D] {
	return Query4[A, B, C, D]{ecs: cmd.app.ecs}
}

func queryComponentId[T any](ecs *Ecs) componentId {
	var zero T
	return ecs.componentIdOf(reflect.TypeOf(zero))
}

func identifyOptionals(ecs *Ecs, optionals ...any) map[componentId]struct{} {
	opt := make(map[componentId]struct{}, len(optionals))
	for _, o := range optionals {
		opt[ecs.componentIdOf(reflect.TypeOf(o))] = struct{}{}
	}
	return opt
}

// column fetches the typed column of arch, or reports the component optional.
// ok=false with nil slice means the archetype is filtered out entirely.
func column[T any](arch *archetype, id componentId, opt map[componentId]struct{}) (comps []T, missing bool, ok bool) {
	if data, has := arch.columns[id]; has {
		return data.([]T), false, true
	}
	if _, isOpt := opt[id]; isOpt {
		return nil, true, true
	}
	return nil, false, false
}

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	id1 := queryComponentId[A](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		comps1, no1, ok := column[A](arch, id1, opt)
		if !ok {
			continue
		}
		for entityId, row := range arch.entities {
			var a *A
			if !no1 {
				a = &comps1[row]
			}
			if !m(entityId, a) {
				return
			}
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	id1 := queryComponentId[A](q.ecs)
	id2 := queryComponentId[B](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		comps1, no1, ok := column[A](arch, id1, opt)
		if !ok {
			continue
		}
		comps2, no2, ok := column[B](arch, id2, opt)
		if !ok {
			continue
		}
		for entityId, row := range arch.entities {
			var a *A
			if !no1 {
				a = &comps1[row]
			}
			var b *B
			if !no2 {
				b = &comps2[row]
			}
			if !m(entityId, a, b) {
				return
			}
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	id1 := queryComponentId[A](q.ecs)
	id2 := queryComponentId[B](q.ecs)
	id3 := queryComponentId[C](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		comps1, no1, ok := column[A](arch, id1, opt)
		if !ok {
			continue
		}
		comps2, no2, ok := column[B](arch, id2, opt)
		if !ok {
			continue
		}
		comps3, no3, ok := column[C](arch, id3, opt)
		if !ok {
			continue
		}
		for entityId, row := range arch.entities {
			var a *A
			if !no1 {
				a = &comps1[row]
			}
			var b *B
			if !no2 {
				b = &comps2[row]
			}
			var c *C
			if !no3 {
				c = &comps3[row]
			}
			if !m(entityId, a, b, c) {
				return
			}
		}
	}
}

func (q Query4[A, B, C, D]) Map(m func(EntityId, *A, *B, *C, *D) bool, optionals ...any) {
	id1 := queryComponentId[A](q.ecs)
	id2 := queryComponentId[B](q.ecs)
	id3 := queryComponentId[C](q.ecs)
	id4 := queryComponentId[D](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		comps1, no1, ok := column[A](arch, id1, opt)
		if !ok {
			continue
		}
		comps2, no2, ok := column[B](arch, id2, opt)
		if !ok {
			continue
		}
		comps3, no3, ok := column[C](arch, id3, opt)
		if !ok {
			continue
		}
		comps4, no4, ok := column[D](arch, id4, opt)
		if !ok {
			continue
		}
		for entityId, row := range arch.entities {
			var a *A
			if !no1 {
				a = &comps1[row]
			}
			var b *B
			if !no2 {
				b = &comps2[row]
			}
			var c *C
			if !no3 {
				c = &comps3[row]
			}
			var d *D
			if !no4 {
				d = &comps4[row]
			}
			if !m(entityId, a, b, c, d) {
				return
			}
		}
	}
}
