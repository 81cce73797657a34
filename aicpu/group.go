package aicpu

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Group is a shared-memory group that queues are allocated from.
type Group struct {
	ID   uint32
	Name string
}

// GroupCreator creates the group with the given id.
type GroupCreator func(id uint32) (*Group, error)

// GroupTable creates each group at most once. Lookups of existing groups
// do not lock. Creation is rare and quick, so it is guarded by a spin flag.
type GroupTable struct {
	create  GroupCreator
	groups  sync.Map
	spin    atomic.Bool
	created atomic.Uint64
}

// NewGroupTable creates a table that creates groups with create.
func NewGroupTable(create GroupCreator) *GroupTable {
	return &GroupTable{create: create}
}

// GetOrCreate returns the group with the given id, creating it if needed.
func (t *GroupTable) GetOrCreate(id uint32) (*Group, error) {
	if g, ok := t.groups.Load(id); ok {
		return g.(*Group), nil
	}

	for !t.spin.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	defer t.spin.Store(false)

	if g, ok := t.groups.Load(id); ok {
		return g.(*Group), nil
	}

	g, err := t.create(id)
	if err != nil {
		return nil, err
	}

	t.groups.Store(id, g)
	t.created.Add(1)

	return g, nil
}

// Get returns an existing group.
func (t *GroupTable) Get(id uint32) (*Group, bool) {
	g, ok := t.groups.Load(id)
	if !ok {
		return nil, false
	}

	return g.(*Group), true
}

// Created returns how many groups have been created.
func (t *GroupTable) Created() uint64 {
	return t.created.Load()
}
