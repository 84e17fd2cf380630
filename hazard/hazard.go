// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazard

import (
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
	"github.com/petermattis/goid"
)

const (
	// MaxHazards is the number of hazard slots per record.
	MaxHazards = 3
	// MaxRecords is the number of records a manager owns. At most this many
	// goroutines may hold a claim on the same manager concurrently.
	MaxRecords = 64

	retireThreshold = 16
)

type pad [64]byte

// Deleter frees a retired object once it is provably unreachable.
type Deleter func(unsafe.Pointer)

type retiredPtr struct {
	ptr     unsafe.Pointer
	deleter Deleter
}

// Record is one goroutine's set of published hazard slots.
type record struct {
	hps    [MaxHazards]atomix.Uintptr
	active atomix.Int32
	_      pad
}

type local struct {
	rec     *record
	retired []retiredPtr
}

// Manager is the general-purpose hazard-pointer manager: MaxHazards slots
// per record, per-goroutine retired lists, and a global list that collects
// leftovers from released goroutines.
type Manager struct {
	records [MaxRecords]record
	locals  sync.Map // goid -> *local

	mu     sync.Mutex
	global []retiredPtr
}

// New creates an empty manager.
func New() *Manager {
	return &Manager{}
}

func (m *Manager) local() *local {
	gid := goid.Get()
	if v, ok := m.locals.Load(gid); ok {
		return v.(*local)
	}
	rec := m.claimRecord()
	l := &local{rec: rec}
	m.locals.Store(gid, l)
	return l
}

func (m *Manager) claimRecord() *record {
	for i := range m.records {
		rec := &m.records[i]
		if rec.active.LoadRelaxed() == 0 && rec.active.CompareAndSwapAcqRel(0, 1) {
			return rec
		}
	}
	panic("hazard: record slots exhausted")
}

// Protect publishes that the calling goroutine intends to dereference ptr.
// The slot index must be < MaxHazards.
func (m *Manager) Protect(slot int, ptr unsafe.Pointer) {
	if slot >= MaxHazards {
		panic("hazard: slot index out of range")
	}
	m.local().rec.hps[slot].StoreRelease(uintptr(ptr))
}

// Clear releases the protection published at slot.
func (m *Manager) Clear(slot int) {
	if slot >= MaxHazards {
		panic("hazard: slot index out of range")
	}
	m.local().rec.hps[slot].StoreRelease(0)
}

// ClearAll releases every protection of the calling goroutine.
func (m *Manager) ClearAll() {
	rec := m.local().rec
	for i := range rec.hps {
		rec.hps[i].StoreRelease(0)
	}
}

// Retire marks ptr unreachable from live structures. Once no hazard slot
// holds its address, deleter is invoked exactly once.
func (m *Manager) Retire(ptr unsafe.Pointer, deleter Deleter) {
	l := m.local()
	l.retired = append(l.retired, retiredPtr{ptr, deleter})
	if len(l.retired) > retireThreshold {
		l.retired = m.scan(l.retired)
	}
}

// scan deletes every entry of list whose address is not published in any
// active record's hazard slots and returns the survivors.
func (m *Manager) scan(list []retiredPtr) []retiredPtr {
	kept := list[:0]
	for _, rp := range list {
		if m.protected(uintptr(rp.ptr)) {
			kept = append(kept, rp)
			continue
		}
		if rp.deleter == nil {
			panic("hazard: retired pointer has no deleter")
		}
		rp.deleter(rp.ptr)
	}
	// Drop reclaimed tail references so the collector can take the objects.
	tail := list[len(kept):]
	for i := range tail {
		tail[i] = retiredPtr{}
	}
	return kept
}

func (m *Manager) protected(addr uintptr) bool {
	for i := range m.records {
		rec := &m.records[i]
		if rec.active.LoadAcquire() == 0 {
			continue
		}
		for j := range rec.hps {
			if rec.hps[j].LoadAcquire() == addr {
				return true
			}
		}
	}
	return false
}

// Release is the goroutine-exit protocol: scan the goroutine's retired
// list, splice anything still protected into the global list, and free the
// record. A goroutine that touched the manager must call Release before it
// exits; calling it without a claim is a no-op.
func (m *Manager) Release() {
	gid := goid.Get()
	v, ok := m.locals.LoadAndDelete(gid)
	if !ok {
		return
	}
	l := v.(*local)
	l.retired = m.scan(l.retired)
	if len(l.retired) > 0 {
		m.collect(l.retired)
	}
	for i := range l.rec.hps {
		l.rec.hps[i].StoreRelease(0)
	}
	l.rec.active.StoreRelease(0)
}

func (m *Manager) collect(leftovers []retiredPtr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global = append(m.global, leftovers...)
	if len(m.global) > retireThreshold {
		m.global = m.scan(m.global)
	}
}

// Close is the destructor: a final scan of the global list. Any retired
// pointer that survives, or any record still active, means a reader may
// still hold a freed node — fatal by design.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global = m.scan(m.global)
	if len(m.global) > 0 {
		panic("hazard: manager closed with live retired pointers")
	}
	for i := range m.records {
		if m.records[i].active.LoadAcquire() != 0 {
			panic("hazard: manager closed with active records")
		}
	}
}
