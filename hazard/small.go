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
	// SmallHazards is the number of hazard slots per Small record.
	SmallHazards = 2

	smallRetireThreshold = MaxRecords * 16
)

type smallRecord struct {
	hps    [SmallHazards]atomix.Uintptr
	active atomix.Int32
	_      pad
}

// Small is the two-slot manager used where only a pair of pointers ever
// needs protection at once. Unlike [Manager] it keeps a single retired
// list with a large threshold instead of per-goroutine lists.
//
// The retired list is unsynchronized: Retire must only be called from one
// goroutine at a time — the pop path of an MPSC queue, where the single
// consumer is the only remover.
type Small struct {
	records [MaxRecords]smallRecord
	locals  sync.Map // goid -> *smallRecord

	retired []retiredPtr
}

// NewSmall creates an empty two-slot manager.
func NewSmall() *Small {
	return &Small{}
}

func (m *Small) local() *smallRecord {
	gid := goid.Get()
	if v, ok := m.locals.Load(gid); ok {
		return v.(*smallRecord)
	}
	rec := m.claimRecord()
	m.locals.Store(gid, rec)
	return rec
}

func (m *Small) claimRecord() *smallRecord {
	for i := range m.records {
		rec := &m.records[i]
		if rec.active.LoadRelaxed() == 0 && rec.active.CompareAndSwapAcqRel(0, 1) {
			return rec
		}
	}
	panic("hazard: record slots exhausted")
}

// Protect publishes that the calling goroutine intends to dereference ptr.
func (m *Small) Protect(slot int, ptr unsafe.Pointer) {
	if slot >= SmallHazards {
		panic("hazard: slot index out of range")
	}
	m.local().hps[slot].StoreRelease(uintptr(ptr))
}

// Clear releases the protection published at slot.
func (m *Small) Clear(slot int) {
	if slot >= SmallHazards {
		panic("hazard: slot index out of range")
	}
	m.local().hps[slot].StoreRelease(0)
}

// ClearAll releases every protection of the calling goroutine.
func (m *Small) ClearAll() {
	rec := m.local()
	for i := range rec.hps {
		rec.hps[i].StoreRelease(0)
	}
}

// Retire marks ptr unreachable. Single-retirer contract: only the queue's
// consumer goroutine may call Retire.
func (m *Small) Retire(ptr unsafe.Pointer, deleter Deleter) {
	m.retired = append(m.retired, retiredPtr{ptr, deleter})
	if len(m.retired) > smallRetireThreshold {
		m.scanRetired()
	}
}

func (m *Small) scanRetired() {
	kept := m.retired[:0]
	for _, rp := range m.retired {
		if m.protected(uintptr(rp.ptr)) {
			kept = append(kept, rp)
			continue
		}
		if rp.deleter == nil {
			panic("hazard: retired pointer has no deleter")
		}
		rp.deleter(rp.ptr)
	}
	tail := m.retired[len(kept):]
	for i := range tail {
		tail[i] = retiredPtr{}
	}
	m.retired = kept
}

func (m *Small) protected(addr uintptr) bool {
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

// Release frees the calling goroutine's record.
func (m *Small) Release() {
	gid := goid.Get()
	v, ok := m.locals.LoadAndDelete(gid)
	if !ok {
		return
	}
	rec := v.(*smallRecord)
	for i := range rec.hps {
		rec.hps[i].StoreRelease(0)
	}
	rec.active.StoreRelease(0)
}

// Close is the destructor: one last scan. Surviving retired pointers are
// fatal, as in [Manager.Close].
func (m *Small) Close() {
	m.scanRetired()
	if len(m.retired) > 0 {
		panic("hazard: manager closed with live retired pointers")
	}
}
