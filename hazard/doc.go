// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hazard provides hazard-pointer based memory reclamation for
// lock-free data structures.
//
// A hazard pointer is a per-goroutine published address that protects the
// referenced object from reclamation: a reader publishes the address it is
// about to dereference, re-validates the source, and only then touches the
// object. A remover retires the object instead of freeing it; retired
// objects are reclaimed once no published slot holds their address.
//
// Two managers are provided:
//
//   - [Manager]: 3 hazard slots per record, per-goroutine retired lists
//     scanned at a small threshold, with a mutex-guarded global list that
//     collects leftovers when a goroutine releases its record. General
//     purpose; protects the MPMC chunked queue.
//   - [Small]: 2 hazard slots per record and a single retired list with a
//     large threshold. The list is deliberately unsynchronized: it is only
//     ever touched by the one consumer of an MPSC queue's pop path.
//
// Goroutines claim one of a fixed set of 64 records on first use, keyed by
// goroutine id. A goroutine that interacts with a manager and then exits
// must call Release first; long-lived workers do this on shutdown. Claiming
// beyond 64 concurrent records is fatal, as is destroying a manager that
// still has active records or unreclaimable retired pointers — both
// indicate a corrupted structure, and the package prefers termination over
// recovery.
//
// Hazard slots store raw addresses for comparison only. Liveness of a
// retired object is carried by the real pointer kept in its retired entry,
// so the garbage collector never frees an object the manager still tracks.
package hazard
