// Package tbl is a minimal stand-in for the persistent table store the
// specification explicitly keeps out of scope (hardware-dependent,
// non-core). It exists only so TLM has a TBL_Status to sample and embed in
// the health-and-status packet.
package tbl

import "sync"

// Status is TBL's contribution to the health-and-status packet: a single
// counter recording how many table loads have been attempted, plus how
// many of those failed. Real persistence is out of scope (spec §1).
type Status struct {
	LoadAttempts uint32
	LoadErrors   uint32
}

// Table is the stub itself: it never touches storage, it only counts.
type Table struct {
	mu     sync.Mutex
	status Status
}

// NewTable constructs an empty stub table.
func NewTable() *Table { return &Table{} }

// RecordLoadAttempt increments the attempt counter, and the error counter
// too when ok is false. Exists so bootstrap and tests have something to
// drive the stub with.
func (tbl *Table) RecordLoadAttempt(ok bool) {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	tbl.status.LoadAttempts++
	if !ok {
		tbl.status.LoadErrors++
	}
}

// GetStatus snapshots the stub's counters by value.
func (tbl *Table) GetStatus() Status {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	return tbl.status
}
