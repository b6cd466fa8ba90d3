// Package rob implements the re-order buffer: the in-order retirement
// ledger that holds each in-flight instruction's ready/written state and
// its per-register results.
//
// The buffer owns every in-flight instruction; the reservation station,
// register file, and functional units refer to entries only by integer
// id, which keeps the component graph free of ownership cycles.
package rob

import (
	"errors"
	"fmt"

	"github.com/archlab/mipsooo/isa"
)

// ErrResultNotReady is returned by GetResult when the named entry has not
// finished execution. Escaping to a caller indicates a scheduling bug: the
// RS readiness check should never let a consumer reach an entry this way.
var ErrResultNotReady = errors.New("rob: result not ready")

// Entry is one re-order-buffer row.
type Entry struct {
	Ready   bool
	Written bool
	Inst    *isa.Instruction
	Results map[uint8]int32
}

// Buffer is the re-order buffer: an integer-keyed, insertion-ordered table
// of in-flight instructions. Written entries are retained — a later
// instruction whose operand was renamed to an already-retired entry still
// reads its value through the forwarding path, so retirement must not
// discard results. Entries disappear only through a speculative squash.
type Buffer struct {
	entries map[int]*Entry
	nextID  int

	// retireFloor is the smallest id that might still need retiring;
	// everything below it is written or squashed.
	retireFloor int
	// pending counts entries not yet written, so NoWritebacks stays O(1)
	// with the buffer retaining its full history.
	pending int
}

// NewBuffer creates an empty re-order buffer.
func NewBuffer() *Buffer {
	return &Buffer{entries: make(map[int]*Entry)}
}

// InsertEntry appends a new entry for inst and returns its id. Ids are
// assigned in strictly increasing order starting at 0 and are never
// reused, even after a squash drops the tail.
func (b *Buffer) InsertEntry(inst *isa.Instruction) int {
	id := b.nextID
	b.nextID++
	b.entries[id] = &Entry{Inst: inst, Results: make(map[uint8]int32)}
	b.pending++
	return id
}

// WriteResult records one result for entry id. Called zero, one, or two
// times per instruction (twice for div, which writes both LO and HI).
func (b *Buffer) WriteResult(id int, reg uint8, value int32) {
	b.entries[id].Results[reg] = value
}

// MarkReady sets the entry's ready flag, signalling that its result map is
// final and forwardable.
func (b *Buffer) MarkReady(id int) {
	b.entries[id].Ready = true
}

// MarkWritten sets the entry's written flag, signalling it has retired to
// the architectural register file.
func (b *Buffer) MarkWritten(id int) {
	e := b.entries[id]
	if !e.Written {
		e.Written = true
		b.pending--
	}
}

// IsReady reports whether id names a ready entry (written or not — retired
// entries keep forwarding); this is the query the reservation station's
// forwarding check uses (rs.ReadyFunc). An id that does not exist is
// reported not ready, which is safe: it can only mean the entry has not
// been inserted yet.
func (b *Buffer) IsReady(id int) bool {
	e, ok := b.entries[id]
	return ok && e.Ready
}

// GetResult returns the recorded value for (id, reg). It fails with
// ErrResultNotReady if the entry has not finished execution.
func (b *Buffer) GetResult(id int, reg uint8) (int32, error) {
	e, ok := b.entries[id]
	if !ok || !e.Ready {
		return 0, fmt.Errorf("rob: entry %d: %w", id, ErrResultNotReady)
	}
	v, ok := e.Results[reg]
	if !ok {
		return 0, fmt.Errorf("rob: entry %d has no result for register %d: %w", id, reg, ErrResultNotReady)
	}
	return v, nil
}

// Get returns the raw entry for id, for callers (the pipeline controller's
// retire stage) that need direct access to Inst/Results. The returned
// pointer aliases the buffer's own storage.
func (b *Buffer) Get(id int) (*Entry, bool) {
	e, ok := b.entries[id]
	return e, ok
}

// GetFinishedInstructions walks ids in ascending order and returns up to
// width entries that are ready and not yet written, stopping at the first
// present-but-not-ready id so that retirement always proceeds in program
// order. Ids annihilated by a squash are skipped: a gap carries no
// retirement obligation.
func (b *Buffer) GetFinishedInstructions(width int) []int {
	for b.retireFloor < b.nextID {
		e, ok := b.entries[b.retireFloor]
		if ok && !e.Written {
			break
		}
		b.retireFloor++
	}

	var finished []int
	for id := b.retireFloor; id < b.nextID && len(finished) < width; id++ {
		e, ok := b.entries[id]
		if !ok || e.Written {
			continue
		}
		if !e.Ready {
			break
		}
		finished = append(finished, id)
	}
	return finished
}

// ClearBlock drops every entry whose instruction belongs to a speculation
// block >= block. nextID is not reset: ids keep strictly increasing
// across a squash, so squashed ids are never reused.
func (b *Buffer) ClearBlock(block uint64) {
	for id, e := range b.entries {
		if e.Inst.Block >= block {
			b.drop(id, e)
		}
	}
}

// ClearAfter drops every entry with id strictly greater than the given id.
// This is the squash used when the mispredicting instruction's speculation
// block cannot separate it from its predecessors (a jr shares its block
// with the straight-line code fetched before it).
func (b *Buffer) ClearAfter(id int) {
	for key, e := range b.entries {
		if key > id {
			b.drop(key, e)
		}
	}
}

func (b *Buffer) drop(id int, e *Entry) {
	if !e.Written {
		b.pending--
	}
	delete(b.entries, id)
}

// NoWritebacks reports whether every entry currently in the buffer has
// been written. An empty buffer trivially satisfies this.
func (b *Buffer) NoWritebacks() bool {
	return b.pending == 0
}

// Len reports the number of entries currently in the buffer, retained
// retired entries included.
func (b *Buffer) Len() int {
	return len(b.entries)
}
