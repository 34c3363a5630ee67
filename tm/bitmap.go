package tm

// Bitmap is a fixed-width set of task-id bits, the representation behind
// the tasks_scheduled and tasks_missed_heartbeat bitmaps of spec §4.5. It
// is a thin wrapper over a word slice rather than a []bool so a status
// snapshot can report it compactly; bits are sticky — the scheduler only
// ever sets them.
type Bitmap struct {
	words []uint64
}

// NewBitmap allocates a bitmap wide enough to address width bits, 0-indexed.
func NewBitmap(width int) Bitmap {
	n := (width + 63) / 64
	if n == 0 {
		n = 1
	}
	return Bitmap{words: make([]uint64, n)}
}

// Set marks bit i.
func (b Bitmap) Set(i int) { b.words[i/64] |= 1 << uint(i%64) }

// Get reports whether bit i is set.
func (b Bitmap) Get(i int) bool { return b.words[i/64]&(1<<uint(i%64)) != 0 }

// Count reports how many of the first width bits are set.
func (b Bitmap) Count(width int) int {
	n := 0
	for i := 0; i < width; i++ {
		if b.Get(i) {
			n++
		}
	}
	return n
}
