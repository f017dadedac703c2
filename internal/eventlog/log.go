package eventlog

import (
	"fmt"
	"iter"
	"log/slog"
	"sort"
)

// DefaultBlockSize is the number of entries per block when none is given.
const DefaultBlockSize = 256

type logBlock struct {
	entries []Entry
}

// Log is an append-only list of entries stored in fixed-size blocks.
// Pointers returned by Append and At stay valid until their block is
// evicted. Times must be appended in increasing order.
type Log struct {
	blockSize int
	blocks    []*logBlock
	count     int
	logger    *slog.Logger
}

// NewLog creates an empty log. A nil logger uses slog.Default().
func NewLog(blockSize int, logger *slog.Logger) *Log {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{blockSize: blockSize, logger: logger}
}

// Append stores e and returns its stable address.
func (l *Log) Append(e Entry) *Entry {
	if !e.Kind.Valid() {
		panic(fmt.Sprintf("eventlog: append of invalid kind %d", e.Kind))
	}
	if l.count > 0 {
		if last := l.At(l.count - 1); e.Time <= last.Time {
			panic(fmt.Sprintf("eventlog: time %d appended after %d", e.Time, last.Time))
		}
	}
	var b *logBlock
	if n := len(l.blocks); n > 0 && len(l.blocks[n-1].entries) < l.blockSize {
		b = l.blocks[n-1]
	} else {
		b = &logBlock{entries: make([]Entry, 0, l.blockSize)}
		l.blocks = append(l.blocks, b)
	}
	b.entries = append(b.entries, e)
	l.count++
	return &b.entries[len(b.entries)-1]
}

// Len returns the number of retained entries.
func (l *Log) Len() int { return l.count }

// At returns the i'th retained entry.
func (l *Log) At(i int) *Entry {
	if i < 0 || i >= l.count {
		panic(fmt.Sprintf("eventlog: index %d out of range [0,%d)", i, l.count))
	}
	// Only the last block can be partially filled.
	b := l.blocks[i/l.blockSize]
	return &b.entries[i%l.blockSize]
}

// All iterates the retained entries in time order.
func (l *Log) All() iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		i := 0
		for _, b := range l.blocks {
			for j := range b.entries {
				if !yield(i, &b.entries[j]) {
					return
				}
				i++
			}
		}
	}
}

// Find returns the position of the entry stamped time.
func (l *Log) Find(time int64) (int, bool) {
	i := sort.Search(l.count, func(i int) bool { return l.At(i).Time >= time })
	if i < l.count && l.At(i).Time == time {
		return i, true
	}
	return i, false
}

// EvictBefore discards every block whose entries all precede time, passing
// each discarded entry to unload first. It returns the number of entries
// removed.
func (l *Log) EvictBefore(time int64, unload func(*Entry)) int {
	drop := 0
	for _, b := range l.blocks {
		if len(b.entries) < l.blockSize || b.entries[len(b.entries)-1].Time >= time {
			break
		}
		drop++
	}
	if drop == 0 {
		return 0
	}
	removed := 0
	for _, b := range l.blocks[:drop] {
		for i := range b.entries {
			if unload != nil {
				unload(&b.entries[i])
			}
		}
		removed += len(b.entries)
	}
	l.blocks = append(l.blocks[:0:0], l.blocks[drop:]...)
	l.count -= removed
	l.logger.Warn("evicted log blocks", "blocks", drop, "entries", removed, "before", time)
	return removed
}

// Close unloads every entry and empties the log.
func (l *Log) Close(unload func(*Entry)) {
	if unload != nil {
		for _, e := range l.All() {
			unload(e)
		}
	}
	l.blocks = nil
	l.count = 0
}
